package usecase

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffee-backend/internal/domain"
)

func TestAuthService_IssueVerify(t *testing.T) {
	s := &AuthService{JWTSecret: "s3cret"}
	tok, err := s.Issue(admin, time.Hour)
	require.NoError(t, err)

	p, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, admin, p)
	assert.True(t, p.IsAdmin())
}

func TestAuthService_Rejects(t *testing.T) {
	s := &AuthService{JWTSecret: "s3cret"}

	other := &AuthService{JWTSecret: "different"}
	forged, _ := other.Issue(customer, time.Hour)
	_, err := s.Verify(forged)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	s.Now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := s.Issue(customer, time.Hour)
	s.Now = nil
	_, err = s.Verify(expired)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": "u1"})
	raw, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	_, err = s.Verify(raw)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = s.Verify("not-a-token")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthService_SubjectFallback(t *testing.T) {
	s := &AuthService{JWTSecret: "s3cret"}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u9", "exp": time.Now().Add(time.Minute).Unix()})
	raw, err := tok.SignedString([]byte("s3cret"))
	require.NoError(t, err)
	p, err := s.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "u9", p.UserID)
	assert.False(t, p.IsAdmin())
}
