package usecase

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"coffee-backend/internal/domain"
)

// AuthService turns bearer tokens into principals. Accounts and sessions are
// owned by a separate identity service that shares the HS256 secret.
type AuthService struct {
	JWTSecret string
	Now       func() time.Time
}

type claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AuthService) Issue(p domain.Principal, ttl time.Duration) (string, error) {
	if s.JWTSecret == "" {
		return "", errors.New("jwt secret not configured")
	}
	now := s.now()
	c := claims{
		UserID: p.UserID,
		Role:   p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(s.JWTSecret))
}

func (s *AuthService) Verify(token string) (domain.Principal, error) {
	if s.JWTSecret == "" {
		return domain.Principal{}, domain.ErrUnauthorized
	}
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return []byte(s.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return domain.Principal{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if c.UserID == "" {
		c.UserID = c.Subject
	}
	if c.UserID == "" {
		return domain.Principal{}, fmt.Errorf("%w: missing user_id", domain.ErrUnauthorized)
	}
	return domain.Principal{UserID: c.UserID, Role: c.Role}, nil
}
