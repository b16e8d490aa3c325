package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fox = "The quick brown fox jumps over the lazy dog"

func TestSign_KnownVectors(t *testing.T) {
	assert.Equal(t, "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8", Sign(fox, "key", SHA256))
	assert.Equal(t,
		"b42af09057bac1e2d41708e48a902e09b5ff7f12ab428a4fe86653c73dd248fb82f948a549f7b791a5b41915ee4d1ec3935357e4e2317250d0372afa2ebeeb3a",
		Sign(fox, "key", SHA512))
}

func TestCanonicalize_OrderIndependent(t *testing.T) {
	a := map[string]string{"b": "1", "a": "2"}
	b := map[string]string{"a": "2", "b": "1"}
	assert.Equal(t, Canonicalize(a, SpacePlus), Canonicalize(b, SpacePlus))
	assert.Equal(t, "a=2&b=1", Canonicalize(a, SpacePlus))
}

func TestCanonicalize_SpaceEncoding(t *testing.T) {
	p := map[string]string{"vnp_OrderInfo": "Thanh toan don hang"}
	assert.Equal(t, "vnp_OrderInfo=Thanh+toan+don+hang", Canonicalize(p, SpacePlus))
	assert.Equal(t, "vnp_OrderInfo=Thanh%20toan%20don%20hang", Canonicalize(p, SpacePercent20))
}

func TestCanonicalize_EscapesSeparators(t *testing.T) {
	p := map[string]string{"a=b": "c&d", "plus": "1+1"}
	got := Canonicalize(p, SpacePlus)
	assert.Equal(t, "a%3Db=c%26d&plus=1%2B1", got)
}

func TestCanonicalize_MatchesEncodeURIComponent(t *testing.T) {
	p := map[string]string{"u": "https://shop.example/ret(1)?a=b's!*~-_."}
	assert.Equal(t, "u=https%3A%2F%2Fshop.example%2Fret(1)%3Fa%3Db's!*~-_.", Canonicalize(p, SpacePlus))
	assert.Equal(t, "v=%2521", Canonicalize(map[string]string{"v": "%21"}, SpacePlus))
}

func TestCanonicalize_SortsByEncodedKey(t *testing.T) {
	// raw "é" sorts after "Z", its encoded form "%C3%A9" sorts before it
	p := map[string]string{"Z": "2", "é": "1"}
	assert.Equal(t, "%C3%A9=1&Z=2", Canonicalize(p, SpacePlus))
}

func TestCanonicalize_Empty(t *testing.T) {
	assert.Equal(t, "", Canonicalize(map[string]string{}, SpacePlus))
	assert.Equal(t, "", Canonicalize(nil, SpacePercent20))
}

func TestJoinFixed(t *testing.T) {
	got := JoinFixed([]string{"z", "a", "m"}, map[string]string{"a": "1", "z": "x y", "m": ""})
	assert.Equal(t, "z=x y&a=1&m=", got)
}

func TestVerify_RoundTrip(t *testing.T) {
	params := map[string]string{
		"vnp_TxnRef":    "ORDERABC123",
		"vnp_Amount":    "15000000",
		"vnp_OrderInfo": "Thanh toan don hang",
		"vnp_ReturnUrl": "https://shop.example/return?x=1",
	}
	for _, alg := range []Algorithm{SHA256, SHA512} {
		for _, enc := range []SpaceEncoding{SpacePlus, SpacePercent20} {
			sig := Sign(Canonicalize(params, enc), "s3cret", alg)
			signed := map[string]string{Field: sig}
			for k, v := range params {
				signed[k] = v
			}
			assert.True(t, Verify(signed, sig, "s3cret", alg, enc), "alg=%s enc=%d", alg, enc)
		}
	}
}

func TestVerify_TamperDetection(t *testing.T) {
	params := map[string]string{"amount": "150000", "orderId": "WC1", "resultCode": "0"}
	sig := Sign(Canonicalize(params, SpacePlus), "s3cret", SHA256)
	require.True(t, Verify(params, sig, "s3cret", SHA256, SpacePlus))

	for k, v := range params {
		tampered := map[string]string{}
		for k2, v2 := range params {
			tampered[k2] = v2
		}
		b := []byte(v)
		b[0] ^= 0x01
		tampered[k] = string(b)
		assert.False(t, Verify(tampered, sig, "s3cret", SHA256, SpacePlus), "field %s", k)
	}
	assert.False(t, Verify(params, sig, "other", SHA256, SpacePlus))
	assert.False(t, Verify(params, sig, "s3cret", SHA512, SpacePlus))
	assert.False(t, Verify(params, "", "s3cret", SHA256, SpacePlus))
}

func TestVerify_ExcludesProviderHashFields(t *testing.T) {
	params := map[string]string{"vnp_TxnRef": "WC1", "vnp_Amount": "4860000"}
	sig := Sign(Canonicalize(params, SpacePlus), "s3cret", SHA512)
	params["vnp_SecureHash"] = sig
	params["vnp_SecureHashType"] = "HmacSHA512"

	assert.True(t, Verify(params, sig, "s3cret", SHA512, SpacePlus, "vnp_SecureHash", "vnp_SecureHashType"))
	assert.False(t, Verify(params, sig, "s3cret", SHA512, SpacePlus, "vnp_SecureHash"))
}

func TestEqual_IgnoresHexCase(t *testing.T) {
	assert.True(t, Equal("abcdef01", "ABCDEF01"))
	assert.False(t, Equal("abcdef01", "abcdef02"))
}
