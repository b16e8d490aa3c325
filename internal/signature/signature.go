// Package signature builds the HMAC input strings payment providers expect
// and signs or verifies them.
//
// Two canonicalization strategies exist and are deliberately separate:
// Canonicalize sorts keys alphabetically and URL-encodes (bank gateway style),
// JoinFixed concatenates raw values in a provider-dictated field order
// (wallet style). Each provider must sign and verify with the same one.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"net/url"
	"slices"
	"sort"
	"strings"
)

// Field is the key always excluded from the canonical form by Verify.
const Field = "signature"

type Algorithm int

const (
	SHA256 Algorithm = iota
	SHA512
)

func (a Algorithm) newHash() func() hash.Hash {
	if a == SHA512 {
		return sha512.New
	}
	return sha256.New
}

func (a Algorithm) String() string {
	if a == SHA512 {
		return "HmacSHA512"
	}
	return "HmacSHA256"
}

// SpaceEncoding selects how an encoded space appears in values.
type SpaceEncoding int

const (
	SpacePlus SpaceEncoding = iota
	SpacePercent20
)

// componentUnescaper restores the characters encodeURIComponent leaves
// alone but url.QueryEscape encodes. The gateways hash the
// encodeURIComponent form.
var componentUnescaper = strings.NewReplacer("%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*")

func escape(s string, enc SpaceEncoding) string {
	e := componentUnescaper.Replace(url.QueryEscape(s))
	if enc == SpacePercent20 {
		e = strings.ReplaceAll(e, "+", "%20")
	}
	return e
}

// Canonicalize URL-encodes every key and value, orders pairs by the encoded
// key bytes and joins them as key=value with '&'.
func Canonicalize(params map[string]string, enc SpaceEncoding) string {
	type pair struct{ k, v string }
	pairs := make([]pair, 0, len(params))
	for k, v := range params {
		pairs = append(pairs, pair{k: escape(k, enc), v: escape(v, enc)})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].k < pairs[j].k })
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.k)
		b.WriteByte('=')
		b.WriteString(p.v)
	}
	return b.String()
}

// JoinFixed emits key=value pairs in exactly the given order, values unencoded.
// Missing keys are emitted with an empty value.
func JoinFixed(order []string, values map[string]string) string {
	var b strings.Builder
	for i, k := range order {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(values[k])
	}
	return b.String()
}

// Sign returns the lower-case hex HMAC of message.
func Sign(message, secret string, alg Algorithm) string {
	m := hmac.New(alg.newHash(), []byte(secret))
	m.Write([]byte(message))
	return hex.EncodeToString(m.Sum(nil))
}

// Equal compares two hex signatures in constant time, ignoring hex case.
func Equal(expected, received string) bool {
	return hmac.Equal([]byte(strings.ToLower(expected)), []byte(strings.ToLower(received)))
}

// Verify recomputes the signature over params without Field and without any
// provider specific exclude keys (hash field names, hash type metadata).
func Verify(params map[string]string, received, secret string, alg Algorithm, enc SpaceEncoding, exclude ...string) bool {
	if received == "" {
		return false
	}
	rest := make(map[string]string, len(params))
	for k, v := range params {
		if k == Field || slices.Contains(exclude, k) {
			continue
		}
		rest[k] = v
	}
	return Equal(Sign(Canonicalize(rest, enc), secret, alg), received)
}
