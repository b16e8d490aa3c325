package domain

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

type Provider string

const (
	ProviderMoMo  Provider = "momo"
	ProviderVNPay Provider = "vnpay"
)

const (
	MaxOrderIDLen     = 100
	MaxDescriptionLen = 255
)

var orderIDPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// PaymentRequest is built fresh for every payment attempt.
type PaymentRequest struct {
	OrderID          string
	AmountMinorUnits int64
	Description      string
	ClientIP         string
	BankCode         string
}

// Validate checks the fields every provider needs. Provider specific rules
// (description charset, IP presence) live in the adapters.
func (r PaymentRequest) Validate() error {
	if strings.TrimSpace(r.OrderID) == "" {
		return ValidationError("orderId required")
	}
	if len(r.OrderID) > MaxOrderIDLen || !orderIDPattern.MatchString(r.OrderID) {
		return ValidationError("orderId must be alphanumeric and at most 100 characters")
	}
	if r.AmountMinorUnits <= 0 {
		return ValidationError("amount must be a positive integer")
	}
	return nil
}

// PaymentOutcome is the provider-agnostic result of a verified (or rejected)
// callback. Amount is whole VND; HasAmount is false when the provider did not
// send one.
type PaymentOutcome struct {
	Provider              Provider
	OrderID               string
	Success               bool
	SignatureValid        bool
	ProviderTransactionID string
	RequestID             string
	RawResultCode         string
	NormalizedMessage     string
	AmountMinorUnits      int64
	HasAmount             bool
	PayType               string
	ResponseTime          string
}

// SanitizeText trims, drops control characters and truncates to max runes.
func SanitizeText(s string, max int) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if r == utf8.RuneError || unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return truncateRunes(strings.TrimSpace(b.String()), max)
}

// SanitizeASCII keeps only ASCII letters, digits and whitespace, then trims
// and truncates. Bank gateways reject anything else in order descriptions.
func SanitizeASCII(s string, max int) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			b.WriteRune(r)
		}
	}
	return truncateRunes(strings.TrimSpace(b.String()), max)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
