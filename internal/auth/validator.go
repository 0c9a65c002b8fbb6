package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"garagelink.app/client/internal/core/domain"
)

// DefaultPreRefreshThreshold comfortably exceeds one refresh round trip.
const DefaultPreRefreshThreshold = 5 * time.Minute

var unverifiedParser = jwt.NewParser()

// Decode extracts claims from the payload segment of an access token.
// The signature is not verified.
func Decode(token string) (domain.Claims, error) {
	var registered jwt.RegisteredClaims
	if _, _, err := unverifiedParser.ParseUnverified(token, &registered); err != nil {
		return domain.Claims{}, domain.NewAuthError(domain.KindMalformedToken, "decode", err)
	}
	if registered.ExpiresAt == nil {
		return domain.Claims{}, domain.NewAuthError(domain.KindMalformedToken, "missing exp claim", nil)
	}
	return domain.Claims{
		ExpiresAt: registered.ExpiresAt.Time,
		Subject:   registered.Subject,
	}, nil
}

// IsExpired reports now >= expiresAt.
func IsExpired(claims domain.Claims, now time.Time) bool {
	return !now.Before(claims.ExpiresAt)
}

// ShouldPreRefresh reports whether a still-valid token expires in less than
// threshold.
func ShouldPreRefresh(claims domain.Claims, now time.Time, threshold time.Duration) bool {
	if IsExpired(claims, now) {
		return false
	}
	return claims.ExpiresAt.Sub(now) < threshold
}

// IsUsable reports whether token decodes and has not expired.
func IsUsable(token string, now time.Time) bool {
	claims, err := Decode(token)
	if err != nil {
		return false
	}
	return !IsExpired(claims, now)
}

// Verdict is what the request pipeline needs to know about a token.
type Verdict int

const (
	// VerdictUsable means send as is.
	VerdictUsable Verdict = iota
	// VerdictPreRefresh means valid but inside the pre-refresh window.
	VerdictPreRefresh
	// VerdictUnusable means expired or malformed.
	VerdictUnusable
)

func (v Verdict) String() string {
	switch v {
	case VerdictUsable:
		return "usable"
	case VerdictPreRefresh:
		return "pre_refresh"
	case VerdictUnusable:
		return "unusable"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Validator binds a threshold and a clock to the pure checks above.
type Validator struct {
	Threshold time.Duration
	Now       func() time.Time
}

// NewValidator returns a Validator using the wall clock. A non-positive
// threshold falls back to DefaultPreRefreshThreshold.
func NewValidator(threshold time.Duration) *Validator {
	if threshold <= 0 {
		threshold = DefaultPreRefreshThreshold
	}
	return &Validator{Threshold: threshold, Now: time.Now}
}

// Assess classifies token at the current time.
func (v *Validator) Assess(token string) Verdict {
	claims, err := Decode(token)
	if err != nil {
		return VerdictUnusable
	}
	now := v.now()
	switch {
	case IsExpired(claims, now):
		return VerdictUnusable
	case ShouldPreRefresh(claims, now, v.Threshold):
		return VerdictPreRefresh
	default:
		return VerdictUsable
	}
}

func (v *Validator) now() time.Time {
	if v.Now == nil {
		return time.Now()
	}
	return v.Now()
}
