package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"garagelink.app/client/internal/core/domain"
)

var tokenSeq atomic.Int64

// TokenBuilder provides a builder pattern for creating signed test JWTs.
// Signatures use a throwaway HMAC key; the client never verifies them.
type TokenBuilder struct {
	subject   string
	expiresAt *time.Time
	issuedAt  time.Time
	noExpiry  bool
}

// NewTokenBuilder creates a TokenBuilder that expires in one hour
func NewTokenBuilder() *TokenBuilder {
	now := time.Now()
	exp := now.Add(time.Hour)
	return &TokenBuilder{
		subject:   "user-1",
		expiresAt: &exp,
		issuedAt:  now,
	}
}

// WithSubject sets the sub claim
func (b *TokenBuilder) WithSubject(subject string) *TokenBuilder {
	b.subject = subject
	return b
}

// ExpiringIn sets exp relative to now
func (b *TokenBuilder) ExpiringIn(d time.Duration) *TokenBuilder {
	exp := time.Now().Add(d)
	b.expiresAt = &exp
	return b
}

// ExpiringAt sets an absolute exp
func (b *TokenBuilder) ExpiringAt(t time.Time) *TokenBuilder {
	b.expiresAt = &t
	return b
}

// WithoutExpiry omits the exp claim
func (b *TokenBuilder) WithoutExpiry() *TokenBuilder {
	b.noExpiry = true
	return b
}

// Build signs the token. Every built token is distinct, even with equal claims.
func (b *TokenBuilder) Build() string {
	claims := jwt.RegisteredClaims{
		Subject:  b.subject,
		IssuedAt: jwt.NewNumericDate(b.issuedAt),
		ID:       fmt.Sprintf("jti-%d", tokenSeq.Add(1)),
	}
	if !b.noExpiry && b.expiresAt != nil {
		claims.ExpiresAt = jwt.NewNumericDate(*b.expiresAt)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	if err != nil {
		panic(fmt.Sprintf("testfixtures: sign token: %v", err))
	}
	return signed
}

// CredentialsBuilder provides a builder for credential pairs
type CredentialsBuilder struct {
	token   *TokenBuilder
	refresh string
	userID  string
}

// NewCredentialsBuilder creates a pair with a one hour access token
func NewCredentialsBuilder() *CredentialsBuilder {
	return &CredentialsBuilder{
		token:   NewTokenBuilder(),
		refresh: NextRefreshToken(),
		userID:  "user-1",
	}
}

// AccessExpiringIn sets the access token expiry relative to now
func (b *CredentialsBuilder) AccessExpiringIn(d time.Duration) *CredentialsBuilder {
	b.token.ExpiringIn(d)
	return b
}

// WithRefreshToken sets the refresh token
func (b *CredentialsBuilder) WithRefreshToken(rt string) *CredentialsBuilder {
	b.refresh = rt
	return b
}

// WithUserID sets the user id and token subject
func (b *CredentialsBuilder) WithUserID(id string) *CredentialsBuilder {
	b.userID = id
	b.token.WithSubject(id)
	return b
}

// Build returns the pair
func (b *CredentialsBuilder) Build() domain.Credentials {
	return domain.Credentials{
		AccessToken:  b.token.Build(),
		RefreshToken: b.refresh,
		UserID:       b.userID,
	}
}

// NextRefreshToken returns a unique opaque refresh token
func NextRefreshToken() string {
	return fmt.Sprintf("rt-%d", tokenSeq.Add(1))
}

// ValidToken is shorthand for a token expiring in one hour
func ValidToken() string {
	return NewTokenBuilder().Build()
}

// ExpiredToken is shorthand for a token that expired one second ago
func ExpiredToken() string {
	return NewTokenBuilder().ExpiringIn(-time.Second).Build()
}
