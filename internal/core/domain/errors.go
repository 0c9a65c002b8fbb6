package domain

import (
	"errors"
	"fmt"
)

// Auth error taxonomy. Every error returned by the auth pipeline has exactly
// one kind, reported by KindOf. errors.Is also matches wrapped causes, so
// ErrRetryExhausted matches ErrAuthExpired as well.
var (
	ErrMalformedToken   = errors.New("malformed access token")
	ErrAuthExpired      = errors.New("access token rejected by server")
	ErrRefreshFailed    = errors.New("refresh token rejected")
	ErrRefreshTransport = errors.New("refresh request failed")
	ErrRetryExhausted   = errors.New("request still unauthorized after retry")
)

// ErrorKind discriminates auth errors without string matching.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindMalformedToken
	KindAuthExpired
	KindRefreshFailed
	KindRefreshTransport
	KindRetryExhausted
)

func (k ErrorKind) String() string {
	switch k {
	case KindMalformedToken:
		return "malformed_token"
	case KindAuthExpired:
		return "auth_expired"
	case KindRefreshFailed:
		return "refresh_failed"
	case KindRefreshTransport:
		return "refresh_transport"
	case KindRetryExhausted:
		return "retry_exhausted"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindMalformedToken:
		return ErrMalformedToken
	case KindAuthExpired:
		return ErrAuthExpired
	case KindRefreshFailed:
		return ErrRefreshFailed
	case KindRefreshTransport:
		return ErrRefreshTransport
	case KindRetryExhausted:
		return ErrRetryExhausted
	default:
		return nil
	}
}

// AuthError carries a taxonomy kind plus the underlying cause.
type AuthError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

// NewAuthError builds an AuthError of the given kind.
func NewAuthError(kind ErrorKind, detail string, cause error) *AuthError {
	return &AuthError{Kind: kind, Detail: detail, Err: cause}
}

func (e *AuthError) Error() string {
	msg := e.Kind.sentinel()
	text := "auth error"
	if msg != nil {
		text = msg.Error()
	}
	if e.Detail != "" {
		text = fmt.Sprintf("%s: %s", text, e.Detail)
	}
	if e.Err != nil {
		text = fmt.Sprintf("%s: %v", text, e.Err)
	}
	return text
}

// Is matches the sentinel for the error's kind.
func (e *AuthError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// KindOf reports the taxonomy kind of err, or KindUnknown for errors that
// did not originate in the auth pipeline.
func KindOf(err error) ErrorKind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	for _, k := range []ErrorKind{KindMalformedToken, KindAuthExpired, KindRefreshFailed, KindRefreshTransport, KindRetryExhausted} {
		if errors.Is(err, k.sentinel()) {
			return k
		}
	}
	return KindUnknown
}

// APIError is a non-2xx business response that is not an auth failure
// handled by the pipeline.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}
