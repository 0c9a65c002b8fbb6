package domain

import "time"

// Storage slot names. The four slots survive restarts; the pair slots are
// always written and cleared together.
const (
	SlotAccessToken  = "access_token"
	SlotRefreshToken = "refresh_token"
	SlotUserID       = "user_id"
	SlotUser         = "user"
)

// Credentials is the credential set. It is a value type: copies never alias
// repository state.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	UserID       string
}

// IsZero reports whether the pair is missing either token.
func (c Credentials) IsZero() bool {
	return c.AccessToken == "" || c.RefreshToken == ""
}

// Claims is decoded from an access token without signature verification.
// It is a refresh heuristic only; the server decides validity.
type Claims struct {
	ExpiresAt time.Time
	Subject   string
}

// Role of a marketplace user.
type Role string

const (
	RoleDriver   Role = "driver"
	RoleMechanic Role = "mechanic"
)

// User is the cached user record returned at login.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// SessionState is a point-in-time snapshot of the session.
type SessionState struct {
	Authenticated bool
	Credentials   *Credentials
}

// InvalidationReason says why a session ended.
type InvalidationReason string

const (
	ReasonLogout        InvalidationReason = "logout"
	ReasonRefreshFailed InvalidationReason = "refresh_failed"
)

// RefreshedTokens is the successful body of the refresh endpoint.
type RefreshedTokens struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResult is the successful body of the login endpoint.
type LoginResult struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}

// Credentials converts a login result into the stored pair.
func (r LoginResult) Credentials() Credentials {
	return Credentials{AccessToken: r.Token, RefreshToken: r.RefreshToken, UserID: r.User.ID}
}
