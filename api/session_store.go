package api

import "time"

// SessionStore abstracts bearer token bookkeeping. Tokens only authorize
// access to the Core's single unlocked session; they carry no key material.
type SessionStore interface {
	// Get retrieves a session by token. Returns false if the session
	// does not exist, has expired, or has exceeded the idle timeout.
	Get(token string) (AuthSession, bool)
	// Put creates or updates a session for the given token.
	Put(token string, session AuthSession)
	// Touch records an access at the given time. It returns false, and
	// stores nothing, when the token is no longer present.
	Touch(token string, at time.Time) bool
	// Delete removes a session by token.
	Delete(token string)
	// Clear removes every session.
	Clear()
}

// AuthSession holds the server-side state for a bearer token.
type AuthSession struct {
	ClientIP       string    `json:"client_ip"`
	ExpiresAt      time.Time `json:"expires_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}
