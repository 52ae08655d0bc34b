package api

import (
	"time"

	"github.com/jmcleod/sealbox/core"
)

// StatusResponse is returned from GET /status.
type StatusResponse struct {
	Registered bool `json:"registered"`
	LoggedIn   bool `json:"logged_in"`
}

// PasswordRequest is the JSON body for POST /auth/register and POST /auth/login.
type PasswordRequest struct {
	Password string `json:"password"`
}

// TokenResponse is returned from POST /auth/register and POST /auth/login.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ChangePasswordRequest is the JSON body for POST /auth/password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// SettingsRequest is the JSON body for PUT /settings.
type SettingsRequest struct {
	DisplayName   string `json:"display_name"`
	Theme         string `json:"theme"`
	Notifications bool   `json:"notifications"`
}

// AddContactRequest is the JSON body for POST /contacts.
type AddContactRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// ListContactsResponse is returned from GET /contacts.
type ListContactsResponse struct {
	Contacts []core.Contact `json:"contacts"`
	PaginationMeta
}

// SendMessageRequest is the JSON body for POST /contacts/{contactID}/messages.
type SendMessageRequest struct {
	Body string `json:"body"`
}

// ListMessagesResponse is returned from GET /contacts/{contactID}/messages
// and POST /messages/receive.
type ListMessagesResponse struct {
	Messages []core.Message `json:"messages"`
	PaginationMeta
}

// ErrorResponse is returned for all error cases.
type ErrorResponse struct {
	Error string `json:"error"`
}
