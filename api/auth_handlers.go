package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmcleod/sealbox/account"
)

// minPasswordLen is the minimum password length accepted at registration
// and on password change.
const minPasswordLen = 10

// Status handles GET /status.
func (a *API) Status(w http.ResponseWriter, r *http.Request) {
	registered, err := a.core.Registered()
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Registered: registered,
		LoggedIn:   a.core.LoggedIn(),
	})
}

// Register handles POST /auth/register.
func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[PasswordRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if len(req.Password) < minPasswordLen {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("password must be at least %d characters", minPasswordLen))
		return
	}
	if err := a.core.Register([]byte(req.Password)); err != nil {
		mapError(w, err)
		return
	}
	resp, err := a.issueToken(r)
	if err != nil {
		writeInternalError(w, "failed to issue token", err)
		return
	}
	a.audit.log(AuditRegister, r)
	writeJSON(w, http.StatusCreated, resp)
}

// Login handles POST /auth/login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	clientIP := a.extractClientIP(r)
	if scope, retryAfter := a.rateLimiter.check(clientIP); scope != scopeNone {
		a.audit.logFailure(AuditLoginRateLimited, r, string(scope)+" rate limited",
			slog.String("client_ip", clientIP))
		writeRateLimited(w, retryAfter)
		return
	}

	req, ok := decodeJSON[PasswordRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	if err := a.core.Login([]byte(req.Password)); err != nil {
		if errors.Is(err, account.ErrInvalidPassword) {
			a.rateLimiter.recordFailure(clientIP)
			a.audit.logFailure(AuditLoginFailure, r, "invalid password",
				slog.String("client_ip", clientIP))
		}
		mapError(w, err)
		return
	}
	a.rateLimiter.recordSuccess(clientIP)

	resp, err := a.issueToken(r)
	if err != nil {
		writeInternalError(w, "failed to issue token", err)
		return
	}
	a.audit.log(AuditLoginSuccess, r)
	writeJSON(w, http.StatusOK, resp)
}

// Logout handles POST /auth/logout. It locks the Core, which invalidates
// every token.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	err := a.core.Logout()
	a.sessions.Clear()
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(AuditLogout, r)
	w.WriteHeader(http.StatusNoContent)
}

// ChangePassword handles POST /auth/password.
func (a *API) ChangePassword(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[ChangePasswordRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.OldPassword == "" {
		writeError(w, http.StatusBadRequest, "old_password is required")
		return
	}
	if len(req.NewPassword) < minPasswordLen {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("new_password must be at least %d characters", minPasswordLen))
		return
	}
	if err := a.core.ChangePassword([]byte(req.OldPassword), []byte(req.NewPassword)); err != nil {
		if errors.Is(err, account.ErrInvalidPassword) {
			a.audit.logFailure(AuditPasswordChanged, r, "invalid password")
		}
		mapError(w, err)
		return
	}
	a.audit.log(AuditPasswordChanged, r)
	w.WriteHeader(http.StatusNoContent)
}
