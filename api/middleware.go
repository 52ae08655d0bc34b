package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/jmcleod/sealbox/internal/util"
)

const tokenBytes = 32

// AuthMiddleware requires a valid bearer token and an unlocked Core.
func (a *API) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if _, ok := a.sessions.Get(token); !ok {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if !a.core.LoggedIn() {
			// The Core was locked by another token's logout or a reset.
			a.sessions.Delete(token)
			writeError(w, http.StatusUnauthorized, "session ended")
			return
		}

		// A concurrent logout may have cleared the store since Get.
		if !a.sessions.Touch(token, time.Now()) {
			writeError(w, http.StatusUnauthorized, "session ended")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// issueToken creates and stores a new bearer token.
func (a *API) issueToken(r *http.Request) (TokenResponse, error) {
	token, err := util.RandomToken(tokenBytes)
	if err != nil {
		return TokenResponse{}, err
	}
	now := time.Now()
	expiresAt := now.Add(a.sessionTTL)
	a.sessions.Put(token, AuthSession{
		ClientIP:       a.extractClientIP(r),
		ExpiresAt:      expiresAt,
		LastAccessedAt: now,
	})
	return TokenResponse{Token: token, ExpiresAt: expiresAt.UTC()}, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}
