package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jmcleod/sealbox/account"
	"github.com/jmcleod/sealbox/core"
	"github.com/jmcleod/sealbox/docstore"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeInternalError logs err and sends a generic 500 so that paths and
// internal state do not leak to the client.
func writeInternalError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, msg)
}

func mapError(w http.ResponseWriter, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, account.ErrEmptyPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, account.ErrInvalidPassword):
		writeError(w, http.StatusUnauthorized, "invalid password")
	case errors.Is(err, account.ErrNotRegistered):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, account.ErrAlreadyRegistered):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrNotLoggedIn):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, core.ErrAlreadyLoggedIn):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrContactNotFound):
		writeError(w, http.StatusNotFound, "contact not found")
	case errors.Is(err, core.ErrContactExists):
		writeError(w, http.StatusConflict, "contact already exists")
	case errors.Is(err, docstore.ErrRollbackDetected):
		writeInternalError(w, "document rollback detected", err)
	case errors.Is(err, docstore.ErrCorruptOrWrongKey), errors.Is(err, docstore.ErrLabelMismatch):
		writeInternalError(w, "document unreadable", err)
	default:
		writeInternalError(w, "internal error", err)
	}
}
