package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/sealbox/core"
)

// GetSettings handles GET /settings.
func (a *API) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := a.core.Settings()
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// UpdateSettings handles PUT /settings.
func (a *API) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[SettingsRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}
	s, err := a.core.UpdateSettings(core.Settings{
		DisplayName:   req.DisplayName,
		Theme:         req.Theme,
		Notifications: req.Notifications,
	})
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(AuditSettingsUpdated, r)
	writeJSON(w, http.StatusOK, s)
}

// ListContacts handles GET /contacts.
func (a *API) ListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := a.core.Contacts()
	if err != nil {
		mapError(w, err)
		return
	}
	page, meta := paginate(r, contacts)
	writeJSON(w, http.StatusOK, ListContactsResponse{Contacts: page, PaginationMeta: meta})
}

// AddContact handles POST /contacts.
func (a *API) AddContact(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[AddContactRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}
	contact, err := a.core.AddContact(req.Name, req.Address)
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(AuditContactAdded, r, slog.String("contact_id", contact.ID))
	writeJSON(w, http.StatusCreated, contact)
}

// GetContact handles GET /contacts/{contactID}.
func (a *API) GetContact(w http.ResponseWriter, r *http.Request) {
	contact, err := a.core.Contact(chi.URLParam(r, "contactID"))
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// RemoveContact handles DELETE /contacts/{contactID}.
func (a *API) RemoveContact(w http.ResponseWriter, r *http.Request) {
	contactID := chi.URLParam(r, "contactID")
	if err := a.core.RemoveContact(contactID); err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(AuditContactRemoved, r, slog.String("contact_id", contactID))
	w.WriteHeader(http.StatusNoContent)
}

// ListMessages handles GET /contacts/{contactID}/messages.
func (a *API) ListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := a.core.Messages(chi.URLParam(r, "contactID"))
	if err != nil {
		mapError(w, err)
		return
	}
	page, meta := paginate(r, messages)
	writeJSON(w, http.StatusOK, ListMessagesResponse{Messages: page, PaginationMeta: meta})
}

// SendMessage handles POST /contacts/{contactID}/messages.
func (a *API) SendMessage(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[SendMessageRequest](w, r, maxMessageBodySize)
	if !ok {
		return
	}
	contactID := chi.URLParam(r, "contactID")
	msg, err := a.core.SendMessage(r.Context(), contactID, req.Body)
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(AuditMessageSent, r,
		slog.String("contact_id", contactID),
		slog.String("message_id", msg.ID))
	writeJSON(w, http.StatusCreated, msg)
}

// ReceiveMessages handles POST /messages/receive.
func (a *API) ReceiveMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := a.core.ReceiveMessages(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	if messages == nil {
		messages = []core.Message{}
	}
	a.audit.log(AuditMessagesReceived, r, slog.Int("count", len(messages)))
	writeJSON(w, http.StatusOK, ListMessagesResponse{
		Messages: messages,
		PaginationMeta: PaginationMeta{
			TotalCount: len(messages),
			Limit:      len(messages),
		},
	})
}

// Reset handles POST /reset. It deletes every document and the account
// and invalidates all tokens.
func (a *API) Reset(w http.ResponseWriter, r *http.Request) {
	err := a.core.ResetData()
	a.sessions.Clear()
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(AuditDataReset, r)
	w.WriteHeader(http.StatusNoContent)
}
