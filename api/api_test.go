package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/sealbox/api"
	"github.com/jmcleod/sealbox/core"
	"github.com/jmcleod/sealbox/crypto"
)

const testPassword = "correct horse battery"

func setupServer(t *testing.T, opts ...api.Option) *httptest.Server {
	t.Helper()
	return setupServerWithTransport(t, core.NewLoopbackTransport(), opts...)
}

func setupServerWithTransport(t *testing.T, transport core.Transport, opts ...api.Option) *httptest.Server {
	t.Helper()
	c, err := core.New(core.Config{
		DataDir:   t.TempDir(),
		KDFParams: crypto.Argon2idParams{Time: 1, MemoryKiB: 64, Parallelism: 1, KeyLen: 32},
		Transport: transport,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	opts = append([]api.Option{api.WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	a := api.New(c, opts...)
	r := chi.NewRouter()
	r.Mount("/api/v1", a.Router())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req, err := http.NewRequestWithContext(t.Context(), method, url, &reqBody)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func register(t *testing.T, baseURL string) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, baseURL+"/api/v1/auth/register", "", api.PasswordRequest{Password: testPassword})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tok := decode[api.TokenResponse](t, resp)
	require.NotEmpty(t, tok.Token)
	return tok.Token
}

func TestStatus(t *testing.T) {
	srv := setupServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/status", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, api.StatusResponse{}, decode[api.StatusResponse](t, resp))

	register(t, srv.URL)
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/status", "", nil)
	assert.Equal(t, api.StatusResponse{Registered: true, LoggedIn: true}, decode[api.StatusResponse](t, resp))
}

func TestRegisterValidation(t *testing.T) {
	srv := setupServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/register", "", api.PasswordRequest{Password: "short"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/register", "", map[string]string{"password": testPassword, "extra": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	register(t, srv.URL)
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/register", "", api.PasswordRequest{Password: testPassword})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	srv := setupServer(t)
	register(t, srv.URL)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/settings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/settings", "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutInvalidatesTokens(t *testing.T) {
	srv := setupServer(t)
	token := register(t, srv.URL)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/settings", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "", api.PasswordRequest{Password: "wrong password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "", api.PasswordRequest{Password: testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tok := decode[api.TokenResponse](t, resp)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/settings", tok.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "", api.PasswordRequest{Password: testPassword})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLoginRateLimited(t *testing.T) {
	var alerts []api.AlertEvent
	srv := setupServer(t, api.WithAlertFunc(func(e api.AlertEvent) { alerts = append(alerts, e) }))
	token := register(t, srv.URL)
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	for range 5 {
		resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "", api.PasswordRequest{Password: "wrong password"})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "", api.PasswordRequest{Password: testPassword})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Empty(t, alerts)
}

func TestSettings(t *testing.T) {
	srv := setupServer(t)
	token := register(t, srv.URL)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/settings", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	before := decode[core.Settings](t, resp)
	assert.Equal(t, core.ThemeSystem, before.Theme)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/settings", token, api.SettingsRequest{
		DisplayName: "Me", Theme: core.ThemeDark, Notifications: true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	after := decode[core.Settings](t, resp)
	assert.Equal(t, "Me", after.DisplayName)
	assert.Equal(t, before.Address, after.Address)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/settings", token, api.SettingsRequest{Theme: "neon"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestContactsAndMessages(t *testing.T) {
	transport := core.NewLoopbackTransport()
	alice := setupServerWithTransport(t, transport)
	bob := setupServerWithTransport(t, transport)
	aliceToken := register(t, alice.URL)
	bobToken := register(t, bob.URL)

	aliceAddr := decode[core.Settings](t, doJSON(t, http.MethodGet, alice.URL+"/api/v1/settings", aliceToken, nil)).Address
	bobAddr := decode[core.Settings](t, doJSON(t, http.MethodGet, bob.URL+"/api/v1/settings", bobToken, nil)).Address

	resp := doJSON(t, http.MethodPost, alice.URL+"/api/v1/contacts", aliceToken, api.AddContactRequest{Name: "Bob", Address: bobAddr})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	bobContact := decode[core.Contact](t, resp)

	resp = doJSON(t, http.MethodPost, alice.URL+"/api/v1/contacts", aliceToken, api.AddContactRequest{Name: "Bob", Address: bobAddr})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, bob.URL+"/api/v1/contacts", bobToken, api.AddContactRequest{Name: "Alice", Address: aliceAddr})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, alice.URL+"/api/v1/contacts", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[api.ListContactsResponse](t, resp)
	require.Len(t, list.Contacts, 1)
	assert.Equal(t, 1, list.TotalCount)

	resp = doJSON(t, http.MethodGet, alice.URL+"/api/v1/contacts/"+bobContact.ID, aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bob", decode[core.Contact](t, resp).Name)

	resp = doJSON(t, http.MethodPost, alice.URL+"/api/v1/contacts/"+bobContact.ID+"/messages", aliceToken, api.SendMessageRequest{Body: "hello bob"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sent := decode[core.Message](t, resp)

	resp = doJSON(t, http.MethodPost, bob.URL+"/api/v1/messages/receive", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	received := decode[api.ListMessagesResponse](t, resp)
	require.Len(t, received.Messages, 1)
	assert.Equal(t, sent.ID, received.Messages[0].ID)
	assert.Equal(t, "hello bob", received.Messages[0].Body)

	resp = doJSON(t, http.MethodGet, alice.URL+"/api/v1/contacts/"+bobContact.ID+"/messages?limit=10", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decode[api.ListMessagesResponse](t, resp)
	require.Len(t, history.Messages, 1)
	assert.Equal(t, 10, history.Limit)

	resp = doJSON(t, http.MethodDelete, alice.URL+"/api/v1/contacts/"+bobContact.ID, aliceToken, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = doJSON(t, http.MethodGet, alice.URL+"/api/v1/contacts/"+bobContact.ID+"/messages", aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChangePassword(t *testing.T) {
	srv := setupServer(t)
	token := register(t, srv.URL)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/password", token, api.ChangePasswordRequest{
		OldPassword: "not the password", NewPassword: "a brand new password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/password", token, api.ChangePasswordRequest{
		OldPassword: testPassword, NewPassword: "a brand new password",
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "", api.PasswordRequest{Password: "a brand new password"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReset(t *testing.T) {
	srv := setupServer(t)
	token := register(t, srv.URL)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/reset", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/settings", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/status", "", nil)
	assert.Equal(t, api.StatusResponse{}, decode[api.StatusResponse](t, resp))

	register(t, srv.URL)
}

func TestOpenAPIServed(t *testing.T) {
	srv := setupServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/openapi.yaml", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "openapi:")
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}
