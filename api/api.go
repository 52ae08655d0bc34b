// Package api exposes a core.Core over a local JSON HTTP interface.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/sealbox/core"
)

//go:embed openapi.yaml
var openapiSpec []byte

// API holds the dependencies needed by the REST handlers.
type API struct {
	core           *core.Core
	sessions       SessionStore
	rateLimiter    *loginRateLimiter
	audit          *auditLogger
	trustedProxies []netip.Prefix
	sessionTTL     time.Duration
	idleTimeout    time.Duration
	alertFn        AlertFunc
	basePath       string
}

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithSessionStore replaces the in-memory session store.
func WithSessionStore(store SessionStore) Option {
	return func(a *API) {
		a.sessions = store
	}
}

// WithSessionTTL sets the absolute lifetime of a bearer token.
// Default: 12h.
func WithSessionTTL(d time.Duration) Option {
	return func(a *API) {
		a.sessionTTL = d
	}
}

// WithIdleTimeout expires tokens that have not been used for d.
// Default: 30m. Zero disables the idle check.
func WithIdleTimeout(d time.Duration) Option {
	return func(a *API) {
		a.idleTimeout = d
	}
}

// WithTrustedProxies lists the proxy ranges whose forwarding headers are
// honored when attributing login attempts to a client IP.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(a *API) {
		a.trustedProxies = prefixes
	}
}

// WithAlertFunc installs a callback for login failure spikes.
func WithAlertFunc(fn AlertFunc) Option {
	return func(a *API) {
		a.alertFn = fn
	}
}

// WithBasePath sets the prefix the router is mounted under, used for the
// documentation links. Default: /api/v1.
func WithBasePath(path string) Option {
	return func(a *API) {
		a.basePath = path
	}
}

const (
	defaultSessionTTL  = 12 * time.Hour
	defaultIdleTimeout = 30 * time.Minute
	defaultBasePath    = "/api/v1"
)

// New creates a new API instance.
func New(c *core.Core, opts ...Option) *API {
	a := &API{
		core:        c,
		rateLimiter: newLoginRateLimiter(),
		sessionTTL:  defaultSessionTTL,
		idleTimeout: defaultIdleTimeout,
		basePath:    defaultBasePath,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	if a.alertFn != nil {
		a.audit.metrics = newMetricsCollector(a.alertFn)
	}
	if a.sessions == nil {
		a.sessions = NewMemorySessionStore(a.idleTimeout)
	}
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(SecurityHeaders)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: a.basePath + "/openapi.yaml",
		Path:    strings.TrimPrefix(a.basePath, "/") + "/docs",
	}, nil))

	r.Get("/status", a.Status)
	r.Post("/auth/register", a.Register)
	r.Post("/auth/login", a.Login)

	r.Group(func(r chi.Router) {
		r.Use(a.AuthMiddleware)
		r.Post("/auth/logout", a.Logout)
		r.Post("/auth/password", a.ChangePassword)

		r.Get("/settings", a.GetSettings)
		r.Put("/settings", a.UpdateSettings)

		r.Get("/contacts", a.ListContacts)
		r.Post("/contacts", a.AddContact)
		r.Route("/contacts/{contactID}", func(r chi.Router) {
			r.Get("/", a.GetContact)
			r.Delete("/", a.RemoveContact)
			r.Get("/messages", a.ListMessages)
			r.Post("/messages", a.SendMessage)
		})

		r.Post("/messages/receive", a.ReceiveMessages)
		r.Post("/reset", a.Reset)
	})

	return r
}

// Sweep drops expired login limiter state. The server calls it periodically.
func (a *API) Sweep() {
	a.rateLimiter.sweep()
}
