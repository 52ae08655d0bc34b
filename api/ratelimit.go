package api

import (
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// maxFailures consecutive failures from one client start its lockout.
	maxFailures = 5
	// baseLockout doubles for every failure past maxFailures, up to maxLockout.
	baseLockout = 1 * time.Minute
	maxLockout  = 15 * time.Minute
	// attemptExpiry forgets a client this long after its last failure.
	attemptExpiry = 1 * time.Hour

	// globalMaxFailures failures from any clients within globalWindow lock
	// every login for globalLockout, so rotating addresses gains nothing.
	globalMaxFailures = 30
	globalWindow      = 1 * time.Minute
	globalLockout     = 5 * time.Minute
)

// limitScope says which limit rejected a login.
type limitScope string

const (
	scopeNone   limitScope = ""
	scopeClient limitScope = "client"
	scopeGlobal limitScope = "global"
)

// lockout is a deadline before which logins are refused.
type lockout struct {
	until time.Time
}

func (l lockout) remaining(now time.Time) time.Duration {
	if now.Before(l.until) {
		return l.until.Sub(now)
	}
	return 0
}

type clientRecord struct {
	lockout
	failures    int
	lastFailure time.Time
}

// loginRateLimiter throttles failed logins per client IP with exponential
// backoff, and across all clients with a sliding window.
type loginRateLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	clients map[string]*clientRecord
	global  lockout
	recent  []time.Time
}

func newLoginRateLimiter() *loginRateLimiter {
	return &loginRateLimiter{
		now:     time.Now,
		clients: make(map[string]*clientRecord),
	}
}

// check reports whether a login from clientIP must be refused and for how
// long. The global limit is checked first.
func (rl *loginRateLimiter) check(clientIP string) (limitScope, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if d := rl.global.remaining(now); d > 0 {
		return scopeGlobal, d
	}
	rec, ok := rl.clients[clientIP]
	if !ok {
		return scopeNone, 0
	}
	if now.Sub(rec.lastFailure) > attemptExpiry {
		delete(rl.clients, clientIP)
		return scopeNone, 0
	}
	if d := rec.remaining(now); d > 0 {
		return scopeClient, d
	}
	return scopeNone, 0
}

// recordFailure counts a failed login against clientIP and the global window.
func (rl *loginRateLimiter) recordFailure(clientIP string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rec, ok := rl.clients[clientIP]
	if !ok {
		rec = &clientRecord{}
		rl.clients[clientIP] = rec
	}
	rec.failures++
	rec.lastFailure = now
	if rec.failures >= maxFailures {
		rec.until = now.Add(backoff(rec.failures - maxFailures))
	}

	rl.recent = trimWindow(append(rl.recent, now), now, globalWindow)
	if len(rl.recent) >= globalMaxFailures {
		rl.global.until = now.Add(globalLockout)
	}
}

// recordSuccess forgets clientIP's failures. The global window is kept.
func (rl *loginRateLimiter) recordSuccess(clientIP string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.clients, clientIP)
}

// sweep drops clients whose last failure is older than attemptExpiry.
func (rl *loginRateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, rec := range rl.clients {
		if now.Sub(rec.lastFailure) > attemptExpiry {
			delete(rl.clients, ip)
		}
	}
	rl.recent = trimWindow(rl.recent, now, globalWindow)
}

// backoff returns baseLockout doubled extra times, capped at maxLockout.
func backoff(extra int) time.Duration {
	d := baseLockout
	for range extra {
		d *= 2
		if d >= maxLockout {
			return maxLockout
		}
	}
	return d
}

// writeRateLimited sends a 429 Too Many Requests response.
func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	w.Header().Set("Retry-After", retryAfterString(retryAfter))
	writeError(w, http.StatusTooManyRequests, "too many failed login attempts; try again later")
}

func retryAfterString(d time.Duration) string {
	return strconv.Itoa(max(int(d.Seconds()), 1))
}

// extractClientIP returns the client IP for rate limiting, honoring the
// API's trusted proxies.
func (a *API) extractClientIP(r *http.Request) string {
	return extractClientIPWithProxies(r, a.trustedProxies)
}

// extractClientIPWithProxies returns the best-effort client IP address.
//
// Forwarding headers are read only when RemoteAddr lies in trustedProxies.
// They are tried in order: X-Forwarded-For, Forwarded "for=", X-Real-IP.
// The first valid address wins, and RemoteAddr is the fallback.
func extractClientIPWithProxies(r *http.Request, trustedProxies []netip.Prefix) string {
	remote, _ := parseIPCandidate(r.RemoteAddr)
	if !isTrustedProxy(remote, trustedProxies) {
		return remote
	}
	for _, raw := range forwardedCandidates(r.Header) {
		if ip, ok := parseIPCandidate(raw); ok {
			return ip
		}
	}
	return remote
}

func isTrustedProxy(ip string, trusted []netip.Prefix) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// forwardedCandidates lists client address candidates from proxy headers
// in priority order.
func forwardedCandidates(h http.Header) []string {
	var out []string
	out = append(out, strings.Split(h.Get("X-Forwarded-For"), ",")...)
	for _, elem := range strings.Split(h.Get("Forwarded"), ",") {
		for _, param := range strings.Split(elem, ";") {
			key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
			if ok && strings.EqualFold(key, "for") {
				out = append(out, value)
			}
		}
	}
	return append(out, h.Get("X-Real-IP"))
}

func parseIPCandidate(raw string) (string, bool) {
	s := strings.Trim(strings.TrimSpace(raw), "\"")
	if s == "" {
		return "", false
	}
	// host:port and [v6]:port
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	// Zones (fe80::1%eth0) are not part of the address.
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}
