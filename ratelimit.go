package main

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Policy is a named quota configuration, fixed at process start.
type Policy struct {
	Name     string
	Capacity int
	Window   time.Duration
	// Block, when non-zero, makes exhaustion punitive: every attempt
	// after the capacity is spent fails with the remaining block as
	// retry-after, even if the window would have reset sooner.
	Block time.Duration
	// ByIdentity keys the bucket by the authenticated user when one is
	// attached, falling back to the client IP otherwise.
	ByIdentity bool
}

// Outcome is the result of a consumption attempt.
type Outcome struct {
	Allowed    bool
	Remaining  int
	RetryAfter int // seconds, >= 1 when throttled
}

type quotaEntry struct {
	points       int
	windowEnd    time.Time
	blockedUntil time.Time
}

// QuotaStore tracks fixed-window consumption per (policy, key). A burst
// straddling a window boundary may pass up to twice the capacity; that
// matches the upstream behavior and is accepted here.
type QuotaStore struct {
	mu      sync.Mutex
	entries map[string]*quotaEntry

	now func() time.Time
}

func NewQuotaStore() *QuotaStore {
	return &QuotaStore{
		entries: make(map[string]*quotaEntry),
		now:     time.Now,
	}
}

// Consume records one point against key under p. The increment and the
// capacity check happen under one lock so two concurrent requests can
// never both pass a capacity of one.
func (q *QuotaStore) Consume(key string, p Policy) Outcome {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	id := p.Name + ":" + key
	e, ok := q.entries[id]
	if !ok || (now.After(e.windowEnd) && now.After(e.blockedUntil)) {
		e = &quotaEntry{windowEnd: now.Add(p.Window)}
		q.entries[id] = e
	}

	if e.blockedUntil.After(now) {
		return Outcome{RetryAfter: retrySeconds(e.blockedUntil.Sub(now))}
	}

	e.points++
	if e.points > p.Capacity {
		if p.Block > 0 {
			e.blockedUntil = now.Add(p.Block)
			return Outcome{RetryAfter: retrySeconds(p.Block)}
		}
		return Outcome{RetryAfter: retrySeconds(e.windowEnd.Sub(now))}
	}
	return Outcome{Allowed: true, Remaining: p.Capacity - e.points}
}

func retrySeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}

// policyTable holds the route-prefix policies in longest-prefix order.
// The last entry is the catch-all general policy.
type policyTable struct {
	prefixes []string
	policies map[string]Policy
	general  Policy
}

func newPolicyTable(generalMax int, generalWindow time.Duration) *policyTable {
	t := &policyTable{
		prefixes: []string{"/api/auth/", "/api/ai/", "/api/upload/"},
		policies: map[string]Policy{
			"/api/auth/":   {Name: "auth", Capacity: 5, Window: 15 * time.Minute, Block: 15 * time.Minute},
			"/api/ai/":     {Name: "ai", Capacity: 10, Window: time.Minute, ByIdentity: true},
			"/api/upload/": {Name: "upload", Capacity: 20, Window: time.Hour, ByIdentity: true},
		},
		general: Policy{Name: "general", Capacity: generalMax, Window: generalWindow},
	}
	return t
}

// PolicyFor classifies a request path by longest prefix match.
func (t *policyTable) PolicyFor(path string) Policy {
	for _, p := range t.prefixes {
		if strings.HasPrefix(path, p) {
			return t.policies[p]
		}
	}
	return t.general
}

// quotaKey derives the bucket key for a request under p. Rate limiting
// runs before the identity middleware, so identity keying only takes
// effect when an earlier stage already attached a user; anonymous
// traffic shares the IP bucket.
func quotaKey(r *http.Request, p Policy) string {
	if p.ByIdentity {
		if u := identityFrom(r.Context()); u != nil {
			return "user:" + strconv.FormatInt(u.ID, 10)
		}
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit middleware enforces the per-route quota policies.
func (a *App) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip rate limiting for health/ready endpoints
		if strings.HasPrefix(r.URL.Path, "/health") || strings.HasPrefix(r.URL.Path, "/ready") {
			next.ServeHTTP(w, r)
			return
		}

		policy := a.Policies.PolicyFor(r.URL.Path)
		out := a.Quota.Consume(quotaKey(r, policy), policy)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(policy.Capacity))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(out.Remaining))
		if !out.Allowed {
			a.writeFailure(w, &AppError{
				Kind:       KindRateLimited,
				Message:    "Too many requests, please try again later",
				RetryAfter: out.RetryAfter,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
