package handlers

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/linguadesk/translator/internal/platform/httpx"
	"github.com/linguadesk/translator/internal/platform/observability"
	"github.com/linguadesk/translator/internal/platform/requestctx"
)

const tooManyRequestsMessage = "Too many requests. Please wait a moment and try again."

type rateLimiter interface {
	Allow(key string) bool
}

type simpleRateLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time
	mu     sync.Mutex
	store  map[string]rateEntry
}

type rateEntry struct {
	count int
	reset time.Time
}

// newSimpleRateLimiter returns a fixed-window limiter, or nil when limiting is disabled.
func newSimpleRateLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &simpleRateLimiter{
		limit:  limit,
		window: window,
		clock:  clock,
		store:  make(map[string]rateEntry),
	}
}

func (l *simpleRateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.store[key]
	if !ok || !now.Before(entry.reset) {
		l.store[key] = rateEntry{count: 1, reset: now.Add(l.window)}
		l.pruneExpiredLocked(now)
		return true
	}
	if entry.count >= l.limit {
		return false
	}
	entry.count++
	l.store[key] = entry
	return true
}

func (l *simpleRateLimiter) pruneExpiredLocked(now time.Time) {
	for key, entry := range l.store {
		if !now.Before(entry.reset) {
			delete(l.store, key)
		}
	}
}

// rateLimit rejects callers over the limit. Signed-in callers are keyed by uid, others by
// client address.
func rateLimit(limiter rateLimiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			if limiter.Allow(scope + ":" + key) {
				next.ServeHTTP(w, r)
				return
			}
			requestctx.Logger(r.Context()).Warn("rate limit exceeded",
				zap.String("scope", scope),
				zap.String("key", key),
			)
			w.Header().Set("Retry-After", "60")
			if observability.WantsJSON(r) {
				httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", tooManyRequestsMessage, http.StatusTooManyRequests))
				return
			}
			http.Error(w, tooManyRequestsMessage, http.StatusTooManyRequests)
		})
	}
}

func clientKey(r *http.Request) string {
	if principal, ok := requestctx.Principal(r.Context()); ok {
		return "uid:" + principal.UID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
