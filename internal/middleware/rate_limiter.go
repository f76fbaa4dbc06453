package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter controls how frequently a caller may perform an action.
type RateLimiter interface {
	Allow(key string) bool
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// keyRateLimiter tracks request rates per key with expiration. Keys are client
// IPs for the auth endpoints and user ids for recipe generation.
type keyRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
}

// NewKeyRateLimiter constructs a per-key rate limiter that allows up to `requests`
// events per `window` with an additional burst capacity. Entries expire after the
// provided ttl when no longer used.
func NewKeyRateLimiter(requests int, window time.Duration, burst int, ttl time.Duration) RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Second
	}
	if burst <= 0 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &keyRateLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Every(window / time.Duration(requests)),
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (l *keyRateLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}

	now := l.now()

	l.mu.Lock()
	entry := l.entryLocked(key, now)
	l.evictStaleLocked(now)
	l.mu.Unlock()

	return entry.limiter.Allow()
}

func (l *keyRateLimiter) entryLocked(key string, now time.Time) *limiterEntry {
	if entry, ok := l.entries[key]; ok {
		entry.lastSeen = now
		return entry
	}

	entry := &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst), lastSeen: now}
	l.entries[key] = entry
	return entry
}

func (l *keyRateLimiter) evictStaleLocked(now time.Time) {
	for key, entry := range l.entries {
		if now.Sub(entry.lastSeen) > l.ttl {
			delete(l.entries, key)
		}
	}
}

// WithNowFunc allows tests to override the time source.
func (l *keyRateLimiter) WithNowFunc(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}
