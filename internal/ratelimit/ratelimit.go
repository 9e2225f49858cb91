package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/isdelr/msgboard-be/internal/metrics"
	"golang.org/x/time/rate"
)

// Limiter is a pool of per-client token buckets keyed by remote IP.
type Limiter struct {
	mu    sync.Mutex
	m     map[string]*entry
	rps   rate.Limit
	burst int
}

type entry struct {
	lim  *rate.Limiter
	seen time.Time
}

// New creates a limiter pool. Non-positive arguments fall back to
// defaults that keep a small site usable.
func New(rps float64, burst int) *Limiter {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 30
	}
	return &Limiter{
		m:     make(map[string]*entry),
		rps:   rate.Limit(rps),
		burst: burst,
	}
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.m[key]; ok {
		e.seen = time.Now()
		return e.lim
	}
	e := &entry{lim: rate.NewLimiter(l.rps, l.burst), seen: time.Now()}
	l.m[key] = e
	return e.lim
}

// Allow reports whether the client identified by key may proceed.
func (l *Limiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// Evict drops buckets idle for longer than olderThan and returns how
// many were removed. Run periodically so one-off clients don't
// accumulate forever.
func (l *Limiter) Evict(olderThan time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	n := 0
	for key, e := range l.m {
		if e.seen.Before(cutoff) {
			delete(l.m, key)
			n++
		}
	}
	return n
}

// Middleware rejects over-limit requests with a 429 and the standard
// JSON error envelope.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if host, _, err := net.SplitHostPort(key); err == nil {
			key = host
		}
		if !l.Allow(key) {
			metrics.RateLimited.Inc()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"message": "Too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
