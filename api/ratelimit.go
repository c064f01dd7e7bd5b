package api

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// KeyedRateLimiter keeps one token bucket per key (user id or client IP).
type KeyedRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	b        int
}

func NewKeyedRateLimiter(r rate.Limit, b int) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		b:        b,
	}
}

func (k *KeyedRateLimiter) limiter(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.limiters[key]
	if !ok {
		l = rate.NewLimiter(k.r, k.b)
		k.limiters[key] = l
	}
	return l
}

// Allow reports whether a request for key may proceed now.
func (k *KeyedRateLimiter) Allow(key string) bool {
	return k.limiter(key).Allow()
}

// RateLimitByActor limits requests per authenticated user. It must run after
// the identity middleware; unauthenticated requests fall back to the remote address.
func RateLimitByActor(k *KeyedRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if actor, ok := ActorFromContext(r.Context()); ok {
				key = "user:" + string(actor.UserID)
			}
			if !k.Allow(key) {
				writeErrorCode(w, http.StatusTooManyRequests, "Too many requests", "rate_limited")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
