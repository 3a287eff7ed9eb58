package rest

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/time/rate"

	"costguardian/pkg/errors"
	"costguardian/pkg/logger"
)

// Limiter decides whether a client may make one more request
type Limiter interface {
	Allow(ctx context.Context, client string) (bool, error)
}

// MemoryLimiter keeps one token bucket per client in process. The least
// recently seen clients are evicted once maxClients is reached.
type MemoryLimiter struct {
	mu       sync.Mutex
	limiters *simplelru.LRU[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

// NewMemoryLimiter creates an in-process limiter allowing rps requests per second with the given burst
func NewMemoryLimiter(rps float64, burst, maxClients int) (*MemoryLimiter, error) {
	if rps <= 0 {
		return nil, errors.NewValidationError("rps", "must be positive", rps)
	}
	if burst <= 0 {
		burst = 1
	}

	lru, err := simplelru.NewLRU[string, *rate.Limiter](maxClients, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create limiter cache")
	}

	return &MemoryLimiter{
		limiters: lru,
		limit:    rate.Limit(rps),
		burst:    burst,
	}, nil
}

// Allow takes a token from the client's bucket
func (m *MemoryLimiter) Allow(_ context.Context, client string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.limiters.Get(client)
	if !ok {
		l = rate.NewLimiter(m.limit, m.burst)
		m.limiters.Add(client, l)
	}
	return l.Allow(), nil
}

// RateLimiter rejects requests over the client's budget with 429
type RateLimiter struct {
	limiter    Limiter
	retryAfter string
	log        *logger.Logger
}

// NewRateLimiter wraps limiter as HTTP middleware. rps sets the Retry-After hint.
func NewRateLimiter(limiter Limiter, rps float64, log *logger.Logger) *RateLimiter {
	retry := 1
	if rps > 0 {
		retry = max(1, int(time.Duration(float64(time.Second)/rps).Seconds()+0.5))
	}
	return &RateLimiter{
		limiter:    limiter,
		retryAfter: strconv.Itoa(retry),
		log:        log.With("middleware", "rate_limit"),
	}
}

// Middleware applies the limit per client. A failing limiter lets the request through.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientKey(r)

		allowed, err := rl.limiter.Allow(r.Context(), client)
		if err != nil {
			rl.log.Warnw("Rate limiter unavailable, allowing request", "client", client, "error", err)
			allowed = true
		}
		if !allowed {
			rl.log.Debugw("Rate limit exceeded", "client", client, "path", r.URL.Path)
			w.Header().Set("Retry-After", rl.retryAfter)
			writeError(w, rl.log, errors.Wrapf(errors.ErrRateLimitExceeded, "client %s", client))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller: the user header when present, else the remote IP
func clientKey(r *http.Request) string {
	if id := r.Header.Get(HeaderUserID); id != "" {
		return "user:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
