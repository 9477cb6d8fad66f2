// Package quota limits how many requests a single caller may issue within a
// window. Callers are identified by a user header or, failing that, by the
// client address. By default state lives in process memory and is lost on
// restart; a Counter such as RedisCounter shares it between replicas.
package quota

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultLimit      = 60
	DefaultWindow     = time.Hour
	DefaultUserHeader = "X-User-Id"
	DefaultMessage    = "Model call quota reached, please try again later."

	// pruneEvery controls how often idle callers are dropped.
	pruneEvery = 128
)

// Decision is the outcome of a single quota check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, never below one.
func (d Decision) RetryAfterSeconds() int64 {
	secs := int64(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Counter is a quota backend shared by several Limiters, typically one per
// gateway replica.
type Counter interface {
	Take(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter enforces a per-key token bucket that refills limit tokens over
// window. It is safe for concurrent use.
type Limiter struct {
	limit      int
	window     time.Duration
	userHeader string
	message    string
	now        func() time.Time
	log        *slog.Logger
	counter    Counter

	mu      sync.Mutex
	buckets map[string]*bucket
	checks  uint64
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithUserHeader sets the header consulted first when identifying callers.
func WithUserHeader(name string) Option {
	return func(l *Limiter) {
		if name = strings.TrimSpace(name); name != "" {
			l.userHeader = name
		}
	}
}

// WithMessage sets the message returned to throttled callers.
func WithMessage(msg string) Option {
	return func(l *Limiter) {
		if msg != "" {
			l.message = msg
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithCounter moves the per-caller state into c. The in-process buckets are
// then unused.
func WithCounter(c Counter) Option {
	return func(l *Limiter) { l.counter = c }
}

// WithLogger sets the logger used for throttling events.
func WithLogger(log *slog.Logger) Option {
	return func(l *Limiter) {
		if log != nil {
			l.log = log
		}
	}
}

// New returns a Limiter allowing limit requests per window for each caller.
// Non-positive values fall back to the defaults.
func New(limit int, window time.Duration, opts ...Option) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{
		limit:      limit,
		window:     window,
		userHeader: DefaultUserHeader,
		message:    DefaultMessage,
		now:        time.Now,
		log:        slog.Default(),
		buckets:    make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check consumes one request for key against the configured Counter, or
// the in-process buckets when there is none. A failing Counter lets the
// request through.
func (l *Limiter) Check(ctx context.Context, key string) Decision {
	if l.counter == nil {
		return l.Allow(key)
	}
	d, err := l.counter.Take(ctx, key, l.limit, l.window)
	if err != nil {
		l.log.ErrorContext(ctx, "quota.counter_error", slog.String("key", key), slog.String("err", err.Error()))
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit}
	}
	return d
}

// Allow consumes one request for key from the in-process buckets.
func (l *Limiter) Allow(key string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Every(l.window/time.Duration(l.limit)), l.limit)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	l.checks++
	if l.checks%pruneEvery == 0 {
		l.pruneLocked(now)
	}

	if b.lim.AllowN(now, 1) {
		return Decision{Allowed: true, Limit: l.limit, Remaining: int(b.lim.TokensAt(now))}
	}

	r := b.lim.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return Decision{Allowed: false, Limit: l.limit, RetryAfter: delay}
}

// Len reports how many callers are currently tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// pruneLocked drops callers idle for a full window; their bucket would be
// full again anyway.
func (l *Limiter) pruneLocked(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.window {
			delete(l.buckets, k)
		}
	}
}

// KeyFor identifies the caller behind r.
func (l *Limiter) KeyFor(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(l.userHeader)); v != "" {
		return "user:" + v
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return "ip:" + first
		}
	}
	if v := strings.TrimSpace(r.Header.Get("X-Real-IP")); v != "" {
		return "ip:" + v
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// Middleware rejects throttled requests with 429 before they reach next.
// Preflight requests are never counted.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		key := l.KeyFor(r)
		d := l.Check(r.Context(), key)
		if d.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		retry := d.RetryAfterSeconds()
		l.log.WarnContext(r.Context(), "quota.exceeded",
			slog.String("key", key),
			slog.String("path", r.URL.Path),
			slog.Int("limit", d.Limit),
			slog.Int64("retry_after_s", retry),
		)

		w.Header().Set("Content-Type", "application/json;charset=UTF-8")
		w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":                0,
			"msg":               l.message,
			"retryAfterSeconds": retry,
		})
	})
}
