package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// StructuredLogger emits one slog line per request with status and timing.
func StructuredLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}

// MaxBytes caps the request body size to protect against oversized JSON.
func MaxBytes(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}

type visitor struct {
	limiter *rate.Limiter

	// lastSeen holds unix nanos; written per request and read by the
	// cleanup goroutine, so it must be atomic.
	lastSeen atomic.Int64
}

// RateLimiter applies an in-memory token bucket per client IP.
type RateLimiter struct {
	visitors sync.Map
}

func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{}
	go rl.cleanupVisitors()
	return rl
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// RealIP middleware has already resolved proxy headers.
		ip := r.RemoteAddr

		v, _ := rl.visitors.LoadOrStore(ip, &visitor{
			limiter: rate.NewLimiter(rate.Limit(10), 30),
		})

		vis := v.(*visitor)
		vis.lastSeen.Store(time.Now().UnixNano())

		if !vis.limiter.Allow() {
			http.Error(w, `{"message": "Rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) cleanupVisitors() {
	ticker := time.NewTicker(time.Minute)
	for range ticker.C {
		rl.visitors.Range(func(key, value interface{}) bool {
			last := time.Unix(0, value.(*visitor).lastSeen.Load())
			if time.Since(last) > 3*time.Minute {
				rl.visitors.Delete(key)
			}
			return true
		})
	}
}
