package middleware_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ricbatera/credentials-fullstack/internal/api/middleware"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiter_AllowsBurstThenThrottles(t *testing.T) {
	handler := middleware.NewRateLimiter().Handler(okHandler())

	var last int
	for i := 0; i < 31; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		last = rec.Code
		if i < 30 {
			assert.Equal(t, http.StatusOK, rec.Code, "request %d within burst", i)
		}
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

// Exercises concurrent requests against a shared limiter so the race
// detector can catch unsynchronized visitor bookkeeping.
func TestRateLimiter_ConcurrentVisitors(t *testing.T) {
	handler := middleware.NewRateLimiter().Handler(okHandler())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				req := httptest.NewRequest(http.MethodGet, "/", nil)
				req.RemoteAddr = fmt.Sprintf("10.0.0.%d:5555", n%4)
				handler.ServeHTTP(httptest.NewRecorder(), req)
			}
		}(i)
	}
	wg.Wait()
}
