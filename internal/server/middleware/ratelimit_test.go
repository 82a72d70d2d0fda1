package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	logger, _ := bufferLogger()

	t.Run("within limit", func(t *testing.T) {
		rl := NewRateLimiter(5, time.Minute, logger)
		defer rl.Stop()

		for i := 0; i < 5; i++ {
			assert.True(t, rl.Allow("client-1"), "request %d should pass", i)
		}
	})

	t.Run("over limit", func(t *testing.T) {
		rl := NewRateLimiter(3, time.Minute, logger)
		defer rl.Stop()

		for i := 0; i < 3; i++ {
			assert.True(t, rl.Allow("client-1"))
		}
		assert.False(t, rl.Allow("client-1"))
	})

	t.Run("keys are independent", func(t *testing.T) {
		rl := NewRateLimiter(2, time.Minute, logger)
		defer rl.Stop()

		assert.True(t, rl.Allow("key1"))
		assert.True(t, rl.Allow("key1"))
		assert.False(t, rl.Allow("key1"))

		assert.True(t, rl.Allow("key2"))
		assert.True(t, rl.Allow("key2"))
	})

	t.Run("concurrent first requests share one bucket", func(t *testing.T) {
		const rate = 4
		const clients = 16

		rl := NewRateLimiter(rate, time.Minute, logger)
		defer rl.Stop()

		var allowed atomic.Int64
		var wg sync.WaitGroup
		start := make(chan struct{})

		for i := 0; i < clients; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if rl.Allow("same-key") {
					allowed.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		// The simultaneous first requests must not each install a fresh
		// bucket and double the allowance
		assert.Equal(t, int64(rate), allowed.Load())
	})

	t.Run("refill after window", func(t *testing.T) {
		rl := NewRateLimiter(2, 50*time.Millisecond, logger)
		defer rl.Stop()

		assert.True(t, rl.Allow("key"))
		assert.True(t, rl.Allow("key"))
		assert.False(t, rl.Allow("key"))

		time.Sleep(60 * time.Millisecond)

		assert.True(t, rl.Allow("key"))
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	logger, _ := bufferLogger()

	handler := RateLimitMiddleware(2, time.Minute, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/flows", nil)
		req.RemoteAddr = ip
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:1234"))

	// a different client is unaffected
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1234"))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		expectedIP string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "10.0.0.1:1234",
			expectedIP: "10.0.0.1:1234",
		},
		{
			name:       "x-forwarded-for single",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.1"},
			expectedIP: "192.168.1.1",
		},
		{
			name:       "x-forwarded-for chain takes first",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.1, 172.16.0.1"},
			expectedIP: "192.168.1.1",
		},
		{
			name:       "x-real-ip",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "192.168.1.5"},
			expectedIP: "192.168.1.5",
		},
		{
			name:       "x-forwarded-for beats x-real-ip",
			remoteAddr: "10.0.0.1:1234",
			headers: map[string]string{
				"X-Forwarded-For": "192.168.1.1",
				"X-Real-IP":       "192.168.1.5",
			},
			expectedIP: "192.168.1.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tt.expectedIP, getClientIP(req))
		})
	}
}
