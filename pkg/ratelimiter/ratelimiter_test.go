package ratelimiter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Wait(t *testing.T) {
	t.Run("PacesCallsToTheConfiguredRate", func(t *testing.T) {
		l := New(20, 1)

		start := time.Now()
		for i := 0; i < 3; i++ {
			_, err := l.Wait(context.Background())
			require.NoError(t, err)
		}
		// first token is immediate, the next two take ~50ms each
		assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	})

	t.Run("CancelledContextFails", func(t *testing.T) {
		l := New(0.001, 1)
		_, err := l.Wait(context.Background())
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err = l.Wait(ctx)
		assert.Error(t, err)
	})

	t.Run("UnlimitedNeverBlocks", func(t *testing.T) {
		l := Unlimited()
		for i := 0; i < 100; i++ {
			waited, err := l.Wait(context.Background())
			require.NoError(t, err)
			assert.Less(t, waited, 10*time.Millisecond)
		}
	})
}

func TestIPLimiter(t *testing.T) {
	rl := NewIPLimiter(2, 2, time.Minute)

	assert.True(t, rl.IsAllowed("1.1.1.1"))
	assert.True(t, rl.IsAllowed("1.1.1.1"))
	assert.False(t, rl.IsAllowed("1.1.1.1"))
	assert.True(t, rl.IsAllowed("2.2.2.2"), "limits are per client")
	assert.Equal(t, 2, rl.Size())

	rl.nowFunc = func() time.Time { return time.Now().Add(2 * time.Minute) }
	rl.Cleanup()
	assert.Equal(t, 0, rl.Size())
}

func TestIPLimiter_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewIPLimiter(1, 1, time.Minute)

	engine := gin.New()
	engine.Use(rl.Middleware())
	engine.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}
