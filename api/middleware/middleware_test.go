package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/use-agent/postwatch/api/middleware"
	"github.com/use-agent/postwatch/config"
)

func init() { gin.SetMode(gin.TestMode) }

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(middleware.APIKeyContextKey))
	})
	return r
}

func get(r http.Handler, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	t.Parallel()

	r := newEngine(middleware.Auth([]string{"k1", "k2"}))

	tests := []struct {
		name   string
		header string
		value  string
		code   int
		body   string
	}{
		{"x-api-key", "X-API-Key", "k2", http.StatusOK, "k2"},
		{"bearer", "Authorization", "Bearer k1", http.StatusOK, "k1"},
		{"missing", "", "", http.StatusUnauthorized, "missing API key"},
		{"wrong", "X-API-Key", "nope", http.StatusUnauthorized, "invalid API key"},
		{"basic scheme ignored", "Authorization", "Basic k1", http.StatusUnauthorized, "missing API key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := get(r, tt.header, tt.value)
			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestAuth_NoKeysIsOpen(t *testing.T) {
	t.Parallel()

	w := get(newEngine(middleware.Auth([]string{""})), "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_PerCaller(t *testing.T) {
	t.Parallel()

	r := newEngine(
		middleware.Auth([]string{"a", "b"}),
		middleware.RateLimit(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}),
	)

	assert.Equal(t, http.StatusOK, get(r, "X-API-Key", "a").Code)
	assert.Equal(t, http.StatusOK, get(r, "X-API-Key", "a").Code)

	w := get(r, "X-API-Key", "a")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")

	assert.Equal(t, http.StatusOK, get(r, "X-API-Key", "b").Code, "other caller has its own bucket")
}

func TestRateLimit_DisabledWithZeroRate(t *testing.T) {
	t.Parallel()

	r := newEngine(middleware.RateLimit(config.RateLimitConfig{}))
	for range 20 {
		assert.Equal(t, http.StatusOK, get(r, "", "").Code)
	}
}
