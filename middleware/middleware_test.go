package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mitra/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSession struct {
	authenticated bool
	expired       bool
}

func (s stubSession) Authenticated() bool { return s.authenticated }
func (s stubSession) Expired() bool       { return s.expired }
func (s stubSession) User() *models.User  { return &models.User{ID: 7, Role: "mitra"} }

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestRequireMitraSession(t *testing.T) {
	cases := []struct {
		name    string
		session stubSession
		want    int
	}{
		{"signed in", stubSession{authenticated: true}, http.StatusOK},
		{"no token", stubSession{}, http.StatusUnauthorized},
		{"expired token", stubSession{authenticated: true, expired: true}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newEngine(RequireMitraSession(tc.session))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func pingFrom(r *gin.Engine, remoteAddr, forwardedFor string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitMiddleware(t *testing.T) {
	r := newEngine(RateLimitMiddleware(2))
	require.NoError(t, r.SetTrustedProxies(nil))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, pingFrom(r, "192.0.2.1:5000", ""))
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	assert.Equal(t, http.StatusOK, pingFrom(r, "192.0.2.2:5000", ""), "limits are per client IP")
}

func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	r := newEngine(RateLimitMiddleware(1))
	require.NoError(t, r.SetTrustedProxies(nil))

	assert.Equal(t, http.StatusOK, pingFrom(r, "192.0.2.1:5000", "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, pingFrom(r, "192.0.2.1:5000", "10.0.0.2"),
		"a fresh X-Forwarded-For must not buy a fresh bucket")
}

func TestRateLimitHonorsTrustedProxy(t *testing.T) {
	r := newEngine(RateLimitMiddleware(1))
	require.NoError(t, r.SetTrustedProxies([]string{"192.0.2.10"}))

	assert.Equal(t, http.StatusOK, pingFrom(r, "192.0.2.10:5000", "203.0.113.1"))
	assert.Equal(t, http.StatusOK, pingFrom(r, "192.0.2.10:5000", "203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, pingFrom(r, "192.0.2.10:5000", "203.0.113.1"))
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := newRateLimiterStore(1)
	store.now = func() time.Time { return now }
	r := newEngine(rateLimit(store))
	require.NoError(t, r.SetTrustedProxies(nil))

	assert.Equal(t, http.StatusOK, pingFrom(r, "192.0.2.1:5000", ""))
	assert.Equal(t, http.StatusOK, pingFrom(r, "192.0.2.2:5000", ""))
	assert.Equal(t, 2, store.size())

	now = now.Add(limiterIdleTTL / 2)
	assert.Equal(t, http.StatusTooManyRequests, pingFrom(r, "192.0.2.2:5000", ""))

	now = now.Add(limiterIdleTTL/2 + time.Second)
	assert.Equal(t, http.StatusOK, pingFrom(r, "192.0.2.3:5000", ""))
	assert.Equal(t, 2, store.size(), "idle client swept, recent one kept")
}

func TestRequestLoggerPropagatesRequestID(t *testing.T) {
	r := newEngine(RequestLogger(zap.NewNop()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "abc")
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
