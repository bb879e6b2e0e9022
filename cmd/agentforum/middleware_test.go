package main

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/BaSui01/agentforum/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(okHandler())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
}

func TestSecurityHeaders_ChainedWithOtherMiddleware(t *testing.T) {
	handler := Chain(okHandler(), SecurityHeaders(), RequestID())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

// =============================================================================
// RequestID
// =============================================================================

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.True(t, strings.HasPrefix(seen, "req-"))
		assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
	})

	t.Run("client id preserved", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Request-ID", "abc-123")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
	})

	t.Run("oversized id replaced", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Request-ID", strings.Repeat("x", 200))
		handler.ServeHTTP(httptest.NewRecorder(), r)
		assert.True(t, strings.HasPrefix(seen, "req-"))
	})
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, RequestIDFromContext(r.Context()))
}

// =============================================================================
// Recovery
// =============================================================================

func TestRecovery(t *testing.T) {
	handler := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}), Recovery(zap.NewNop()))

	w := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestRecovery_AbortHandlerRepanics(t *testing.T) {
	handler := Recovery(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

// =============================================================================
// Auth
// =============================================================================

const testSecret = "test-secret-with-enough-bytes-for-hs256"

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuth_Disabled(t *testing.T) {
	handler := Auth(config.AuthConfig{}, zap.NewNop())(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/conversation", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_APIKey(t *testing.T) {
	var principal string
	handler := Auth(config.AuthConfig{APIKeys: []string{"key-1", "key-2"}}, zap.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, _ = PrincipalFromContext(r.Context())
		}))

	tests := []struct {
		name   string
		key    string
		status int
	}{
		{"valid first key", "key-1", http.StatusOK},
		{"valid second key", "key-2", http.StatusOK},
		{"wrong key", "nope", http.StatusUnauthorized},
		{"missing key", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			principal = ""
			r := httptest.NewRequest(http.MethodGet, "/api/v1/conversation", nil)
			if tt.key != "" {
				r.Header.Set("X-API-Key", tt.key)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "api-key", principal)
			} else {
				assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
				assert.Contains(t, w.Body.String(), "AUTHENTICATION")
			}
		})
	}
}

func TestAuth_JWT(t *testing.T) {
	cfg := config.AuthConfig{JWTSecret: testSecret, JWTIssuer: "agentforum"}
	var principal string
	handler := Auth(cfg, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ = PrincipalFromContext(r.Context())
	}))

	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))

	tests := []struct {
		name      string
		token     string
		status    int
		principal string
	}{
		{
			name:      "valid token",
			token:     signToken(t, testSecret, jwt.RegisteredClaims{Subject: "ops", Issuer: "agentforum", ExpiresAt: future}),
			status:    http.StatusOK,
			principal: "ops",
		},
		{
			name:      "no subject",
			token:     signToken(t, testSecret, jwt.RegisteredClaims{Issuer: "agentforum", ExpiresAt: future}),
			status:    http.StatusOK,
			principal: "jwt",
		},
		{
			name:   "expired",
			token:  signToken(t, testSecret, jwt.RegisteredClaims{Subject: "ops", Issuer: "agentforum", ExpiresAt: past}),
			status: http.StatusUnauthorized,
		},
		{
			name:   "missing expiry",
			token:  signToken(t, testSecret, jwt.RegisteredClaims{Subject: "ops", Issuer: "agentforum"}),
			status: http.StatusUnauthorized,
		},
		{
			name:   "wrong issuer",
			token:  signToken(t, testSecret, jwt.RegisteredClaims{Subject: "ops", Issuer: "someone-else", ExpiresAt: future}),
			status: http.StatusUnauthorized,
		},
		{
			name:   "wrong secret",
			token:  signToken(t, "another-secret-another-secret-123", jwt.RegisteredClaims{Issuer: "agentforum", ExpiresAt: future}),
			status: http.StatusUnauthorized,
		},
		{
			name:   "garbage",
			token:  "not.a.token",
			status: http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			principal = ""
			r := httptest.NewRequest(http.MethodGet, "/api/v1/conversation", nil)
			r.Header.Set("Authorization", "Bearer "+tt.token)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.principal, principal)
		})
	}
}

func TestAuth_MissingCredentials(t *testing.T) {
	handler := Auth(config.AuthConfig{JWTSecret: testSecret}, zap.NewNop())(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/conversation", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing credentials")
}

func TestAuth_RejectsNoneAlgorithm(t *testing.T) {
	handler := Auth(config.AuthConfig{JWTSecret: testSecret}, zap.NewNop())(okHandler())

	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// =============================================================================
// RateLimiter
// =============================================================================

func TestRateLimiter(t *testing.T) {
	handler := RateLimiter(1, 2)(okHandler())

	do := func(remote string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1001").Code)

	limited := do("10.0.0.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))
	assert.Contains(t, limited.Body.String(), "RATE_LIMITED")

	// 其他 IP 拥有独立的令牌桶
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1000").Code)
}

func TestRateLimiter_Disabled(t *testing.T) {
	handler := RateLimiter(0, 0)(okHandler())
	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

// =============================================================================
// CORS
// =============================================================================

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://forum.example.com"})(okHandler())

	t.Run("allowed origin", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "https://forum.example.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://forum.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin gets no headers", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight allowed", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, "/", nil)
		r.Header.Set("Origin", "https://forum.example.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("preflight rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, "/", nil)
		r.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

// =============================================================================
// MetricsMiddleware / OTelTracing
// =============================================================================

type recordedRequest struct {
	method string
	path   string
	status int
	size   int64
}

type fakeRecorder struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (f *fakeRecorder) RecordHTTPRequest(method, path string, status int, _ time.Duration, size int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, recordedRequest{method: method, path: path, status: status, size: size})
}

func TestMetricsMiddleware(t *testing.T) {
	rec := &fakeRecorder{}
	handler := MetricsMiddleware(rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.Write([]byte("healthy"))
			return
		}
		http.NotFound(w, r)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/unknown/123", nil))

	require.Len(t, rec.requests, 2)
	assert.Equal(t, recordedRequest{method: "GET", path: "/health", status: 200, size: 7}, rec.requests[0])
	assert.Equal(t, "other", rec.requests[1].path)
	assert.Equal(t, http.StatusNotFound, rec.requests[1].status)
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/api/v1/conversation/messages", normalizePath("/api/v1/conversation/messages"))
	assert.Equal(t, "/ws/events", normalizePath("/ws/events"))
	assert.Equal(t, "other", normalizePath("/api/v1/conversation/messages/42"))
	assert.Equal(t, "other", normalizePath("/favicon.ico"))
}

func TestOTelTracing_PassesThrough(t *testing.T) {
	handler := Chain(okHandler(), RequestID(), OTelTracing(noop.NewTracerProvider().Tracer("test")))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

// =============================================================================
// statusRecorder
// =============================================================================

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, nil
}

func TestStatusRecorder(t *testing.T) {
	t.Run("defaults to 200", func(t *testing.T) {
		rw := newStatusRecorder(httptest.NewRecorder())
		rw.Write([]byte("hello"))
		assert.Equal(t, http.StatusOK, rw.statusCode)
		assert.Equal(t, int64(5), rw.bytesWritten)
	})

	t.Run("reuses existing recorder", func(t *testing.T) {
		rw := newStatusRecorder(httptest.NewRecorder())
		assert.Same(t, rw, newStatusRecorder(rw))
	})

	t.Run("hijack delegates", func(t *testing.T) {
		inner := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
		rw := newStatusRecorder(inner)
		_, _, err := rw.Hijack()
		require.NoError(t, err)
		assert.True(t, inner.hijacked)
		assert.Equal(t, http.ResponseWriter(inner), rw.Unwrap())
	})

	t.Run("hijack unsupported", func(t *testing.T) {
		rw := newStatusRecorder(httptest.NewRecorder())
		_, _, err := rw.Hijack()
		assert.Error(t, err)
	})
}
