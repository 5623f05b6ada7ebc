package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/talkbridge/pkg/logger"
)

const secret = "test-secret"

func signToken(t *testing.T, key string, subject string, scopes ...string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scopes: scopes,
	})
	signed, err := token.SignedString([]byte(key))
	require.NoError(t, err)
	return signed
}

func echoSubject() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(GetSubject(r.Context())))
	})
}

func TestAuth(t *testing.T) {
	h := Auth(secret)(echoSubject())

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid", "Bearer " + signToken(t, secret, "alice"), http.StatusOK, "alice"},
		{"missing", "", http.StatusUnauthorized, "missing authorization header"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "invalid authorization header format"},
		{"wrong key", "Bearer " + signToken(t, "other", "alice"), http.StatusUnauthorized, "invalid token"},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized, "invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestRequireScope(t *testing.T) {
	h := Auth(secret)(RequireScope(ScopeWrite)(echoSubject()))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "alice", ScopeRead))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "alice", ScopeRead, ScopeWrite))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(2, time.Minute)(echoSubject())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestLogging_CorrelationID(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Logging(logger.Nop()))
	r.Get("/rooms/{token}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(GetCorrelationID(r.Context())))
	})

	req := httptest.NewRequest(http.MethodGet, "/rooms/abc", nil)
	req.Header.Set("X-Correlation-ID", "corr-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "corr-1", rec.Body.String())
	assert.Equal(t, "corr-1", rec.Header().Get("X-Correlation-ID"))

	req = httptest.NewRequest(http.MethodGet, "/rooms/abc", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Len(t, rec.Header().Get("X-Correlation-ID"), 36)
}

func TestValidation(t *testing.T) {
	assert.NoError(t, ValidateRoomToken("a1b2c3d4"))
	assert.Error(t, ValidateRoomToken(""))
	assert.Error(t, ValidateRoomToken("../etc"))

	assert.NoError(t, ValidateMessageContent("hello"))
	assert.Error(t, ValidateMessageContent("   "))
	assert.Error(t, ValidateMessageContent(strings.Repeat("x", MaxMessageLength+1)))
	assert.NoError(t, ValidateMessageContent(strings.Repeat("é", MaxMessageLength)))

	assert.NoError(t, ValidateRoomName("Team"))
	assert.Error(t, ValidateRoomName(strings.Repeat("n", 256)))
}
