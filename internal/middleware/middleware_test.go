package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hoursrelay/internal/reqctx"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "service-jwt-secret-for-tests"

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = reqctx.GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"internal server error"`)
}

func TestLogging_KeepsStatus(t *testing.T) {
	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func serve(h http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/email/send-notification", strings.NewReader("{}"))
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServiceAuth(t *testing.T) {
	var role, caller string
	h := ServiceAuth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ = RoleFrom(r.Context())
		caller, _ = reqctx.GetCaller(r.Context())
	}))

	token, err := GenerateServiceToken(testSecret, "platform-api", "service", time.Hour)
	require.NoError(t, err)

	rec := serve(h, "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "service", role)
	assert.Equal(t, "platform-api", caller)

	assert.Equal(t, http.StatusUnauthorized, serve(h, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "Token "+token).Code)

	other, err := GenerateServiceToken("another-secret", "x", "service", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "Bearer "+other).Code)

	expired, err := GenerateServiceToken(testSecret, "x", "service", -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "Bearer "+expired).Code)
}

func TestServiceAuth_RejectsNoneAlgAndMissingRole(t *testing.T) {
	h := ServiceAuth(testSecret)(http.HandlerFunc(okHandler))

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"role": "service",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	none, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "Bearer "+none).Code)

	noRole, err := GenerateServiceToken(testSecret, "x", "", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "Bearer "+noRole).Code)
}

func TestServiceAuth_DisabledWithoutSecret(t *testing.T) {
	h := ServiceAuth("")(AnyRole("service")(http.HandlerFunc(okHandler)))
	assert.Equal(t, http.StatusOK, serve(h, "").Code)
}

func TestAnyRole(t *testing.T) {
	h := ServiceAuth(testSecret)(AnyRole("service", "admin")(http.HandlerFunc(okHandler)))

	admin, err := GenerateServiceToken(testSecret, "x", "admin", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve(h, "Bearer "+admin).Code)

	student, err := GenerateServiceToken(testSecret, "x", "student", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, serve(h, "Bearer "+student).Code)
}

func TestIPRateLimiter(t *testing.T) {
	l := NewIPRateLimiter(60, 2)
	h := l.Middleware("verify-hours")(http.HandlerFunc(okHandler))

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/email/verify-hours", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))
	// у другого клиента своя корзина
	assert.Equal(t, http.StatusOK, call("10.0.0.2"))
}

func TestIPRateLimiter_Cleanup(t *testing.T) {
	l := NewIPRateLimiter(60, 1)
	l.idleTTL = 0
	l.Allow("10.0.0.1")
	time.Sleep(time.Millisecond)
	assert.Equal(t, 1, l.Cleanup())
}

func TestIPRateLimiter_IgnoresSpoofedForwardedFor(t *testing.T) {
	l := NewIPRateLimiter(1, 1)
	h := l.Middleware("verify-hours")(http.HandlerFunc(okHandler))

	allowed := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/email/verify-hours", nil)
		req.RemoteAddr = "203.0.113.7:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", ClientIP(req, nil))

	// без доверенных прокси заголовок игнорируется
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "192.0.2.1", ClientIP(req, nil))
}

func TestClientIP_TrustedProxies(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.0.2.1"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		remote string
		xff    []string
		want   string
	}{
		{name: "untrusted peer", remote: "198.51.100.9:1234", xff: []string{"203.0.113.5"}, want: "198.51.100.9"},
		{name: "single proxy", remote: "192.0.2.1:1234", xff: []string{"203.0.113.5"}, want: "203.0.113.5"},
		{name: "client prepends fake hop", remote: "192.0.2.1:1234", xff: []string{"1.2.3.4, 203.0.113.5"}, want: "203.0.113.5"},
		{name: "chain of trusted proxies", remote: "10.1.1.1:1234", xff: []string{"203.0.113.5, 10.2.2.2"}, want: "203.0.113.5"},
		{name: "repeated headers", remote: "10.1.1.1:1234", xff: []string{"1.2.3.4", "203.0.113.5, 10.2.2.2"}, want: "203.0.113.5"},
		{name: "only trusted hops", remote: "10.1.1.1:1234", xff: []string{"10.2.2.2"}, want: "10.1.1.1"},
		{name: "no header", remote: "192.0.2.1:1234", want: "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for _, v := range tt.xff {
				req.Header.Add("X-Forwarded-For", v)
			}
			assert.Equal(t, tt.want, ClientIP(req, trusted))
		})
	}
}

func TestParseTrustedProxies_Invalid(t *testing.T) {
	_, err := ParseTrustedProxies([]string{"10.0.0.0/99"})
	assert.Error(t, err)

	_, err = ParseTrustedProxies([]string{"proxy.local"})
	assert.Error(t, err)

	l := NewIPRateLimiter(10, 1)
	assert.Error(t, l.TrustProxies([]string{"nope"}))
}
