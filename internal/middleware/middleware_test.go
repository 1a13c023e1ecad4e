package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func identityEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(IdentityFromContext(r.Context())))
	})
}

func TestWithIdentity(t *testing.T) {
	auth := NewAuthenticator("test-secret", "")
	tok, err := SignToken("test-secret", "user-42", time.Hour)
	require.NoError(t, err)
	other, err := SignToken("other-secret", "user-42", time.Hour)
	require.NoError(t, err)
	expired, err := SignToken("test-secret", "user-42", -time.Minute)
	require.NoError(t, err)

	cases := map[string]string{
		"Bearer " + tok:     "user-42",
		"Bearer " + other:   "",
		"Bearer " + expired: "",
		"Basic abc":         "",
		"":                  "",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		auth.WithIdentity(identityEcho()).ServeHTTP(rr, req)
		assert.Equal(t, want, rr.Body.String(), header)
	}
}

func TestWithIdentityWithoutSecretIsAnonymous(t *testing.T) {
	tok, err := SignToken("s", "u", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	NewAuthenticator("", "").WithIdentity(identityEcho()).ServeHTTP(rr, req)
	assert.Empty(t, rr.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	hash, err := HashAdminToken("let-me-in")
	require.NoError(t, err)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	for token, want := range map[string]int{"let-me-in": http.StatusNoContent, "guess": http.StatusUnauthorized, "": http.StatusUnauthorized} {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/surveys", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rr := httptest.NewRecorder()
		NewAuthenticator("", hash).RequireAdmin(ok).ServeHTTP(rr, req)
		assert.Equal(t, want, rr.Code, token)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/surveys", nil)
	req.Header.Set("Authorization", "Bearer let-me-in")
	rr := httptest.NewRecorder()
	NewAuthenticator("", "").RequireAdmin(ok).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	_, err = HashAdminToken("  ")
	assert.Error(t, err)
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/templates", nil)
	rr := httptest.NewRecorder()
	CORS(nil)(next).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	restricted := CORS([]string{"https://therealityreport.com/"})(next)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://therealityreport.com")
	rr = httptest.NewRecorder()
	restricted.ServeHTTP(rr, req)
	assert.Equal(t, "https://therealityreport.com", rr.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	restricted.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCacheHeaders(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	rr := httptest.NewRecorder()
	NoStore(PublicCache(time.Hour, next)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/templates", nil))
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
	assert.Empty(t, rr.Header().Get("Pragma"))

	rr = httptest.NewRecorder()
	SecureHeaders(NoStore(next)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rr.Header().Get("Cache-Control"), "no-store")
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)
	teapot := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	boom := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") })

	RequestLogger(log)(teapot).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tea", nil))
	rr := httptest.NewRecorder()
	RequestLogger(log)(boom).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, int64(http.StatusTeapot), entries[0].ContextMap()["status"])
	assert.Equal(t, "handler panic", entries[1].Message)
	assert.Equal(t, int64(http.StatusInternalServerError), entries[2].ContextMap()["status"])
}

func TestHeaderPolicy(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rr := httptest.NewRecorder()
	SecureHeaders(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/surveys/x", nil))
	assert.Equal(t, APIPolicy.ContentSecurityPolicy, rr.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Contains(t, rr.Header().Get("Permissions-Policy"), "camera=()")
	assert.Empty(t, rr.Header().Get("Strict-Transport-Security"), "plain http must not pin HSTS")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rr = httptest.NewRecorder()
	FrontendPolicy.Wrap(next).ServeHTTP(rr, req)
	assert.Contains(t, rr.Header().Get("Content-Security-Policy"), "img-src 'self' data: https:")
	assert.Equal(t, "max-age=15552000; includeSubDomains", rr.Header().Get("Strict-Transport-Security"))

	rr = httptest.NewRecorder()
	HeaderPolicy{}.Wrap(next).ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Content-Security-Policy"))
	assert.Empty(t, rr.Header().Get("Strict-Transport-Security"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}
