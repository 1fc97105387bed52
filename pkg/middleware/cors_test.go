package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsRequest(cfg CORSConfig, method, origin string, preflight bool) *httptest.ResponseRecorder {
	h := CORS(cfg)(okHandler())
	req := httptest.NewRequest(method, "/auth/login", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCORS_Development_AllowsAnyOrigin(t *testing.T) {
	rec := corsRequest(CORSConfig{Environment: "development"}, http.MethodGet, "https://dash.local", false)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS_Production_AllowedOrigin(t *testing.T) {
	cfg := CORSConfig{
		AllowedOrigins: []string{"https://lifedash.app", "https://admin.lifedash.app/"},
		Environment:    "production",
	}

	rec := corsRequest(cfg, http.MethodGet, "https://lifedash.app", false)
	assert.Equal(t, "https://lifedash.app", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))

	rec = corsRequest(cfg, http.MethodGet, "https://admin.lifedash.app", false)
	assert.Equal(t, "https://admin.lifedash.app", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Production_RejectedOrigin(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://lifedash.app"}, Environment: "production"}

	rec := corsRequest(cfg, http.MethodGet, "https://evil.example", false)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS_Production_ExplicitWildcard(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"*"}, Environment: "production"}

	rec := corsRequest(cfg, http.MethodGet, "https://anything.example", false)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_CredentialsEchoOrigin(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true, Environment: "production"}

	rec := corsRequest(cfg, http.MethodGet, "https://lifedash.app", false)

	assert.Equal(t, "https://lifedash.app", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_Preflight(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://lifedash.app"}, Environment: "production"}

	rec := corsRequest(cfg, http.MethodOptions, "https://lifedash.app", true)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
	assert.Equal(t, "X-Correlation-ID", rec.Header().Get("Access-Control-Expose-Headers"))
}

func TestCORS_PlainOptionsReachesHandler(t *testing.T) {
	rec := corsRequest(CORSConfig{Environment: "development"}, http.MethodOptions, "", false)

	assert.Equal(t, http.StatusOK, rec.Code)
}
