package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/lifedash-auth/internal/auth"
	"github.com/utafrali/lifedash-auth/internal/domain"
	"github.com/utafrali/lifedash-auth/internal/ratelimit"
	"github.com/utafrali/lifedash-auth/internal/repository"
	"github.com/utafrali/lifedash-auth/internal/repository/memory"
	"github.com/utafrali/lifedash-auth/internal/service"
	"github.com/utafrali/lifedash-auth/pkg/health"
)

const (
	testSecret = "handler-test-secret-0123456789abcdef"
	testIssuer = "lifedash-auth"
)

type testServer struct {
	handler http.Handler
	tokens  *auth.JWTManager
	repo    repository.UserRepository
}

type serverOptions struct {
	opts         service.Options
	requireAdmin bool
	limiter      ratelimit.Limiter
	repo         repository.UserRepository
}

func newTestServer(t *testing.T, so serverOptions) *testServer {
	t.Helper()

	hasher, err := auth.NewPasswordHasher(auth.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16})
	require.NoError(t, err)

	repo := so.repo
	if repo == nil {
		repo = memory.NewUserRepository()
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := auth.NewJWTManager(testSecret, 7*24*time.Hour, testIssuer)
	reg := prometheus.NewRegistry()
	metrics := service.NewMetrics(reg)
	svc := service.NewUserService(repo, hasher, tokens, nil, metrics, logger, so.opts)

	h := NewRouter(Dependencies{
		Service:  svc,
		Health:   health.NewHandler(),
		Limiter:  so.limiter,
		Metrics:  metrics,
		Registry: reg,
		Logger:   logger,
	}, RouterConfig{
		Environment:          "development",
		UserListRequireAdmin: so.requireAdmin,
	})

	return &testServer{handler: h, tokens: tokens, repo: repo}
}

func (s *testServer) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Data    json.RawMessage   `json:"data"`
	Fields  map[string]string `json:"fields"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env
}

func (s *testServer) register(t *testing.T, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodPost, "/auth/register",
		`{"email":"`+email+`","password":"`+password+`"}`, "")
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/auth/login", `{"email":"`+email+`","password":"`+password+`"}`, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var data AuthData
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &data))
	return data.Token
}

// ---------------------------------------------------------------------------
// End to end
// ---------------------------------------------------------------------------

func TestScenario_RegisterLoginMe(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rr := s.register(t, "a@x.com", "secret123")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	env := decode(t, rr)
	assert.True(t, env.Success)
	assert.Equal(t, MsgRegistered, env.Message)
	assert.NotContains(t, rr.Body.String(), "password")
	assert.NotContains(t, rr.Body.String(), "argon2")
	assert.NotContains(t, rr.Body.String(), `"token"`)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	token := s.login(t, "a@x.com", "secret123")
	require.NotEmpty(t, token)

	claims, err := s.tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, time.Minute)

	rr = s.do(t, http.MethodGet, "/user/me", "", token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var me UserData
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &me))
	assert.Equal(t, "a@x.com", me.User.Email)
	assert.Equal(t, claims.UserID, me.User.ID)
	assert.Equal(t, domain.RoleUser, me.User.Role)
	assert.NotContains(t, rr.Body.String(), "password")
}

func TestRegister_DuplicateEmailRegardlessOfPassword(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	require.Equal(t, http.StatusCreated, s.register(t, "a@x.com", "secret123").Code)

	rr := s.register(t, "A@X.com", "another456")
	require.Equal(t, http.StatusConflict, rr.Code)
	env := decode(t, rr)
	assert.False(t, env.Success)
	assert.Equal(t, "User with this email already exists", env.Message)
}

func TestRegister_AutoLoginReturnsToken(t *testing.T) {
	s := newTestServer(t, serverOptions{opts: service.Options{AutoLogin: true}})

	rr := s.register(t, "a@x.com", "secret123")
	require.Equal(t, http.StatusCreated, rr.Code)

	var data AuthData
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &data))
	require.NotEmpty(t, data.Token)

	me := s.do(t, http.MethodGet, "/user/me", "", data.Token)
	assert.Equal(t, http.StatusOK, me.Code)
}

func TestRegister_Validation(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	tests := []struct {
		name  string
		body  string
		code  string
		field string
	}{
		{"missing password", `{"email":"a@x.com"}`, "VALIDATION_ERROR", "password"},
		{"malformed email", `{"email":"nope","password":"secret123"}`, "VALIDATION_ERROR", "email"},
		{"weak password", `{"email":"a@x.com","password":"password"}`, "VALIDATION_ERROR", "password"},
		{"short password", `{"email":"a@x.com","password":"abc1"}`, "VALIDATION_ERROR", "password"},
		{"malformed json", `{"email":`, "INVALID_INPUT", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, http.MethodPost, "/auth/register", tt.body, "")
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			env := decode(t, rr)
			assert.Equal(t, tt.code, env.Code)
			if tt.field != "" {
				assert.Contains(t, env.Fields, tt.field)
			}
		})
	}
}

func TestAuth_RequiresJSONContentType(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("email=a@x.com"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func TestLogin_FailuresAreByteIdentical(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	require.Equal(t, http.StatusCreated, s.register(t, "a@x.com", "secret123").Code)

	wrongPw := s.do(t, http.MethodPost, "/auth/login", `{"email":"a@x.com","password":"wrong1234"}`, "")
	unknown := s.do(t, http.MethodPost, "/auth/login", `{"email":"ghost@x.com","password":"secret123"}`, "")

	assert.Equal(t, http.StatusUnauthorized, wrongPw.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrongPw.Body.Bytes(), unknown.Body.Bytes())

	env := decode(t, wrongPw)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Code)
	assert.Equal(t, "Invalid email or password", env.Message)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rr := s.do(t, http.MethodPost, "/auth/logout", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	env := decode(t, rr)
	assert.True(t, env.Success)
	assert.Equal(t, MsgLoggedOut, env.Message)
}

func TestLogout_IgnoresBodyAndContentType(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", strings.NewReader("bye"))
	req.Header.Set("Content-Type", "text/plain")
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, MsgLoggedOut, decode(t, rr).Message)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

// ---------------------------------------------------------------------------
// Access control
// ---------------------------------------------------------------------------

func TestMe_WithoutToken(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	for _, header := range []string{"", "Basic abc", "Bearer", "Bearer   "} {
		req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		s.handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "header %q", header)
		assert.JSONEq(t, `{"success":false,"message":"Access denied. No token provided."}`, rr.Body.String())
	}
}

func TestMe_InvalidOrExpiredToken(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	require.Equal(t, http.StatusCreated, s.register(t, "a@x.com", "secret123").Code)
	token := s.login(t, "a@x.com", "secret123")

	user, err := s.repo.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	expired, err := auth.NewJWTManager(testSecret, -time.Minute, testIssuer).Issue(user)
	require.NoError(t, err)
	forged, err := auth.NewJWTManager("some-other-secret-0123456789abcdef", time.Hour, testIssuer).Issue(user)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	payload = bytes.Replace(payload, []byte(`"role":"user"`), []byte(`"role":"admin"`), 1)
	tampered := parts[0] + "." + base64.RawURLEncoding.EncodeToString(payload) + "." + parts[2]
	require.NotEqual(t, token, tampered)

	for name, tok := range map[string]string{
		"garbage":  "not-a-token",
		"expired":  expired,
		"forged":   forged,
		"tampered": tampered,
	} {
		rr := s.do(t, http.MethodGet, "/user/me", "", tok)
		assert.Equal(t, http.StatusForbidden, rr.Code, name)
		assert.JSONEq(t, `{"success":false,"message":"Invalid or expired token."}`, rr.Body.String(), name)
	}
}

func TestMe_UserDeletedAfterIssue(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	ghost := &domain.User{ID: "2c1f5b7e-0000-4000-8000-000000000000", Email: "ghost@x.com", Role: domain.RoleUser}
	token, err := s.tokens.Issue(ghost)
	require.NoError(t, err)

	rr := s.do(t, http.MethodGet, "/user/me", "", token)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "User not found", decode(t, rr).Message)
}

func TestAll_RequiresAdminWhenConfigured(t *testing.T) {
	s := newTestServer(t, serverOptions{
		requireAdmin: true,
		opts:         service.Options{AdminEmails: []string{"boss@x.com"}},
	})
	require.Equal(t, http.StatusCreated, s.register(t, "a@x.com", "secret123").Code)
	require.Equal(t, http.StatusCreated, s.register(t, "boss@x.com", "secret123").Code)

	userToken := s.login(t, "a@x.com", "secret123")
	rr := s.do(t, http.MethodGet, "/user/all", "", userToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "Insufficient permissions.", decode(t, rr).Message)

	adminToken := s.login(t, "boss@x.com", "secret123")
	rr = s.do(t, http.MethodGet, "/user/all", "", adminToken)
	require.Equal(t, http.StatusOK, rr.Code)

	var data UsersData
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &data))
	assert.Equal(t, 2, data.Count)
	require.Len(t, data.Users, 2)
	assert.Equal(t, "a@x.com", data.Users[0].Email)
	assert.NotContains(t, rr.Body.String(), "password")
}

func TestAll_Pagination(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	for _, e := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		require.Equal(t, http.StatusCreated, s.register(t, e, "secret123").Code)
	}
	token := s.login(t, "a@x.com", "secret123")

	rr := s.do(t, http.MethodGet, "/user/all?page=2&per_page=2", "", token)
	require.Equal(t, http.StatusOK, rr.Code)

	var data UsersData
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &data))
	assert.Equal(t, 1, data.Count)
	require.NotNil(t, data.Pagination)
	assert.Equal(t, 3, data.Pagination.TotalCount)
	assert.True(t, data.Pagination.HasPrev)

	rr = s.do(t, http.MethodGet, "/user/all", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "pagination")
}

func TestAll_PageBeyondRangeIsEmpty(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	require.Equal(t, http.StatusCreated, s.register(t, "a@x.com", "secret123").Code)
	token := s.login(t, "a@x.com", "secret123")

	for _, page := range []string{"9223372036854775807", "92233720368547758", "50"} {
		rr := s.do(t, http.MethodGet, "/user/all?page="+page+"&per_page=100", "", token)
		require.Equal(t, http.StatusOK, rr.Code, page+": "+rr.Body.String())

		var data UsersData
		require.NoError(t, json.Unmarshal(decode(t, rr).Data, &data))
		assert.Equal(t, 0, data.Count, page)
		assert.NotNil(t, data.Users, page)
		require.NotNil(t, data.Pagination, page)
		assert.Equal(t, 1, data.Pagination.TotalCount, page)
		assert.False(t, data.Pagination.HasNext, page)
	}
}

func TestAll_OpenToAnyUserWhenNotRequired(t *testing.T) {
	s := newTestServer(t, serverOptions{requireAdmin: false})
	require.Equal(t, http.StatusCreated, s.register(t, "a@x.com", "secret123").Code)
	token := s.login(t, "a@x.com", "secret123")

	rr := s.do(t, http.MethodGet, "/user/all", "", token)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, http.MethodGet, "/user/all", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

// ---------------------------------------------------------------------------
// Failures and edges
// ---------------------------------------------------------------------------

type brokenRepo struct{ repository.UserRepository }

func (brokenRepo) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, errors.New("dial tcp 10.0.0.5:5432: connection refused")
}

func TestLogin_StoreFailureIsGeneric500(t *testing.T) {
	s := newTestServer(t, serverOptions{repo: brokenRepo{memory.NewUserRepository()}})

	rr := s.do(t, http.MethodPost, "/auth/login", `{"email":"a@x.com","password":"secret123"}`, "")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	env := decode(t, rr)
	assert.Equal(t, "INTERNAL_ERROR", env.Code)
	assert.NotContains(t, rr.Body.String(), "10.0.0.5")
}

func TestRateLimit_OnCredentialEndpoints(t *testing.T) {
	s := newTestServer(t, serverOptions{limiter: ratelimit.NewMemoryLimiter(0.001, 2, time.Minute)})

	body := `{"email":"a@x.com","password":"wrong1234"}`
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/auth/login", body, "").Code)
	}
	rr := s.do(t, http.MethodPost, "/auth/login", body, "")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "RATE_LIMITED", decode(t, rr).Code)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/auth/logout", "", "").Code, "logout is not throttled")
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rr := s.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, MsgServiceRunning, body["message"])
	assert.NotEmpty(t, body["timestamp"])

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/live", "", "").Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/ready", "", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	s.register(t, "a@x.com", "secret123")

	rr := s.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, bytes.Contains(rr.Body.Bytes(), []byte(`auth_registrations_total{result="success"} 1`)))
	assert.Contains(t, rr.Body.String(), `path="/auth/register"`)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rr := s.do(t, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.False(t, decode(t, rr).Success)
}
