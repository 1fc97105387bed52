package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findMetric gathers reg and returns the sample of family name whose labels
// include every pair in labels.
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			got := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			match := true
			for k, v := range labels {
				if got[k] != v {
					match = false
					break
				}
			}
			if match {
				return m
			}
		}
	}
	return nil
}

func metricsRouter(m *HTTPMetrics, status int) *chi.Mux {
	r := chi.NewRouter()
	r.Use(m.Handler)
	r.Get("/user/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	})
	return r
}

func TestHTTPMetrics_CountsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg, "auth")
	r := metricsRouter(m, http.StatusOK)

	for _, path := range []string{"/user/1", "/user/2", "/user/3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	got := findMetric(t, reg, "http_requests_total",
		map[string]string{"service": "auth", "method": "GET", "path": "/user/{id}", "status": "200"})
	require.NotNil(t, got)
	assert.Equal(t, float64(3), got.GetCounter().GetValue())

	hist := findMetric(t, reg, "http_request_duration_seconds", map[string]string{"path": "/user/{id}"})
	require.NotNil(t, hist)
	assert.Equal(t, uint64(3), hist.GetHistogram().GetSampleCount())
}

func TestHTTPMetrics_UnknownRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := metricsRouter(NewHTTPMetrics(reg, "auth"), http.StatusOK)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	got := findMetric(t, reg, "http_requests_total", map[string]string{"path": "unknown", "status": "404"})
	require.NotNil(t, got)
}

func TestHTTPMetrics_CapturesStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := metricsRouter(NewHTTPMetrics(reg, "auth"), http.StatusForbidden)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/user/1", nil))

	assert.NotNil(t, findMetric(t, reg, "http_requests_total", map[string]string{"status": "403"}))
}

func TestHTTPMetrics_InFlight(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg, "auth")

	var during float64
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		during = testutil.ToFloat64(m.inFlight)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, float64(1), during)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.inFlight))
}

func TestNewHTTPMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewHTTPMetrics(reg, "auth")

	assert.Panics(t, func() { NewHTTPMetrics(reg, "auth") })
}
