package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAuth(t *testing.T) {
	m := newMetrics(prometheus.NewRegistry())

	m.ObserveAuth("login", "success")
	m.ObserveAuth("login", "success")
	m.ObserveAuth("login", "rejected")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthOperations.WithLabelValues("login", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthOperations.WithLabelValues("login", "rejected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.AuthOperations.WithLabelValues("signup", "success")))
}

func TestMiddleware_LabelsRoutePattern(t *testing.T) {
	m := newMetrics(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/users/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/"+id, nil))
	}

	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestDuration))

	registry := prometheus.NewRegistry()
	registry.MustRegister(m.RequestDuration)
	families, err := registry.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)

	series := families[0].GetMetric()
	require.Len(t, series, 1)
	labels := map[string]string{}
	for _, lp := range series[0].GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	assert.Equal(t, map[string]string{"method": "GET", "route": "/users/{id}", "status": "418"}, labels)
	assert.Equal(t, uint64(3), series[0].GetHistogram().GetSampleCount())
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveAuth("signup", "success")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `auth_operations_total{operation="signup",outcome="success"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
