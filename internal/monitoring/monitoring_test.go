package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/storage"
	"github.com/brocaar/chirpstack-telemetry-ingester/internal/test"
)

func TestMonitoring(t *testing.T) {
	assert := require.New(t)

	conf := test.GetConfig()
	conf.PostgreSQL.DSN = ""
	assert.NoError(storage.Setup(conf))

	conf.Monitoring.PrometheusEndpoint = true
	conf.Monitoring.HealthcheckEndpoint = true
	mux := newServeMux(conf)

	t.Run("Health", func(t *testing.T) {
		assert := require.New(t)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(http.StatusOK, w.Code)
	})

	t.Run("Metrics", func(t *testing.T) {
		assert := require.New(t)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(http.StatusOK, w.Code)
		assert.Contains(w.Body.String(), "go_goroutines")
	})

	t.Run("Disabled endpoints", func(t *testing.T) {
		assert := require.New(t)
		mux := newServeMux(test.GetConfig())
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(http.StatusNotFound, w.Code)
	})
}
