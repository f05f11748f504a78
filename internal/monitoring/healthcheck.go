package monitoring

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/storage"
)

func healthCheckHandlerFunc(w http.ResponseWriter, r *http.Request) {
	if err := storage.RedisClient().Ping(r.Context()).Err(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(errors.Wrap(err, "redis ping error").Error()))
		return
	}

	if db := storage.DB(); db != nil {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(errors.Wrap(err, "postgresql ping error").Error()))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
}
