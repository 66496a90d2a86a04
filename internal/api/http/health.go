package http

import (
	"context"
	"database/sql"
	"net/http"
	"time"
)

func Healthz(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

// Readyz reports 503 until the database answers a ping.
func Readyz(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
