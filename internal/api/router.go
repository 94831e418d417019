// Package api exposes the reader session over HTTP for companion apps.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/glance/internal/domain"
	"github.com/spherical/glance/internal/observability"
)

// Session is the part of the capture controller the API uses.
type Session interface {
	Snapshot() domain.Snapshot
	Preview() []byte
	Texts() (recognized, translated []string)
	Start(ctx context.Context) error
	Cancel(ctx context.Context) error
}

// NewRouter creates the API router. archive may be nil when archiving is
// disabled.
func NewRouter(session Session, archive domain.Archive, logger *observability.Logger, timeout time.Duration) http.Handler {
	if logger == nil {
		logger = observability.Nop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	h := NewHandler(session, archive, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(timeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","service":"glance"}`))
	})

	r.Get("/snapshot", h.Snapshot)
	r.Get("/preview", h.Preview)
	r.Get("/text", h.Text)
	r.Get("/captures/{id}", h.Capture)
	r.Post("/capture", h.StartCapture)
	r.Post("/cancel", h.Cancel)

	return r
}

func requestLogger(logger *observability.Logger) func(http.Handler) http.Handler {
	log := logger.WithComponent("api")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
