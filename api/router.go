// Package api exposes running harvests over HTTP so operators can watch and
// signal them.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// NewRouter provides a router with all the harvest routes. Cross-origin
// requests are only allowed from allowedOrigins.
func NewRouter(h *Handler, allowedOrigins ...string) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		newRequestLogger(h.log),
		middleware.Recoverer,
	)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/_health", h.health)
	r.Route("/harvests", func(r chi.Router) {
		r.Get("/", h.running)
		r.Get("/{harvestID}", h.harvest)
		r.Post("/{harvestID}/pause", h.pause)
		r.Post("/{harvestID}/resume", h.resume)
		r.Post("/{harvestID}/kill", h.kill)
	})
	r.Post("/schedules/{scheduleID}/steps/{stepID}/harvest", h.enqueue)
	return r
}

func newRequestLogger(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"uri":        r.RequestURI,
				"status":     ww.Status(),
				"elapsed_ms": time.Since(start).Milliseconds(),
			}).Info("request complete")
		})
	}
}
