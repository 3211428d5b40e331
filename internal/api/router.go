package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-avr/internal/avr"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system", s.handleSystem)

		r.Route("/states", func(r chi.Router) {
			r.Get("/", s.handleListStates)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetState)
				r.Put("/", s.handleSetState)
				r.Get("/history", s.handleStateHistory)
			})
		})

		r.Get("/discovery", s.handleDiscovery)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth reports the server and receiver link status. The status is
// "degraded" until the receiver has been identified.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	receiver := s.bridge.Status()
	status := "ok"
	if receiver.State != avr.StateOperational {
		status = "degraded"
	}

	body := map[string]any{
		"status":   status,
		"version":  s.version,
		"receiver": receiver,
	}
	if s.mqtt != nil {
		body["mqtt_connected"] = s.mqtt.IsConnected()
	}
	writeJSON(w, http.StatusOK, body)
}
