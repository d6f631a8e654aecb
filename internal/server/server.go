// Package server provides the HTTP surface for gesturecastd: the
// WebSocket subscriber upgrade endpoint plus health and metrics routes.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ayusman/gesturecast/internal/broadcast"
)

// Config holds the server's wiring. Broadcaster is required; the health and
// metrics routes are always registered.
type Config struct {
	Broadcaster *broadcast.Broadcaster
}

// Server is the HTTP server fronting the broadcaster's WebSocket endpoint.
type Server struct {
	config   Config
	mux      *http.ServeMux
	start    time.Time
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// New creates a Server and registers its routes.
func New(config Config, log zerolog.Logger) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		log:    log.With().Str("component", "server").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.HandlerFor(s.config.Broadcaster.Registry(), promhttp.HandlerOpts{}))
	s.mux.HandleFunc("/gestures", s.handleSubscribe)
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status":             "ok",
		"uptime":             time.Since(s.start).String(),
		"subscribers_active": s.config.Broadcaster.ActiveCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// handleSubscribe upgrades to a WebSocket connection and hands it to the
// broadcaster.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Info().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.config.Broadcaster.Serve(conn)
}

// ListenAndServe starts the HTTP server on the given address. It blocks
// until the listener fails; a bind failure is a fatal startup error.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
