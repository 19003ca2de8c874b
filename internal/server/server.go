// File: internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/bridge-relay/internal/config"
	"github.com/smartdevs17/bridge-relay/internal/connection"
	"github.com/smartdevs17/bridge-relay/internal/relay"
	"github.com/smartdevs17/bridge-relay/internal/storage"
	"github.com/smartdevs17/bridge-relay/pkg/utils"
)

// HTTPServer exposes health, status, and metrics endpoints. The relay core
// never depends on it; it is observation only.
type HTTPServer struct {
	config *config.ServerConfig
	server *http.Server
	router *mux.Router
	store  storage.Store
	driver *relay.Driver
	conn   connection.Manager
	logger *logrus.Logger
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(
	cfg *config.ServerConfig,
	store storage.Store,
	driver *relay.Driver,
	conn connection.Manager,
) *HTTPServer {
	s := &HTTPServer{
		config: cfg,
		store:  store,
		driver: driver,
		conn:   conn,
		logger: utils.GetLogger(),
	}
	s.setupRouter()
	return s
}

func (s *HTTPServer) setupRouter() {
	s.router = mux.NewRouter()

	if s.config.EnableHealth {
		s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	}
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/failed-dispatches", s.handleFailedDispatches).Methods(http.MethodGet)
	if s.config.EnableMetrics {
		s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server failed", "error", err)
		}
	}()

	return nil
}

// Stop stops the HTTP server
func (s *HTTPServer) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	healthy := s.conn.IsConnected() && s.store.Ping() == nil
	state := s.driver.State()

	status := http.StatusOK
	if !healthy || state == relay.StateStopped {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]interface{}{
		"healthy":      healthy,
		"driver_state": state,
		"timestamp":    time.Now(),
	})
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	storeStats, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"driver":     s.driver.Stats(),
		"connection": s.conn.Stats(),
		"storage":    storeStats,
		"timestamp":  time.Now(),
	})
}

func (s *HTTPServer) handleFailedDispatches(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	failed, err := s.store.GetFailedDispatches(r.Context(), limit)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"failed_dispatches": failed,
		"count":             len(failed),
	})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}
