// Package web runs trunkcore's minimal HTTP surface: a health check, a
// read-only status/channel-list API, the Prometheus exposition endpoint,
// and the telemetry WebSocket, grounded on dbehnke-dmr-nexus's web.Server.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/go-trunk/trunkcore/pkg/config"
	"github.com/go-trunk/trunkcore/pkg/logger"
	"github.com/go-trunk/trunkcore/pkg/telemetry"
)

// Server represents trunkcore's HTTP server.
type Server struct {
	config config.WebConfig
	logger *logger.Logger
	hub    *telemetry.Hub
	api    *API
	server *http.Server
	addr   string
	mu     sync.RWMutex
}

// NewServer creates a new web server instance. channels lists the names of
// the channels configured at startup, surfaced read-only via /api/channels.
func NewServer(cfg config.WebConfig, log *logger.Logger, hub *telemetry.Hub, channels []string) *Server {
	return &Server{
		config: cfg,
		logger: log,
		hub:    hub,
		api:    NewAPI(log, channels),
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("web server is disabled")
		return nil
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.api.HandleStatus)
	mux.HandleFunc("/api/channels", s.api.HandleChannels)
	mux.Handle("/metrics", promhttp.Handler())

	if s.hub != nil {
		mux.Handle("/ws", s.hub.Handler())
	}

	// Serve static frontend assets if present (frontend/dist)
	staticDir := "frontend/dist"
	if fi, err := os.Stat(staticDir); err == nil && fi.IsDir() {
		s.logger.Info("serving static frontend assets", logger.String("dir", staticDir))
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			reqPath := filepath.Clean(r.URL.Path)
			if reqPath == "/" {
				http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
				return
			}
			if len(reqPath) > 0 && reqPath[0] == '/' {
				reqPath = reqPath[1:]
			}
			fullPath := filepath.Join(staticDir, reqPath)
			if fi, err := os.Stat(fullPath); err == nil && !fi.IsDir() {
				http.ServeFile(w, r, fullPath)
				return
			}
			http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
		})
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.mu.Lock()
	s.addr = listener.Addr().String()
	s.mu.Unlock()

	s.logger.Info("starting web server", logger.String("address", s.addr))

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// GetAddr returns the address the server is listening on
func (s *Server) GetAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "trunkcore",
		"time":    time.Now().Unix(),
	}); err != nil {
		s.logger.Warn("failed to encode health response", logger.Error(err))
	}
}
