// Package httpapi exposes the service's HTTP surface: health and metrics
// endpoints, the subscriber settings API, and the bot platform webhooks.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/heatwatch/wbgt-alert-service/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the HTTP API.
type Server struct {
	httpServer  *http.Server
	subscribers domain.SubscriberRepository
	regions     domain.RegionRepository
	levels      domain.AlertLevelRepository
	apps        domain.InstalledAppRepository
	bots        domain.BotInfoRepository
	tokens      domain.AccessTokenRepository
	greeter     TextSender
	botID       string
	logger      *slog.Logger
}

// Deps carries the server's collaborators.
type Deps struct {
	Subscribers domain.SubscriberRepository
	Regions     domain.RegionRepository
	Levels      domain.AlertLevelRepository
	Apps        domain.InstalledAppRepository
	Bots        domain.BotInfoRepository
	Tokens      domain.AccessTokenRepository
	Greeter     TextSender
	BotID       string
	Ready       ReadinessChecker
	Logger      *slog.Logger
}

// NewServer creates the HTTP server and wires all routes.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		subscribers: deps.Subscribers,
		regions:     deps.Regions,
		levels:      deps.Levels,
		apps:        deps.Apps,
		bots:        deps.Bots,
		tokens:      deps.Tokens,
		greeter:     deps.Greeter,
		botID:       deps.BotID,
		logger:      deps.Logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(deps.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /settings/{userID}", s.handleGetSetting)
	mux.HandleFunc("PUT /settings/{userID}", s.handlePutSetting)
	mux.HandleFunc("DELETE /settings/{userID}", s.handleDeleteSetting)

	mux.HandleFunc("GET /regions", s.handleListRegions)
	mux.HandleFunc("GET /alert-levels", s.handleListLevels)

	mux.HandleFunc("POST /callback", s.handleCallback)
	mux.HandleFunc("POST /install-update", s.handleInstallUpdate)
	mux.HandleFunc("POST /uninstall", s.handleUninstall)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
