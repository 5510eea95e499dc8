// Package server exposes the intake engine and the conversation store over
// HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spigell/hire-intake/internal/intake"
	"github.com/spigell/hire-intake/internal/slots"
	"github.com/spigell/hire-intake/internal/store"
)

const (
	defaultAddress      = ":8080"
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 30 * time.Second
	shutdownTimeout     = 30 * time.Second
	maxBodyBytes        = 64 << 10
)

// Config holds server configuration.
type Config struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read-timeout"`
	WriteTimeout time.Duration `mapstructure:"write-timeout"`
	APIKey       string        `mapstructure:"api-key"`
	APIKeyFile   string        `mapstructure:"api-key-file"`
}

// Turner runs a chat turn.
type Turner interface {
	Turn(ctx context.Context, in intake.TurnInput) (intake.TurnResult, error)
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Engine    Turner
	Store     store.Store
	Extractor *slots.Extractor
	Gatherer  prometheus.Gatherer
	Logger    *zap.Logger
}

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	engine     Turner
	store      store.Store
	extractor  *slots.Extractor
	gatherer   prometheus.Gatherer
	logger     *zap.Logger
	validator  *validator.Validate
	apiKey     string
}

// New creates a server. apiKey is the resolved secret; an empty key disables
// the X-API-Key check.
func New(cfg Config, apiKey string, deps Deps) *Server {
	if cfg.Address == "" {
		cfg.Address = defaultAddress
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Extractor == nil {
		deps.Extractor = slots.NewExtractor(nil)
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		engine:    deps.Engine,
		store:     deps.Store,
		extractor: deps.Extractor,
		gatherer:  deps.Gatherer,
		logger:    deps.Logger,
		validator: newValidator(),
		apiKey:    strings.TrimSpace(apiKey),
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"header", "json"} {
			if name, _, _ := strings.Cut(f.Tag.Get(tag), ","); name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// Handler returns the routed handler with logging and authentication.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/turn", s.handleTurn)
	mux.HandleFunc("POST /v1/conversations/ensure", s.handleEnsure)
	mux.HandleFunc("POST /v1/messages/ingest", s.handleIngest)
	mux.HandleFunc("GET /v1/conversations/{cid}/context", s.handleContext)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return s.withLogging(s.withAPIKey(mux))
}

// Run serves until ctx is done and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// withAPIKey rejects requests without the configured X-API-Key. Health and
// metrics stay open for probes.
func (s *Server) withAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		got := r.Header.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.apiKey)) != 1 {
			s.errorResponse(w, errUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("encoding json response", zap.Error(err))
	}
}

type errorBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (s *Server) errorResponse(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.jsonResponse(w, status, errorBody{Error: err.Error()})
}
