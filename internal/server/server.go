// Package server exposes the turn evaluation engine over HTTP: JSON turn
// evaluation, multipart audio turns with concurrent transcription and
// emotion classification, speech synthesis, level listing, and the usual
// operational endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kallevis/talkdown/internal/game"
	"github.com/kallevis/talkdown/internal/health"
	"github.com/kallevis/talkdown/internal/observe"
	"github.com/kallevis/talkdown/pkg/provider/emotion"
	"github.com/kallevis/talkdown/pkg/provider/stt"
	"github.com/kallevis/talkdown/pkg/provider/tts"
)

// Config holds the server's construction parameters. Evaluator and Metrics
// are required; the collaborator providers are optional and their endpoints
// return 503 when absent.
type Config struct {
	ListenAddr string

	Evaluator *game.Evaluator
	Metrics   *observe.Metrics

	STT     stt.Provider
	TTS     tts.Provider
	Emotion emotion.Provider

	// DefaultVoice is used by the speak endpoint when the request names
	// no voice.
	DefaultVoice string

	// ReadyChecks are additional readiness probes beyond the built-ins.
	ReadyChecks []health.Checker
}

// Server is the Talkdown HTTP server.
type Server struct {
	cfg  Config
	http *http.Server
}

// New builds a Server with all routes registered.
func New(cfg Config) *Server {
	s := &Server{cfg: cfg}
	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.Routes(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Routes builds the full handler tree, wrapped in the observability
// middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/evaluate", s.handleEvaluate)
	mux.HandleFunc("POST /v1/turns", s.handleTurns)
	mux.HandleFunc("POST /v1/speak", s.handleSpeak)
	mux.HandleFunc("GET /v1/levels", s.handleLevels)

	health.New(s.cfg.ReadyChecks...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.cfg.Metrics)(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.cfg.ListenAddr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}
