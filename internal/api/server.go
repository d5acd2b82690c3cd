package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/heimdex/clipper/internal/clip"
	"github.com/heimdex/clipper/internal/notify"
	"github.com/heimdex/clipper/internal/runs"
	"github.com/heimdex/clipper/internal/transcode"
)

// Runner executes one clip pipeline run.
type Runner interface {
	Run(ctx context.Context, req clip.Request) clip.Result
}

// RunStore records runs for status lookup.
type RunStore interface {
	Begin(ctx context.Context, id, videoURL, callbackURL string) (*runs.Run, error)
	Get(ctx context.Context, id string) (*runs.Run, error)
	List(ctx context.Context, limit int) ([]*runs.Run, error)
}

// Notifier delivers a finished run to its callback URL.
type Notifier interface {
	Deliver(ctx context.Context, callbackURL string, p notify.Payload)
}

// ToolProbe reports external binary availability.
type ToolProbe interface {
	Get(ctx context.Context) (*transcode.Capabilities, error)
}

type Server struct {
	httpServer *http.Server
	dispatcher *Dispatcher
	logger     *slog.Logger
}

type ServerConfig struct {
	Port           int
	Mode           string // "async" or "sync"
	Pipeline       Runner
	Registry       RunStore
	Notifier       Notifier
	Probe          ToolProbe
	Dispatcher     *Dispatcher
	AllowedOrigins []string
	Logger         *slog.Logger
	StartTime      time.Time
	Version        string
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = NewDispatcher(cfg.Logger)
	}
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      0, // sync mode holds the response for the whole run
			IdleTimeout:       60 * time.Second,
		},
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then waits for background runs until
// ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	httpErr := s.httpServer.Shutdown(ctx)
	waitErr := s.dispatcher.Wait(ctx)
	return errors.Join(httpErr, waitErr)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
