package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/randalmurphal/ticketflow/auth"
	"github.com/randalmurphal/ticketflow/checkpoint"
	"github.com/randalmurphal/ticketflow/ticket"
	"github.com/randalmurphal/ticketflow/workflow"
)

// Workflow is the part of the coordinator the API drives.
type Workflow interface {
	Get(ctx context.Context, ticketID string) (*ticket.Ticket, error)
	RecordReview(ctx context.Context, ticketID string, d workflow.ReviewDecision) (workflow.Progress, error)
}

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves the decision API.
type Server struct {
	wf          Workflow
	checkpoints checkpoint.Store
	tokens      auth.Config
	pinger      Pinger
	logger      *slog.Logger
	engine      *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithPinger adds a store ping to /healthz.
func WithPinger(p Pinger) Option {
	return func(s *Server) { s.pinger = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds a Server and its routes.
func New(wf Workflow, checkpoints checkpoint.Store, tokens auth.Config, opts ...Option) *Server {
	s := &Server{
		wf:          wf,
		checkpoints: checkpoints,
		tokens:      tokens,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger), requestMetrics())

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	tickets := r.Group("/tickets/:id")
	tickets.GET("", s.getTicket)
	tickets.GET("/checkpoints/:graph", s.getCheckpoints)
	tickets.POST("/reviews", decisionAuth(s.tokens), s.recordReview)
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down,
// giving in-flight requests shutdownTimeout to finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
