package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nao1215/floorscan/internal/model"
	"golang.org/x/sync/semaphore"
)

//go:embed static/index.html
var staticFiles embed.FS

// Response bodies sent to clients. Downstream errors are never exposed.
const (
	MessageNoFile        = "No file uploaded."
	MessageTooLarge      = "Uploaded file is too large."
	MessageBusy          = "Server is busy, please try again later."
	MessageInternalError = "An error occurred while processing your request."
)

// FormField is the multipart field carrying the floor plan.
const FormField = "floorplan"

// DefaultShutdownTimeout bounds graceful shutdown when no timeout is configured.
const DefaultShutdownTimeout = 30 * time.Second

// multipartMemory is the part of a multipart form kept in memory;
// larger uploads spill to temporary files.
const multipartMemory = 32 << 20

// Extractor runs the extraction pipeline on one upload.
// *pipeline.Pipeline implements it.
type Extractor interface {
	Execute(ctx context.Context, extraction *model.Extraction) error
}

// Recorder stores finished extractions.
// *database.HistoryDB implements it.
type Recorder interface {
	SaveExtraction(ctx context.Context, extraction *model.Extraction) error
}

// Server is the floorscan HTTP server.
type Server struct {
	extractor       Extractor
	recorder        Recorder
	logger          *slog.Logger
	address         string
	maxUploadSize   int64
	inFlight        *semaphore.Weighted
	shutdownTimeout time.Duration
	router          chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for access and error logs.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRecorder records every extraction, successful or not.
func WithRecorder(recorder Recorder) Option {
	return func(s *Server) {
		s.recorder = recorder
	}
}

// WithAddress sets the listen address (default ":3000").
func WithAddress(address string) Option {
	return func(s *Server) {
		s.address = address
	}
}

// WithMaxUploadSize limits the request body size. Zero disables the limit.
func WithMaxUploadSize(n int64) Option {
	return func(s *Server) {
		s.maxUploadSize = n
	}
}

// WithMaxInFlight limits concurrent extractions. Requests over the limit
// get 503. Zero means no limit.
func WithMaxInFlight(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.inFlight = semaphore.NewWeighted(int64(n))
		} else {
			s.inFlight = nil
		}
	}
}

// WithShutdownTimeout bounds how long Serve waits for in-flight requests
// after its context is cancelled.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// New creates a server that runs extractor for every upload.
func New(extractor Extractor, opts ...Option) *Server {
	s := &Server{
		extractor:       extractor,
		logger:          slog.Default(),
		address:         ":3000",
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.address
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Post("/extract-measurements", s.handleExtract)
	return r
}

// ListenAndServe listens on the configured address and serves until ctx
// is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully, waiting up to the shutdown timeout for in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("server started", "address", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server", "timeout", s.shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
