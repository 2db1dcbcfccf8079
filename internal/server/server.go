// =============================================================================
// rowimport - HTTP Server
// =============================================================================
//
// This package exposes the importer over HTTP.
//
// ROUTES:
//   GET  /healthz              liveness probe
//   GET  /v1/profiles          available import profiles
//   POST /v1/imports           multipart upload ("file" field), optional
//                              ?profile=<name> and ?format=json|yaml|csv|xml
//
// ERRORS:
//   Failures are JSON: {"error": {"kind": "...", "message": "..."}}, plus
//   kind-specific details (missing labels, row number, fields).
//
// =============================================================================

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ginjaninja78/rowimport/internal/importer"
	"github.com/ginjaninja78/rowimport/internal/logging"
)

// Server serves the import API.
type Server struct {
	router         *chi.Mux
	importer       *importer.Importer
	logger         *logging.SlogLogger
	maxUploadBytes int64
}

// New creates a Server.
//
// PARAMETERS:
//   - im: The importer that handles uploads.
//   - maxUploadBytes: The largest accepted request body.
//   - logger: Request and error logger. Nil discards logs.
func New(im *importer.Importer, maxUploadBytes int64, logger *logging.SlogLogger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}

	s := &Server{
		router:         chi.NewRouter(),
		importer:       im,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures HTTP middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/profiles", s.handleListProfiles)
		r.Post("/imports", s.handleImport)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no route for "+r.Method+" "+r.URL.Path, nil)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not allowed on "+r.URL.Path, nil)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully, giving in-flight requests up to shutdownTimeout to finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

// requestLogger logs one line per request with status and duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Slog().Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
