// Package server exposes the host over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bryan-buckman/crabnews/internal/host"
	"github.com/bryan-buckman/crabnews/internal/rss"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// maxUploadSize bounds multipart OPML imports.
const maxUploadSize = 10 << 20

// Server is the main HTTP server.
type Server struct {
	host   *host.Host
	poller *rss.Poller
	router chi.Router
	logger zerolog.Logger
}

// New creates a server. poller may be nil.
func New(h *host.Host, poller *rss.Poller, logger zerolog.Logger) *Server {
	s := &Server{
		host:   h,
		poller: poller,
		logger: logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/view", s.handleView)
		r.Get("/events", s.handleEvents)
		r.Put("/preferences", s.handleSetPreferences)

		r.Post("/accounts", s.handleCreateAccount)
		r.Route("/accounts/{account}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteAccount)
			r.Patch("/", s.handleRenameAccount)
			r.Post("/select", s.handleSelectAccount)
			r.Post("/import", s.handleImport)
			r.Post("/export", s.handleExport)
			r.Get("/opml", s.handleDownload)
			r.Post("/refresh", s.handleRefresh)

			r.Post("/folders", s.handleAddFolder)
			r.Delete("/folders/{folder}", s.handleDeleteFolder)
			r.Patch("/folders/{folder}", s.handleRenameFolder)

			r.Post("/subscriptions", s.handleAddSubscription)
			r.Delete("/subscriptions/{title}", s.handleDeleteSubscription)
			r.Patch("/subscriptions/{title}", s.handleRenameSubscription)
			r.Post("/subscriptions/{title}/move", s.handleMoveSubscription)
			r.Post("/subscriptions/{title}/fetch", s.handleFetch)
		})
	})

	s.router = r
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr and starts the poller. It returns after ctx is done
// and the server has shut down.
func (s *Server) Start(ctx context.Context, addr string) error {
	if s.poller != nil {
		s.poller.Start()
		defer s.poller.Stop()
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestLogger logs one line per request.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("request_id", middleware.GetReqID(r.Context())).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("took", time.Since(start)).
					Msg("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
