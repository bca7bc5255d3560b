// Package web exposes the tracker over a JSON HTTP API plus an
// iCalendar feed of the overlays.
package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"cyclecal/internal/config"
	"cyclecal/internal/debounce"
	appLog "cyclecal/internal/log"
	"cyclecal/internal/model"
	"cyclecal/internal/tracker"
)

// Server provides the HTTP API for one tracker.
type Server struct {
	cfg     *config.Config
	tracker *tracker.Tracker
	loc     *time.Location
	router  *chi.Mux

	// today is the only wall-clock read; tests replace it.
	today func() model.Date

	feed   *feedCache
	warmer *debounce.Debouncer
}

// NewServer constructs a Server and subscribes it to tracker changes.
func NewServer(cfg *config.Config, tr *tracker.Tracker) *Server {
	s := &Server{
		cfg:     cfg,
		tracker: tr,
		loc:     cfg.Location(),
		feed:    &feedCache{},
	}
	s.today = func() model.Date { return model.Today(s.loc) }

	// Drop the cached feed at once and rebuild it after the burst settles.
	s.warmer = debounce.New(cfg.RecomputeDebounce(), s.warmFeed)
	tr.OnChange(func(model.Aggregate) {
		s.feed.invalidate()
		s.warmer.Trigger()
	})

	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops background work.
func (s *Server) Close() {
	s.warmer.Stop()
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
		}))
	}

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.basicAuthEnabled() {
			appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
			r.Use(s.basicAuth)
		}

		r.Get("/calendar.ics", s.handleFeed)

		r.Route("/api", func(r chi.Router) {
			r.Get("/state", s.handleState)
			r.Get("/export", s.handleExport)
			r.Post("/import", s.handleImport)
			r.Post("/reset", s.handleReset)

			r.Get("/overlays", s.handleOverlays)
			r.Get("/stats", s.handleStats)

			r.Route("/periods", func(r chi.Router) {
				r.Post("/", s.handleAddPeriod)
				r.Post("/start", s.handleStartPeriod)
				r.Post("/end", s.handleEndPeriod)
				r.Put("/{id}", s.handleEditPeriod)
				r.Delete("/{id}", s.handleDeletePeriod)
			})

			r.Route("/notes", func(r chi.Router) {
				r.Put("/{date}", s.handleSaveNote)
				r.Delete("/{date}", s.handleDeleteNote)
			})

			r.Route("/medication", func(r chi.Router) {
				r.Put("/{date}", s.handleRecordMedication)
				r.Delete("/{date}", s.handleDeleteMedication)
			})

			r.Get("/settings", s.handleGetSettings)
			r.Put("/settings", s.handlePutSettings)
		})
	})

	return r
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	return s.cfg != nil && s.cfg.BasicAuth != nil &&
		s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="cyclecal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// requestLogger logs one line per request through the application logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.Close()
	return nil
}
