// Package server exposes the pipeline stages as HTTP push endpoints.
//
// Each stage is mounted at POST /<stage>. Responses tell the trigger whether
// to redeliver:
//
//	204  handled
//	200  permanent failure (validation or parsing), body is the normalized record
//	500  transient failure, body is the normalized record
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"docpipe/internal/errs"
	"docpipe/internal/logger"
	"docpipe/internal/metrics"
	"docpipe/internal/stages"
)

const shutdownTimeout = 15 * time.Second

// Server routes push deliveries to stage handlers.
type Server struct {
	router  chi.Router
	metrics *metrics.StageMetrics
	log     zerolog.Logger
}

// New creates a server mounting each handler at POST /<stage name>. Metrics
// are recorded into m and served from gatherer at GET /metrics.
func New(handlers map[string]stages.Handler, m *metrics.StageMetrics, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		metrics: m,
		log:     logger.WithComponent("server"),
	}

	s.router.Use(middleware.RealIP)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	for stage, h := range handlers {
		s.router.Post("/"+stage, s.stageHandler(stage, h))
	}

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info().Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) stageHandler(stage string, h stages.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := s.log.With().Str("route", r.URL.Path).Logger()
		ctx := logger.WithContext(r.Context(), log)

		recovered, err := s.invoke(ctx, h, r)
		s.metrics.Observe(stage, start, err)

		switch {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case recovered != nil:
			rec := errs.Normalize(recovered, stage)
			log.Error().Str("kind", string(rec.Kind)).Msg(rec.Error)
			writeJSON(w, http.StatusInternalServerError, rec)
		case errs.IsPermanent(err):
			rec := errs.Normalize(err, stage)
			log.Warn().Str("kind", string(rec.Kind)).Msg(rec.Error)
			writeJSON(w, http.StatusOK, rec)
		default:
			rec := errs.Normalize(err, stage)
			log.Error().Str("kind", string(rec.Kind)).Msg(rec.Error)
			writeJSON(w, http.StatusInternalServerError, rec)
		}
	}
}

// invoke runs h for the request. A panic is returned as recovered, with err
// set so the invocation counts as failed.
func (s *Server) invoke(ctx context.Context, h stages.Handler, r *http.Request) (recovered any, err error) {
	defer func() {
		if p := recover(); p != nil {
			recovered = p
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	env, err := envelopeFromRequest(r)
	if err != nil {
		return nil, err
	}
	return nil, h.Handle(ctx, env)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
