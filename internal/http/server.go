// Package http exposes the JSON API: ledger writes, period and KPI reads,
// and the closing draft workflow.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"persacc/internal/closing"
	"persacc/internal/forecast"
	"persacc/internal/kpi"
	"persacc/internal/ledger"
	applog "persacc/internal/log"
	"persacc/internal/metrics"
	"persacc/internal/middleware/ratelimit"
	"persacc/internal/middleware/security"
	"persacc/internal/periods"
	"persacc/internal/storage"
)

type Server struct {
	ledger     *ledger.Service
	registry   *periods.Registry
	kpi        *kpi.Service
	engine     *closing.Engine
	forecaster forecast.Forecaster
	repo       *storage.Repository
	logger     *applog.Logger
	limiter    *ratelimit.Limiter
}

func NewServer(
	ledgerSvc *ledger.Service,
	registry *periods.Registry,
	kpiSvc *kpi.Service,
	engine *closing.Engine,
	forecaster forecast.Forecaster,
	repo *storage.Repository,
	logger *applog.Logger,
) *Server {
	return &Server{
		ledger:     ledgerSvc,
		registry:   registry,
		kpi:        kpiSvc,
		engine:     engine,
		forecaster: forecaster,
		repo:       repo,
		logger:     logger,
		limiter:    ratelimit.New(ratelimit.DefaultConfig()),
	}
}

// Handler mounts all routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(applog.Middleware(s.logger.WithComponent(applog.ComponentHTTP)))
	r.Use(applog.RequestIDMiddleware(func(r *http.Request) string {
		return chimw.GetReqID(r.Context())
	}))
	r.Use(durationMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(nil))
		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", s.handleCreateTransaction)
			r.Get("/", s.handleListTransactions)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTransaction)
				r.Patch("/", s.handleUpdateTransaction)
				r.Delete("/", s.handleDeleteTransaction)
			})
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.handleListCategories)
			r.Post("/", s.handleCreateCategory)
			r.Delete("/{id}", s.handleDeactivateCategory)
		})

		r.Route("/periods", func(r chi.Router) {
			r.Get("/", s.handleListPeriods)
			r.Get("/open", s.handleCurrentPeriod)
			r.Route("/{period}", func(r chi.Router) {
				r.Get("/", s.handleGetPeriod)
				r.Get("/insight", s.handlePeriodAnalysis)
			})
		})

		r.Route("/kpi", func(r chi.Router) {
			r.Get("/{period}", s.handlePeriodSummary)
			r.Route("/year/{year}", func(r chi.Router) {
				r.Get("/", s.handleYearSummary)
				r.Get("/forecast", s.handleYearForecast)
			})
		})

		r.Route("/closing/draft", func(r chi.Router) {
			r.Post("/", s.handleNewDraft)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDraft)
				r.Put("/", s.handleDraftInputs)
				r.Post("/validate", s.handleDraftValidate)
				r.Post("/commit", s.handleDraftCommit)
				r.Delete("/", s.handleDraftDiscard)
			})
		})
	})

	return r
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("Shutting down HTTP server")
		s.limiter.Stop()
		return srv.Shutdown(shutdownCtx)
	}
}

func durationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := fmt.Sprintf("%dxx", ww.Status()/100)
		metrics.HTTPDuration.WithLabelValues(route, status).Observe(time.Since(start).Seconds())
	})
}
