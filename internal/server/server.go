package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riandyrn/otelchi"

	"github.com/faisalx96/saqal/internal/application/services"
	"github.com/faisalx96/saqal/internal/config"
	"github.com/faisalx96/saqal/internal/server/handlers"
)

const ReadTimeout = 30 * time.Second

type Server struct {
	cfg    *config.Config
	router *chi.Mux
	server *http.Server
}

func NewServer(
	cfg *config.Config,
	pool *pgxpool.Pool,
	sessionSvc *services.SessionService,
	workflowSvc *services.WorkflowService,
	runSvc *services.RunService,
	lineageSvc *services.LineageService,
	exportSvc *services.ExportService,
) *Server {
	router := chi.NewRouter()

	router.Use(otelchi.Middleware("saqal-api"))
	router.Use(Recovery)
	router.Use(Logger)
	router.Use(Metrics)
	router.Use(CORS(cfg.Server.CORSOrigins))

	healthH := handlers.NewHealthHandler(handlers.HealthHandlerConfig{
		DBPing: func(ctx context.Context) error { return pool.Ping(ctx) },
	})
	router.Get("/health", healthH.Readiness)
	router.Get("/health/ready", healthH.Readiness)
	router.Get("/health/live", healthH.Liveness)

	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		sessionH := handlers.NewSessionHandler(sessionSvc)
		r.Post("/sessions", sessionH.Create)
		r.Get("/sessions", sessionH.List)
		r.Get("/sessions/{id}", sessionH.Get)
		r.Delete("/sessions/{id}", sessionH.Delete)
		r.Post("/sessions/{id}/archive", sessionH.Archive)
		r.Post("/sessions/{id}/inputs", sessionH.AddInput)
		r.Get("/sessions/{id}/inputs", sessionH.ListInputs)
		r.Delete("/inputs/{id}", sessionH.DeleteInput)

		workflowH := handlers.NewWorkflowHandler(workflowSvc, runSvc)
		r.Post("/sessions/{id}/review", workflowH.BeginReview)
		r.Post("/sessions/{id}/adapt", workflowH.BeginAdapt)
		r.Get("/sessions/{id}/proposal", workflowH.GetProposal)
		r.Get("/sessions/{id}/proposal/diff", workflowH.GetProposalDiff)
		r.Post("/sessions/{id}/accept", workflowH.Accept)
		r.Post("/sessions/{id}/reject", workflowH.Reject)
		r.Post("/sessions/{id}/keep-new", workflowH.KeepNew)
		r.Post("/sessions/{id}/revert", workflowH.Revert)
		r.Post("/sessions/{id}/finish", workflowH.Finish)
		r.Post("/results/{id}/feedback", workflowH.SetFeedback)
		r.Post("/results/{id}/comparison", workflowH.SetComparison)

		lineageH := handlers.NewLineageHandler(lineageSvc, runSvc)
		r.Get("/sessions/{id}/history", lineageH.History)
		r.Get("/sessions/{id}/current", lineageH.Current)
		r.Get("/sessions/{id}/frontier", lineageH.Frontier)
		r.Post("/sessions/{id}/frontier", lineageH.AppendFrontier)
		r.Get("/versions/{id}/children", lineageH.Children)
		r.Get("/versions/{id}/results", lineageH.VersionResults)
		r.Get("/versions/{id}/feedback-summary", lineageH.FeedbackSummary)

		exportH := handlers.NewExportHandler(exportSvc)
		r.Get("/sessions/{id}/export/markdown", exportH.Markdown)
		r.Get("/sessions/{id}/export/json", exportH.JSON)
	})

	return &Server{
		cfg:    cfg,
		router: router,
	}
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: ReadTimeout,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
