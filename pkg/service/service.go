// Package service exposes the engine over HTTP: versioned record writes and
// queries, daily facts, metric snapshots, sync runs, and the audit trail.
// Tenant resolution happens in middleware; handlers read the tenant from the
// request context and never trust a body-supplied tenant over it.
package service

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/hrsignal/temporal-engine/pkg/audit"
	"github.com/hrsignal/temporal-engine/pkg/directory"
	"github.com/hrsignal/temporal-engine/pkg/facts"
	"github.com/hrsignal/temporal-engine/pkg/ingest"
	"github.com/hrsignal/temporal-engine/pkg/metrics"
	"github.com/hrsignal/temporal-engine/pkg/query"
	"github.com/hrsignal/temporal-engine/pkg/tenancy"
	"github.com/hrsignal/temporal-engine/pkg/validator"
)

// Service bundles the engine's components behind one router.
type Service struct {
	validator *validator.Validator
	engine    *query.Engine
	reporter  *metrics.Reporter
	history   *metrics.HistoryStore
	subjects  *directory.Store
	facts     *facts.Store
	auditLog  *audit.Store
	syncs     *ingest.SyncStore
	tenancy   *tenancy.Config
	logger    *slog.Logger
}

// Config collects the dependencies of a Service. History, AuditLog, and
// Syncs may be nil; the corresponding endpoints then answer 404.
type Config struct {
	Validator *validator.Validator
	Engine    *query.Engine
	Reporter  *metrics.Reporter
	History   *metrics.HistoryStore
	Subjects  *directory.Store
	Facts     *facts.Store
	AuditLog  *audit.Store
	Syncs     *ingest.SyncStore
	Tenancy   *tenancy.Config
	Logger    *slog.Logger
}

// New creates a Service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		validator: cfg.Validator,
		engine:    cfg.Engine,
		reporter:  cfg.Reporter,
		history:   cfg.History,
		subjects:  cfg.Subjects,
		facts:     cfg.Facts,
		auditLog:  cfg.AuditLog,
		syncs:     cfg.Syncs,
		tenancy:   cfg.Tenancy,
		logger:    logger,
	}
}

// Router mounts every endpoint under /api/v1 with tenant resolution and CORS
// applied.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", tenancy.TenantHeader},
	}))

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(tenancy.NewMiddleware(s.tenancy))

		api.Post("/records", s.handleWriteRecord)
		api.Get("/records/{recordId}", s.handleGetRecord)
		api.Post("/records/{recordId}:close", s.handleCloseRecord)

		api.Get("/subjects", s.handleListSubjects)
		api.Post("/subjects", s.handleUpsertSubject)
		api.Get("/subjects/{subjectId}/active", s.handleActiveAsOf)
		api.Get("/subjects/{subjectId}/records", s.handleSeries)
		api.Get("/subjects/{subjectId}/facts", s.handleListFacts)

		api.Post("/facts", s.handleWriteFact)

		api.Get("/metrics", s.handleMetrics)
		api.Get("/metrics/{metric}/history", s.handleMetricHistory)

		api.Post("/sync", s.handleEnqueueSync)
		api.Get("/sync", s.handleListSyncs)
		api.Get("/sync/{runId}", s.handleGetSync)
		api.Post("/sync/{runId}:cancel", s.handleCancelSync)

		api.Get("/audit", s.handleListAudit)
	})

	return r
}

func (s *Service) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
