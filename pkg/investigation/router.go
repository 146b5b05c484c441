package investigation

import (
	"github.com/go-chi/chi/v5"

	"github.com/vehicle-quality/acd-registry/pkg/audit"
	"github.com/vehicle-quality/acd-registry/pkg/cache"
)

// NewRouter creates a chi router with the project, binding, export and audit
// routes. It expects the caller role in the request context (see
// authz.RoleMiddleware).
func NewRouter(svc *Service) chi.Router {
	return NewRouterWithCache(svc, nil)
}

// NewRouterWithCache is NewRouter with read endpoints served through cm.
// A nil cm disables caching. The caller is responsible for registering
// cm.InvalidateAll as a commit hook on svc.
func NewRouterWithCache(svc *Service, cm *cache.CacheManager) chi.Router {
	r := chi.NewRouter()

	r.Route("/projects", func(r chi.Router) {
		r.With(cm.ProjectsMiddleware()).Get("/", listProjectsHandler(svc))
		r.Post("/", createProjectHandler(svc))
		r.With(cm.ProjectsMiddleware()).Get("/{projectId}", getProjectHandler(svc))
		r.Post("/{projectId}/status", updateStatusHandler(svc))
	})

	r.Post("/bin", bindSourceHandler(svc))
	r.Get("/sources/{sourceType}/{sourceId}", lookupSourceHandler(svc))
	r.Get("/export", exportHandler(svc))

	r.Route("/audit", func(r chi.Router) {
		r.Use(cm.AuditMiddleware())
		r.Mount("/v1", audit.Router(svc.Recorder()))
		r.Get("/{projectId}", projectAuditHandler(svc))
	})

	return r
}
