package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/backoffice/backoffice/internal/audit"
	"github.com/backoffice/backoffice/internal/auth"
	"github.com/backoffice/backoffice/internal/observability"
	"github.com/backoffice/backoffice/internal/organizations"
	"github.com/backoffice/backoffice/internal/permissions"
	"github.com/backoffice/backoffice/internal/platform/httpx"
	"github.com/backoffice/backoffice/internal/rbac"
	"github.com/backoffice/backoffice/internal/roles"
	"github.com/backoffice/backoffice/internal/users"
	"github.com/backoffice/backoffice/jobs"
)

// APIPrefix is the mount point of the JSON API.
const APIPrefix = "/internal/api/v1"

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	RBACMiddleware      rbac.Middleware
	AuthHandler         *auth.Handler
	PermissionsHandler  *permissions.Handler
	OrganizationHandler *organizations.Handler
	RolesHandler        *roles.Handler
	UsersHandler        *users.Handler
	AuditHandler        *audit.Handler
	JobHandler          *jobs.Handler
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, http.StatusText(http.StatusNotFound), "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed), "")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route(APIPrefix, func(r chi.Router) {
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.PermissionsHandler != nil {
			r.Route("/permissions", func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireAuth())
				params.PermissionsHandler.MountRoutes(r)
			})
		}
		r.Route("/organizations", func(r chi.Router) {
			if params.OrganizationHandler != nil {
				params.OrganizationHandler.MountRoutes(r)
			}
			if params.RolesHandler != nil {
				r.Route("/{"+rbac.OrganizationParam+"}/roles", params.RolesHandler.MountRoutes)
			}
			if params.UsersHandler != nil {
				r.Route("/{"+rbac.OrganizationParam+"}/users", params.UsersHandler.MountRoutes)
			}
			if params.AuditHandler != nil {
				r.Route("/{"+rbac.OrganizationParam+"}/audit", params.AuditHandler.MountRoutes)
			}
		})
	})

	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireAuth())
			params.JobHandler.MountRoutes(r)
		})
	}
	return r
}
