package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vantage-admin/vantage-admin/internal/audit"
	"github.com/vantage-admin/vantage-admin/internal/observability"
	"github.com/vantage-admin/vantage-admin/internal/permissions"
	"github.com/vantage-admin/vantage-admin/internal/roles"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	PermissionsHandler *permissions.Handler
	RolesHandler       *roles.Handler
	AuditHandler       *audit.Handler
	Metrics            *observability.Metrics
	AdminSweep         http.Handler
	AdminGuard         func(http.Handler) http.Handler
}

// NewRouter constructs the chi.Router with Vantage defaults.
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

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	var writeLimit func(http.Handler) http.Handler
	if params.Config != nil {
		writeLimit = WriteThrottle(params.Config.WriteRateLimit, params.Config.WriteRateWindow)
	}

	if params.PermissionsHandler != nil {
		r.Route("/permissions", func(r chi.Router) {
			if writeLimit != nil {
				r.Use(writeLimit)
			}
			params.PermissionsHandler.MountRoutes(r)
		})
	}

	if params.RolesHandler != nil {
		r.Route("/roles", func(r chi.Router) {
			if writeLimit != nil {
				r.Use(writeLimit)
			}
			params.RolesHandler.MountRoutes(r)
		})
	}

	if params.AuditHandler != nil {
		r.Route("/audit", params.AuditHandler.MountRoutes)
	}

	if params.AdminSweep != nil {
		r.Route("/admin", func(r chi.Router) {
			if params.AdminGuard != nil {
				r.Use(params.AdminGuard)
			}
			r.Method(http.MethodPost, "/grant-sweep", params.AdminSweep)
		})
	}

	return r
}
