package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mitienda/mitienda/internal/auth"
	"github.com/mitienda/mitienda/internal/cart"
	"github.com/mitienda/mitienda/internal/catalog"
	"github.com/mitienda/mitienda/internal/checkout"
	"github.com/mitienda/mitienda/internal/pages"
	"github.com/mitienda/mitienda/internal/reporting"
	"github.com/mitienda/mitienda/internal/shared"
	"github.com/mitienda/mitienda/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthService *auth.Service

	AuthHandler      *auth.Handler
	CatalogHandler   *catalog.Handler
	CartHandler      *cart.Handler
	CheckoutHandler  *checkout.Handler
	PagesHandler     *pages.Handler
	ReportingHandler *reporting.Handler
}

// NewRouter constructs the chi.Router for the storefront.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	params.CatalogHandler.MountRoutes(r)
	params.CartHandler.MountRoutes(r)
	params.CheckoutHandler.MountRoutes(r)
	params.PagesHandler.MountRoutes(r)
	params.AuthHandler.MountRoutes(r)

	r.Route("/admin", func(r chi.Router) {
		r.Use(RequireStaff(params.AuthService, params.Logger))
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/admin/products", http.StatusSeeOther)
		})
		params.ReportingHandler.MountRoutes(r)
		params.CatalogHandler.MountAdminRoutes(r)
		params.CheckoutHandler.MountAdminRoutes(r)
		params.PagesHandler.MountAdminRoutes(r)
	})

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers so
// browsers keep assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
