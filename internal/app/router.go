package app

import (
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/shelfmark/shelfmark/internal/auth"
	"github.com/shelfmark/shelfmark/internal/books"
	"github.com/shelfmark/shelfmark/internal/observability"
	"github.com/shelfmark/shelfmark/internal/shared"
	"github.com/shelfmark/shelfmark/internal/view"
	"github.com/shelfmark/shelfmark/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	Templates    *view.Engine
	AuthService  *auth.Service
	CSRFManager  *shared.CSRFManager
	AuthHandler  *auth.Handler
	BooksHandler *books.Handler
	Metrics      *observability.Metrics
}

// NewRouter constructs the chi.Router with Shelfmark defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:      params.Logger,
		Config:      params.Config,
		AuthService: params.AuthService,
		CSRFManager: params.CSRFManager,
		Metrics:     params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Landing page for unauthenticated visitors.
	r.Get("/welcome", func(w http.ResponseWriter, r *http.Request) {
		data := view.TemplateData{
			Title:       "Shelfmark",
			CSRFToken:   params.CSRFManager.EnsureToken(w, r),
			Identity:    shared.IdentityFromContext(r.Context()),
			CurrentPath: r.URL.Path,
		}
		if err := params.Templates.Render(w, "pages/landing.html", data); err != nil {
			params.Logger.Error("render landing", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		if shared.IdentityFromContext(r.Context()) == nil {
			http.Redirect(w, r, "/welcome", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/books", http.StatusSeeOther)
	})

	r.Route("/auth", func(r chi.Router) {
		// Tighter limit on credential endpoints to slow guessing.
		r.Use(httprate.Limit(15, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		params.AuthHandler.MountRoutes(r)
	})

	r.Route("/books", func(r chi.Router) {
		r.Use(auth.RequireAuth)
		params.BooksHandler.MountRoutes(r)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
