// Package api exposes an experiments directory over HTTP.
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/clive/experimenter/internal/runs"
	"github.com/clive/experimenter/internal/workspace"
)

// OpenFunc opens a fresh workspace on the served directory. Handlers call it
// per request so edits made elsewhere are always seen.
type OpenFunc func() (*workspace.Workspace, error)

// DirOpener returns an OpenFunc over dir.
func DirOpener(dir string, opts workspace.Options) OpenFunc {
	return func() (*workspace.Workspace, error) {
		ws := workspace.New(opts)
		if _, err := ws.Open(dir); err != nil {
			return nil, err
		}
		return ws, nil
	}
}

// NewRouter creates the Chi router with all routes and middleware. db and
// runStore may be nil when run history is disabled.
func NewRouter(
	open OpenFunc,
	db *runs.DB,
	runStore *runs.RunStore,
	apiKey string,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	healthH := NewHealthHandler(db)
	tabH := NewTabHandler(open, logger)

	r.Get("/health", healthH.Health)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(apiKey))

		r.Route("/tabs", func(r chi.Router) {
			r.Get("/", tabH.List)
			r.Get("/{name}", tabH.Get)
			r.Put("/{name}", tabH.Put)
			r.Get("/{name}/params", tabH.Params)
			r.Post("/{name}/run", tabH.Run)
		})
		r.Post("/run", tabH.RunAll)

		if runStore != nil {
			runH := NewRunHandler(runStore)
			r.Route("/runs", func(r chi.Router) {
				r.Get("/", runH.List)
				r.Get("/{id}", runH.Get)
			})
		}
	})

	return r
}
