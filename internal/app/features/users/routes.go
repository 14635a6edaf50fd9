// internal/app/features/users/routes.go
package users

import (
	"github.com/dalemusser/gympro/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts user management under the path where this router is
// mounted (typically "/api/users"). Every route requires an admin token.
func Routes(h *Handler, a *auth.Authenticator) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(a.RequireToken)
		pr.Use(auth.RequireRole("admin"))

		pr.Get("/", h.ServeList)
		pr.Get("/{id}", h.ServeGet)
		pr.Put("/{id}", h.HandleUpdate)
		pr.Delete("/{id}", h.HandleDelete)
	})

	return r
}
