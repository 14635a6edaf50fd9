// internal/app/features/authapi/routes.go
package authapi

import (
	"github.com/dalemusser/gympro/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the account endpoints (typically at "/api/auth").
func Routes(h *Handler, a *auth.Authenticator) chi.Router {
	r := chi.NewRouter()

	// Admins may create admin accounts; everyone else registers as a user.
	r.With(a.OptionalToken).Post("/register", h.HandleRegister)
	r.Post("/login", h.HandleLogin)

	r.Group(func(pr chi.Router) {
		pr.Use(a.RequireToken)
		pr.Post("/logout", h.HandleLogout)
		pr.Get("/me", h.ServeMe)
	})

	return r
}
