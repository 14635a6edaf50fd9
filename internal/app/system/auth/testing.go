package auth

import "net/http"

// WithTestPrincipal attaches p to r as if RequireToken had verified it.
// Intended for handler tests.
func WithTestPrincipal(r *http.Request, p *Principal) *http.Request {
	return r.WithContext(WithPrincipal(r.Context(), p))
}
