package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/gympro/internal/app/system/httpjson"
	"github.com/dalemusser/gympro/internal/app/system/timeouts"
	"github.com/dalemusser/gympro/internal/app/system/token"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Messages                                                                   |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	MsgNoToken      = "No token provided"
	MsgInvalidToken = "Invalid token"
	MsgAdminOnly    = "Admin access required"
	MsgServerError  = "Server error"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Principal                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// Principal is the verified identity attached to a request.
type Principal struct {
	SubjectID string
	Role      string
	TokenID   string
	ExpiresAt time.Time
}

// IsAdmin reports whether the principal holds the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && strings.EqualFold(p.Role, "admin")
}

type ctxKey string

const principalKey ctxKey = "principal"

// CurrentPrincipal returns the principal & “found?” flag.
func CurrentPrincipal(r *http.Request) (*Principal, bool) {
	p, ok := r.Context().Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Authenticator                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// TokenVerifier checks a raw bearer token.
type TokenVerifier interface {
	Verify(raw string) (*token.Claims, error)
}

// RevocationChecker reports whether a token id was revoked at logout.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Authenticator turns bearer tokens into request principals.
type Authenticator struct {
	tokens  TokenVerifier
	revoked RevocationChecker
	log     *zap.Logger
}

// New builds an Authenticator. revoked may be nil when no denylist is
// configured.
func New(tokens TokenVerifier, revoked RevocationChecker, logger *zap.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, revoked: revoked, log: logger}
}

var (
	errNoToken = errors.New("no token")
	errRevoked = errors.New("token revoked")
)

// authenticate resolves the request's bearer token to a principal.
func (a *Authenticator) authenticate(r *http.Request) (*Principal, error) {
	raw, ok := BearerToken(r)
	if !ok {
		return nil, errNoToken
	}

	claims, err := a.tokens.Verify(raw)
	if err != nil {
		return nil, err
	}

	if a.revoked != nil {
		ctx, cancel := timeouts.WithShort(r.Context())
		defer cancel()
		revoked, err := a.revoked.IsRevoked(ctx, claims.TokenID())
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, errRevoked
		}
	}

	return &Principal{
		SubjectID: claims.SubjectID(),
		Role:      strings.ToLower(claims.Role),
		TokenID:   claims.TokenID(),
		ExpiresAt: claims.Expiry(),
	}, nil
}

// RequireToken rejects requests without a valid bearer token.
//   - no token:                   401 "No token provided"
//   - invalid, expired, revoked:  401 "Invalid token"
func (a *Authenticator) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.authenticate(r)
		switch {
		case err == nil:
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		case errors.Is(err, errNoToken):
			httpjson.Error(w, http.StatusUnauthorized, MsgNoToken)
		case errors.Is(err, token.ErrInvalidToken), errors.Is(err, errRevoked):
			httpjson.Error(w, http.StatusUnauthorized, MsgInvalidToken)
		default:
			// Denylist unreachable: fail closed.
			a.log.Error("token revocation check failed", zap.Error(err))
			httpjson.Error(w, http.StatusInternalServerError, MsgServerError)
		}
	})
}

// OptionalToken attaches a principal when a valid token is presented and
// otherwise lets the request through anonymously.
func (a *Authenticator) OptionalToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.authenticate(r)
		if err == nil {
			r = r.WithContext(WithPrincipal(r.Context(), p))
		} else if !errors.Is(err, errNoToken) {
			a.log.Debug("ignoring unusable bearer token", zap.Error(err))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole lets through only principals holding one of the allowed
// roles; everyone else gets 403 "Admin access required". It must run after
// RequireToken.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := CurrentPrincipal(r)
			if !ok {
				httpjson.Error(w, http.StatusForbidden, MsgAdminOnly)
				return
			}
			if _, has := set[strings.ToLower(p.Role)]; !has {
				httpjson.Error(w, http.StatusForbidden, MsgAdminOnly)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
// A header without the Bearer scheme is passed through as the token itself
// so that it fails verification rather than reading as absent.
func BearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return "", false
	}
	if len(h) >= 7 && strings.EqualFold(h[:7], "bearer ") {
		h = strings.TrimSpace(h[7:])
	}
	if h == "" || strings.EqualFold(h, "bearer") {
		return "", false
	}
	return h, true
}
