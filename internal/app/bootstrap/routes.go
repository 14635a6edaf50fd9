// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	authapifeature "github.com/dalemusser/gympro/internal/app/features/authapi"
	healthfeature "github.com/dalemusser/gympro/internal/app/features/health"
	usersfeature "github.com/dalemusser/gympro/internal/app/features/users"
	"github.com/dalemusser/gympro/internal/app/store/audit"
	userstore "github.com/dalemusser/gympro/internal/app/store/users"
	"github.com/dalemusser/gympro/internal/app/system/auditlog"
	"github.com/dalemusser/gympro/internal/app/system/auth"
	"github.com/dalemusser/gympro/internal/app/system/authn"
	"github.com/dalemusser/gympro/internal/app/system/denylist"
	"github.com/dalemusser/gympro/internal/app/system/httpjson"
	"github.com/dalemusser/gympro/internal/app/system/password"
	"github.com/dalemusser/gympro/internal/app/system/token"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup and
// Startup have completed. It builds the shared services once (hasher,
// token issuer, denylist, audit logger, user store), injects them into the
// feature handlers and mounts:
//
//	/health      liveness of MongoDB and Redis
//	/api/test    smoke endpoint
//	/api/auth    register, login, logout, me
//	/api/users   admin-only user management
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	tokens, err := token.New(appCfg.JWTSecret, appCfg.JWTIssuer, appCfg.JWTTTL)
	if err != nil {
		logger.Error("token issuer init failed", zap.Error(err))
		return nil, err
	}
	hasher := password.NewHasher(appCfg.BcryptCost)
	users := userstore.New(deps.MongoDatabase, hasher)

	auditLog := auditlog.New(audit.New(deps.MongoDatabase), logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})

	// Interface values stay nil unless Redis is configured.
	var (
		revoker authn.Revoker
		checker auth.RevocationChecker
		cache   healthfeature.Pinger
	)
	if deps.Redis != nil {
		dl := denylist.New(deps.Redis)
		revoker, checker, cache = dl, dl, dl
	}

	authSvc := authn.New(authn.Deps{
		Store:   users,
		Hasher:  hasher,
		Tokens:  tokens,
		Revoker: revoker,
		Audit:   auditLog,
		Log:     logger,
	})
	authenticator := auth.New(tokens, checker, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if appCfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   appCfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(auditlog.CaptureClient)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, cache, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Get("/api/test", func(w http.ResponseWriter, r *http.Request) {
		httpjson.JSON(w, http.StatusOK, httpjson.Message{Message: "Backend is working!"})
	})

	authHandler := authapifeature.NewHandler(authSvc, deps.LoginLimiter, auditLog, logger)
	r.Mount("/api/auth", authapifeature.Routes(authHandler, authenticator))

	usersHandler := usersfeature.NewHandler(users, auditLog, logger)
	r.Mount("/api/users", usersfeature.Routes(usersHandler, authenticator))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpjson.Error(w, http.StatusNotFound, "Route not found")
	})

	if !authSvc.Revokes() {
		logger.Warn("logout cannot revoke tokens; they stay valid until expiry",
			zap.Duration("token_ttl", tokens.TTL()))
	}
	logger.Info("routes mounted",
		zap.Bool("token_revocation", authSvc.Revokes()),
		zap.Duration("token_ttl", tokens.TTL()),
		zap.Int("bcrypt_cost", hasher.Cost()),
		zap.Bool("trust_proxy_headers", appCfg.TrustProxyHeaders),
		zap.Strings("cors_origins", appCfg.CORSAllowedOrigins))

	return r, nil
}
