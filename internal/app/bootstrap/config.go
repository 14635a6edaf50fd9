// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/gympro/internal/app/system/password"
	"github.com/dalemusser/gympro/internal/app/system/token"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// devJWTSecret is the default signing key. ValidateConfig refuses it in prod.
const devJWTSecret = "dev-only-change-me-please-0123456789ABCDEF"

// minProdSecretLen is the shortest signing key accepted in prod.
const minProdSecretLen = 32

// appConfigKeys defines the configuration keys for GymPro.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, jwt_secret, etc.
//   - Environment variables: GYMPRO_MONGO_URI, GYMPRO_JWT_SECRET, etc.
//   - Command-line flags: --mongo_uri, --jwt_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "gympro", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Tokens
	{Name: "jwt_secret", Default: devJWTSecret, Desc: "HMAC key for signing bearer tokens (32+ bytes in production)"},
	{Name: "jwt_issuer", Default: "gympro", Desc: "Issuer claim written to and required on tokens"},
	{Name: "jwt_ttl", Default: "24h", Desc: "Token lifetime (e.g., 24h, 30m)"},

	{Name: "bcrypt_cost", Default: password.DefaultCost, Desc: "bcrypt work factor (4-31)"},

	// Redis (logout denylist)
	{Name: "redis_addr", Default: "", Desc: "Redis host:port for the token denylist (blank disables logout revocation)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},

	{Name: "cors_allowed_origins", Default: "http://localhost:3000,http://localhost:5173,http://127.0.0.1:5173", Desc: "Comma-separated browser origins allowed to call the API"},
	{Name: "trust_proxy_headers", Default: false, Desc: "Take the client IP from X-Forwarded-For/X-Real-IP (only behind a trusted proxy)"},

	// Login throttling
	{Name: "login_rate_limit", Default: 5, Desc: "Login attempts allowed per email per window"},
	{Name: "login_rate_window", Default: "5m", Desc: "Per-email login window"},
	{Name: "login_ip_rate_limit", Default: 10, Desc: "Login attempts allowed per client IP per window"},
	{Name: "login_ip_rate_window", Default: "1m", Desc: "Per-IP login window"},

	// Default admin bootstrap
	{Name: "default_admin_name", Default: "Admin User", Desc: "Name of the admin seeded when no admin exists"},
	{Name: "default_admin_email", Default: "admin@gympro.com", Desc: "Email of the seeded admin (blank disables seeding)"},
	{Name: "default_admin_password", Default: "admin123", Desc: "Initial password of the seeded admin"},

	// Timeouts
	{Name: "timeout_short", Default: "5s", Desc: "Deadline for single-document operations"},
	{Name: "timeout_medium", Default: "10s", Desc: "Deadline for list operations"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// environment variables (GYMPRO_* for the app) and flags with precedence
// flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "GYMPRO", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		JWTSecret: appValues.String("jwt_secret"),
		JWTIssuer: appValues.String("jwt_issuer"),
		JWTTTL:    appValues.Duration("jwt_ttl", token.DefaultTTL),

		BcryptCost: appValues.Int("bcrypt_cost"),

		RedisAddr:     strings.TrimSpace(appValues.String("redis_addr")),
		RedisPassword: appValues.String("redis_password"),
		RedisDB:       appValues.Int("redis_db"),

		CORSAllowedOrigins: splitList(appValues.String("cors_allowed_origins")),
		TrustProxyHeaders:  appValues.Bool("trust_proxy_headers"),

		LoginRateLimit:    appValues.Int("login_rate_limit"),
		LoginRateWindow:   appValues.Duration("login_rate_window", 5*time.Minute),
		LoginIPRateLimit:  appValues.Int("login_ip_rate_limit"),
		LoginIPRateWindow: appValues.Duration("login_ip_rate_window", time.Minute),

		DefaultAdminName:     appValues.String("default_admin_name"),
		DefaultAdminEmail:    strings.TrimSpace(appValues.String("default_admin_email")),
		DefaultAdminPassword: appValues.String("default_admin_password"),

		TimeoutShort:  appValues.Duration("timeout_short", 5*time.Second),
		TimeoutMedium: appValues.Duration("timeout_medium", 10*time.Second),

		AuditLogAuth:  appValues.String("audit_log_auth"),
		AuditLogAdmin: appValues.String("audit_log_admin"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation. Returning an
// error aborts startup before any backend is contacted.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if appCfg.JWTSecret == "" {
		return errors.New("jwt_secret is required")
	}
	if coreCfg != nil && coreCfg.Env == "prod" {
		if len(appCfg.JWTSecret) < minProdSecretLen || appCfg.JWTSecret == devJWTSecret {
			return fmt.Errorf("jwt_secret must be a unique value of at least %d bytes in prod", minProdSecretLen)
		}
	}
	if appCfg.JWTTTL <= 0 {
		return errors.New("jwt_ttl must be positive")
	}

	if appCfg.BcryptCost < bcrypt.MinCost || appCfg.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	if appCfg.LoginRateLimit < 1 || appCfg.LoginIPRateLimit < 1 {
		return errors.New("login rate limits must be at least 1")
	}

	if appCfg.DefaultAdminEmail != "" && len(appCfg.DefaultAdminPassword) < password.MinLength {
		return fmt.Errorf("default_admin_password must be at least %d characters", password.MinLength)
	}

	for _, v := range []string{appCfg.AuditLogAuth, appCfg.AuditLogAdmin} {
		switch v {
		case "", "all", "db", "log", "off":
		default:
			return fmt.Errorf("invalid audit log setting %q (want all, db, log or off)", v)
		}
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
