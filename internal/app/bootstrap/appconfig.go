// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables (GYMPRO_*), configuration
// files, or command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig
// covers the HTTP listener, TLS, and logging; everything below is specific
// to the back-office API.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Bearer tokens
	JWTSecret string // HMAC signing key (32+ bytes in production)
	JWTIssuer string
	JWTTTL    time.Duration

	// Password hashing work factor
	BcryptCost int

	// Redis backs the logout denylist. Blank RedisAddr disables it.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Browser origins allowed to call the API
	CORSAllowedOrigins []string

	// Read the client IP from X-Forwarded-For / X-Real-IP. Only set behind a
	// proxy that overwrites those headers.
	TrustProxyHeaders bool

	// Login throttling
	LoginRateLimit    int           // attempts per email per window
	LoginRateWindow   time.Duration
	LoginIPRateLimit  int           // attempts per client IP per window
	LoginIPRateWindow time.Duration

	// Admin account seeded on first start when none exists
	DefaultAdminName     string
	DefaultAdminEmail    string
	DefaultAdminPassword string

	// Per-operation deadlines
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration

	// Audit logging: "all", "db", "log", or "off"
	AuditLogAuth  string
	AuditLogAdmin string
}
