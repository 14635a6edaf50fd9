// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"

	"github.com/dalemusser/gympro/internal/app/store/audit"
	"github.com/dalemusser/gympro/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for authentication events (register, login, logout).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Auth string
	// Admin controls logging for admin actions (user update/delete, default admin seed).
	// Same values as Auth.
	Admin string
}

// EventStore persists audit events.
type EventStore interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger records audit events to MongoDB (via EventStore) and zap.
type Logger struct {
	store  EventStore
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger. store may be nil when only "log" or
// "off" settings are used.
func New(store EventStore, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Request origin                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

// Client identifies where a request came from.
type Client struct {
	IP        string
	UserAgent string
}

type ctxKey struct{}

// WithClient returns ctx carrying c.
func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// ClientFrom returns the Client stored in ctx, if any.
func ClientFrom(ctx context.Context) Client {
	c, _ := ctx.Value(ctxKey{}).(Client)
	return c
}

// CaptureClient stores the caller's IP and user agent in the request
// context so services can audit without seeing the request.
func CaptureClient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithClient(r.Context(), Client{IP: ratelimit.ClientIP(r), UserAgent: r.UserAgent()})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Core                                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration. A nil Logger is a
// no-op so tests and optional wiring can pass nil.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = "all"
	}
	if setting == "" {
		setting = "all"
	}
	if setting == "off" {
		return
	}

	if event.IP == "" && event.UserAgent == "" {
		c := ClientFrom(ctx)
		event.IP, event.UserAgent = c.IP, c.UserAgent
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if (setting == "all" || setting == "db") && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Authentication events                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// UserRegistered logs a new account. actorID is set when an admin created it.
func (l *Logger) UserRegistered(ctx context.Context, userID primitive.ObjectID, actorID *primitive.ObjectID, email, role string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventUserRegistered,
		UserID:    &userID,
		ActorID:   actorID,
		Success:   true,
		Details:   map[string]string{"email": email, "role": role},
	})
}

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, userID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		Success:   true,
		Details:   map[string]string{"email": email},
	})
}

// LoginFailedUserNotFound logs a login for an unknown email.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, email string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedUserNotFound,
		FailureReason: "user not found",
		Details:       map[string]string{"attempted_email": email},
	})
}

// LoginFailedWrongPassword logs a login with a wrong secret.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, userID primitive.ObjectID, email string) {
	l.loginFailed(ctx, audit.EventLoginFailedWrongPassword, userID, email, "wrong password")
}

// LoginFailedDeactivated logs a login to a deactivated account.
func (l *Logger) LoginFailedDeactivated(ctx context.Context, userID primitive.ObjectID, email string) {
	l.loginFailed(ctx, audit.EventLoginFailedDeactivated, userID, email, "account deactivated")
}

// LoginFailedNotAdmin logs a correct login by a non-admin account.
func (l *Logger) LoginFailedNotAdmin(ctx context.Context, userID primitive.ObjectID, email string) {
	l.loginFailed(ctx, audit.EventLoginFailedNotAdmin, userID, email, "not an admin")
}

func (l *Logger) loginFailed(ctx context.Context, eventType string, userID primitive.ObjectID, email, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		UserID:        &userID,
		FailureReason: reason,
		Details:       map[string]string{"email": email},
	})
}

// LoginFailedRateLimit logs a login rejected by the rate limiter.
func (l *Logger) LoginFailedRateLimit(ctx context.Context, email string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedRateLimit,
		FailureReason: "rate limited",
		Details:       map[string]string{"attempted_email": email},
	})
}

// Logout logs a logout. userIDStr comes from token claims; a malformed
// value is logged without a user id.
func (l *Logger) Logout(ctx context.Context, userIDStr string) {
	event := audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		Success:   true,
	}
	if id, err := primitive.ObjectIDFromHex(userIDStr); err == nil {
		event.UserID = &id
	}
	l.Log(ctx, event)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Admin events                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

// UserUpdated logs an admin profile change.
func (l *Logger) UserUpdated(ctx context.Context, actorID, targetID primitive.ObjectID, fieldsChanged string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventUserUpdated,
		UserID:    &targetID,
		ActorID:   &actorID,
		Success:   true,
		Details:   map[string]string{"fields_changed": fieldsChanged},
	})
}

// UserDeleted logs an admin deleting an account.
func (l *Logger) UserDeleted(ctx context.Context, actorID, targetID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventUserDeleted,
		UserID:    &targetID,
		ActorID:   &actorID,
		Success:   true,
	})
}

// DefaultAdminCreated logs the startup provisioning of the first admin.
func (l *Logger) DefaultAdminCreated(ctx context.Context, userID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventDefaultAdminSeed,
		UserID:    &userID,
		Success:   true,
		Details:   map[string]string{"email": email},
	})
}
