// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/gympro/internal/app/store/audit"
	userstore "github.com/dalemusser/gympro/internal/app/store/users"
	"github.com/dalemusser/gympro/internal/app/system/auditlog"
	"github.com/dalemusser/gympro/internal/app/system/password"
	"github.com/dalemusser/gympro/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := ensureDefaultAdmin(ctx, deps, appCfg, logger); err != nil {
		logger.Error("default admin bootstrap failed", zap.Error(err))
		return err
	}
	return nil
}

// ensureDefaultAdmin seeds the configured admin account when the database
// has no admin at all. A blank default_admin_email disables seeding.
func ensureDefaultAdmin(ctx context.Context, deps DBDeps, appCfg AppConfig, logger *zap.Logger) error {
	if appCfg.DefaultAdminEmail == "" {
		return nil
	}

	users := userstore.New(deps.MongoDatabase, password.NewHasher(appCfg.BcryptCost))

	exists, err := users.AdminExists(ctx)
	if err != nil {
		return fmt.Errorf("check for admin: %w", err)
	}
	if exists {
		logger.Debug("admin account present; skipping default admin")
		return nil
	}

	if _, err := users.GetByEmail(ctx, appCfg.DefaultAdminEmail); err == nil {
		logger.Warn("default admin email is taken by a non-admin account; not seeding",
			zap.String("email", appCfg.DefaultAdminEmail))
		return nil
	} else if !errors.Is(err, userstore.ErrNotFound) {
		return fmt.Errorf("look up default admin: %w", err)
	}

	u, err := users.Create(ctx, userstore.NewUser{
		Name:     appCfg.DefaultAdminName,
		Email:    appCfg.DefaultAdminEmail,
		Password: appCfg.DefaultAdminPassword,
		Role:     models.RoleAdmin,
	})
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		// Lost a race with another instance.
		return nil
	}
	if err != nil {
		return fmt.Errorf("create default admin: %w", err)
	}

	al := auditlog.New(audit.New(deps.MongoDatabase), logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})
	al.DefaultAdminCreated(ctx, u.ID, u.Email)

	logger.Info("created default admin account", zap.String("email", u.Email))
	return nil
}
