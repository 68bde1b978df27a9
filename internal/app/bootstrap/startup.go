// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dalemusser/freshershub/internal/app/system/notify"
	"github.com/dalemusser/freshershub/internal/app/system/observability"
	"github.com/dalemusser/freshershub/internal/app/system/timeouts"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{Upload: appCfg.UploadTimeout})
	notify.UseCache(deps.Cache)

	if appCfg.SentryDSN != "" {
		flush, err := observability.InitSentry(appCfg.SentryDSN, coreCfg.Env, "freshershub")
		if err != nil {
			// Error reporting is optional.
			logger.Warn("sentry init failed", zap.Error(err))
		} else if deps.Runtime != nil {
			deps.Runtime.flushSentry = flush
			logger.Info("sentry error reporting enabled")
		}
	}

	if appCfg.AdminEmail != "" {
		if err := ensureAdmin(ctx, deps.Backend, appCfg.AdminEmail, logger); err != nil {
			return err
		}
	}
	return nil
}

// ensureAdmin promotes the profile with the given email to admin. A missing
// profile is logged; the account can sign up and be promoted on a later
// start.
func ensureAdmin(ctx context.Context, client *backend.Client, email string, logger *zap.Logger) error {
	email = strings.ToLower(strings.TrimSpace(email))

	p, err := backend.FindOne[models.Profile](ctx, client.DB,
		backend.From("profiles").Eq("email", email).Select("_id", "role"))
	if errors.Is(err, backend.ErrNotFound) {
		logger.Warn("admin profile not found; sign up first", zap.String("email", email))
		return nil
	}
	if err != nil {
		return fmt.Errorf("find admin profile: %w", err)
	}
	if p.Role == models.RoleAdmin {
		return nil
	}

	if _, err := client.DB.Update(ctx, backend.From("profiles").Eq("_id", p.ID),
		backend.Set{"role": models.RoleAdmin}); err != nil {
		return fmt.Errorf("promote admin: %w", err)
	}
	logger.Info("promoted profile to admin", zap.String("email", email), zap.String("user_id", p.ID))
	return nil
}
