// internal/app/bootstrap/routes.go
package bootstrap

import (
	"context"
	"net/http"

	eventsfeature "github.com/dalemusser/freshershub/internal/app/features/events"
	filesfeature "github.com/dalemusser/freshershub/internal/app/features/files"
	forumfeature "github.com/dalemusser/freshershub/internal/app/features/forum"
	healthfeature "github.com/dalemusser/freshershub/internal/app/features/health"
	heartbeatfeature "github.com/dalemusser/freshershub/internal/app/features/heartbeat"
	loginfeature "github.com/dalemusser/freshershub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/freshershub/internal/app/features/logout"
	membersfeature "github.com/dalemusser/freshershub/internal/app/features/members"
	notificationsfeature "github.com/dalemusser/freshershub/internal/app/features/notifications"
	plansfeature "github.com/dalemusser/freshershub/internal/app/features/plans"
	profilefeature "github.com/dalemusser/freshershub/internal/app/features/profile"
	resourcesfeature "github.com/dalemusser/freshershub/internal/app/features/resources"
	userinfofeature "github.com/dalemusser/freshershub/internal/app/features/userinfo"
	"github.com/dalemusser/freshershub/internal/app/store/audit"
	authstore "github.com/dalemusser/freshershub/internal/app/store/auth"
	resourcestore "github.com/dalemusser/freshershub/internal/app/store/resources"
	"github.com/dalemusser/freshershub/internal/app/system/auditlog"
	"github.com/dalemusser/freshershub/internal/app/system/auth"
	"github.com/dalemusser/freshershub/internal/app/system/metrics"
	"github.com/dalemusser/freshershub/internal/app/system/notify"
	"github.com/dalemusser/freshershub/internal/app/system/ratelimit"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed.
//
// FreshersHub applies session middleware and mounts the JSON feature
// routers: auth, profile, forum, resources, events, plans, notifications
// and the admin member tools.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// LoadSessionUser re-reads the profile on each request so role and
	// restriction changes take effect immediately.
	sessionMgr.SetUserFetcher(authstore.NewFetcher(deps.Backend))

	auditLog := auditlog.New(audit.New(deps.Backend.DB), logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})

	policy, err := notify.ParsePolicy(appCfg.FanoutPolicy)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(auditlog.Middleware)
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(logger,
		healthfeature.Check{Name: "database", Ping: databasePing(deps)},
		healthfeature.Check{Name: "cache", Ping: deps.Cache.Ping, Optional: true},
	)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", metrics.Handler())

	// Authentication
	loginHandler := loginfeature.NewHandler(deps.Backend, sessionMgr, auditLog, ratelimit.DefaultGuard(), logger)
	logoutHandler := logoutfeature.NewHandler(deps.Backend, sessionMgr, auditLog, logger)
	userinfofeature.MountRoutes(r, userinfofeature.NewHandler(deps.Backend, logger))
	r.Route("/auth", func(ar chi.Router) {
		ar.Mount("/logout", logoutfeature.Routes(logoutHandler))
		ar.Mount("/", loginfeature.Routes(loginHandler))
	})

	profileHandler := profilefeature.NewHandler(deps.Backend, appCfg.MaxUploadBytes(), logger)
	r.Mount("/profile", profilefeature.Routes(profileHandler, sessionMgr))

	forumHandler := forumfeature.NewHandler(deps.Backend, auditLog, logger)
	r.Mount("/forum", forumfeature.Routes(forumHandler, sessionMgr))

	resourcesHandler := resourcesfeature.NewHandler(deps.Backend, auditLog, appCfg.MaxUploadBytes(), appCfg.UploadCompensate, logger)
	r.Mount("/resources", resourcesfeature.Routes(resourcesHandler, sessionMgr))

	// Events are served from a realtime-watched schedule.
	eventsHandler := eventsfeature.NewHandler(deps.Backend, auditLog, policy, logger)
	if err := eventsHandler.Start(context.Background()); err != nil {
		// Reads fall back to per-request fetches.
		logger.Warn("event schedule watcher not started", zap.Error(err))
	} else if deps.Runtime != nil {
		deps.Runtime.events = eventsHandler
	}
	r.Mount("/events", eventsfeature.Routes(eventsHandler, sessionMgr))

	plansHandler := plansfeature.NewHandler(deps.Backend, logger)
	r.Mount("/plans", plansfeature.Routes(plansHandler, sessionMgr))

	notificationsHandler := notificationsfeature.NewHandler(deps.Backend, deps.Cache, appCfg.UnreadCacheTTL, logger)
	r.Mount("/notifications", notificationsfeature.Routes(notificationsHandler, sessionMgr))

	membersHandler := membersfeature.NewHandler(deps.Backend, auditLog, logger)
	r.Mount("/admin/users", membersfeature.Routes(membersHandler, sessionMgr))

	filesHandler := filesfeature.NewHandler(deps.Backend.Storage, logger, resourcestore.Bucket, authstore.AvatarsBucket)
	r.Mount("/files", filesfeature.Routes(filesHandler))

	heartbeatHandler := heartbeatfeature.NewHandler(deps.Backend, logger)
	r.Mount("/api/heartbeat", heartbeatfeature.Routes(heartbeatHandler, sessionMgr))

	return r, nil
}

// databasePing pings MongoDB directly, or runs a one-row count against the
// in-memory backend.
func databasePing(deps DBDeps) func(ctx context.Context) error {
	if deps.MongoClient != nil {
		return func(ctx context.Context) error {
			return deps.MongoClient.Ping(ctx, readpref.Primary())
		}
	}
	return func(ctx context.Context) error {
		_, err := deps.Backend.DB.Count(ctx, backend.From("profiles").Limit(1))
		return err
	}
}
