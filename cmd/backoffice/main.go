package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/backoffice/backoffice/internal/app"
	"github.com/backoffice/backoffice/internal/audit"
	"github.com/backoffice/backoffice/internal/auth"
	"github.com/backoffice/backoffice/internal/observability"
	"github.com/backoffice/backoffice/internal/organizations"
	"github.com/backoffice/backoffice/internal/permissions"
	"github.com/backoffice/backoffice/internal/platform/cache"
	"github.com/backoffice/backoffice/internal/platform/db"
	"github.com/backoffice/backoffice/internal/rbac"
	"github.com/backoffice/backoffice/internal/roles"
	"github.com/backoffice/backoffice/internal/users"
	"github.com/backoffice/backoffice/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("migrate database", slog.Any("error", err))
		os.Exit(1)
	}

	permissionService := permissions.NewService(permissions.NewRepository(pool))
	if inserted, err := permissionService.Seed(ctx); err != nil {
		logger.Error("seed permission catalog", slog.Any("error", err))
		os.Exit(1)
	} else if inserted > 0 {
		logger.Info("permission catalog seeded", slog.Int("inserted", inserted))
	}

	var decisionCache *rbac.DecisionCache
	if cfg.AuthzCacheTTL > 0 {
		redisClient, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, decision cache disabled", slog.Any("error", err))
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
			decisionCache = rbac.NewDecisionCache(redisClient, cfg.AuthzCacheTTL)
		}
	}

	metrics := observability.NewMetrics()
	rbacService := rbac.NewService(rbac.NewRepository(pool), rbac.Options{
		Cache:    decisionCache,
		Recorder: metrics,
		Logger:   logger,
	})

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		logger.Error("init token issuer", slog.Any("error", err))
		os.Exit(1)
	}
	rbacMiddleware := rbac.Middleware{Service: rbacService, Verifier: tokens, Logger: logger}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("job inspector close", slog.Any("error", err))
		}
	}()

	authService := auth.NewService(auth.NewRepository(pool), tokens, jobClient, logger)
	if cfg.OIDCIssuerURL != "" {
		identities, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuerURL, cfg.OIDCClientID)
		if err != nil {
			logger.Error("init oidc verifier", slog.Any("error", err))
			os.Exit(1)
		}
		authService.WithIdentityVerifier(identities)
	}
	orgService := organizations.NewService(organizations.NewRepository(pool), permissionService, rbacService, logger)
	auditService := audit.NewService(audit.NewRepository(pool))
	rolesService := roles.NewService(roles.NewRepository(pool), permissionService, rbacService, logger).
		WithAuditTrail(auditService)
	usersService := users.NewService(users.NewRepository(pool), rbacService, logger).
		WithAuditTrail(auditService)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		RBACMiddleware:      rbacMiddleware,
		AuthHandler:         auth.NewHandler(logger, authService, rbacMiddleware.RequireAuth()),
		PermissionsHandler:  permissions.NewHandler(logger, permissionService),
		OrganizationHandler: organizations.NewHandler(logger, orgService, rbacMiddleware),
		RolesHandler:        roles.NewHandler(logger, rolesService, rbacMiddleware),
		UsersHandler:        users.NewHandler(logger, usersService, rbacMiddleware),
		AuditHandler:        audit.NewHandler(logger, auditService, rbacMiddleware),
		JobHandler:          jobs.NewHandler(inspector, logger),
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
