package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/chefhub/pkg/api"
	"github.com/platinummonkey/chefhub/pkg/audit"
	"github.com/platinummonkey/chefhub/pkg/config"
	"github.com/platinummonkey/chefhub/pkg/content"
	"github.com/platinummonkey/chefhub/pkg/enrollment"
	"github.com/platinummonkey/chefhub/pkg/gate"
	"github.com/platinummonkey/chefhub/pkg/httputil"
	"github.com/platinummonkey/chefhub/pkg/identity"
	"github.com/platinummonkey/chefhub/pkg/middleware"
	"github.com/platinummonkey/chefhub/pkg/observability"
	"github.com/platinummonkey/chefhub/pkg/platform"
	"github.com/platinummonkey/chefhub/pkg/storage"
	"github.com/platinummonkey/chefhub/pkg/swagger"
	"github.com/platinummonkey/chefhub/pkg/webhooks"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	issueFor := flag.String("issue-token", "", "Print a session token for the given user id and exit")
	migrateOnly := flag.Bool("migrate", false, "Apply database migrations and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.Observability.Log, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger, *issueFor, *migrateOnly); err != nil {
		logger.WithError(err).Fatal("chefhub exited with error")
	}
}

func run(cfg *config.Config, logger *logrus.Logger, issueFor string, migrateOnly bool) error {
	ctx := context.Background()

	db, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := storage.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.WithField("driver", cfg.Database.Driver).Info("database ready")
	if migrateOnly {
		return nil
	}

	users := identity.NewStore(db)
	tokens, err := identity.NewTokenResolver(identity.TokenResolverConfig{
		Secret: cfg.Auth.TokenSecret,
		Issuer: cfg.Auth.TokenIssuer,
		TTL:    cfg.Auth.TokenTTL,
	}, users)
	if err != nil {
		return fmt.Errorf("failed to create token resolver: %w", err)
	}

	if issueFor != "" {
		return issueToken(ctx, users, tokens, issueFor)
	}

	tp, err := observability.InitTracing(ctx, cfg.Observability.OTel, logger)
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = storage.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		logger.Info("redis connected")
	} else {
		logger.Info("redis not configured, catalog caching disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observability.RegisterDBStats(reg, db)

	resolver, err := buildResolver(ctx, cfg.Auth, tokens, users)
	if err != nil {
		return err
	}

	dispatcher := webhooks.NewDispatcher(cfg.Payments.Endpoints, logger,
		webhooks.WithRetry(cfg.Payments.Retry),
		webhooks.WithRegisterer(reg),
	)

	ledger := enrollment.NewLedger(db, logger,
		enrollment.WithPaymentInitiator(dispatcher),
		enrollment.WithNotifier(dispatcher),
		enrollment.WithMetrics(enrollment.NewMetrics(reg)),
		enrollment.WithCollaboratorTimeout(cfg.Payments.CollaboratorTimeout),
	)

	sweeper, err := enrollment.NewSweeper(ledger, enrollment.SweeperConfig{
		Schedule:   cfg.Enrollment.SweepSchedule,
		PendingTTL: cfg.Enrollment.PendingTTL,
		BatchSize:  cfg.Enrollment.SweepBatchSize,
		Workers:    cfg.Enrollment.SweepWorkers,
	}, logger)
	if err != nil {
		return err
	}

	trail, retention, err := buildAudit(cfg.Audit, db, logger)
	if err != nil {
		return err
	}

	store := content.NewStore(db)
	accessGate := gate.New(store, ledger, logger, gate.WithRegisterer(reg), gate.WithAuditLogger(trail.logger))
	catalog := platform.NewCatalog(store, redisClient, cfg.Catalog.TTL, logger)
	service := platform.NewService(store, ledger, accessGate, catalog, logger)

	limitCtx, stopLimits := context.WithCancel(ctx)
	defer stopLimits()

	httpMetrics := observability.NewHTTPMetrics(reg)
	server := api.NewServer(service, resolver, api.Config{
		PaymentWebhookSecret: cfg.Payments.CallbackSecret,
		RateLimits:           buildRateLimits(limitCtx, cfg.RateLimit, redisClient, logger),
		MaxBodyBytes:         cfg.Server.MaxBodyBytes,
		Middleware:           []mux.MiddlewareFunc{httpMetrics.Middleware},
		Audit:                trail.searcher,
	}, logger)

	health := observability.NewHealthChecker(db, redisClient, version)
	if cfg.Observability.MetricsEnabled {
		health.WithMetrics(reg)
	}
	server.RegisterRoutes(health)
	server.RegisterRoutes(swagger.NewHandlers())

	var handler http.Handler = server
	if len(cfg.Server.CORSOrigins) > 0 {
		handler = httputil.CORSMiddleware(cfg.Server.CORSOrigins)(handler)
	}
	handler = otelhttp.NewHandler(handler, "chefhub")

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc("sweeper", sweeper.Stop)
	if retention != nil {
		shutdown.RegisterShutdownFunc("audit-retention", retention.Stop)
	}
	shutdown.RegisterShutdownFunc("audit", func(context.Context) error {
		return trail.logger.Close()
	})
	shutdown.RegisterShutdownFunc("rate-limits", func(context.Context) error {
		stopLimits()
		return nil
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc("redis", func(context.Context) error {
			return redisClient.Close()
		})
	}
	shutdown.RegisterShutdownFunc("tracing", func(ctx context.Context) error {
		return observability.ShutdownTracing(ctx, tp)
	})

	sweeper.Start()
	if retention != nil {
		retention.Start()
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":    httpServer.Addr,
			"version": version,
		}).Info("starting chefhub server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	return shutdown.WaitForShutdown(serveErr)
}

type auditTrail struct {
	logger   audit.Logger
	searcher api.AuditSearcher
}

// buildAudit records gate decisions to the database and the log stream.
// A disabled trail drops events and hides GET /me/audit.
func buildAudit(cfg config.AuditConfig, db *sql.DB, logger *logrus.Logger) (auditTrail, *audit.Retention, error) {
	if !cfg.Enabled {
		return auditTrail{logger: audit.NoOpLogger{}}, nil, nil
	}

	dbLogger, err := audit.NewDBLogger(db)
	if err != nil {
		return auditTrail{}, nil, fmt.Errorf("failed to create audit logger: %w", err)
	}
	multi := audit.NewMultiLogger(dbLogger, audit.NewLogrusLogger(logger))
	multi.SetAsync(true)
	trail := auditTrail{logger: multi, searcher: dbLogger}

	if cfg.Retention <= 0 {
		return trail, nil, nil
	}
	retention, err := audit.NewRetention(dbLogger, cfg.Retention, cfg.CleanupSchedule, logger)
	if err != nil {
		return auditTrail{}, nil, err
	}
	return trail, retention, nil
}

// buildResolver accepts session tokens and, when an issuer is configured,
// OIDC ID tokens
func buildResolver(ctx context.Context, cfg config.AuthConfig, tokens *identity.TokenResolver, users *identity.Store) (identity.Resolver, error) {
	if cfg.OIDCIssuerURL == "" {
		return tokens, nil
	}
	oidcResolver, err := identity.NewOIDCResolver(ctx, cfg.OIDCIssuerURL, cfg.OIDCClientID, users)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC resolver: %w", err)
	}
	return identity.ChainResolver{tokens, oidcResolver}, nil
}

func buildRateLimits(ctx context.Context, cfg config.RateLimitConfig, client *redis.Client, logger *logrus.Logger) *middleware.RateLimitMiddleware {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Distributed && client != nil {
		return middleware.NewRateLimitMiddleware(
			middleware.NewDistributedRateLimiter(client, &cfg.User, "chefhub:ratelimit:user"),
			middleware.NewDistributedRateLimiter(client, &cfg.Anonymous, "chefhub:ratelimit:anonymous"),
			logger,
		)
	}

	user := middleware.NewRateLimiter(&cfg.User)
	anonymous := middleware.NewRateLimiter(&cfg.Anonymous)
	user.StartCleanup(ctx)
	anonymous.StartCleanup(ctx)
	return middleware.NewRateLimitMiddleware(user, anonymous, logger)
}

func issueToken(ctx context.Context, users *identity.Store, tokens *identity.TokenResolver, userID string) error {
	user, err := users.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	token, err := tokens.Issue(user)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
