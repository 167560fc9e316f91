package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ledger "github.com/animus-labs/custody/internal/custody"
	"github.com/animus-labs/custody/internal/platform/auditlog"
	"github.com/animus-labs/custody/internal/platform/auth"
	"github.com/animus-labs/custody/internal/platform/env"
	"github.com/animus-labs/custody/internal/platform/httpserver"
	"github.com/animus-labs/custody/internal/platform/objectstore"
	"github.com/animus-labs/custody/internal/platform/postgres"
	"github.com/animus-labs/custody/internal/platform/telemetry"
	repopg "github.com/animus-labs/custody/internal/repo/postgres"
	custodysvc "github.com/animus-labs/custody/internal/service/custody"
)

const serviceName = "custody"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("CUSTODY_HTTP_ADDR", ":8086")
	shutdownTimeout, err := env.Duration("CUSTODY_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}
	ensureSchema, err := env.Bool("CUSTODY_ENSURE_SCHEMA", false)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	otelCfg, err := telemetry.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid telemetry config", "error", err)
		os.Exit(2)
	}
	shutdownTracing, err := telemetry.Setup(ctx, serviceName, otelCfg)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	ledgerCfg, err := ledger.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid custody config", "error", err)
		os.Exit(2)
	}

	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(2)
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if ensureSchema {
		if err := repopg.EnsureSchema(ctx, db); err != nil {
			logger.Error("schema setup failed", "error", err)
			os.Exit(1)
		}
	}

	storeCfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid object store config", "error", err)
		os.Exit(2)
	}
	storeClient, err := objectstore.NewMinIOClient(storeCfg)
	if err != nil {
		logger.Error("object store client init failed", "error", err)
		os.Exit(2)
	}

	headersAuth, err := auth.NewGatewayHeadersAuthenticator(env.String("CUSTODY_INTERNAL_AUTH_SECRET", ""))
	if err != nil {
		logger.Error("invalid internal auth config", "error", err)
		os.Exit(2)
	}

	service, err := custodysvc.NewService(
		ledgerCfg,
		repopg.NewEvidenceStore(db),
		repopg.NewCustodyEventStore(db),
		objectstore.NewContentHasher(storeClient, storeCfg.BucketEvidence),
		repopg.NewAuditAppender(db),
	)
	if err != nil {
		logger.Error("custody service init failed", "error", err)
		os.Exit(2)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz(serviceName))
	mux.HandleFunc(
		"/readyz",
		httpserver.ReadyzWithChecks(
			serviceName,
			httpserver.ReadinessCheck{
				Name: "postgres",
				Check: func(ctx context.Context) error {
					return postgres.Ping(ctx, db, 750*time.Millisecond)
				},
			},
			httpserver.ReadinessCheck{
				Name: "minio",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return objectstore.CheckBucket(checkCtx, storeClient, storeCfg)
				},
			},
		),
	)
	newCustodyAPI(logger, service).register(mux)

	handler := auth.Middleware{
		Logger:        logger,
		Authenticator: headersAuth,
		Authorize:     auth.MethodRoleAuthorizer(),
		Audit: func(ctx context.Context, event auth.DenyEvent) error {
			auditCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
			defer cancel()
			return auditlog.InsertAuthDeny(auditCtx, db, serviceName, event)
		},
		SkipPrefixes: []string{"/healthz", "/readyz"},
	}.Wrap(mux)

	cfg := httpserver.Config{
		Service:         serviceName,
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}
	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, serviceName, handler)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
