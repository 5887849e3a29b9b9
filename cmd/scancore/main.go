// Command scancore runs the Scan Execution & Compliance Scoring Engine:
// the HTTP surface (C9), the admission/worker orchestrator (C4) and its
// supporting collaborators, wired together in dependency order, with
// cobra subcommands for the operational paths (serve, migrate, registry
// reload).
package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scancore/engine/internal/audit"
	"github.com/scancore/engine/internal/cache"
	"github.com/scancore/engine/internal/collaborators"
	"github.com/scancore/engine/internal/config"
	"github.com/scancore/engine/internal/detect"
	"github.com/scancore/engine/internal/httpapi"
	"github.com/scancore/engine/internal/license"
	"github.com/scancore/engine/internal/logging"
	"github.com/scancore/engine/internal/orchestrator"
	"github.com/scancore/engine/internal/persistence"
	"github.com/scancore/engine/internal/registry"
	"github.com/scancore/engine/internal/resultsink"
	"github.com/scancore/engine/internal/scanengine"
	"github.com/scancore/engine/internal/tenant"
)

func main() {
	root := &cobra.Command{
		Use:   "scancore",
		Short: "Scan execution and compliance scoring engine",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(registryCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the Postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			gw, err := persistence.Open(persistence.Config{DSN: cfg.DatabaseURL}, zap.NewNop())
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer gw.Close()
			if err := persistence.RunMigrations(gw.DB()); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			fmt.Println("scancore: schema up to date")
			return nil
		},
	}
}

// registryCmd groups operator actions against the Pattern & Rule Registry
// (C1) of an already-running serve process, reached over its admin HTTP
// surface rather than in-process (a separate CLI invocation has no
// access to another process's memory).
func registryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Operate on the running engine's pattern and rule registry",
	}
	cmd.AddCommand(registryReloadCmd())
	return cmd
}

func registryReloadCmd() *cobra.Command {
	var addr string
	reloadCmd := &cobra.Command{
		Use:   "reload",
		Short: "Force the running engine to re-seed its active registry snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := addr + "/admin/registry/reload"
			resp, err := http.Post(url, "application/json", bytes.NewReader(nil))
			if err != nil {
				return fmt.Errorf("registry reload: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("registry reload: server returned %s", resp.Status)
			}
			fmt.Println("scancore: registry reloaded")
			return nil
		},
	}
	reloadCmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "base URL of the running scancore serve process")
	return reloadCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and job orchestrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	redisClient, err := cache.New(cache.Config{URL: cfg.RedisURL}, logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	persist, err := persistence.Open(persistence.Config{
		DSN:          cfg.DatabaseURL,
		MaxOpenConns: cfg.PersistencePoolSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer persist.Close()
	if err := persistence.RunMigrations(persist.DB()); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// License & Quota Enforcer (C5)
	licenseStore := license.NewMemoryStore()
	quota := license.NewQuotaTracker(redisClient, logger)
	go quota.RunSweeper(ctx, time.Minute)
	sessions := license.NewSessionTracker(redisClient, time.Duration(cfg.SessionTTLMs)*time.Millisecond)
	enforcer := license.NewEnforcer(licenseStore, quota, sessions, logger)

	// Pattern & Rule Registry (C1)
	reg := registry.New()
	go runRegistryReloadPoller(ctx, reg, time.Duration(cfg.RegistryReloadPollIntervalMs)*time.Millisecond, logger)

	// External-Collaborator adapters (C9)
	fileLister := collaborators.NewLocalFileLister(0)
	httpFetcher := collaborators.NewRateLimitedHTTPFetcher(5)
	dbSampler := scanengine.NewPostgresSampler()
	defer dbSampler.Close()
	var blobFetcher collaborators.BlobFetcher
	if cfg.BlobS3Bucket != "" {
		s3Fetcher, err := collaborators.NewS3BlobFetcher(ctx, cfg.AWSRegion, cfg.BlobS3Bucket, "")
		if err != nil {
			return fmt.Errorf("build s3 blob fetcher: %w", err)
		}
		blobFetcher = s3Fetcher
	}

	scannerRegistry := scanengine.BuildRegistry(scanengine.Dependencies{
		BlobFetcher: blobFetcher,
		FileLister:  fileLister,
		HTTPFetcher: httpFetcher,
		OCR:         detect.NoopOCRAdapter{},
		DBSampler:   dbSampler,
	})

	// Results Aggregator (C6) + Compliance Score Engine (C7) + Persistence
	// Gateway (C8), wired behind the orchestrator's ResultSink contract.
	auditor := audit.NewRecorder(persist)
	var webhook collaborators.WebhookSender
	if cfg.WebhookURL != "" {
		webhook = collaborators.NewHTTPWebhookSender(cfg.WebhookURL, redisClient)
	}
	sink := resultsink.New(reg.Snapshot, persist, auditor, webhook, nil, logger)

	// Scheduler/Orchestrator (C4)
	orch := orchestrator.New(cfg, logger, enforcer, scannerRegistry, reg, sink, persist)
	orch.Start()
	defer orch.Stop()

	// External-Collaborator HTTP surface (C9)
	principals := tenant.NewDBResolver(persist.DB(), logger, 5*time.Minute)
	server := httpapi.NewServer(orch, persist, persist, reg, principals, logger, []string{"*"})

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("scancore: listening", zap.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("scancore: shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// runRegistryReloadPoller periodically re-seeds the registry's active
// snapshot on cfg.RegistryReloadPollIntervalMs, independent of any
// operator-triggered `scancore registry reload` call.
func runRegistryReloadPoller(ctx context.Context, reg *registry.Registry, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := reg.ReloadDefaults(); err != nil {
				logger.Warn("scancore: registry reload poll failed", zap.Error(err))
			}
		}
	}
}
