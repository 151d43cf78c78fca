package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wabridge/internal/config"
	"wabridge/internal/constants"
	"wabridge/internal/database"
	"wabridge/internal/dedup"
	"wabridge/internal/models"
	"wabridge/internal/queue"
	"wabridge/internal/retry"
	"wabridge/internal/service"
	"wabridge/internal/tracing"
	"wabridge/pkg/media"
	"wabridge/pkg/telegram"
	"wabridge/pkg/whatsapp"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("wabridge %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting wabridge")

	watcher := config.NewWatcher(*configPath, logger)
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := watcher.GetConfig()

	configureLogLevel(logger, cfg)

	tracingManager := tracing.NewTracingManager(tracing.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)

	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// sqlite can be briefly unavailable when another process holds the
	// file, so opening retries with backoff.
	var db *database.Database
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
		Jitter:       true,
	})
	err := backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer db.Close()

	mediaHandler, err := media.NewHandler(cfg.Media.CacheDir, cfg.Media)
	if err != nil {
		return fmt.Errorf("failed to initialize media handler: %w", err)
	}

	registry := whatsapp.NewRegistry(providerSettings(watcher))

	teamTimeout := time.Duration(cfg.Telegram.TimeoutSec) * time.Second
	if teamTimeout <= 0 {
		teamTimeout = constants.DefaultHTTPTimeoutSec * time.Second
	}
	teamClient := telegram.NewClient(cfg.Telegram.Token, teamTimeout)

	gate := dedup.NewGate(db, constants.DedupWindowSec*time.Second, logger)

	engine := queue.NewEngine(queue.Config{
		Workers:        cfg.Delivery.Workers,
		QueueSize:      cfg.Delivery.QueueSize,
		MaxAttempts:    cfg.Delivery.MaxAttempts,
		AttemptTimeout: time.Duration(cfg.Delivery.AttemptTimeoutSec) * time.Second,
		Backoff: retry.BackoffConfig{
			InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
			MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
			Multiplier:   2.0,
			MaxAttempts:  cfg.Delivery.MaxAttempts,
			Jitter:       true,
		},
	}, logger)

	deps := &service.Deps{
		Store:    db,
		Team:     teamClient,
		Registry: registry,
		Media:    mediaHandler,
		Settings: teamSettings(watcher),
		Logger:   logger,
	}
	deps.Topics = service.NewTopicManager(db, teamClient, teamSettings(watcher), logger)

	relay := service.NewRelay(deps, gate, engine)

	engine.Start(ctx)
	defer engine.Stop()

	go runCleanup(ctx, watcher, db, gate, mediaHandler, logger)

	server := NewServer(watcher.GetConfig, relay, logger)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErrCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownSec*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	logger.Info("wabridge stopped")
	return nil
}

func configureLogLevel(logger *logrus.Logger, cfg *models.Config) {
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
		return
	}

	if cfg.LogLevel == "" {
		logger.SetLevel(logrus.InfoLevel)
		return
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

// providerSettings adapts the live config into provider settings. Reads go
// through the watcher so a config reload switches providers without a
// restart.
func providerSettings(watcher *config.Watcher) func() whatsapp.Settings {
	return func() whatsapp.Settings {
		cfg := watcher.GetConfig()
		timeout := time.Duration(cfg.WhatsApp.TimeoutSec) * time.Second
		if timeout <= 0 {
			timeout = constants.DefaultHTTPTimeoutSec * time.Second
		}
		return whatsapp.Settings{
			Provider: cfg.WhatsApp.Provider,
			Cloud: whatsapp.CloudSettings{
				Token:         cfg.WhatsApp.Cloud.Token,
				PhoneNumberID: cfg.WhatsApp.Cloud.PhoneNumberID,
				APIVersion:    cfg.WhatsApp.Cloud.APIVersion,
				VerifyToken:   cfg.WhatsApp.Cloud.VerifyToken,
			},
			Waha: whatsapp.WahaSettings{
				BaseURL:   cfg.WhatsApp.Waha.BaseURL,
				APIKey:    cfg.WhatsApp.Waha.APIKey,
				BasicAuth: cfg.WhatsApp.Waha.BasicAuth,
				Session:   cfg.WhatsApp.Waha.Session,
			},
			Timeout: timeout,
		}
	}
}

func teamSettings(watcher *config.Watcher) func() service.TeamSettings {
	return func() service.TeamSettings {
		cfg := watcher.GetConfig()
		timeout := time.Duration(cfg.Telegram.TimeoutSec) * time.Second
		if timeout <= 0 {
			timeout = constants.DefaultHTTPTimeoutSec * time.Second
		}
		return service.TeamSettings{
			GroupID:      cfg.Telegram.GroupID,
			IconIncoming: cfg.Telegram.IconIncoming,
			IconOutgoing: cfg.Telegram.IconOutgoing,
			Timeout:      timeout,
		}
	}
}

// runCleanup prunes old ledger rows, expired dedup markers, and stale media
// cache files on a fixed interval.
func runCleanup(ctx context.Context, watcher *config.Watcher, db *database.Database, gate *dedup.Gate, mediaHandler media.Handler, logger *logrus.Logger) {
	interval := time.Duration(watcher.GetConfig().Server.CleanupIntervalHours) * time.Hour
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cfg := watcher.GetConfig()

			retention := cfg.RetentionDays
			if retention <= 0 {
				retention = constants.DefaultRetentionDays
			}
			if err := db.CleanupOldRecords(retention); err != nil {
				logger.WithError(err).Warn("Failed to clean up old ledger records")
			}

			if err := gate.Purge(ctx); err != nil {
				logger.WithError(err).Warn("Failed to purge expired dedup markers")
			}

			if err := mediaHandler.CleanupOldFiles(time.Duration(retention) * 24 * time.Hour); err != nil {
				logger.WithError(err).Warn("Failed to clean up media cache")
			}

			logger.Debug("Cleanup cycle completed")
		}
	}
}
