// Command darkmarkd is the darkmark backend: it stores collected page
// submissions, runs the classification worker, and serves results over HTTP.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/darkmark/classify"
	"github.com/hazyhaar/darkmark/observability"
	"github.com/hazyhaar/darkmark/server"
	"github.com/hazyhaar/darkmark/shield"
	"github.com/hazyhaar/darkmark/store"
	"github.com/hazyhaar/darkmark/vtq"
)

const serviceName = "darkmarkd"

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	listen := flag.String("listen", "", "listen address (overrides config)")
	dbPath := flag.String("db", "", "sqlite database path (overrides config)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("darkmarkd: config", "error", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("darkmarkd: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *Config) error {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	db := st.DB

	if err := shield.Init(db); err != nil {
		return err
	}
	if err := observability.Init(db); err != nil {
		return err
	}

	queue := vtq.New(db, vtq.Options{
		Queue:        "modeling",
		Visibility:   cfg.Worker.Visibility,
		PollInterval: cfg.Worker.PollInterval,
		MaxAttempts:  cfg.Worker.MaxAttempts,
		Logger:       logger,
	})
	if err := queue.EnsureTable(ctx); err != nil {
		return err
	}

	events := observability.NewEventLogger(db)

	var classifier classify.Classifier
	if cfg.Model.APIKey != "" {
		opts := []classify.Option{classify.WithLogger(logger)}
		if cfg.Model.Name != "" {
			opts = append(opts, classify.WithModel(cfg.Model.Name))
		}
		classifier = classify.NewModelClassifier(cfg.Model.APIKey, cfg.Model.BaseURL, opts...)
		logger.Info("classifier", "kind", "model", "model", cfg.Model.Name)
	} else {
		classifier = classify.RuleClassifier{}
		logger.Info("classifier", "kind", "rules")
	}

	heartbeat := observability.NewHeartbeatWriter(db, serviceName, cfg.Worker.HeartbeatInterval)
	worker := server.NewWorker(st, queue, classifier,
		server.WithWorkerEventLogger(events),
		server.WithHeartbeat(heartbeat),
		server.WithWorkerLogger(logger),
	)
	go worker.Run(ctx)

	go retentionLoop(ctx, logger, db, cfg.Retention)

	rl := shield.NewRateLimiter(db)
	rl.StartReloader(ctx.Done())

	srv := server.New(st, queue, server.Config{
		APIKeyHash:  cfg.APIKeyHash,
		Middlewares: append(shield.LocalStack(), rl.Middleware),
		Logger:      logger,
	}, server.WithEventLogger(events))

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen, "db", cfg.DBPath)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// retentionLoop trims old observability rows on a fixed schedule.
func retentionLoop(ctx context.Context, logger *slog.Logger, db *sql.DB, cfg RetentionConfig) {
	ticker := time.NewTicker(cfg.Every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := observability.Cleanup(ctx, db, observability.RetentionConfig{
				EventLogsDays:  cfg.EventLogsDays,
				HeartbeatsDays: cfg.HeartbeatsDays,
			})
			if err != nil {
				logger.Warn("retention cleanup", "error", err)
			}
		}
	}
}
