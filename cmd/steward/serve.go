package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stewardbot/steward/internal/agent"
	"github.com/stewardbot/steward/internal/api"
	"github.com/stewardbot/steward/internal/completion"
	"github.com/stewardbot/steward/internal/config"
	"github.com/stewardbot/steward/internal/dispatch"
	"github.com/stewardbot/steward/internal/knowledge"
	"github.com/stewardbot/steward/internal/query"
	"github.com/stewardbot/steward/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the steward HTTP server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func setupLogging(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
	return log
}

// buildLoop wires the store, compiler, knowledge layer, dispatch table, and
// completion client into one agent loop.
func buildLoop(ctx context.Context, cfg *config.Config, log *slog.Logger) (*agent.Loop, *store.DB, error) {
	if cfg.APIKey == "" {
		return nil, nil, fmt.Errorf("no API key configured: set STEWARD_API_KEY or api_key in %s/config.json", cfg.DataDir)
	}
	if cfg.Model == "" {
		return nil, nil, fmt.Errorf("no model configured: set STEWARD_MODEL or model in %s/config.json", cfg.DataDir)
	}

	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}

	compiler := query.NewCompiler(db)
	kn := knowledge.New(db, log)
	table := dispatch.NewTable(db, compiler, kn, log)
	client := completion.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Temperature, log)

	loop := agent.New(client, table, db, log)
	loop.MaxIterations = cfg.MaxIterations
	return loop, db, nil
}

func runServe() error {
	cfg := config.New(dataDirFlag)
	log := setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loop, db, err := buildLoop(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("closing store", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.NewHandler(loop, log),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("steward listening", "addr", cfg.ListenAddr, "db", cfg.DBPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
