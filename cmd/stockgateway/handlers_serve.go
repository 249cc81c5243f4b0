package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stockgateway/stockgateway/internal/config"
	"github.com/stockgateway/stockgateway/internal/httpserver"
	"github.com/stockgateway/stockgateway/internal/wiring"
)

// applyLoggingConfig rebuilds the default slog logger from the loaded
// config's logging section, with --debug always winning over a
// configured level.
func applyLoggingConfig(cfg config.LoggingConfig, debug bool) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// runServe loads configuration, wires every collaborator through
// wiring.Build, and serves HTTP until a shutdown signal arrives.
func runServe(cmd *cobra.Command, configPath string, debug bool) error {
	slog.Info("starting stockgateway", "version", version, "commit", commit, "config", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyLoggingConfig(cfg.Logging, debug)

	system, err := wiring.Build(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to wire system: %w", err)
	}

	server := httpserver.New(system.Orchestrator, slog.Default())
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	if cfg.Server.HTTPPort == 0 {
		addr = fmt.Sprintf("%s:8080", cfg.Server.Host)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := server.Start(ctx, addr); err != nil {
		return fmt.Errorf("failed to start http server: %w", err)
	}

	if system.RetrainSchedule != nil {
		go system.RetrainSchedule.Run(ctx)
	}

	<-ctx.Done()
	slog.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	slog.Info("stockgateway stopped gracefully")
	return nil
}

// runConfigValidate loads the config and reports success without
// starting any background services.
func runConfigValidate(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "config OK: %s\n", configPath)
	fmt.Fprintf(out, "  default model alias: %s\n", cfg.StockGateway.DefaultModelAlias)
	fmt.Fprintf(out, "  max tool rounds: %d\n", cfg.StockGateway.MaxToolRounds)
	fmt.Fprintf(out, "  web search mode: %s\n", cfg.StockGateway.WebSearchMode)
	return nil
}

// runDoctor wires the system (without serving) and reports what came up,
// so an operator can sanity-check a config before deploying it.
func runDoctor(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}
	system, err := wiring.Build(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("wiring failed: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "wiring OK\n")
	fmt.Fprintf(out, "  tools registered: %d\n", len(system.Orchestrator.ToolNames))
	for _, name := range system.Orchestrator.ToolNames {
		fmt.Fprintf(out, "    - %s\n", name)
	}
	fmt.Fprintf(out, "  predict retrain scheduled: %v\n", system.RetrainSchedule != nil)
	return nil
}
