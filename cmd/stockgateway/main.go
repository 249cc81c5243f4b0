// Package main provides the CLI entry point for the stock-analysis
// conversational gateway.
//
// # Basic Usage
//
// Start the server:
//
//	stockgateway serve --config stockgateway.yaml
//
// Validate configuration without starting the server:
//
//	stockgateway config validate --config stockgateway.yaml
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "stockgateway",
		Short:        "stockgateway - conversational stock-analysis gateway",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", resolveConfigPath(""), "Path to configuration file")

	rootCmd.AddCommand(buildServeCmd(&configPath))
	rootCmd.AddCommand(buildConfigCmd(&configPath))
	rootCmd.AddCommand(buildDoctorCmd(&configPath))

	return rootCmd
}

func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv("STOCKGATEWAY_CONFIG"); v != "" {
		return v
	}
	return "stockgateway.yaml"
}

func buildServeCmd(configPath *string) *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, resolveConfigPath(*configPath), debug)
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	return cmd
}

func buildConfigCmd(configPath *string) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(cmd, resolveConfigPath(*configPath))
		},
	})
	return configCmd
}

func buildDoctorCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report the health of wired collaborators without serving traffic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, resolveConfigPath(*configPath))
		},
	}
}
