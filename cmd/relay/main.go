// Package main is the entry point for the relay binary: a CLI for running,
// serving, and validating routing pipelines.
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

	"github.com/relayai/relay-oss/internal/resilience"
	"github.com/relayai/relay-oss/pkg/config"
	"github.com/relayai/relay-oss/pkg/engine"
	"github.com/relayai/relay-oss/pkg/logging"
	"github.com/relayai/relay-oss/pkg/server"
	"github.com/relayai/relay-oss/pkg/telemetry"
)

const defaultConfigPath = "relay.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "relay",
		Short: "Routing pipeline engine",
		Long: `Relay executes composable DAG pipelines of processing modules and
routes queries to the best-fitting sub-pipeline using a natural-language
classification decision.

Example:
  relay run --config relay.yaml "What is a summary of this document?"`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", defaultConfigPath, "Path to configuration file (YAML)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(newRunCmd(), newServeCmd(), newValidateCmd())
	return rootCmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	logger := logging.Setup(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	return cfg, logger, nil
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [query]",
		Short: "Run a single query through the configured pipelines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				cfg.Verbose = true
			}

			built, err := config.Build(cfg, config.Collaborators{}, logger, nil)
			if err != nil {
				return err
			}
			registry := engine.NewRegistry(logger)
			if err := registry.Update(built.Pipelines, built.DefaultID); err != nil {
				return err
			}

			pipelineID, _ := cmd.Flags().GetString("pipeline")
			pipeline, err := registry.Default()
			if pipelineID != "" {
				var ok bool
				pipeline, ok = registry.Get(pipelineID)
				if !ok {
					return fmt.Errorf("no such pipeline %q", pipelineID)
				}
			} else if err != nil {
				return err
			}

			response, err := pipeline.RunQuery(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), response)
			return nil
		},
	}
	cmd.Flags().StringP("pipeline", "p", "", "Pipeline id to run (defaults to the router)")
	cmd.Flags().BoolP("verbose", "v", false, "Emit per-module trace records")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API over HTTP with config hot reload",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}

			// Bootstrap logging from the initial file so reloads cannot
			// silently change the handler mid-flight.
			initial, err := config.Load(path)
			if err != nil {
				return err
			}
			if level, _ := cmd.Flags().GetString("log-level"); level != "" {
				initial.Logging.Level = level
			}
			logger := logging.Setup(logging.Config{Level: initial.Logging.Level, Format: initial.Logging.Format})

			shutdownTelemetry, err := telemetry.SetupProvider(cmd.Context(), telemetry.Config{
				ServiceName: initial.Telemetry.ServiceName,
				Endpoint:    initial.Telemetry.Endpoint,
				Environment: initial.Telemetry.Environment,
				Insecure:    initial.Telemetry.Insecure,
			})
			if err != nil {
				return err
			}

			registry := engine.NewRegistry(logger)
			provider, err := config.NewFileProvider(path, logger, func(cfg *config.Config) error {
				built, err := config.Build(cfg, config.Collaborators{}, logger, nil)
				if err != nil {
					return err
				}
				return registry.Update(built.Pipelines, built.DefaultID)
			})
			if err != nil {
				return err
			}
			defer func() { _ = provider.Close() }()

			limiter := resilience.NewLimiter(initial.Server.RateLimit.RequestsPerSecond, initial.Server.RateLimit.Burst)
			srv := server.New(initial.Server.Addr, registry, logger, server.WithRateLimit(limiter))
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logger.Info("shutting down", "signal", sig.String())
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return err
			}
			return shutdownTelemetry(ctx)
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and build every pipeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			built, err := config.Build(cfg, config.Collaborators{}, logger, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration valid: %d pipeline(s), default %q\n",
				len(built.Pipelines), built.DefaultID)
			return nil
		},
	}
}
