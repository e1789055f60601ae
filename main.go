package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	database "github.com/FACorreiaa/onelink-market/app/db"
	appLogger "github.com/FACorreiaa/onelink-market/app/logger"
	"github.com/FACorreiaa/onelink-market/app/observability/metrics"
	"github.com/FACorreiaa/onelink-market/app/tracer"
	"github.com/FACorreiaa/onelink-market/config"
	_ "github.com/FACorreiaa/onelink-market/docs"
	"github.com/FACorreiaa/onelink-market/internal/container"
	"github.com/FACorreiaa/onelink-market/internal/router"
)

const serviceName = "onelink-market"

//	@title						OneLink Market API
//	@version					1.0
//	@description				Onboarding, verification and role-guarded access for the marketplace.
//	@BasePath					/api
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
func main() {
	// Use standard log until slog is configured, in case godotenv fails
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Marketplace onboarding and verification API",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          serveCommand,
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run migrations and start the HTTP server",
		RunE:  serveCommand,
	})
	root.AddCommand(newMigrateCommand())
	return root
}

func newMigrateCommand() *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate [up|down]",
		Short: "Apply or roll back database migrations",
	}
	migrate.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
			if err != nil {
				return err
			}
			return database.RunMigrations(dbConfig.ConnectionURL, logger)
		},
	})
	migrate.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back the given number of migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[0])
				}
				steps = n
			}
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
			if err != nil {
				return err
			}
			return database.RollbackMigrations(dbConfig.ConnectionURL, steps, logger)
		},
	})
	return migrate
}

func bootstrap() (config.Config, *slog.Logger, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("error initializing config: %w", err)
	}
	logger := appLogger.Setup(cfg.Mode, os.Stdout)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func serveCommand(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	providers, err := tracer.InitTracingAndMetrics(serviceName, cfg.Mode)
	if err != nil {
		logger.Error("Failed to initialize tracing and metrics", slog.Any("error", err))
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down telemetry providers", slog.Any("error", err))
		}
	}()
	metrics.InitAppMetrics()

	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return err
	}
	// Run migrations before initializing the main pool
	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		return err
	}

	c, err := container.NewContainer(ctx, &cfg, logger, providers.MetricsHandler)
	if err != nil {
		return err
	}
	defer c.Close()

	if !c.WaitForDB(ctx) {
		logger.Error("Database not ready after waiting, exiting.")
		return errors.New("database not ready")
	}

	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddress,
		Handler:      router.SetupRouter(c.Router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress), slog.Any("freeze", c.Freeze.Status()))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe error", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()

	logger.Info("Shutdown signal received, starting graceful shutdown...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}
	logger.Info("Application shut down complete.")
	return nil
}
