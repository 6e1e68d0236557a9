// Prompt runner server: executes natural-language browser tasks on remote sessions.
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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/promptrunner/internal/agent"
	"github.com/ashureev/promptrunner/internal/api"
	"github.com/ashureev/promptrunner/internal/config"
	"github.com/ashureev/promptrunner/internal/container"
	"github.com/ashureev/promptrunner/internal/executor"
	"github.com/ashureev/promptrunner/internal/grpchealth"
	"github.com/ashureev/promptrunner/internal/metrics"
	"github.com/ashureev/promptrunner/internal/middleware"
	"github.com/ashureev/promptrunner/internal/session"
	"github.com/ashureev/promptrunner/internal/store"
)

const modelProvider = "anthropic"

func main() {
	level, envErr := loadEnvironment()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if envErr != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "provider", cfg.Provider, "model", cfg.Agent.Model)
	logCredentials(cfg.Credentials)

	collector := metrics.NewCollector("promptrunner")

	// Initialize dependencies.
	var repo store.Repository
	if cfg.History.Enabled {
		sqlite, err := store.NewSQLite(cfg.History.DBPath)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := sqlite.Close(); closeErr != nil {
				slog.Error("Failed to close repository", "error", closeErr)
			}
		}()
		repo = sqlite
		slog.Info("Execution history enabled", "db_path", cfg.History.DBPath)
	} else {
		slog.Info("Execution history disabled")
	}

	provider, cleanup, err := newProvider(cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize browser provider", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	planner := agent.NewAnthropicPlanner(agent.AnthropicConfig{
		APIKey:       cfg.Credentials.AnthropicAPIKey,
		Model:        cfg.Agent.Model,
		Instructions: cfg.Agent.Instructions,
		MaxTokens:    cfg.Agent.MaxTokens,
	})

	execOpts := []executor.Option{
		executor.WithMetrics(collector),
		executor.WithLogger(logger),
	}
	if repo != nil {
		execOpts = append(execOpts, executor.WithHistory(repo))
	}
	exec := executor.New(executor.Config{
		Credentials:  cfg.Credentials,
		Required:     cfg.RequiredCredentials(),
		Model:        session.ModelConfig{Provider: modelProvider, Model: cfg.Agent.Model},
		MaxSteps:     cfg.Agent.MaxSteps,
		Deadline:     cfg.Execution.Deadline,
		CloseTimeout: cfg.Execution.CloseTimeout,
	}, provider, agent.New(planner, logger, agent.WithActionTimeout(cfg.Agent.ActionTimeout)), execOpts...)

	// Initialize handlers.
	handler := api.NewHandler(exec, repo, logger)
	healthHandler := api.NewHealthHandler(repo, provider.Name())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.Metrics(collector))
	r.Use(middleware.CORS(middleware.DefaultCORS))

	healthHandler.RegisterHealth(r)
	handler.RegisterRoutes(r)
	r.Handle("/metrics", collector.Handler())

	// Create server.
	// Note: websocket streams hold the connection for a whole execution,
	// so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if repo != nil {
		store.StartRetentionWorker(ctx, repo, cfg.History.Retention, cfg.History.SweepInterval)
	}

	if cfg.GRPCPort != "" {
		var pinger grpchealth.Pinger
		if repo != nil {
			pinger = repo
		}
		hs := grpchealth.New(pinger, grpchealth.Config{Logger: logger})
		go func() {
			if err := hs.ListenAndServe(ctx, ":"+cfg.GRPCPort); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	// In-flight executions get their full deadline plus session close time.
	shutdownTimeout := cfg.Execution.Deadline + cfg.Execution.CloseTimeout + 5*time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// newProvider builds the configured session provider and its cleanup hook.
func newProvider(cfg *config.Config, logger *slog.Logger) (session.Provider, func(), error) {
	if cfg.Provider == config.ProviderLocal {
		mgr, err := container.NewDockerManager(cfg.Local.Image, cfg.Local.Runtime)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Container manager initialized", "image", cfg.Local.Image)
		cleanup := func() {
			if err := mgr.Close(); err != nil {
				slog.Error("Failed to close container manager", "error", err)
			}
		}
		return session.NewLocalProvider(mgr, logger), cleanup, nil
	}
	return session.NewBrowserbaseProvider(cfg.Browserbase, logger), func() {}, nil
}

// logCredentials reports which secrets are present; prefixes only at debug level.
func logCredentials(creds config.Credentials) {
	for _, name := range []string{config.EnvBrowserbaseAPIKey, config.EnvBrowserbaseProjectID, config.EnvAnthropicAPIKey} {
		value := creds.Value(name)
		slog.Info("Credential check", "name", name, "present", value != "")
		if value != "" {
			slog.Debug("Credential prefix", "name", name, "prefix", config.Preview(value, 10))
		}
	}
}

// loadEnvironment loads .env before anything reads the environment, so
// LOG_LEVEL may come from the file too.
func loadEnvironment() (slog.Level, error) {
	err := godotenv.Load()
	return logLevel(os.Getenv("LOG_LEVEL")), err
}

func logLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}
