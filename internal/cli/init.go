// Package cli holds the start-up steps shared by the binaries under cmd/.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"expensetracker/internal/config"
	applog "expensetracker/internal/log"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	level, err := applog.ParseLevel(cfg.LogLevel)
	logger := applog.New(applog.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", applog.FieldError, err)
	}
	return logger
}

// LoadEnvFile loads .env for local development. It is skipped when
// APP_ENV=production; a missing file is not an error.
func LoadEnvFile() {
	if os.Getenv("APP_ENV") == "production" {
		return
	}
	_ = godotenv.Load()
}

// LoadConfig loads .env (unless in production) and the environment.
func LoadConfig() *config.Config {
	LoadEnvFile()
	return config.Load()
}

// MustValidate exits the process when validate reports a problem.
func MustValidate(logger *applog.Logger, validate func() error) {
	if err := validate(); err != nil {
		logger.Error("Configuration validation failed",
			applog.NewFields().WithError(err).WithOperation(applog.OpStartup).ToSlice()...)
		os.Exit(1)
	}
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// RunCleanup runs fn with a fresh timeout context, logging its error.
func RunCleanup(logger *applog.Logger, name string, timeout time.Duration, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Error(fmt.Sprintf("%s failed", name),
			applog.NewFields().WithError(err).WithOperation(applog.OpShutdown).ToSlice()...)
	}
}
