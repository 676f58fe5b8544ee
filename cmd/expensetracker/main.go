package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/amqp"
	"expensetracker/internal/auth"
	"expensetracker/internal/backend"
	"expensetracker/internal/cache"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	"expensetracker/internal/core"
	apphttp "expensetracker/internal/http"
	applog "expensetracker/internal/log"
	"expensetracker/internal/services"
)

func main() {
	cfg := cli.LoadConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp)
	cli.MustValidate(logger, cfg.Validate)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error",
			applog.NewFields().WithError(err).WithOperation(applog.OpShutdown).ToSlice()...)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, stop := cli.SignalContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	// Left as a nil interface when AMQP is off so the service skips publishing.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, expense events disabled",
				applog.NewFields().WithError(err).WithComponent(applog.ComponentAMQP).ToSlice()...)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP publisher connected", "exchange", cfg.AMQPExchange)
		}
	}

	summaries := cache.NewSummaryCache(cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
	expenses := services.NewExpenseService(result.Store, summaries, publisher)
	users := services.NewUserService(result.Store, expenses,
		auth.NewIssuer(cfg.Secret, cfg.TokenTTL), cfg.BcryptCost, cfg.GuestUsername)

	if err := bootstrapAccounts(ctx, logger, users, cfg); err != nil {
		return err
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}, logger, users, expenses, result.Store)
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting expensetracker server",
			"port", cfg.Port, "backend", backendCfg.Type.String(), "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		var shutdownErr error
		cli.RunCleanup(logger, "Server shutdown", 30*time.Second, func(ctx context.Context) error {
			shutdownErr = srv.Shutdown(ctx)
			return shutdownErr
		})
		return shutdownErr
	})
	return g.Wait()
}

// bootstrapAccounts makes sure the guest and the optional admin account exist.
func bootstrapAccounts(ctx context.Context, logger *applog.Logger, users *services.UserService, cfg *config.Config) error {
	if cfg.GuestUsername != "" && cfg.GuestPassword != "" {
		u, err := users.EnsureUser(ctx, core.Credentials{Username: cfg.GuestUsername, Password: cfg.GuestPassword}, false)
		if err != nil {
			return err
		}
		logger.Info("Guest account ready", applog.NewFields().WithUser(u.ID, u.Username).ToSlice()...)
	}
	if cfg.AdminUsername != "" {
		u, err := users.EnsureUser(ctx, core.Credentials{Username: cfg.AdminUsername, Password: cfg.AdminPassword}, true)
		if err != nil {
			return err
		}
		if !u.IsAdmin {
			logger.Warn("ADMIN_USERNAME belongs to an existing non-admin account",
				applog.NewFields().WithUser(u.ID, u.Username).ToSlice()...)
		}
	}
	return nil
}
