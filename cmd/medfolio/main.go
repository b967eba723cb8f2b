package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/medfolio/medfolio/adapter/cli"
	"github.com/medfolio/medfolio/adapter/cli/subscription"
	"github.com/medfolio/medfolio/internal/app"
	"github.com/medfolio/medfolio/pkg/config"
	"github.com/medfolio/medfolio/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Warn("failed to load config, using development defaults", "error", err)
		cfg = config.Default()
	}
	cli.SetLogger(logger)

	// Wire the full container; in development fall back to local-only mode
	// when the billing backend is unreachable.
	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		if !cfg.IsDevelopment() {
			logger.Error("failed to initialize container", "error", err)
			os.Exit(1)
		}
		logger.Warn("failed to initialize container, running in local mode", "error", err)
		container, err = app.NewLocalContainer(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to initialize local container", "error", err)
			os.Exit(1)
		}
	}
	defer container.Close()

	// Watch for connectivity regain so pending changes flush promptly.
	if container.ConnectivityWatcher != nil {
		go container.ConnectivityWatcher.Run(ctx)
	}

	cliApp := cli.NewApp(container.EntitlementService)
	cliApp.SetCurrentUserID(cfg.UserID)
	cli.SetApp(cliApp)

	// Register commands
	cli.AddCommand(subscription.Cmd)

	// Execute CLI
	cli.Execute()
}
