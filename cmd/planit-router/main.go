package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Aaks-hatH/planit-sub000/pkg/config"
	"github.com/Aaks-hatH/planit-sub000/pkg/logging"
	"github.com/Aaks-hatH/planit-sub000/pkg/version"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (optional; PLANIT_BACKENDS alone is enough)")
	showVersion := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("planit-router %s\n", version.Version)
		os.Exit(0)
	}

	// Bootstrap logger for startup, before config is loaded.
	bootstrapLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	bootstrapLogger.Info("planit-router starting",
		"version", version.Version,
		"config", *configPath,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootstrapLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrNoBackends) {
			// Refusing to start beats silently routing into nothing.
			bootstrapLogger.Error("no backends configured: set PLANIT_BACKENDS or the backends list in the config file")
		} else {
			bootstrapLogger.Error("configuration invalid", "error", err)
		}
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		bootstrapLogger.Error("failed to create logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		"backends", len(cfg.Backends),
		"listen", cfg.Listen.Address,
		"log_level", cfg.Logging.Level,
	)

	app := NewApplication(cfg, logger)
	if err := app.Initialize(); err != nil {
		logger.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		logger.Error("application exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("planit-router stopped")
}
