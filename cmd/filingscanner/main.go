package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"FilingScanner/internal/app"
	"FilingScanner/internal/config"
	"FilingScanner/internal/logging"
)

func main() {
	once := flag.Bool("once", false, "run a single poll cycle and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		os.Exit(1)
	}

	if *once {
		report := application.RunOnce(ctx)
		logger.Info("single cycle finished", "candidates", report.Candidates, "accepted", report.Accepted)
		return
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
