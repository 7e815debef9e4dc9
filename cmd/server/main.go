// QuillBill - invoicing API for freelancers
package main

import (
	"context"
	"os"

	"github.com/quillbill/quillbill/internal/config"
	"github.com/quillbill/quillbill/internal/logging"
	"github.com/quillbill/quillbill/internal/server"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	logger := logging.New("info", "text")

	logger.Info("starting quillbill",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"env", cfg.Env,
		"storage", map[bool]string{true: "postgres", false: "in-memory"}[cfg.DatabaseURL != ""],
		"billing", map[bool]string{true: "stripe", false: "disabled"}[cfg.StripeSecretKey != ""],
	)

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
