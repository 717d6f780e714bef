package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/voicelyapp/voicely-cli/internal/buildinfo"
	"github.com/voicelyapp/voicely-cli/internal/client/cli"
	"github.com/voicelyapp/voicely-cli/internal/client/config"
	"github.com/voicelyapp/voicely-cli/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("%v", err)
	}
}
