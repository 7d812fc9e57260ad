// Command interviewd serves real-time voice interviews: a browser streams
// microphone audio over a WebSocket while an ElevenLabs conversational
// agent conducts the interview.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/voxhire/interviewd/internal/config"
	"github.com/voxhire/interviewd/internal/log"
	"github.com/voxhire/interviewd/pkg/interview"
	"github.com/voxhire/interviewd/pkg/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// .env is optional; system environment wins
	dotenvErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log.Init(cfg.LogLevel)
	if dotenvErr != nil {
		log.Debug("no .env file loaded", "error", dotenvErr)
	}

	registry := interview.NewRegistry(cfg.MaxQuestions, cfg.IdleTimeout, nil, log.L())
	server := web.NewServer(ctx, registry, log.L())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(cfg.Addr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		if err := server.Shutdown(); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	case err := <-errCh:
		if err != nil {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
