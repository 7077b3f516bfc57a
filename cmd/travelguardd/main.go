package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"travelguard/internal/app"
	"travelguard/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]

	_ = godotenv.Load()

	cfgPath := os.Getenv("TG_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch cmd {
	case "serve":
		runServe(ctx, cfg)
	case "worker":
		runWorker(ctx, cfg)
	default:
		usage()
	}
}

func runServe(ctx context.Context, cfg config.Config) {
	appInstance, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("app init error: %v", err)
	}
	defer appInstance.Close()

	if cfg.Issuance.Async {
		go func() {
			if err := appInstance.RunIssuanceWorker(ctx); err != nil && ctx.Err() == nil {
				appInstance.Logger.Error().Err(err).Msg("issuance worker exited")
			}
		}()
	}

	if err := appInstance.Serve(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runWorker(ctx context.Context, cfg config.Config) {
	appInstance, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("app init error: %v", err)
	}
	defer appInstance.Close()

	appInstance.Logger.Info().Msg("issuance worker started")
	if err := appInstance.RunIssuanceWorker(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("worker error: %v", err)
	}
}

func usage() {
	fmt.Println("Usage: travelguardd <serve|worker>")
}
