package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"linklearn/internal/app"
	"linklearn/internal/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("linklearn: %v", err)
	}
}

func run() error {
	configFile := flag.String("config", "", "path to JSON config file (overrides LINKLEARN_CONFIG_FILE)")
	flag.Parse()

	path := *configFile
	if path == "" {
		path = os.Getenv("LINKLEARN_CONFIG_FILE")
	}
	cfg := config.LoadConfigWithPrecedence(path)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("assembling application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := application.Start(ctx); err != nil {
		application.Stop()
		return fmt.Errorf("starting application: %w", err)
	}
	log.Printf("linklearn: client running, control surface on %s:%d", cfg.Control.Host, cfg.Control.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("linklearn: received %s, shutting down", sig)

	application.Stop()
	log.Printf("linklearn: shutdown complete")
	return nil
}
