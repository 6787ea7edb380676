package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/securevm/internal/infrastructure/config"
	"github.com/GriffinCanCode/securevm/internal/infrastructure/server"
)

func main() {
	cfg := config.LoadOrDefault()

	// Flags override environment
	flag.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "Server port")
	flag.StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "Server host")
	flag.BoolVar(&cfg.Logging.Development, "dev", cfg.Logging.Development, "Development logging")
	flag.StringVar(&cfg.Sandbox.WhitelistFile, "whitelist", cfg.Sandbox.WhitelistFile, "Whitelist file (.yaml, .toml or .json)")
	flag.IntVar(&cfg.Sandbox.PoolSize, "pool", cfg.Sandbox.PoolSize, "Pre-built sandbox contexts")
	flag.IntVar(&cfg.Sandbox.MaxSessions, "max-sessions", cfg.Sandbox.MaxSessions, "Maximum live sessions")
	flag.DurationVar(&cfg.Sandbox.Timeout, "timeout", cfg.Sandbox.Timeout, "Evaluation timeout")
	flag.Parse()

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-sigChan:
		if err := srv.Close(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	case err := <-errChan:
		srv.Close()
		log.Fatalf("Server error: %v", err)
	}
}
