// Command hipposd runs the memory engine as a long-lived in-process
// daemon: it builds the composition root, starts the maintenance sweep
// in the background, and blocks until interrupted. It has no HTTP,
// WebSocket, or RPC surface of its own -- the engine is meant to be
// embedded, and this binary exists to exercise that embedding and to
// give operators something to run under a process supervisor.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"hippos/internal/config"
	"hippos/internal/di"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.LoadConfig()

	container, err := di.Build(cfg)
	if err != nil {
		log.Fatalf("failed to build container: %v", err)
	}
	defer func() {
		if err := container.Close(); err != nil {
			container.Logger.Warn("error closing container", zap.Error(err))
		}
	}()

	container.Logger.Info("hipposd starting",
		zap.String("environment", string(cfg.Environment)),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)

	maintenanceDone := make(chan struct{})
	go func() {
		defer close(maintenanceDone)
		container.RunMaintenance(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	container.Logger.Info("hipposd shutting down")
	cancel()

	select {
	case <-maintenanceDone:
		container.Logger.Info("maintenance sweep stopped cleanly")
	case <-time.After(10 * time.Second):
		container.Logger.Warn("maintenance sweep did not stop before timeout")
	}

	if err := container.Logger.Sync(); err != nil {
		log.Printf("failed to sync logger: %v", err)
	}
}
