package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quotefeed/internal/cli"
	"quotefeed/internal/config"
	"quotefeed/internal/svc"
)

const shutdownTimeout = 10 * time.Second // Grace period for shutdown

var configFile = flag.String("f", "etc/quotefeed.yaml", "the config file")

func main() {
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("[main] Starting price ingestion daemon...")

	appCfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("[main] Failed to load config %s: %v", *configFile, err)
	}

	log.Printf("[main] Configuration loaded:")
	for _, line := range cli.ConfigSummaryLines(appCfg) {
		log.Printf("  - %s", line)
	}

	svcCtx := svc.NewServiceContext(*appCfg)

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svcCtx.Job.Start(ctx); err != nil {
		log.Fatalf("[main] Failed to start ingest job: %v", err)
	}

	log.Println("[main] Ingestion daemon started. Press Ctrl+C to stop.")

	<-ctx.Done()
	log.Println("[main] Shutdown signal received, stopping job...")

	// Give the in-flight cycle time to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		svcCtx.Job.Stop()
		close(done)
	}()

	select {
	case <-done:
		status := svcCtx.Job.Status()
		log.Printf("[main] Job stopped cleanly: runs=%d skips=%d failures=%d", status.Runs, status.Skips, status.Failures)
	case <-shutdownCtx.Done():
		log.Println("[main] Shutdown timeout exceeded, forcing exit")
	}

	log.Println("[main] Ingestion daemon stopped")
}
