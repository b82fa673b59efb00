// skystream consumes the AT Protocol firehose and fans decoded records
// out to a configurable sink.
//
// It reads configuration from skystream.json in the working directory
// (optional; every field has an environment variable), connects to the
// relay, and streams until interrupted.
//
// Usage:
//
//	./skystream                          # dry-run against bsky.network
//	EXPORTER=jsonl FILE_EXPORT_PATH=out.jsonl ./skystream
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/primal-host/skystream/internal/config"
	"github.com/primal-host/skystream/internal/consumer"
	"github.com/primal-host/skystream/internal/exporter"
	"github.com/primal-host/skystream/internal/profile"
	"github.com/primal-host/skystream/internal/server"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("skystream starting...")

	// Load configuration.
	cfg, err := config.Load("skystream.json")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (relay=%s exporter=%s)", cfg.Relay, cfg.Exporter)

	// Root context cancelled on SIGINT or SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received %v, shutting down...", sig)
		cancel()
	}()

	registry := prometheus.NewRegistry()

	sink, err := buildSink(ctx, cfg, registry)
	if err != nil {
		log.Fatalf("Failed to set up %s exporter: %v", cfg.Exporter, err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.Printf("Warning: closing exporter: %v", err)
		}
	}()

	// Metrics and health server. With the prometheus exporter the
	// registry carries the full metric set; otherwise it serves as a
	// liveness surface.
	srv := server.New(cfg.MetricsAddr, registry)
	go func() {
		if err := srv.Start(ctx); err != nil {
			log.Printf("Warning: metrics server: %v", err)
		}
	}()

	c := consumer.New(cfg.Relay, time.Duration(cfg.ReadTimeoutSecs)*time.Second, sink)
	if err := c.Run(ctx); err != nil {
		log.Fatalf("Consumer error: %v", err)
	}

	log.Println("skystream stopped")
}

// buildSink wires the exporter the config selects.
func buildSink(ctx context.Context, cfg *config.Config, registry *prometheus.Registry) (exporter.Exporter, error) {
	switch cfg.Exporter {
	case config.ExporterJSONL:
		return exporter.NewJSONL(cfg.FilePath)

	case config.ExporterCSV:
		return exporter.NewCSV(cfg.FilePath)

	case config.ExporterDocumentStore:
		var resolver *profile.Resolver
		if cfg.FetchUserData {
			var err error
			resolver, err = profile.NewResolver("")
			if err != nil {
				return nil, err
			}
		}
		return exporter.OpenPostgres(ctx, cfg.ConnString(), resolver)

	case config.ExporterPrometheus:
		return exporter.NewProm(registry, exporter.PromOptions{
			MaxSampleSize:  cfg.MaxSampleSize,
			NormalizeLangs: *cfg.NormalizeLangs,
		}), nil

	default:
		return exporter.NewDryRun(), nil
	}
}
