// Package consumer runs the ingest loop: subscribe to the relay, read
// records, fan them out to the configured sink, reconnect on failure.
package consumer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/primal-host/skystream/internal/exporter"
	"github.com/primal-host/skystream/internal/firehose"
	"github.com/primal-host/skystream/internal/ratecounter"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 60 * time.Second
)

// Consumer ties a relay subscription to an exporter.
type Consumer struct {
	relay       string
	readTimeout time.Duration
	sink        exporter.Exporter
	rate        *ratecounter.Counter
}

// New creates a consumer. readTimeout <= 0 selects the default.
func New(relay string, readTimeout time.Duration, sink exporter.Exporter) *Consumer {
	return &Consumer{
		relay:       relay,
		readTimeout: readTimeout,
		sink:        sink,
		rate:        ratecounter.New(ratecounter.DefaultWindow),
	}
}

// Run ingests until the context is cancelled. A failure to establish
// the very first connection is fatal; after that, transport errors
// trigger reconnection with exponential backoff.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := initialBackoff
	connected := false

	for {
		if ctx.Err() != nil {
			return nil
		}

		sub, err := firehose.Subscribe(ctx, c.relay, c.readTimeout)
		if err != nil {
			if !connected {
				return fmt.Errorf("consumer: connect to %s: %w", c.relay, err)
			}
			log.Printf("Warning: reconnect to %s failed, retrying in %s: %v", c.relay, backoff, err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		connected = true
		backoff = initialBackoff
		log.Printf("Connected to firehose at %s", c.relay)

		c.ingest(ctx, sub)
		sub.Close()

		if ctx.Err() != nil {
			return nil
		}
		log.Printf("Warning: stream from %s ended, reconnecting...", c.relay)
	}
}

// ingest drains one subscription until it ends or the context is
// cancelled. Sink errors are logged and do not stop the session.
func (c *Consumer) ingest(ctx context.Context, sub *firehose.Subscription) {
	stream := firehose.NewStream(sub)
	for rec := range stream.Records(ctx) {
		if err := c.sink.Export(ctx, rec); err != nil {
			log.Printf("Warning: export failed: %v", err)
		}
		if rate, ok := c.rate.Observe(); ok {
			log.Printf("Ingest rate: %.2f items/s", rate)
		}
	}
}
