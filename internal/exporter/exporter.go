// Package exporter implements the sinks the consumer fans records out
// to: a dry-run logger, JSONL and CSV file writers, a Postgres document
// store with relational edges, and a Prometheus metrics registry.
package exporter

import (
	"context"
	"log"

	"github.com/primal-host/skystream/internal/types"
)

// Exporter receives every decoded record. Implementations filter for
// the kinds they care about; most file sinks only persist posts.
// Export errors are reported to the caller but must leave the exporter
// usable for the next record.
type Exporter interface {
	Export(ctx context.Context, rec *types.Record) error
	Close() error
}

// DryRun logs record summaries instead of persisting anything. It is
// the default sink and doubles as a wiring smoke test.
type DryRun struct{}

// NewDryRun creates the logging sink.
func NewDryRun() *DryRun {
	return &DryRun{}
}

// Export logs a one-line summary of the record.
func (d *DryRun) Export(_ context.Context, rec *types.Record) error {
	switch rec.Kind {
	case types.KindPost:
		log.Printf("post %s by %s: %.80q", rec.Post.ID, rec.Post.Author, rec.Post.Text)
	case types.KindLike:
		log.Printf("like by %s on %s", rec.Like.Author, rec.Like.Subject)
	case types.KindRepost:
		log.Printf("repost by %s of %s", rec.Repost.Author, rec.Repost.Subject)
	case types.KindFollow:
		log.Printf("follow %s -> %s", rec.Follow.Author, rec.Follow.Subject)
	case types.KindBlock:
		log.Printf("block %s -> %s", rec.Block.Author, rec.Block.Subject)
	case types.KindListItem:
		log.Printf("listitem %s -> %s in %s", rec.ListItem.Author, rec.ListItem.Subject, rec.ListItem.List)
	case types.KindProfile:
		log.Printf("profile update for %s", rec.Profile.DID)
	default:
		log.Printf("%s %s by %s", rec.Other.Action, rec.Other.Path, rec.Other.Author)
	}
	return nil
}

// Close is a no-op for the dry-run sink.
func (d *DryRun) Close() error { return nil }
