package firehose

import (
	"context"
	"log"

	"github.com/primal-host/skystream/internal/types"
)

// Stream flattens the commit channel of a subscription into a channel
// of domain records, preserving commit order.
type Stream struct {
	sub *Subscription
}

// NewStream wraps a subscription. The stream takes over reading; do not
// call Next or Commits on the subscription afterwards.
func NewStream(sub *Subscription) *Stream {
	return &Stream{sub: sub}
}

// Records returns the record channel. Commits whose CAR section cannot
// be read are dropped with a warning; op-level failures are already
// contained inside ExtractRecords. The channel closes when the
// underlying subscription ends.
func (s *Stream) Records(ctx context.Context) <-chan *types.Record {
	out := make(chan *types.Record)

	go func() {
		defer close(out)
		for commit := range s.sub.Commits(ctx) {
			records, err := ExtractRecords(commit)
			if err != nil {
				log.Printf("Warning: dropping commit: %v", err)
				continue
			}
			for _, rec := range records {
				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
