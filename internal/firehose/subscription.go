package firehose

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	atproto "github.com/bluesky-social/indigo/api/atproto"
	"github.com/gorilla/websocket"
)

// SubscribePath is the XRPC endpoint serving the repo event stream.
const SubscribePath = "/xrpc/com.atproto.sync.subscribeRepos"

// DefaultReadTimeout bounds each websocket read. A healthy relay emits
// events far more often than this; hitting the deadline means the
// connection is dead and the consumer should redial.
const DefaultReadTimeout = 30 * time.Second

// Subscription is an exclusive handle on one firehose websocket. It is
// not safe for concurrent readers; the consumer owns it.
type Subscription struct {
	conn        *websocket.Conn
	relay       string
	readTimeout time.Duration
}

// Subscribe dials wss://<relayHost>/xrpc/com.atproto.sync.subscribeRepos.
// No cursor is sent; the stream starts at the relay's current tip.
func Subscribe(ctx context.Context, relayHost string, readTimeout time.Duration) (*Subscription, error) {
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	u := url.URL{Scheme: "wss", Host: relayHost, Path: SubscribePath}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("firehose: dial %s: %w", u.String(), err)
	}

	return &Subscription{
		conn:        conn,
		relay:       relayHost,
		readTimeout: readTimeout,
	}, nil
}

// Next reads frames until one decodes. Frames that fail to decode are
// logged and skipped; only transport errors (including the read
// deadline) surface to the caller.
func (s *Subscription) Next() (*Frame, error) {
	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return nil, fmt.Errorf("firehose: set read deadline: %w", err)
		}

		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("firehose: read %s: %w", s.relay, err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		frame, err := DecodeFrame(data)
		if err != nil {
			log.Printf("Warning: skipping undecodable frame from %s: %v", s.relay, err)
			continue
		}
		return frame, nil
	}
}

// Commits returns a channel of decoded #commit messages. Non-commit
// messages and error frames are logged and dropped. The channel closes
// on transport error or context cancellation; call Close afterwards.
func (s *Subscription) Commits(ctx context.Context) <-chan *atproto.SyncSubscribeRepos_Commit {
	out := make(chan *atproto.SyncSubscribeRepos_Commit)

	go func() {
		defer close(out)
		for {
			frame, err := s.Next()
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("Warning: firehose read ended: %v", err)
				}
				return
			}

			if frame.Error {
				log.Printf("Warning: error frame from relay %s", s.relay)
				continue
			}
			if frame.Type != "#commit" {
				continue
			}

			var commit atproto.SyncSubscribeRepos_Commit
			if err := commit.UnmarshalCBOR(bytes.NewReader(frame.Body)); err != nil {
				log.Printf("Warning: skipping undecodable commit: %v", err)
				continue
			}

			select {
			case out <- &commit:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Close tears down the websocket.
func (s *Subscription) Close() error {
	return s.conn.Close()
}
