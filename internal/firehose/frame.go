// Package firehose consumes the com.atproto.sync.subscribeRepos event
// stream: it decodes the binary wire frames, reads the CAR block section
// of commit messages, classifies repository operations and projects them
// into the domain types.
package firehose

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/bluesky-social/indigo/events"
)

var (
	// ErrInvalidFrameType reports a frame header whose op value is
	// neither 1 (message) nor -1 (error).
	ErrInvalidFrameType = errors.New("firehose: invalid frame type")

	// ErrInvalidFrameData reports a frame whose header value is
	// malformed or truncated.
	ErrInvalidFrameData = errors.New("firehose: invalid frame data")
)

// Frame is one decoded firehose wire frame. A frame is two concatenated
// DAG-CBOR values: a header identifying the kind of frame and, for
// messages, a body payload.
type Frame struct {
	// Type is the message type discriminator from the header ("#commit",
	// "#identity", ...). Empty when the header carried none.
	Type string

	// Body is the raw bytes of the second CBOR value. Empty when the
	// buffer ended at the header.
	Body []byte

	// Error marks relay error frames. The body of an error frame is
	// not decoded.
	Error bool
}

// DecodeFrame splits a wire frame into header and body. The header is
// read as one CBOR value from the head of the buffer; everything after
// it is the body, left undecoded for the caller.
func DecodeFrame(data []byte) (*Frame, error) {
	r := bytes.NewReader(data)

	var header events.EventHeader
	if err := header.UnmarshalCBOR(r); err != nil {
		return nil, fmt.Errorf("%w: decode header: %v", ErrInvalidFrameData, err)
	}

	// The header decoder consumed exactly one CBOR value; the reader's
	// remaining length marks the body boundary.
	body := data[len(data)-r.Len():]

	switch header.Op {
	case events.EvtKindMessage:
		return &Frame{Type: header.MsgType, Body: body}, nil
	case events.EvtKindErrorFrame:
		return &Frame{Error: true}, nil
	default:
		return nil, fmt.Errorf("%w: op %d", ErrInvalidFrameType, header.Op)
	}
}
