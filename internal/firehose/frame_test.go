package firehose

import (
	"bytes"
	"encoding/hex"
	"testing"

	atproto "github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/events"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"
	cbg "github.com/whyrusleeping/cbor-gen"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestDecodeFrameHeaderOnly(t *testing.T) {
	// {"op": 1, "t": "#commit"} with nothing after the header.
	frame, err := DecodeFrame(mustHex(t, "a2626f700161746723636f6d6d6974"))
	require.NoError(t, err)
	require.False(t, frame.Error)
	require.Equal(t, "#commit", frame.Type)
	require.Empty(t, frame.Body)
}

func TestDecodeFrameError(t *testing.T) {
	// {"op": -1}
	frame, err := DecodeFrame(mustHex(t, "a1626f7020"))
	require.NoError(t, err)
	require.True(t, frame.Error)
}

func TestDecodeFrameUnknownOp(t *testing.T) {
	// {"op": 2, "t": "#commit"}
	_, err := DecodeFrame(mustHex(t, "a2626f700261746723636f6d6d6974"))
	require.ErrorIs(t, err, ErrInvalidFrameType)
}

func TestDecodeFrameTruncatedHeader(t *testing.T) {
	_, err := DecodeFrame(mustHex(t, "a2626f70"))
	require.ErrorIs(t, err, ErrInvalidFrameData)
}

func TestDecodeFrameEmpty(t *testing.T) {
	_, err := DecodeFrame(nil)
	require.ErrorIs(t, err, ErrInvalidFrameData)
}

// encodeFrame builds a wire frame the way a relay does: CBOR header
// followed by the CBOR commit body.
func encodeFrame(t *testing.T, commit *atproto.SyncSubscribeRepos_Commit) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := cbg.NewCborWriter(&buf)

	header := events.EventHeader{
		Op:      events.EvtKindMessage,
		MsgType: "#commit",
	}
	require.NoError(t, header.MarshalCBOR(w))
	require.NoError(t, commit.MarshalCBOR(w))
	return buf.Bytes()
}

func mustCidForData(t *testing.T, data []byte) cid.Cid {
	t.Helper()
	prefix := cid.Prefix{
		Version:  1,
		Codec:    cid.DagCBOR,
		MhType:   mh.SHA2_256,
		MhLength: 32,
	}
	c, err := prefix.Sum(data)
	require.NoError(t, err)
	return c
}

func TestFrameRoundTrip(t *testing.T) {
	commitCid := mustCidForData(t, []byte("commit"))
	commit := &atproto.SyncSubscribeRepos_Commit{
		Repo:   "did:plc:ewvi7nxzyoun6zhxrhs64oiz",
		Rev:    "3kx2example",
		Seq:    42,
		Time:   "2024-05-01T10:00:00Z",
		Commit: lexutil.LexLink(commitCid),
		Blocks: []byte{},
	}

	frame, err := DecodeFrame(encodeFrame(t, commit))
	require.NoError(t, err)
	require.Equal(t, "#commit", frame.Type)
	require.False(t, frame.Error)

	var decoded atproto.SyncSubscribeRepos_Commit
	require.NoError(t, decoded.UnmarshalCBOR(bytes.NewReader(frame.Body)))
	require.Equal(t, commit.Repo, decoded.Repo)
	require.Equal(t, commit.Rev, decoded.Rev)
	require.Equal(t, commit.Seq, decoded.Seq)
	require.Equal(t, commit.Time, decoded.Time)
}
