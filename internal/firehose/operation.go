package firehose

import (
	"strings"

	atproto "github.com/bluesky-social/indigo/api/atproto"
	"github.com/ipfs/go-cid"
)

// Collection NSIDs the decoder projects into typed records.
const (
	CollectionFeedPost      = "app.bsky.feed.post"
	CollectionFeedLike      = "app.bsky.feed.like"
	CollectionFeedRepost    = "app.bsky.feed.repost"
	CollectionGraphFollow   = "app.bsky.graph.follow"
	CollectionGraphBlock    = "app.bsky.graph.block"
	CollectionGraphListitem = "app.bsky.graph.listitem"
	CollectionActorProfile  = "app.bsky.actor.profile"
)

// OpKind is the classified collection of a repo operation.
type OpKind int

const (
	OpOther OpKind = iota
	OpPost
	OpLike
	OpRepost
	OpFollow
	OpBlock
	OpListItem
	OpProfile
)

// Operation is a classified repo op: the raw op plus its collection NSID
// and, when the op carries one, its record CID.
type Operation struct {
	Kind       OpKind
	Collection string

	// CID is nil for delete ops.
	CID *cid.Cid

	Raw *atproto.SyncSubscribeRepos_RepoOp
}

// ClassifyOp maps an op's path prefix (the NSID before the first slash)
// to an operation kind. Unknown collections classify as OpOther; the
// record key after the slash is ignored.
func ClassifyOp(op *atproto.SyncSubscribeRepos_RepoOp) Operation {
	collection, _, _ := strings.Cut(op.Path, "/")

	out := Operation{Collection: collection, Raw: op}
	if op.Cid != nil {
		c := cid.Cid(*op.Cid)
		out.CID = &c
	}

	switch collection {
	case CollectionFeedPost:
		out.Kind = OpPost
	case CollectionFeedLike:
		out.Kind = OpLike
	case CollectionFeedRepost:
		out.Kind = OpRepost
	case CollectionGraphFollow:
		out.Kind = OpFollow
	case CollectionGraphBlock:
		out.Kind = OpBlock
	case CollectionGraphListitem:
		out.Kind = OpListItem
	case CollectionActorProfile:
		out.Kind = OpProfile
	default:
		out.Kind = OpOther
	}
	return out
}
