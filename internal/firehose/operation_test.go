package firehose

import (
	"testing"

	atproto "github.com/bluesky-social/indigo/api/atproto"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/stretchr/testify/require"
)

func TestClassifyOp(t *testing.T) {
	cases := []struct {
		path string
		want OpKind
	}{
		{"app.bsky.feed.post/3kenlltlvus2u", OpPost},
		{"app.bsky.feed.like/3kenlltlvus2u", OpLike},
		{"app.bsky.feed.repost/3kenlltlvus2u", OpRepost},
		{"app.bsky.graph.follow/3kenlltlvus2u", OpFollow},
		{"app.bsky.graph.block/3kenlltlvus2u", OpBlock},
		{"app.bsky.graph.listitem/3kenlltlvus2u", OpListItem},
		{"app.bsky.actor.profile/self", OpProfile},
		{"app.bsky.feed.generator/whats-hot", OpOther},
		{"chat.bsky.actor.declaration/self", OpOther},
		{"app.bsky.feed.post", OpPost}, // no rkey at all
	}

	for _, tc := range cases {
		op := ClassifyOp(&atproto.SyncSubscribeRepos_RepoOp{
			Action: "create",
			Path:   tc.path,
		})
		require.Equal(t, tc.want, op.Kind, "path %s", tc.path)
	}
}

func TestClassifyOpCarriesCid(t *testing.T) {
	c := mustCidForData(t, []byte("record"))
	link := lexutil.LexLink(c)

	op := ClassifyOp(&atproto.SyncSubscribeRepos_RepoOp{
		Action: "create",
		Path:   "app.bsky.feed.post/3kenlltlvus2u",
		Cid:    &link,
	})
	require.NotNil(t, op.CID)
	require.True(t, op.CID.Equals(c))
	require.Equal(t, "app.bsky.feed.post", op.Collection)

	// Deletes carry no CID.
	del := ClassifyOp(&atproto.SyncSubscribeRepos_RepoOp{
		Action: "delete",
		Path:   "app.bsky.feed.post/3kenlltlvus2u",
	})
	require.Nil(t, del.CID)
}
