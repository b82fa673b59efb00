package firehose

import (
	"testing"

	atproto "github.com/bluesky-social/indigo/api/atproto"
	bsky "github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/stretchr/testify/require"

	"github.com/primal-host/skystream/internal/types"
)

func testBlob(t *testing.T, seed string, mime string) *lexutil.LexBlob {
	t.Helper()
	return &lexutil.LexBlob{
		Ref:      lexutil.LexLink(mustCidForData(t, []byte(seed))),
		MimeType: mime,
		Size:     1234,
	}
}

func TestProjectEmbedNil(t *testing.T) {
	require.Nil(t, projectEmbed(nil))
}

func TestProjectEmbedImages(t *testing.T) {
	embed := &bsky.FeedPost_Embed{
		EmbedImages: &bsky.EmbedImages{
			Images: []*bsky.EmbedImages_Image{
				{
					Alt:         "a cat",
					Image:       testBlob(t, "cat", "image/jpeg"),
					AspectRatio: &bsky.EmbedDefs_AspectRatio{Width: 4, Height: 3},
				},
				{Image: testBlob(t, "dog", "image/png")},
			},
		},
	}

	got := projectEmbed(embed)
	require.Equal(t, types.EmbedImages, got.Kind)
	require.Len(t, got.Media, 2)
	require.Equal(t, types.MediaImage, got.Media[0].Kind)
	require.Equal(t, "a cat", got.Media[0].Alt)
	require.Equal(t, "image/jpeg", got.Media[0].Blob.MimeType)
	require.NotNil(t, got.Media[0].AspectRatio)
	require.EqualValues(t, 4, got.Media[0].AspectRatio.Width)
	require.Empty(t, got.Media[1].Alt)
	require.Nil(t, got.Media[1].AspectRatio)
}

func TestProjectEmbedExternal(t *testing.T) {
	embed := &bsky.FeedPost_Embed{
		EmbedExternal: &bsky.EmbedExternal{
			External: &bsky.EmbedExternal_External{
				Uri:         "https://www.Example.com/article",
				Title:       "An article",
				Description: "Worth reading",
				Thumb:       testBlob(t, "thumb", "image/jpeg"),
			},
		},
	}

	got := projectEmbed(embed)
	require.Equal(t, types.EmbedExternal, got.Kind)
	require.Empty(t, got.Media)
	require.NotNil(t, got.External)
	require.Equal(t, "https://www.Example.com/article", got.External.URI)
	require.NotNil(t, got.External.Thumb)
}

func TestProjectEmbedRecord(t *testing.T) {
	quoted := mustCidForData(t, []byte("quoted post")).String()
	embed := &bsky.FeedPost_Embed{
		EmbedRecord: &bsky.EmbedRecord{
			Record: &atproto.RepoStrongRef{
				Cid: quoted,
				Uri: "at://did:plc:someone/app.bsky.feed.post/1",
			},
		},
	}

	got := projectEmbed(embed)
	require.Equal(t, types.EmbedRecord, got.Kind)
	require.Equal(t, quoted, got.Record)
	require.Empty(t, got.Media)
}

func TestProjectEmbedRecordWithMedia(t *testing.T) {
	quoted := mustCidForData(t, []byte("quoted post")).String()
	embed := &bsky.FeedPost_Embed{
		EmbedRecordWithMedia: &bsky.EmbedRecordWithMedia{
			Record: &bsky.EmbedRecord{
				Record: &atproto.RepoStrongRef{
					Cid: quoted,
					Uri: "at://did:plc:someone/app.bsky.feed.post/1",
				},
			},
			Media: &bsky.EmbedRecordWithMedia_Media{
				EmbedImages: &bsky.EmbedImages{
					Images: []*bsky.EmbedImages_Image{
						{Alt: "attached", Image: testBlob(t, "img", "image/webp")},
					},
				},
			},
		},
	}

	got := projectEmbed(embed)
	require.Equal(t, types.EmbedRecordWithMedia, got.Kind)
	require.Equal(t, quoted, got.Record)
	require.Len(t, got.Media, 1)
	require.Equal(t, "attached", got.Media[0].Alt)
}

func TestProjectEmbedRecordWithExternal(t *testing.T) {
	// The external arm of record-with-media has no typed projection.
	embed := &bsky.FeedPost_Embed{
		EmbedRecordWithMedia: &bsky.EmbedRecordWithMedia{
			Record: &bsky.EmbedRecord{
				Record: &atproto.RepoStrongRef{
					Cid: mustCidForData(t, []byte("quoted post")).String(),
					Uri: "at://did:plc:someone/app.bsky.feed.post/1",
				},
			},
			Media: &bsky.EmbedRecordWithMedia_Media{
				EmbedExternal: &bsky.EmbedExternal{
					External: &bsky.EmbedExternal_External{
						Uri:   "https://example.com",
						Title: "A link",
					},
				},
			},
		},
	}

	got := projectEmbed(embed)
	require.Equal(t, types.EmbedUnknown, got.Kind)
	require.Empty(t, got.Record)
	require.Empty(t, got.Media)
	require.Nil(t, got.External)
}

func TestProjectEmbedVideo(t *testing.T) {
	alt := "a clip"
	embed := &bsky.FeedPost_Embed{
		EmbedVideo: &bsky.EmbedVideo{
			Alt:   &alt,
			Video: testBlob(t, "clip", "video/mp4"),
		},
	}

	// No typed variant for a bare video, but its media still surfaces.
	got := projectEmbed(embed)
	require.Equal(t, types.EmbedUnknown, got.Kind)
	require.Len(t, got.Media, 1)
	require.Equal(t, types.MediaVideo, got.Media[0].Kind)
	require.Equal(t, "a clip", got.Media[0].Alt)
	require.Equal(t, "video/mp4", got.Media[0].Blob.MimeType)
}

func TestProjectEmbedEmptyUnion(t *testing.T) {
	got := projectEmbed(&bsky.FeedPost_Embed{})
	require.Equal(t, types.EmbedUnknown, got.Kind)
	require.Empty(t, got.Media)
}
