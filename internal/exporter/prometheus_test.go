package exporter

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/primal-host/skystream/internal/types"
)

func newTestProm(t *testing.T, opts PromOptions) *Prom {
	t.Helper()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return newProm(prometheus.NewRegistry(), opts, func() time.Time { return now })
}

func postRecord(post *types.Post) *types.Record {
	return &types.Record{Kind: types.KindPost, Post: post}
}

func TestPromCountsEvents(t *testing.T) {
	p := newTestProm(t, PromOptions{NormalizeLangs: true})
	ctx := context.Background()

	require.NoError(t, p.Export(ctx, postRecord(&types.Post{ID: "a"})))
	require.NoError(t, p.Export(ctx, &types.Record{
		Kind: types.KindLike,
		Like: &types.LikeEvent{},
	}))

	require.Equal(t, 2.0, testutil.ToFloat64(p.events))
	require.Equal(t, 1.0, testutil.ToFloat64(p.eventsByType.WithLabelValues("post")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.eventsByType.WithLabelValues("like")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.posts.WithLabelValues()))
}

func TestPromGroupedLanguages(t *testing.T) {
	p := newTestProm(t, PromOptions{NormalizeLangs: true})
	ctx := context.Background()

	// Duplicate after normalization: en-US and en collapse.
	require.NoError(t, p.Export(ctx, postRecord(&types.Post{
		ID:       "a",
		Language: []string{"ja", "en-US", "en"},
	})))

	require.Equal(t, 1.0, testutil.ToFloat64(p.langGrouped.WithLabelValues("en,ja")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.langIndividual.WithLabelValues("en")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.langIndividual.WithLabelValues("ja")))
}

func TestPromNoLanguages(t *testing.T) {
	p := newTestProm(t, PromOptions{NormalizeLangs: true})

	require.NoError(t, p.Export(context.Background(), postRecord(&types.Post{ID: "a"})))
	require.Equal(t, 1.0, testutil.ToFloat64(p.langGrouped.WithLabelValues("null")))
}

func TestPromQuoteReplyMedia(t *testing.T) {
	p := newTestProm(t, PromOptions{NormalizeLangs: true})
	ctx := context.Background()

	quoted := &types.Post{
		ID: "a",
		Embed: &types.Embed{
			Kind:   types.EmbedRecordWithMedia,
			Record: "bafyquoted",
			Media: []types.Media{
				{Kind: types.MediaImage, Alt: "described"},
			},
		},
		Reply: &types.ReplyRef{Parent: "bafyparent", Root: "bafyroot"},
	}
	withVideo := &types.Post{
		ID: "b",
		Embed: &types.Embed{
			Kind:  types.EmbedUnknown,
			Media: []types.Media{{Kind: types.MediaVideo}},
		},
	}
	plain := &types.Post{ID: "c"}

	require.NoError(t, p.Export(ctx, postRecord(quoted)))
	require.NoError(t, p.Export(ctx, postRecord(withVideo)))
	require.NoError(t, p.Export(ctx, postRecord(plain)))

	require.Equal(t, 1.0, testutil.ToFloat64(p.quotes.WithLabelValues("true")))
	require.Equal(t, 2.0, testutil.ToFloat64(p.quotes.WithLabelValues("false")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.replies.WithLabelValues("true")))

	// The media label names the leading media kind, or false without any.
	require.Equal(t, 1.0, testutil.ToFloat64(p.media.WithLabelValues("image")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.media.WithLabelValues("video")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.media.WithLabelValues("false")))

	require.Equal(t, 1.0, testutil.ToFloat64(p.altText.WithLabelValues("true")))
	require.Equal(t, 1.0, testutil.ToFloat64(p.altText.WithLabelValues("false")))
}

func TestPromExternalDomain(t *testing.T) {
	p := newTestProm(t, PromOptions{NormalizeLangs: true})

	require.NoError(t, p.Export(context.Background(), postRecord(&types.Post{
		ID: "a",
		Embed: &types.Embed{
			Kind: types.EmbedExternal,
			External: &types.ExternalLink{
				URI: "https://WWW.Example.COM/some/article",
			},
		},
	})))

	require.Equal(t, 1.0, testutil.ToFloat64(p.domains.vec.WithLabelValues("example.com")))
}

func TestPromSampleRollover(t *testing.T) {
	p := newTestProm(t, PromOptions{MaxSampleSize: 2, NormalizeLangs: true})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Export(ctx, postRecord(&types.Post{ID: "a"})))
	}

	// The third post pushed the counter past the threshold and reset it.
	require.Equal(t, 0.0, testutil.ToFloat64(p.posts.WithLabelValues()))

	require.NoError(t, p.Export(ctx, postRecord(&types.Post{ID: "b"})))
	require.Equal(t, 1.0, testutil.ToFloat64(p.posts.WithLabelValues()))
}

func TestExternalDomain(t *testing.T) {
	cases := map[string]string{
		"https://www.example.com/a": "example.com",
		"https://Example.COM":       "example.com",
		"https://sub.example.com/b": "sub.example.com",
		"not a url at all://":       "",
	}
	for in, want := range cases {
		require.Equal(t, want, externalDomain(in), "input %q", in)
	}
}
