package firehose

import (
	"bytes"
	"fmt"
	"log"
	"time"

	atproto "github.com/bluesky-social/indigo/api/atproto"
	bsky "github.com/bluesky-social/indigo/api/bsky"
	data "github.com/bluesky-social/indigo/atproto/atdata"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/ipfs/go-cid"

	"github.com/primal-host/skystream/internal/types"
)

// ExtractRecords decodes every operation of a commit into domain
// records, in op order. A CAR section that cannot be read fails the
// whole commit; individual ops that fail to decode or project are
// logged and skipped.
func ExtractRecords(commit *atproto.SyncSubscribeRepos_Commit) ([]*types.Record, error) {
	bm, err := ReadBlockMap(commit.Blocks)
	if err != nil {
		return nil, fmt.Errorf("firehose: commit seq %d: %w", commit.Seq, err)
	}

	records := make([]*types.Record, 0, len(commit.Ops))
	for _, rawOp := range commit.Ops {
		op := ClassifyOp(rawOp)

		rec, err := decodeRecord(bm, commit.Repo, op)
		if err != nil {
			log.Printf("Warning: skipping op %s %s: %v", rawOp.Action, rawOp.Path, err)
			continue
		}
		if rec != nil {
			records = append(records, rec)
		}
	}
	return records, nil
}

// decodeRecord projects one classified op. Typed projections apply to
// create actions only; everything else is carried generically. A
// create without a CID cannot be resolved against the block map, so it
// rides the generic path too instead of trusting the relay.
func decodeRecord(bm *BlockMap, repo string, op Operation) (*types.Record, error) {
	if op.Raw.Action != "create" || op.Kind == OpOther || op.CID == nil {
		return genericRecord(bm, repo, op)
	}

	raw, err := bm.Get(*op.CID)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", op.CID, err)
	}
	recordCid := op.CID.String()

	switch op.Kind {
	case OpPost:
		var rec bsky.FeedPost
		if err := rec.UnmarshalCBOR(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("decode post: %w", err)
		}
		post, err := projectPost(repo, recordCid, &rec)
		if err != nil {
			return nil, err
		}
		return &types.Record{Kind: types.KindPost, Post: post}, nil

	case OpLike:
		var rec bsky.FeedLike
		if err := rec.UnmarshalCBOR(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("decode like: %w", err)
		}
		// cbor-gen does not enforce required fields; a hostile repo can
		// commit a like with a null subject.
		if rec.Subject == nil {
			return nil, fmt.Errorf("like %s: missing subject", recordCid)
		}
		created, err := parseCreatedAt(rec.CreatedAt)
		if err != nil {
			return nil, err
		}
		return &types.Record{Kind: types.KindLike, Like: &types.LikeEvent{
			CID:       recordCid,
			Author:    repo,
			Subject:   rec.Subject.Cid,
			CreatedAt: created,
		}}, nil

	case OpRepost:
		var rec bsky.FeedRepost
		if err := rec.UnmarshalCBOR(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("decode repost: %w", err)
		}
		if rec.Subject == nil {
			return nil, fmt.Errorf("repost %s: missing subject", recordCid)
		}
		created, err := parseCreatedAt(rec.CreatedAt)
		if err != nil {
			return nil, err
		}
		return &types.Record{Kind: types.KindRepost, Repost: &types.RepostEvent{
			CID:       recordCid,
			Author:    repo,
			Subject:   rec.Subject.Cid,
			CreatedAt: created,
		}}, nil

	case OpFollow:
		var rec bsky.GraphFollow
		if err := rec.UnmarshalCBOR(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("decode follow: %w", err)
		}
		created, err := parseCreatedAt(rec.CreatedAt)
		if err != nil {
			return nil, err
		}
		return &types.Record{Kind: types.KindFollow, Follow: &types.FollowEvent{
			CID:       recordCid,
			Author:    repo,
			Subject:   rec.Subject,
			CreatedAt: created,
		}}, nil

	case OpBlock:
		var rec bsky.GraphBlock
		if err := rec.UnmarshalCBOR(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("decode block: %w", err)
		}
		created, err := parseCreatedAt(rec.CreatedAt)
		if err != nil {
			return nil, err
		}
		return &types.Record{Kind: types.KindBlock, Block: &types.BlockEvent{
			CID:       recordCid,
			Author:    repo,
			Subject:   rec.Subject,
			CreatedAt: created,
		}}, nil

	case OpListItem:
		var rec bsky.GraphListitem
		if err := rec.UnmarshalCBOR(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("decode listitem: %w", err)
		}
		created, err := parseCreatedAt(rec.CreatedAt)
		if err != nil {
			return nil, err
		}
		return &types.Record{Kind: types.KindListItem, ListItem: &types.ListItemEvent{
			CID:       recordCid,
			Author:    repo,
			Subject:   rec.Subject,
			List:      rec.List,
			CreatedAt: created,
		}}, nil

	case OpProfile:
		var rec bsky.ActorProfile
		if err := rec.UnmarshalCBOR(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
		return &types.Record{Kind: types.KindProfile, Profile: projectProfile(repo, &rec)}, nil
	}

	return genericRecord(bm, repo, op)
}

// genericRecord carries an op without a typed projection. Record bytes
// are decoded through the generic DAG-CBOR path when present; a decode
// failure here drops the value, never the record.
func genericRecord(bm *BlockMap, repo string, op Operation) (*types.Record, error) {
	other := &types.UnknownRecord{
		Collection: op.Collection,
		Action:     op.Raw.Action,
		Path:       op.Raw.Path,
		Author:     repo,
	}
	if op.CID != nil {
		other.CID = op.CID.String()
		if raw, err := bm.Get(*op.CID); err == nil {
			if value, err := data.UnmarshalCBOR(raw); err == nil {
				other.Value = value
			}
		}
	}
	return &types.Record{Kind: types.KindOther, Other: other}, nil
}

// parseCreatedAt parses an RFC-3339 timestamp preserving the offset the
// author wrote. Records without a parseable timestamp are dropped.
func parseCreatedAt(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_at %q: %w", s, err)
	}
	return t, nil
}

func projectPost(repo, recordCid string, rec *bsky.FeedPost) (*types.Post, error) {
	created, err := parseCreatedAt(rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	post := &types.Post{
		ID:        recordCid,
		Author:    repo,
		CreatedAt: created,
		Text:      rec.Text,
		Language:  append([]string(nil), rec.Langs...),
		Tags:      append([]string(nil), rec.Tags...),
		Labels:    selfLabels(labelsOf(rec)),
		Embed:     projectEmbed(rec.Embed),
	}

	if rec.Reply != nil && rec.Reply.Parent != nil && rec.Reply.Root != nil {
		post.Reply = &types.ReplyRef{
			Parent: rec.Reply.Parent.Cid,
			Root:   rec.Reply.Root.Cid,
		}
	}
	return post, nil
}

func labelsOf(rec *bsky.FeedPost) *atproto.LabelDefs_SelfLabels {
	if rec.Labels == nil {
		return nil
	}
	return rec.Labels.LabelDefs_SelfLabels
}

// selfLabels flattens a self-label set to its values. Only self-applied
// labels ride on the record; moderation labels live elsewhere.
func selfLabels(labels *atproto.LabelDefs_SelfLabels) []string {
	if labels == nil {
		return nil
	}
	out := make([]string, 0, len(labels.Values))
	for _, l := range labels.Values {
		if l != nil {
			out = append(out, l.Val)
		}
	}
	return out
}

// projectEmbed normalizes the embed union. Variants without a typed
// projection map to EmbedUnknown; a bare video is one of those, but its
// media still surfaces through the flattened media list.
func projectEmbed(embed *bsky.FeedPost_Embed) *types.Embed {
	if embed == nil {
		return nil
	}

	switch {
	case embed.EmbedImages != nil:
		return &types.Embed{
			Kind:  types.EmbedImages,
			Media: projectImages(embed.EmbedImages),
		}

	case embed.EmbedExternal != nil && embed.EmbedExternal.External != nil:
		return &types.Embed{
			Kind:     types.EmbedExternal,
			External: projectExternal(embed.EmbedExternal.External),
		}

	case embed.EmbedRecord != nil && embed.EmbedRecord.Record != nil:
		return &types.Embed{
			Kind:   types.EmbedRecord,
			Record: embed.EmbedRecord.Record.Cid,
		}

	case embed.EmbedRecordWithMedia != nil:
		// Only the image and video arms have a typed projection; a
		// record-with-external (or empty) union is Unknown.
		media := embed.EmbedRecordWithMedia.Media
		var items []types.Media
		switch {
		case media != nil && media.EmbedImages != nil:
			items = projectImages(media.EmbedImages)
		case media != nil && media.EmbedVideo != nil:
			items = projectVideo(media.EmbedVideo)
		default:
			return &types.Embed{Kind: types.EmbedUnknown}
		}

		out := &types.Embed{Kind: types.EmbedRecordWithMedia, Media: items}
		if rec := embed.EmbedRecordWithMedia.Record; rec != nil && rec.Record != nil {
			out.Record = rec.Record.Cid
		}
		return out

	case embed.EmbedVideo != nil:
		return &types.Embed{
			Kind:  types.EmbedUnknown,
			Media: projectVideo(embed.EmbedVideo),
		}

	default:
		return &types.Embed{Kind: types.EmbedUnknown}
	}
}

func projectImages(images *bsky.EmbedImages) []types.Media {
	out := make([]types.Media, 0, len(images.Images))
	for _, img := range images.Images {
		if img == nil || img.Image == nil {
			continue
		}
		out = append(out, types.Media{
			Kind:        types.MediaImage,
			Alt:         img.Alt,
			Blob:        projectBlob(img.Image),
			AspectRatio: projectAspect(img.AspectRatio),
		})
	}
	return out
}

func projectVideo(video *bsky.EmbedVideo) []types.Media {
	if video.Video == nil {
		return nil
	}
	m := types.Media{
		Kind:        types.MediaVideo,
		Blob:        projectBlob(video.Video),
		AspectRatio: projectAspect(video.AspectRatio),
	}
	if video.Alt != nil {
		m.Alt = *video.Alt
	}
	return []types.Media{m}
}

func projectExternal(ext *bsky.EmbedExternal_External) *types.ExternalLink {
	out := &types.ExternalLink{
		URI:         ext.Uri,
		Title:       ext.Title,
		Description: ext.Description,
	}
	if ext.Thumb != nil {
		thumb := projectBlob(ext.Thumb)
		out.Thumb = &thumb
	}
	return out
}

func projectBlob(blob *lexutil.LexBlob) types.Blob {
	size := blob.Size
	return types.Blob{
		CID:      cid.Cid(blob.Ref).String(),
		MimeType: blob.MimeType,
		Size:     &size,
	}
}

func projectAspect(ar *bsky.EmbedDefs_AspectRatio) *types.AspectRatio {
	if ar == nil {
		return nil
	}
	return &types.AspectRatio{Width: ar.Width, Height: ar.Height}
}

func projectProfile(repo string, rec *bsky.ActorProfile) *types.Profile {
	p := &types.Profile{
		DID:         repo,
		DisplayName: rec.DisplayName,
		Description: rec.Description,
	}
	if rec.Avatar != nil {
		avatar := projectBlob(rec.Avatar)
		p.Avatar = &avatar
	}
	if rec.Banner != nil {
		banner := projectBlob(rec.Banner)
		p.Banner = &banner
	}
	if rec.Labels != nil {
		p.Labels = selfLabels(rec.Labels.LabelDefs_SelfLabels)
	}
	if rec.PinnedPost != nil {
		pinned := rec.PinnedPost.Cid
		p.PinnedPost = &pinned
	}
	if rec.CreatedAt != nil {
		if t, err := time.Parse(time.RFC3339, *rec.CreatedAt); err == nil {
			p.CreatedAt = &t
		}
	}
	return p
}
