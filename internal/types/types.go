// Package types defines the sink-agnostic domain model produced by the
// firehose decoder: posts, graph events, profiles and the media/embed
// structures they carry. Every exporter consumes these types; nothing in
// here depends on a particular storage backend.
package types

import (
	"time"
)

// RecordKind discriminates the Record union.
type RecordKind string

const (
	KindPost     RecordKind = "post"
	KindLike     RecordKind = "like"
	KindFollow   RecordKind = "follow"
	KindBlock    RecordKind = "block"
	KindRepost   RecordKind = "repost"
	KindListItem RecordKind = "list_item"
	KindProfile  RecordKind = "profile"
	KindOther    RecordKind = "other"
)

// Record is a single decoded repository event. Exactly one of the typed
// fields is non-nil, selected by Kind.
type Record struct {
	Kind     RecordKind
	Post     *Post
	Like     *LikeEvent
	Follow   *FollowEvent
	Block    *BlockEvent
	Repost   *RepostEvent
	ListItem *ListItemEvent
	Profile  *Profile
	Other    *UnknownRecord
}

// Post is the projection of an app.bsky.feed.post record.
type Post struct {
	// ID is the record CID in canonical string form. It identifies the
	// post content, not its at:// URI.
	ID string `json:"id"`

	// Author is the DID of the repository the post was committed to.
	Author string `json:"author"`

	// CreatedAt preserves the timezone offset the author wrote.
	CreatedAt time.Time `json:"created_at"`

	Text     string    `json:"text"`
	Language []string  `json:"language"`
	Reply    *ReplyRef `json:"reply,omitempty"`
	Tags     []string  `json:"tags"`
	Labels   []string  `json:"labels"`
	Embed    *Embed    `json:"embed,omitempty"`
}

// ReplyRef points at the parent and thread root of a reply, by record CID.
type ReplyRef struct {
	Parent string `json:"reply_parent"`
	Root   string `json:"reply_root"`
}

// MediaList flattens whatever media the post embeds into a single slice.
// Quote-only embeds and external links contribute nothing.
func (p *Post) MediaList() []Media {
	if p.Embed == nil {
		return nil
	}
	return p.Embed.Media
}

// EmbedKind discriminates the Embed union.
type EmbedKind string

const (
	EmbedImages          EmbedKind = "images"
	EmbedExternal        EmbedKind = "external"
	EmbedRecord          EmbedKind = "record"
	EmbedRecordWithMedia EmbedKind = "record_with_media"
	EmbedUnknown         EmbedKind = "unknown"
)

// Embed is the single embed a post may carry. Record holds the quoted
// post's CID for the record variants; Media holds the flattened media
// items for every variant that carries any (including unknown variants
// whose media could still be extracted).
type Embed struct {
	Kind     EmbedKind     `json:"kind"`
	Media    []Media       `json:"media,omitempty"`
	External *ExternalLink `json:"external,omitempty"`
	Record   string        `json:"record,omitempty"`
}

// ExternalLink is an external URL card.
type ExternalLink struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Thumb       *Blob  `json:"thumb,omitempty"`
}

// MediaKind discriminates the Media union.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Media is one image or video attached to a post.
type Media struct {
	Kind        MediaKind    `json:"kind"`
	Alt         string       `json:"alt,omitempty"`
	Blob        Blob         `json:"blob"`
	AspectRatio *AspectRatio `json:"aspect_ratio,omitempty"`
}

// AspectRatio is the width:height hint carried by image and video embeds.
type AspectRatio struct {
	Width  int64 `json:"width"`
	Height int64 `json:"height"`
}

// Blob references a piece of content-addressed media.
type Blob struct {
	CID      string `json:"cid"`
	MimeType string `json:"mime_type"`
	// Size is nil when the source (e.g. a CDN URL) does not carry one.
	Size *int64 `json:"size,omitempty"`
}

// LikeEvent is the projection of an app.bsky.feed.like record.
type LikeEvent struct {
	CID       string    `json:"cid"`
	Author    string    `json:"author"`
	Subject   string    `json:"subject"` // liked post CID
	CreatedAt time.Time `json:"created_at"`
}

// RepostEvent is the projection of an app.bsky.feed.repost record.
type RepostEvent struct {
	CID       string    `json:"cid"`
	Author    string    `json:"author"`
	Subject   string    `json:"subject"` // reposted post CID
	CreatedAt time.Time `json:"created_at"`
}

// FollowEvent is the projection of an app.bsky.graph.follow record.
type FollowEvent struct {
	CID       string    `json:"cid"`
	Author    string    `json:"author"`
	Subject   string    `json:"subject"` // followed DID
	CreatedAt time.Time `json:"created_at"`
}

// BlockEvent is the projection of an app.bsky.graph.block record.
type BlockEvent struct {
	CID       string    `json:"cid"`
	Author    string    `json:"author"`
	Subject   string    `json:"subject"` // blocked DID
	CreatedAt time.Time `json:"created_at"`
}

// ListItemEvent is the projection of an app.bsky.graph.listitem record.
type ListItemEvent struct {
	CID       string    `json:"cid"`
	Author    string    `json:"author"`
	Subject   string    `json:"subject"` // member DID
	List      string    `json:"list"`    // list at:// URI
	CreatedAt time.Time `json:"created_at"`
}

// Profile is the projection of an app.bsky.actor.profile record.
type Profile struct {
	DID         string     `json:"did"`
	DisplayName *string    `json:"display_name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Avatar      *Blob      `json:"avatar,omitempty"`
	Banner      *Blob      `json:"banner,omitempty"`
	Labels      []string   `json:"labels"`
	PinnedPost  *string    `json:"pinned_post,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// UnknownRecord carries operations the decoder has no typed projection
// for: unrecognized collections, plus update and delete actions. Value is
// the generic DAG-CBOR decode of the record when its bytes were present
// in the commit, nil otherwise (always nil for deletes).
type UnknownRecord struct {
	Collection string         `json:"collection"`
	Action     string         `json:"action"`
	Path       string         `json:"path"`
	Author     string         `json:"author"`
	CID        string         `json:"cid,omitempty"`
	Value      map[string]any `json:"value,omitempty"`
}

// User is the full profile view fetched from the public AppView API,
// as opposed to Profile which only holds what the repo record carries.
type User struct {
	DID         string     `json:"did"`
	Handle      string     `json:"handle"`
	DisplayName *string    `json:"display_name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Avatar      *Blob      `json:"avatar,omitempty"`
	Banner      *Blob      `json:"banner,omitempty"`
	Labels      []string   `json:"labels"`
	Followers   *int64     `json:"followers,omitempty"`
	Following   *int64     `json:"following,omitempty"`
	Posts       *int64     `json:"posts,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	IndexedAt   *time.Time `json:"indexed_at,omitempty"`
}
