package types

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseImageURL extracts a Blob from a CDN image URL of the shape
//
//	https://cdn.example/img/avatar/plain/<did>/<cid>@<ext>
//
// The final path segment carries the blob CID and the served format; the
// MIME type is derived as image/<ext>. Size is unknown for CDN blobs.
func ParseImageURL(raw string) (*Blob, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("types: parse image url %q: %w", raw, err)
	}

	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segs[len(segs)-1]
	if last == "" {
		return nil, fmt.Errorf("types: image url %q has no path", raw)
	}

	cidPart, ext, ok := strings.Cut(last, "@")
	if !ok || cidPart == "" || ext == "" {
		return nil, fmt.Errorf("types: image url %q: expected <cid>@<ext> segment", raw)
	}

	return &Blob{
		CID:      cidPart,
		MimeType: "image/" + ext,
	}, nil
}
