// Package profile resolves DIDs to full user profiles through the
// public AppView API, with an in-process TTL cache in front of it.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/primal-host/skystream/internal/types"
)

// DefaultEndpoint is the unauthenticated AppView profile endpoint.
const DefaultEndpoint = "https://public.api.bsky.app/xrpc/app.bsky.actor.getProfile"

// profileView mirrors the app.bsky.actor.defs#profileViewDetailed JSON.
type profileView struct {
	Did            string  `json:"did"`
	Handle         string  `json:"handle"`
	DisplayName    *string `json:"displayName"`
	Description    *string `json:"description"`
	Avatar         *string `json:"avatar"`
	Banner         *string `json:"banner"`
	FollowersCount *int64  `json:"followersCount"`
	FollowsCount   *int64  `json:"followsCount"`
	PostsCount     *int64  `json:"postsCount"`
	IndexedAt      *string `json:"indexedAt"`
	CreatedAt      *string `json:"createdAt"`
	Labels         []struct {
		Val string `json:"val"`
	} `json:"labels"`
}

// FetchProfile retrieves the profile view for a DID from the AppView
// and projects it into the domain User.
func FetchProfile(ctx context.Context, endpoint, did string) (*types.User, error) {
	reqURL := endpoint + "?actor=" + url.QueryEscape(did)
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("profile: create request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile: GET %s: %w", reqURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("profile: fetch %s: status %d: %s", did, resp.StatusCode, body)
	}

	var view profileView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, fmt.Errorf("profile: decode %s: %w", did, err)
	}

	return projectUser(&view), nil
}

func projectUser(view *profileView) *types.User {
	user := &types.User{
		DID:         view.Did,
		Handle:      view.Handle,
		DisplayName: view.DisplayName,
		Description: view.Description,
		Followers:   view.FollowersCount,
		Following:   view.FollowsCount,
		Posts:       view.PostsCount,
	}

	for _, l := range view.Labels {
		user.Labels = append(user.Labels, l.Val)
	}

	if view.Avatar != nil {
		if blob, err := types.ParseImageURL(*view.Avatar); err == nil {
			user.Avatar = blob
		} else {
			log.Printf("Warning: unparseable avatar url for %s: %v", view.Did, err)
		}
	}
	if view.Banner != nil {
		if blob, err := types.ParseImageURL(*view.Banner); err == nil {
			user.Banner = blob
		} else {
			log.Printf("Warning: unparseable banner url for %s: %v", view.Did, err)
		}
	}

	if view.CreatedAt != nil {
		if t, err := time.Parse(time.RFC3339, *view.CreatedAt); err == nil {
			user.CreatedAt = &t
		}
	}
	if view.IndexedAt != nil {
		if t, err := time.Parse(time.RFC3339, *view.IndexedAt); err == nil {
			user.IndexedAt = &t
		}
	}

	return user
}
