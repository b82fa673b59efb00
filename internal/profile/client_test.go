package profile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "did:plc:alice", r.URL.Query().Get("actor"))
		json.NewEncoder(w).Encode(map[string]any{
			"did":            "did:plc:alice",
			"handle":         "alice.example.com",
			"displayName":    "Alice",
			"avatar":         "https://cdn.bsky.app/img/avatar/plain/did:plc:alice/bafyavatar@jpeg",
			"followersCount": 10,
			"followsCount":   20,
			"postsCount":     30,
			"createdAt":      "2023-01-15T08:00:00Z",
			"labels":         []map[string]string{{"val": "spam"}},
		})
	}))
	defer srv.Close()

	user, err := FetchProfile(context.Background(), srv.URL, "did:plc:alice")
	require.NoError(t, err)
	require.Equal(t, "did:plc:alice", user.DID)
	require.Equal(t, "alice.example.com", user.Handle)
	require.NotNil(t, user.DisplayName)
	require.Equal(t, "Alice", *user.DisplayName)
	require.NotNil(t, user.Avatar)
	require.Equal(t, "bafyavatar", user.Avatar.CID)
	require.Equal(t, "image/jpeg", user.Avatar.MimeType)
	require.EqualValues(t, 10, *user.Followers)
	require.EqualValues(t, 20, *user.Following)
	require.EqualValues(t, 30, *user.Posts)
	require.Equal(t, []string{"spam"}, user.Labels)
	require.NotNil(t, user.CreatedAt)
}

func TestFetchProfileHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"InvalidRequest"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := FetchProfile(context.Background(), srv.URL, "did:plc:missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 400")
}
