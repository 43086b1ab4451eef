package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestContentItem_IsTerminal(t *testing.T) {
	tests := []struct {
		status ContentStatus
		want   bool
	}{
		{StatusPending, false},
		{StatusDownloading, false},
		{StatusPaused, false},
		{StatusCompleted, true},
		{StatusFailed, false},
		{StatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			item := &ContentItem{Status: tt.status}
			require.Equal(t, tt.want, item.IsTerminal())
		})
	}
}

func TestContentItem_IsExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	require.False(t, (&ContentItem{}).IsExpired(now))
	require.False(t, (&ContentItem{ExpiresAt: &future}).IsExpired(now))
	require.True(t, (&ContentItem{ExpiresAt: &past}).IsExpired(now))
}

func TestContentItem_Clone(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	original := &ContentItem{
		ID:        "song_1",
		TrackIDs:  []string{"a", "b"},
		ExpiresAt: &expires,
	}

	clone := original.Clone()
	clone.TrackIDs[0] = "mutated"
	*clone.ExpiresAt = clone.ExpiresAt.Add(time.Hour)

	require.Equal(t, "a", original.TrackIDs[0])
	require.True(t, original.ExpiresAt.Equal(expires))
}

func TestIDDerivation(t *testing.T) {
	require.Equal(t, "song_abc", SongID("abc"))
	require.Equal(t, "playlist_xyz", PlaylistID("xyz"))
}
