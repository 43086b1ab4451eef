// Package models defines the data structures used throughout the application
package models

import (
	"fmt"
	"time"
)

// ContentType distinguishes downloadable units
type ContentType string

const (
	TypeSong     ContentType = "song"
	TypePlaylist ContentType = "playlist"
)

// ContentStatus represents the lifecycle state of a content item
type ContentStatus string

const (
	StatusPending     ContentStatus = "pending"
	StatusDownloading ContentStatus = "downloading"
	StatusPaused      ContentStatus = "paused"
	StatusCompleted   ContentStatus = "completed"
	StatusFailed      ContentStatus = "failed"
	StatusCancelled   ContentStatus = "cancelled"
)

// AvailableUnknown is reported for StorageSnapshot.AvailableBytes when the
// device free-space query fails. Callers must not treat it as "no space".
const AvailableUnknown int64 = -1

// ContentItem is one downloadable unit (a song, or a playlist aggregate
// owning a set of derived song item ids).
type ContentItem struct {
	ID            string        `json:"id" db:"id"`
	Type          ContentType   `json:"type" db:"type"`
	Title         string        `json:"title" db:"title"`
	Artist        string        `json:"artist" db:"artist"`
	SourceRef     string        `json:"source_ref" db:"source_ref"`
	SourceURL     string        `json:"-" db:"source_url"`
	FilePath      string        `json:"file_path" db:"file_path"`
	FileSizeBytes int64         `json:"file_size_bytes" db:"file_size_bytes"`
	Status        ContentStatus `json:"status" db:"status"`
	Progress      float64       `json:"progress" db:"progress"`
	ErrorMessage  string        `json:"error_message,omitempty" db:"error_message"`
	TrackIDs      []string      `json:"track_ids,omitempty" db:"track_ids"`
	RequestedAt   time.Time     `json:"requested_at" db:"requested_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
	LastPlayedAt  *time.Time    `json:"last_played_at,omitempty" db:"last_played_at"`
	PlayCount     int           `json:"play_count" db:"play_count"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty" db:"expires_at"`
}

// IsTerminal reports whether the item can no longer change state on its own
func (c *ContentItem) IsTerminal() bool {
	return c.Status == StatusCompleted || c.Status == StatusCancelled
}

// IsExpired reports whether the item's expiry has elapsed. Expired items are
// not deleted by the manager itself; that policy belongs to the reaper.
func (c *ContentItem) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// Clone returns a deep copy so store callers never alias internal state
func (c *ContentItem) Clone() *ContentItem {
	clone := *c
	if c.TrackIDs != nil {
		clone.TrackIDs = append([]string(nil), c.TrackIDs...)
	}
	clone.CompletedAt = cloneTime(c.CompletedAt)
	clone.LastPlayedAt = cloneTime(c.LastPlayedAt)
	clone.ExpiresAt = cloneTime(c.ExpiresAt)
	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}

// SongID derives the stable item id for a song source reference
func SongID(sourceRef string) string {
	return fmt.Sprintf("song_%s", sourceRef)
}

// PlaylistID derives the stable item id for a playlist source reference
func PlaylistID(sourceRef string) string {
	return fmt.Sprintf("playlist_%s", sourceRef)
}

// ActiveTransfer describes one in-flight worker transfer. It exists only
// between dispatch and the terminal callback and is never persisted.
type ActiveTransfer struct {
	ID              string    `json:"id"`
	TransferID      string    `json:"transfer_id"`
	BytesDownloaded int64     `json:"bytes_downloaded"`
	TotalBytes      int64     `json:"total_bytes"`
	BytesPerSecond  float64   `json:"bytes_per_second"`
	StartedAt       time.Time `json:"started_at"`
}

// StorageSnapshot is a derived view of offline storage usage, recomputed on
// demand from the metadata store contents.
type StorageSnapshot struct {
	UsedBytes      int64 `json:"used_bytes"`
	AvailableBytes int64 `json:"available_bytes"`
	CompletedCount int   `json:"completed_count"`
	SongCount      int   `json:"song_count"`
	PlaylistCount  int   `json:"playlist_count"`
}
