// Package storage computes offline storage usage from the metadata store
package storage

import (
	"log/slog"

	"tunecache/internal/store"
	"tunecache/pkg/models"

	"golang.org/x/sys/unix"
)

// FreeSpaceFunc queries the device for available bytes at a path
type FreeSpaceFunc func(path string) (int64, error)

// Accountant derives storage snapshots. It holds no mutable state of its
// own: two calls with no intervening store mutation yield identical results
// (up to device free space).
type Accountant struct {
	store         *store.Store
	downloadsPath string
	freeSpace     FreeSpaceFunc
	logger        *slog.Logger
}

// New creates an accountant over the given store and downloads directory
func New(st *store.Store, downloadsPath string) *Accountant {
	return &Accountant{
		store:         st,
		downloadsPath: downloadsPath,
		freeSpace:     deviceFreeSpace,
		logger:        slog.Default(),
	}
}

// Snapshot sums completed file sizes and counts items by type. A failed
// device query reports AvailableBytes as models.AvailableUnknown, never zero.
func (a *Accountant) Snapshot() models.StorageSnapshot {
	return a.SnapshotOf(a.store.List(store.Filter{}))
}

// SnapshotOf computes the snapshot from an already-read item list, so a
// caller holding a consistent view doesn't re-read the store.
func (a *Accountant) SnapshotOf(items []*models.ContentItem) models.StorageSnapshot {
	snapshot := models.StorageSnapshot{}

	for _, item := range items {
		if item.Status != models.StatusCompleted {
			continue
		}

		snapshot.CompletedCount++
		snapshot.UsedBytes += item.FileSizeBytes

		switch item.Type {
		case models.TypeSong:
			snapshot.SongCount++
		case models.TypePlaylist:
			snapshot.PlaylistCount++
		}
	}

	available, err := a.freeSpace(a.downloadsPath)
	if err != nil {
		a.logger.Warn("Device free-space query failed", "path", a.downloadsPath, "error", err)
		snapshot.AvailableBytes = models.AvailableUnknown
	} else {
		snapshot.AvailableBytes = available
	}

	return snapshot
}

// deviceFreeSpace reports the bytes available to an unprivileged caller on
// the filesystem containing path.
func deviceFreeSpace(path string) (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}
