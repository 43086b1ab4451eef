// Package manager is the public surface of the offline download subsystem.
// The UI layer calls nothing else: requests come in here, state snapshots go
// out. The manager owns id derivation, playlist expansion and backing-file
// lifecycle; queue mechanics live in the scheduler.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tunecache/internal/catalog"
	"tunecache/internal/scheduler"
	"tunecache/internal/storage"
	"tunecache/internal/store"
	"tunecache/internal/transfer"
	"tunecache/pkg/models"
)

// ValidationError reports a bad or unresolvable download request. It is
// returned synchronously; transfer failures are surfaced via snapshots.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// State is a consistent point-in-time view for the UI to render
type State struct {
	Items           []*models.ContentItem   `json:"items"`
	ActiveTransfers []models.ActiveTransfer `json:"active_transfers"`
	Storage         models.StorageSnapshot  `json:"storage"`
	Recovered       bool                    `json:"recovered,omitempty"`
	Warning         string                  `json:"warning,omitempty"`
}

// Manager combines the store, scheduler, accountant and catalog resolver
type Manager struct {
	store         *store.Store
	sched         *scheduler.Scheduler
	accountant    *storage.Accountant
	resolver      catalog.Resolver
	downloadsPath string
	expiry        time.Duration
	logger        *slog.Logger

	mu          sync.Mutex
	lastWarning string
}

// New creates the manager facade. expiry > 0 stamps new items with an
// expiresAt; expired items are only flagged, never auto-deleted here.
func New(st *store.Store, sched *scheduler.Scheduler, accountant *storage.Accountant, resolver catalog.Resolver, downloadsPath string, expiry time.Duration) *Manager {
	return &Manager{
		store:         st,
		sched:         sched,
		accountant:    accountant,
		resolver:      resolver,
		downloadsPath: downloadsPath,
		expiry:        expiry,
		logger:        slog.Default(),
	}
}

// RequestDownload makes the referenced content available offline and
// returns its item id. Requesting content that is already present in any
// non-Failed, non-Cancelled state returns the existing id unchanged.
func (m *Manager) RequestDownload(ctx context.Context, contentType models.ContentType, ref string) (string, error) {
	if ref == "" {
		return "", &ValidationError{Reason: "content reference is required"}
	}

	switch contentType {
	case models.TypeSong:
		return m.requestSong(ctx, ref)
	case models.TypePlaylist:
		return m.requestPlaylist(ctx, ref)
	default:
		return "", &ValidationError{Reason: fmt.Sprintf("unknown content type %q", contentType)}
	}
}

func (m *Manager) requestSong(ctx context.Context, ref string) (string, error) {
	id := models.SongID(ref)
	if existing, ok := m.store.Get(id); ok && !isRetriable(existing.Status) {
		m.logger.Info("Download request deduplicated", "id", id, "status", existing.Status)
		return id, nil
	}

	song, err := m.resolver.ResolveSong(ctx, ref)
	if err != nil {
		return "", &ValidationError{Reason: fmt.Sprintf("cannot resolve song %q: %v", ref, err)}
	}

	if err := m.checkSpace(song.SizeBytes); err != nil {
		return "", err
	}

	m.sched.Admit(m.newSongItem(id, ref, song))
	return id, nil
}

func (m *Manager) requestPlaylist(ctx context.Context, ref string) (string, error) {
	id := models.PlaylistID(ref)
	if existing, ok := m.store.Get(id); ok && !isRetriable(existing.Status) {
		m.logger.Info("Download request deduplicated", "id", id, "status", existing.Status)
		return id, nil
	}

	playlist, err := m.resolver.ResolvePlaylist(ctx, ref)
	if err != nil {
		return "", &ValidationError{Reason: fmt.Sprintf("cannot resolve playlist %q: %v", ref, err)}
	}

	// Enqueue constituent songs that aren't already offline or queued
	trackIDs := make([]string, 0, len(playlist.Songs))
	enqueued := 0
	for i := range playlist.Songs {
		song := &playlist.Songs[i]
		songID := models.SongID(song.SourceRef)
		trackIDs = append(trackIDs, songID)

		if existing, ok := m.store.Get(songID); ok && !isRetriable(existing.Status) {
			continue
		}

		m.sched.Admit(m.newSongItem(songID, song.SourceRef, song))
		enqueued++
	}

	// The playlist itself is a bookkeeping record: it completes as soon as
	// its songs are issued, and the songs progress independently.
	now := time.Now()
	aggregate := &models.ContentItem{
		ID:          id,
		Type:        models.TypePlaylist,
		Title:       playlist.Title,
		Artist:      playlist.Creator,
		SourceRef:   ref,
		Status:      models.StatusCompleted,
		Progress:    1.0,
		TrackIDs:    trackIDs,
		RequestedAt: now,
		CompletedAt: &now,
		ExpiresAt:   m.expiresAt(now),
	}
	m.sched.Record(aggregate)

	m.logger.Info("Playlist expanded",
		"id", id,
		"songs", len(playlist.Songs),
		"enqueued", enqueued)
	return id, nil
}

func (m *Manager) newSongItem(id, ref string, song *catalog.Song) *models.ContentItem {
	now := time.Now()
	return &models.ContentItem{
		ID:          id,
		Type:        models.TypeSong,
		Title:       song.Title,
		Artist:      song.Artist,
		SourceRef:   ref,
		SourceURL:   song.StreamURL,
		FilePath:    filepath.Join(m.downloadsPath, id+".mp3"),
		RequestedAt: now,
		ExpiresAt:   m.expiresAt(now),
	}
}

func (m *Manager) expiresAt(now time.Time) *time.Time {
	if m.expiry <= 0 {
		return nil
	}
	expires := now.Add(m.expiry)
	return &expires
}

// checkSpace rejects a request that clearly cannot fit. Unknown free space
// is not treated as no space.
func (m *Manager) checkSpace(sizeBytes int64) error {
	if sizeBytes <= 0 {
		return nil
	}

	snapshot := m.accountant.Snapshot()
	if snapshot.AvailableBytes != models.AvailableUnknown && sizeBytes > snapshot.AvailableBytes {
		return &ValidationError{Reason: fmt.Sprintf(
			"insufficient storage: need %d bytes, %d available", sizeBytes, snapshot.AvailableBytes)}
	}
	return nil
}

func isRetriable(status models.ContentStatus) bool {
	return status == models.StatusFailed || status == models.StatusCancelled
}

// Pause suspends a pending or active download
func (m *Manager) Pause(id string) error {
	return m.sched.Pause(id)
}

// Resume re-queues a paused download, or retries a failed one
func (m *Manager) Resume(id string) error {
	return m.sched.Resume(id)
}

// Cancel terminates a download and releases any partial file
func (m *Manager) Cancel(id string) error {
	item, ok := m.store.Get(id)
	if err := m.sched.Cancel(id); err != nil {
		return err
	}
	if ok && item.FilePath != "" {
		m.removeFile(transfer.PartFilePath(item.FilePath))
	}
	return nil
}

// Delete removes the backing file and then the metadata record. Metadata is
// authoritative over file presence: a file-removal failure demotes to a
// warning and the record is removed regardless. Deleting a missing id is a
// no-op.
func (m *Manager) Delete(id string) error {
	filePath, err := m.sched.Remove(id)
	if err != nil {
		m.warn(fmt.Sprintf("metadata delete for %s: %v", id, err))
	}
	if filePath != "" {
		m.removeFile(filePath)
		m.removeFile(transfer.PartFilePath(filePath))
	}
	return nil
}

// ClearAll removes every offline item and its backing files
func (m *Manager) ClearAll() error {
	paths, err := m.sched.RemoveAll()
	if err != nil {
		m.warn(fmt.Sprintf("metadata clear: %v", err))
	}
	for _, path := range paths {
		m.removeFile(path)
		m.removeFile(transfer.PartFilePath(path))
	}
	m.logger.Info("Offline content cleared", "files", len(paths))
	return nil
}

// MarkPlayed records a playback event; called by the playback collaborator
func (m *Manager) MarkPlayed(id string) error {
	if _, ok := m.store.Get(id); !ok {
		return scheduler.ErrNotFound
	}
	return m.store.MarkPlayed(id, time.Now())
}

// CurrentState returns one consistent read of items, in-flight transfers
// and storage usage. Items and transfers are captured under the scheduler's
// lock, so no partial transition is ever visible.
func (m *Manager) CurrentState() State {
	items, transfers := m.sched.Snapshot()

	state := State{
		Items:           items,
		ActiveTransfers: transfers,
		Storage:         m.accountant.SnapshotOf(items),
		Recovered:       m.store.Recovered(),
	}

	m.mu.Lock()
	warning := m.lastWarning
	m.mu.Unlock()
	if warning == "" {
		if err := m.store.LastPersistError(); err != nil {
			warning = err.Error()
		}
	}
	state.Warning = warning

	return state
}

func (m *Manager) removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("Failed to remove backing file", "path", path, "error", err)
		m.warn(fmt.Sprintf("could not remove %s: %v", path, err))
	}
}

func (m *Manager) warn(message string) {
	m.mu.Lock()
	m.lastWarning = message
	m.mu.Unlock()
}
