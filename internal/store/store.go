// Package store provides the durable metadata record for offline content.
// It is the single source of truth: an in-memory map serves reads, and every
// mutation is written through to SQLite before the call returns.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"tunecache/pkg/models"

	_ "modernc.org/sqlite"
)

// PersistenceError reports a metadata write or read that could not reach
// disk. The in-memory mutation it wraps has still been applied.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Type     models.ContentType
	Statuses []models.ContentStatus
}

// Store wraps the SQLite connection and the in-memory item map
type Store struct {
	conn   *sql.DB
	logger *slog.Logger

	mu             sync.RWMutex
	items          map[string]*models.ContentItem
	recovered      bool
	lastPersistErr error
}

// New opens the database at dbPath, initializes the schema and loads all
// items into memory. A corrupt or unreadable database starts the store empty
// rather than failing the app; Recovered reports when that happened.
func New(dbPath string) (*Store, error) {
	conn, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{
		conn:   conn,
		logger: slog.Default(),
		items:  make(map[string]*models.ContentItem),
	}

	if err := s.initSchema(); err != nil {
		conn.Close()

		// A corrupt database starts the store empty instead of failing the
		// app. The bad file is kept aside for inspection.
		if dbPath == ":memory:" {
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
		s.logger.Warn("Database unusable, moving aside and starting empty", "path", dbPath, "error", err)
		if renameErr := os.Rename(dbPath, dbPath+".corrupt"); renameErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}

		conn, err = open(dbPath)
		if err != nil {
			return nil, err
		}
		s.conn = conn
		s.recovered = true

		if err := s.initSchema(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
		return s, nil
	}

	if err := s.loadAll(); err != nil {
		s.logger.Warn("Metadata load failed, starting with empty store", "error", err)
		s.items = make(map[string]*models.ContentItem)
		s.recovered = true

		// Recovered-empty must be empty on disk as well, or the unreadable
		// rows resurrect on the next restart.
		if _, clearErr := s.conn.Exec("DELETE FROM content_items"); clearErr != nil {
			s.logger.Warn("Failed to clear unreadable rows, moving database aside", "error", clearErr)
			s.conn.Close()
			if renameErr := os.Rename(dbPath, dbPath+".corrupt"); renameErr != nil {
				return nil, fmt.Errorf("failed to reset unreadable database: %w", clearErr)
			}
			conn, err = open(dbPath)
			if err != nil {
				return nil, err
			}
			s.conn = conn
			if err := s.initSchema(); err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to initialize schema: %w", err)
			}
		}
	}

	return s, nil
}

func open(dbPath string) (*sql.DB, error) {
	// Connection parameters help with concurrent access
	connString := dbPath
	if dbPath != ":memory:" {
		connString = dbPath + "?_busy_timeout=30000&_journal_mode=WAL&_synchronous=NORMAL"
	}

	conn, err := sql.Open("sqlite", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't handle concurrent writes well
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	return conn, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// Recovered reports whether the persisted metadata could not be read at
// startup and the store began empty.
func (s *Store) Recovered() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recovered
}

// LastPersistError returns the most recent write-through failure, or nil if
// the last write succeeded.
func (s *Store) LastPersistError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPersistErr
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS content_items (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		artist TEXT NOT NULL DEFAULT '',
		source_ref TEXT NOT NULL DEFAULT '',
		source_url TEXT NOT NULL DEFAULT '',
		file_path TEXT NOT NULL DEFAULT '',
		file_size_bytes INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		progress REAL NOT NULL DEFAULT 0.0,
		error_message TEXT NOT NULL DEFAULT '',
		track_ids TEXT NOT NULL DEFAULT '',
		requested_at DATETIME NOT NULL,
		completed_at DATETIME,
		last_played_at DATETIME,
		play_count INTEGER NOT NULL DEFAULT 0,
		expires_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_content_items_status ON content_items(status);
	CREATE INDEX IF NOT EXISTS idx_content_items_type ON content_items(type);
	`

	_, err := s.conn.Exec(schema)
	return err
}

// loadAll reads every persisted item into the in-memory map
func (s *Store) loadAll() error {
	query := `
	SELECT id, type, title, artist, source_ref, source_url, file_path,
		   file_size_bytes, status, progress, error_message, track_ids,
		   requested_at, completed_at, last_played_at, play_count, expires_at
	FROM content_items
	`

	rows, err := s.conn.Query(query)
	if err != nil {
		return fmt.Errorf("failed to read content items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return fmt.Errorf("failed to scan content item: %w", err)
		}
		s.items[item.ID] = item
	}

	return rows.Err()
}

func scanItem(rows *sql.Rows) (*models.ContentItem, error) {
	var item models.ContentItem
	var trackIDs sql.NullString
	var errorMessage sql.NullString

	err := rows.Scan(
		&item.ID, &item.Type, &item.Title, &item.Artist, &item.SourceRef,
		&item.SourceURL, &item.FilePath, &item.FileSizeBytes, &item.Status,
		&item.Progress, &errorMessage, &trackIDs, &item.RequestedAt,
		&item.CompletedAt, &item.LastPlayedAt, &item.PlayCount, &item.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	item.ErrorMessage = errorMessage.String
	if trackIDs.Valid && trackIDs.String != "" {
		if err := json.Unmarshal([]byte(trackIDs.String), &item.TrackIDs); err != nil {
			// Unknown or malformed field data defaults safely
			item.TrackIDs = nil
		}
	}

	return &item, nil
}

// Upsert inserts or replaces the item by id. The in-memory map is updated
// first and the row is written through to SQLite before returning; a failed
// write is retried once. On repeated failure the in-memory mutation stands
// and a PersistenceError is returned so callers can surface the warning.
func (s *Store) Upsert(item *models.ContentItem) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("content item must have an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[item.ID] = item.Clone()
	return s.writeThrough("upsert", func() error { return s.execUpsert(item) })
}

func (s *Store) execUpsert(item *models.ContentItem) error {
	var trackIDs string
	if len(item.TrackIDs) > 0 {
		encoded, err := json.Marshal(item.TrackIDs)
		if err != nil {
			return fmt.Errorf("failed to encode track ids: %w", err)
		}
		trackIDs = string(encoded)
	}

	query := `
	INSERT OR REPLACE INTO content_items (
		id, type, title, artist, source_ref, source_url, file_path,
		file_size_bytes, status, progress, error_message, track_ids,
		requested_at, completed_at, last_played_at, play_count, expires_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.conn.Exec(query,
		item.ID, item.Type, item.Title, item.Artist, item.SourceRef,
		item.SourceURL, item.FilePath, item.FileSizeBytes, item.Status,
		item.Progress, item.ErrorMessage, trackIDs, item.RequestedAt,
		item.CompletedAt, item.LastPlayedAt, item.PlayCount, item.ExpiresAt,
	)
	return err
}

// writeThrough runs exec with a single immediate retry and records the
// outcome for snapshot warnings. Callers hold s.mu.
func (s *Store) writeThrough(op string, exec func() error) error {
	err := exec()
	if err != nil {
		s.logger.Warn("Metadata write failed, retrying once", "op", op, "error", err)
		err = exec()
	}

	if err != nil {
		s.lastPersistErr = &PersistenceError{Op: op, Err: err}
		s.logger.Error("Metadata write failed after retry, keeping in-memory state", "op", op, "error", err)
		return s.lastPersistErr
	}

	s.lastPersistErr = nil
	return nil
}

// Get retrieves a content item by id
func (s *Store) Get(id string) (*models.ContentItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, false
	}
	return item.Clone(), true
}

// List returns items matching the filter, ordered by request time (oldest
// first, id as tiebreaker).
func (s *Store) List(filter Filter) []*models.ContentItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []*models.ContentItem
	for _, item := range s.items {
		if filter.Type != "" && item.Type != filter.Type {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, item.Status) {
			continue
		}
		items = append(items, item.Clone())
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].RequestedAt.Equal(items[j].RequestedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].RequestedAt.Before(items[j].RequestedAt)
	})

	return items
}

func containsStatus(statuses []models.ContentStatus, status models.ContentStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// Delete removes the record and returns the prior file path so the caller
// can release the backing file. Deleting a missing id is a no-op.
func (s *Store) Delete(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return "", nil
	}

	filePath := item.FilePath
	delete(s.items, id)

	err := s.writeThrough("delete", func() error {
		_, execErr := s.conn.Exec("DELETE FROM content_items WHERE id = ?", id)
		return execErr
	})

	return filePath, err
}

// Clear removes every record and returns the file paths that were backing
// completed items.
func (s *Store) Clear() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var paths []string
	for _, item := range s.items {
		if item.FilePath != "" {
			paths = append(paths, item.FilePath)
		}
	}
	s.items = make(map[string]*models.ContentItem)

	err := s.writeThrough("clear", func() error {
		_, execErr := s.conn.Exec("DELETE FROM content_items")
		return execErr
	})

	return paths, err
}

// MarkPlayed records a playback event for usage stats. Playback is an
// external collaborator; this is the only mutation it performs.
func (s *Store) MarkPlayed(id string, playedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("content item %q not found", id)
	}

	item.PlayCount++
	played := playedAt
	item.LastPlayedAt = &played

	return s.writeThrough("mark played", func() error { return s.execUpsert(item) })
}
