// Package scheduler implements the download queue: FIFO admission under a
// concurrency limit, the per-item state machine, and throttled progress
// persistence. All queue-state transitions are serialized by one mutex so
// concurrent callers never race on the same item or the admission counter.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"tunecache/internal/store"
	"tunecache/pkg/models"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an operation targets an unknown item id
var ErrNotFound = errors.New("content item not found")

// DefaultConcurrencyLimit bounds simultaneous transfers unless configured
const DefaultConcurrencyLimit = 3

// progressPersistInterval throttles how often in-flight progress reaches the
// metadata store; the in-memory transfer state is always current.
const progressPersistInterval = 500 * time.Millisecond

type queueEntry struct {
	id         string
	enqueuedAt time.Time
}

// transferState tracks one dispatched worker. Guarded by Scheduler.mu.
type transferState struct {
	info   models.ActiveTransfer
	cancel context.CancelFunc

	speed           *speedHistory
	lastSampleTime  time.Time
	lastSampleBytes int64
	lastPersist     time.Time
	lastPersistPct  int
}

// Scheduler admits pending items to workers, at most limit at a time
type Scheduler struct {
	store  *store.Store
	worker Worker
	limit  int
	logger *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	pending []queueEntry
	active  map[string]*transferState
}

// New creates a scheduler over the given store and worker. A limit below 1
// falls back to DefaultConcurrencyLimit.
func New(st *store.Store, worker Worker, limit int) *Scheduler {
	if limit < 1 {
		limit = DefaultConcurrencyLimit
	}

	return &Scheduler{
		store:  st,
		worker: worker,
		limit:  limit,
		logger: slog.Default(),
		active: make(map[string]*transferState),
	}
}

// Start enables dispatching. Transfers run under ctx; cancelling it stops
// them without marking items failed, so a restart can recover them.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx = ctx
	s.fill()
}

// Admit records the item as Pending and places it at the tail of the queue.
// An id that is already queued or dispatched is not admitted twice: callers
// racing on the same content converge on the one in-flight transfer.
func (s *Scheduler) Admit(item *models.ContentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enlisted(item.ID) {
		s.logger.Info("Content already queued, admission skipped", "id", item.ID)
		return
	}

	item.Status = models.StatusPending
	s.persist(item)
	s.pending = append(s.pending, queueEntry{id: item.ID, enqueuedAt: time.Now()})
	s.logger.Info("Content enqueued", "id", item.ID, "queue_len", len(s.pending))
	s.fill()
}

// Record upserts a bookkeeping item without queueing it, e.g. a playlist
// aggregate that completes as soon as its songs are issued.
func (s *Scheduler) Record(item *models.ContentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persist(item)
}

// Pause moves a Pending or Downloading item to Paused. Pausing an active
// item frees its concurrency slot immediately.
func (s *Scheduler) Pause(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.store.Get(id)
	if !ok {
		return ErrNotFound
	}

	switch item.Status {
	case models.StatusPending:
		s.removePending(id)
	case models.StatusDownloading:
		s.releaseActive(id)
	default:
		return fmt.Errorf("cannot pause item in state %q", item.Status)
	}

	item.Status = models.StatusPaused
	s.persist(item)
	s.logger.Info("Content paused", "id", id)
	s.fill()
	return nil
}

// Resume re-queues a Paused item, or restarts a Failed one as a fresh
// request. The item re-enters the queue at the tail; it does not jump the
// line.
func (s *Scheduler) Resume(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.store.Get(id)
	if !ok {
		return ErrNotFound
	}

	switch item.Status {
	case models.StatusPaused:
	case models.StatusFailed:
		item.Progress = 0
		item.ErrorMessage = ""
	default:
		return fmt.Errorf("cannot resume item in state %q", item.Status)
	}

	item.Status = models.StatusPending
	s.persist(item)
	s.pending = append(s.pending, queueEntry{id: id, enqueuedAt: time.Now()})
	s.logger.Info("Content resumed", "id", id)
	s.fill()
	return nil
}

// Cancel terminates a Pending, Paused or Downloading item. Cancelling an
// active item signals its worker and frees the slot without waiting for the
// worker to unwind.
func (s *Scheduler) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.store.Get(id)
	if !ok {
		return ErrNotFound
	}

	switch item.Status {
	case models.StatusPending:
		s.removePending(id)
	case models.StatusPaused:
	case models.StatusDownloading:
		s.releaseActive(id)
	default:
		return fmt.Errorf("cannot cancel item in state %q", item.Status)
	}

	item.Status = models.StatusCancelled
	s.persist(item)
	s.logger.Info("Content cancelled", "id", id)
	s.fill()
	return nil
}

// Remove cancels any in-flight transfer for id and deletes the record,
// returning the prior file path. Removing a missing id is a no-op.
func (s *Scheduler) Remove(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item, ok := s.store.Get(id); ok {
		switch item.Status {
		case models.StatusPending:
			s.removePending(id)
		case models.StatusDownloading:
			s.releaseActive(id)
		}
	}

	filePath, err := s.store.Delete(id)
	s.fill()
	return filePath, err
}

// RemoveAll cancels everything and clears the store, returning the file
// paths that were backing items.
func (s *Scheduler) RemoveAll() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.active {
		s.releaseActive(id)
	}
	s.pending = nil

	return s.store.Clear()
}

// Snapshot returns all items plus the in-flight transfer views as of one
// point in time. Taken under the scheduler mutex, so no transition can
// interleave with the read.
func (s *Scheduler) Snapshot() ([]*models.ContentItem, []models.ActiveTransfer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.store.List(store.Filter{})

	transfers := make([]models.ActiveTransfer, 0, len(s.active))
	for _, ts := range s.active {
		transfers = append(transfers, ts.info)
	}
	sort.Slice(transfers, func(i, j int) bool {
		if transfers[i].StartedAt.Equal(transfers[j].StartedAt) {
			return transfers[i].ID < transfers[j].ID
		}
		return transfers[i].StartedAt.Before(transfers[j].StartedAt)
	})

	return items, transfers
}

// ActiveCount reports how many transfers are currently dispatched
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// PendingCount reports how many items are waiting in the queue
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// fill dispatches queue heads while slots are free. Runs on every
// queue-state change. Callers hold s.mu.
func (s *Scheduler) fill() {
	if s.ctx == nil || s.ctx.Err() != nil {
		return
	}

	for len(s.active) < s.limit && len(s.pending) > 0 {
		entry := s.pending[0]
		s.pending = s.pending[1:]

		item, ok := s.store.Get(entry.id)
		if !ok || item.Status != models.StatusPending {
			continue
		}

		s.dispatch(item)
	}
}

// dispatch marks the item Downloading before the worker starts, which
// itself blocks a second dispatch for the same id. Callers hold s.mu.
func (s *Scheduler) dispatch(item *models.ContentItem) {
	item.Status = models.StatusDownloading
	s.persist(item)

	ctx, cancel := context.WithCancel(s.ctx)
	now := time.Now()
	ts := &transferState{
		info: models.ActiveTransfer{
			ID:         item.ID,
			TransferID: uuid.NewString(),
			TotalBytes: item.FileSizeBytes,
			StartedAt:  now,
		},
		cancel:         cancel,
		speed:          newSpeedHistory(),
		lastSampleTime: now,
		lastPersist:    now,
	}
	s.active[item.ID] = ts

	s.logger.Info("Transfer dispatched",
		"id", item.ID,
		"transfer_id", ts.info.TransferID,
		"active", len(s.active))

	req := Request{ID: item.ID, SourceURL: item.SourceURL, FilePath: item.FilePath}
	go s.runTransfer(ctx, req, ts.info.TransferID)
}

func (s *Scheduler) runTransfer(ctx context.Context, req Request, transferID string) {
	size, err := s.worker.Transfer(ctx, req, func(bytesDownloaded, totalBytes int64) {
		s.onProgress(req.ID, transferID, bytesDownloaded, totalBytes)
	})
	s.onDone(req.ID, transferID, size, err)
}

// onProgress keeps the in-memory transfer view current on every event and
// persists at whole-percent changes or progressPersistInterval, whichever
// comes first, so the store is not written on every byte.
func (s *Scheduler) onProgress(id, transferID string, bytesDownloaded, totalBytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.active[id]
	if ts == nil || ts.info.TransferID != transferID {
		return
	}
	if bytesDownloaded < ts.info.BytesDownloaded {
		return
	}

	now := time.Now()
	sinceSample := now.Sub(ts.lastSampleTime).Seconds()
	if sinceSample >= sampleMinDuration {
		ts.speed.addSample(bytesDownloaded-ts.lastSampleBytes, sinceSample)
		ts.lastSampleTime = now
		ts.lastSampleBytes = bytesDownloaded
	}

	ts.info.BytesDownloaded = bytesDownloaded
	if totalBytes > 0 {
		ts.info.TotalBytes = totalBytes
	}
	ts.info.BytesPerSecond = ts.speed.calculateSpeed(
		bytesDownloaded-ts.lastSampleBytes, now.Sub(ts.lastSampleTime).Seconds())

	var pct int
	var progress float64
	if ts.info.TotalBytes > 0 {
		progress = float64(bytesDownloaded) / float64(ts.info.TotalBytes)
		if progress > 1 {
			progress = 1
		}
		pct = int(progress * 100)
	}

	if pct == ts.lastPersistPct && now.Sub(ts.lastPersist) < progressPersistInterval {
		return
	}
	ts.lastPersist = now
	ts.lastPersistPct = pct

	item, ok := s.store.Get(id)
	if !ok || item.Status != models.StatusDownloading {
		return
	}
	item.Progress = progress
	s.persist(item)
}

// onDone handles a worker's terminal outcome. If the slot was already
// released (pause, cancel, delete), the outcome is ignored: the transition
// has happened and the worker is just unwinding.
func (s *Scheduler) onDone(id, transferID string, size int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.active[id]
	if ts == nil || ts.info.TransferID != transferID {
		return
	}
	delete(s.active, id)

	item, ok := s.store.Get(id)
	if !ok {
		s.fill()
		return
	}

	switch {
	case err == nil:
		now := time.Now()
		item.Status = models.StatusCompleted
		item.Progress = 1.0
		item.FileSizeBytes = size
		item.ErrorMessage = ""
		item.CompletedAt = &now
		s.persist(item)
		s.logger.Info("Transfer completed", "id", id, "size_bytes", size)

	case s.ctx.Err() != nil:
		// Shutdown: leave the item Downloading so startup recovery can
		// reset it to Pending.
		s.logger.Info("Transfer interrupted by shutdown", "id", id)

	default:
		item.Status = models.StatusFailed
		item.ErrorMessage = err.Error()
		s.persist(item)
		s.logger.Error("Transfer failed", "id", id, "error", err)
	}

	s.fill()
}

// releaseActive cancels the worker and frees the slot without waiting for
// the worker goroutine to return. Callers hold s.mu.
func (s *Scheduler) releaseActive(id string) {
	ts := s.active[id]
	if ts == nil {
		return
	}
	ts.cancel()
	delete(s.active, id)
}

// enlisted reports whether id already occupies a slot or a queue position.
// Callers hold s.mu.
func (s *Scheduler) enlisted(id string) bool {
	if _, ok := s.active[id]; ok {
		return true
	}
	for _, entry := range s.pending {
		if entry.id == id {
			return true
		}
	}
	return false
}

func (s *Scheduler) removePending(id string) {
	for i, entry := range s.pending {
		if entry.id == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// persist writes the item through the store. Write failures are warnings:
// the in-memory state stands and the store surfaces the error in snapshots.
func (s *Scheduler) persist(item *models.ContentItem) {
	if err := s.store.Upsert(item); err != nil {
		s.logger.Warn("Failed to persist item state", "id", item.ID, "status", item.Status, "error", err)
	}
}
