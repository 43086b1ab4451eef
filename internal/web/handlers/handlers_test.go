package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tunecache/internal/catalog"
	"tunecache/internal/catalog/mocks"
	"tunecache/internal/manager"
	"tunecache/internal/scheduler"
	"tunecache/internal/storage"
	"tunecache/internal/store"
	"tunecache/pkg/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// noopWorker completes transfers immediately with a fixed size
type noopWorker struct{}

func (noopWorker) Transfer(ctx context.Context, req scheduler.Request, progress scheduler.ProgressFunc) (int64, error) {
	return 1000, nil
}

func newTestHandlers(t *testing.T) (*Handlers, *store.Store, *mocks.MockResolver) {
	t.Helper()

	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sched := scheduler.New(st, noopWorker{}, 3)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	sched.Start(ctx)

	dir := t.TempDir()
	resolver := mocks.NewMockResolver(gomock.NewController(t))
	mgr := manager.New(st, sched, storage.New(st, dir), resolver, dir, 0)

	return New(mgr), st, resolver
}

func seedCompleted(t *testing.T, st *store.Store, id string) {
	t.Helper()
	require.NoError(t, st.Upsert(&models.ContentItem{
		ID:          id,
		Type:        models.TypeSong,
		Status:      models.StatusCompleted,
		RequestedAt: time.Now(),
	}))
}

func TestHandlers_State(t *testing.T) {
	h, st, _ := newTestHandlers(t)
	seedCompleted(t, st, "song_1")

	w := httptest.NewRecorder()
	h.State(w, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var state manager.State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	require.Len(t, state.Items, 1)
	require.Equal(t, "song_1", state.Items[0].ID)
	require.Empty(t, state.ActiveTransfers)
}

func TestHandlers_Storage(t *testing.T) {
	h, st, _ := newTestHandlers(t)

	item := &models.ContentItem{
		ID:            "song_1",
		Type:          models.TypeSong,
		Status:        models.StatusCompleted,
		FileSizeBytes: 4000000,
		RequestedAt:   time.Now(),
	}
	require.NoError(t, st.Upsert(item))

	w := httptest.NewRecorder()
	h.Storage(w, httptest.NewRequest(http.MethodGet, "/api/storage", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var snapshot models.StorageSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	require.Equal(t, int64(4000000), snapshot.UsedBytes)
	require.Equal(t, 1, snapshot.SongCount)
}

func TestHandlers_SubmitDownload(t *testing.T) {
	h, _, resolver := newTestHandlers(t)
	resolver.EXPECT().ResolveSong(gomock.Any(), "42").Return(&catalog.Song{
		SourceRef: "42",
		Title:     "Night Drive",
		StreamURL: "https://cdn.example.com/42.mp3",
		SizeBytes: 1000,
	}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/downloads",
		strings.NewReader(`{"type": "song", "ref": "42"}`))
	h.SubmitDownload(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "song_42", resp.ID)
}

func TestHandlers_SubmitDownloadErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "malformed body",
			body:       `{not json`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing ref",
			body:       `{"type": "song"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown type",
			body:       `{"type": "album", "ref": "1"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, _ := newTestHandlers(t)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/downloads", strings.NewReader(tt.body))
			h.SubmitDownload(w, req)

			require.Equal(t, tt.wantStatus, w.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotEmpty(t, resp.Error)
		})
	}
}

func TestHandlers_PauseDownloadNotFound(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/downloads/song_missing/pause", nil)
	req.SetPathValue("id", "song_missing")
	h.PauseDownload(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlers_MutateRequiresID(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	w := httptest.NewRecorder()
	h.CancelDownload(w, httptest.NewRequest(http.MethodPost, "/api/downloads//cancel", nil))

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_DeleteDownload(t *testing.T) {
	h, st, _ := newTestHandlers(t)
	seedCompleted(t, st, "song_1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/downloads/song_1", nil)
	req.SetPathValue("id", "song_1")
	h.DeleteDownload(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	_, ok := st.Get("song_1")
	require.False(t, ok)
}

func TestHandlers_MarkPlayed(t *testing.T) {
	h, st, _ := newTestHandlers(t)
	seedCompleted(t, st, "song_1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/downloads/song_1/played", nil)
	req.SetPathValue("id", "song_1")
	h.MarkPlayed(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	item, _ := st.Get("song_1")
	require.Equal(t, 1, item.PlayCount)
}

func TestHandlers_MarkPlayedNotFound(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/downloads/song_missing/played", nil)
	req.SetPathValue("id", "song_missing")
	h.MarkPlayed(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlers_ClearDownloads(t *testing.T) {
	h, st, _ := newTestHandlers(t)
	seedCompleted(t, st, "song_1")
	seedCompleted(t, st, "song_2")

	w := httptest.NewRecorder()
	h.ClearDownloads(w, httptest.NewRequest(http.MethodDelete, "/api/downloads", nil))

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Empty(t, st.List(store.Filter{}))
}
