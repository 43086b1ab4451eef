package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient_ResolveSong(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/songs/abc", r.URL.Path)
		require.Equal(t, "tunecache", r.URL.Query().Get("agent"))
		require.Equal(t, "test-key", r.URL.Query().Get("apikey"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "success",
			"data": {
				"id": "abc",
				"title": "Night Drive",
				"artist": "The Examples",
				"stream_url": "https://cdn.example.com/abc.mp3",
				"size_bytes": 4000000
			}
		}`))
	}))
	defer server.Close()

	client := New(server.URL, "test-key")
	song, err := client.ResolveSong(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, "abc", song.SourceRef)
	require.Equal(t, "Night Drive", song.Title)
	require.Equal(t, "The Examples", song.Artist)
	require.Equal(t, "https://cdn.example.com/abc.mp3", song.StreamURL)
	require.Equal(t, int64(4000000), song.SizeBytes)
}

func TestClient_ResolvePlaylist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/playlists/mix1", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "success",
			"data": {
				"id": "mix1",
				"title": "Road Trip",
				"creator": "someone",
				"songs": [
					{"id": "a", "title": "First", "stream_url": "https://cdn.example.com/a.mp3"},
					{"id": "b", "title": "Second", "stream_url": "https://cdn.example.com/b.mp3"}
				]
			}
		}`))
	}))
	defer server.Close()

	client := New(server.URL, "test-key")
	playlist, err := client.ResolvePlaylist(context.Background(), "mix1")
	require.NoError(t, err)
	require.Equal(t, "Road Trip", playlist.Title)
	require.Len(t, playlist.Songs, 2)
	require.Equal(t, "a", playlist.Songs[0].SourceRef)
	require.Equal(t, "Second", playlist.Songs[1].Title)
}

func TestClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "error", "error": {"message": "song not found", "code": 404}}`))
	}))
	defer server.Close()

	client := New(server.URL, "test-key")
	_, err := client.ResolveSong(context.Background(), "missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "song not found")
	require.Contains(t, err.Error(), "404")
}

func TestClient_UnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "pending"}`))
	}))
	defer server.Close()

	client := New(server.URL, "test-key")
	_, err := client.ResolveSong(context.Background(), "abc")
	require.Error(t, err)
	require.Contains(t, err.Error(), `unexpected API status "pending"`)
}

func TestClient_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := New(server.URL, "test-key")
	_, err := client.ResolveSong(context.Background(), "abc")
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to decode response")
}

func TestClient_Ping(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{
			name: "valid key",
			body: `{"status": "success"}`,
		},
		{
			name:    "invalid key",
			body:    `{"status": "error", "error": {"message": "invalid api key"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/ping", r.URL.Path)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := New(server.URL, "test-key")
			err := client.Ping(context.Background())
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	withCode := &APIError{Message: "bad request", Code: 400}
	require.Equal(t, "bad request (code: 400)", withCode.Error())

	withoutCode := &APIError{Message: "bad request"}
	require.Equal(t, "bad request", withoutCode.Error())
}
