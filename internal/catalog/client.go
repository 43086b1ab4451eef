// Package catalog provides client functionality for the streaming catalog
// API. The download manager treats content references as opaque; this client
// is the collaborator that turns them into transferable sources.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Song is a resolved song source
type Song struct {
	SourceRef string `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	StreamURL string `json:"stream_url"`
	SizeBytes int64  `json:"size_bytes"`
}

// Playlist is a resolved playlist with its constituent songs
type Playlist struct {
	SourceRef string `json:"id"`
	Title     string `json:"title"`
	Creator   string `json:"creator"`
	Songs     []Song `json:"songs"`
}

// Resolver defines the catalog operations the download manager depends on
//
//go:generate mockgen -source=client.go -destination=mocks/mock_client.go -package=mocks
type Resolver interface {
	ResolveSong(ctx context.Context, ref string) (*Song, error)
	ResolvePlaylist(ctx context.Context, ref string) (*Playlist, error)
}

// APIResponse represents a generic envelope response from the catalog API
type APIResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  *APIError       `json:"error,omitempty"`
}

// APIError represents an error response from the API
type APIError struct {
	Message string      `json:"message"`
	Code    interface{} `json:"code,omitempty"`
}

// Error implements the error interface for APIError
func (e *APIError) Error() string {
	if e.Code != nil {
		return fmt.Sprintf("%s (code: %v)", e.Message, e.Code)
	}
	return e.Message
}

// Client is an HTTP catalog API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New creates a new catalog client
func New(baseURL, apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ResolveSong resolves a song reference to its stream source
func (c *Client) ResolveSong(ctx context.Context, ref string) (*Song, error) {
	var song Song
	if err := c.get(ctx, fmt.Sprintf("/songs/%s", url.PathEscape(ref)), &song); err != nil {
		return nil, fmt.Errorf("failed to resolve song %q: %w", ref, err)
	}
	return &song, nil
}

// ResolvePlaylist resolves a playlist reference and its song list
func (c *Client) ResolvePlaylist(ctx context.Context, ref string) (*Playlist, error) {
	var playlist Playlist
	if err := c.get(ctx, fmt.Sprintf("/playlists/%s", url.PathEscape(ref)), &playlist); err != nil {
		return nil, fmt.Errorf("failed to resolve playlist %q: %w", ref, err)
	}
	return &playlist, nil
}

// Ping validates the API key against the catalog
func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, "/ping", &struct{}{})
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	params := url.Values{}
	params.Set("agent", "tunecache")
	params.Set("apikey", c.apiKey)

	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp APIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if apiResp.Error != nil {
		return apiResp.Error
	}
	if apiResp.Status != "success" {
		return fmt.Errorf("unexpected API status %q", apiResp.Status)
	}

	if len(apiResp.Data) > 0 {
		if err := json.Unmarshal(apiResp.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	return nil
}
