// Package handlers provides the JSON HTTP handlers for the offline manager
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"tunecache/internal/manager"
	"tunecache/internal/scheduler"
	"tunecache/pkg/models"
)

// Handlers contains all HTTP handlers and their dependencies
type Handlers struct {
	manager *manager.Manager
	logger  *slog.Logger
}

// New creates a new handlers instance
func New(mgr *manager.Manager) *Handlers {
	return &Handlers{
		manager: mgr,
		logger:  slog.Default(),
	}
}

type submitRequest struct {
	Type models.ContentType `json:"type"`
	Ref  string             `json:"ref"`
}

type submitResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// State returns the full state snapshot for the UI to render
func (h *Handlers) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.CurrentState())
}

// Storage returns just the storage usage snapshot
func (h *Handlers) Storage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.CurrentState().Storage)
}

// SubmitDownload accepts an offline-download request
func (h *Handlers) SubmitDownload(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	id, err := h.manager.RequestDownload(r.Context(), req.Type, req.Ref)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("Download submitted", "id", id, "type", req.Type)
	writeJSON(w, http.StatusAccepted, submitResponse{ID: id})
}

// PauseDownload suspends a download
func (h *Handlers) PauseDownload(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.manager.Pause)
}

// ResumeDownload re-queues a paused or failed download
func (h *Handlers) ResumeDownload(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.manager.Resume)
}

// CancelDownload terminates a download
func (h *Handlers) CancelDownload(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.manager.Cancel)
}

// MarkPlayed records a playback event for usage stats
func (h *Handlers) MarkPlayed(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.manager.MarkPlayed)
}

// DeleteDownload removes an item and its backing file
func (h *Handlers) DeleteDownload(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.manager.Delete)
}

// ClearDownloads removes all offline content
func (h *Handlers) ClearDownloads(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.ClearAll(); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) mutate(w http.ResponseWriter, r *http.Request, op func(id string) error) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "item id is required"})
		return
	}

	if err := op(id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	var validationErr *manager.ValidationError

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, scheduler.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("Request failed", "error", err)
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Error("Failed to encode response", "error", err)
	}
}
