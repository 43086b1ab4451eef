// Package transfer implements the worker contract over plain HTTP
package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tunecache/internal/scheduler"
)

// TransferError reports a network or I/O failure during a transfer
type TransferError struct {
	URL string
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer from %s failed: %v", e.URL, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// PartFilePath returns the temporary path a transfer writes to before the
// final rename. A paused transfer leaves this file in place so a later
// resume can continue from it.
func PartFilePath(filePath string) string {
	return filePath + ".part"
}

// HTTPWorker downloads one file per Transfer call
type HTTPWorker struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPWorker creates a worker with a client sized for large media files
func NewHTTPWorker() *HTTPWorker {
	return &HTTPWorker{
		client: &http.Client{
			// Allow up to 1 hour per transfer
			Timeout: 1 * time.Hour,
		},
		logger: slog.Default(),
	}
}

// Transfer downloads req.SourceURL to req.FilePath, emitting progress as
// bytes arrive. It writes to a .part file and renames on completion. A
// context cancellation keeps the partial file (pause/shutdown path); any
// other failure removes it.
func (w *HTTPWorker) Transfer(ctx context.Context, req scheduler.Request, progress scheduler.ProgressFunc) (int64, error) {
	partPath := PartFilePath(req.FilePath)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.SourceURL, nil)
	if err != nil {
		return 0, &TransferError{URL: req.SourceURL, Err: err}
	}

	// Continue from a partial file left by a paused transfer
	var resumeFrom int64
	if stat, err := os.Stat(partPath); err == nil && stat.Size() > 0 {
		resumeFrom = stat.Size()
		httpReq.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeFrom))
		w.logger.Info("Resuming transfer from partial file", "id", req.ID, "resume_from", resumeFrom)
	}

	resp, err := w.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, &TransferError{URL: req.SourceURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		w.discardPart(partPath)
		return 0, &TransferError{URL: req.SourceURL, Err: fmt.Errorf("server returned status %d", resp.StatusCode)}
	}

	// Server ignored the Range request; start over
	if resumeFrom > 0 && resp.StatusCode == http.StatusOK {
		resumeFrom = 0
	}

	totalBytes := resumeFrom
	if resp.ContentLength > 0 {
		totalBytes = resumeFrom + resp.ContentLength
	}

	if err := os.MkdirAll(filepath.Dir(req.FilePath), 0o755); err != nil {
		return 0, &TransferError{URL: req.SourceURL, Err: fmt.Errorf("failed to create directory: %w", err)}
	}

	var file *os.File
	if resumeFrom > 0 {
		file, err = os.OpenFile(partPath, os.O_APPEND|os.O_WRONLY, 0o644)
	} else {
		file, err = os.Create(partPath)
	}
	if err != nil {
		return 0, &TransferError{URL: req.SourceURL, Err: fmt.Errorf("failed to open part file: %w", err)}
	}
	defer file.Close()

	written, err := w.copyWithProgress(ctx, file, resp.Body, resumeFrom, totalBytes, progress)
	if err != nil {
		if ctx.Err() != nil {
			// Pause or shutdown: keep the partial file for a later resume
			return 0, ctx.Err()
		}
		w.discardPart(partPath)
		return 0, &TransferError{URL: req.SourceURL, Err: err}
	}

	file.Close()
	if err := os.Rename(partPath, req.FilePath); err != nil {
		return 0, &TransferError{URL: req.SourceURL, Err: fmt.Errorf("failed to move completed file: %w", err)}
	}

	w.logger.Info("Transfer written to final location", "id", req.ID, "path", req.FilePath, "size_bytes", written)
	return written, nil
}

// copyWithProgress copies src to dst, emitting a progress event per read.
// Event coalescing is the scheduler's job, not the worker's.
func (w *HTTPWorker) copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, resumeFrom, totalBytes int64, progress scheduler.ProgressFunc) (int64, error) {
	buffer := make([]byte, 32*1024)
	totalRead := resumeFrom

	for {
		select {
		case <-ctx.Done():
			return totalRead, ctx.Err()
		default:
		}

		n, err := src.Read(buffer)
		if n > 0 {
			if _, writeErr := dst.Write(buffer[:n]); writeErr != nil {
				return totalRead, fmt.Errorf("failed to write to file: %w", writeErr)
			}
			totalRead += int64(n)
			progress(totalRead, totalBytes)
		}

		if err != nil {
			if err == io.EOF {
				return totalRead, nil
			}
			return totalRead, fmt.Errorf("failed to read from source: %w", err)
		}
	}
}

func (w *HTTPWorker) discardPart(partPath string) {
	if err := os.Remove(partPath); err != nil && !os.IsNotExist(err) {
		w.logger.Warn("Failed to remove partial file", "part_path", partPath, "error", err)
	}
}
