package scheduler

import (
	"context"
)

// ProgressFunc receives a monotonically non-decreasing sequence of progress
// events for one transfer. totalBytes may be 0 when the source does not
// report a length.
type ProgressFunc func(bytesDownloaded, totalBytes int64)

// Request describes one transfer handed to a worker
type Request struct {
	ID        string
	SourceURL string
	FilePath  string
}

// Worker performs one content transfer to completion, emitting progress
// along the way. It must observe ctx cancellation and stop promptly. The
// return is exactly one terminal outcome: the final transferred size on
// success, or an error.
//
//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks
type Worker interface {
	Transfer(ctx context.Context, req Request, progress ProgressFunc) (int64, error)
}
