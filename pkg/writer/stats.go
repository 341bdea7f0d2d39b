package writer

import "errors"

// Stats provides statistics about mirror operations.
type Stats struct {
	// QueueDepth is the current number of pending writes across all queues
	QueueDepth int `json:"queue_depth"`

	// DroppedWrites is the total number of writes dropped due to backpressure
	DroppedWrites int64 `json:"dropped_writes"`

	// TotalWrites is the total number of writes accepted
	TotalWrites int64 `json:"total_writes"`

	// FailedWrites is the total number of writes the secondary store rejected
	FailedWrites int64 `json:"failed_writes"`
}

// Errors returned by mirror operations.
var (
	// ErrQueueFull is returned when the write queue is full and MaxWaitTime exceeded
	ErrQueueFull = errors.New("writer: queue full, write dropped")

	// ErrWriterClosed is returned when attempting to write to a closed mirror
	ErrWriterClosed = errors.New("writer: mirror is closed")

	// ErrFlushTimeout is returned when Flush() times out waiting for queues to drain
	ErrFlushTimeout = errors.New("writer: flush timeout exceeded")

	// ErrMirrorIncomplete is returned by Close when some writes never reached the secondary store
	ErrMirrorIncomplete = errors.New("writer: mirror incomplete")
)
