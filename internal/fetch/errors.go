package fetch

import "errors"

var (
	// ErrQueueFull indicates the fetch queue is at capacity
	ErrQueueFull = errors.New("queue_full")

	// ErrShuttingDown indicates the manager is no longer accepting new fetches
	ErrShuttingDown = errors.New("shutting_down")

	// ErrChecksumMismatch indicates a downloaded file failed digest verification
	ErrChecksumMismatch = errors.New("checksum_mismatch")

	// ErrTruncated indicates fewer bytes were written than the server announced
	ErrTruncated = errors.New("truncated_download")

	// ErrDestMissing indicates the destination file is absent after a fetch attempt
	ErrDestMissing = errors.New("dest_missing_after_fetch")
)
