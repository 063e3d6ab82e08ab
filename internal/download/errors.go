package download

import "errors"

// Error taxonomy. Public entry points classify every failure into one of
// these before it reaches the client.
var (
	// ErrInvalidInput indicates a missing or malformed source URL.
	ErrInvalidInput = errors.New("invalid_input")

	// ErrVideoUnavailable indicates the source is private, deleted, or
	// otherwise not retrievable.
	ErrVideoUnavailable = errors.New("video_unavailable")

	// ErrTimeout indicates the external extraction call exceeded its budget.
	ErrTimeout = errors.New("timeout")

	// ErrExtractionFailed indicates a non-timeout tool failure, including
	// runs that produce no output or an empty output file.
	ErrExtractionFailed = errors.New("extraction_failed")

	// ErrNoFormats indicates the tool reported zero encoded renditions.
	ErrNoFormats = errors.New("no_formats_available")
)
