package download

import (
	"context"
	"io"

	"vidgrab/internal/format"
)

// VideoInfo is the metadata fetched for one source URL. It is
// request-scoped: fetched fresh for every request, never cached.
type VideoInfo struct {
	ID           string
	Title        string
	Author       string
	DurationSec  int64
	Views        int64
	PublishDate  string
	Description  string
	ThumbnailURL string
	Streams      []format.Stream
}

// Request describes one extraction run.
type Request struct {
	URL            string
	Selector       string // yt-dlp format selector, set from the resolved chain
	AudioOnly      bool
	AudioBitrateK  int    // kbps, audio extractions only
	OutputTemplate string // scratch output template; empty for streamed runs
}

// MetadataProvider fetches metadata and stream descriptors for a source
// URL. Implementations return ErrVideoUnavailable for private or deleted
// sources.
type MetadataProvider interface {
	FetchInfo(ctx context.Context, url string) (*VideoInfo, error)
}

// ExtractionProvider runs the external extraction tool. ExtractFile
// writes media to the request's output template; ExtractStream emits a
// continuous byte stream to w. Both respect ctx for cancellation and
// budget enforcement.
type ExtractionProvider interface {
	ExtractFile(ctx context.Context, req Request) error
	ExtractStream(ctx context.Context, req Request, w io.Writer) error
}
