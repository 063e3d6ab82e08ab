package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"vidgrab/internal/format"
	"vidgrab/internal/logging"
)

const (
	defaultBudget  = 28 * time.Second
	maxRetryBudget = 8 * time.Second
)

// Dispatcher executes resolved downloads against an ExtractionProvider,
// either buffering the result through a scratch file or streaming it
// directly to the caller.
type Dispatcher struct {
	ex         ExtractionProvider
	scratchDir string
	budget     time.Duration
}

// NewDispatcher creates a Dispatcher writing scratch files to scratchDir.
// budget bounds each buffered extraction; zero selects the default.
func NewDispatcher(ex ExtractionProvider, scratchDir string, budget time.Duration) *Dispatcher {
	if budget <= 0 {
		budget = defaultBudget
	}
	return &Dispatcher{ex: ex, scratchDir: scratchDir, budget: budget}
}

// Result is the outcome of a buffered delivery.
type Result struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Buffered runs the extraction with a hard wall-clock budget, writing to
// a uniquely named scratch file, and returns the file contents. The
// scratch file is deleted on every exit path. A run that exits cleanly
// with zero output files gets one retry using the chain's terminal
// constraint and a shorter budget; a second empty run fails permanently.
func (d *Dispatcher) Buffered(ctx context.Context, chain format.Chain, req Request, baseName string) (*Result, error) {
	token := "vidgrab-" + uuid.NewString()
	req.OutputTemplate = filepath.Join(d.scratchDir, token+".%(ext)s")
	defer d.cleanupScratch(token)

	started := time.Now()
	if err := d.runOnce(ctx, req, chain.Selector(), d.budget); err != nil {
		return nil, err
	}
	path, ok := d.scratchFile(token)
	if !ok {
		retrySel := chain.Terminal().Selector()
		logging.LogExtractionRetry(req.URL, retrySel)
		if err := d.runOnce(ctx, req, retrySel, d.retryBudget()); err != nil {
			return nil, err
		}
		path, ok = d.scratchFile(token)
		if !ok {
			return nil, fmt.Errorf("%w: no output file produced", ErrExtractionFailed)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read output: %v", ErrExtractionFailed, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty output file", ErrExtractionFailed)
	}

	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	name := SanitizeFilename(baseName)
	if name == "" {
		name = "video"
	}
	logging.LogDispatchBuffered(req.URL, chain.Selector(), len(data), time.Since(started))
	return &Result{
		Data:        data,
		Filename:    name + "." + ext,
		ContentType: ContentTypeForExt(ext),
	}, nil
}

// Stream forwards extraction output to w as it is produced. ctx is
// expected to be the request context so a client disconnect kills the
// child process. Mid-stream failures surface as transport errors; the
// response headers are already committed by then.
func (d *Dispatcher) Stream(ctx context.Context, chain format.Chain, req Request, w io.Writer) error {
	req.Selector = chain.Selector()
	req.OutputTemplate = ""
	started := time.Now()
	if err := d.ex.ExtractStream(ctx, req, w); err != nil {
		return fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	logging.LogDispatchStreamed(req.URL, req.Selector, time.Since(started))
	return nil
}

func (d *Dispatcher) runOnce(ctx context.Context, req Request, selector string, budget time.Duration) error {
	rctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	req.Selector = selector
	if err := d.ex.ExtractFile(rctx, req); err != nil {
		if errors.Is(rctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: extraction exceeded %s budget", ErrTimeout, budget)
		}
		return fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	return nil
}

func (d *Dispatcher) retryBudget() time.Duration {
	b := d.budget / 2
	if b > maxRetryBudget {
		b = maxRetryBudget
	}
	if b <= 0 {
		b = maxRetryBudget
	}
	return b
}

// scratchFile returns the finished output file for a token, skipping
// partial downloads left behind by an interrupted run.
func (d *Dispatcher) scratchFile(token string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(d.scratchDir, token+".*"))
	if err != nil {
		return "", false
	}
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		return m, true
	}
	return "", false
}

// cleanupScratch removes every file the token produced, partials included.
func (d *Dispatcher) cleanupScratch(token string) {
	matches, err := filepath.Glob(filepath.Join(d.scratchDir, token+"*"))
	if err != nil {
		logging.LogScratchCleanup(token, err)
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			logging.LogScratchCleanup(m, err)
		}
	}
}

// SanitizeFilename reduces a title to attachment-safe characters: every
// rune outside [A-Za-z0-9.-] becomes '-', and leading/trailing separators
// are trimmed.
func SanitizeFilename(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-.")
}

// ContentTypeForExt maps an output extension to the response content type.
func ContentTypeForExt(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "mp4":
		return "video/mp4"
	case "webm":
		return "video/webm"
	case "mkv":
		return "video/x-matroska"
	case "avi":
		return "video/x-msvideo"
	case "mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}
