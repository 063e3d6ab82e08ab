// Package ytdlp implements the metadata and extraction capabilities on
// top of the yt-dlp command-line tool. Invocations are argument vectors
// only; user-supplied URLs never pass through a shell.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"vidgrab/internal/download"
	"vidgrab/internal/format"
	"vidgrab/internal/logging"
)

// DefaultBin is the tool binary resolved from PATH when no explicit path
// is configured.
const DefaultBin = "yt-dlp"

// Client runs yt-dlp. It implements download.MetadataProvider and
// download.ExtractionProvider.
type Client struct {
	bin string
}

// New creates a Client for the given binary path; empty selects DefaultBin.
func New(bin string) *Client {
	if bin == "" {
		bin = DefaultBin
	}
	return &Client{bin: bin}
}

// Check ensures the configured binary exists in PATH.
func (c *Client) Check() error {
	if _, err := exec.LookPath(c.bin); err != nil {
		return fmt.Errorf("yt-dlp not found: %w", err)
	}
	return nil
}

// FetchInfo probes a source URL with `yt-dlp -J` and returns the parsed
// metadata and stream descriptors.
func (c *Client) FetchInfo(ctx context.Context, url string) (*download.VideoInfo, error) {
	cmd := exec.CommandContext(ctx, c.bin, "-J", "--no-playlist", url)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			logging.LogInfoFetch(url, 0, ctx.Err())
			return nil, fmt.Errorf("%w: metadata probe canceled", download.ErrTimeout)
		}
		cerr := classifyToolError(stderr.String())
		logging.LogInfoFetch(url, 0, cerr)
		return nil, cerr
	}
	info, err := parseInfo(stdout.Bytes())
	if err != nil {
		logging.LogInfoFetch(url, 0, err)
		return nil, err
	}
	logging.LogInfoFetch(url, len(info.Streams), nil)
	return info, nil
}

// ExtractFile runs an extraction writing output to the request's scratch
// template. The caller bounds ctx with the delivery budget.
func (c *Client) ExtractFile(ctx context.Context, req download.Request) error {
	args := buildArgs(req, req.OutputTemplate)
	cmd := exec.CommandContext(ctx, c.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if tail := tailString(stderr.String(), 512); tail != "" {
			return fmt.Errorf("yt-dlp: %w: %s", err, tail)
		}
		return fmt.Errorf("yt-dlp: %w", err)
	}
	return nil
}

// ExtractStream runs an extraction with output directed at stdout and
// forwards the bytes to w as they are produced. Cancelling ctx (client
// disconnect) kills the child process.
func (c *Client) ExtractStream(ctx context.Context, req download.Request, w io.Writer) error {
	args := buildArgs(req, "-")
	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.Stdout = w
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if tail := tailString(stderr.String(), 512); tail != "" {
			return fmt.Errorf("yt-dlp: %w: %s", err, tail)
		}
		return fmt.Errorf("yt-dlp: %w", err)
	}
	return nil
}

// buildArgs constructs the yt-dlp argument vector for an extraction run.
func buildArgs(req download.Request, output string) []string {
	args := []string{
		"--no-playlist", "--no-color", "--newline",
		"-f", req.Selector,
	}
	if req.AudioOnly {
		bitrate := req.AudioBitrateK
		if bitrate <= 0 {
			bitrate = format.AudioBitrateBest
		}
		args = append(args,
			"-x",
			"--audio-format", "mp3",
			"--audio-quality", fmt.Sprintf("%dK", bitrate),
		)
	}
	args = append(args, "-o", output, req.URL)
	return args
}

// classifyToolError maps tool stderr to the error taxonomy.
func classifyToolError(stderr string) error {
	lower := strings.ToLower(stderr)
	for _, marker := range []string{
		"private video",
		"video unavailable",
		"this video is not available",
		"has been removed",
		"account associated with this video has been terminated",
	} {
		if strings.Contains(lower, marker) {
			return fmt.Errorf("%w: %s", download.ErrVideoUnavailable, tailString(stderr, 256))
		}
	}
	return fmt.Errorf("%w: %s", download.ErrExtractionFailed, tailString(stderr, 256))
}

// infoPayload mirrors the subset of `yt-dlp -J` output we consume.
type infoPayload struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Uploader    string  `json:"uploader"`
	Channel     string  `json:"channel"`
	Duration    float64 `json:"duration"`
	ViewCount   int64   `json:"view_count"`
	UploadDate  string  `json:"upload_date"` // YYYYMMDD
	Description string  `json:"description"`
	Thumbnail   string  `json:"thumbnail"`
	Formats     []struct {
		FormatID       string  `json:"format_id"`
		Height         int     `json:"height"`
		FPS            float64 `json:"fps"`
		Ext            string  `json:"ext"`
		Filesize       int64   `json:"filesize"`
		FilesizeApprox int64   `json:"filesize_approx"`
		VCodec         string  `json:"vcodec"`
		ACodec         string  `json:"acodec"`
	} `json:"formats"`
}

func parseInfo(raw []byte) (*download.VideoInfo, error) {
	var p infoPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: parse metadata: %v", download.ErrExtractionFailed, err)
	}
	info := &download.VideoInfo{
		ID:           p.ID,
		Title:        p.Title,
		Author:       p.Uploader,
		DurationSec:  int64(p.Duration),
		Views:        p.ViewCount,
		PublishDate:  formatUploadDate(p.UploadDate),
		Description:  p.Description,
		ThumbnailURL: p.Thumbnail,
	}
	if info.Author == "" {
		info.Author = p.Channel
	}
	info.Streams = make([]format.Stream, 0, len(p.Formats))
	for _, f := range p.Formats {
		size := f.Filesize
		if size == 0 {
			size = f.FilesizeApprox
		}
		info.Streams = append(info.Streams, format.Stream{
			FormatID:   f.FormatID,
			Height:     f.Height,
			FPS:        int(f.FPS),
			Ext:        f.Ext,
			Bytes:      size,
			VideoCodec: f.VCodec,
			AudioCodec: f.ACodec,
		})
	}
	return info, nil
}

// formatUploadDate converts yt-dlp's YYYYMMDD to ISO date, passing
// through anything it cannot parse.
func formatUploadDate(s string) string {
	t, err := time.Parse("20060102", s)
	if err != nil {
		return s
	}
	return t.Format("2006-01-02")
}

// tailString returns the last at most n bytes from s.
func tailString(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(s[len(s)-n:])
}
