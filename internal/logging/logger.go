package logging

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"
)

var (
	// Logger is the global structured logger instance
	Logger *slog.Logger
)

// Init initializes the global structured logger
func Init(level slog.Level) {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Format time as ISO8601
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// ParseLevel converts a string log level to slog.Level
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "info", "INFO":
		return slog.LevelInfo
	case "warn", "WARN":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RedactURL removes secrets from URL logs while retaining debugging value.
// It strips userinfo and masks query parameter values.
func RedactURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed == nil {
		return rawURL
	}

	parsed.User = nil

	if parsed.RawQuery != "" {
		query := parsed.Query()
		for key := range query {
			query.Set(key, "***")
		}
		parsed.RawQuery = query.Encode()
	}

	return parsed.String()
}

// Helper functions for common logging patterns

// LogInfoFetch logs a metadata probe for a source URL
func LogInfoFetch(url string, streams int, err error) {
	if Logger == nil {
		return
	}
	if err != nil {
		Logger.Error("metadata fetch failed",
			"event", "info_fetch_error",
			"url", RedactURL(url),
			"error", err)
	} else {
		Logger.Info("metadata fetched",
			"event", "info_fetch",
			"url", RedactURL(url),
			"streams", streams)
	}
}

// LogResolve logs a preset resolution to a fallback chain
func LogResolve(url, formatID, selector, plan string) {
	if Logger == nil {
		return
	}
	Logger.Info("format resolved",
		"event", "format_resolve",
		"url", RedactURL(url),
		"format_id", formatID,
		"selector", selector,
		"plan", plan)
}

// LogDispatchBuffered logs a completed buffered delivery
func LogDispatchBuffered(url, selector string, bytes int, elapsed time.Duration) {
	if Logger == nil {
		return
	}
	Logger.Info("buffered delivery complete",
		"event", "dispatch_buffered",
		"url", RedactURL(url),
		"selector", selector,
		"bytes", bytes,
		"elapsed_ms", elapsed.Milliseconds())
}

// LogDispatchStreamed logs a completed streamed delivery
func LogDispatchStreamed(url, selector string, elapsed time.Duration) {
	if Logger == nil {
		return
	}
	Logger.Info("streamed delivery complete",
		"event", "dispatch_streamed",
		"url", RedactURL(url),
		"selector", selector,
		"elapsed_ms", elapsed.Milliseconds())
}

// LogExtractionRetry logs the single terminal-constraint retry after an
// extraction run produced no output files
func LogExtractionRetry(url, selector string) {
	if Logger == nil {
		return
	}
	Logger.Warn("extraction produced no output; retrying with terminal constraint",
		"event", "extraction_retry",
		"url", RedactURL(url),
		"selector", selector)
}

// LogExtractionError logs an extraction failure
func LogExtractionError(url string, err error) {
	if Logger == nil {
		return
	}
	Logger.Error("extraction failed",
		"event", "extraction_error",
		"url", RedactURL(url),
		"error", err)
}

// LogScratchCleanup logs scratch-file cleanup failures; cleanup itself is
// best-effort on every exit path
func LogScratchCleanup(path string, err error) {
	if Logger == nil {
		return
	}
	Logger.Warn("scratch cleanup failed",
		"event", "scratch_cleanup_error",
		"path", path,
		"error", err)
}

// LogThumbnailFetch logs a thumbnail fetch
func LogThumbnailFetch(videoID, quality string, bytes int, cached bool, err error) {
	if Logger == nil {
		return
	}
	if err != nil {
		Logger.Error("thumbnail fetch failed",
			"event", "thumbnail_fetch_error",
			"video_id", videoID,
			"quality", quality,
			"error", err)
	} else {
		Logger.Info("thumbnail fetched",
			"event", "thumbnail_fetch",
			"video_id", videoID,
			"quality", quality,
			"bytes", bytes,
			"cached", cached)
	}
}

// LogHistoryWrite logs request-history persistence
func LogHistoryWrite(kind string, err error) {
	if Logger == nil {
		return
	}
	if err != nil {
		Logger.Warn("history write failed",
			"event", "history_write_error",
			"kind", kind,
			"error", err)
		return
	}
	Logger.Debug("history row written",
		"event", "history_write",
		"kind", kind)
}

// LogHTTPRequest logs HTTP request handling
func LogHTTPRequest(method, path, remoteAddr string, duration time.Duration, status int) {
	if Logger == nil {
		return
	}
	Logger.Info("http request",
		"event", "http_request",
		"method", method,
		"path", path,
		"remote_addr", remoteAddr,
		"duration_ms", duration.Milliseconds(),
		"status", status)
}

// LogPanic logs a recovered handler panic
func LogPanic(path string, v any) {
	if Logger == nil {
		return
	}
	Logger.Error("panic recovered",
		"event", "panic",
		"path", path,
		"value", fmt.Sprintf("%v", v))
}

// LogServerStart logs server startup
func LogServerStart(addr string, config map[string]any) {
	if Logger == nil {
		return
	}
	attrs := []any{
		"event", "server_start",
		"addr", addr,
	}
	for k, v := range config {
		attrs = append(attrs, k, v)
	}
	Logger.Info("server started", attrs...)
}

// LogServerShutdown logs server shutdown events
func LogServerShutdown(msg string, err error) {
	if Logger == nil {
		return
	}
	if err != nil {
		Logger.Error(msg,
			"event", "server_shutdown_error",
			"error", err)
	} else {
		Logger.Info(msg,
			"event", "server_shutdown")
	}
}
