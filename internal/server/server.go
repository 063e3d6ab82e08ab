package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"vidgrab/internal/download"
	"vidgrab/internal/format"
	"vidgrab/internal/logging"
	"vidgrab/internal/store"
	"vidgrab/internal/thumb"
	"vidgrab/internal/ui"
)

// Providers bundles the capabilities the HTTP surface needs. The
// metadata and extraction implementations are chosen at process start,
// never inside a handler.
type Providers struct {
	Meta       download.MetadataProvider
	Dispatcher *download.Dispatcher
	Thumbs     *thumb.Fetcher
}

type rateLimiter interface {
	Allow(key string) bool
}

// metadataTimeout bounds the yt-dlp probe so a hung probe surfaces as a
// timeout instead of stalling the request until the client gives up.
const metadataTimeout = 10 * time.Second

func fetchInfo(ctx context.Context, meta download.MetadataProvider, url string) (*download.VideoInfo, error) {
	mctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	return meta.FetchInfo(mctx, url)
}

// New returns an http.Handler with routes and middleware wired.
// A nil store disables history persistence and the history listing.
func New(p Providers, st *store.Store) http.Handler {
	rl := newIPRateLimiter(60, time.Minute) // 60 req/min/IP
	mux := http.NewServeMux()

	mux.HandleFunc("/get_video_info", with(rl, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		if err := r.ParseForm(); err != nil {
			writeError(w, download.ErrInvalidInput)
			return
		}
		u := strings.TrimSpace(r.Form.Get("url"))
		if !validYouTubeURL(u) {
			writeError(w, download.ErrInvalidInput)
			return
		}
		info, err := fetchInfo(r.Context(), p.Meta, u)
		if err != nil {
			writeError(w, err)
			return
		}
		if len(info.Streams) == 0 {
			writeError(w, download.ErrNoFormats)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":    true,
			"video_info": buildVideoInfo(p.Thumbs, u, info),
		})
	}))

	mux.HandleFunc("/download_thumbnail", with(rl, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		u := strings.TrimSpace(r.URL.Query().Get("url"))
		if !validYouTubeURL(u) {
			writeError(w, download.ErrInvalidInput)
			return
		}
		id := videoID(u)
		if id == "" {
			writeError(w, download.ErrInvalidInput)
			return
		}
		quality := r.URL.Query().Get("quality")
		data, filename, err := p.Thumbs.Fetch(r.Context(), id, quality)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		_, _ = w.Write(data)
	}))

	mux.HandleFunc("/download_video", with(rl, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		handleVideoDownload(w, r, p, st)
	}))

	mux.HandleFunc("/download_audio", with(rl, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		handleAudioDownload(w, r, p, st)
	}))

	if st != nil {
		mux.HandleFunc("/api/history", with(rl, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			q := r.URL.Query()
			f := store.ListFilter{Kind: q.Get("kind"), Status: q.Get("status")}
			if lim := q.Get("limit"); lim != "" {
				if n, err := strconv.Atoi(lim); err == nil {
					f.Limit = n
				}
			}
			rows, err := st.List(r.Context(), f)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "history": rows})
		}))
	}

	// Landing page: URL form plus recent history.
	mux.HandleFunc("/", with(rl, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("not found"))
			return
		}
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		var recent []store.Record
		if st != nil {
			if rows, err := st.List(r.Context(), store.ListFilter{Limit: 20}); err == nil {
				recent = rows
			}
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = ui.Index(recent).Render(context.Background(), w)
	}))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return recoverer(logger(mux))
}

// streamEntry is one selectable rendition in the video info response.
type streamEntry struct {
	FormatID    string  `json:"format_id"`
	Resolution  string  `json:"resolution"`
	FPS         int     `json:"fps"`
	Filesize    int64   `json:"filesize"`
	FilesizeMB  float64 `json:"filesize_mb"`
	Ext         string  `json:"ext"`
	Recommended bool    `json:"recommended"`
}

func buildVideoInfo(thumbs *thumb.Fetcher, rawURL string, info *download.VideoInfo) map[string]any {
	id := videoID(rawURL)
	if id == "" {
		id = info.ID
	}
	thumbnails := map[string]string{}
	for _, q := range []string{"default", "high", "medium", "standard", "maxres"} {
		thumbnails[q] = thumbs.URLFor(id, q)
	}
	if info.ThumbnailURL != "" {
		thumbnails["default"] = info.ThumbnailURL
	}

	chain := format.Resolve(format.Quality{Preset: format.PresetBest})
	recommended, haveRec := format.EstimateCandidate(chain, info.Streams)

	cands := format.VideoCandidates(info.Streams)
	entries := make([]streamEntry, 0, len(cands)+1)
	for _, s := range cands {
		entries = append(entries, streamEntry{
			FormatID:    s.FormatID,
			Resolution:  fmt.Sprintf("%dp", s.Height),
			FPS:         s.FPS,
			Filesize:    s.Bytes,
			FilesizeMB:  roundMB(s.Bytes),
			Ext:         s.Ext,
			Recommended: haveRec && s.FormatID == recommended.FormatID,
		})
	}
	// Synthetic entry the front end renders as the reliable low-bandwidth
	// choice; it maps to the slow_connection preset on download.
	entries = append(entries, streamEntry{
		FormatID:   string(format.PresetSlowConnection),
		Resolution: "480p",
		Ext:        "mp4",
	})

	return map[string]any{
		"title":         info.Title,
		"author":        info.Author,
		"duration_str":  formatDuration(info.DurationSec),
		"views":         info.Views,
		"publish_date":  info.PublishDate,
		"description":   info.Description,
		"thumbnails":    thumbnails,
		"video_streams": entries,
	}
}

func handleVideoDownload(w http.ResponseWriter, r *http.Request, p Providers, st *store.Store) {
	q := r.URL.Query()
	u := strings.TrimSpace(q.Get("url"))
	if !validYouTubeURL(u) {
		writeError(w, download.ErrInvalidInput)
		return
	}
	formatID := q.Get("format_id")
	chain := format.Resolve(format.ParseQuality(formatID))

	started := time.Now()
	info, err := fetchInfo(r.Context(), p.Meta, u)
	if err != nil {
		recordHistory(r.Context(), st, "video", u, formatID, "", 0, started, err)
		writeError(w, err)
		return
	}
	if len(info.Streams) == 0 {
		recordHistory(r.Context(), st, "video", u, formatID, info.Title, 0, started, download.ErrNoFormats)
		writeError(w, download.ErrNoFormats)
		return
	}

	plan := format.Classify(format.VideoCandidates(info.Streams))
	logging.LogResolve(u, formatID, chain.Selector(), string(plan))
	req := download.Request{URL: u}
	baseName := info.Title
	if baseName == "" {
		baseName = "video"
	}

	if plan == format.PlanBuffered {
		res, err := p.Dispatcher.Buffered(r.Context(), chain, req, baseName)
		if err != nil {
			logging.LogExtractionError(u, err)
			recordHistory(r.Context(), st, "video", u, formatID, info.Title, 0, started, err)
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", res.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
		w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
		_, _ = w.Write(res.Data)
		recordHistory(r.Context(), st, "video", u, formatID, info.Title, int64(len(res.Data)), started, nil)
		return
	}

	// Streamed delivery commits headers before extraction finishes;
	// mid-stream failures surface to the client as a truncated body.
	name := download.SanitizeFilename(baseName)
	if name == "" {
		name = "video"
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".mp4"))
	if err := p.Dispatcher.Stream(r.Context(), chain, req, flushWriter{w}); err != nil {
		logging.LogExtractionError(u, err)
		recordHistory(r.Context(), st, "video", u, formatID, info.Title, 0, started, err)
		return
	}
	recordHistory(r.Context(), st, "video", u, formatID, info.Title, 0, started, nil)
}

func handleAudioDownload(w http.ResponseWriter, r *http.Request, p Providers, st *store.Store) {
	q := r.URL.Query()
	u := strings.TrimSpace(q.Get("url"))
	if !validYouTubeURL(u) {
		writeError(w, download.ErrInvalidInput)
		return
	}
	formatID := q.Get("format_id")
	bitrate := format.AudioBitrate(formatID)

	started := time.Now()
	info, err := fetchInfo(r.Context(), p.Meta, u)
	if err != nil {
		recordHistory(r.Context(), st, "audio", u, formatID, "", 0, started, err)
		writeError(w, err)
		return
	}

	// Audio extractions are small enough to always buffer.
	chain := format.Chain{{FormatID: "bestaudio"}, {}}
	req := download.Request{URL: u, AudioOnly: true, AudioBitrateK: bitrate}
	baseName := info.Title
	if baseName == "" {
		baseName = "audio"
	}
	res, err := p.Dispatcher.Buffered(r.Context(), chain, req, baseName)
	if err != nil {
		logging.LogExtractionError(u, err)
		recordHistory(r.Context(), st, "audio", u, formatID, info.Title, 0, started, err)
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	_, _ = w.Write(res.Data)
	recordHistory(r.Context(), st, "audio", u, formatID, info.Title, int64(len(res.Data)), started, nil)
}

// recordHistory persists one terminal outcome row; a nil store is a no-op.
func recordHistory(ctx context.Context, st *store.Store, kind, url, quality, title string, bytes int64, started time.Time, cause error) {
	if st == nil {
		return
	}
	rec := store.Record{
		Kind:      kind,
		URL:       url,
		Quality:   quality,
		Title:     title,
		Status:    "ok",
		Bytes:     bytes,
		ElapsedMS: time.Since(started).Milliseconds(),
	}
	if cause != nil {
		rec.Status = "error"
		rec.Error = cause.Error()
	}
	_, err := st.Add(ctx, rec)
	logging.LogHistoryWrite(kind, err)
}

// Utilities

func formatDuration(sec int64) string {
	if sec <= 0 {
		return "Unknown"
	}
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func roundMB(b int64) float64 {
	if b <= 0 {
		return 0
	}
	return math.Round(float64(b)/(1<<20)*100) / 100
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError converts a taxonomy error into the JSON error shape. The
// messages are user-facing, never raw tool output.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, download.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errBody("Invalid YouTube URL", "enter a full YouTube video link"))
	case errors.Is(err, download.ErrVideoUnavailable):
		writeJSON(w, http.StatusNotFound, errBody("This video is unavailable. It might be private or removed.", ""))
	case errors.Is(err, download.ErrTimeout):
		writeJSON(w, http.StatusRequestTimeout, errBody("Download exceeded the timeout budget", "try a smaller video or different quality"))
	case errors.Is(err, download.ErrNoFormats):
		writeJSON(w, http.StatusBadRequest, errBody("No downloadable formats were found for this video", ""))
	case errors.Is(err, download.ErrExtractionFailed):
		writeJSON(w, http.StatusBadRequest, errBody("Download failed", "try a smaller video or different quality"))
	default:
		writeJSON(w, http.StatusInternalServerError, errBody("An internal error occurred", ""))
	}
}

func errBody(msg, suggestion string) map[string]any {
	b := map[string]any{"error": msg}
	if suggestion != "" {
		b["suggestion"] = suggestion
	}
	return b
}

// flushWriter flushes after every chunk so streamed bytes reach the
// client as they are produced.
type flushWriter struct {
	w http.ResponseWriter
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if f, ok := fw.w.(http.Flusher); ok {
		f.Flush()
	}
	return n, err
}

// Middleware

func with(rl rateLimiter, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.Allow(ip) {
			writeJSON(w, http.StatusTooManyRequests, errBody("Too many requests", "slow down and retry shortly"))
			return
		}
		h(w, r)
	}
}

func logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		logging.LogHTTPRequest(r.Method, r.URL.Path, clientIP(r), time.Since(start), sw.status)
	})
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logging.LogPanic(r.URL.Path, v)
				writeJSON(w, http.StatusInternalServerError, errBody("An internal error occurred", ""))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if sw.status == 0 {
		sw.status = http.StatusOK
	}
	return sw.ResponseWriter.Write(b)
}

func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func clientIP(r *http.Request) string {
	// Respect common proxy headers, then fall back to RemoteAddr
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xr := r.Header.Get("X-Real-IP"); xr != "" {
		return strings.TrimSpace(xr)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// Simple token bucket per IP with fixed refill interval and capacity.
type ipRateLimiter struct {
	cap     int
	refill  time.Duration
	buckets map[string]*bucket
	// protect buckets
	mu sync.Mutex
}

type bucket struct {
	tokens int
	last   time.Time
}

func newIPRateLimiter(cap int, refill time.Duration) *ipRateLimiter {
	return &ipRateLimiter{cap: cap, refill: refill, buckets: make(map[string]*bucket)}
}

func (rl *ipRateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	b := rl.buckets[key]
	if b == nil {
		b = &bucket{tokens: rl.cap - 1, last: now}
		rl.buckets[key] = b
		return true
	}
	// refill if interval passed
	if d := now.Sub(b.last); d >= rl.refill {
		// reset once per interval
		b.tokens = rl.cap
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}
