package ytdlp

import (
	"errors"
	"strings"
	"testing"

	"vidgrab/internal/download"
)

func TestParseInfo(t *testing.T) {
	raw := []byte(`{
		"id": "dQw4w9WgXcQ",
		"title": "Test Video",
		"uploader": "Test Channel",
		"duration": 213.4,
		"view_count": 1234567,
		"upload_date": "20091025",
		"description": "A test.",
		"thumbnail": "https://i.ytimg.com/vi/dQw4w9WgXcQ/maxresdefault.jpg",
		"formats": [
			{"format_id": "18", "height": 360, "fps": 30, "ext": "mp4", "filesize": 10485760, "vcodec": "avc1", "acodec": "mp4a"},
			{"format_id": "22", "height": 720, "fps": 30, "ext": "mp4", "filesize_approx": 52428800, "vcodec": "avc1", "acodec": "mp4a"},
			{"format_id": "251", "ext": "webm", "filesize": 3145728, "vcodec": "none", "acodec": "opus"}
		]
	}`)
	info, err := parseInfo(raw)
	if err != nil {
		t.Fatalf("parseInfo: %v", err)
	}
	if info.Title != "Test Video" || info.Author != "Test Channel" {
		t.Fatalf("title/author = %q/%q", info.Title, info.Author)
	}
	if info.DurationSec != 213 {
		t.Fatalf("duration = %d; want 213", info.DurationSec)
	}
	if info.PublishDate != "2009-10-25" {
		t.Fatalf("publish date = %q; want 2009-10-25", info.PublishDate)
	}
	if len(info.Streams) != 3 {
		t.Fatalf("streams = %d; want 3", len(info.Streams))
	}
	// filesize_approx fills in when filesize is absent
	if info.Streams[1].Bytes != 52428800 {
		t.Fatalf("approx size not used: %d", info.Streams[1].Bytes)
	}
	if info.Streams[2].HasVideo() {
		t.Fatalf("audio-only stream reported a video track")
	}
}

func TestParseInfo_Malformed(t *testing.T) {
	if _, err := parseInfo([]byte("not json")); !errors.Is(err, download.ErrExtractionFailed) {
		t.Fatalf("err = %v; want ErrExtractionFailed", err)
	}
}

func TestClassifyToolError_Unavailable(t *testing.T) {
	cases := []string{
		"ERROR: [youtube] abc: Private video. Sign in if you've been granted access",
		"ERROR: [youtube] abc: Video unavailable",
		"ERROR: This video is not available",
		"ERROR: [youtube] abc: This video has been removed by the uploader",
	}
	for _, c := range cases {
		if err := classifyToolError(c); !errors.Is(err, download.ErrVideoUnavailable) {
			t.Fatalf("classifyToolError(%q) = %v; want ErrVideoUnavailable", c, err)
		}
	}
}

func TestClassifyToolError_Other(t *testing.T) {
	err := classifyToolError("ERROR: unable to download webpage")
	if !errors.Is(err, download.ErrExtractionFailed) {
		t.Fatalf("err = %v; want ErrExtractionFailed", err)
	}
}

func TestBuildArgs_Video(t *testing.T) {
	req := download.Request{
		URL:      "https://www.youtube.com/watch?v=abc",
		Selector: "best[height<=720]/worst",
	}
	args := buildArgs(req, "/tmp/vidgrab-x.%(ext)s")
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-f best[height<=720]/worst") {
		t.Fatalf("selector missing: %v", args)
	}
	if args[len(args)-1] != req.URL {
		t.Fatalf("URL must be the final argument, got %q", args[len(args)-1])
	}
	if strings.Contains(joined, "-x") {
		t.Fatalf("video request must not extract audio: %v", args)
	}
}

func TestBuildArgs_Audio(t *testing.T) {
	req := download.Request{
		URL:           "https://www.youtube.com/watch?v=abc",
		Selector:      "bestaudio/worst",
		AudioOnly:     true,
		AudioBitrateK: 128,
	}
	args := buildArgs(req, "-")
	joined := strings.Join(args, " ")
	for _, want := range []string{"-x", "--audio-format mp3", "--audio-quality 128K", "-o -"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in %v", want, args)
		}
	}
}

func TestFormatUploadDate_PassThrough(t *testing.T) {
	if got := formatUploadDate("unknown"); got != "unknown" {
		t.Fatalf("got %q", got)
	}
}

func TestNew_DefaultBin(t *testing.T) {
	if c := New(""); c.bin != DefaultBin {
		t.Fatalf("bin = %q; want %q", c.bin, DefaultBin)
	}
}
