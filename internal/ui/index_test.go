package ui

import (
	"context"
	"strings"
	"testing"
	"time"

	"vidgrab/internal/store"
)

func TestTruncateTitle(t *testing.T) {
	if got := truncateTitle("hello", 10); got != "hello" {
		t.Fatalf("got %q", got)
	}
	if got := truncateTitle("hello world", 5); got != "hello…" {
		t.Fatalf("got %q", got)
	}
	if got := truncateTitle("anything", 0); got != "" {
		t.Fatalf("got %q", got)
	}
	if got := truncateTitle("héllo wörld", 7); got != "héllo w…" {
		t.Fatalf("rune truncation: %q", got)
	}
}

func TestIndex_RendersHistoryRows(t *testing.T) {
	recent := []store.Record{
		{Kind: "video", URL: "https://youtu.be/abc", Title: "A <b>Bold</b> Title", Quality: "best", Status: "ok", Bytes: 1 << 20, CreatedAt: time.Now()},
	}
	var sb strings.Builder
	if err := Index(recent).Render(context.Background(), &sb); err != nil {
		t.Fatalf("render: %v", err)
	}
	html := sb.String()
	if !strings.Contains(html, "Recent downloads") {
		t.Fatalf("missing history section:\n%s", html)
	}
	if strings.Contains(html, "<b>Bold</b>") {
		t.Fatalf("title not escaped:\n%s", html)
	}
	if !strings.Contains(html, "1.0 MB") {
		t.Fatalf("size not humanized:\n%s", html)
	}
}

func TestIndex_EmptyHistory(t *testing.T) {
	var sb strings.Builder
	if err := Index(nil).Render(context.Background(), &sb); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(sb.String(), "No downloads yet") {
		t.Fatalf("missing empty state")
	}
}
