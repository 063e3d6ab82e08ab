package ui

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"

	"vidgrab/internal/store"
)

// Index renders the landing page: the URL form plus recent request history.
func Index(recent []store.Record) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8"/>
<meta name="viewport" content="width=device-width, initial-scale=1"/>
<title>vidgrab</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 56rem; margin: 2rem auto; padding: 0 1rem; }
form { display: flex; gap: .5rem; margin-bottom: 2rem; }
input[type=url] { flex: 1; padding: .5rem; }
table { width: 100%; border-collapse: collapse; }
th, td { text-align: left; padding: .35rem .5rem; border-bottom: 1px solid #ddd; }
.status-error { color: #b00020; }
.status-ok { color: #1b5e20; }
</style>
</head>
<body>
<h1>vidgrab</h1>
<form method="post" action="/get_video_info">
<input type="url" name="url" placeholder="Paste a YouTube URL" required/>
<button type="submit">Analyze</button>
</form>
`); err != nil {
			return err
		}
		if err := HistoryTable(recent).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</body>\n</html>\n")
		return err
	})
}

// HistoryTable renders recent request outcomes.
func HistoryTable(recent []store.Record) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(recent) == 0 {
			_, err := io.WriteString(w, "<p>No downloads yet.</p>\n")
			return err
		}
		if _, err := io.WriteString(w, "<h2>Recent downloads</h2>\n<table>\n<tr><th>Kind</th><th>Title</th><th>Quality</th><th>Size</th><th>Status</th></tr>\n"); err != nil {
			return err
		}
		for _, r := range recent {
			title := r.Title
			if title == "" {
				title = r.URL
			}
			size := ""
			if r.Bytes > 0 {
				size = humanize.Bytes(uint64(r.Bytes))
			}
			row := fmt.Sprintf(
				"<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td class=\"status-%s\">%s</td></tr>\n",
				templ.EscapeString(r.Kind),
				templ.EscapeString(truncateTitle(title, 60)),
				templ.EscapeString(r.Quality),
				templ.EscapeString(size),
				templ.EscapeString(r.Status),
				templ.EscapeString(r.Status),
			)
			if _, err := io.WriteString(w, row); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</table>\n")
		return err
	})
}

// truncateTitle caps a history title for table display, marking the cut
// with an ellipsis. Counts runes so multibyte titles are not split.
func truncateTitle(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
