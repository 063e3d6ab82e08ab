package server

import (
	"net/url"
	"regexp"
	"strings"
)

// Accepts watch, embed, v, shorts and youtu.be share links, with or
// without a scheme.
var youtubeURLPattern = regexp.MustCompile(`^(https?://)?(www\.|m\.)?(youtube|youtu|youtube-nocookie)\.(com|be)/(watch\?v=|embed/|v/|shorts/|.+\?v=)?([^&=%?]{11})`)

func validYouTubeURL(u string) bool {
	if u == "" || len(u) > 2048 {
		return false
	}
	return youtubeURLPattern.MatchString(u)
}

// videoID extracts the 11-character video identifier from any accepted
// URL shape. Returns "" when no identifier can be found.
func videoID(raw string) string {
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(parsed.Hostname(), "www.")
	host = strings.TrimPrefix(host, "m.")
	switch host {
	case "youtu.be":
		return firstSegment(parsed.Path)
	case "youtube.com", "youtube-nocookie.com":
		if parsed.Path == "/watch" {
			return parsed.Query().Get("v")
		}
		for _, prefix := range []string{"/embed/", "/v/", "/shorts/"} {
			if strings.HasPrefix(parsed.Path, prefix) {
				return firstSegment(strings.TrimPrefix(parsed.Path, prefix))
			}
		}
	}
	return ""
}

func firstSegment(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return p
}
