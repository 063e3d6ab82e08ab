package format

import "strings"

// Audio bitrate tiers exposed through the download_audio endpoint.
const (
	AudioBitrateBest   = 192 // kbps
	AudioBitrateGood   = 128
	AudioBitrateMedium = 96
)

// AudioBitrate maps the audio format_id parameter to an MP3 bitrate in
// kbps. Unknown values fall back to the best tier.
func AudioBitrate(formatID string) int {
	switch strings.ToLower(strings.TrimSpace(formatID)) {
	case "good":
		return AudioBitrateGood
	case "medium":
		return AudioBitrateMedium
	default:
		return AudioBitrateBest
	}
}
