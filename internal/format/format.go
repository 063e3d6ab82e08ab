// Package format implements quality-preset resolution: mapping a
// caller-selected preset to an ordered fallback chain of format
// constraints, and classifying the likely payload for delivery.
package format

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Preset is a named, caller-selectable quality/reliability tier.
type Preset string

const (
	PresetBest           Preset = "best"
	PresetSlowConnection Preset = "slow_connection"
	PresetUltraReliable  Preset = "ultra_reliable"
)

// Quality is a parsed format_id request parameter: either a named preset
// or an explicit format identifier.
type Quality struct {
	Preset   Preset
	Explicit string // non-empty when the caller named a concrete format
}

// ParseQuality maps the raw format_id value to a Quality. Unknown values
// are treated as explicit format identifiers, not errors; the resolver
// still bounds them by the platform's size/time budget.
func ParseQuality(formatID string) Quality {
	switch Preset(strings.ToLower(strings.TrimSpace(formatID))) {
	case PresetBest, "":
		return Quality{Preset: PresetBest}
	case PresetSlowConnection:
		return Quality{Preset: PresetSlowConnection}
	case PresetUltraReliable:
		return Quality{Preset: PresetUltraReliable}
	default:
		return Quality{Explicit: strings.TrimSpace(formatID)}
	}
}

const (
	megabyte = 1 << 20

	// StreamThreshold is the estimated payload size above which delivery
	// switches from buffer-then-send to chunked streaming.
	StreamThreshold int64 = 100 * megabyte
)

// Constraint bounds one attempt at selecting a concrete rendition.
// Zero values mean "no ceiling"; a fully zero Constraint matches the
// worst available rendition and therefore never fails.
type Constraint struct {
	FormatID  string // explicit format match, optional
	MaxHeight int    // pixels, 0 = unconstrained
	MaxBytes  int64  // 0 = unconstrained
}

// Unconstrained reports whether the constraint carries no ceilings at all.
func (c Constraint) Unconstrained() bool {
	return c.FormatID == "" && c.MaxHeight == 0 && c.MaxBytes == 0
}

// Selector renders the constraint as a yt-dlp format selector.
func (c Constraint) Selector() string {
	if c.Unconstrained() {
		return "worst"
	}
	var b strings.Builder
	if c.FormatID != "" {
		b.WriteString(c.FormatID)
	} else {
		b.WriteString("best")
	}
	if c.MaxHeight > 0 {
		fmt.Fprintf(&b, "[height<=%d]", c.MaxHeight)
	}
	if c.MaxBytes > 0 {
		fmt.Fprintf(&b, "[filesize<=%dM]", c.MaxBytes/megabyte)
	}
	return b.String()
}

// Chain is an ordered fallback sequence of constraints, evaluated
// first-to-last. The last element is always unconstrained so resolution
// cannot fail for lack of a match.
type Chain []Constraint

// Selector renders the whole chain as a single yt-dlp selector; the tool
// attempts alternatives left to right.
func (ch Chain) Selector() string {
	parts := make([]string, 0, len(ch))
	for _, c := range ch {
		parts = append(parts, c.Selector())
	}
	return strings.Join(parts, "/")
}

// Terminal returns the chain's least-constrained element, used for the
// single retry after an empty extraction.
func (ch Chain) Terminal() Constraint {
	if len(ch) == 0 {
		return Constraint{}
	}
	return ch[len(ch)-1]
}

// Preset ladders. Ceilings were chosen against the download time budget:
// raising them causes timeouts on slow links.
var (
	bestLadder = Chain{
		{MaxHeight: 720, MaxBytes: 200 * megabyte},
		{MaxHeight: 480, MaxBytes: 100 * megabyte},
		{MaxHeight: 360, MaxBytes: 50 * megabyte},
		{},
	}
	slowLadder = Chain{
		{MaxHeight: 480, MaxBytes: 80 * megabyte},
		{MaxHeight: 360, MaxBytes: 40 * megabyte},
		{MaxHeight: 240},
		{},
	}
	ultraLadder = Chain{
		{MaxHeight: 360, MaxBytes: 30 * megabyte},
		{},
	}
)

// Resolve maps a quality request to its fallback chain. The returned
// chain is never empty and always terminates in an unconstrained element.
func Resolve(q Quality) Chain {
	if q.Explicit != "" {
		out := make(Chain, 0, len(bestLadder)+1)
		out = append(out, Constraint{FormatID: q.Explicit, MaxHeight: 720, MaxBytes: 200 * megabyte})
		out = append(out, bestLadder...)
		return out
	}
	switch q.Preset {
	case PresetSlowConnection:
		return append(Chain(nil), slowLadder...)
	case PresetUltraReliable:
		return append(Chain(nil), ultraLadder...)
	default:
		return append(Chain(nil), bestLadder...)
	}
}

// Stream describes one encoded rendition available for a source video.
// One set is fetched per request and discarded after the response.
type Stream struct {
	FormatID   string
	Height     int   // 0 = unknown
	FPS        int   // 0 = unknown
	Ext        string
	Bytes      int64 // estimated, 0 = unknown
	VideoCodec string
	AudioCodec string
}

// HasVideo reports whether the rendition carries a video track.
func (s Stream) HasVideo() bool {
	return s.VideoCodec != "" && s.VideoCodec != "none"
}

// HasAudio reports whether the rendition carries an audio track.
func (s Stream) HasAudio() bool {
	return s.AudioCodec != "" && s.AudioCodec != "none"
}

// VideoCandidates filters to renditions with a video codec and a known
// height, sorted descending by height (then FPS).
func VideoCandidates(streams []Stream) []Stream {
	out := lo.Filter(streams, func(s Stream, _ int) bool {
		return s.HasVideo() && s.Height > 0
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Height != out[j].Height {
			return out[i].Height > out[j].Height
		}
		return out[i].FPS > out[j].FPS
	})
	return out
}

// AudioCandidates filters to audio-only renditions.
func AudioCandidates(streams []Stream) []Stream {
	return lo.Filter(streams, func(s Stream, _ int) bool {
		return s.HasAudio() && !s.HasVideo()
	})
}

// EstimateCandidate selects the rendition whose size estimate is shown to
// the user before committing to a download: the highest candidate under
// the chain's leading height ceiling, or the overall lowest candidate
// when nothing fits.
func EstimateCandidate(ch Chain, streams []Stream) (Stream, bool) {
	cands := VideoCandidates(streams)
	if len(cands) == 0 {
		return Stream{}, false
	}
	ceiling := 0
	if len(ch) > 0 {
		ceiling = ch[0].MaxHeight
	}
	for _, s := range cands {
		if ceiling == 0 || s.Height <= ceiling {
			return s, true
		}
	}
	return cands[len(cands)-1], true
}

// Plan selects the delivery strategy for a resolved download.
type Plan string

const (
	PlanBuffered Plan = "buffered" // write to scratch, send whole file
	PlanStreamed Plan = "streamed" // forward bytes as produced
)

// Classify derives the delivery plan from the largest size estimate among
// the given streams. Unknown sizes classify as streamed: the chunked path
// never holds an unbounded payload in memory and is not subject to the
// buffered wall-clock budget.
func Classify(streams []Stream) Plan {
	maxBytes := int64(0)
	for _, s := range streams {
		if s.Bytes > maxBytes {
			maxBytes = s.Bytes
		}
	}
	if maxBytes == 0 || maxBytes > StreamThreshold {
		return PlanStreamed
	}
	return PlanBuffered
}
