package format

import (
	"strings"
	"testing"
)

func TestResolve_TerminalIsUnconstrained(t *testing.T) {
	cases := []Quality{
		{Preset: PresetBest},
		{Preset: PresetSlowConnection},
		{Preset: PresetUltraReliable},
		{Explicit: "137"},
	}
	for _, q := range cases {
		ch := Resolve(q)
		if len(ch) == 0 {
			t.Fatalf("Resolve(%+v) returned empty chain", q)
		}
		last := ch[len(ch)-1]
		if !last.Unconstrained() {
			t.Fatalf("Resolve(%+v) terminal = %+v; want unconstrained", q, last)
		}
	}
}

func TestResolve_ExplicitFirstElementMatchesID(t *testing.T) {
	ch := Resolve(Quality{Explicit: "22"})
	if ch[0].FormatID != "22" {
		t.Fatalf("first element FormatID = %q; want %q", ch[0].FormatID, "22")
	}
	if ch[0].MaxHeight != 720 || ch[0].MaxBytes == 0 {
		t.Fatalf("explicit pick not bounded by budget: %+v", ch[0])
	}
	// The rest degrades through the generic best ladder.
	if got, want := len(ch), len(bestLadder)+1; got != want {
		t.Fatalf("chain length = %d; want %d", got, want)
	}
}

func TestResolve_MonotonicStrictness(t *testing.T) {
	best := Resolve(Quality{Preset: PresetBest})
	slow := Resolve(Quality{Preset: PresetSlowConnection})
	ultra := Resolve(Quality{Preset: PresetUltraReliable})

	// At every rank where both chains carry ceilings, the stricter preset
	// must not be more permissive than the looser one.
	check := func(tight, loose Chain, name string) {
		t.Helper()
		n := len(tight)
		if len(loose) < n {
			n = len(loose)
		}
		for i := 0; i < n; i++ {
			tc, lc := tight[i], loose[i]
			if tc.Unconstrained() || lc.Unconstrained() {
				continue
			}
			if tc.MaxHeight > lc.MaxHeight && lc.MaxHeight != 0 {
				t.Fatalf("%s rank %d: height %d > %d", name, i, tc.MaxHeight, lc.MaxHeight)
			}
			if tc.MaxBytes > lc.MaxBytes && lc.MaxBytes != 0 {
				t.Fatalf("%s rank %d: bytes %d > %d", name, i, tc.MaxBytes, lc.MaxBytes)
			}
		}
	}
	check(slow, best, "slow<=best")
	check(ultra, slow, "ultra<=slow")
}

func TestChainSelector(t *testing.T) {
	ch := Resolve(Quality{Preset: PresetBest})
	got := ch.Selector()
	want := "best[height<=720][filesize<=200M]/best[height<=480][filesize<=100M]/best[height<=360][filesize<=50M]/worst"
	if got != want {
		t.Fatalf("selector = %q; want %q", got, want)
	}
	if !strings.HasSuffix(Resolve(Quality{Explicit: "18"}).Selector(), "/worst") {
		t.Fatalf("explicit chain selector must end in /worst")
	}
}

func TestConstraintSelector_HeightOnly(t *testing.T) {
	c := Constraint{MaxHeight: 240}
	if got := c.Selector(); got != "best[height<=240]" {
		t.Fatalf("selector = %q", got)
	}
}

func TestParseQuality(t *testing.T) {
	cases := []struct {
		in      string
		preset  Preset
		explicit string
	}{
		{"best", PresetBest, ""},
		{"", PresetBest, ""},
		{"slow_connection", PresetSlowConnection, ""},
		{"ULTRA_RELIABLE", PresetUltraReliable, ""},
		{"137", "", "137"},
		{" 22 ", "", "22"},
	}
	for _, c := range cases {
		q := ParseQuality(c.in)
		if q.Preset != c.preset || q.Explicit != c.explicit {
			t.Fatalf("ParseQuality(%q) = %+v; want preset=%q explicit=%q", c.in, q, c.preset, c.explicit)
		}
	}
}

func TestEstimateCandidate_PicksFirstUnderCeiling(t *testing.T) {
	streams := []Stream{
		{FormatID: "hi", Height: 1080, VideoCodec: "avc1", Bytes: 300 << 20},
		{FormatID: "lo", Height: 480, VideoCodec: "avc1", Bytes: 40 << 20},
	}
	ch := Resolve(Quality{Preset: PresetBest})
	got, ok := EstimateCandidate(ch, streams)
	if !ok {
		t.Fatalf("expected a candidate")
	}
	if got.FormatID != "lo" {
		t.Fatalf("candidate = %q; want %q (first under 720 ceiling)", got.FormatID, "lo")
	}
}

func TestEstimateCandidate_NothingFitsReturnsLowest(t *testing.T) {
	streams := []Stream{
		{FormatID: "a", Height: 2160, VideoCodec: "vp9"},
		{FormatID: "b", Height: 1440, VideoCodec: "vp9"},
	}
	got, ok := EstimateCandidate(Resolve(Quality{Preset: PresetUltraReliable}), streams)
	if !ok || got.FormatID != "b" {
		t.Fatalf("candidate = %+v ok=%v; want lowest-height fallback", got, ok)
	}
}

func TestEstimateCandidate_IgnoresAudioAndUnknownHeight(t *testing.T) {
	streams := []Stream{
		{FormatID: "audio", AudioCodec: "opus", VideoCodec: "none"},
		{FormatID: "noheight", VideoCodec: "avc1"},
	}
	if _, ok := EstimateCandidate(Resolve(Quality{Preset: PresetBest}), streams); ok {
		t.Fatalf("expected no candidate from audio-only / unknown-height streams")
	}
}

func TestVideoCandidates_SortedDescending(t *testing.T) {
	streams := []Stream{
		{FormatID: "a", Height: 360, VideoCodec: "avc1"},
		{FormatID: "b", Height: 1080, VideoCodec: "avc1"},
		{FormatID: "c", Height: 720, VideoCodec: "avc1"},
	}
	got := VideoCandidates(streams)
	if len(got) != 3 || got[0].Height != 1080 || got[2].Height != 360 {
		t.Fatalf("candidates not sorted descending: %+v", got)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		streams []Stream
		want    Plan
	}{
		{"small", []Stream{{Bytes: 10 << 20}, {Bytes: 50 << 20}}, PlanBuffered},
		{"at threshold", []Stream{{Bytes: StreamThreshold}}, PlanBuffered},
		{"large", []Stream{{Bytes: 10 << 20}, {Bytes: 150 << 20}}, PlanStreamed},
		{"unknown", []Stream{{}, {}}, PlanStreamed},
		{"empty", nil, PlanStreamed},
	}
	for _, c := range cases {
		if got := Classify(c.streams); got != c.want {
			t.Fatalf("%s: Classify = %q; want %q", c.name, got, c.want)
		}
	}
}

func TestAudioBitrate(t *testing.T) {
	cases := map[string]int{
		"best":    192,
		"good":    128,
		"medium":  96,
		"":        192,
		"unknown": 192,
	}
	for in, want := range cases {
		if got := AudioBitrate(in); got != want {
			t.Fatalf("AudioBitrate(%q) = %d; want %d", in, got, want)
		}
	}
}
