package ads

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewPlaybackState_empty_groups(t *testing.T) {
	p := NewPlaybackState([]int64{0, 15_000_000, TimeEndOfSource})

	if len(p.Groups) != 3 {
		t.Fatalf("groups: got %d want 3", len(p.Groups))
	}
	for i, g := range p.Groups {
		if g.Count != CountUnset {
			t.Errorf("group %d count: got %d want CountUnset", i, g.Count)
		}
		if len(g.States) != 0 {
			t.Errorf("group %d states: got %d want 0", i, len(g.States))
		}
	}
	if p.ContentDurationUs != TimeUnset {
		t.Errorf("content duration: got %d want TimeUnset", p.ContentDurationUs)
	}
}

func TestPlaybackState_WithAdCount_raise_only(t *testing.T) {
	p := NewPlaybackState([]int64{0})
	p = p.WithAdCount(0, 3)
	if p.Groups[0].Count != 3 {
		t.Fatalf("count: got %d want 3", p.Groups[0].Count)
	}

	// A lower count from a later pod callback never shrinks the group.
	p = p.WithAdCount(0, 2)
	if p.Groups[0].Count != 3 {
		t.Errorf("count after lower request: got %d want 3", p.Groups[0].Count)
	}

	p = p.WithAdCount(0, 5)
	if p.Groups[0].Count != 5 {
		t.Errorf("count after raise: got %d want 5", p.Groups[0].Count)
	}
}

func TestPlaybackState_WithAdURI_only_from_unavailable(t *testing.T) {
	p := NewPlaybackState([]int64{0})
	p = p.WithAdURI(0, 0, "https://ads.example/a.mp4")

	if p.Groups[0].States[0] != AdStateAvailable {
		t.Fatalf("state: got %v want available", p.Groups[0].States[0])
	}
	if p.Groups[0].URIs[0] != "https://ads.example/a.mp4" {
		t.Errorf("uri: got %q", p.Groups[0].URIs[0])
	}

	played := p.WithPlayedAd(0, 0)
	same := played.WithAdURI(0, 0, "https://ads.example/b.mp4")
	if diff := cmp.Diff(played, same); diff != "" {
		t.Errorf("WithAdURI on played ad changed snapshot (-want +got):\n%s", diff)
	}
}

func TestPlaybackState_terminal_states_sticky(t *testing.T) {
	p := NewPlaybackState([]int64{0}).WithAdURI(0, 0, "u")

	played := p.WithPlayedAd(0, 0)
	if got := played.WithSkippedAd(0, 0).Groups[0].States[0]; got != AdStatePlayed {
		t.Errorf("played then skipped: got %v want played", got)
	}
	if got := played.WithAdLoadError(0, 0).Groups[0].States[0]; got != AdStatePlayed {
		t.Errorf("played then error: got %v want played", got)
	}

	errored := p.WithAdLoadError(0, 0)
	if got := errored.WithPlayedAd(0, 0).Groups[0].States[0]; got != AdStateError {
		t.Errorf("error then played: got %v want error", got)
	}
}

func TestPlaybackState_WithSkippedGroup_unknown_count(t *testing.T) {
	p := NewPlaybackState([]int64{0, 30_000_000})
	p = p.WithSkippedGroup(1)

	g := p.Groups[1]
	if g.Count != 1 {
		t.Fatalf("count: got %d want 1", g.Count)
	}
	if g.States[0] != AdStateSkipped {
		t.Errorf("state: got %v want skipped", g.States[0])
	}
	if g.HasUnplayedAds() {
		t.Error("skipped group should have no unplayed ads")
	}
}

func TestPlaybackState_WithSkippedGroup_keeps_terminal_states(t *testing.T) {
	p := NewPlaybackState([]int64{0}).
		WithAdCount(0, 3).
		WithAdURI(0, 0, "u0").
		WithPlayedAd(0, 0).
		WithAdURI(0, 1, "u1")
	p = p.WithSkippedGroup(0)

	want := []AdState{AdStatePlayed, AdStateSkipped, AdStateSkipped}
	if diff := cmp.Diff(want, p.Groups[0].States); diff != "" {
		t.Errorf("states (-want +got):\n%s", diff)
	}
}

func TestPlaybackState_WithGroupLoadError_idempotent(t *testing.T) {
	p := NewPlaybackState([]int64{0}).
		WithAdCount(0, 2).
		WithAdURI(0, 0, "u0")

	once := p.WithGroupLoadError(0)
	twice := once.WithGroupLoadError(0)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second WithGroupLoadError changed snapshot (-want +got):\n%s", diff)
	}

	// The available ad survives; only unavailable slots fail.
	if once.Groups[0].States[0] != AdStateAvailable {
		t.Errorf("ad 0: got %v want available", once.Groups[0].States[0])
	}
	if once.Groups[0].States[1] != AdStateError {
		t.Errorf("ad 1: got %v want error", once.Groups[0].States[1])
	}
}

func TestPlaybackState_snapshots_do_not_alias(t *testing.T) {
	before := NewPlaybackState([]int64{0}).WithAdCount(0, 1)
	after := before.WithAdURI(0, 0, "u")

	if len(before.Groups[0].States) != 0 {
		t.Error("input snapshot gained revealed slots")
	}
	if after.Groups[0].States[0] != AdStateAvailable {
		t.Error("output snapshot missing the update")
	}
}

func TestPlaybackState_GroupIndexForPositionUs(t *testing.T) {
	p := NewPlaybackState([]int64{0, 20_000_000, TimeEndOfSource})
	durationUs := int64(60_000_000)

	if got := p.GroupIndexForPositionUs(0, durationUs); got != 0 {
		t.Errorf("at zero: got %d want 0", got)
	}
	if got := p.GroupIndexForPositionUs(25_000_000, durationUs); got != 1 {
		t.Errorf("past midroll: got %d want 1", got)
	}
	if got := p.GroupIndexForPositionUs(60_000_000, durationUs); got != 2 {
		t.Errorf("at duration: got %d want 2 (postroll)", got)
	}
	if got := p.GroupIndexForPositionUs(59_000_000, durationUs); got != 1 {
		t.Errorf("before duration: got %d want 1", got)
	}

	// Resolved groups stop matching.
	resolved := p.WithSkippedGroup(1)
	if got := resolved.GroupIndexForPositionUs(25_000_000, durationUs); got != IndexUnset {
		t.Errorf("skipped midroll: got %d want IndexUnset", got)
	}
}

func TestPlaybackState_GroupIndexForPositionUs_unknown_duration(t *testing.T) {
	p := NewPlaybackState([]int64{TimeEndOfSource})
	if got := p.GroupIndexForPositionUs(5_000_000, TimeUnset); got != 0 {
		t.Errorf("postroll with unknown duration: got %d want 0", got)
	}
}

func TestPlaybackState_GroupIndexAfterPositionUs(t *testing.T) {
	p := NewPlaybackState([]int64{0, 20_000_000, TimeEndOfSource})
	durationUs := int64(60_000_000)

	if got := p.GroupIndexAfterPositionUs(0, durationUs); got != 1 {
		t.Errorf("after zero: got %d want 1", got)
	}
	if got := p.GroupIndexAfterPositionUs(25_000_000, durationUs); got != 2 {
		t.Errorf("after midroll: got %d want 2 (postroll)", got)
	}
	if got := p.GroupIndexAfterPositionUs(60_000_000, durationUs); got != IndexUnset {
		t.Errorf("at duration: got %d want IndexUnset", got)
	}

	skipped := p.WithSkippedGroup(1)
	if got := skipped.GroupIndexAfterPositionUs(0, durationUs); got != 2 {
		t.Errorf("after zero with midroll skipped: got %d want 2", got)
	}
}

func TestAdGroup_HasUnplayedAds(t *testing.T) {
	g := AdGroup{TimeUs: 0, Count: CountUnset}
	if !g.HasUnplayedAds() {
		t.Error("unknown count should have unplayed ads")
	}

	g = AdGroup{TimeUs: 0, Count: 2, States: []AdState{AdStatePlayed}}
	if !g.HasUnplayedAds() {
		t.Error("unrevealed slot should count as unplayed")
	}

	g = AdGroup{TimeUs: 0, Count: 2, States: []AdState{AdStatePlayed, AdStateError}}
	if g.HasUnplayedAds() {
		t.Error("all-terminal group should have none")
	}
}
