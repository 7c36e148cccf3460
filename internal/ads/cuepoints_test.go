package ads

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGroupTimesForCuePoints_empty_means_preroll(t *testing.T) {
	got := GroupTimesForCuePoints(nil)
	want := []int64{0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("group times (-want +got):\n%s", diff)
	}
}

func TestGroupTimesForCuePoints_sorted_postroll_last(t *testing.T) {
	got := GroupTimesForCuePoints([]float64{30.5, -1.0, 0, 15})
	want := []int64{0, 15_000_000, 30_500_000, TimeEndOfSource}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("group times (-want +got):\n%s", diff)
	}
}

func TestGroupIndexForCuePoint_within_tolerance(t *testing.T) {
	times := []int64{500_000, 20_000_000}

	idx, err := GroupIndexForCuePoint(times, 0.5001)
	if err != nil || idx != 0 {
		t.Errorf("near match: got (%d, %v) want (0, nil)", idx, err)
	}

	idx, err = GroupIndexForCuePoint(times, 0.502)
	if !errors.Is(err, ErrCuePointNotFound) {
		t.Errorf("out of tolerance: got (%d, %v) want ErrCuePointNotFound", idx, err)
	}
}

func TestGroupIndexForCuePoint_float32_truncation(t *testing.T) {
	// The engine reports cue points as 32-bit floats; at large offsets the
	// truncation error is far above zero but still within the tolerance.
	times := GroupTimesForCuePoints([]float64{1234.567})

	idx, err := GroupIndexForCuePoint(times, 1234.567)
	if err != nil || idx != 0 {
		t.Errorf("truncated match: got (%d, %v) want (0, nil)", idx, err)
	}
}

func TestGroupIndexForCuePoint_skips_postroll_sentinel(t *testing.T) {
	times := []int64{0, TimeEndOfSource}

	idx, err := GroupIndexForCuePoint(times, 0)
	if err != nil || idx != 0 {
		t.Errorf("preroll: got (%d, %v) want (0, nil)", idx, err)
	}

	_, err = GroupIndexForCuePoint(times, 55)
	if !errors.Is(err, ErrCuePointNotFound) {
		t.Errorf("unmatched cue must not hit the postroll sentinel: %v", err)
	}
}

func TestSyntheticGroupTimes_grid_replaces_midrolls(t *testing.T) {
	real := []int64{0, 15_000_000, TimeEndOfSource}
	got := SyntheticGroupTimes(real, 10_000_000, 35_000_000)
	want := []int64{0, 10_000_000, 20_000_000, 30_000_000, TimeEndOfSource}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("synthetic times (-want +got):\n%s", diff)
	}
}

func TestSyntheticGroupTimes_no_markers_kept_without_real_ones(t *testing.T) {
	got := SyntheticGroupTimes([]int64{25_000_000}, 10_000_000, 35_000_000)
	want := []int64{10_000_000, 20_000_000, 30_000_000}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("synthetic times (-want +got):\n%s", diff)
	}
}

func TestSyntheticGroupTimes_unknown_duration_keeps_real(t *testing.T) {
	real := []int64{0, 15_000_000}
	got := SyntheticGroupTimes(real, 10_000_000, TimeUnset)
	if diff := cmp.Diff(real, got); diff != "" {
		t.Errorf("synthetic times (-want +got):\n%s", diff)
	}
}
