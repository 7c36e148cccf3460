package ads

import (
	"testing"
	"time"
)

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_000_000, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func TestTimingOracle_not_ready_without_player(t *testing.T) {
	o := NewTimingOracle(newFakeClock(), 0, DefaultEndOfContentThreshold)
	o.SetContentDurationMs(60_000)

	if got := o.ContentProgress(0, false); !got.NotReady() {
		t.Errorf("progress: got %+v want not ready", got)
	}
}

func TestTimingOracle_pending_position_sent_once(t *testing.T) {
	o := NewTimingOracle(newFakeClock(), 0, DefaultEndOfContentThreshold)
	o.SetContentDurationMs(60_000)
	o.SetPendingContentPosition(12_000)

	got := o.ContentProgress(500, true)
	if got.PositionMs != 12_000 || got.DurationMs != 60_000 {
		t.Fatalf("first poll: got %+v want pending position", got)
	}
	if !o.PendingContentPositionSent() {
		t.Error("pending position should be marked sent")
	}

	// Subsequent polls report the real position again.
	got = o.ContentProgress(500, true)
	if got.PositionMs != 500 {
		t.Errorf("second poll: got %+v want real position", got)
	}
}

func TestTimingOracle_fake_progress_advances_with_clock(t *testing.T) {
	clock := newFakeClock()
	o := NewTimingOracle(clock, 0, DefaultEndOfContentThreshold)
	o.SetContentDurationMs(60_000)
	o.StartFakeProgress(20_000)

	if got := o.ContentProgress(0, false); got.PositionMs != 20_000 {
		t.Fatalf("at start: got %+v want 20000", got)
	}

	clock.advance(700 * time.Millisecond)
	if got := o.ContentProgress(0, false); got.PositionMs != 20_700 {
		t.Errorf("after 700ms: got %+v want 20700", got)
	}

	o.StopFakeProgress()
	if got := o.ContentProgress(0, false); !got.NotReady() {
		t.Errorf("after stop: got %+v want not ready", got)
	}
}

func TestTimingOracle_pending_position_wins_over_fake_progress(t *testing.T) {
	o := NewTimingOracle(newFakeClock(), 0, DefaultEndOfContentThreshold)
	o.SetContentDurationMs(60_000)
	o.StartFakeProgress(20_000)
	o.SetPendingContentPosition(5_000)

	if got := o.ContentProgress(0, false); got.PositionMs != 5_000 {
		t.Errorf("got %+v want pending position first", got)
	}
	if got := o.ContentProgress(0, false); got.PositionMs != 20_000 {
		t.Errorf("got %+v want fake progress after pending sent", got)
	}
}

func TestTimingOracle_preload_bias(t *testing.T) {
	o := NewTimingOracle(newFakeClock(), 2*time.Second, 5*time.Second)
	o.SetContentDurationMs(60_000)

	if got := o.ContentProgress(10_000, true); got.PositionMs != 12_000 {
		t.Errorf("biased: got %+v want 12000", got)
	}

	o.SuspendPreloadBias()
	if got := o.ContentProgress(10_000, true); got.PositionMs != 10_000 {
		t.Errorf("suspended: got %+v want 10000", got)
	}

	o.ResumePreloadBias()
	if got := o.ContentProgress(10_000, true); got.PositionMs != 12_000 {
		t.Errorf("resumed: got %+v want 12000", got)
	}

	// A biased position may never cross into the end-of-content region, or the
	// engine would fire content complete early.
	if got := o.ContentProgress(54_000, true); got.PositionMs != 54_000 {
		t.Errorf("near end: got %+v want unbiased 54000", got)
	}
}
