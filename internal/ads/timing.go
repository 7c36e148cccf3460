package ads

import "time"

// Clock abstracts wall-clock time so fake-progress synthesis and timeout
// detection are testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// Progress is a position/duration pair reported to the engine's polling
// callbacks, in milliseconds.
type Progress struct {
	PositionMs int64 `json:"position_ms"`
	DurationMs int64 `json:"duration_ms"`
}

// ProgressNotReady signals that no believable progress can be reported yet.
// Callers must not make ad-break decisions from it.
var ProgressNotReady = Progress{PositionMs: -1, DurationMs: -1}

// NotReady reports whether p is the not-ready sentinel.
func (p Progress) NotReady() bool {
	return p.PositionMs == -1 && p.DurationMs == -1
}

// TimingOracle computes the content position the ad engine should see. It
// corrects for period offsets, reports a pending position exactly once to
// force the engine to notice a break, and synthesizes advancing "fake"
// progress while real playback is logically stalled negotiating an ad. Many
// engines poll content progress on their own timer and stall forever if the
// position appears frozen.
//
// At most one of the pending position and fake progress drives the reported
// position; the real player position is used otherwise. The Coordinator is
// the sole caller and mutator.
type TimingOracle struct {
	clock Clock

	contentDurationMs int64

	pendingContentPositionMs   int64
	sentPendingContentPosition bool
	fakeProgressStart          time.Time
	fakeProgressActive         bool
	fakeProgressOffsetMs       int64
	preloadBiasMs              int64
	preloadBiasSuspended       bool
	endOfContentThresholdMs    int64
}

// NewTimingOracle creates an oracle. preloadBias of zero disables biased
// progress reporting.
func NewTimingOracle(clock Clock, preloadBias, endOfContentThreshold time.Duration) *TimingOracle {
	return &TimingOracle{
		clock:                    clock,
		contentDurationMs:        TimeUnset,
		pendingContentPositionMs: TimeUnset,
		preloadBiasMs:            preloadBias.Milliseconds(),
		endOfContentThresholdMs:  endOfContentThreshold.Milliseconds(),
	}
}

// SetContentDurationMs records the content duration, or TimeUnset.
func (o *TimingOracle) SetContentDurationMs(durationMs int64) {
	o.contentDurationMs = durationMs
}

// ContentDurationMs returns the known content duration, or TimeUnset.
func (o *TimingOracle) ContentDurationMs() int64 { return o.contentDurationMs }

// SetPendingContentPosition arms a position that the next ContentProgress
// call reports exactly once, forcing the engine to notice the break there.
func (o *TimingOracle) SetPendingContentPosition(positionMs int64) {
	o.pendingContentPositionMs = positionMs
	o.sentPendingContentPosition = false
}

// ClearPendingContentPosition disarms any pending position.
func (o *TimingOracle) ClearPendingContentPosition() {
	o.pendingContentPositionMs = TimeUnset
	o.sentPendingContentPosition = false
}

// HasPendingContentPosition reports whether a pending position is armed.
func (o *TimingOracle) HasPendingContentPosition() bool {
	return o.pendingContentPositionMs != TimeUnset
}

// PendingContentPositionSent reports whether the armed position was already
// delivered to the engine.
func (o *TimingOracle) PendingContentPositionSent() bool {
	return o.pendingContentPositionMs != TimeUnset && o.sentPendingContentPosition
}

// StartFakeProgress begins synthesizing an advancing position from offsetMs,
// incremented by wall-clock time elapsed since this call.
func (o *TimingOracle) StartFakeProgress(offsetMs int64) {
	o.fakeProgressActive = true
	o.fakeProgressStart = o.clock.Now()
	o.fakeProgressOffsetMs = offsetMs
}

// StopFakeProgress stops synthesizing progress.
func (o *TimingOracle) StopFakeProgress() {
	o.fakeProgressActive = false
}

// FakeProgressActive reports whether fake progress is driving the position.
func (o *TimingOracle) FakeProgressActive() bool { return o.fakeProgressActive }

// SuspendPreloadBias stops reporting biased positions until ResumePreloadBias.
// The bias is suspended from the moment an ad loads until content resumes, so
// a break is never double-triggered.
func (o *TimingOracle) SuspendPreloadBias() { o.preloadBiasSuspended = true }

// ResumePreloadBias re-enables biased position reporting.
func (o *TimingOracle) ResumePreloadBias() { o.preloadBiasSuspended = false }

// ContentProgress computes the progress to report to the engine. realPositionMs
// is the player's content-relative position; haveReal is false when no player
// is attached or an ad is active, in which case only a pending position or
// fake progress can produce a value.
func (o *TimingOracle) ContentProgress(realPositionMs int64, haveReal bool) Progress {
	hasDuration := o.contentDurationMs != TimeUnset
	durationMs := int64(-1)
	if hasDuration {
		durationMs = o.contentDurationMs
	}

	var positionMs int64
	switch {
	case o.pendingContentPositionMs != TimeUnset && !o.sentPendingContentPosition:
		o.sentPendingContentPosition = true
		positionMs = o.pendingContentPositionMs
	case o.fakeProgressActive:
		elapsed := o.clock.Now().Sub(o.fakeProgressStart).Milliseconds()
		positionMs = o.fakeProgressOffsetMs + elapsed
	case haveReal && hasDuration:
		positionMs = realPositionMs
		if o.preloadBiasMs > 0 && !o.preloadBiasSuspended {
			biased := positionMs + o.preloadBiasMs
			if biased+o.endOfContentThresholdMs < durationMs {
				positionMs = biased
			}
		}
	default:
		return ProgressNotReady
	}
	return Progress{PositionMs: positionMs, DurationMs: durationMs}
}
