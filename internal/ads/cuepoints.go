package ads

import (
	"math"
	"sort"
)

const microsPerSecond = 1_000_000

// MatchThresholdUs is the tolerance below which two cue point times are
// treated as the same break, in microseconds. It guards against float
// round-trip error introduced by the engine truncating cue points to 32-bit
// floats.
const MatchThresholdUs int64 = 1000

// GroupTimesForCuePoints converts the engine's raw cue point markers, in
// floating-point seconds, into ordered ad group times in microseconds.
// A marker of -1.0 denotes a postroll and maps to TimeEndOfSource, placed
// last. An empty input means the engine will play a single preroll.
func GroupTimesForCuePoints(cuePoints []float64) []int64 {
	if len(cuePoints) == 0 {
		return []int64{0}
	}
	count := len(cuePoints)
	groupTimesUs := make([]int64, count)
	groupIndex := 0
	for _, cuePoint := range cuePoints {
		if cuePoint == -1.0 {
			groupTimesUs[count-1] = TimeEndOfSource
		} else {
			groupTimesUs[groupIndex] = int64(math.Round(microsPerSecond * cuePoint))
			groupIndex++
		}
	}
	// Cue points may arrive out of order.
	sort.Slice(groupTimesUs[:groupIndex], func(i, j int) bool {
		return groupTimesUs[i] < groupTimesUs[j]
	})
	return groupTimesUs
}

// GroupIndexForCuePoint returns the index within groupTimesUs of the break
// matching the given cue point time in seconds. The comparison replicates the
// engine's own truncation of cue points to 32-bit floats before matching
// within MatchThresholdUs. A failed lookup means the resolver and the engine
// disagree about the session's breaks, which cannot be silently worked
// around, so ErrCuePointNotFound is returned and the caller must treat it as
// fatal to the ad session.
func GroupIndexForCuePoint(groupTimesUs []int64, cuePointSeconds float64) (int, error) {
	cueTimeUs := int64(math.Round(float64(float32(cuePointSeconds)) * microsPerSecond))
	for i, groupTimeUs := range groupTimesUs {
		if groupTimeUs == TimeEndOfSource {
			continue
		}
		diff := groupTimeUs - cueTimeUs
		if diff < 0 {
			diff = -diff
		}
		if diff < MatchThresholdUs {
			return i, nil
		}
	}
	return IndexUnset, ErrCuePointNotFound
}

// SyntheticGroupTimes builds the watch-time pacing grid: break points every
// cadenceUs up to the content duration. A real preroll marker (time zero) is
// kept at the front and a postroll sentinel at the back; real midroll markers
// are discarded because the engine's own schedule is not trusted for pacing.
func SyntheticGroupTimes(realTimesUs []int64, cadenceUs, durationUs int64) []int64 {
	if cadenceUs <= 0 || durationUs == TimeUnset || durationUs <= 0 {
		return append([]int64(nil), realTimesUs...)
	}
	var times []int64
	hasPreroll := false
	hasPostroll := false
	for _, t := range realTimesUs {
		switch t {
		case 0:
			hasPreroll = true
		case TimeEndOfSource:
			hasPostroll = true
		}
	}
	if hasPreroll {
		times = append(times, 0)
	}
	for t := cadenceUs; t <= durationUs; t += cadenceUs {
		times = append(times, t)
	}
	if hasPostroll {
		times = append(times, TimeEndOfSource)
	}
	return times
}
