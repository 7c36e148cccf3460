package ads

import "math"

// Sentinel values used throughout the package.
const (
	// TimeEndOfSource is the scheduled time of a postroll ad group. It always
	// sorts after every real time value.
	TimeEndOfSource int64 = math.MinInt64

	// TimeUnset represents an unknown time or duration in microseconds or
	// milliseconds, depending on context.
	TimeUnset int64 = math.MinInt64 + 1

	// CountUnset means the number of ads in a group is not yet known.
	CountUnset = -1

	// IndexUnset means no ad group or ad index applies.
	IndexUnset = -1
)

// AdState is the lifecycle state of a single ad slot within a group.
type AdState int

const (
	// AdStateUnavailable means the ad has not loaded yet.
	AdStateUnavailable AdState = iota
	// AdStateAvailable means the ad has loaded and has a media URI.
	AdStateAvailable
	// AdStatePlayed means the ad finished playing.
	AdStatePlayed
	// AdStateSkipped means the ad was skipped by policy or by a seek.
	AdStateSkipped
	// AdStateError means the ad failed to load or play.
	AdStateError
)

// String returns a short name for logging.
func (s AdState) String() string {
	switch s {
	case AdStateUnavailable:
		return "unavailable"
	case AdStateAvailable:
		return "available"
	case AdStatePlayed:
		return "played"
	case AdStateSkipped:
		return "skipped"
	case AdStateError:
		return "error"
	default:
		return "unknown"
	}
}

// terminal reports whether s is a final state that must never be left.
func (s AdState) terminal() bool {
	return s == AdStatePlayed || s == AdStateSkipped || s == AdStateError
}

// AdGroup holds the state of one ad break: its scheduled time, the number of
// ads the engine has revealed so far, and per-ad state and media URIs.
// States and URIs always have equal length; both may be shorter than Count
// while ads are still unrevealed.
type AdGroup struct {
	// TimeUs is the scheduled break time in microseconds from the start of
	// content, or TimeEndOfSource for a postroll.
	TimeUs int64
	// Count is the number of ads in the group, or CountUnset.
	Count  int
	States []AdState
	URIs   []string
}

// HasUnplayedAds reports whether the group still has ads that may play:
// either the count is unknown, or at least one ad is unavailable or available.
func (g AdGroup) HasUnplayedAds() bool {
	if g.Count == CountUnset {
		return true
	}
	for _, s := range g.States {
		if s == AdStateUnavailable || s == AdStateAvailable {
			return true
		}
	}
	// Revealed slots are all terminal, but unrevealed slots still count.
	return len(g.States) < g.Count
}

// clone returns a deep copy of the group so snapshot mutations never alias.
func (g AdGroup) clone() AdGroup {
	out := g
	out.States = append([]AdState(nil), g.States...)
	out.URIs = append([]string(nil), g.URIs...)
	return out
}

// ensureSlots grows States/URIs to hold at least n slots, new slots unavailable.
func (g *AdGroup) ensureSlots(n int) {
	for len(g.States) < n {
		g.States = append(g.States, AdStateUnavailable)
		g.URIs = append(g.URIs, "")
	}
}

// PlaybackState is the Ad Playback Ledger: an immutable snapshot of every ad
// break in the session. All mutating operations are value-returning; the input
// snapshot is never modified, so listeners can hold references safely. The
// Coordinator is the sole writer.
type PlaybackState struct {
	Groups             []AdGroup
	ContentDurationUs  int64
	AdResumePositionUs int64
}

// NewPlaybackState creates a snapshot with one empty ad group per break time.
// Break times must be ordered ascending with any TimeEndOfSource sentinel last
// (as produced by GroupTimesForCuePoints).
func NewPlaybackState(groupTimesUs []int64) PlaybackState {
	groups := make([]AdGroup, len(groupTimesUs))
	for i, t := range groupTimesUs {
		groups[i] = AdGroup{TimeUs: t, Count: CountUnset}
	}
	return PlaybackState{Groups: groups, ContentDurationUs: TimeUnset}
}

// withGroup returns a copy of p with group at index replaced by g.
func (p PlaybackState) withGroup(index int, g AdGroup) PlaybackState {
	out := p
	out.Groups = append([]AdGroup(nil), p.Groups...)
	out.Groups[index] = g
	return out
}

// WithAdCount raises the ad count of a group. Pod size can only grow as the
// engine reveals more ads, so the resulting count is the maximum of the
// requested count, the current count, and the number of revealed slots.
func (p PlaybackState) WithAdCount(group, count int) PlaybackState {
	g := p.Groups[group].clone()
	n := count
	if len(g.States) > n {
		n = len(g.States)
	}
	if g.Count != CountUnset && g.Count > n {
		n = g.Count
	}
	if n == g.Count {
		return p
	}
	g.Count = n
	return p.withGroup(group, g)
}

// WithAdURI marks an ad available with its resolved media URI. Legal only from
// the unavailable state; terminal states are left untouched.
func (p PlaybackState) WithAdURI(group, ad int, uri string) PlaybackState {
	if ad < len(p.Groups[group].States) && p.Groups[group].States[ad] != AdStateUnavailable {
		return p
	}
	g := p.Groups[group].clone()
	g.ensureSlots(ad + 1)
	g.States[ad] = AdStateAvailable
	g.URIs[ad] = uri
	return p.withGroup(group, g)
}

// WithPlayedAd marks an ad as played. No-op if the ad already reached a
// terminal state.
func (p PlaybackState) WithPlayedAd(group, ad int) PlaybackState {
	return p.withAdState(group, ad, AdStatePlayed)
}

// WithSkippedAd marks an ad as skipped. No-op if the ad already reached a
// terminal state.
func (p PlaybackState) WithSkippedAd(group, ad int) PlaybackState {
	return p.withAdState(group, ad, AdStateSkipped)
}

// WithAdLoadError marks an ad as failed. Idempotent; no-op for ads that
// already played or were skipped.
func (p PlaybackState) WithAdLoadError(group, ad int) PlaybackState {
	return p.withAdState(group, ad, AdStateError)
}

func (p PlaybackState) withAdState(group, ad int, state AdState) PlaybackState {
	g := p.Groups[group].clone()
	g.ensureSlots(ad + 1)
	if g.States[ad].terminal() {
		return p
	}
	g.States[ad] = state
	if g.Count != CountUnset && g.Count < len(g.States) {
		g.Count = len(g.States)
	}
	return p.withGroup(group, g)
}

// WithSkippedGroup resolves an entire group: every ad that has not reached a
// terminal state becomes skipped. A group with an unknown count is resolved to
// a single skipped ad so the break can never surface again.
func (p PlaybackState) WithSkippedGroup(group int) PlaybackState {
	g := p.Groups[group].clone()
	if g.Count == CountUnset {
		g.Count = len(g.States)
		if g.Count < 1 {
			g.Count = 1
		}
	}
	g.ensureSlots(g.Count)
	for i, s := range g.States {
		if !s.terminal() {
			g.States[i] = AdStateSkipped
		}
	}
	return p.withGroup(group, g)
}

// WithGroupLoadError transitions every still-unavailable ad in the group to
// the error state. Used for break fetch failures and preload timeouts.
// Idempotent: repeating the call yields an identical snapshot.
func (p PlaybackState) WithGroupLoadError(group int) PlaybackState {
	g := p.Groups[group].clone()
	if g.Count == CountUnset {
		g.Count = len(g.States)
		if g.Count < 1 {
			g.Count = 1
		}
	}
	g.ensureSlots(g.Count)
	for i, s := range g.States {
		if s == AdStateUnavailable {
			g.States[i] = AdStateError
		}
	}
	return p.withGroup(group, g)
}

// WithContentDurationUs records the content duration.
func (p PlaybackState) WithContentDurationUs(durationUs int64) PlaybackState {
	if p.ContentDurationUs == durationUs {
		return p
	}
	out := p
	out.ContentDurationUs = durationUs
	return out
}

// WithAdResumePositionUs records the position an interrupted ad should resume
// from.
func (p PlaybackState) WithAdResumePositionUs(positionUs int64) PlaybackState {
	out := p
	out.AdResumePositionUs = positionUs
	return out
}

// IsAdInErrorState reports whether the given ad slot has been marked failed.
func (p PlaybackState) IsAdInErrorState(group, ad int) bool {
	g := p.Groups[group]
	return ad < len(g.States) && g.States[ad] == AdStateError
}

// GroupIndexForPositionUs returns the index of the ad group the player is at
// or inside for the given content position: the latest group at or before the
// position that still has unplayed ads. Returns IndexUnset if there is none.
// A postroll only matches once the position reaches the content duration, or
// always when the duration is unknown.
func (p PlaybackState) GroupIndexForPositionUs(positionUs, durationUs int64) int {
	// Linear scan from the back; times are not strictly increasing because of
	// the postroll sentinel.
	index := len(p.Groups) - 1
	for index >= 0 && p.positionBeforeGroup(positionUs, durationUs, index) {
		index--
	}
	if index >= 0 && p.Groups[index].HasUnplayedAds() {
		return index
	}
	return IndexUnset
}

// GroupIndexAfterPositionUs returns the index of the next ad group with ads
// left to play strictly after the given content position, or IndexUnset.
func (p PlaybackState) GroupIndexAfterPositionUs(positionUs, durationUs int64) int {
	if positionUs == TimeEndOfSource || (durationUs != TimeUnset && positionUs >= durationUs) {
		return IndexUnset
	}
	index := 0
	for index < len(p.Groups) &&
		p.Groups[index].TimeUs != TimeEndOfSource &&
		(positionUs >= p.Groups[index].TimeUs || !p.Groups[index].HasUnplayedAds()) {
		index++
	}
	if index < len(p.Groups) {
		return index
	}
	return IndexUnset
}

func (p PlaybackState) positionBeforeGroup(positionUs, durationUs int64, index int) bool {
	if positionUs == TimeEndOfSource {
		return false
	}
	groupTimeUs := p.Groups[index].TimeUs
	if groupTimeUs == TimeEndOfSource {
		return durationUs == TimeUnset || positionUs < durationUs
	}
	return positionUs < groupTimeUs
}
