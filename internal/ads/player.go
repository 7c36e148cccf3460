package ads

// PlayerState is the content player's coarse playback state.
type PlayerState int

const (
	// PlayerStateIdle means the player has no media prepared.
	PlayerStateIdle PlayerState = iota
	// PlayerStateBuffering means the player cannot currently advance.
	PlayerStateBuffering
	// PlayerStateReady means the player can play immediately.
	PlayerStateReady
	// PlayerStateEnded means playback reached the end of all media.
	PlayerStateEnded
)

// DiscontinuityReason classifies a position discontinuity reported by the
// player.
type DiscontinuityReason int

const (
	// DiscontinuitySeek is a user or programmatic seek.
	DiscontinuitySeek DiscontinuityReason = iota
	// DiscontinuitySeekAdjustment is a small correction applied to a seek.
	DiscontinuitySeekAdjustment
	// DiscontinuityAdInsertion is a transition into or out of an ad period.
	DiscontinuityAdInsertion
	// DiscontinuityInternal is any other player-internal discontinuity.
	DiscontinuityInternal
)

// Player is the coordinator's view of the content player. Implementations
// adapt a real media player; all methods are position/state queries and must
// not block. The coordinator additionally expects the host to forward player
// events to the coordinator's On* methods on the coordination goroutine.
type Player interface {
	// ContentPositionMs is the playback position within the current content
	// window in milliseconds. While an ad is playing this is the underlying
	// content position, not the ad position.
	ContentPositionMs() int64
	// PositionInWindowMs is the offset of the current content period within
	// the window, used to convert window positions to content-relative ones.
	PositionInWindowMs() int64
	// PositionMs is the raw playback position of whatever is playing now,
	// which is the ad position while an ad plays.
	PositionMs() int64
	// DurationMs is the duration of whatever is playing now, or TimeUnset.
	DurationMs() int64
	// PlayWhenReady reports whether playback proceeds when the player is ready.
	PlayWhenReady() bool
	// State is the player's current playback state.
	State() PlayerState
	// IsPlayingAd reports whether the player's timeline position is inside an
	// ad period.
	IsPlayingAd() bool
	// IsLoading reports whether the player is actively loading media.
	IsLoading() bool
	// CurrentAdGroupIndex is the ad group being played, or IndexUnset.
	CurrentAdGroupIndex() int
	// CurrentAdIndexInGroup is the ad within the group being played, or
	// IndexUnset.
	CurrentAdIndexInGroup() int
	// VolumePercent is the player volume as 0..100.
	VolumePercent() int
	// TotalPlayTimeMs is the accumulated time content has actually played,
	// excluding pauses, seeks and ads. Drives watch-time pacing; players that
	// do not track it may return ContentPositionMs.
	TotalPlayTimeMs() int64
}

// contentPeriodPositionMs converts the player's window position to a
// content-relative position.
func contentPeriodPositionMs(player Player) int64 {
	return player.ContentPositionMs() - player.PositionInWindowMs()
}
