package ads

import "time"

// AdMedia is the engine's handle for one loadable ad. It is the identity used
// to correlate engine callbacks with ledger slots, so values must be
// comparable and stable for the lifetime of one load/play/stop cycle.
type AdMedia struct {
	ID  string
	URI string
}

// PodInfo describes an ad's place within its pod as reported by the engine.
type PodInfo struct {
	// PodIndex is the engine's pod number, or PodIndexPostroll.
	PodIndex int
	// AdPosition is the 1-based position of the ad within the pod.
	AdPosition int
	// TotalAds is the number of ads the engine currently knows to be in the
	// pod. It may grow on later loads.
	TotalAds int
	// TimeOffsetSeconds is the pod's scheduled time in seconds, -1 for a
	// postroll. It may be stale and is only trusted as a last resort.
	TimeOffsetSeconds float64
}

// PodIndexPostroll is the engine's pod index sentinel for a postroll break.
const PodIndexPostroll = -1

// AdEventType enumerates the engine events the coordinator reacts to.
type AdEventType int

const (
	// AdEventLog carries diagnostic data; some load failures only surface here.
	AdEventLog AdEventType = iota
	// AdEventLoaded fires when ad media finished loading.
	AdEventLoaded
	// AdEventStarted fires when an ad starts rendering.
	AdEventStarted
	// AdEventAdProgress fires periodically while an ad advances.
	AdEventAdProgress
	// AdEventAdBuffering fires when an ad stalls waiting for media.
	AdEventAdBuffering
	// AdEventContentPauseRequested asks the host to pause content for a break.
	AdEventContentPauseRequested
	// AdEventContentResumeRequested asks the host to resume content.
	AdEventContentResumeRequested
	// AdEventAdBreakFetchError reports that fetching an entire break failed.
	AdEventAdBreakFetchError
	// AdEventTapped reports a tap on the ad surface.
	AdEventTapped
	// AdEventClicked reports a click-through on the ad.
	AdEventClicked
	// AdEventCompleted fires when an ad finishes.
	AdEventCompleted
	// AdEventSkipped fires when the viewer skips a skippable ad.
	AdEventSkipped
)

// AdEvent is one engine event. Which fields are set depends on Type:
// AdBreakFetchError carries BreakTimeSeconds, Loaded/AdBuffering carry Pod,
// Log carries Data.
type AdEvent struct {
	Type             AdEventType
	Pod              PodInfo
	BreakTimeSeconds float64
	Data             map[string]string
}

// RenderingSettings configures the engine session before starting playback.
type RenderingSettings struct {
	// PlayAdsAfterTimeSeconds tells the engine to discard breaks scheduled at
	// or before this time. Zero means play everything.
	PlayAdsAfterTimeSeconds float64
	// MediaLoadTimeout bounds how long the engine waits for ad media.
	MediaLoadTimeout time.Duration
	// EnablePreloading asks the engine to load ads ahead of their break.
	EnablePreloading bool
}

// Engine is the injected handle to the external ad-decision engine.
// RequestAds starts resolution of the session's ad schedule; the engine
// adapter must deliver the result through Coordinator.OnSessionLoaded or
// Coordinator.OnSessionLoadError, and route all further engine callbacks to
// the coordinator on the coordination goroutine.
type Engine interface {
	RequestAds()
}

// EngineSession is one resolved ad session: the engine-side object that owns
// the pod schedule and accepts playback commands. All methods are
// fire-and-forget; results come back as engine callbacks.
type EngineSession interface {
	// CuePoints returns the raw break markers in seconds, -1 for postroll.
	CuePoints() []float64
	// Init applies rendering settings. Must be called before Start.
	Init(settings RenderingSettings)
	// Start begins the session; the engine will start issuing load callbacks.
	Start()
	// Pause pauses the active ad, if any.
	Pause()
	// Resume resumes a paused ad.
	Resume()
	// Skip skips the current skippable ad.
	Skip()
	// Focus moves UI focus to the skip button if shown.
	Focus()
	// DiscardAdBreak abandons the preloaded break so the correct one can load.
	DiscardAdBreak()
	// Destroy tears the session down. No callbacks may follow.
	Destroy()
}

// AdCallback receives the coordinator's notifications about ad media
// playback. The engine adapter registers one to keep the engine's model of
// the active ad in sync with the player.
type AdCallback interface {
	OnLoaded(media AdMedia)
	OnPlay(media AdMedia)
	OnPause(media AdMedia)
	OnResume(media AdMedia)
	OnEnded(media AdMedia)
	OnError(media AdMedia)
	OnBuffering(media AdMedia)
	OnAdProgress(media AdMedia, progress Progress)
	OnContentComplete()
}
