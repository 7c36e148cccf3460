package ads

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Defaults for Config fields left zero.
const (
	DefaultPreloadWindow         = 2 * time.Second
	DefaultPreloadTimeout        = 6 * time.Second
	DefaultEndOfContentThreshold = 5 * time.Second
	DefaultAdProgressInterval    = 100 * time.Millisecond
	DefaultRequestTimeout        = 6 * time.Second
	DefaultMediaLoadTimeout      = 8 * time.Second
	DefaultCuePointCadence       = 10 * time.Second
	DefaultCadenceSkipThreshold  = 8 * time.Second
)

// Config parameterizes a Coordinator. The zero value is usable; zero fields
// take the defaults above. The engine-driven and watch-time-paced behaviors
// are one state machine: WatchTimePacing selects how cue points are resolved
// and how content position is measured, nothing else.
type Config struct {
	// PreloadWindow is how long before a break the engine is expected to have
	// loaded its first ad. Entering this window while buffering arms the
	// stuck-preload timer.
	PreloadWindow time.Duration
	// PreloadTimeout is how long a stuck preload may last before the group is
	// failed to unblock playback.
	PreloadTimeout time.Duration
	// EndOfContentThreshold is how close to the duration the position must be
	// for content to count as complete.
	EndOfContentThreshold time.Duration
	// AdProgressInterval is the period of ad progress callbacks to the engine.
	AdProgressInterval time.Duration
	// RequestTimeout bounds how long the engine may take to deliver a session
	// after RequestAds.
	RequestTimeout time.Duration
	// MediaLoadTimeout is passed to the engine in rendering settings.
	MediaLoadTimeout time.Duration
	// AdPreloadBias, when positive, reports content progress ahead by this
	// amount so the engine starts pod fetches early. Zero disables it.
	AdPreloadBias time.Duration
	// AdBufferingBudget is the longest a single ad may buffer before it is
	// skipped by policy. Zero disables buffering skips.
	AdBufferingBudget time.Duration
	// TotalAdBufferingBudget is the cumulative buffering allowance across the
	// session. Zero disables it.
	TotalAdBufferingBudget time.Duration
	// PlayAdBeforeStartPosition plays the break preceding the start position
	// when playback starts mid-content.
	PlayAdBeforeStartPosition bool
	// WatchTimePacing replaces the engine's midroll schedule with a synthetic
	// grid and measures position as accumulated watch time.
	WatchTimePacing bool
	// ContentDuration is the known content duration, required for building
	// the synthetic grid up front in watch-time mode.
	ContentDuration time.Duration
	// CuePointCadence is the synthetic grid spacing.
	CuePointCadence time.Duration
	// CadenceSkipThreshold is the distance under which an upcoming synthetic
	// break is too close to use and gets skipped.
	CadenceSkipThreshold time.Duration
}

// DefaultConfig returns the engine-driven defaults.
func DefaultConfig() Config {
	return Config{PlayAdBeforeStartPosition: true}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.PreloadWindow <= 0 {
		c.PreloadWindow = DefaultPreloadWindow
	}
	if c.PreloadTimeout <= 0 {
		c.PreloadTimeout = DefaultPreloadTimeout
	}
	if c.EndOfContentThreshold <= 0 {
		c.EndOfContentThreshold = DefaultEndOfContentThreshold
	}
	if c.AdProgressInterval <= 0 {
		c.AdProgressInterval = DefaultAdProgressInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.MediaLoadTimeout <= 0 {
		c.MediaLoadTimeout = DefaultMediaLoadTimeout
	}
	if c.CuePointCadence <= 0 {
		c.CuePointCadence = DefaultCuePointCadence
	}
	if c.CadenceSkipThreshold <= 0 {
		c.CadenceSkipThreshold = DefaultCadenceSkipThreshold
	}
	return c
}

// Options carries the Coordinator's injected collaborators. Logger, Clock and
// Scheduler default to slog.Default, SystemClock and NewScheduler; the rest
// may be nil.
type Options struct {
	Logger       *slog.Logger
	Clock        Clock
	Scheduler    Scheduler
	Obstructions ObstructionRegistrar
	// SkipPolicy, when set, is consulted on every load and play callback; a
	// true return makes the coordinator resolve the group as skipped instead
	// of forwarding the ad.
	SkipPolicy func(group, ad int) bool
}

// enginePhase tracks what the ad engine believes is happening, independent of
// the ledger's per-ad state. It gates which engine callbacks are legal.
type enginePhase int

const (
	phaseNone enginePhase = iota
	phasePlaying
	phasePaused
)

// adRef identifies one ledger slot: (group index, ad index within group).
type adRef struct {
	group int
	ad    int
}

func (r adRef) String() string { return fmt.Sprintf("(%d, %d)", r.group, r.ad) }

// Coordinator reconciles the content player, the ad playback ledger, and the
// external ad engine. All entry points serialize on one internal mutex (the
// coordination thread); none of them blocks, and all waiting is a scheduled
// callback. Engine callbacks arriving for ads that were already torn down are
// absorbed as no-ops rather than asserted on.
type Coordinator struct {
	mu sync.Mutex

	cfg        Config
	log        *slog.Logger
	clock      Clock
	sched      Scheduler
	engine     Engine
	skipPolicy func(group, ad int) bool

	session            EngineSession
	sessionInitialized bool
	requestPending     bool

	oracle    *TimingOracle
	listeners listenerSet
	callbacks []AdCallback

	player Player

	state      PlaybackState
	hasState   bool
	groupTimes []int64

	mediaByRef map[adRef]AdMedia
	refByMedia map[AdMedia]adRef
	prepared   map[adRef]bool

	phase               enginePhase
	activeMedia         AdMedia
	activeRef           adRef
	hasActiveAd         bool
	enginePausedContent bool
	sentContentComplete bool

	playingAd             bool
	bufferingAd           bool
	playingAdIndexInGroup int
	pendingPrepareError   *adRef

	waitingForPreload      bool
	waitingForPreloadSince time.Time
	pendingLoadError       *LoadError

	adBufferingActive  bool
	adBufferingStart   time.Time
	totalAdBufferingMs int64

	lastContentProgress Progress
	lastAdProgress      Progress
	lastVolumePercent   int

	adProgressTimer Timer
	requestTimer    Timer
	bufferSkipTimer Timer

	released bool
}

// NewCoordinator creates a coordinator bound to the given engine handle. Call
// RequestAds to start the session.
func NewCoordinator(engine Engine, cfg Config, opts Options) *Coordinator {
	cfg = cfg.withDefaults()
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = NewScheduler()
	}
	c := &Coordinator{
		cfg:        cfg,
		log:        opts.Logger,
		clock:      opts.Clock,
		sched:      opts.Scheduler,
		engine:     engine,
		skipPolicy: opts.SkipPolicy,
		oracle:     NewTimingOracle(opts.Clock, cfg.AdPreloadBias, cfg.EndOfContentThreshold),
		listeners:  listenerSet{registrar: opts.Obstructions},
		mediaByRef: make(map[adRef]AdMedia),
		refByMedia: make(map[AdMedia]adRef),
		prepared:   make(map[adRef]bool),

		playingAdIndexInGroup: IndexUnset,
		lastContentProgress:   ProgressNotReady,
		lastAdProgress:        ProgressNotReady,
	}
	if cfg.WatchTimePacing && cfg.ContentDuration > 0 {
		c.oracle.SetContentDurationMs(cfg.ContentDuration.Milliseconds())
	}
	return c
}

// recoverInternal converts a panic while handling any callback into the
// session-wide fail-safe: every remaining group is skipped, one structured
// internal-error notification goes out, and content keeps playing. The
// process is never taken down by the ad subsystem.
func (c *Coordinator) recoverInternal(op string) {
	if r := recover(); r != nil {
		err, ok := r.(error)
		if !ok {
			err = fmt.Errorf("%v", r)
		}
		c.handleInternalErrorLocked(op, fmt.Errorf("internal error in %s: %w", op, err))
	}
}

func (c *Coordinator) handleInternalErrorLocked(op string, err error) {
	c.log.Error("ad session internal error, skipping remaining ads",
		slog.String("op", op), slog.String("error", err.Error()))
	for i := range c.state.Groups {
		c.state = c.state.WithSkippedGroup(i)
	}
	c.publishStateLocked()
	c.listeners.notifyLoadError(newAllAdsLoadError(err))
}

// RequestAds asks the engine to resolve the ad schedule and arms the request
// timeout. The engine answers through OnSessionLoaded or OnSessionLoadError.
func (c *Coordinator) RequestAds() {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.recoverInternal("requestAds")
	if c.released || c.requestPending || c.session != nil {
		return
	}
	c.requestPending = true
	c.requestTimer = c.sched.Schedule(c.cfg.RequestTimeout, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		defer c.recoverInternal("requestTimeout")
		c.handleRequestTimeoutLocked()
	})
	c.engine.RequestAds()
}

func (c *Coordinator) handleRequestTimeoutLocked() {
	if c.released || !c.requestPending {
		return
	}
	c.requestPending = false
	c.log.Warn("ad request timed out")
	if !c.hasState {
		c.state = PlaybackState{}
		c.hasState = true
		c.publishStateLocked()
	}
	c.pendingLoadError = newAllAdsLoadError(errors.New("ad request timed out"))
	c.maybeNotifyPendingLoadErrorLocked()
}

// OnSessionLoaded delivers the resolved engine session. The initial ledger is
// built from its cue points (or from the synthetic grid in watch-time mode)
// and the session is initialized once a player timeline is known.
func (c *Coordinator) OnSessionLoaded(session EngineSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.recoverInternal("onSessionLoaded")
	if c.released {
		session.Destroy()
		return
	}
	if !c.requestPending {
		// A stale response for a request this coordinator no longer owns.
		session.Destroy()
		return
	}
	c.requestPending = false
	c.cancelTimerLocked(&c.requestTimer)
	c.session = session
	c.buildInitialStateLocked()
	c.maybeInitializeSessionLocked()
}

func (c *Coordinator) buildInitialStateLocked() {
	times := GroupTimesForCuePoints(c.session.CuePoints())
	if c.cfg.WatchTimePacing {
		times = SyntheticGroupTimes(times, c.cfg.CuePointCadence.Microseconds(), c.contentDurationUsLocked())
	}
	c.groupTimes = times
	c.state = NewPlaybackState(times)
	if c.oracle.ContentDurationMs() != TimeUnset {
		c.state = c.state.WithContentDurationUs(c.oracle.ContentDurationMs() * 1000)
	}
	c.hasState = true
	c.publishStateLocked()
}

// OnSessionLoadError reports that the engine could not resolve any ads.
// Playback proceeds without ads.
func (c *Coordinator) OnSessionLoadError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.recoverInternal("onSessionLoadError")
	if c.released {
		return
	}
	c.requestPending = false
	c.cancelTimerLocked(&c.requestTimer)
	c.state = PlaybackState{}
	c.hasState = true
	c.publishStateLocked()
	c.pendingLoadError = newAllAdsLoadError(err)
	c.maybeNotifyPendingLoadErrorLocked()
}

// AddListener attaches an observer and registers its obstructions. A
// late-attaching listener immediately receives the current ledger; the first
// listener may cause one to be synthesized from the session's cue points.
func (c *Coordinator) AddListener(l EventListener, obstructions []Obstruction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.recoverInternal("addListener")
	first := c.listeners.add(l)
	if !first {
		if c.hasState {
			l.OnAdPlaybackState(c.state)
		}
		c.listeners.registerObstructions(obstructions)
		return
	}
	c.lastVolumePercent = 0
	c.lastAdProgress = ProgressNotReady
	c.lastContentProgress = ProgressNotReady
	c.maybeNotifyPendingLoadErrorLocked()
	if c.hasState {
		l.OnAdPlaybackState(c.state)
	} else if c.session != nil {
		c.buildInitialStateLocked()
	}
	c.listeners.registerObstructions(obstructions)
}

// RemoveListener detaches an observer. The engine session survives listener
// churn; only Release terminates it.
func (c *Coordinator) RemoveListener(l EventListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners.remove(l)
}

// AddAdCallback registers an engine-side observer of ad media playback.
func (c *Coordinator) AddAdCallback(cb AdCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, cb)
}

// RemoveAdCallback unregisters an engine-side observer.
func (c *Coordinator) RemoveAdCallback(cb AdCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.callbacks {
		if existing == cb {
			c.callbacks = append(c.callbacks[:i], c.callbacks[i+1:]...)
			return
		}
	}
}

// AttachPlayer activates playback against the given player. If a preloaded
// break no longer matches the player's position the break is discarded so the
// correct one can load, and a paused mid-break session is resumed.
func (c *Coordinator) AttachPlayer(p Player) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.recoverInternal("attachPlayer")
	c.player = p
	c.maybeInitializeSessionLocked()
	if !c.hasState || c.session == nil || !c.enginePausedContent {
		return
	}
	positionUs := contentPeriodPositionMs(p) * 1000
	groupForPosition := c.state.GroupIndexForPositionUs(positionUs, c.contentDurationUsLocked())
	if groupForPosition != IndexUnset && c.hasActiveAd && c.activeRef.group != groupForPosition {
		c.log.Debug("discarding preloaded ad break", slog.String("ad", c.activeRef.String()))
		c.session.DiscardAdBreak()
	}
	if p.PlayWhenReady() {
		c.session.Resume()
	}
}

// DetachPlayer deactivates playback, pausing any mid-break session and
// remembering the last progress values so engine polls stay answered.
func (c *Coordinator) DetachPlayer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.recoverInternal("detachPlayer")
	if c.player == nil {
		return
	}
	if c.hasState && c.enginePausedContent && c.session != nil {
		c.session.Pause()
		resumeUs := int64(0)
		if c.playingAd {
			resumeUs = c.player.PositionMs() * 1000
		}
		c.state = c.state.WithAdResumePositionUs(resumeUs)
	}
	c.lastVolumePercent = c.player.VolumePercent()
	c.lastAdProgress = c.adProgressLocked()
	c.lastContentProgress = c.contentProgressLocked()
	c.player = nil
}

// OnTimelineChanged reports the content duration of the current timeline in
// microseconds (TimeUnset while unknown).
func (c *Coordinator) OnTimelineChanged(contentDurationUs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.recoverInternal("onTimelineChanged")
	if c.released || c.player == nil {
		return
	}
	durationMs := TimeUnset
	if contentDurationUs != TimeUnset {
		durationMs = contentDurationUs / 1000
	}
	c.oracle.SetContentDurationMs(durationMs)
	if c.hasState && contentDurationUs != c.state.ContentDurationUs {
		c.state = c.state.WithContentDurationUs(contentDurationUs)
		c.publishStateLocked()
	}
	c.maybeInitializeSessionLocked()
	c.handleTimelineOrPositionChangedLocked()
}

// OnPositionDiscontinuity reports a player position discontinuity.
func (c *Coordinator) OnPositionDiscontinuity(reason DiscontinuityReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.recoverInternal("onPositionDiscontinuity")
	if c.released || c.player == nil {
		return
	}
	c.handleTimelineOrPositionChangedLocked()
	switch reason {
	case DiscontinuitySeek, DiscontinuitySeekAdjustment:
		c.handleSeekLocked()
	case DiscontinuityAdInsertion:
		if !c.waitingForPreload && c.player.IsPlayingAd() && c.player.IsLoading() && c.isWaitingForAdToLoadLocked() {
			c.waitingForPreload = true
			c.waitingForPreloadSince = c.clock.Now()
			c.log.Debug("waiting for ad to load", slog.Int("group", c.loadingGroupIndexLocked()))
		}
	}
}

// handleSeekLocked applies the seek-skip policy: every break now behind the
// new position with unplayed ads is resolved to skipped so it can never
// surface later, and any synthetic position state is reset.
func (c *Coordinator) handleSeekLocked() {
	if !c.hasState {
		return
	}
	positionUs := contentPeriodPositionMs(c.player) * 1000
	changed := false
	for i, g := range c.state.Groups {
		if g.TimeUs == TimeEndOfSource || g.TimeUs >= positionUs {
			continue
		}
		if c.phase != phaseNone && c.hasActiveAd && c.activeRef.group == i {
			continue
		}
		if g.HasUnplayedAds() {
			c.state = c.state.WithSkippedGroup(i)
			changed = true
			c.log.Debug("ad group skipped on seek", slog.Int("group", i))
		}
	}
	if changed {
		c.publishStateLocked()
	}
	if c.oracle.ContentDurationMs() != TimeUnset {
		c.oracle.ClearPendingContentPosition()
		c.oracle.StopFakeProgress()
	}
}

// OnPlaybackStateChanged reports the player's playback state.
func (c *Coordinator) OnPlaybackStateChanged(state PlayerState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.recoverInternal("onPlaybackStateChanged")
	if c.released || c.session == nil || c.player == nil {
		return
	}
	if state == PlayerStateBuffering && !c.player.IsPlayingAd() && c.isWaitingForAdToLoadLocked() {
		c.waitingForPreload = true
		c.waitingForPreloadSince = c.clock.Now()
	} else if state == PlayerStateReady {
		c.waitingForPreload = false
	}
	c.handlePlayerStateChangedLocked(c.player.PlayWhenReady(), state)
}

// OnPlayWhenReadyChanged reports a change of the player's play-when-ready
// flag. An active ad follows the host player's transport.
func (c *Coordinator) OnPlayWhenReadyChanged(playWhenReady bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.recoverInternal("onPlayWhenReadyChanged")
	if c.released || c.session == nil || c.player == nil {
		return
	}
	if c.phase == phasePlaying && !playWhenReady {
		c.session.Pause()
		return
	}
	if c.phase == phasePaused && playWhenReady {
		c.session.Resume()
		return
	}
	c.handlePlayerStateChangedLocked(playWhenReady, c.player.State())
}

// OnPlayerError reports a fatal player error so the engine learns the active
// ad failed.
func (c *Coordinator) OnPlayerError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.recoverInternal("onPlayerError")
	if c.phase != phaseNone && c.hasActiveAd {
		c.notifyAdError(c.activeMedia)
	}
}

// PrepareComplete notifies the engine that the player prepared the media of
// the given ad.
func (c *Coordinator) PrepareComplete(group, ad int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.recoverInternal("prepareComplete")
	ref := adRef{group: group, ad: ad}
	media, ok := c.mediaByRef[ref]
	if !ok {
		c.log.Warn("unexpected prepared ad", slog.String("ad", ref.String()))
		return
	}
	c.prepared[ref] = true
	for _, cb := range c.callbacks {
		cb.OnLoaded(media)
	}
}

// PrepareError notifies the engine that the player failed to prepare the
// media of the given ad. When no ad is active yet, content position is faked
// at the break so the engine attempts the ad and can be told of the failure.
func (c *Coordinator) PrepareError(group, ad int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.recoverInternal("prepareError")
	if c.released || c.session == nil || c.player == nil {
		return
	}
	c.log.Debug("ad prepare error",
		slog.String("ad", adRef{group, ad}.String()), slog.String("error", err.Error()))
	if c.phase == phaseNone {
		offsetMs := c.groupTimeMsLocked(group)
		c.oracle.StartFakeProgress(offsetMs)
		ref := adRef{group: group, ad: ad}
		c.pendingPrepareError = &ref
	} else if c.hasActiveAd {
		if ad > c.playingAdIndexInGroup {
			// Mark the playing ad ended so the failure lands on the next ad
			// and the one after it can still load.
			c.notifyAdEnded(c.activeMedia)
		}
		c.playingAdIndexInGroup = ad
		c.notifyAdError(c.activeMedia)
	}
	c.state = c.state.WithAdLoadError(group, ad)
	c.publishStateLocked()
}

// LoadAd is the engine's load callback: it maps a pod position onto a ledger
// slot, fails any lower ads the engine abandoned, and records the media URI.
func (c *Coordinator) LoadAd(media AdMedia, pod PodInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.recoverInternal("loadAd")
	if c.released || c.session == nil {
		c.log.Debug("loadAd after release", slog.String("uri", media.URI))
		return
	}
	group, err := c.groupIndexForPodLocked(pod)
	if err != nil {
		// The engine references a break this session does not know; carrying
		// on would desynchronize the two sides forever.
		panic(err)
	}
	ad := pod.AdPosition - 1
	ref := adRef{group: group, ad: ad}
	c.putMediaLocked(media, ref)

	if c.skipPolicy != nil && c.skipPolicy(group, ad) {
		c.log.Debug("load skipped by policy", slog.String("ad", ref.String()))
		c.state = c.state.WithSkippedGroup(group)
		c.publishStateLocked()
		return
	}
	if c.state.IsAdInErrorState(group, ad) {
		// Already failed; the engine will time the media load out by itself.
		return
	}

	// Pod size may grow on successive loads of the same pod.
	c.state = c.state.WithAdCount(group, pod.TotalAds)
	for i := 0; i < ad; i++ {
		// Ads load in pod order; a lower ad that is still unavailable when a
		// higher one loads will never load.
		if i < len(c.state.Groups[group].States) && c.state.Groups[group].States[i] != AdStateUnavailable {
			continue
		}
		c.state = c.state.WithAdLoadError(group, i)
	}
	c.state = c.state.WithAdURI(group, ad, media.URI)
	c.waitingForPreload = false
	c.oracle.SuspendPreloadBias()
	c.publishStateLocked()
	c.log.Debug("ad loaded", slog.String("ad", ref.String()), slog.String("uri", media.URI))
}

// PlayAd is the engine's play callback: NONE → PLAYING starts the ad,
// PAUSED → PLAYING resumes it.
func (c *Coordinator) PlayAd(media AdMedia) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.recoverInternal("playAd")
	if c.released || c.session == nil {
		return
	}
	ref, known := c.refByMedia[media]
	if known && c.skipPolicy != nil && c.skipPolicy(ref.group, ref.ad) {
		c.log.Debug("play skipped by policy", slog.String("ad", ref.String()))
		c.state = c.state.WithSkippedGroup(ref.group)
		c.phase = phaseNone
		c.notifyAdError(media)
		c.publishStateLocked()
		return
	}
	if c.phase == phasePlaying {
		// The engine does not always send stop before the next play.
		c.log.Warn("unexpected playAd without stopAd")
	}
	if c.phase == phaseNone {
		if !known {
			c.log.Warn("playAd for unknown ad media", slog.String("uri", media.URI))
			return
		}
		// The engine took over; stop faking the content position.
		c.oracle.StopFakeProgress()
		c.phase = phasePlaying
		c.activeMedia = media
		c.activeRef = ref
		c.hasActiveAd = true
		for _, cb := range c.callbacks {
			cb.OnPlay(media)
		}
		if c.pendingPrepareError != nil && *c.pendingPrepareError == ref {
			c.pendingPrepareError = nil
			c.notifyAdError(media)
		}
		c.updateAdProgressLocked()
	} else {
		c.phase = phasePlaying
		for _, cb := range c.callbacks {
			cb.OnResume(media)
		}
	}
	if c.player == nil || !c.player.PlayWhenReady() {
		// Not activated yet, or the host is paused; hold the ad too.
		c.session.Pause()
	}
}

// PauseAd is the engine's pause callback.
func (c *Coordinator) PauseAd(media AdMedia) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.recoverInternal("pauseAd")
	if c.released || c.session == nil {
		return
	}
	if c.phase == phaseNone {
		// A loaded ad will not play because of a seek elsewhere; drop it.
		return
	}
	if c.hasActiveAd && media != c.activeMedia {
		c.log.Warn("unexpected pauseAd", slog.String("uri", media.URI))
	}
	c.phase = phasePaused
	for _, cb := range c.callbacks {
		cb.OnPause(media)
	}
}

// StopAd is the engine's stop callback: the active ad is marked played
// (unless it already failed); a stop with no active ad discards a preloaded
// ad the viewer seeked away from.
func (c *Coordinator) StopAd(media AdMedia) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.recoverInternal("stopAd")
	if c.released || c.session == nil {
		return
	}
	if c.phase == phaseNone {
		if ref, ok := c.refByMedia[media]; ok {
			c.state = c.state.WithSkippedAd(ref.group, ref.ad)
			c.publishStateLocked()
		}
		return
	}
	c.phase = phaseNone
	c.stopAdProgressLocked()
	if !c.hasActiveAd {
		return
	}
	ref := c.activeRef
	if c.state.IsAdInErrorState(ref.group, ref.ad) {
		return
	}
	c.state = c.state.WithPlayedAd(ref.group, ref.ad).WithAdResumePositionUs(0)
	c.publishStateLocked()
	if !c.playingAd {
		c.clearActiveAdLocked()
	}
}

// OnAdEvent dispatches an engine event.
func (c *Coordinator) OnAdEvent(ev AdEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.recoverInternal("onAdEvent")
	if c.released || c.session == nil {
		return
	}
	if ev.Type != AdEventAdProgress {
		c.log.Debug("ad event", slog.Int("type", int(ev.Type)))
	}
	switch ev.Type {
	case AdEventAdBreakFetchError:
		group := len(c.state.Groups) - 1
		if ev.BreakTimeSeconds != -1.0 {
			var err error
			group, err = GroupIndexForCuePoint(c.groupTimes, ev.BreakTimeSeconds)
			if err != nil {
				panic(err)
			}
		}
		c.markGroupLoadErrorLocked(group)

	case AdEventContentPauseRequested:
		// The engine now owns the transport; play/pause/stop callbacks for
		// one or more ads follow until a content resume.
		c.enginePausedContent = true
		c.phase = phaseNone
		if c.oracle.PendingContentPositionSent() {
			c.oracle.ClearPendingContentPosition()
		}

	case AdEventContentResumeRequested:
		c.enginePausedContent = false
		c.resetAdBufferingLocked()
		c.totalAdBufferingMs = 0
		if c.hasActiveAd {
			// Ads the engine chose not to play in this pod are explicitly
			// skipped, never left unavailable.
			c.state = c.state.WithSkippedGroup(c.activeRef.group)
			c.publishStateLocked()
		}
		c.oracle.ResumePreloadBias()

	case AdEventTapped:
		c.listeners.notifyTapped()

	case AdEventClicked:
		c.listeners.notifyClicked()

	case AdEventLog:
		c.log.Info("engine log event", slog.Any("data", ev.Data))
		if ev.Data["type"] == "adLoadError" ||
			(ev.Data["type"] == "adPlayError" && ev.Data["errorCode"] == "403") {
			c.handleGroupLoadErrorLocked(fmt.Errorf("engine log event: %v", ev.Data))
			c.maybeNotifyPendingLoadErrorLocked()
		}

	case AdEventLoaded:
		// The break's media arrived; any stuck-preload wait is over.
		c.waitingForPreload = false

	case AdEventStarted, AdEventAdProgress:
		// The ad is rendering, so it is not stalled.
		if c.adBufferingActive {
			c.totalAdBufferingMs += c.clock.Now().Sub(c.adBufferingStart).Milliseconds()
			c.resetAdBufferingLocked()
		}

	case AdEventAdBuffering:
		c.startAdBufferingLocked(ev.Pod)

	case AdEventCompleted, AdEventSkipped:
		c.totalAdBufferingMs = 0
		c.resetAdBufferingLocked()
	}
}

// OnAdError reports an engine error. Before a session exists it means no ads
// will play at all; afterwards the currently loading break is failed.
func (c *Coordinator) OnAdError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.recoverInternal("onAdError")
	if c.released {
		return
	}
	c.log.Debug("ad error", slog.String("error", err.Error()))
	if c.session == nil {
		c.requestPending = false
		c.cancelTimerLocked(&c.requestTimer)
		c.state = PlaybackState{}
		c.hasState = true
		c.publishStateLocked()
	} else {
		c.handleGroupLoadErrorLocked(err)
	}
	if c.pendingLoadError == nil {
		c.pendingLoadError = newAllAdsLoadError(err)
	}
	c.maybeNotifyPendingLoadErrorLocked()
}

// ContentProgress answers the engine's content progress poll. It also runs
// stuck-preload detection, because the poll is the one callback guaranteed to
// keep arriving while playback is blocked on an ad that never loads.
func (c *Coordinator) ContentProgress() (progress Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			c.handleInternalErrorLocked("contentProgress", fmt.Errorf("internal error in contentProgress: %v", r))
			progress = ProgressNotReady
		}
	}()
	progress = c.contentProgressLocked()

	if c.waitingForPreload {
		stuckFor := c.clock.Now().Sub(c.waitingForPreloadSince)
		if stuckFor >= c.cfg.PreloadTimeout {
			c.waitingForPreload = false
			c.handleGroupLoadErrorLocked(errors.New("ad preloading timed out"))
			c.maybeNotifyPendingLoadErrorLocked()
		}
	} else if c.oracle.HasPendingContentPosition() && c.player != nil &&
		c.player.State() == PlayerStateBuffering && c.isWaitingForAdToLoadLocked() {
		// A pending seek is blocked on an ad load; arm the timeout.
		c.waitingForPreload = true
		c.waitingForPreloadSince = c.clock.Now()
	}
	c.lastContentProgress = progress
	return progress
}

func (c *Coordinator) contentProgressLocked() Progress {
	if c.player == nil {
		if c.oracle.HasPendingContentPosition() || c.oracle.FakeProgressActive() {
			return c.oracle.ContentProgress(0, false)
		}
		return c.lastContentProgress
	}
	realPositionMs := contentPeriodPositionMs(c.player)
	if c.cfg.WatchTimePacing {
		realPositionMs = c.player.TotalPlayTimeMs()
		c.cleanUnusedCuePointsLocked()
	}
	haveReal := c.phase == phaseNone && !c.playingAd
	return c.oracle.ContentProgress(realPositionMs, haveReal)
}

// AdProgress answers the engine's ad progress poll.
func (c *Coordinator) AdProgress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.adProgressLocked()
}

func (c *Coordinator) adProgressLocked() Progress {
	if c.player == nil {
		return c.lastAdProgress
	}
	if c.phase == phaseNone || !c.playingAd || !c.hasActiveAd || !c.prepared[c.activeRef] {
		return ProgressNotReady
	}
	// The player can report the previous ad's duration briefly when an ad in
	// the pod is skipped; only trust it while indices agree.
	if c.activeRef.group != c.player.CurrentAdGroupIndex() ||
		c.activeRef.ad != c.player.CurrentAdIndexInGroup() {
		return ProgressNotReady
	}
	durationMs := c.player.DurationMs()
	positionMs := c.player.PositionMs()
	if durationMs == TimeUnset || positionMs > durationMs {
		return ProgressNotReady
	}
	return Progress{PositionMs: positionMs, DurationMs: durationMs}
}

// Volume answers the engine's volume poll as 0..100.
func (c *Coordinator) Volume() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.player == nil {
		return c.lastVolumePercent
	}
	return c.player.VolumePercent()
}

// SkipAd skips the current skippable ad, if there is one.
func (c *Coordinator) SkipAd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.Skip()
	}
}

// FocusSkipButton moves UI focus to the skip button if currently shown.
func (c *Coordinator) FocusSkipButton() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.Focus()
	}
}

// State returns the current ledger snapshot and whether one exists yet.
func (c *Coordinator) State() (PlaybackState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.hasState
}

// Release tears the coordinator down: cancels every pending timer, resolves
// every remaining group to skipped, and destroys the engine session.
// Idempotent.
func (c *Coordinator) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return
	}
	c.released = true
	c.requestPending = false
	c.cancelTimerLocked(&c.requestTimer)
	c.cancelTimerLocked(&c.bufferSkipTimer)
	c.stopAdProgressLocked()
	c.enginePausedContent = false
	c.phase = phaseNone
	c.clearActiveAdLocked()
	c.pendingLoadError = nil
	c.pendingPrepareError = nil
	c.totalAdBufferingMs = 0
	c.adBufferingActive = false
	for i := range c.state.Groups {
		c.state = c.state.WithSkippedGroup(i)
	}
	for ref := range c.mediaByRef {
		delete(c.mediaByRef, ref)
	}
	for media := range c.refByMedia {
		delete(c.refByMedia, media)
	}
	if c.session != nil {
		c.session.Destroy()
		c.session = nil
	}
	c.publishStateLocked()
	c.log.Debug("coordinator released")
}

// Internal helpers. All require c.mu held.

func (c *Coordinator) contentDurationUsLocked() int64 {
	durationMs := c.oracle.ContentDurationMs()
	if durationMs == TimeUnset {
		return TimeUnset
	}
	return durationMs * 1000
}

func (c *Coordinator) groupTimeMsLocked(group int) int64 {
	timeUs := c.state.Groups[group].TimeUs
	if timeUs == TimeEndOfSource {
		return c.oracle.ContentDurationMs()
	}
	return timeUs / 1000
}

func (c *Coordinator) publishStateLocked() {
	if !c.hasState {
		return
	}
	c.listeners.notifyState(c.state)
}

func (c *Coordinator) maybeNotifyPendingLoadErrorLocked() {
	if c.pendingLoadError == nil {
		return
	}
	c.listeners.notifyLoadError(c.pendingLoadError)
	c.pendingLoadError = nil
}

func (c *Coordinator) putMediaLocked(media AdMedia, ref adRef) {
	// The mapping is bidirectional and unique; a reload of the same slot
	// replaces the old handle.
	if old, ok := c.mediaByRef[ref]; ok {
		delete(c.refByMedia, old)
	}
	if oldRef, ok := c.refByMedia[media]; ok {
		delete(c.mediaByRef, oldRef)
	}
	c.mediaByRef[ref] = media
	c.refByMedia[media] = ref
}

func (c *Coordinator) clearActiveAdLocked() {
	if c.hasActiveAd {
		delete(c.prepared, c.activeRef)
	}
	c.hasActiveAd = false
	c.activeMedia = AdMedia{}
	c.activeRef = adRef{}
}

func (c *Coordinator) notifyAdError(media AdMedia) {
	for _, cb := range c.callbacks {
		cb.OnError(media)
	}
}

func (c *Coordinator) notifyAdEnded(media AdMedia) {
	for _, cb := range c.callbacks {
		cb.OnEnded(media)
	}
}

func (c *Coordinator) cancelTimerLocked(t *Timer) {
	if *t != nil {
		(*t).Cancel()
		*t = nil
	}
}

// maybeInitializeSessionLocked runs the one-time session setup once both the
// session and a player timeline exist.
func (c *Coordinator) maybeInitializeSessionLocked() {
	if c.session == nil || c.sessionInitialized || c.player == nil || !c.hasState {
		return
	}
	if c.oracle.ContentDurationMs() == TimeUnset {
		return
	}
	c.sessionInitialized = true
	positionMs := contentPeriodPositionMs(c.player)
	settings, play := c.setupRenderingLocked(positionMs, c.oracle.ContentDurationMs())
	if !play {
		// Nothing left to play; tear the session down before it starts.
		c.session.Destroy()
		c.session = nil
		c.publishStateLocked()
		return
	}
	c.session.Init(settings)
	c.session.Start()
	c.publishStateLocked()
	c.log.Debug("session initialized",
		slog.Float64("play_ads_after_s", settings.PlayAdsAfterTimeSeconds))
}

// setupRenderingLocked decides which breaks survive a mid-content start. The
// second return is false when no ads should play at all.
func (c *Coordinator) setupRenderingLocked(positionMs, durationMs int64) (RenderingSettings, bool) {
	settings := RenderingSettings{
		EnablePreloading: true,
		MediaLoadTimeout: c.cfg.MediaLoadTimeout,
	}
	if c.cfg.WatchTimePacing {
		settings.MediaLoadTimeout = 2 * c.cfg.CadenceSkipThreshold
		idx := c.state.GroupIndexForPositionUs(positionMs*1000, durationMs*1000)
		if idx != IndexUnset && (len(c.groupTimes) == 0 || c.groupTimes[0] != 0) {
			// No preroll: the grid point at the start position never plays.
			c.state = c.state.WithSkippedGroup(idx)
		}
		return settings, true
	}
	idx := c.state.GroupIndexForPositionUs(positionMs*1000, durationMs*1000)
	if idx == IndexUnset {
		return settings, true
	}
	playAtStart := c.cfg.PlayAdBeforeStartPosition || c.groupTimes[idx] == positionMs*1000
	if !playAtStart {
		idx++
	} else if hasMidrollGroups(c.groupTimes) {
		// Hand the engine the start position once so it notices the break.
		c.oracle.SetPendingContentPosition(positionMs)
	}
	if idx > 0 {
		for i := 0; i < idx; i++ {
			c.state = c.state.WithSkippedGroup(i)
		}
		if idx == len(c.groupTimes) {
			return settings, false
		}
		groupTimeUs := c.groupTimes[idx]
		previousTimeUs := c.groupTimes[idx-1]
		if groupTimeUs == TimeEndOfSource {
			// Postroll only: offset just past the last non-postroll break.
			settings.PlayAdsAfterTimeSeconds = float64(previousTimeUs)/microsPerSecond + 1
		} else {
			// Midpoint between the two breaks, to dodge rounding on either.
			settings.PlayAdsAfterTimeSeconds = float64(groupTimeUs+previousTimeUs) / 2 / microsPerSecond
		}
	}
	return settings, true
}

func hasMidrollGroups(groupTimesUs []int64) bool {
	switch len(groupTimesUs) {
	case 0:
		return false
	case 1:
		return groupTimesUs[0] != 0 && groupTimesUs[0] != TimeEndOfSource
	case 2:
		return groupTimesUs[0] != 0 || groupTimesUs[1] != TimeEndOfSource
	default:
		return true
	}
}

// handlePlayerStateChangedLocked reacts to the combination of play-when-ready
// and playback state for both the content and an active ad.
func (c *Coordinator) handlePlayerStateChangedLocked(playWhenReady bool, state PlayerState) {
	if c.playingAd && c.phase == phasePlaying {
		if !c.bufferingAd && state == PlayerStateBuffering {
			c.bufferingAd = true
			if c.hasActiveAd {
				for _, cb := range c.callbacks {
					cb.OnBuffering(c.activeMedia)
				}
			}
			c.stopAdProgressLocked()
		} else if c.bufferingAd && state == PlayerStateReady {
			c.bufferingAd = false
			c.updateAdProgressLocked()
		}
	}

	if c.phase == phaseNone && state == PlayerStateBuffering && playWhenReady {
		c.ensureContentCompleteLocked()
	} else if c.phase != phaseNone && state == PlayerStateEnded {
		if !c.hasActiveAd {
			c.log.Warn("player ended without active ad media")
			return
		}
		c.notifyAdEnded(c.activeMedia)
	}
}

// handleTimelineOrPositionChangedLocked reconciles the player's timeline
// position with the ledger: detects ad entry/exit, starts fake progress when
// the player is parked on a break the engine has not started, and arms
// pending positions so the engine notices breaks the player is already
// inside.
func (c *Coordinator) handleTimelineOrPositionChangedLocked() {
	if c.session == nil || c.player == nil || !c.hasState {
		return
	}
	player := c.player

	if !c.playingAd && !player.IsPlayingAd() {
		c.ensureContentCompleteLocked()
		if !c.sentContentComplete {
			positionUs := contentPeriodPositionMs(player) * 1000
			idx := c.state.GroupIndexForPositionUs(positionUs, c.contentDurationUsLocked())
			if idx != IndexUnset && c.state.Groups[idx].TimeUs != TimeEndOfSource {
				c.oracle.SetPendingContentPosition(contentPeriodPositionMs(player))
			}
		}
	}

	wasPlayingAd := c.playingAd
	oldPlayingAdIndexInGroup := c.playingAdIndexInGroup
	c.playingAd = player.IsPlayingAd()
	if c.playingAd {
		c.playingAdIndexInGroup = player.CurrentAdIndexInGroup()
	} else {
		c.playingAdIndexInGroup = IndexUnset
	}

	adFinished := wasPlayingAd && c.playingAdIndexInGroup != oldPlayingAdIndexInGroup
	if adFinished && c.hasActiveAd {
		// The engine waits for the ad to finish; tell it now. Either a
		// content resume follows, or play is called again for the next ad.
		if c.playingAdIndexInGroup == IndexUnset || c.activeRef.ad < c.playingAdIndexInGroup {
			c.notifyAdEnded(c.activeMedia)
		}
	}

	if !c.sentContentComplete && !wasPlayingAd && c.playingAd && c.phase == phaseNone {
		group := player.CurrentAdGroupIndex()
		if group != IndexUnset && group < len(c.state.Groups) {
			if c.state.Groups[group].TimeUs == TimeEndOfSource {
				c.sendContentCompleteLocked()
			} else {
				// The engine has not called play yet; fake the position so
				// its progress poll sees the break being reached.
				c.oracle.StartFakeProgress(c.groupTimeMsLocked(group))
			}
		}
	} else if !c.playingAd && wasPlayingAd && c.phase == phaseNone &&
		c.oracle.ContentDurationMs() != TimeUnset {
		// The player left the ad period before the engine played anything
		// (resume-after-midroll races); stop reporting synthetic positions.
		c.oracle.ClearPendingContentPosition()
		c.oracle.StopFakeProgress()
	}
}

// ensureContentCompleteLocked fires the irreversible content-complete
// notification once the position is within the end-of-content threshold.
func (c *Coordinator) ensureContentCompleteLocked() {
	if c.sentContentComplete || c.player == nil {
		return
	}
	durationMs := c.oracle.ContentDurationMs()
	if durationMs == TimeUnset || c.oracle.HasPendingContentPosition() {
		return
	}
	positionMs := contentPeriodPositionMs(c.player)
	if positionMs+c.cfg.EndOfContentThreshold.Milliseconds() >= durationMs {
		c.sendContentCompleteLocked()
	}
}

func (c *Coordinator) sendContentCompleteLocked() {
	for _, cb := range c.callbacks {
		cb.OnContentComplete()
	}
	c.sentContentComplete = true
	c.log.Debug("content complete")
	// Only a postroll may still play.
	for i, g := range c.state.Groups {
		if g.TimeUs != TimeEndOfSource {
			c.state = c.state.WithSkippedGroup(i)
		}
	}
	c.publishStateLocked()
}

// isWaitingForAdToLoadLocked reports whether the first ad of the upcoming
// break should have loaded by now: the break is within the preload window and
// none of its ads are available yet.
func (c *Coordinator) isWaitingForAdToLoadLocked() bool {
	if c.player == nil {
		return false
	}
	idx := c.loadingGroupIndexLocked()
	if idx == IndexUnset {
		return false
	}
	g := c.state.Groups[idx]
	if g.Count != CountUnset && g.Count != 0 && len(g.States) > 0 && g.States[0] != AdStateUnavailable {
		return false
	}
	groupTimeMs := c.groupTimeMsLocked(idx)
	timeUntilAdMs := groupTimeMs - contentPeriodPositionMs(c.player)
	return timeUntilAdMs < c.cfg.PreloadWindow.Milliseconds()
}

// loadingGroupIndexLocked returns the index of the break expected to load
// next: the one the position is inside, else the next one after it.
func (c *Coordinator) loadingGroupIndexLocked() int {
	if c.player == nil {
		return IndexUnset
	}
	positionUs := contentPeriodPositionMs(c.player) * 1000
	durationUs := c.contentDurationUsLocked()
	idx := c.state.GroupIndexForPositionUs(positionUs, durationUs)
	if idx == IndexUnset {
		idx = c.state.GroupIndexAfterPositionUs(positionUs, durationUs)
	}
	return idx
}

// handleGroupLoadErrorLocked fails the break that is currently expected to
// load. Used for fetch failures reported without a break time and for
// preload timeouts.
func (c *Coordinator) handleGroupLoadErrorLocked(err error) {
	idx := c.loadingGroupIndexLocked()
	if idx == IndexUnset {
		c.log.Warn("unable to determine ad group for load error",
			slog.String("error", err.Error()))
		return
	}
	c.markGroupLoadErrorLocked(idx)
	if c.pendingLoadError == nil {
		c.pendingLoadError = newGroupLoadError(idx, err)
	}
}

// markGroupLoadErrorLocked fails every unavailable ad in the group and clears
// any synthetic position that was trying to trigger it, preventing retry
// storms.
func (c *Coordinator) markGroupLoadErrorLocked(group int) {
	c.state = c.state.WithGroupLoadError(group)
	c.publishStateLocked()
	c.oracle.ClearPendingContentPosition()
	c.oracle.StopFakeProgress()
}

// groupIndexForPodLocked maps an engine pod onto a ledger group. The postroll
// sentinel maps to the last group; watch-time mode resolves by player
// position against the synthetic grid; otherwise the pod's declared offset is
// matched against resolved cue points within the tolerance.
func (c *Coordinator) groupIndexForPodLocked(pod PodInfo) (int, error) {
	if pod.PodIndex == PodIndexPostroll {
		if len(c.state.Groups) == 0 {
			return IndexUnset, ErrCuePointNotFound
		}
		return len(c.state.Groups) - 1, nil
	}
	if c.cfg.WatchTimePacing {
		return c.syntheticGroupForPositionLocked()
	}
	return GroupIndexForCuePoint(c.groupTimes, pod.TimeOffsetSeconds)
}

// syntheticGroupForPositionLocked finds the grid point the next ad should
// attach to, skipping points already too close to the position to preload.
func (c *Coordinator) syntheticGroupForPositionLocked() (int, error) {
	if c.player == nil {
		return IndexUnset, ErrCuePointNotFound
	}
	positionUs := contentPeriodPositionMs(c.player) * 1000
	durationUs := c.contentDurationUsLocked()
	for {
		idx := c.state.GroupIndexForPositionUs(positionUs, durationUs)
		if idx == IndexUnset {
			idx = c.state.GroupIndexAfterPositionUs(positionUs, durationUs)
		}
		if idx == IndexUnset {
			return IndexUnset, ErrCuePointNotFound
		}
		timeLeftMs := (c.state.Groups[idx].TimeUs - positionUs) / 1000
		if c.state.Groups[idx].TimeUs != TimeEndOfSource &&
			timeLeftMs > 0 && timeLeftMs < c.cfg.CadenceSkipThreshold.Milliseconds() {
			c.log.Debug("synthetic cue point too close, skipping", slog.Int("group", idx))
			c.state = c.state.WithSkippedGroup(idx)
			c.publishStateLocked()
			continue
		}
		return idx, nil
	}
}

// cleanUnusedCuePointsLocked drops upcoming synthetic grid points that are
// now too close to the position to be worth an ad request.
func (c *Coordinator) cleanUnusedCuePointsLocked() {
	if c.player == nil {
		return
	}
	positionUs := c.player.TotalPlayTimeMs() * 1000
	durationUs := c.contentDurationUsLocked()
	changed := false
	for {
		idx := c.state.GroupIndexAfterPositionUs(positionUs, durationUs)
		if idx == IndexUnset || c.state.Groups[idx].Count != CountUnset {
			break
		}
		if c.state.Groups[idx].TimeUs == TimeEndOfSource {
			break
		}
		timeLeftMs := (c.state.Groups[idx].TimeUs - positionUs) / 1000
		if timeLeftMs >= c.cfg.CadenceSkipThreshold.Milliseconds() {
			break
		}
		c.state = c.state.WithSkippedGroup(idx)
		changed = true
	}
	if changed {
		c.publishStateLocked()
	}
}

// Ad buffering budgets.

func (c *Coordinator) startAdBufferingLocked(pod PodInfo) {
	if c.cfg.AdBufferingBudget <= 0 || c.cfg.TotalAdBufferingBudget <= 0 {
		return
	}
	c.adBufferingStart = c.clock.Now()
	c.adBufferingActive = true
	budgetLeftMs := c.cfg.TotalAdBufferingBudget.Milliseconds() - c.totalAdBufferingMs
	if budgetLeftMs < 0 {
		budgetLeftMs = 0
	}
	delayMs := c.cfg.AdBufferingBudget.Milliseconds()
	if budgetLeftMs < delayMs {
		delayMs = budgetLeftMs
	}
	c.cancelTimerLocked(&c.bufferSkipTimer)
	c.bufferSkipTimer = c.sched.Schedule(time.Duration(delayMs)*time.Millisecond, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		defer c.recoverInternal("bufferingSkip")
		c.handleBufferingSkipLocked(pod)
	})
}

// handleBufferingSkipLocked resolves a still-buffering ad as skipped. This is
// a UX policy decision, distinct from a load failure, so the slot becomes
// skipped rather than errored and the engine's own skip mechanics advance.
func (c *Coordinator) handleBufferingSkipLocked(pod PodInfo) {
	if c.released || !c.adBufferingActive {
		return
	}
	group, err := c.groupIndexForPodLocked(pod)
	if err != nil {
		c.log.Warn("cannot resolve buffering ad pod", slog.String("error", err.Error()))
		return
	}
	ad := pod.AdPosition - 1
	c.log.Debug("ad skipped for excessive buffering",
		slog.String("ad", adRef{group, ad}.String()))
	c.state = c.state.WithSkippedAd(group, ad)
	c.publishStateLocked()
}

func (c *Coordinator) resetAdBufferingLocked() {
	c.adBufferingActive = false
	c.cancelTimerLocked(&c.bufferSkipTimer)
}

// Ad progress polling.

func (c *Coordinator) updateAdProgressLocked() {
	if !c.hasActiveAd {
		return
	}
	progress := c.adProgressLocked()
	media := c.activeMedia
	for _, cb := range c.callbacks {
		cb.OnAdProgress(media, progress)
	}
	c.cancelTimerLocked(&c.adProgressTimer)
	c.adProgressTimer = c.sched.Schedule(c.cfg.AdProgressInterval, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		defer c.recoverInternal("adProgress")
		if c.released || c.phase == phaseNone {
			return
		}
		c.updateAdProgressLocked()
	})
}

func (c *Coordinator) stopAdProgressLocked() {
	c.cancelTimerLocked(&c.adProgressTimer)
}
