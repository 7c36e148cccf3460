package ads

import "sync"

// StaticEngine is an Engine whose ad schedule is known up front instead of
// being resolved from a remote ad server. RequestAds delivers a session built
// from the configured cue points on a separate goroutine, matching the
// asynchronous delivery contract real engines have.
type StaticEngine struct {
	mu          sync.Mutex
	cuePoints   []float64
	coordinator *Coordinator
	session     *staticSession
}

// NewStaticEngine returns an engine serving the given cue point schedule.
// Bind must be called before RequestAds.
func NewStaticEngine(cuePoints []float64) *StaticEngine {
	return &StaticEngine{cuePoints: append([]float64(nil), cuePoints...)}
}

// Bind attaches the coordinator session responses are delivered to.
func (e *StaticEngine) Bind(c *Coordinator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.coordinator = c
}

// RequestAds implements Engine.
func (e *StaticEngine) RequestAds() {
	e.mu.Lock()
	c := e.coordinator
	session := &staticSession{engine: e, cuePoints: e.cuePoints}
	e.session = session
	e.mu.Unlock()
	if c == nil {
		return
	}
	go c.OnSessionLoaded(session)
}

// Session returns the delivered session, or nil before RequestAds.
func (e *StaticEngine) Session() *staticSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// staticSession is the EngineSession for a static schedule. Control calls
// only record state; there is no renderer behind them.
type staticSession struct {
	engine    *StaticEngine
	cuePoints []float64

	mu        sync.Mutex
	started   bool
	paused    bool
	destroyed bool
	settings  RenderingSettings
}

func (s *staticSession) CuePoints() []float64 { return s.cuePoints }

func (s *staticSession) Init(settings RenderingSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

func (s *staticSession) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
}

func (s *staticSession) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

func (s *staticSession) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

func (s *staticSession) Skip() {}

func (s *staticSession) Focus() {}

func (s *staticSession) DiscardAdBreak() {}

func (s *staticSession) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
}

// Destroyed reports whether the coordinator tore this session down.
func (s *staticSession) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}
