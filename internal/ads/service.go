package ads

import (
	"log/slog"
	"sync"
	"time"

	"adbreak-coordinator/internal/platform/metrics"
)

// Session is one named coordinator with its engine.
type Session struct {
	ID          string
	Coordinator *Coordinator
	Engine      *StaticEngine
}

// Service manages named coordinator sessions. It applies lifecycle rules
// (unique IDs, release-on-remove) and is safe for concurrent use.
type Service struct {
	mu       sync.Mutex
	sessions map[string]*Session
	cfg      Config
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// NewService returns an empty session registry. cfg provides the defaults
// per-session options are merged over. Metrics may be nil.
func NewService(cfg Config, log *slog.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		sessions: make(map[string]*Session),
		cfg:      cfg.withDefaults(),
		log:      log,
		metrics:  m,
	}
}

// sessionMetrics feeds coordinator load-error notifications into Prometheus.
type sessionMetrics struct {
	m *metrics.Metrics
}

func (l sessionMetrics) OnAdPlaybackState(PlaybackState) {}
func (l sessionMetrics) OnAdTapped()                     {}
func (l sessionMetrics) OnAdClicked()                    {}

func (l sessionMetrics) OnAdLoadError(err *LoadError) {
	if err.Scope == LoadErrorAllAds {
		l.m.IncInternalErrors()
		return
	}
	l.m.IncGroupLoadErrors()
}

// SessionOptions are the per-session knobs accepted at creation time.
type SessionOptions struct {
	CuePoints       []float64
	WatchTimePacing bool
	// ContentDurationMs is required for watch-time pacing sessions.
	ContentDurationMs int64
}

// Create registers a new session and immediately requests its ad schedule.
// Returns ErrSessionExists if the ID is taken.
func (s *Service) Create(id string, opts SessionOptions) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		return nil, ErrSessionExists
	}
	cfg := s.cfg
	cfg.WatchTimePacing = opts.WatchTimePacing
	if opts.ContentDurationMs > 0 {
		cfg.ContentDuration = time.Duration(opts.ContentDurationMs) * time.Millisecond
	}
	engine := NewStaticEngine(opts.CuePoints)
	coordinator := NewCoordinator(engine, cfg, Options{
		Logger: s.log.With(slog.String("session", id)),
	})
	engine.Bind(coordinator)
	session := &Session{ID: id, Coordinator: coordinator, Engine: engine}
	s.sessions[id] = session
	if s.metrics != nil {
		coordinator.AddListener(sessionMetrics{m: s.metrics}, nil)
	}
	coordinator.RequestAds()
	s.log.Info("session created", slog.String("session", id),
		slog.Int("cue_points", len(opts.CuePoints)))
	return session, nil
}

// Get looks a session up. Returns ErrSessionNotFound for unknown IDs.
func (s *Service) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Release tears a session down and removes it from the registry.
func (s *Service) Release(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	session.Coordinator.Release()
	s.log.Info("session released", slog.String("session", id))
	return nil
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ReleaseAll tears every session down, for shutdown.
func (s *Service) ReleaseAll() {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for id, session := range s.sessions {
		sessions = append(sessions, session)
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	for _, session := range sessions {
		session.Coordinator.Release()
	}
}
