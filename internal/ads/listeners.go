package ads

// EventListener observes the coordinator from the player side. Snapshots are
// delivered strictly in the order they were produced; because every snapshot
// is immutable a listener can never observe a half-updated ledger even when
// invoked synchronously.
type EventListener interface {
	// OnAdPlaybackState delivers a new ledger snapshot.
	OnAdPlaybackState(state PlaybackState)
	// OnAdLoadError reports that ads failed to load. Content is unaffected.
	OnAdLoadError(err *LoadError)
	// OnAdTapped reports a tap on the ad surface.
	OnAdTapped()
	// OnAdClicked reports a click-through.
	OnAdClicked()
}

// Obstruction describes a view overlaying the ad surface that should not
// count against viewability measurement.
type Obstruction struct {
	Purpose string
	Detail  string
}

// ObstructionRegistrar registers visual obstructions with the engine's
// display container. May be nil when the host renders no overlay UI.
type ObstructionRegistrar interface {
	Register(o Obstruction)
	UnregisterAll()
}

// listenerSet fans ledger updates and error notifications out to all
// attached observers. Multiple concurrently active media sources may share
// one coordinator, each attaching its own listener. Mutated only on the
// coordination goroutine.
type listenerSet struct {
	listeners  []EventListener
	registrar  ObstructionRegistrar
	registered bool
}

func (s *listenerSet) add(l EventListener) (first bool) {
	first = len(s.listeners) == 0
	s.listeners = append(s.listeners, l)
	return first
}

func (s *listenerSet) remove(l EventListener) (last bool) {
	for i, existing := range s.listeners {
		if existing == l {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			break
		}
	}
	if len(s.listeners) == 0 {
		if s.registered && s.registrar != nil {
			s.registrar.UnregisterAll()
		}
		s.registered = false
		return true
	}
	return false
}

func (s *listenerSet) registerObstructions(obstructions []Obstruction) {
	if s.registrar == nil {
		return
	}
	for _, o := range obstructions {
		s.registrar.Register(o)
		s.registered = true
	}
}

func (s *listenerSet) notifyState(state PlaybackState) {
	for _, l := range s.listeners {
		l.OnAdPlaybackState(state)
	}
}

func (s *listenerSet) notifyLoadError(err *LoadError) {
	for _, l := range s.listeners {
		l.OnAdLoadError(err)
	}
}

func (s *listenerSet) notifyTapped() {
	for _, l := range s.listeners {
		l.OnAdTapped()
	}
}

func (s *listenerSet) notifyClicked() {
	for _, l := range s.listeners {
		l.OnAdClicked()
	}
}
