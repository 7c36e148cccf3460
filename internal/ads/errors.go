package ads

import (
	"errors"
	"fmt"
)

var (
	// ErrCuePointNotFound is returned when an engine callback references a
	// break time that cannot be correlated to any resolved cue point. It is
	// fatal to the ad session: continuing would leave the engine and the
	// player permanently disagreeing about which break is active.
	ErrCuePointNotFound = errors.New("no ad group matches cue point")

	// ErrSessionReleased is returned for operations on a released session.
	ErrSessionReleased = errors.New("ad session has been released")

	// ErrSessionExists is returned when creating a session whose id is taken.
	ErrSessionExists = errors.New("ad session already exists")

	// ErrSessionNotFound is returned when looking up an unknown session.
	ErrSessionNotFound = errors.New("ad session not found")
)

// LoadErrorScope says how much of the session a load error affects.
type LoadErrorScope int

const (
	// LoadErrorGroup means a single ad break failed; content is unaffected
	// and every other break remains eligible.
	LoadErrorGroup LoadErrorScope = iota
	// LoadErrorAllAds means the session-wide ad request failed or an
	// unexpected internal error forced all remaining breaks to be skipped.
	LoadErrorAllAds
)

// String returns a short name for logging.
func (s LoadErrorScope) String() string {
	if s == LoadErrorGroup {
		return "group"
	}
	return "all"
}

// LoadError is the structured notification delivered to listeners when ads
// fail to load. Cause is never nil.
type LoadError struct {
	Scope LoadErrorScope
	// GroupIndex is the failed break for LoadErrorGroup, IndexUnset otherwise.
	GroupIndex int
	Cause      error
}

// Error implements error.
func (e *LoadError) Error() string {
	if e.Scope == LoadErrorGroup {
		return fmt.Sprintf("ad group %d load error: %v", e.GroupIndex, e.Cause)
	}
	return fmt.Sprintf("ad load error: %v", e.Cause)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *LoadError) Unwrap() error { return e.Cause }

func newGroupLoadError(group int, cause error) *LoadError {
	return &LoadError{Scope: LoadErrorGroup, GroupIndex: group, Cause: cause}
}

func newAllAdsLoadError(cause error) *LoadError {
	return &LoadError{Scope: LoadErrorAllAds, GroupIndex: IndexUnset, Cause: cause}
}
