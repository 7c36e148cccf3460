package ads

import "time"

// Timer is a handle to one scheduled callback.
type Timer interface {
	// Cancel stops the callback from firing. Safe to call after it fired.
	Cancel()
}

// Scheduler posts delayed callbacks. The coordinator never sleeps; all
// waiting (ad progress polling, preload timeouts, buffering budgets) is a
// scheduled callback owned by the coordinator and cancelled or rescheduled
// rather than left to fire stale.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) Timer
}

type realScheduler struct{}

type realTimer struct {
	t *time.Timer
}

func (r realTimer) Cancel() { r.t.Stop() }

func (realScheduler) Schedule(delay time.Duration, fn func()) Timer {
	return realTimer{t: time.AfterFunc(delay, fn)}
}

// NewScheduler returns a Scheduler backed by time.AfterFunc. Callbacks fire
// on their own goroutine; the coordinator's entry points serialize them.
func NewScheduler() Scheduler { return realScheduler{} }
