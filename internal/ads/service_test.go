package ads

import (
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(DefaultConfig(), testLogger(), nil)
}

// waitForLedger polls until the session's ledger exists; the static engine
// delivers it on its own goroutine.
func waitForLedger(t *testing.T, c *Coordinator) PlaybackState {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if state, ok := c.State(); ok {
			return state
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("ledger never became ready")
	return PlaybackState{}
}

func TestService_Create(t *testing.T) {
	svc := newTestService(t)

	session, err := svc.Create("s1", SessionOptions{CuePoints: []float64{0, 15, -1}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	state := waitForLedger(t, session.Coordinator)
	if len(state.Groups) != 3 {
		t.Errorf("groups: got %d want 3", len(state.Groups))
	}
	if svc.Count() != 1 {
		t.Errorf("count: got %d want 1", svc.Count())
	}
}

func TestService_Create_duplicate(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Create("s1", SessionOptions{}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := svc.Create("s1", SessionOptions{})
	if !errors.Is(err, ErrSessionExists) {
		t.Errorf("duplicate create: got %v want ErrSessionExists", err)
	}
}

func TestService_Get_not_found(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Get("missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("got %v want ErrSessionNotFound", err)
	}
}

func TestService_Release(t *testing.T) {
	svc := newTestService(t)
	session, err := svc.Create("s1", SessionOptions{CuePoints: []float64{0}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	waitForLedger(t, session.Coordinator)

	if err := svc.Release("s1"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if svc.Count() != 0 {
		t.Errorf("count after release: got %d want 0", svc.Count())
	}
	if !session.Engine.Session().Destroyed() {
		t.Error("engine session should be destroyed on release")
	}

	if err := svc.Release("s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second release: got %v want ErrSessionNotFound", err)
	}
}

func TestService_Create_watch_time_grid(t *testing.T) {
	svc := newTestService(t)
	session, err := svc.Create("s1", SessionOptions{
		CuePoints:         []float64{0, 25, -1},
		WatchTimePacing:   true,
		ContentDurationMs: 30_000,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	state := waitForLedger(t, session.Coordinator)
	// Preroll, three grid points, postroll.
	want := []int64{0, 10_000_000, 20_000_000, 30_000_000, TimeEndOfSource}
	if len(state.Groups) != len(want) {
		t.Fatalf("groups: got %d want %d", len(state.Groups), len(want))
	}
	for i, g := range state.Groups {
		if g.TimeUs != want[i] {
			t.Errorf("group %d time: got %d want %d", i, g.TimeUs, want[i])
		}
	}
}

func TestService_ReleaseAll(t *testing.T) {
	svc := newTestService(t)
	for _, id := range []string{"a", "b", "c"} {
		if _, err := svc.Create(id, SessionOptions{}); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}

	svc.ReleaseAll()
	if svc.Count() != 0 {
		t.Errorf("count: got %d want 0", svc.Count())
	}
}
