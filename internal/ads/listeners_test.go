package ads

import "testing"

type fakeRegistrar struct {
	registered   []Obstruction
	unregistered int
}

func (r *fakeRegistrar) Register(o Obstruction) { r.registered = append(r.registered, o) }

func (r *fakeRegistrar) UnregisterAll() { r.unregistered++ }

func TestListenerSet_add_remove(t *testing.T) {
	s := &listenerSet{}
	a := &recListener{}
	b := &recListener{}

	if first := s.add(a); !first {
		t.Error("first add should report first")
	}
	if first := s.add(b); first {
		t.Error("second add should not report first")
	}

	s.notifyState(NewPlaybackState([]int64{0}))
	if len(a.states) != 1 || len(b.states) != 1 {
		t.Errorf("fan-out: got %d/%d want 1/1", len(a.states), len(b.states))
	}

	if last := s.remove(a); last {
		t.Error("remove with one listener left should not report last")
	}
	if last := s.remove(b); !last {
		t.Error("removing the final listener should report last")
	}
}

func TestListenerSet_obstructions_cleared_on_last_remove(t *testing.T) {
	reg := &fakeRegistrar{}
	s := &listenerSet{registrar: reg}
	l := &recListener{}

	s.add(l)
	s.registerObstructions([]Obstruction{{Purpose: "controls", Detail: "transport bar"}})
	if len(reg.registered) != 1 {
		t.Fatalf("registered: got %d want 1", len(reg.registered))
	}

	s.remove(l)
	if reg.unregistered != 1 {
		t.Errorf("unregistered: got %d want 1", reg.unregistered)
	}
}
