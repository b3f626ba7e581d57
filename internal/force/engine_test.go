package force

import (
	"io"
	"log/slog"
	"testing"
)

type stateLog struct {
	modes   []Mode
	running []bool
}

func (l *stateLog) record(m Mode, running bool) {
	l.modes = append(l.modes, m)
	l.running = append(l.running, running)
}

func (l *stateLog) last() (Mode, bool) {
	if len(l.modes) == 0 {
		return ModeOff, false
	}
	return l.modes[len(l.modes)-1], l.running[len(l.running)-1]
}

func newTestEngine(mode Mode, links []LinkSpec) (*Engine, *stateLog) {
	src := SourceFunc(func() ([]Particle, []LinkSpec) {
		return []Particle{particle("a", 0, 0), particle("b", 300, 0)}, links
	})
	e := NewEngine(mode, DefaultParams(), testSpacing(), src, slog.New(slog.NewTextHandler(io.Discard, nil)))
	log := &stateLog{}
	e.OnStateChange(log.record)
	return e, log
}

func TestEngineModes(t *testing.T) {
	tests := []struct {
		name        string
		mode        Mode
		wantTrigger bool
		wantNotify  bool
	}{
		{"off", ModeOff, false, false},
		{"manual", ModeManual, true, false},
		{"auto", ModeAuto, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(tt.mode, nil)
			if got := e.Notify(EventNodeCreated); got != tt.wantNotify {
				t.Errorf("Notify = %v, want %v", got, tt.wantNotify)
			}
			e.Stop()
			if got := e.Trigger(); got != tt.wantTrigger {
				t.Errorf("Trigger = %v, want %v", got, tt.wantTrigger)
			}
			if e.Running() != tt.wantTrigger {
				t.Errorf("Running = %v", e.Running())
			}
		})
	}
}

func TestEngineSignalsCompletion(t *testing.T) {
	e, log := newTestEngine(ModeManual, []LinkSpec{{Source: "a", Target: "b"}})
	if !e.Trigger() {
		t.Fatal("Trigger failed")
	}
	if m, running := log.last(); m != ModeManual || !running {
		t.Errorf("start signal = (%v, %v)", m, running)
	}

	done := false
	for i := 0; i < 1000 && !done; i++ {
		var ps []Particle
		ps, done = e.Tick(5)
		if len(ps) != 2 {
			t.Fatalf("Tick returned %d particles", len(ps))
		}
	}
	if !done {
		t.Fatal("simulation never cooled")
	}
	if _, running := log.last(); running {
		t.Error("completion was not signalled")
	}
	if ps, done := e.Tick(1); ps != nil || done {
		t.Error("Tick after completion should do nothing")
	}
}

func TestEngineSetParamsDiscardsSimulation(t *testing.T) {
	e, log := newTestEngine(ModeManual, nil)
	e.Trigger()
	first := e.Simulation()

	p := DefaultParams()
	p.LinkDistance = 42
	e.SetParams(p)
	if e.Running() {
		t.Error("simulation kept running after a parameter change")
	}
	if _, running := log.last(); running {
		t.Error("stop was not signalled")
	}
	e.Trigger()
	if e.Simulation() == first {
		t.Error("trigger reused the discarded simulation")
	}
	if e.Params().LinkDistance != 42 {
		t.Errorf("params = %+v", e.Params())
	}
}

func TestEngineSwitchOffStops(t *testing.T) {
	e, log := newTestEngine(ModeAuto, nil)
	e.Notify(EventDragEnd)
	e.SetMode(ModeOff)
	if e.Running() {
		t.Error("still running after switching off")
	}
	if m, running := log.last(); m != ModeOff || running {
		t.Errorf("last signal = (%v, %v)", m, running)
	}
}

func TestEngineDropsReferenceLinks(t *testing.T) {
	links := []LinkSpec{{Source: "a", Target: "b", Reference: true}}
	e, _ := newTestEngine(ModeManual, links)
	e.Trigger()
	if n := len(e.Simulation().links); n != 0 {
		t.Errorf("links = %d, want 0", n)
	}

	p := DefaultParams()
	p.IncludeReferences = true
	e.SetParams(p)
	e.Trigger()
	if n := len(e.Simulation().links); n != 1 {
		t.Errorf("links = %d, want 1", n)
	}
}

func TestEngineEmptySource(t *testing.T) {
	e := NewEngine(ModeAuto, DefaultParams(), testSpacing(), SourceFunc(func() ([]Particle, []LinkSpec) { return nil, nil }), nil)
	if e.Trigger() {
		t.Error("Trigger on an empty canvas should not start a simulation")
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"off": ModeOff, "Manual": ModeManual, " auto ": ModeAuto, "": ModeOff} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseMode("sometimes"); err == nil {
		t.Error("expected error")
	}
}
