package telemetry

import (
	"math"
	"testing"
	"time"
)

// manualClock advances only when told to.
type manualClock struct {
	t time.Time
}

func (c *manualClock) now() time.Time { return c.t }

func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newManualCollector(window int) (*PerfCollector, *manualClock) {
	clock := &manualClock{t: time.Unix(0, 0)}
	pc := NewPerfCollector(window)
	pc.now = clock.now
	return pc, clock
}

// phaseCost is one phase of a scripted step.
type phaseCost struct {
	phase string
	cost  time.Duration
}

func runStep(pc *PerfCollector, clock *manualClock, phases ...phaseCost) {
	pc.StartTick()
	for _, ph := range phases {
		pc.StartPhase(ph.phase)
		clock.advance(ph.cost)
	}
	pc.EndTick()
}

func TestPerfCollectorShares(t *testing.T) {
	pc, clock := newManualCollector(10)
	for i := 0; i < 4; i++ {
		runStep(pc, clock,
			phaseCost{PhasePopulate, time.Millisecond},
			phaseCost{PhaseSnapshot, time.Millisecond},
			phaseCost{PhaseThink, 6 * time.Millisecond},
			phaseCost{PhaseMerge, 2 * time.Millisecond},
		)
	}

	s := pc.Stats()
	if s.Steps != 4 || s.MeanStep != 10*time.Millisecond {
		t.Fatalf("Steps = %d, MeanStep = %v, want 4, 10ms", s.Steps, s.MeanStep)
	}
	if math.Abs(s.StepsPerSecond-100) > 1e-9 {
		t.Errorf("StepsPerSecond = %v, want 100", s.StepsPerSecond)
	}

	tests := []struct {
		phase string
		want  float64
	}{
		{PhasePopulate, 10},
		{PhaseSnapshot, 10},
		{PhaseThink, 60},
		{PhaseMerge, 20},
		{PhaseTelemetry, 0},
		{"unknown", 0},
	}
	for _, tt := range tests {
		if got := s.Share(tt.phase); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Share(%q) = %v, want %v", tt.phase, got, tt.want)
		}
	}
}

func TestPerfCollectorRingKeepsNewest(t *testing.T) {
	pc, clock := newManualCollector(3)
	for ms := 1; ms <= 5; ms++ {
		runStep(pc, clock, phaseCost{PhaseThink, time.Duration(ms) * time.Millisecond})
	}

	s := pc.Stats()
	if s.Steps != 3 {
		t.Fatalf("Steps = %d, want 3", s.Steps)
	}
	if s.MinStep != 3*time.Millisecond || s.MaxStep != 5*time.Millisecond || s.MeanStep != 4*time.Millisecond {
		t.Errorf("min/mean/max = %v/%v/%v, want 3ms/4ms/5ms", s.MinStep, s.MeanStep, s.MaxStep)
	}
}

func TestPerfCollectorUntimedPhase(t *testing.T) {
	pc, clock := newManualCollector(4)
	runStep(pc, clock,
		phaseCost{"render", 3 * time.Millisecond},
		phaseCost{PhaseMerge, time.Millisecond},
	)

	s := pc.Stats()
	if s.MeanStep != 4*time.Millisecond {
		t.Errorf("MeanStep = %v, want 4ms", s.MeanStep)
	}
	if got := s.Share(PhaseMerge); math.Abs(got-25) > 1e-9 {
		t.Errorf("merge share = %v, want 25", got)
	}
}

func TestPerfCollectorEmpty(t *testing.T) {
	pc, _ := newManualCollector(4)
	pc.EndTick() // no step open

	s := pc.Stats()
	if s.Steps != 0 || s.MeanStep != 0 || s.StepsPerSecond != 0 {
		t.Errorf("Stats = %+v, want zero", s)
	}
}

func TestPerfStatsToCSV(t *testing.T) {
	pc, clock := newManualCollector(4)
	runStep(pc, clock,
		phaseCost{PhaseThink, 1500 * time.Microsecond},
		phaseCost{PhaseTelemetry, 500 * time.Microsecond},
	)

	row := pc.Stats().ToCSV(300)
	if row.WindowEnd != 300 || row.Steps != 1 {
		t.Errorf("WindowEnd = %d, Steps = %d, want 300, 1", row.WindowEnd, row.Steps)
	}
	if row.MeanStepUS != 2000 || row.MinStepUS != 2000 || row.MaxStepUS != 2000 {
		t.Errorf("step columns = %d/%d/%d, want 2000", row.MeanStepUS, row.MinStepUS, row.MaxStepUS)
	}
	if row.ThinkPct != 75 || row.TelemetryPct != 25 || row.SnapshotPct != 0 || row.PopulatePct != 0 {
		t.Errorf("phase columns = %+v", row)
	}
}
