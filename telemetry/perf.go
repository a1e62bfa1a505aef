package telemetry

import (
	"log/slog"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/gridsoup/world"
)

// Phase names for one simulation step. The grid phases come from world.Update.
const (
	PhasePopulate  = "populate"
	PhaseSnapshot  = world.PhaseSnapshot
	PhaseThink     = world.PhaseThink
	PhaseMerge     = world.PhaseMerge
	PhaseTelemetry = "telemetry"
)

// stepPhases lists the timed phases in the order a step runs them.
var stepPhases = [...]string{PhasePopulate, PhaseSnapshot, PhaseThink, PhaseMerge, PhaseTelemetry}

const numPhases = len(stepPhases)

func phaseIndex(name string) int {
	for i, p := range stepPhases {
		if p == name {
			return i
		}
	}
	return -1
}

// stepTiming is the cost of one step split by phase. Time spent in a phase
// outside stepPhases only counts toward total.
type stepTiming struct {
	total  time.Duration
	phases [numPhases]time.Duration
}

// PerfCollector keeps the timings of the most recent steps in a ring.
// It satisfies world.PhaseTimer.
type PerfCollector struct {
	now func() time.Time

	ring   []stepTiming
	next   int
	filled bool

	open       bool
	current    stepTiming
	stepStart  time.Time
	phase      int
	phaseStart time.Time
}

// NewPerfCollector creates a collector averaging over the last window steps.
func NewPerfCollector(window int) *PerfCollector {
	if window < 1 {
		window = 60
	}
	return &PerfCollector{
		now:   time.Now,
		ring:  make([]stepTiming, window),
		phase: -1,
	}
}

// StartTick opens a new step.
func (p *PerfCollector) StartTick() {
	p.stepStart = p.now()
	p.phaseStart = p.stepStart
	p.current = stepTiming{}
	p.phase = -1
	p.open = true
}

// StartPhase closes the running phase and starts timing name.
func (p *PerfCollector) StartPhase(name string) {
	now := p.now()
	p.closePhase(now)
	p.phase = phaseIndex(name)
	p.phaseStart = now
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.phase >= 0 {
		p.current.phases[p.phase] += now.Sub(p.phaseStart)
	}
}

// EndTick closes the step and stores it, overwriting the oldest one once
// the ring is full. It does nothing when no step is open.
func (p *PerfCollector) EndTick() {
	if !p.open {
		return
	}
	now := p.now()
	p.closePhase(now)
	p.current.total = now.Sub(p.stepStart)

	p.ring[p.next] = p.current
	p.next++
	if p.next == len(p.ring) {
		p.next = 0
		p.filled = true
	}
	p.open = false
	p.phase = -1
}

func (p *PerfCollector) recorded() []stepTiming {
	if p.filled {
		return p.ring
	}
	return p.ring[:p.next]
}

// PerfStats summarises the steps currently held by a PerfCollector.
type PerfStats struct {
	Steps          int
	MeanStep       time.Duration
	MinStep        time.Duration
	MaxStep        time.Duration
	StepsPerSecond float64

	share [numPhases]float64
}

// Share returns the percentage of step time spent in phase.
func (s PerfStats) Share(phase string) float64 {
	if i := phaseIndex(phase); i >= 0 {
		return s.share[i]
	}
	return 0
}

// Stats summarises the recorded steps.
func (p *PerfCollector) Stats() PerfStats {
	steps := p.recorded()
	if len(steps) == 0 {
		return PerfStats{}
	}

	totals := make([]float64, len(steps))
	var phaseSums [numPhases]float64
	for i, st := range steps {
		totals[i] = float64(st.total)
		for j, d := range st.phases {
			phaseSums[j] += float64(d)
		}
	}

	sum := floats.Sum(totals)
	s := PerfStats{
		Steps:    len(steps),
		MeanStep: time.Duration(sum / float64(len(steps))),
		MinStep:  time.Duration(floats.Min(totals)),
		MaxStep:  time.Duration(floats.Max(totals)),
	}
	if sum > 0 {
		s.StepsPerSecond = float64(len(steps)) * float64(time.Second) / sum
		for j, ps := range phaseSums {
			s.share[j] = 100 * ps / sum
		}
	}
	return s
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("steps", s.Steps),
		slog.Int64("mean_step_us", s.MeanStep.Microseconds()),
		slog.Int64("min_step_us", s.MinStep.Microseconds()),
		slog.Int64("max_step_us", s.MaxStep.Microseconds()),
		slog.Float64("steps_per_sec", s.StepsPerSecond),
	}
	for i, phase := range stepPhases {
		if s.share[i] > 0.1 {
			attrs = append(attrs, slog.Float64(phase+"_pct", s.share[i]))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is one perf.csv row.
type PerfStatsCSV struct {
	WindowEnd    uint64  `csv:"window_end"`
	Steps        int     `csv:"steps"`
	MeanStepUS   int64   `csv:"mean_step_us"`
	MinStepUS    int64   `csv:"min_step_us"`
	MaxStepUS    int64   `csv:"max_step_us"`
	StepsPerSec  float64 `csv:"steps_per_sec"`
	PopulatePct  float64 `csv:"populate_pct"`
	SnapshotPct  float64 `csv:"snapshot_pct"`
	ThinkPct     float64 `csv:"think_pct"`
	MergePct     float64 `csv:"merge_pct"`
	TelemetryPct float64 `csv:"telemetry_pct"`
}

// ToCSV flattens s into a row for the window ending at windowEnd.
func (s PerfStats) ToCSV(windowEnd uint64) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:    windowEnd,
		Steps:        s.Steps,
		MeanStepUS:   s.MeanStep.Microseconds(),
		MinStepUS:    s.MinStep.Microseconds(),
		MaxStepUS:    s.MaxStep.Microseconds(),
		StepsPerSec:  s.StepsPerSecond,
		PopulatePct:  s.Share(PhasePopulate),
		SnapshotPct:  s.Share(PhaseSnapshot),
		ThinkPct:     s.Share(PhaseThink),
		MergePct:     s.Share(PhaseMerge),
		TelemetryPct: s.Share(PhaseTelemetry),
	}
}
