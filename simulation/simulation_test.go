package simulation

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/gridsoup/config"
	"github.com/pthm-cable/gridsoup/navigation"
	"github.com/pthm-cable/gridsoup/neural"
	"github.com/pthm-cable/gridsoup/renderer"
	"github.com/pthm-cable/gridsoup/telemetry"
	"github.com/pthm-cable/gridsoup/world"
)

const zeroGenome = "00000" + "00032" + "00032" + "00032" + "00032" +
	"00032" + "00032" + "00032" + "00032" + "00032" +
	"00032" + "00032" + "00032" + "00032" + "00032" +
	"00032" + "00032" + "00032" + "00032" + "00032"

func testConfig(width, height int) *config.Config {
	cfg := config.Default()
	cfg.World.Width = width
	cfg.World.Height = height
	return cfg
}

func newTestSimulation(t *testing.T, cfg *config.Config, opts Options) *Simulation {
	t.Helper()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	sim, err := New(cfg, 7, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { sim.Close() })
	return sim
}

func placeFood(t *testing.T, sim *Simulation, pos navigation.Coordinate) *world.Tile {
	t.Helper()
	food := sim.World().NewFood(pos, 5)
	if err := sim.World().Place(food); err != nil {
		t.Fatalf("Place: %v", err)
	}
	return food
}

func TestEveryXSteps(t *testing.T) {
	tests := []struct {
		x    int
		want []bool
	}{
		{3, []bool{true, false, false, true, false, false, true}},
		{2, []bool{true, false, true, false}},
		{1, []bool{true, true, true}},
		{0, []bool{true, true, true}},
	}

	for _, tt := range tests {
		decide := EveryXSteps(tt.x)
		for i, want := range tt.want {
			if got := decide(); got != want {
				t.Errorf("EveryXSteps(%d) call %d = %v, want %v", tt.x, i+1, got, want)
			}
		}
	}
}

func TestPopulatePolicy(t *testing.T) {
	sim := newTestSimulation(t, testConfig(20, 20), Options{})

	// Default policy: food every call, a creature every second call.
	if err := sim.Populate(zeroGenome); err != nil {
		t.Fatal(err)
	}
	census := sim.World().Census()
	if census.Creatures != 0 || census.Food != 1 {
		t.Fatalf("after first call census = %+v, want one food", census)
	}
	for _, tile := range sim.World().Tiles() {
		p := tile.Pos()
		if p.X < 5 || p.X > 15 || p.Y < 5 || p.Y > 15 {
			t.Errorf("food at %s, outside the central half", p)
		}
	}

	if err := sim.Populate(zeroGenome); err != nil {
		t.Fatal(err)
	}
	if got := sim.World().Census().Creatures; got != 1 {
		t.Fatalf("after second call creatures = %d, want 1", got)
	}
	for _, tile := range sim.World().Tiles() {
		if c := tile.Creature(); c != nil {
			if c.Orientation() != navigation.North || c.Generation() != 0 {
				t.Errorf("seeded creature faces %v at generation %d", c.Orientation(), c.Generation())
			}
			if c.Genome().Digits() != zeroGenome {
				t.Errorf("seeded genome = %q", c.Genome().Digits())
			}
		}
	}
	if sim.PopulateCalls() != 2 {
		t.Errorf("PopulateCalls = %d, want 2", sim.PopulateCalls())
	}
}

func TestPopulateWithoutFood(t *testing.T) {
	cfg := testConfig(20, 20)
	cfg.Population.PopulateCallsPerCreatureSpawn = 1
	cfg.Population.PopulateCallsPerFoodSpawn = 0
	sim := newTestSimulation(t, cfg, Options{})

	for i := 0; i < 3; i++ {
		if err := sim.Populate(zeroGenome); err != nil {
			t.Fatal(err)
		}
	}
	if census := sim.World().Census(); census.Food != 0 || census.Creatures == 0 {
		t.Errorf("census = %+v, want creatures only", census)
	}
}

func TestPopulateRejectsInvalidDigits(t *testing.T) {
	sim := newTestSimulation(t, testConfig(20, 20), Options{})

	for _, digits := range []string{"", "123", "12a45" + zeroGenome[5:]} {
		err := sim.Populate(digits)
		if !errors.Is(err, neural.ErrInvalidGenome) {
			t.Errorf("Populate(%q) error = %v, want ErrInvalidGenome", digits, err)
		}
	}
	if sim.PopulateCalls() != 0 || sim.World().Len() != 0 {
		t.Errorf("failed calls changed state: calls=%d tiles=%d", sim.PopulateCalls(), sim.World().Len())
	}

	if err := sim.Populate(zeroGenome); err != nil {
		t.Fatal(err)
	}
	if sim.PopulateCalls() != 1 {
		t.Errorf("PopulateCalls = %d, want 1", sim.PopulateCalls())
	}
}

func TestProcessStep(t *testing.T) {
	sim := newTestSimulation(t, testConfig(10, 10), Options{})
	for i := uint64(1); i <= 3; i++ {
		report := sim.ProcessStep()
		if report.Tick != i || sim.Tick() != i {
			t.Fatalf("step %d: report tick %d, world tick %d", i, report.Tick, sim.Tick())
		}
	}
}

func TestChannelTripleEmptyWorld(t *testing.T) {
	sim := newTestSimulation(t, testConfig(3, 2), Options{})

	want := []navigation.Coordinate{
		navigation.At(1, 0), navigation.At(2, 0), navigation.At(0, 1),
		navigation.At(1, 1), navigation.At(2, 1), navigation.At(0, 0),
	}
	for i, pos := range want {
		if rgb := sim.ChannelTriple(); rgb != (renderer.RGB{}) {
			t.Fatalf("empty world returned %s", rgb)
		}
		if sim.Cursor() != pos {
			t.Errorf("call %d: cursor = %s, want %s", i+1, sim.Cursor(), pos)
		}
	}
}

func TestChannelTripleScansTiles(t *testing.T) {
	sim := newTestSimulation(t, testConfig(3, 2), Options{})
	food := placeFood(t, sim, navigation.At(1, 1))

	want, err := renderer.HSVToRGB(food.Color())
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if got := sim.ChannelTriple(); got != want {
			t.Errorf("call %d: ChannelTriple = %s, want %s", i+1, got, want)
		}
		if sim.Cursor() != navigation.At(2, 1) {
			t.Errorf("call %d: cursor = %s, want (2|1)", i+1, sim.Cursor())
		}
	}
}

func TestSnapshotColorsReadingOrder(t *testing.T) {
	sim := newTestSimulation(t, testConfig(4, 4), Options{})
	placeFood(t, sim, navigation.At(2, 0))
	placeFood(t, sim, navigation.At(0, 1))
	placeFood(t, sim, navigation.At(1, 0))

	cells := sim.SnapshotColors()
	want := []navigation.Coordinate{navigation.At(1, 0), navigation.At(2, 0), navigation.At(0, 1)}
	if len(cells) != len(want) {
		t.Fatalf("got %d cells, want %d", len(cells), len(want))
	}
	for i, cell := range cells {
		if cell.Pos != want[i] {
			t.Errorf("cell %d at %s, want %s", i, cell.Pos, want[i])
		}
		if cell.Color.H != 150 {
			t.Errorf("food hue = %v, want 150", cell.Color.H)
		}
	}
}

func TestTelemetryOutput(t *testing.T) {
	cfg := testConfig(10, 10)
	cfg.Telemetry.StatsWindow = 2
	dir := t.TempDir()

	var windows []telemetry.WindowStats
	sim := newTestSimulation(t, cfg, Options{
		OutputDir:     dir,
		StatsCallback: func(s telemetry.WindowStats) { windows = append(windows, s) },
	})

	for i := 0; i < 4; i++ {
		if err := sim.Populate(zeroGenome); err != nil {
			t.Fatal(err)
		}
		sim.ProcessStep()
	}

	if len(windows) != 2 {
		t.Fatalf("got %d stats windows, want 2", len(windows))
	}
	if windows[0].Populated != 2 || windows[1].WindowEndTick != 4 {
		t.Errorf("windows = %+v", windows)
	}

	if err := sim.SaveHallOfFame(t.Context(), nil); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"config.yaml", "telemetry.csv", "perf.csv", "hall_of_fame.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}
