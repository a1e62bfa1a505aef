package world

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/pthm-cable/gridsoup/config"
	"github.com/pthm-cable/gridsoup/navigation"
	"github.com/pthm-cable/gridsoup/neural"
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

func testWorld(t *testing.T, cfg *config.Config, rng *rand.Rand) *World {
	t.Helper()
	w := New(cfg, Options{
		Rand:   rng,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(w.Close)
	return w
}

func decode(t *testing.T, w *World, digits string) *neural.Genome {
	t.Helper()
	g, err := w.Codec().Decode(digits)
	if err != nil {
		t.Fatalf("Decode(%q): %v", digits, err)
	}
	return g
}

func randomDigits(rng *rand.Rand, n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteByte(byte('0' + rng.Intn(10)))
	}
	return sb.String()
}

func newTestEgg(w *World, pos navigation.Coordinate, g *neural.Genome) *Tile {
	t := w.newTile(pos, KindEgg)
	t.egg = &Egg{
		genome:      g,
		orientation: navigation.South,
		incubation:  w.tilesCfg.EggIncubationTime,
		energy:      w.tilesCfg.EggEnergy,
		generation:  1,
	}
	return t
}

func mustPlace(t *testing.T, w *World, tile *Tile) {
	t.Helper()
	if err := w.Place(tile); err != nil {
		t.Fatalf("Place(%s): %v", tile, err)
	}
}

func TestEndToEndZeroGenome(t *testing.T) {
	w := testWorld(t, testConfig(10, 10), nil)

	food := w.NewFood(navigation.At(5, 5), 70)
	creature := w.NewCreature(decode(t, w, zeroGenome), navigation.At(5, 6), navigation.North)
	mustPlace(t, w, food)
	mustPlace(t, w, creature)

	start := creature.Creature().Energy()
	w.Update()

	c := creature.Creature()
	if c.LastAction() != ActTurnLeft {
		t.Errorf("LastAction = %d, want %d", c.LastAction(), ActTurnLeft)
	}
	if got := start - c.Energy(); got != 1 {
		t.Errorf("energy dropped by %v, want exactly 1", got)
	}
	if c.Orientation() != navigation.West {
		t.Errorf("orientation = %v, want West after turning left", c.Orientation())
	}
	if w.Get(navigation.At(5, 6)) != creature || w.Get(navigation.At(5, 5)) != food {
		t.Errorf("unexpected grid after tick:\n%s", w)
	}
}

func TestVersus(t *testing.T) {
	w := testWorld(t, testConfig(10, 10), nil)
	g := decode(t, w, zeroGenome)
	pos := navigation.At(1, 1)

	creature := func() *Tile { return w.NewCreature(g, pos, navigation.North) }
	food := func() *Tile { return w.NewFood(pos, 70) }
	egg := func() *Tile { return newTestEgg(w, pos, g) }
	none := func() *Tile { return nil }

	const (
		eatsNothing = iota
		eatsExisting
		eatsIncoming
	)

	tests := []struct {
		name      string
		incoming  func() *Tile
		existing  func() *Tile
		eggEating bool
		wantWin   bool
		wantEaten int
	}{
		{"creature on empty", creature, none, false, true, eatsNothing},
		{"nothing on creature", none, creature, false, false, eatsNothing},
		{"creature on food", creature, food, false, true, eatsExisting},
		{"food on creature", food, creature, false, false, eatsIncoming},
		{"egg on food", egg, food, false, true, eatsNothing},
		{"egg on creature", egg, creature, false, false, eatsNothing},
		{"egg on egg", egg, egg, false, false, eatsNothing},
		{"creature on egg", creature, egg, false, true, eatsNothing},
		{"creature eats egg", creature, egg, true, true, eatsExisting},
		{"creature on creature", creature, creature, false, true, eatsNothing},
		{"food on food", food, food, false, true, eatsNothing},
		{"food on egg", food, egg, false, true, eatsNothing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, ex := tt.incoming(), tt.existing()
			eaten := consume(in, ex, tt.eggEating)

			var want *Tile
			switch tt.wantEaten {
			case eatsExisting:
				want = ex
			case eatsIncoming:
				want = in
			}
			if eaten != want {
				t.Errorf("consume ate %v, want %v", eaten, want)
			}
			if got := wins(in, ex); got != tt.wantWin {
				t.Errorf("wins = %v, want %v", got, tt.wantWin)
			}
		})
	}
}

func TestEatCapsAtMaxEnergy(t *testing.T) {
	w := testWorld(t, testConfig(10, 10), nil)
	tile := w.NewCreature(decode(t, w, zeroGenome), navigation.At(0, 0), navigation.North)
	c := tile.Creature()
	maxEnergy := c.Genome().MaxEnergy()

	c.energy = maxEnergy - 100
	c.Eat(w.NewFood(navigation.At(0, 0), 70))
	if c.Energy() != maxEnergy-30 {
		t.Errorf("energy = %v, want %v", c.Energy(), maxEnergy-30)
	}

	c.Eat(w.NewFood(navigation.At(0, 0), 70))
	if c.Energy() != maxEnergy {
		t.Errorf("energy = %v, want capped at %v", c.Energy(), maxEnergy)
	}

	c.energy = 1
	c.Eat(newTestEgg(w, navigation.At(0, 0), c.Genome()))
	if c.Energy() != 161 {
		t.Errorf("energy after egg = %v, want 161", c.Energy())
	}

	c.Eat(w.NewCreature(c.Genome(), navigation.At(0, 0), navigation.North))
	if c.Energy() != 161 {
		t.Errorf("eating a creature changed energy to %v", c.Energy())
	}
}

func TestPlaceKeepsOneTilePerCell(t *testing.T) {
	w := testWorld(t, testConfig(3, 3), nil)
	rng := rand.New(rand.NewSource(5))
	g := decode(t, w, zeroGenome)

	for i := 0; i < 200; i++ {
		pos := navigation.At(rng.Intn(5)-1, rng.Intn(5)-1)
		var tile *Tile
		switch rng.Intn(3) {
		case 0:
			tile = w.NewCreature(g, pos, navigation.North)
		case 1:
			tile = w.NewFood(pos, 10)
		default:
			tile = newTestEgg(w, pos, g)
		}
		mustPlace(t, w, tile)

		for c, occupant := range w.tiles {
			if occupant.Pos() != c {
				t.Fatalf("tile %s stored under %s", occupant, c)
			}
		}
		if w.Len() > 9 {
			t.Fatalf("%d tiles on a 3x3 grid", w.Len())
		}
	}
}

func TestPlaceWraps(t *testing.T) {
	w := testWorld(t, testConfig(10, 10), nil)
	food := w.NewFood(navigation.At(12, -1), 70)
	mustPlace(t, w, food)

	if food.Pos() != navigation.At(2, 9) {
		t.Errorf("Pos = %s, want (2|9)", food.Pos())
	}
	if w.Get(navigation.At(10, 0)) != nil {
		t.Error("unexpected tile at wrapped origin")
	}

	stray := &Tile{id: 99, pos: navigation.At(10, 0), kind: KindFood, food: &Food{energy: 1, spoilTime: 1}}
	var report TickReport
	if _, err := w.place(stray, w.tiles, &report); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("place un-normalised tile: error = %v, want ErrOutOfBounds", err)
	}
}

func TestEggLifecycle(t *testing.T) {
	w := testWorld(t, testConfig(10, 10), nil)
	g := decode(t, w, zeroGenome)
	egg := newTestEgg(w, navigation.At(4, 4), g)
	incubation := w.tilesCfg.EggIncubationTime

	var report TickReport
	produced := 0
	for tick := 1; tick <= incubation; tick++ {
		if !egg.Update(w.Snapshot()) {
			t.Fatalf("egg died at age %d", tick)
		}
		child := w.produced(egg, &report)
		if tick < incubation && child != nil {
			t.Fatalf("egg hatched early at age %d", tick)
		}
		if child != nil {
			produced++
			if child.Kind() != KindCreature || child.Pos() != egg.Pos() {
				t.Errorf("hatchling = %s, want creature at %s", child, egg.Pos())
			}
			if child.Creature().Orientation() != navigation.South {
				t.Errorf("hatchling faces %v, want egg orientation", child.Creature().Orientation())
			}
			if child.Creature().Generation() != 1 {
				t.Errorf("hatchling generation = %d, want 1", child.Creature().Generation())
			}
		}
	}
	if produced != 1 {
		t.Fatalf("egg produced %d creatures, want 1", produced)
	}

	// Repeated calls never hatch a second creature
	if child := w.produced(egg, &report); child != nil {
		t.Error("egg hatched twice")
	}
	if egg.Update(w.Snapshot()) {
		t.Error("egg alive past incubation")
	}
	if len(report.Hatched) != 1 {
		t.Errorf("report.Hatched = %d entries, want 1", len(report.Hatched))
	}
}

func TestHatchlingReplacesItsEgg(t *testing.T) {
	cfg := testConfig(10, 10)
	cfg.Tiles.AllowEggEating = true
	w := testWorld(t, cfg, nil)
	egg := newTestEgg(w, navigation.At(3, 3), decode(t, w, zeroGenome))
	mustPlace(t, w, egg)

	var hatched, eaten, displaced, removed int
	for tick := 0; tick < cfg.Tiles.EggIncubationTime; tick++ {
		r := w.Update()
		hatched += len(r.Hatched)
		eaten += r.EggsEaten
		displaced += r.Displaced
		removed += len(r.RemovedEggs)
	}

	if hatched != 1 || eaten != 0 || displaced != 0 || removed != 0 {
		t.Errorf("hatched=%d eaten=%d displaced=%d removedEggs=%d, want 1 0 0 0",
			hatched, eaten, displaced, removed)
	}
	got := w.Get(navigation.At(3, 3))
	if got == nil || got.Kind() != KindCreature || w.Len() != 1 {
		t.Fatalf("want the hatchling alone at (3|3):\n%s", w)
	}
	if got.Creature().Energy() != got.Creature().Genome().MaxEnergy() {
		t.Errorf("hatchling energy = %v, want full", got.Creature().Energy())
	}
}

func TestEggRemovals(t *testing.T) {
	w := testWorld(t, testConfig(10, 10), nil)
	egg := newTestEgg(w, navigation.At(5, 4), decode(t, w, zeroGenome))
	mustPlace(t, w, egg)
	mustPlace(t, w, w.NewCreature(decode(t, w, forwardGenome), navigation.At(5, 5), navigation.North))

	report := w.Update()
	if len(report.RemovedEggs) != 1 || report.RemovedEggs[0] != egg.ID() {
		t.Errorf("RemovedEggs = %v, want [%d]", report.RemovedEggs, egg.ID())
	}
	if report.EggsEaten != 0 || report.Displaced != 1 {
		t.Errorf("EggsEaten = %d, Displaced = %d, want 0, 1", report.EggsEaten, report.Displaced)
	}
}

func TestFoodSpoils(t *testing.T) {
	w := testWorld(t, testConfig(10, 10), nil)
	food := w.NewFood(navigation.At(0, 0), 70)
	spoil := w.tilesCfg.FoodSpoilTime

	for tick := 1; tick < spoil; tick++ {
		if !food.Update(w.Snapshot()) {
			t.Fatalf("food spoiled at age %d", tick)
		}
		if w.produced(food, &TickReport{}) != nil {
			t.Fatal("food produced a tile")
		}
	}
	if food.Update(w.Snapshot()) {
		t.Errorf("food alive at age %d", spoil)
	}
}

func TestCreatureEnergyCost(t *testing.T) {
	w := testWorld(t, testConfig(20, 20), nil)
	rng := rand.New(rand.NewSource(11))

	for i := 0; i < 10; i++ {
		tile := w.NewCreature(decode(t, w, randomDigits(rng, 100)), navigation.At(5, 5), navigation.East)
		c := tile.Creature()
		for tick := 0; tick < 10000; tick++ {
			before := c.Energy()
			alive := tile.Update(w.Snapshot())
			if before-c.Energy() < 1 {
				t.Fatalf("genome %d tick %d: energy dropped by %v", i, tick, before-c.Energy())
			}
			if alive != (c.Energy() > 0) {
				t.Fatalf("alive = %v with energy %v", alive, c.Energy())
			}
			if !alive {
				break
			}
		}
	}
}

// forwardGenome always drives actuator 2: tanh(age) feeds it with weight 31/32.
const forwardGenome = "00000" + "00383"

func TestMatingLaysEggs(t *testing.T) {
	w := testWorld(t, testConfig(10, 10), nil)

	a := w.NewCreature(decode(t, w, forwardGenome), navigation.At(5, 5), navigation.North)
	b := w.NewCreature(decode(t, w, forwardGenome+"00032"), navigation.At(5, 4), navigation.South)
	mustPlace(t, w, a)
	mustPlace(t, w, b)

	report := w.Update()

	if len(report.Laid) != 2 {
		t.Fatalf("laid %d eggs, want 2:\n%s", len(report.Laid), w)
	}
	if a.Pos() != navigation.At(5, 5) || b.Pos() != navigation.At(5, 4) {
		t.Errorf("mating creatures moved: %s %s", a.Pos(), b.Pos())
	}

	eggA := w.Get(navigation.At(5, 6))
	if eggA == nil || eggA.Kind() != KindEgg {
		t.Fatalf("no egg behind first creature:\n%s", w)
	}
	if eggA.Egg().Orientation() != navigation.South {
		t.Errorf("egg faces %v, want South", eggA.Egg().Orientation())
	}
	if mother, father := eggA.Egg().Parents(); mother != a.ID() || father != b.ID() {
		t.Errorf("parents = %d/%d, want %d/%d", mother, father, a.ID(), b.ID())
	}
	// No random source: even blend of the shared genes
	if got := eggA.Egg().Genome().Digits(); got != forwardGenome {
		t.Errorf("egg genome = %q, want %q", got, forwardGenome)
	}
	if eggA.Egg().Generation() != 1 {
		t.Errorf("egg generation = %d, want 1", eggA.Egg().Generation())
	}

	eggB := w.Get(navigation.At(5, 3))
	if eggB == nil || eggB.Kind() != KindEgg {
		t.Fatalf("no egg behind second creature:\n%s", w)
	}
	if a.Creature().Children() != 2 || b.Creature().Children() != 2 {
		t.Errorf("children = %d/%d, want 2/2", a.Creature().Children(), b.Creature().Children())
	}
}

func TestBlockedEggCreditsNoChild(t *testing.T) {
	w := testWorld(t, testConfig(10, 10), nil)

	// Created first so it holds the cell before the egg arrives; it only turns.
	blocker := w.NewCreature(decode(t, w, zeroGenome), navigation.At(5, 6), navigation.East)
	a := w.NewCreature(decode(t, w, forwardGenome), navigation.At(5, 5), navigation.North)
	b := w.NewCreature(decode(t, w, forwardGenome+"00032"), navigation.At(5, 4), navigation.South)
	mustPlace(t, w, blocker)
	mustPlace(t, w, a)
	mustPlace(t, w, b)

	report := w.Update()

	if w.Get(navigation.At(5, 6)) != blocker {
		t.Fatalf("blocker lost its cell:\n%s", w)
	}
	if len(report.Laid) != 1 || report.Laid[0].MotherID != b.ID() {
		t.Fatalf("Laid = %+v, want only the second creature's egg", report.Laid)
	}
	if a.Creature().Children() != 1 || b.Creature().Children() != 1 {
		t.Errorf("children = %d/%d, want 1/1", a.Creature().Children(), b.Creature().Children())
	}
	if len(report.RemovedEggs) != 0 {
		t.Errorf("RemovedEggs = %v, want none", report.RemovedEggs)
	}
}

func TestSameGenomeDoesNotMate(t *testing.T) {
	w := testWorld(t, testConfig(10, 10), nil)
	g := decode(t, w, forwardGenome)
	a := w.NewCreature(g, navigation.At(5, 5), navigation.North)
	b := w.NewCreature(g, navigation.At(5, 4), navigation.South)
	mustPlace(t, w, a)
	mustPlace(t, w, b)

	report := w.Update()
	if len(report.Laid) != 0 {
		t.Errorf("identical genomes laid %d eggs", len(report.Laid))
	}
	// Zero distance means no mating, so both walk forward and swap cells
	if a.Pos() != navigation.At(5, 4) || b.Pos() != navigation.At(5, 5) {
		t.Errorf("positions = %s %s, want swapped", a.Pos(), b.Pos())
	}
}

func TestCollisionLaterIDWins(t *testing.T) {
	w := testWorld(t, testConfig(10, 10), nil)
	g := decode(t, w, forwardGenome)
	a := w.NewCreature(g, navigation.At(5, 5), navigation.North)
	b := w.NewCreature(g, navigation.At(5, 3), navigation.South)
	mustPlace(t, w, a)
	mustPlace(t, w, b)

	report := w.Update()
	if w.Get(navigation.At(5, 4)) != b || w.Len() != 1 {
		t.Fatalf("expected the later creature alone at (5|4):\n%s", w)
	}
	if report.Displaced != 1 || len(report.Removed) != 1 || report.Removed[0] != a {
		t.Errorf("report = %+v, want the first creature displaced", report)
	}
}

func TestCreatureMovesAndWraps(t *testing.T) {
	w := testWorld(t, testConfig(10, 10), nil)
	c := w.NewCreature(decode(t, w, forwardGenome), navigation.At(0, 0), navigation.North)
	mustPlace(t, w, c)

	w.Update()
	if c.Pos() != navigation.At(0, 9) {
		t.Errorf("Pos = %s, want (0|9)", c.Pos())
	}
	if w.Get(navigation.At(0, 9)) != c || w.Len() != 1 {
		t.Errorf("grid not re-keyed:\n%s", w)
	}
}

func TestCreatureEatsFoodOnArrival(t *testing.T) {
	w := testWorld(t, testConfig(10, 10), nil)
	c := w.NewCreature(decode(t, w, forwardGenome), navigation.At(3, 3), navigation.East)
	mustPlace(t, w, c)
	mustPlace(t, w, w.NewFood(navigation.At(4, 3), 70))
	c.Creature().energy = 100

	report := w.Update()
	if report.FoodEaten != 1 {
		t.Fatalf("FoodEaten = %d, want 1", report.FoodEaten)
	}
	if w.Get(navigation.At(4, 3)) != c {
		t.Fatalf("creature did not take the food cell:\n%s", w)
	}
	cost := 1 + math.Tanh(1)*31.0/32.0
	if got, want := c.Creature().Energy(), 100-cost+70; math.Abs(got-want) > 1e-9 {
		t.Errorf("energy = %v, want %v", got, want)
	}
}

func TestNextTileAfterOrAt(t *testing.T) {
	w := testWorld(t, testConfig(10, 10), nil)
	if _, ok := w.NextTileAfterOrAt(navigation.At(0, 0)); ok {
		t.Fatal("empty world returned a tile")
	}

	for _, p := range []navigation.Coordinate{navigation.At(2, 3), navigation.At(7, 3), navigation.At(1, 8)} {
		mustPlace(t, w, w.NewFood(p, 1))
	}

	tests := []struct {
		start, want navigation.Coordinate
	}{
		{navigation.At(2, 3), navigation.At(2, 3)},
		{navigation.At(0, 0), navigation.At(2, 3)},
		{navigation.At(3, 3), navigation.At(7, 3)},
		{navigation.At(8, 3), navigation.At(1, 8)},
		{navigation.At(2, 8), navigation.At(2, 3)},
		{navigation.At(13, 13), navigation.At(7, 3)},
	}
	for _, tt := range tests {
		tile, ok := w.NextTileAfterOrAt(tt.start)
		if !ok || tile.Pos() != tt.want {
			t.Errorf("NextTileAfterOrAt(%s) = %v, want %s", tt.start, tile, tt.want)
		}
	}
}

func TestTileIDsPerWorld(t *testing.T) {
	cfg := testConfig(10, 10)
	a := testWorld(t, cfg, nil)
	b := testWorld(t, cfg, nil)

	first := a.NewFood(navigation.At(0, 0), 1)
	second := a.NewFood(navigation.At(1, 0), 1)
	other := b.NewFood(navigation.At(0, 0), 1)

	if first.ID() != 1 || second.ID() != 2 {
		t.Errorf("IDs = %d, %d, want 1, 2", first.ID(), second.ID())
	}
	if other.ID() != 1 {
		t.Errorf("second world starts at ID %d, want 1", other.ID())
	}
}

func TestColors(t *testing.T) {
	w := testWorld(t, testConfig(10, 10), nil)
	g := decode(t, w, zeroGenome)

	c := w.NewCreature(g, navigation.At(0, 0), navigation.North).Color()
	if c.H != g.Value()*360 || c.S != 1 || c.V != 1 {
		t.Errorf("creature color = %+v", c)
	}

	e := newTestEgg(w, navigation.At(0, 0), g).Color()
	if e != (HSV{H: 250, S: 0.6, V: 0.5}) {
		t.Errorf("egg color = %+v", e)
	}

	f := w.NewFood(navigation.At(0, 0), 0.5).Color()
	if f.H != 150 || f.S != math.Tanh(0.5) || f.V != 0.8 {
		t.Errorf("food color = %+v", f)
	}
}

func TestParallelMatchesSerial(t *testing.T) {
	run := func(threshold int) (string, Census) {
		cfg := testConfig(24, 24)
		cfg.Simulation.ParallelThreshold = threshold
		w := testWorld(t, cfg, rand.New(rand.NewSource(42)))

		rng := rand.New(rand.NewSource(7))
		for i := 0; i < 80; i++ {
			pos := navigation.At(rng.Intn(24), rng.Intn(24))
			mustPlace(t, w, w.NewCreature(decode(t, w, randomDigits(rng, 100)), pos, navigation.North))
			mustPlace(t, w, w.NewFood(navigation.At(rng.Intn(24), rng.Intn(24)), 70))
		}
		for tick := 0; tick < 40; tick++ {
			w.Update()
		}
		return w.String(), w.Census()
	}

	serialGrid, serialCensus := run(1 << 30)
	parallelGrid, parallelCensus := run(0)
	if serialGrid != parallelGrid || serialCensus != parallelCensus {
		t.Errorf("parallel run diverged: %+v vs %+v", serialCensus, parallelCensus)
	}
}

func TestUpdateReport(t *testing.T) {
	cfg := testConfig(10, 10)
	cfg.Tiles.FoodSpoilTime = 1
	w := testWorld(t, cfg, nil)
	mustPlace(t, w, w.NewFood(navigation.At(1, 1), 5))
	mustPlace(t, w, w.NewFood(navigation.At(1, 1), 6))

	report := w.Update()
	if report.Tick != 1 || w.Age() != 1 {
		t.Errorf("tick = %d, age = %d, want 1", report.Tick, w.Age())
	}
	// The second food displaced the first before the tick
	if report.Displaced != 1 {
		t.Errorf("Displaced = %d, want 1", report.Displaced)
	}
	if report.FoodSpoiled != 1 || w.Len() != 0 {
		t.Errorf("FoodSpoiled = %d, Len = %d, want 1, 0", report.FoodSpoiled, w.Len())
	}
	if (w.Census() != Census{}) {
		t.Errorf("Census = %+v, want empty", w.Census())
	}
}

func BenchmarkUpdate(b *testing.B) {
	cfg := testConfig(100, 100)
	w := New(cfg, Options{Rand: rand.New(rand.NewSource(1)), Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	defer w.Close()

	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 2000; i++ {
		g, err := w.Codec().Decode(randomDigits(rng, 100))
		if err != nil {
			b.Fatal(err)
		}
		_ = w.Place(w.NewCreature(g, navigation.At(rng.Intn(100), rng.Intn(100)), navigation.North))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Update()
	}
}
