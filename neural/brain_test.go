package neural

import (
	"math"
	"strings"
	"testing"
)

func TestBrainZeroWeights(t *testing.T) {
	c := testCodec(t)
	g := mustDecode(t, c, "00000"+strings.Repeat("00032", 19))
	b := NewBrain(g)

	for _, h := range b.Hidden() {
		if h != 1 {
			t.Fatalf("initial hidden = %v, want all ones", b.Hidden())
		}
	}

	out, err := b.Think([]float64{0.1, 0.5, 0.2, 0.3, 0.25, 1, 0})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 6 {
		t.Fatalf("len(out) = %d, want 6", len(out))
	}
	for i, v := range out {
		if v != 0 {
			t.Errorf("out[%d] = %v, want 0", i, v)
		}
	}
	if Argmax(out) != 0 {
		t.Errorf("Argmax = %d, want 0", Argmax(out))
	}
}

func TestBrainDirectConnection(t *testing.T) {
	c := testCodec(t)
	// sensor 0 -> actuator 0 with weight 0.5
	b := NewBrain(mustDecode(t, c, "00000"+"00240"))

	out, err := b.Think([]float64{2, 0, 0, 0, 0, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != 1 {
		t.Errorf("out[0] = %v, want 1", out[0])
	}
}

func TestBrainHiddenStateCarries(t *testing.T) {
	c := testCodec(t)
	// h2h[0][0] = 0.5, h2o[0][0] = -1
	b := NewBrain(mustDecode(t, c, "00000"+"14384"+"14528"))
	zero := make([]float64, 7)

	wants := []float64{-0.5, -0.25, -0.125}
	for step, want := range wants {
		out, err := b.Think(zero)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(out[0]-want) > 1e-12 {
			t.Errorf("step %d: out[0] = %v, want %v", step, out[0], want)
		}
	}
	if h := b.Hidden(); h[1] != 0 || h[2] != 0 {
		t.Errorf("unconnected neurons kept state: %v", h)
	}
}

func TestBrainLinear(t *testing.T) {
	c := testCodec(t)
	digits := "00000" + "00240" + "02368" + "04500" + "06151" + "14528"
	in := []float64{0.3, 0.1, 0.7, 0.2, 0.5, 0.9, 0.4}
	doubled := make([]float64, len(in))
	for i, v := range in {
		doubled[i] = 2 * v
	}

	// Fresh brains share the same hidden state, so out(x) - out(0) is the sensor term.
	a :=NewBrain(mustDecode(t, c, digits))
	b := NewBrain(mustDecode(t, c, digits))
	zero := make([]float64, 7)
	base, _ := NewBrain(mustDecode(t, c, digits)).Think(zero)

	outA, err := a.Think(in)
	if err != nil {
		t.Fatal(err)
	}
	outB, err := b.Think(doubled)
	if err != nil {
		t.Fatal(err)
	}
	for i := range outA {
		da := outA[i] - base[i]
		db := outB[i] - base[i]
		if math.Abs(db-2*da) > 1e-9 {
			t.Errorf("out[%d] not linear in sensors: delta %v vs %v", i, da, db)
		}
	}
}

func TestBrainSensorMismatch(t *testing.T) {
	c := testCodec(t)
	b := NewBrain(mustDecode(t, c, "00000"))
	if _, err := b.Think([]float64{1, 2}); err == nil {
		t.Fatal("expected error for wrong sensor count")
	}
}

func TestArgmax(t *testing.T) {
	tests := []struct {
		in   []float64
		want int
	}{
		{nil, -1},
		{[]float64{0, 0, 0}, 0},
		{[]float64{1, 3, 3}, 1},
		{[]float64{-2, -1, -3}, 1},
	}
	for _, tt := range tests {
		if got := Argmax(tt.in); got != tt.want {
			t.Errorf("Argmax(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func BenchmarkThink(b *testing.B) {
	c := testCodec(b)
	brain := NewBrain(mustDecode(b, c, "00000"+strings.Repeat("14384", 40)))
	sensors := []float64{0.1, 0.5, 0.2, 0.3, 0.25, 1, 0}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := brain.Think(sensors); err != nil {
			b.Fatal(err)
		}
	}
}
