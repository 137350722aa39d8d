package oscillator

import (
	"math"
	"runtime"
	"testing"

	"github.com/cbegin/oidos-go/internal/params"
	"github.com/cbegin/oidos-go/internal/random"
)

var table = random.New()

func smallSnapshot(t *testing.T) params.Snapshot {
	t.Helper()
	v := params.Defaults()
	v.Set(params.Modes, 0.04)
	v.Set(params.Fat, 0.03)
	v.Set(params.DecayLow, 0.6)
	v.Set(params.DecayHigh, 0.9)
	return params.Build(&v, 44100)
}

func TestGeneratorIsDeterministic(t *testing.T) {
	s := smallSnapshot(t)
	a := New(s, 60, 0, table)
	b := New(s, 60, 0, table)
	for i := 0; i < 2000; i++ {
		x, y := a.Next(), b.Next()
		if math.Float32bits(x) != math.Float32bits(y) {
			t.Fatalf("sample %d differs: %v vs %v", i, x, y)
		}
	}
}

func TestGeneratorPartialCount(t *testing.T) {
	s := smallSnapshot(t)
	g := New(s, 60, 0, table)
	if g.Partials() != 12 {
		t.Fatalf("partials = %d, want 12", g.Partials())
	}
}

func TestClosedFormSeedingMatchesForwardRun(t *testing.T) {
	s := smallSnapshot(t)
	for _, start := range []int{1, 50, 1000, 44100} {
		ref := New(s, 45, 0, table)
		for i := 0; i < start; i++ {
			ref.Next()
		}
		jumped := New(s, 45, start, table)
		for k := 0; k < 256; k++ {
			want, got := ref.Next(), jumped.Next()
			if math.Abs(float64(want-got)) > 1e-4 {
				t.Fatalf("start=%d k=%d: forward %v, seeded %v", start, k, want, got)
			}
		}
	}
}

func TestGeneratorProducesSignal(t *testing.T) {
	v := params.Defaults()
	s := params.Build(&v, 44100)
	g := New(s, 60, 0, table)
	var peak float64
	for i := 0; i < 4410; i++ {
		x := float64(g.Next())
		if math.IsNaN(x) || math.IsInf(x, 0) {
			t.Fatalf("sample %d is not finite: %v", i, x)
		}
		if a := math.Abs(x); a > peak {
			peak = a
		}
	}
	if peak < 1e-3 {
		t.Fatalf("expected audible output, peak %v", peak)
	}
}

func TestToneChangesOutput(t *testing.T) {
	s := smallSnapshot(t)
	a := New(s, 40, 0, table)
	b := New(s, 41, 0, table)
	same := true
	for i := 0; i < 100; i++ {
		if a.Next() != b.Next() {
			same = false
		}
	}
	if same {
		t.Fatalf("different tones should not render identically")
	}
}

func TestSoftClipSinglePartial(t *testing.T) {
	for _, tc := range []struct{ s, gain float64 }{
		{0.5, 2}, {-0.9, 16}, {3, 4096}, {0.1, 0.5},
	} {
		want := tc.s * math.Sqrt(tc.gain/(1+float64((tc.gain-1)*tc.s*tc.s)))
		if got := softClip(tc.s, tc.gain, 1); got != want {
			t.Fatalf("softClip(%v, %v) = %v, want %v", tc.s, tc.gain, got, want)
		}
		// With n partials the unity term is n.
		want = tc.s * math.Sqrt(tc.gain/(12+float64((tc.gain-1)*tc.s*tc.s)))
		if got := softClip(tc.s, tc.gain, 12); got != want {
			t.Fatalf("softClip(%v, %v, 12) = %v, want %v", tc.s, tc.gain, got, want)
		}
	}
	if got := softClip(10, 0.125, 1); got != 1 {
		t.Fatalf("past the pole output should pin to 1, got %v", got)
	}
	if got := softClip(-10, 0.125, 1); got != -1 {
		t.Fatalf("past the pole output should pin to -1, got %v", got)
	}
}

func BenchmarkGeneratorNext(b *testing.B) {
	v := params.Defaults()
	s := params.Build(&v, 44100)
	g := New(s, 60, 0, table)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Next()
	}
}

// pureSnapshot reduces the bank to one undamped, unfiltered partial at unit
// gain, so its output depends only on the table, the base frequency and the
// phasor recurrence.
func pureSnapshot() params.Snapshot {
	v := params.Defaults()
	v.Set(params.Modes, 0)
	v.Set(params.Fat, 0)
	v.Set(params.Overtones, 0)
	v.Set(params.Width, 0)
	v.Set(params.FilterLow, 0)
	v.Set(params.FilterSlopeLow, 1)
	v.Set(params.FilterHigh, 1)
	v.Set(params.FilterSlopeHigh, 1)
	v.Set(params.Gain, 0.25)
	return params.Build(&v, 44100)
}

func TestSinglePartialIsBitExact(t *testing.T) {
	switch runtime.GOARCH {
	case "arm64", "ppc64", "ppc64le", "s390x", "riscv64", "loong64":
		t.Skipf("math kernels use FMA on %s", runtime.GOARCH)
	}
	g := New(pureSnapshot(), 60, 0, table)
	if g.Partials() != 1 {
		t.Fatalf("partials = %d, want 1", g.Partials())
	}
	want := []uint32{0x3d959f82, 0x3d943d11, 0x3d9207cf, 0x3d8f02e0}
	for i, w := range want {
		if got := math.Float32bits(g.Next()); got != w {
			t.Fatalf("sample %d = %#x, want %#x", i, got, w)
		}
	}
}
