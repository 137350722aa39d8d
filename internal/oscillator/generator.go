// Package oscillator implements the additive oscillator bank behind one tone.
package oscillator

import (
	"math"

	"github.com/cbegin/oidos-go/internal/params"
	"github.com/cbegin/oidos-go/internal/random"
)

// Random words consumed per mode block.
const modeStride = 256

// Generator advances a bank of decaying complex phasors one sample at a time.
// Partial state lives in parallel slices so the inner loop stays flat.
type Generator struct {
	n int

	stateRe    []float64
	stateIm    []float64
	stepRe     []float64
	stepIm     []float64
	filterLow  []float64
	filterHigh []float64

	filterAddLow  float64
	filterAddHigh float64

	gain float64
}

// New builds the oscillator bank for tone as it stands at elapsed sample
// start. Phasors and filter edges are seeded in closed form, so the result
// continues exactly where a generator started at zero would be after start
// samples, up to rounding.
func New(s params.Snapshot, tone uint8, start int, table *random.Table) *Generator {
	n := s.Partials()
	g := &Generator{
		n:          n,
		stateRe:    make([]float64, 0, n),
		stateIm:    make([]float64, 0, n),
		stepRe:     make([]float64, 0, n),
		stepIm:     make([]float64, 0, n),
		filterLow:  make([]float64, 0, n),
		filterHigh: make([]float64, 0, n),

		filterAddLow:  float64(-s.FilterSweepLow * s.FilterSlopeLow),
		filterAddHigh: float64(s.FilterSweepHigh * s.FilterSlopeHigh),

		gain: float64(s.Gain),
	}

	t := float64(start)
	lowLimit := float64(s.FilterLow) + float64(tone)
	highLimit := float64(s.FilterHigh) + float64(tone)

	for m := 0; m < int(s.Modes); m++ {
		idx := m*modeStride + int(s.Seed)
		next := func() float64 {
			r := table.Signed(idx)
			idx++
			return r
		}

		subtone := math.Abs(next())
		reltone := subtone * float64(s.Overtones)
		decay := float64(s.DecayLow) + float64(subtone*float64(s.DecayDiff))
		ampmul := math.Pow(decay, 1.0/4096)

		relfreq := math.Pow(2, reltone/12)
		relfreqOT := math.Floor(relfreq + 0.5)
		relfreqH := relfreq + float64((relfreqOT-relfreq)*float64(s.Harmonicity))
		reltone = math.Log2(relfreqH) * 12
		mtone := float64(tone) + reltone
		mamp := next() * math.Pow(2, reltone*float64(s.Sharpness)/12)

		for f := 0; f < int(s.Fat); f++ {
			ptone := mtone + float64(next()*float64(s.Width))
			phase := float64(s.BaseFreq) * math.Pow(2, ptone/12)
			g.stepRe = append(g.stepRe, ampmul*math.Cos(phase))
			g.stepIm = append(g.stepIm, ampmul*math.Sin(phase))

			angle := float64(next()*math.Pi) + float64(phase*t)
			amp := mamp * math.Pow(ampmul, t)
			g.stateRe = append(g.stateRe, amp*math.Cos(angle))
			g.stateIm = append(g.stateIm, amp*math.Sin(angle))

			startLow := 1 - float64((lowLimit-ptone)*float64(s.FilterSlopeLow))
			startHigh := 1 - float64((ptone-highLimit)*float64(s.FilterSlopeHigh))
			g.filterLow = append(g.filterLow, startLow+float64(g.filterAddLow*t))
			g.filterHigh = append(g.filterHigh, startHigh+float64(g.filterAddHigh*t))
		}
	}
	return g
}

// Partials returns the number of sinusoids summed per sample.
func (g *Generator) Partials() int { return g.n }

// Next advances every partial by one sample and returns the soft-clipped sum.
func (g *Generator) Next() float32 {
	var sum float64
	stateRe, stateIm := g.stateRe[:g.n], g.stateIm[:g.n]
	stepRe, stepIm := g.stepRe[:g.n], g.stepIm[:g.n]
	low, high := g.filterLow[:g.n], g.filterHigh[:g.n]
	// Products are converted explicitly so no platform fuses them into FMA
	// instructions; output must be bit-identical everywhere.
	for i := range stateRe {
		re := float64(stateRe[i]*stepRe[i]) - float64(stateIm[i]*stepIm[i])
		im := float64(stateRe[i]*stepIm[i]) + float64(stateIm[i]*stepRe[i])
		stateRe[i] = re
		stateIm[i] = im

		low[i] += g.filterAddLow
		high[i] += g.filterAddHigh
		w := math.Min(clamp01(low[i]), clamp01(high[i]))
		sum += float64(w * re)
	}
	// Oidos clips with s*sqrt(gain/(n_partials + (gain-1)*s*s)).
	return float32(softClip(sum, g.gain, float64(g.n)))
}

// softClip saturates s towards sqrt(gain/(gain-1)); unity is the partial count.
// Below unit gain the curve expands instead and has a pole; past it the
// output is pinned to full scale.
func softClip(s, gain, unity float64) float64 {
	d := unity + float64((gain-1)*s*s)
	if d <= 0 {
		return math.Copysign(1, s)
	}
	return s * math.Sqrt(gain/d)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
