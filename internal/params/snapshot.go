package params

import "math"

// TotalSemitones is the span of the spectral filter edges in each direction.
const TotalSemitones = 120

// Snapshot holds the derived synthesis constants for one configuration.
// It is comparable with ==; caches are invalidated only when it changes.
type Snapshot struct {
	Modes     uint8
	Fat       uint8
	Seed      uint8
	Overtones uint8

	DecayLow    float32
	DecayDiff   float32
	Harmonicity float32
	Sharpness   float32
	Width       float32

	FilterLow       float32
	FilterSlopeLow  float32
	FilterSweepLow  float32
	FilterHigh      float32
	FilterSlopeHigh float32
	FilterSweepHigh float32

	Gain float32

	// BaseFreq is the phase increment per sample of tone 0, in radians.
	BaseFreq float32
}

// Build derives a snapshot from raw values at the given sample rate.
// Products feeding a sum are converted explicitly to keep them out of FMA
// fusion.
func Build(v *Values, sampleRate float32) Snapshot {
	s := Snapshot{
		Modes:     uint8(max(count(v[Modes]), 1)),
		Fat:       uint8(max(count(v[Fat]), 1)),
		Seed:      uint8(count(v[Seed])),
		Overtones: uint8(count(v[Overtones])),

		DecayLow:    v[DecayLow],
		DecayDiff:   v[DecayHigh] - v[DecayLow],
		Harmonicity: float32(v[Harmonicity]*2) - 1,
		Sharpness:   float32(v[Sharpness]*5) - 4,
		Width:       pow5(v[Width]) * 100,

		FilterLow:       (float32(v[FilterLow]*2) - 1) * TotalSemitones,
		FilterSlopeLow:  cube(1 - v[FilterSlopeLow]),
		FilterSweepLow:  cube(v[FilterSweepLow]-0.5) * TotalSemitones * 100 / sampleRate,
		FilterHigh:      (float32(v[FilterHigh]*2) - 1) * TotalSemitones,
		FilterSlopeHigh: cube(1 - v[FilterSlopeHigh]),
		FilterSweepHigh: cube(v[FilterSweepHigh]-0.5) * TotalSemitones * 100 / sampleRate,

		Gain: float32(math.Pow(4096, float64(v[Gain]-0.25))),

		BaseFreq: baseFreq(sampleRate),
	}

	s.DecayLow = Quantize(s.DecayLow, v[QDecayLow])
	s.DecayDiff = Quantize(s.DecayDiff, v[QDecayDiff])
	s.Harmonicity = Quantize(s.Harmonicity, v[QHarmonicity])
	s.Sharpness = Quantize(s.Sharpness, v[QSharpness])
	s.Width = Quantize(s.Width, v[QWidth])

	s.FilterLow = Quantize(s.FilterLow, v[QFilterLow])
	s.FilterSlopeLow = Quantize(s.FilterSlopeLow, v[QFilterSlopeLow])
	s.FilterSweepLow = Quantize(s.FilterSweepLow, v[QFilterSweepLow])
	s.FilterHigh = Quantize(s.FilterHigh, v[QFilterHigh])
	s.FilterSlopeHigh = Quantize(s.FilterSlopeHigh, v[QFilterSlopeHigh])
	s.FilterSweepHigh = Quantize(s.FilterSweepHigh, v[QFilterSweepHigh])

	s.Gain = Quantize(s.Gain, v[QGain])
	return s
}

// Partials is the number of sinusoids a generator built from s sums.
func (s Snapshot) Partials() int {
	return int(s.Modes) * int(s.Fat)
}

// AttackRate is the per-sample envelope rise for notes started now.
func AttackRate(v *Values, sampleRate float32) float32 {
	a := v[Attack]
	r := float32(2)
	if a != 0 {
		r = 1 / (a * a * sampleRate)
	}
	return Quantize(r, v[QAttack])
}

// ReleaseRate is the per-sample envelope fall after note-off.
func ReleaseRate(v *Values, sampleRate float32) float32 {
	rel := v[Release]
	r := float32(2)
	if rel != 0 {
		r = 1 / (rel * sampleRate)
	}
	return Quantize(r, v[QRelease])
}

// A4 sits 57 semitones above tone 0.
func baseFreq(sampleRate float32) float32 {
	return 440 * float32(math.Pow(2, -57.0/12)) / sampleRate * 2 * math.Pi
}

func count(x float32) int {
	return int(math.Floor(float64(float32(x*100) + 0.5)))
}

func cube(x float32) float32 { return x * x * x }

func pow5(x float32) float32 { return x * x * x * x * x }
