package params

import (
	"errors"
	"fmt"
	"math"
)

// ID identifies one raw instrument parameter. The order is the order hosts
// see and save parameters in.
type ID int

const (
	Seed ID = iota
	Modes
	Fat
	Width
	Overtones
	Sharpness
	Harmonicity
	DecayLow
	DecayHigh
	FilterLow
	FilterSlopeLow
	FilterSweepLow
	FilterHigh
	FilterSlopeHigh
	FilterSweepHigh
	Gain
	Attack
	Release
	QDecayDiff
	QDecayLow
	QHarmonicity
	QSharpness
	QWidth
	QFilterLow
	QFilterSlopeLow
	QFilterSweepLow
	QFilterHigh
	QFilterSlopeHigh
	QFilterSweepHigh
	QGain
	QAttack
	QRelease

	Count
)

var names = [Count]string{
	Seed:             "seed",
	Modes:            "modes",
	Fat:              "fat",
	Width:            "width",
	Overtones:        "overtones",
	Sharpness:        "sharpness",
	Harmonicity:      "harmonicity",
	DecayLow:         "decaylow",
	DecayHigh:        "decayhigh",
	FilterLow:        "filterlow",
	FilterSlopeLow:   "fslopelow",
	FilterSweepLow:   "fsweeplow",
	FilterHigh:       "filterhigh",
	FilterSlopeHigh:  "fslopehigh",
	FilterSweepHigh:  "fsweephigh",
	Gain:             "gain",
	Attack:           "attack",
	Release:          "release",
	QDecayDiff:       "q_decaydiff",
	QDecayLow:        "q_decaylow",
	QHarmonicity:     "q_harmonicity",
	QSharpness:       "q_sharpness",
	QWidth:           "q_width",
	QFilterLow:       "q_f_low",
	QFilterSlopeLow:  "q_fs_low",
	QFilterSweepLow:  "q_fsw_low",
	QFilterHigh:      "q_f_high",
	QFilterSlopeHigh: "q_fs_high",
	QFilterSweepHigh: "q_fsw_high",
	QGain:            "q_gain",
	QAttack:          "q_attack",
	QRelease:         "q_release",
}

var byName = func() map[string]ID {
	m := make(map[string]ID, Count)
	for id, name := range names {
		m[name] = ID(id)
	}
	return m
}()

var ErrUnknownParameter = errors.New("unknown parameter")

func (id ID) String() string {
	if id < 0 || id >= Count {
		return fmt.Sprintf("ID(%d)", int(id))
	}
	return names[id]
}

// Valid reports whether id names a parameter.
func (id ID) Valid() bool {
	return id >= 0 && id < Count
}

// IsQuantization reports whether id is one of the q_* precision levels.
func (id ID) IsQuantization() bool {
	return id >= QDecayDiff && id < Count
}

// Lookup resolves a parameter name.
func Lookup(name string) (ID, error) {
	id, ok := byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
	return id, nil
}

// Names returns parameter names in ID order.
func Names() []string {
	out := make([]string, Count)
	copy(out, names[:])
	return out
}

// Default returns the factory value of a parameter.
func Default(id ID) float32 {
	if id.IsQuantization() {
		return 0
	}
	switch id {
	case Harmonicity, DecayLow, DecayHigh:
		return 1
	case FilterHigh:
		return 0.8
	case FilterSweepLow, FilterSweepHigh:
		return 0.5
	default:
		return 0.2
	}
}

// Values is a full set of normalized raw parameter values.
type Values [Count]float32

func Defaults() Values {
	var v Values
	for id := ID(0); id < Count; id++ {
		v[id] = Default(id)
	}
	return v
}

// Set stores value clamped to [0,1]. NaN is stored as 0.
func (v *Values) Set(id ID, value float32) {
	v[id] = clamp01(value)
}

func (v *Values) Get(id ID) float32 {
	return v[id]
}

// SetNamed is Set behind a name lookup.
func (v *Values) SetNamed(name string, value float32) error {
	id, err := Lookup(name)
	if err != nil {
		return err
	}
	v.Set(id, value)
	return nil
}

func clamp01(x float32) float32 {
	if !(x > 0) {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Quantize rounds the IEEE-754 bit pattern of value to the nearest multiple
// of 2^floor(level*31), then folds negative zero onto positive zero.
func Quantize(value, level float32) float32 {
	level = clamp01(level)
	bit := uint32(1) << uint(math.Floor(float64(level*31)))
	mask := ^bit + 1
	add := bit >> 1
	bits := (math.Float32bits(value) + add) & mask
	if bits == 0x80000000 {
		bits = 0
	}
	return math.Float32frombits(bits)
}
