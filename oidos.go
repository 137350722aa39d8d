// Package oidos is an additive synthesizer: every note sums hundreds of
// decaying sinusoids whose layout is derived from a small set of normalized
// parameters and a fixed random table, so a given tone, parameter set and
// elapsed time always renders the same sample.
package oidos

import (
	"log/slog"

	"github.com/cbegin/oidos-go/internal/params"
	"github.com/cbegin/oidos-go/internal/random"
	intsynth "github.com/cbegin/oidos-go/internal/synth"
)

// Engine is the polyphonic synthesizer. See NewEngine.
type Engine = intsynth.Engine

type Option func(*config)

type config struct {
	sampleRate int
	deadTime   float64
	logger     *slog.Logger
	table      *random.Table
	values     params.Values
	set        map[string]float64
}

func defaultConfig() config {
	return config{
		sampleRate: intsynth.DefaultSampleRate,
		deadTime:   intsynth.DefaultDeadTime,
		values:     params.Defaults(),
	}
}

func WithSampleRate(rate int) Option {
	return func(cfg *config) {
		cfg.sampleRate = rate
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithDeadTime sets how long a note may stay below audibility before it is
// dropped, in seconds.
func WithDeadTime(seconds float64) Option {
	return func(cfg *config) {
		cfg.deadTime = seconds
	}
}

// WithParameter overrides one named parameter. Unknown names make the
// constructor fail.
func WithParameter(name string, value float64) Option {
	return func(cfg *config) {
		if cfg.set == nil {
			cfg.set = make(map[string]float64)
		}
		cfg.set[name] = value
	}
}

// RandomTable is the immutable noise table generators draw their layout from.
type RandomTable = random.Table

// NewRandomTable builds the default table, for sharing between engines with
// WithRandomTable.
func NewRandomTable() *RandomTable {
	return random.New()
}

// WithRandomTable makes the engine use table instead of building its own.
func WithRandomTable(table *RandomTable) Option {
	return func(cfg *config) {
		cfg.table = table
	}
}

func (cfg config) engineOptions() ([]intsynth.Option, error) {
	values := cfg.values
	for name, v := range cfg.set {
		if err := values.SetNamed(name, float32(v)); err != nil {
			return nil, err
		}
	}
	opts := []intsynth.Option{
		intsynth.WithSampleRate(float32(cfg.sampleRate)),
		intsynth.WithDeadTime(cfg.deadTime),
		intsynth.WithParameters(values),
	}
	if cfg.table != nil {
		opts = append(opts, intsynth.WithRandomTable(cfg.table))
	}
	if cfg.logger != nil {
		opts = append(opts, intsynth.WithLogger(cfg.logger))
	}
	return opts, nil
}

// NewEngine builds an engine. The default is 44100 Hz with factory
// parameters.
func NewEngine(opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	engineOpts, err := cfg.engineOptions()
	if err != nil {
		return nil, err
	}
	return intsynth.New(engineOpts...)
}

// ParameterNames lists the engine's raw parameters in host order.
func ParameterNames() []string {
	return params.Names()
}

// DefaultParameter returns the factory value of a named parameter.
func DefaultParameter(name string) (float64, error) {
	id, err := params.Lookup(name)
	if err != nil {
		return 0, err
	}
	return float64(params.Default(id)), nil
}
