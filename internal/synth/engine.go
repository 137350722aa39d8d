// Package synth is the polyphonic engine: one cache per tone, a list of
// sounding notes, and a queue of timed MIDI commands, rendered one frame at
// a time.
package synth

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/oidos-go/internal/cache"
	"github.com/cbegin/oidos-go/internal/params"
	"github.com/cbegin/oidos-go/internal/random"
	"github.com/cbegin/oidos-go/internal/voice"
)

// Tones is the number of addressable pitches.
const Tones = 128

const (
	DefaultSampleRate = 44100
	DefaultDeadTime   = 1.0 // seconds
)

var ErrInvalidSampleRate = errors.New("sample rate must be positive")

type Option func(*config)

type config struct {
	sampleRate float32
	deadTime   float64
	logger     *slog.Logger
	table      *random.Table
	values     params.Values
}

func defaultConfig() config {
	return config{
		sampleRate: DefaultSampleRate,
		deadTime:   DefaultDeadTime,
		values:     params.Defaults(),
	}
}

func WithSampleRate(rate float32) Option {
	return func(cfg *config) {
		cfg.sampleRate = rate
	}
}

// WithDeadTime sets how long, in seconds, a note may stay near-silent
// before it is dropped.
func WithDeadTime(seconds float64) Option {
	return func(cfg *config) {
		cfg.deadTime = seconds
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithRandomTable shares a prebuilt table between engines.
func WithRandomTable(table *random.Table) Option {
	return func(cfg *config) {
		cfg.table = table
	}
}

// WithParameters replaces the factory parameter values.
func WithParameters(values params.Values) Option {
	return func(cfg *config) {
		cfg.values = values
	}
}

// toneSource binds a tone cache to the engine's current snapshot.
type toneSource struct {
	cache  *cache.Tone
	engine *Engine
}

func (s *toneSource) Sample(t int) float32 {
	return s.cache.Sample(t, &s.engine.snapshot, s.engine.table)
}

// Engine renders notes from timed MIDI commands.
//
// Rendering and MIDI input belong to one goroutine. Parameter and sample
// rate changes may come from any goroutine; mu keeps them out of a block
// being rendered.
type Engine struct {
	mu         sync.RWMutex
	sampleRate float32
	values     params.Values
	snapshot   params.Snapshot
	table      *random.Table
	tones      [Tones]toneSource
	deadTime   float64
	deadLimit  int

	notes  []voice.Note
	events []event
	head   int
	clock  int

	logger *slog.Logger
}

func New(opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if !validRate(float64(cfg.sampleRate)) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSampleRate, cfg.sampleRate)
	}
	if cfg.deadTime <= 0 {
		cfg.deadTime = DefaultDeadTime
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.table == nil {
		cfg.table = random.New()
	}
	e := &Engine{
		sampleRate: cfg.sampleRate,
		table:      cfg.table,
		deadTime:   cfg.deadTime,
		logger:     cfg.logger,
	}
	for id := params.ID(0); id < params.Count; id++ {
		e.values.Set(id, cfg.values[id])
	}
	for i := range e.tones {
		e.tones[i] = toneSource{cache: cache.New(uint8(i)), engine: e}
	}
	e.deadLimit = e.computeDeadLimit()
	e.snapshot = params.Build(&e.values, e.sampleRate)
	return e, nil
}

func validRate(rate float64) bool {
	return rate > 0 && !math.IsInf(rate, 0)
}

func (e *Engine) computeDeadLimit() int {
	return int(e.deadTime * float64(e.sampleRate))
}

// Configure changes the sample rate.
func (e *Engine) Configure(sampleRate float64) error {
	if !validRate(sampleRate) {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRate, sampleRate)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sampleRate = float32(sampleRate)
	e.deadLimit = e.computeDeadLimit()
	e.rebuild()
	return nil
}

func (e *Engine) SampleRate() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return float64(e.sampleRate)
}

// SetParameter stores a normalized value for a named parameter. Values are
// clamped to [0,1].
func (e *Engine) SetParameter(name string, value float64) error {
	id, err := params.Lookup(name)
	if err != nil {
		return err
	}
	e.SetParameterID(id, float32(value))
	return nil
}

// SetParameterID is SetParameter without the name lookup.
func (e *Engine) SetParameterID(id params.ID, value float32) {
	if !id.Valid() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	old := e.values[id]
	e.values.Set(id, value)
	if e.values[id] != old {
		e.rebuild()
	}
}

func (e *Engine) Parameter(name string) (float64, error) {
	id, err := params.Lookup(name)
	if err != nil {
		return 0, err
	}
	return float64(e.ParameterID(id)), nil
}

func (e *Engine) ParameterID(id params.ID) float32 {
	if !id.Valid() {
		return 0
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.values[id]
}

// Parameters returns a copy of the raw parameter values.
func (e *Engine) Parameters() params.Values {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.values
}

// Snapshot returns the derived parameters in force.
func (e *Engine) Snapshot() params.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

// rebuild must be called with mu held for writing.
func (e *Engine) rebuild() {
	next := params.Build(&e.values, e.sampleRate)
	if next == e.snapshot {
		return
	}
	e.snapshot = next
	for i := range e.tones {
		e.tones[i].cache.Invalidate()
	}
	e.logger.Debug("synthesis parameters changed, tone caches invalidated",
		"modes", next.Modes, "fat", next.Fat, "sample_rate", e.sampleRate)
}

// PushMIDIEvent queues a status/data1/data2 triplet to take effect offset
// samples after the current clock. Commands other than note-on, note-off,
// all-notes-off and all-sound-off are ignored.
//
// A queued command runs only on the frame whose clock equals its due time.
func (e *Engine) PushMIDIEvent(offset int, status, data1, data2 byte) error {
	return e.PushMessage(offset, midi.Message{status, data1, data2})
}

// PushMessage is PushMIDIEvent for a gomidi message.
func (e *Engine) PushMessage(offset int, msg midi.Message) error {
	if offset < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeOffset, offset)
	}
	if !validTriplet(msg) {
		return fmt.Errorf("%w: % X", ErrMalformedMIDI, []byte(msg))
	}
	cmd, key, vel := decode(msg)
	if cmd == cmdUnknown {
		e.logger.Debug("ignoring MIDI message", "msg", msg.String())
		return nil
	}
	ev := event{time: e.clock + offset, cmd: cmd, key: key, velocity: vel}
	e.enqueue(ev)
	e.logger.Debug("queued MIDI command", "cmd", cmd.String(), "key", key, "velocity", vel, "time", ev.time)
	return nil
}

// enqueue keeps pending events ordered by time, arrival order within a time.
func (e *Engine) enqueue(ev event) {
	if e.head > 0 {
		n := copy(e.events, e.events[e.head:])
		e.events = e.events[:n]
		e.head = 0
	}
	i := sort.Search(len(e.events), func(i int) bool { return e.events[i].time > ev.time })
	e.events = append(e.events, event{})
	copy(e.events[i+1:], e.events[i:])
	e.events[i] = ev
}

// Pending returns the number of queued commands not yet applied.
func (e *Engine) Pending() int {
	return len(e.events) - e.head
}

func (e *Engine) apply(ev event) {
	switch ev.cmd {
	case cmdNoteOn:
		attack := params.AttackRate(&e.values, e.sampleRate)
		release := params.ReleaseRate(&e.values, e.sampleRate)
		e.notes = append(e.notes, voice.New(ev.key, ev.velocity, attack, release, e.deadLimit))
	case cmdNoteOff:
		for i := range e.notes {
			n := &e.notes[i]
			if n.Tone() == ev.key && !n.Released() {
				n.Release()
				break
			}
		}
	case cmdAllNotesOff:
		for i := range e.notes {
			e.notes[i].Release()
		}
	case cmdAllSoundOff:
		e.notes = e.notes[:0]
	}
}

// frame renders one stereo sample. mu must be held for reading.
func (e *Engine) frame() (float32, float32) {
	for e.head < len(e.events) && e.events[e.head].time == e.clock {
		e.apply(e.events[e.head])
		e.head++
	}
	var l, r float32
	for i := len(e.notes) - 1; i >= 0; i-- {
		n := &e.notes[i]
		if !n.Alive() {
			e.notes = append(e.notes[:i], e.notes[i+1:]...)
			continue
		}
		nl, nr := n.Produce(&e.tones[n.Tone()])
		l += nl
		r += nr
	}
	e.clock++
	return l, r
}

// RenderFrame renders a single stereo frame.
func (e *Engine) RenderFrame() (float32, float32) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.frame()
}

// Process fills dst with interleaved stereo frames.
func (e *Engine) Process(dst []float32) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for i := 0; i+1 < len(dst); i += 2 {
		dst[i], dst[i+1] = e.frame()
	}
}

// RenderPlanar fills left and right; it renders min(len(left), len(right)) frames.
func (e *Engine) RenderPlanar(left, right []float32) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := min(len(left), len(right))
	for i := 0; i < n; i++ {
		left[i], right[i] = e.frame()
	}
}

// RenderBlock returns frames interleaved stereo frames.
func (e *Engine) RenderBlock(frames int) []float32 {
	if frames <= 0 {
		return nil
	}
	out := make([]float32, frames*2)
	e.Process(out)
	return out
}

// Clock returns the number of frames rendered so far.
func (e *Engine) Clock() int {
	return e.clock
}

// ActiveVoiceCount returns the number of notes still held by the engine.
func (e *Engine) ActiveVoiceCount() int {
	n := 0
	for i := range e.notes {
		if e.notes[i].Alive() {
			n++
		}
	}
	return n
}

// SegmentCount reports how many generator segments tone's cache holds.
func (e *Engine) SegmentCount(tone int) int {
	if tone < 0 || tone >= Tones {
		return 0
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tones[tone].cache.Segments()
}
