package oidos

import (
	"errors"
	"sync"
	"sync/atomic"

	intaudio "github.com/cbegin/oidos-go/internal/audio"
	"github.com/cbegin/oidos-go/internal/params"
	intseq "github.com/cbegin/oidos-go/internal/sequencer"
)

// PlaybackEvent carries playback events from Watch().
type PlaybackEvent struct {
	Kind int // EventLoopCompleted or EventPlaybackEnded
}

const (
	EventLoopCompleted int = iota
	EventPlaybackEnded
)

type PlayerOption func(*playerConfig)

type playerConfig struct {
	loopPlayback bool
	sampleTap    func([]float32)
	engine       []Option
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{}
}

func WithLoopPlayback(enabled bool) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.loopPlayback = enabled
	}
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sampleTap = tap
	}
}

// WithEngineOptions configures the engine built for every Play call. The
// player's own sample rate always wins over WithSampleRate.
func WithEngineOptions(opts ...Option) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.engine = append(cfg.engine, opts...)
	}
}

// Player renders events through an engine straight to the audio device.
type Player struct {
	mu           sync.Mutex
	sampleRate   int
	engineOpts   []Option
	overrides    map[string]float64
	engine       *Engine
	audio        *intaudio.Player
	volume       float64
	loopPlayback bool
	sampleTap    func([]float32)
	done         chan struct{}
	eventCh      chan PlaybackEvent
	eventChMu    sync.Mutex
}

// eventWrapper wraps a sequencer and implements SampleSource + FinishingSource
// to signal when non-looping playback ends.
type eventWrapper struct {
	seq       *intseq.Sequencer
	finished  atomic.Bool
	sampleTap func([]float32)
}

func (w *eventWrapper) Process(dst []float32) {
	w.seq.Process(dst)
	if w.sampleTap != nil {
		w.sampleTap(dst)
	}
}

func (w *eventWrapper) Finished() bool {
	return w.finished.Load()
}

func NewPlayer(sampleRate int, opts ...PlayerOption) (*Player, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	engineOpts := append(append([]Option(nil), cfg.engine...), WithSampleRate(sampleRate))
	// Fail early on bad engine options rather than on the first Play.
	engine, err := NewEngine(engineOpts...)
	if err != nil {
		return nil, err
	}
	return &Player{
		sampleRate:   sampleRate,
		engineOpts:   engineOpts,
		overrides:    make(map[string]float64),
		engine:       engine,
		volume:       1,
		loopPlayback: cfg.loopPlayback,
		sampleTap:    cfg.sampleTap,
	}, nil
}

// PlaySMF loads a MIDI file and starts playing it.
func (p *Player) PlaySMF(path string) error {
	events, err := ReadSMF(path, p.sampleRate)
	if err != nil {
		return err
	}
	return p.Play(events)
}

// Play starts playing events on a fresh engine, replacing any current
// playback.
func (p *Player) Play(events []Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Signal any existing Wait() that the previous playback was replaced
	if p.done != nil {
		close(p.done)
	}
	p.done = make(chan struct{})

	// A fresh engine per Play keeps voices and caches from leaking between
	// songs.
	engine, err := p.newEngine()
	if err != nil {
		return err
	}
	p.engine = engine

	wrapper := &eventWrapper{sampleTap: p.sampleTap}
	onEvent := func(kind intseq.EventKind) {
		if kind == intseq.EventPlaybackEnded {
			wrapper.finished.Store(true)
		}
		p.sendEvent(PlaybackEvent{Kind: int(kind)})
		if kind == intseq.EventPlaybackEnded {
			p.signalDone()
		}
	}
	wrapper.seq = intseq.NewWithOptions(events, engine, p.sampleRate, intseq.Options{
		Loop:    p.loopPlayback,
		OnEvent: onEvent,
	})

	backend, err := intaudio.NewPlayer(p.sampleRate, wrapper)
	if err != nil {
		return err
	}
	backend.SetGain(float32(p.volume))
	if p.audio != nil {
		_ = p.audio.Stop()
	}
	p.audio = backend
	p.audio.Play()
	return nil
}

func (p *Player) newEngine() (*Engine, error) {
	opts := append([]Option(nil), p.engineOpts...)
	for name, value := range p.overrides {
		opts = append(opts, WithParameter(name, value))
	}
	return NewEngine(opts...)
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full or closed; drop event
		}
	}
}

func (p *Player) signalDone() {
	p.mu.Lock()
	done := p.done
	p.done = nil
	p.mu.Unlock()
	if done != nil {
		close(done)
	}
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Pause()
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Play()
	}
}

func (p *Player) Stop() error {
	p.mu.Lock()
	if p.audio == nil {
		p.mu.Unlock()
		return nil
	}
	err := p.audio.Stop()
	p.audio = nil
	done := p.done
	p.done = nil
	p.mu.Unlock()
	p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded})
	if done != nil {
		close(done)
	}
	return err
}

// Wait blocks until the current playback ends. When loop playback is enabled,
// Wait blocks indefinitely (use Watch for loop-counting instead).
// Wait returns immediately if no playback is active or if it was stopped.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch returns a channel that receives playback events.
// The channel is buffered (cap 8); receive in a goroutine to avoid blocking the sequencer.
// Only the most recent Watch() channel receives events; call Watch before Play.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// SetParameter changes a named parameter on the playing engine and on every
// engine later Play calls build.
func (p *Player) SetParameter(name string, value float64) error {
	if _, err := params.Lookup(name); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overrides[name] = value
	return p.engine.SetParameter(name, value)
}

// Parameter reports the current engine's value of a named parameter.
func (p *Player) Parameter(name string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.Parameter(name)
}

// SetMasterVolume sets runtime volume scalar. 1.0 is default.
func (p *Player) SetMasterVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
	if p.audio != nil {
		p.audio.SetGain(float32(volume))
	}
}

func (p *Player) MasterVolume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// PlaybackPosition returns the current output position of the audio driver,
// i.e. what the listener actually hears right now. Returns 0 if not playing.
func (p *Player) PlaybackPosition() int64 {
	p.mu.Lock()
	a := p.audio
	p.mu.Unlock()
	if a == nil {
		return 0
	}
	pos := a.Position()
	return int64(pos.Seconds() * float64(p.sampleRate))
}
