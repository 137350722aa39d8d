// Package audio streams rendered stereo frames to the system output.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// bytesPerFrame is one stereo float32 frame.
const bytesPerFrame = 8

// SampleSource renders interleaved stereo float32 frames.
type SampleSource interface {
	Process(dst []float32)
}

// FinishingSource is a SampleSource that can signal when playback has ended.
// When Finished returns true, the stream will return io.EOF on the next Read.
type FinishingSource interface {
	SampleSource
	Finished() bool
}

// Stream adapts a SampleSource to the io.Reader ebiten pulls float32 PCM from.
type Stream struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
	gain   atomic.Uint32 // float32 bits
}

func NewStream(source SampleSource) *Stream {
	s := &Stream{source: source}
	s.SetGain(1)
	return s
}

// SetGain scales every rendered sample. Safe to call from any goroutine.
func (s *Stream) SetGain(gain float32) {
	if gain < 0 {
		gain = 0
	}
	s.gain.Store(math.Float32bits(gain))
}

func (s *Stream) Gain() float32 {
	return math.Float32frombits(s.gain.Load())
}

func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(s.buf) < need {
		s.buf = make([]float32, need)
	}
	s.buf = s.buf[:need]
	s.source.Process(s.buf)
	gain := s.Gain()
	for i, v := range s.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v*gain))
	}
	n := frames * bytesPerFrame
	if fs, ok := s.source.(FinishingSource); ok && fs.Finished() {
		return n, io.EOF
	}
	return n, nil
}

func (s *Stream) Close() error { return nil }

// Player plays one Stream on the shared audio context.
type Player struct {
	player *ebitaudio.Player
	stream *Stream
}

var (
	contextOnce       sync.Once
	context           *ebitaudio.Context
	contextSampleRate int
)

// sharedContext returns the process-wide ebiten audio context; ebiten allows
// only one, so every later request must agree on the rate.
func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	contextOnce.Do(func() {
		contextSampleRate = sampleRate
		context = ebitaudio.NewContext(sampleRate)
	})
	if contextSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", contextSampleRate, sampleRate)
	}
	return context, nil
}

func NewPlayer(sampleRate int, source SampleSource) (*Player, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	stream := NewStream(source)
	pl, err := ctx.NewPlayerF32(stream)
	if err != nil {
		return nil, err
	}
	return &Player{player: pl, stream: stream}, nil
}

func (p *Player) Play()  { p.player.Play() }
func (p *Player) Pause() { p.player.Pause() }

func (p *Player) IsPlaying() bool {
	return p.player.IsPlaying()
}

// SetGain sets the output volume scalar.
func (p *Player) SetGain(gain float32) {
	p.stream.SetGain(gain)
}

// Position returns the current playback position (what the listener actually hears).
func (p *Player) Position() time.Duration {
	return p.player.Position()
}

func (p *Player) Stop() error {
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		return err
	}
	return p.stream.Close()
}
