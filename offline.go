package oidos

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	intseq "github.com/cbegin/oidos-go/internal/sequencer"
)

// Event is a MIDI channel message due at an absolute frame.
type Event = intseq.Event

// maxTailSeconds bounds how long RenderUntilSilent waits for release tails.
const maxTailSeconds = 30

// RenderEvents plays events through a fresh engine for the given duration
// and returns interleaved stereo samples.
func RenderEvents(events []Event, seconds float64, opts ...Option) ([]float32, error) {
	engine, err := NewEngine(opts...)
	if err != nil {
		return nil, err
	}
	rate := int(engine.SampleRate())
	seq := intseq.New(events, engine, rate)
	frames := int(float64(rate) * seconds)
	out := make([]float32, frames*2)
	seq.Process(out)
	return out, nil
}

// RenderUntilSilent plays events until the last note has finished sounding,
// followed by a tenth of a second of silence. It gives up maxTailSeconds
// after the last event.
func RenderUntilSilent(events []Event, opts ...Option) ([]float32, error) {
	engine, err := NewEngine(opts...)
	if err != nil {
		return nil, err
	}
	rate := int(engine.SampleRate())
	block := max(1, rate/100)
	seq := intseq.NewWithOptions(events, engine, rate, intseq.Options{ReleaseTailFrames: rate / 10})
	limit := seq.Length() + int64(rate)*maxTailSeconds
	buf := make([]float32, block*2)
	var out []float32
	for rendered := int64(0); !seq.Finished() && rendered < limit; rendered += int64(block) {
		seq.Process(buf)
		out = append(out, buf...)
	}
	return out, nil
}

// ReadSMF loads a Standard MIDI File as events at sampleRate.
func ReadSMF(path string, sampleRate int) ([]Event, error) {
	events, err := intseq.ReadSMFFile(path, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return events, nil
}

// RenderSMF renders a MIDI file. With seconds <= 0 it renders until every
// note has died away.
func RenderSMF(path string, seconds float64, opts ...Option) ([]float32, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	events, err := ReadSMF(path, cfg.sampleRate)
	if err != nil {
		return nil, err
	}
	if seconds <= 0 {
		return RenderUntilSilent(events, opts...)
	}
	return RenderEvents(events, seconds, opts...)
}

// EncodeWAVFloat32LE wraps samples in a 32-bit float WAV container.
func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	out := make([]byte, 44+dataSize)
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3) // IEEE float
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}

// WriteWAV writes interleaved stereo samples as 16-bit PCM, clipping to
// full scale.
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(math.Round(float64(clip(s)) * math.MaxInt16))
	}
	enc := wav.NewEncoder(w, sampleRate, 16, 2, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	return enc.Close()
}

func clip(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
