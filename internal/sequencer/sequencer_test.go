package sequencer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/cbegin/oidos-go/internal/params"
	"github.com/cbegin/oidos-go/internal/synth"
)

type pushed struct {
	offset int
	status byte
	key    byte
	block  int
}

type countingEngine struct {
	pushes []pushed
	blocks int
	voices int
}

func (e *countingEngine) PushMIDIEvent(offset int, status, data1, data2 byte) error {
	if status&0x80 == 0 {
		return errors.New("bad status")
	}
	e.pushes = append(e.pushes, pushed{offset: offset, status: status, key: data1, block: e.blocks})
	return nil
}
func (e *countingEngine) Process(dst []float32) { e.blocks++ }
func (e *countingEngine) ActiveVoiceCount() int { return e.voices }

func TestSequencerQueuesEventsAtBlockOffsets(t *testing.T) {
	events := []Event{
		{Frame: 300, Status: 0x80, Data1: 60},
		{Frame: 10, Status: 0x90, Data1: 60, Data2: 100},
		{Frame: 256, Status: 0x90, Data1: 62, Data2: 100},
	}
	engine := &countingEngine{}
	seq := New(events, engine, 48000)
	buf := make([]float32, 256*2)
	seq.Process(buf)
	seq.Process(buf)
	want := []pushed{
		{offset: 10, status: 0x90, key: 60, block: 0},
		{offset: 0, status: 0x90, key: 62, block: 1},
		{offset: 44, status: 0x80, key: 60, block: 1},
	}
	if len(engine.pushes) != len(want) {
		t.Fatalf("pushes = %+v, want %+v", engine.pushes, want)
	}
	for i := range want {
		if engine.pushes[i] != want[i] {
			t.Fatalf("push %d = %+v, want %+v", i, engine.pushes[i], want[i])
		}
	}
	if seq.Length() != 300 {
		t.Fatalf("length = %d, want 300", seq.Length())
	}
}

func TestSequencerCountsRefusedEvents(t *testing.T) {
	engine := &countingEngine{}
	seq := New([]Event{{Frame: 0, Status: 0x10}}, engine, 48000)
	seq.Process(make([]float32, 64))
	if seq.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", seq.Dropped())
	}
}

func TestSequencerReportsPlaybackEnded(t *testing.T) {
	engine := &countingEngine{voices: 1}
	var kinds []EventKind
	seq := NewWithOptions([]Event{{Frame: 0, Status: 0x90, Data1: 60, Data2: 1}}, engine, 48000, Options{
		ReleaseTailFrames: 100,
		OnEvent:           func(k EventKind) { kinds = append(kinds, k) },
	})
	buf := make([]float32, 64*2)
	for i := 0; i < 4; i++ {
		seq.Process(buf)
	}
	if seq.Finished() || len(kinds) != 0 {
		t.Fatalf("playback ended while a voice was sounding")
	}
	engine.voices = 0
	seq.Process(buf)
	if seq.Finished() {
		t.Fatalf("release tail not honoured")
	}
	seq.Process(buf)
	if !seq.Finished() || len(kinds) != 1 || kinds[0] != EventPlaybackEnded {
		t.Fatalf("expected one playback-ended event, got %v", kinds)
	}
	seq.Process(buf)
	if len(kinds) != 1 {
		t.Fatalf("playback-ended must fire once, got %v", kinds)
	}
}

func TestSequencerLoopsWhenEnabled(t *testing.T) {
	engine := &countingEngine{}
	loops := 0
	seq := NewWithOptions([]Event{{Frame: 0, Status: 0x90, Data1: 60, Data2: 100}}, engine, 48000, Options{
		Loop:              true,
		ReleaseTailFrames: 64,
		OnEvent: func(k EventKind) {
			if k == EventLoopCompleted {
				loops++
			}
		},
	})
	buf := make([]float32, 64*2)
	for i := 0; i < 6; i++ {
		seq.Process(buf)
	}
	if loops < 2 || len(engine.pushes) < 3 {
		t.Fatalf("expected loop retriggers, loops=%d pushes=%d", loops, len(engine.pushes))
	}
	if seq.Finished() {
		t.Fatalf("looping playback never finishes")
	}
}

func TestSequencerDrivesSynthEngine(t *testing.T) {
	v := params.Defaults()
	v.Set(params.Modes, 0.05)
	v.Set(params.Fat, 0.04)
	engine, err := synth.New(synth.WithSampleRate(48000), synth.WithParameters(v))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	seq := New([]Event{
		{Frame: 0, Status: 0x90, Data1: 57, Data2: 110},
		{Frame: 6000, Status: 0x80, Data1: 57},
	}, engine, 48000)
	buf := make([]float32, 48000/4*2)
	seq.Process(buf)

	var energy float64
	for _, s := range buf {
		if s < 0 {
			energy -= float64(s)
		} else {
			energy += float64(s)
		}
	}
	if energy == 0 {
		t.Fatalf("expected non-zero audio energy")
	}
}

// smfBytes builds a format-0 file with one track at the given division.
func smfBytes(division uint16, track []byte) []byte {
	var b bytes.Buffer
	b.WriteString("MThd")
	binary.Write(&b, binary.BigEndian, uint32(6))
	binary.Write(&b, binary.BigEndian, uint16(0))
	binary.Write(&b, binary.BigEndian, uint16(1))
	binary.Write(&b, binary.BigEndian, division)
	b.WriteString("MTrk")
	binary.Write(&b, binary.BigEndian, uint32(len(track)))
	b.Write(track)
	return b.Bytes()
}

func TestReadSMFConvertsTicksToFrames(t *testing.T) {
	track := []byte{
		0x00, 0xFF, 0x51, 0x03, 0x07, 0xA1, 0x20, // 120 bpm
		0x00, 0x90, 0x3C, 0x64,
		0x60, 0x80, 0x3C, 0x40, // one quarter later
		0x00, 0xFF, 0x51, 0x03, 0x0F, 0x42, 0x40, // 60 bpm
		0x60, 0x90, 0x3E, 0x50, // one quarter at 60 bpm
		0x00, 0xC0, 0x05, // program change, dropped
		0x00, 0xFF, 0x2F, 0x00,
	}
	events, err := ReadSMF(bytes.NewReader(smfBytes(96, track)), 44100)
	if err != nil {
		t.Fatalf("read smf: %v", err)
	}
	want := []Event{
		{Frame: 0, Status: 0x90, Data1: 0x3C, Data2: 0x64},
		{Frame: 22050, Status: 0x80, Data1: 0x3C, Data2: 0x40},
		{Frame: 66150, Status: 0x90, Data1: 0x3E, Data2: 0x50},
	}
	if len(events) != len(want) {
		t.Fatalf("events = %+v, want %+v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d = %+v, want %+v", i, events[i], want[i])
		}
	}
}

func TestReadSMFRejectsGarbage(t *testing.T) {
	if _, err := ReadSMF(bytes.NewReader([]byte("not a midi file")), 44100); err == nil {
		t.Fatalf("expected error for garbage input")
	}
	if _, err := ReadSMF(bytes.NewReader(nil), 0); err == nil {
		t.Fatalf("expected error for zero sample rate")
	}
}
