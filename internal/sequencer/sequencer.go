// Package sequencer feeds a timed list of MIDI events into an engine. Each
// event due inside a block is queued with its offset from the block start
// before the whole block is rendered.
package sequencer

import "sort"

// Engine is the part of the synth engine a sequencer drives.
type Engine interface {
	PushMIDIEvent(offset int, status, data1, data2 byte) error
	Process(dst []float32)
	// ActiveVoiceCount returns the number of notes still sounding, including
	// release tails. Used to detect when playback has fully ended.
	ActiveVoiceCount() int
}

// Event is a three-byte channel message due at an absolute frame.
type Event struct {
	Frame  int64
	Status byte
	Data1  byte
	Data2  byte
}

// EventKind identifies sequencer lifecycle events.
type EventKind int

const (
	EventLoopCompleted EventKind = iota
	EventPlaybackEnded
)

type Options struct {
	Loop              bool
	OnEvent           func(EventKind)
	ReleaseTailFrames int // frames to keep rendering after the last voice ends (0 = half a second)
}

type Sequencer struct {
	events            []Event
	engine            Engine
	next              int
	frame             int64 // frames rendered since the current pass started
	loop              bool
	onEvent           func(EventKind)
	tailFrames        int
	tailLeft          int
	dropped           int
	playbackEndedSent bool
}

func New(events []Event, engine Engine, sampleRate int) *Sequencer {
	return NewWithOptions(events, engine, sampleRate, Options{})
}

func NewWithOptions(events []Event, engine Engine, sampleRate int, opts Options) *Sequencer {
	tail := opts.ReleaseTailFrames
	if tail <= 0 {
		tail = sampleRate / 2
	}
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Frame < sorted[j].Frame })
	return &Sequencer{
		events:     sorted,
		engine:     engine,
		loop:       opts.Loop,
		onEvent:    opts.OnEvent,
		tailFrames: tail,
		tailLeft:   tail,
	}
}

// Process renders interleaved stereo frames into dst. Every event due inside
// the block is handed to the engine with its offset from the block start.
func (s *Sequencer) Process(dst []float32) {
	frames := int64(len(dst) / 2)
	end := s.frame + frames
	for s.next < len(s.events) && s.events[s.next].Frame < end {
		ev := s.events[s.next]
		offset := ev.Frame - s.frame
		if offset < 0 {
			offset = 0
		}
		if err := s.engine.PushMIDIEvent(int(offset), ev.Status, ev.Data1, ev.Data2); err != nil {
			s.dropped++
		}
		s.next++
	}
	s.engine.Process(dst)
	s.frame = end

	if s.next < len(s.events) || s.engine.ActiveVoiceCount() > 0 {
		s.tailLeft = s.tailFrames
		return
	}
	s.tailLeft -= int(frames)
	if s.tailLeft > 0 {
		return
	}
	if s.loop {
		s.next = 0
		s.frame = 0
		s.tailLeft = s.tailFrames
		s.emit(EventLoopCompleted)
		return
	}
	if !s.playbackEndedSent {
		s.playbackEndedSent = true
		s.emit(EventPlaybackEnded)
	}
}

func (s *Sequencer) emit(kind EventKind) {
	if s.onEvent != nil {
		s.onEvent(kind)
	}
}

// Finished reports whether non-looping playback has ended.
func (s *Sequencer) Finished() bool {
	return s.playbackEndedSent
}

// Dropped returns the number of events the engine refused.
func (s *Sequencer) Dropped() int {
	return s.dropped
}

// Length returns the frame of the last event, or 0 without events.
func (s *Sequencer) Length() int64 {
	if len(s.events) == 0 {
		return 0
	}
	return s.events[len(s.events)-1].Frame
}
