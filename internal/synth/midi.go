package synth

import (
	"errors"

	"gitlab.com/gomidi/midi/v2"
)

// Controller numbers of the channel mode messages the engine honours.
const (
	ccAllSoundOff = 120
	ccAllNotesOff = 123
)

var (
	ErrMalformedMIDI  = errors.New("malformed MIDI message")
	ErrNegativeOffset = errors.New("negative sample offset")
)

type command uint8

const (
	cmdUnknown command = iota
	cmdNoteOn
	cmdNoteOff
	cmdAllNotesOff
	cmdAllSoundOff
)

func (c command) String() string {
	switch c {
	case cmdNoteOn:
		return "note-on"
	case cmdNoteOff:
		return "note-off"
	case cmdAllNotesOff:
		return "all-notes-off"
	case cmdAllSoundOff:
		return "all-sound-off"
	default:
		return "unknown"
	}
}

// event is a decoded command due at an absolute engine sample.
type event struct {
	time     int
	cmd      command
	key      uint8
	velocity uint8
}

// validTriplet checks for a status byte followed by two data bytes.
func validTriplet(msg midi.Message) bool {
	return len(msg) == 3 && msg[0]&0x80 != 0 && msg[1]&0x80 == 0 && msg[2]&0x80 == 0
}

// decode maps a channel message onto an engine command. The channel is
// ignored. A note-on with velocity zero stays a note-on at zero velocity
// rather than a note-off, so GetNoteOn is used instead of GetNoteStart.
func decode(msg midi.Message) (command, uint8, uint8) {
	var ch, key, val uint8
	switch {
	case msg.GetNoteOn(&ch, &key, &val):
		return cmdNoteOn, key, val
	case msg.GetNoteOff(&ch, &key, &val):
		return cmdNoteOff, key, val
	case msg.GetControlChange(&ch, &key, &val):
		switch key {
		case ccAllSoundOff:
			return cmdAllSoundOff, 0, val
		case ccAllNotesOff:
			return cmdAllNotesOff, 0, val
		}
	}
	return cmdUnknown, 0, 0
}
