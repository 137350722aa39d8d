package synth

import (
	"testing"

	"gitlab.com/gomidi/midi/v2"
)

func TestDecodeMapsChannelMessages(t *testing.T) {
	cases := []struct {
		name string
		msg  midi.Message
		cmd  command
		key  uint8
		vel  uint8
	}{
		{"note-on", midi.NoteOn(0, 60, 100), cmdNoteOn, 60, 100},
		{"note-on other channel", midi.NoteOn(9, 36, 1), cmdNoteOn, 36, 1},
		{"velocity zero stays note-on", midi.NoteOn(2, 64, 0), cmdNoteOn, 64, 0},
		{"note-off", midi.NoteOffVelocity(5, 61, 40), cmdNoteOff, 61, 40},
		{"all notes off", midi.ControlChange(15, ccAllNotesOff, 0), cmdAllNotesOff, 0, 0},
		{"all sound off", midi.ControlChange(3, ccAllSoundOff, 0), cmdAllSoundOff, 0, 0},
		{"other controller", midi.ControlChange(0, 7, 100), cmdUnknown, 0, 0},
		{"pitch bend", midi.Pitchbend(0, 100), cmdUnknown, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !validTriplet(tc.msg) {
				t.Fatalf("% X should be a valid triplet", []byte(tc.msg))
			}
			cmd, key, vel := decode(tc.msg)
			if cmd != tc.cmd || key != tc.key || vel != tc.vel {
				t.Fatalf("decode(% X) = %v %d %d, want %v %d %d", []byte(tc.msg), cmd, key, vel, tc.cmd, tc.key, tc.vel)
			}
		})
	}
}
