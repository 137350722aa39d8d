package sequencer

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"
)

var ErrUnsupportedTimeFormat = errors.New("unsupported SMF time format")

const defaultBPM = 120.0

type timedMessage struct {
	tick  int64
	track int
	seq   int
	msg   smf.Message
}

// ReadSMF converts a Standard MIDI File into events at sampleRate. All
// tracks are merged; tempo changes in any track apply globally. Only
// three-byte channel messages are kept.
func ReadSMF(r io.Reader, sampleRate int) ([]Event, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	file, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("read smf: %w", err)
	}
	ticks, ok := file.TimeFormat.(smf.MetricTicks)
	if !ok || uint16(ticks) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedTimeFormat, file.TimeFormat)
	}
	resolution := float64(uint16(ticks))

	var merged []timedMessage
	for ti, track := range file.Tracks {
		var tick int64
		for i, ev := range track {
			tick += int64(ev.Delta)
			merged = append(merged, timedMessage{tick: tick, track: ti, seq: i, msg: ev.Message})
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].tick != merged[j].tick {
			return merged[i].tick < merged[j].tick
		}
		if merged[i].track != merged[j].track {
			return merged[i].track < merged[j].track
		}
		return merged[i].seq < merged[j].seq
	})

	var (
		events  []Event
		bpm     = defaultBPM
		seconds float64
		last    int64
	)
	for _, tm := range merged {
		seconds += float64(tm.tick-last) / resolution * 60 / bpm
		last = tm.tick
		var tempo float64
		if tm.msg.GetMetaTempo(&tempo) {
			if tempo > 0 {
				bpm = tempo
			}
			continue
		}
		m := tm.msg
		if len(m) != 3 || m[0] < 0x80 || m[0] >= 0xF0 {
			continue
		}
		events = append(events, Event{
			Frame:  int64(math.Round(seconds * float64(sampleRate))),
			Status: m[0],
			Data1:  m[1],
			Data2:  m[2],
		})
	}
	return events, nil
}

// ReadSMFFile is ReadSMF for a file on disk.
func ReadSMFFile(path string, sampleRate int) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSMF(f, sampleRate)
}
