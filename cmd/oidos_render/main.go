package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mitchellh/go-homedir"

	"github.com/cbegin/oidos-go"
)

// paramFlags collects repeated -param name=value pairs.
type paramFlags []string

func (p *paramFlags) String() string { return strings.Join(*p, ",") }

func (p *paramFlags) Set(v string) error {
	*p = append(*p, v)
	return nil
}

// defaultChord is played when no MIDI file is given: A minor, held one second.
func defaultChord(sampleRate int) []oidos.Event {
	var events []oidos.Event
	for _, key := range []byte{57, 60, 64} {
		events = append(events,
			oidos.Event{Frame: 0, Status: 0x90, Data1: key, Data2: 100},
			oidos.Event{Frame: int64(sampleRate), Status: 0x80, Data1: key},
		)
	}
	return events
}

func main() {
	var (
		sampleRate = flag.Int("sample-rate", 44100, "output sample rate")
		smfPath    = flag.String("smf", "", "path to a Standard MIDI File (default: a test chord)")
		outPath    = flag.String("out", "", "write a 16-bit WAV file here")
		seconds    = flag.Float64("seconds", 0, "render length in seconds (0 = until the last note dies away)")
		play       = flag.Bool("play", false, "play through the audio device")
		loop       = flag.Bool("loop", false, "loop playback; use with -loops to count then stop")
		loops      = flag.Int("loops", 3, "when -loop, stop after N loops (0 = loop forever)")
		volume     = flag.Float64("volume", 1.0, "master volume scalar")
		logLevel   = flag.String("log-level", "info", "debug|info|warn|error")
		list       = flag.Bool("list-params", false, "print parameter names and defaults, then exit")
		params     paramFlags
	)
	flag.Var(&params, "param", "parameter override name=value, may repeat")
	flag.Parse()

	if err := InitLogger(*logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *list {
		for _, name := range oidos.ParameterNames() {
			def, _ := oidos.DefaultParameter(name)
			fmt.Printf("%-14s %g\n", name, def)
		}
		return
	}
	if err := run(*sampleRate, *smfPath, *outPath, *seconds, *play, *loop, *loops, *volume, params); err != nil {
		logger.Error("oidos_render failed", "error", err)
		os.Exit(1)
	}
}

func parseParams(pairs []string) ([]oidos.Option, error) {
	var opts []oidos.Option
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("parameter %q: want name=value", pair)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", pair, err)
		}
		opts = append(opts, oidos.WithParameter(strings.TrimSpace(name), v))
	}
	return opts, nil
}

func run(sampleRate int, smfPath, outPath string, seconds float64, play, loop bool, loops int, volume float64, pairs []string) error {
	if outPath == "" && !play {
		return errors.New("nothing to do: pass -out, -play or both")
	}
	opts, err := parseParams(pairs)
	if err != nil {
		return err
	}
	opts = append(opts, oidos.WithSampleRate(sampleRate), oidos.WithLogger(logger))

	events := defaultChord(sampleRate)
	if smfPath != "" {
		path, err := homedir.Expand(smfPath)
		if err != nil {
			return err
		}
		if events, err = oidos.ReadSMF(path, sampleRate); err != nil {
			return err
		}
		logger.Info("loaded midi file", "path", path, "events", len(events))
	}

	if outPath != "" {
		if err := render(events, outPath, sampleRate, seconds, opts); err != nil {
			return err
		}
	}
	if play {
		return playback(events, sampleRate, loop, loops, volume, opts)
	}
	return nil
}

func render(events []oidos.Event, outPath string, sampleRate int, seconds float64, opts []oidos.Option) error {
	path, err := homedir.Expand(outPath)
	if err != nil {
		return err
	}
	var samples []float32
	if seconds > 0 {
		samples, err = oidos.RenderEvents(events, seconds, opts...)
	} else {
		samples, err = oidos.RenderUntilSilent(events, opts...)
	}
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := oidos.WriteWAV(f, samples, sampleRate); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("wrote wav", "path", path, "frames", len(samples)/2, "sample_rate", sampleRate)
	return nil
}

func playback(events []oidos.Event, sampleRate int, loop bool, loops int, volume float64, opts []oidos.Option) error {
	pl, err := oidos.NewPlayer(sampleRate, oidos.WithLoopPlayback(loop), oidos.WithEngineOptions(opts...))
	if err != nil {
		return err
	}
	pl.SetMasterVolume(volume)
	ch := pl.Watch()
	if err := pl.Play(events); err != nil {
		return err
	}
	loopCount := 0
	for event := range ch {
		switch event.Kind {
		case oidos.EventPlaybackEnded:
			logger.Info("playback completed")
			pl.Wait()
			return nil
		case oidos.EventLoopCompleted:
			loopCount++
			logger.Info("loop completed", "loop", loopCount)
			if loop && loops > 0 && loopCount >= loops {
				return pl.Stop()
			}
		}
	}
	return nil
}
