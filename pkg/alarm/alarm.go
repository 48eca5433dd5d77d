// Package alarm plays a sound when the countdown finishes.
package alarm

import (
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"github.com/itohio/gotimer/pkg/config"
)

const (
	// SampleRate is the rate the speaker is initialised with. Sound files at
	// other rates are resampled.
	SampleRate beep.SampleRate = 44100

	toneAmplitude   = 0.5
	resampleQuality = 4
)

// Alarm plays the configured finish sound.
type Alarm struct {
	initOnce sync.Once
	initErr  error

	mu     sync.Mutex
	cfg    config.AlarmConfig
	buffer *beep.Buffer // Decoded sound file, loaded on first play
	loaded string       // Path the buffer was decoded from

	// Replaced in tests
	initSpeaker func(sr beep.SampleRate, bufferSize int) error
	play        func(s ...beep.Streamer)
}

// New creates an alarm from a copy of cfg. A nil configuration uses the defaults.
func New(cfg *config.AlarmConfig) *Alarm {
	if cfg == nil {
		cfg = &config.Default().Alarm
	}
	return &Alarm{
		cfg:         *cfg,
		initSpeaker: speaker.Init,
		play:        speaker.Play,
	}
}

// SetConfig replaces the alarm settings used by the next Play.
func (a *Alarm) SetConfig(cfg config.AlarmConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = cfg
}

// Play starts the finish sound and returns without waiting for it to end.
// A disabled alarm does nothing.
func (a *Alarm) Play() error {
	a.mu.Lock()
	cfg := a.cfg
	a.mu.Unlock()

	if !cfg.Enabled {
		return nil
	}

	a.initOnce.Do(func() {
		a.initErr = a.initSpeaker(SampleRate, SampleRate.N(time.Second/10))
	})
	if a.initErr != nil {
		return fmt.Errorf("failed to initialise speaker: %w", a.initErr)
	}

	s, err := a.streamer(cfg)
	if err != nil {
		return err
	}

	a.play(&effects.Volume{
		Streamer: s,
		Base:     2,
		Volume:   cfg.Volume,
		Silent:   false,
	})
	return nil
}

// streamer returns the sound file if one is configured, otherwise a series of beeps.
func (a *Alarm) streamer(cfg config.AlarmConfig) (beep.Streamer, error) {
	if cfg.SoundFile == "" {
		return Beeps(SampleRate, cfg.ToneHz, cfg.BeepDuration, cfg.Beeps), nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.buffer == nil || a.loaded != cfg.SoundFile {
		buffer, err := load(cfg.SoundFile)
		if err != nil {
			return nil, err
		}
		a.buffer = buffer
		a.loaded = cfg.SoundFile
	}
	return a.buffer.Streamer(0, a.buffer.Len()), nil
}

// load decodes a WAV file into a buffer at SampleRate.
func load(path string) (*beep.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sound file: %w", err)
	}
	defer f.Close()

	streamer, format, err := wav.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode sound file %s: %w", path, err)
	}
	defer streamer.Close()

	var s beep.Streamer = streamer
	if format.SampleRate != SampleRate {
		s = beep.Resample(resampleQuality, format.SampleRate, SampleRate, streamer)
	}

	buffer := beep.NewBuffer(beep.Format{SampleRate: SampleRate, NumChannels: 2, Precision: 2})
	buffer.Append(s)
	return buffer, nil
}

// Beeps returns count tones of the given frequency and length, separated by
// silences of the same length. A count or length below one plays nothing.
func Beeps(sr beep.SampleRate, freq float64, d time.Duration, count int) beep.Streamer {
	if count <= 0 || d <= 0 {
		return beep.Seq()
	}
	parts := make([]beep.Streamer, 0, 2*count)
	for i := 0; i < count; i++ {
		if i > 0 {
			parts = append(parts, beep.Silence(sr.N(d)))
		}
		parts = append(parts, Tone(sr, freq, d))
	}
	return beep.Seq(parts...)
}

// Tone returns a sine tone of the given frequency and length on both channels.
func Tone(sr beep.SampleRate, freq float64, d time.Duration) beep.Streamer {
	total := sr.N(d)
	step := 2 * math.Pi * freq / float64(sr)
	pos := 0

	return beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		if pos >= total {
			return 0, false
		}
		for i := range samples {
			if pos >= total {
				break
			}
			v := toneAmplitude * math.Sin(step*float64(pos))
			samples[i][0], samples[i][1] = v, v
			pos++
			n++
		}
		return n, true
	})
}
