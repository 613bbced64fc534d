package player

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"github.com/tonearm/tonearm/internal/metadata"
)

// speakerOutput plays through the system mixer. The device is opened
// lazily on the first load so headless commands never touch audio.
type speakerOutput struct {
	rate     beep.SampleRate
	tap      func([][2]float64)
	initOnce sync.Once
	initErr  error
}

func newSpeakerOutput(sampleRate int, tap func([][2]float64)) *speakerOutput {
	return &speakerOutput{rate: beep.SampleRate(sampleRate), tap: tap}
}

func (o *speakerOutput) Open(path string, volume int, done func(), fail func(error)) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	format, err := metadata.Sniff(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("sniff %s: %w", filepath.Base(path), err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("rewind %s: %w", path, err)
	}

	var (
		src beep.StreamSeekCloser
		bf  beep.Format
	)
	switch format {
	case metadata.FormatMP3:
		src, bf, err = mp3.Decode(f)
	case metadata.FormatFLAC:
		src, bf, err = flac.Decode(f)
	case metadata.FormatOGG:
		src, bf, err = vorbis.Decode(f)
	case metadata.FormatWAV:
		src, bf, err = wav.Decode(f)
	default:
		f.Close()
		return nil, fmt.Errorf("no decoder for %s: %w", format, metadata.ErrUnsupportedFormat)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode %s: %w: %w", filepath.Base(path), ErrDecodeFailure, err)
	}

	o.initOnce.Do(func() {
		o.initErr = speaker.Init(o.rate, o.rate.N(time.Second/10))
	})
	if o.initErr != nil {
		src.Close()
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, o.initErr)
	}

	var chain beep.Streamer = src
	if bf.SampleRate != o.rate {
		chain = beep.Resample(4, bf.SampleRate, o.rate, src)
	}
	ctrl := &beep.Ctrl{Streamer: chain}
	vol := &effects.Volume{Streamer: ctrl, Base: 2, Volume: volumeGain(volume), Silent: volume <= 0}
	chain = vol
	if o.tap != nil {
		chain = &tapStreamer{src: vol, fn: o.tap}
	}

	st := &speakerStream{f: f, src: src, bf: bf, ctrl: ctrl, vol: vol}
	speaker.Play(beep.Seq(chain, beep.Callback(func() {
		// The callback runs on the speaker goroutine; hand off before
		// touching anything that takes the speaker lock.
		go func() {
			if err := src.Err(); err != nil {
				fail(err)
				return
			}
			done()
		}()
	})))
	return st, nil
}

// volumeGain maps a 0..100 percent to a log2 gain for effects.Volume.
func volumeGain(percent int) float64 {
	if percent <= 0 {
		return 0
	}
	return math.Log2(float64(percent) / 100)
}

type speakerStream struct {
	f         *os.File
	src       beep.StreamSeekCloser
	bf        beep.Format
	ctrl      *beep.Ctrl
	vol       *effects.Volume
	closeOnce sync.Once
}

func (s *speakerStream) Pause(paused bool) {
	speaker.Lock()
	s.ctrl.Paused = paused
	speaker.Unlock()
}

func (s *speakerStream) Seek(to time.Duration) error {
	speaker.Lock()
	defer speaker.Unlock()
	n := s.bf.SampleRate.N(to)
	if n < 0 {
		n = 0
	}
	if max := s.src.Len(); n >= max && max > 0 {
		n = max - 1
	}
	return s.src.Seek(n)
}

func (s *speakerStream) SetVolume(percent int) {
	speaker.Lock()
	defer speaker.Unlock()
	if percent <= 0 {
		s.vol.Silent = true
		return
	}
	s.vol.Silent = false
	s.vol.Volume = volumeGain(percent)
}

func (s *speakerStream) Position() time.Duration {
	speaker.Lock()
	defer speaker.Unlock()
	return s.bf.SampleRate.D(s.src.Position())
}

func (s *speakerStream) Duration() time.Duration {
	speaker.Lock()
	defer speaker.Unlock()
	return s.bf.SampleRate.D(s.src.Len())
}

func (s *speakerStream) Close() {
	s.closeOnce.Do(func() {
		// Detach before closing so the mixer never reads a closed decoder.
		speaker.Lock()
		s.ctrl.Streamer = nil
		speaker.Unlock()
		_ = s.src.Close()
		_ = s.f.Close()
	})
}

// tapStreamer copies rendered samples to the visualizer after the
// volume stage so the bars track what is audible.
type tapStreamer struct {
	src beep.Streamer
	fn  func([][2]float64)
}

func (t *tapStreamer) Stream(samples [][2]float64) (int, bool) {
	n, ok := t.src.Stream(samples)
	if n > 0 {
		t.fn(samples[:n])
	}
	return n, ok
}

func (t *tapStreamer) Err() error { return t.src.Err() }
