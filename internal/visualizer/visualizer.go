// Package visualizer renders a live frequency spectrum from the PCM
// samples the player is sending to the device.
package visualizer

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"strings"
	"sync"
	"time"

	"github.com/mjibson/go-dsp/fft"
)

const (
	fftSize = 2048
	// Analysis cadence. Rendering just reads the latest bars.
	frameInterval = 33 * time.Millisecond
	floorDB       = -60.0
)

// Unicode block characters for sub-row resolution.
var blocks = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Rainbow colors (ANSI 256-color codes).
var rainbowColors = []int{196, 202, 208, 214, 220, 226, 190, 154, 118, 82, 46, 47, 48, 49, 50, 51, 45, 39, 33, 27, 21, 57, 93, 129}

// Config holds visualizer configuration.
type Config struct {
	BarCount   int // number of frequency bars (default: 24)
	MaxValue   int // maximum bar value for scaling (default: 1000)
	SampleRate int // PCM rate of the fed samples (default: 44100)
}

// Visualizer folds the audio stream into log-spaced frequency bars.
// Feed is safe to call from the audio goroutine; analysis runs on its
// own ticker so the hot path never does an FFT.
type Visualizer struct {
	mu       sync.RWMutex
	bars     []int
	barCount int
	maxValue int
	rate     int
	running  bool
	cancel   context.CancelFunc

	ring   []float64
	w      int
	filled bool
	window []float64
	edges  []int
}

// New creates a new Visualizer instance.
func New(cfg Config) *Visualizer {
	if cfg.BarCount <= 0 {
		cfg.BarCount = 24
	}
	if cfg.MaxValue <= 0 {
		cfg.MaxValue = 1000
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	v := &Visualizer{
		bars:     make([]int, cfg.BarCount),
		barCount: cfg.BarCount,
		maxValue: cfg.MaxValue,
		rate:     cfg.SampleRate,
		ring:     make([]float64, fftSize),
		window:   hannWindow(fftSize),
		edges:    bandEdges(cfg.BarCount, cfg.SampleRate),
	}
	return v
}

// hannWindow tapers the analysis frame to cut spectral leakage.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// bandEdges returns barCount+1 FFT bin indexes spaced logarithmically
// from 50Hz up to just under the Nyquist frequency.
func bandEdges(barCount, rate int) []int {
	fLo := 50.0
	fHi := float64(rate) / 2 * 0.95
	if fHi > 16000 {
		fHi = 16000
	}
	edges := make([]int, barCount+1)
	for i := range edges {
		f := fLo * math.Pow(fHi/fLo, float64(i)/float64(barCount))
		bin := int(f * fftSize / float64(rate))
		if i > 0 && bin <= edges[i-1] {
			bin = edges[i-1] + 1
		}
		if bin > fftSize/2 {
			bin = fftSize / 2
		}
		edges[i] = bin
	}
	return edges
}

// Start launches the analysis loop. Safe to call when already running.
func (v *Visualizer) Start(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.running {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.running = true

	go func() {
		ticker := time.NewTicker(frameInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				v.mu.Lock()
				v.running = false
				v.mu.Unlock()
				return
			case <-ticker.C:
				v.analyze()
			}
		}
	}()
	return nil
}

// Stop halts the analysis loop and zeroes the display.
func (v *Visualizer) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.running = false
	for i := range v.bars {
		v.bars[i] = 0
	}
}

// Running returns true if the visualizer is active.
func (v *Visualizer) Running() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.running
}

// Feed mixes stereo samples to mono into the analysis ring. Cheap
// enough for the playback path.
func (v *Visualizer) Feed(samples [][2]float64) {
	v.mu.Lock()
	for _, s := range samples {
		v.ring[v.w] = (s[0] + s[1]) / 2
		v.w++
		if v.w == len(v.ring) {
			v.w = 0
			v.filled = true
		}
	}
	v.mu.Unlock()
}

// analyze runs one FFT pass over the ring and folds the spectrum into
// bars. Bars rise instantly and fall at a quarter per frame.
func (v *Visualizer) analyze() {
	buf := make([]float64, fftSize)
	v.mu.RLock()
	if v.filled {
		n := copy(buf, v.ring[v.w:])
		copy(buf[n:], v.ring[:v.w])
	} else {
		copy(buf[fftSize-v.w:], v.ring[:v.w])
	}
	v.mu.RUnlock()

	for i := range buf {
		buf[i] *= v.window[i]
	}
	spectrum := fft.FFTReal(buf)

	next := make([]int, v.barCount)
	for b := 0; b < v.barCount; b++ {
		lo, hi := v.edges[b], v.edges[b+1]
		if hi <= lo {
			hi = lo + 1
		}
		var sum float64
		for bin := lo; bin < hi && bin <= fftSize/2; bin++ {
			sum += cmplx.Abs(spectrum[bin])
		}
		avg := sum / float64(hi-lo)
		next[b] = v.scale(avg)
	}

	v.mu.Lock()
	for i, val := range next {
		if val >= v.bars[i] {
			v.bars[i] = val
		} else {
			v.bars[i] = v.bars[i] * 3 / 4
		}
	}
	v.mu.Unlock()
}

// scale maps an average bin magnitude onto 0..maxValue through a dB
// curve with a -60dB floor.
func (v *Visualizer) scale(mag float64) int {
	norm := mag / (fftSize / 4)
	if norm < 1e-6 {
		return 0
	}
	db := 20 * math.Log10(norm)
	if db < floorDB {
		return 0
	}
	if db > 0 {
		db = 0
	}
	return int((db - floorDB) * float64(v.maxValue) / -floorDB)
}

// Bars returns a copy of the current bar values (0 to maxValue).
func (v *Visualizer) Bars() []int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	result := make([]int, len(v.bars))
	copy(result, v.bars)
	return result
}

// BarsNormalized returns bar values normalized to 0-8 for display.
func (v *Visualizer) BarsNormalized() []int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	result := make([]int, len(v.bars))
	for i, val := range v.bars {
		n := (val * 8) / v.maxValue
		if n > 8 {
			n = 8
		}
		result[i] = n
	}
	return result
}

// Render returns a one-row spectrum using Unicode block characters.
func (v *Visualizer) Render() string {
	bars := v.BarsNormalized()
	if len(bars) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("║")
	for _, val := range bars {
		if val < 0 {
			val = 0
		}
		if val > 8 {
			val = 8
		}
		sb.WriteRune(blocks[val])
	}
	sb.WriteString("║")
	return sb.String()
}

// RenderRainbow returns a one-row spectrum colored across the rainbow
// by bar position.
func (v *Visualizer) RenderRainbow() string {
	bars := v.BarsNormalized()
	if len(bars) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("║")
	for i, val := range bars {
		if val < 0 {
			val = 0
		}
		if val > 8 {
			val = 8
		}
		color := rainbowColors[colorIndex(i, len(bars))]
		if val == 0 {
			sb.WriteString(" ")
		} else {
			sb.WriteString(fmt.Sprintf("\x1b[38;5;%dm%c\x1b[0m", color, blocks[val]))
		}
	}
	sb.WriteString("║")
	return sb.String()
}

// RenderSized returns a multi-row spectrum. width is the number of
// characters (0 = bar count); height is the number of terminal rows
// (0 = auto from width).
func (v *Visualizer) RenderSized(width, height int, rainbow bool) string {
	bars := v.Bars()
	if len(bars) == 0 {
		return ""
	}
	if width <= 0 {
		width = len(bars)
	}
	if height <= 0 {
		height = (width + 11) / 12
		if height < 2 {
			height = 2
		}
		if height > 6 {
			height = 6
		}
	}

	// Stretch bars across the requested width.
	stretched := make([]int, width)
	for i := 0; i < width; i++ {
		srcIdx := (i * len(bars)) / width
		if srcIdx >= len(bars) {
			srcIdx = len(bars) - 1
		}
		stretched[i] = bars[srcIdx]
	}

	// Sub-character resolution: 8 steps per row.
	maxHeight := height * 8
	normalized := make([]int, width)
	for i, val := range stretched {
		n := (val * maxHeight) / v.maxValue
		if n > maxHeight {
			n = maxHeight
		}
		normalized[i] = n
	}

	var lines []string
	for row := height - 1; row >= 0; row-- {
		var sb strings.Builder
		sb.WriteString("║")
		threshold := row * 8
		for i, val := range normalized {
			remaining := val - threshold
			if remaining <= 0 {
				sb.WriteString(" ")
				continue
			}
			blockIdx := remaining
			if blockIdx > 8 {
				blockIdx = 8
			}
			if rainbow {
				color := rainbowColors[colorIndex(i, width)]
				sb.WriteString(fmt.Sprintf("\x1b[38;5;%dm%c\x1b[0m", color, blocks[blockIdx]))
			} else {
				sb.WriteRune(blocks[blockIdx])
			}
		}
		sb.WriteString("║")
		lines = append(lines, sb.String())
	}
	return strings.Join(lines, "\n")
}

func colorIndex(i, width int) int {
	idx := (i * len(rainbowColors)) / width
	if idx >= len(rainbowColors) {
		idx = len(rainbowColors) - 1
	}
	return idx
}
