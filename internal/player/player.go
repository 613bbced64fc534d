// Package player drives audio playback through an in-process decode
// chain. The engine serializes transport commands behind a mutex and
// stamps every load with a generation counter so that completions of
// superseded commands are discarded instead of clobbering newer state.
package player

import (
	"log/slog"
	"sync"
	"time"
)

// Event describes playback state updates emitted by the engine. Each
// event is stamped with the command generation it belongs to; Fresh
// reports whether a later command has superseded it.
type Event struct {
	State State
	Path  string
	Ended bool // true when the track ended naturally
	Err   error
	gen   uint64
}

// Stream is one open audio stream on the output device.
type Stream interface {
	Pause(paused bool)
	Seek(to time.Duration) error
	SetVolume(percent int)
	Position() time.Duration
	Duration() time.Duration
	Close()
}

// Output opens streams on the sound device. done fires once when the
// stream drains naturally; fail fires instead when it dies mid-play.
type Output interface {
	Open(path string, volume int, done func(), fail func(error)) (Stream, error)
}

// Options configures the Engine.
type Options struct {
	Logger     *slog.Logger
	Output     Output
	SampleRate int                // device rate, defaults to 44100
	Tap        func([][2]float64) // optional PCM tap, fed after volume
}

// Engine owns the playback state machine.
type Engine struct {
	opts   Options
	mu     sync.Mutex
	out    Output
	stream Stream
	state  State
	path   string
	volume int
	gen    uint64
	// pauseWanted carries a pause issued while a load is in flight.
	pauseWanted bool
	events      chan Event
}

func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 44100
	}
	out := opts.Output
	if out == nil {
		out = newSpeakerOutput(opts.SampleRate, opts.Tap)
	}
	return &Engine{
		opts:   opts,
		out:    out,
		state:  StateIdle,
		volume: 70,
		events: make(chan Event, 32),
	}
}

// Events returns the event channel.
func (e *Engine) Events() <-chan Event { return e.events }

// Load replaces whatever is playing with the file at path. The outcome
// arrives on the event channel: Playing (or Paused, when a pause landed
// during the load), or Error followed by Idle when the file cannot be
// opened.
func (e *Engine) Load(path string) error {
	if path == "" {
		return ErrNoTrack
	}
	e.opts.Logger.Debug("loading track", slog.String("path", path))

	e.mu.Lock()
	e.gen++
	gen := e.gen
	if e.stream != nil {
		e.stream.Close()
		e.stream = nil
	}
	e.path = path
	e.pauseWanted = false
	e.toLocked(StateLoading)
	vol := e.volume
	e.mu.Unlock()

	go func() {
		st, err := e.out.Open(path, vol,
			func() { e.onStreamDone(gen) },
			func(streamErr error) { e.onStreamFail(gen, streamErr) })

		e.mu.Lock()
		defer e.mu.Unlock()
		if gen != e.gen {
			// A newer command took over while we were decoding.
			if st != nil {
				st.Close()
			}
			return
		}
		if err != nil {
			e.opts.Logger.Error("load failed", slog.String("path", path), slog.Any("err", err))
			e.path = ""
			e.toLocked(StateError, err)
			e.toLocked(StateIdle)
			return
		}
		e.stream = st
		if e.pauseWanted {
			st.Pause(true)
			e.toLocked(StatePaused)
		} else {
			e.toLocked(StatePlaying)
		}
	}()
	return nil
}

// Pause sets or clears the paused flag. During a load the flag is
// remembered and applied when the stream opens.
func (e *Engine) Pause(paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Logger.Debug("toggling pause", slog.Bool("paused", paused))
	switch e.state {
	case StateLoading:
		e.pauseWanted = paused
		return nil
	case StatePlaying:
		if paused {
			e.stream.Pause(true)
			e.toLocked(StatePaused)
		}
		return nil
	case StatePaused:
		if !paused {
			e.stream.Pause(false)
			e.toLocked(StatePlaying)
		}
		return nil
	default:
		return ErrNoTrack
	}
}

// Stop tears down the current stream and clears the track. The volume
// setting is untouched. Stopping while idle is a no-op.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Logger.Debug("stopping playback")
	e.gen++
	e.pauseWanted = false
	if e.stream != nil {
		e.stream.Close()
		e.stream = nil
	}
	e.path = ""
	if e.state != StateIdle {
		e.toLocked(StateStopped)
	}
	return nil
}

// Seek moves the play position by delta, clamped to the track bounds.
func (e *Engine) Seek(delta time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == nil || (e.state != StatePlaying && e.state != StatePaused) {
		return ErrNoTrack
	}
	return e.seekLocked(e.stream.Position() + delta)
}

// SeekTo moves the play position to an absolute offset, clamped to the
// track bounds.
func (e *Engine) SeekTo(to time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == nil || (e.state != StatePlaying && e.state != StatePaused) {
		return ErrNoTrack
	}
	return e.seekLocked(to)
}

func (e *Engine) seekLocked(target time.Duration) error {
	if target < 0 {
		target = 0
	}
	if dur := e.stream.Duration(); target > dur {
		target = dur
	}
	e.opts.Logger.Debug("seeking", slog.Duration("target", target))
	return e.stream.Seek(target)
}

// SetVolume clamps to 0..100 and applies immediately when a stream is
// open. The value sticks across loads and stops.
func (e *Engine) SetVolume(v int) {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Logger.Debug("setting volume", slog.Int("volume", v))
	e.volume = v
	if e.stream != nil {
		e.stream.SetVolume(v)
	}
}

func (e *Engine) Volume() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Track returns the path of the loaded track, or "".
func (e *Engine) Track() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.path
}

func (e *Engine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == nil {
		return 0
	}
	return e.stream.Position()
}

func (e *Engine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == nil {
		return 0
	}
	return e.stream.Duration()
}

func (e *Engine) onStreamDone(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return
	}
	path := e.path
	if e.stream != nil {
		e.stream.Close()
		e.stream = nil
	}
	e.path = ""
	e.state = StateStopped
	e.emit(Event{State: StateStopped, Path: path, Ended: true, gen: e.gen})
}

func (e *Engine) onStreamFail(gen uint64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return
	}
	e.opts.Logger.Error("stream failed", slog.String("path", e.path), slog.Any("err", err))
	if e.stream != nil {
		e.stream.Close()
		e.stream = nil
	}
	e.path = ""
	e.toLocked(StateError, err)
	e.toLocked(StateStopped)
}

// Fresh reports whether no Load or Stop has been issued since ev was
// emitted. Consumers use it to drop reactions to superseded events,
// typically an auto-advance racing a stop.
func (e *Engine) Fresh(ev Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ev.gen == e.gen
}

// toLocked transitions the state and emits the matching event. The
// caller holds e.mu.
func (e *Engine) toLocked(s State, errs ...error) {
	e.state = s
	ev := Event{State: s, Path: e.path, gen: e.gen}
	if len(errs) > 0 {
		ev.Err = errs[0]
	}
	e.emit(ev)
}

// emit never blocks; a full channel drops the event.
func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		e.opts.Logger.Debug("event dropped", slog.String("state", ev.State.String()))
	}
}
