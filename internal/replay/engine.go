package replay

import "time"

// Engine owns the playback state for one bound trace. It is not safe for
// concurrent use: exactly one caller (normally a Driver) must serialize
// control calls and ticks.
type Engine struct {
	trace *Trace
	state State
}

// New binds a trace to a fresh engine. Playback starts paused at sample
// zero with a 1x multiplier. Binding a different lap means discarding the
// engine and creating a new one; state never carries across traces.
func New(trace *Trace) *Engine {
	return &Engine{trace: trace, state: State{Multiplier: 1}}
}

// Trace returns the bound trace for consumers that need to look up channel
// values at the current index.
func (e *Engine) Trace() *Trace {
	return e.trace
}

// Snapshot returns the state visible to rendering consumers.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Index:      e.state.Index,
		Playing:    e.state.Playing,
		Multiplier: e.state.Multiplier,
	}
}

// Playing reports whether the frame loop should keep scheduling ticks.
func (e *Engine) Playing() bool {
	return e.state.Playing
}

// Play starts or resumes playback. Playing from the final sample restarts
// the lap from the beginning rather than playing zero frames. The frame
// anchor is dropped so the next tick cannot observe a stale delta. No-op
// when the trace is not playable.
func (e *Engine) Play() {
	if !e.trace.Playable() {
		return
	}
	if e.state.Index == e.trace.Len()-1 {
		e.state.Index = 0
		e.state.Remainder = 0
	}
	e.state.Playing = true
	e.state.LastFrame = time.Time{}
}

// Pause halts playback in place. Index and fractional progress are kept so
// resuming continues without drift.
func (e *Engine) Pause() {
	e.state.Playing = false
}

// TogglePlay dispatches to Play or Pause based on the current state.
func (e *Engine) TogglePlay() {
	if e.state.Playing {
		e.Pause()
		return
	}
	e.Play()
}

// Seek jumps to the given sample index, clamped into range. Fractional
// progress and the frame anchor are always reset, so the post-seek state
// is identical regardless of tick history. Seeking never changes whether
// playback is running. No-op when the trace is not playable.
func (e *Engine) Seek(index int) {
	if !e.trace.Playable() {
		return
	}
	if index < 0 {
		index = 0
	}
	if last := e.trace.Len() - 1; index > last {
		index = last
	}
	e.state.Index = index
	e.state.Remainder = 0
	e.state.LastFrame = time.Time{}
}

// SetSpeed stores a new playback multiplier, effective from the next tick.
// Non-positive values are rejected and the previous multiplier is kept;
// silently accepting them would stall or reverse playback.
func (e *Engine) SetSpeed(multiplier float64) {
	if multiplier <= 0 {
		return
	}
	e.state.Multiplier = multiplier
}

// Reset returns the engine to its initial state from any prior state.
func (e *Engine) Reset() {
	e.state = State{Multiplier: 1}
}

// Tick runs the time integrator once with the given frame timestamp. Ticks
// while paused are no-ops.
func (e *Engine) Tick(now time.Time) {
	e.state = step(e.state, e.trace, now)
}
