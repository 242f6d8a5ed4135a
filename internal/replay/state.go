package replay

import "time"

// State is the complete mutable playback record for one replay session.
// It is owned exclusively by the Engine and mutated only through the
// control surface and the per-frame integrator.
type State struct {
	// Index is the current sample position, 0 <= Index <= N-1.
	Index int

	// Remainder carries sub-sample distance progress between frames,
	// 0 <= Remainder < 1, so slow per-frame movement still accumulates.
	Remainder float64

	// Multiplier scales wall-clock elapsed time, always > 0.
	Multiplier float64

	// Playing reports whether the frame loop should keep ticking.
	Playing bool

	// LastFrame anchors elapsed-time computation between frames. The zero
	// value means no anchor yet: the next tick establishes one instead of
	// advancing, which prevents a huge first-frame delta.
	LastFrame time.Time
}

// Snapshot is the read surface exposed to rendering consumers. Derived
// values (current speed, distance, lap time) are looked up by indexing the
// Trace, never duplicated here.
type Snapshot struct {
	Index      int
	Playing    bool
	Multiplier float64
}
