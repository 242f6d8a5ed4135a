package replay

import (
	"math"
	"time"
)

const (
	// maxFrameDelta bounds the elapsed time credited to a single frame.
	// Stalled frame delivery (backgrounded host, GC pause) must not make
	// the replay jump far ahead in one step.
	maxFrameDelta = 100 * time.Millisecond

	mphToMps = 0.44704

	// fallbackSpacingM substitutes for non-positive local sample spacing
	// caused by duplicate GPS fixes. Matches the typical sample interval
	// observed in recorded laps.
	fallbackSpacingM = 0.7
)

// step advances playback by one frame at timestamp now. It is a pure
// function of the previous state and the bound trace; the returned state
// fully replaces the previous one.
func step(s State, tr *Trace, now time.Time) State {
	if !s.Playing || !tr.Playable() {
		return s
	}
	if s.LastFrame.IsZero() {
		s.LastFrame = now
		return s
	}

	dt := now.Sub(s.LastFrame)
	s.LastFrame = now
	if dt < 0 {
		dt = 0
	}
	if dt > maxFrameDelta {
		dt = maxFrameDelta
	}

	n := tr.Len()
	speedMps := tr.SpeedMPH[s.Index] * mphToMps
	coveredM := speedMps * dt.Seconds() * s.Multiplier

	next := s.Index + 1
	if next > n-1 {
		next = n - 1
	}
	spacingM := tr.DistanceM[next] - tr.DistanceM[s.Index]
	if spacingM <= 0 {
		spacingM = fallbackSpacingM
	}

	s.Remainder += coveredM / spacingM
	steps := int(math.Floor(s.Remainder))
	s.Remainder -= float64(steps)
	if steps <= 0 {
		return s
	}

	index := s.Index + steps
	if index >= n-1 {
		// Terminal transition fires exactly once: park at the last sample
		// and drop the anchor so a later Play starts clean.
		s.Index = n - 1
		s.Playing = false
		s.Remainder = 0
		s.LastFrame = time.Time{}
		return s
	}
	s.Index = index
	return s
}
