package replay

// Trace holds the index-aligned telemetry channels recorded for one lap.
// It is owned by the caller, read-only for the engine, and lives for the
// duration of one replay session.
type Trace struct {
	LapID string

	// DistanceM is cumulative distance per sample, non-decreasing. Adjacent
	// duplicates occur when the GPS logger emits repeated fixes.
	DistanceM []float64

	// SpeedMPH is instantaneous speed, aligned 1:1 with DistanceM.
	SpeedMPH []float64

	// Carried channels. The engine indexes into them on behalf of consumers
	// but never interprets their values.
	LatG      []float64
	LonG      []float64
	Latitude  []float64
	Longitude []float64
	ElapsedS  []float64
}

// Len returns the number of samples in the trace.
func (t *Trace) Len() int {
	if t == nil {
		return 0
	}
	return len(t.DistanceM)
}

// Playable reports whether the trace has enough aligned samples to replay.
// A trace with fewer than two samples leaves the engine inert.
func (t *Trace) Playable() bool {
	return t.Len() >= 2 && len(t.SpeedMPH) == len(t.DistanceM)
}
