// Package replay animates a recorded lap trace forward in wall-clock time.
//
// The engine binds to one immutable Trace and advances a sample index at a
// user-selectable playback multiplier. Advancement is distance-based: each
// frame converts elapsed wall time and the recorded speed at the current
// sample into covered distance, then into an index delta using the local
// sample spacing. This keeps the replayed position synchronized with the
// recorded speed trace even when GPS sampling density varies along the lap.
//
// The engine performs no rendering and no resampling. Consumers read the
// current index from a Snapshot and look up whatever channels they need
// directly on the Trace.
package replay
