package storage

import (
	"context"
	"errors"
	"time"

	"github.com/lapsight/lapsight/internal/replay"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a record with the same identity is present.
var ErrAlreadyExists = errors.New("record already exists")

// Lap describes one recorded lap.
type Lap struct {
	ID          string
	Track       string
	Driver      string
	LapTimeS    float64
	SampleCount int
	RecordedAt  time.Time
	CreatedAt   time.Time
}

// LapPage is one page of lap records plus the token for the next page.
type LapPage struct {
	Laps          []Lap
	NextPageToken string
}

// TraceStore persists lap metadata and the aligned telemetry channels the
// replay engine binds to.
type TraceStore interface {
	PutLap(ctx context.Context, lap Lap, trace *replay.Trace) error
	GetLap(ctx context.Context, id string) (Lap, error)
	GetTrace(ctx context.Context, lapID string) (*replay.Trace, error)
	ListLaps(ctx context.Context, pageSize int, pageToken string) (LapPage, error)
}
