// Package sqlite provides a SQLite-backed telemetry trace store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/lapsight/lapsight/internal/platform/storage/sqlitemigrate"
	"github.com/lapsight/lapsight/internal/replay"
	"github.com/lapsight/lapsight/internal/storage"
	"github.com/lapsight/lapsight/internal/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists laps and their telemetry channels in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite trace store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutLap inserts one lap record together with its aligned samples.
func (s *Store) PutLap(ctx context.Context, lap storage.Lap, trace *replay.Trace) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	lapID := strings.TrimSpace(lap.ID)
	if lapID == "" {
		return fmt.Errorf("lap id is required")
	}
	if trace.Len() == 0 {
		return fmt.Errorf("trace has no samples")
	}
	n := trace.Len()
	for name, channel := range map[string][]float64{
		"speed_mph": trace.SpeedMPH,
		"lat_g":     trace.LatG,
		"lon_g":     trace.LonG,
		"latitude":  trace.Latitude,
		"longitude": trace.Longitude,
		"elapsed_s": trace.ElapsedS,
	} {
		if len(channel) != n {
			return fmt.Errorf("channel %s has %d samples, want %d", name, len(channel), n)
		}
	}
	createdAt := lap.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put lap: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO laps (
		   id, track, driver, lap_time_s, sample_count, recorded_at, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		lapID,
		strings.TrimSpace(lap.Track),
		strings.TrimSpace(lap.Driver),
		lap.LapTimeS,
		n,
		toMillis(lap.RecordedAt),
		toMillis(createdAt),
	)
	if err != nil {
		if isLapUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert lap: %w", err)
	}

	insert, err := tx.PrepareContext(
		ctx,
		`INSERT INTO lap_samples (
		   lap_id, idx, distance_m, speed_mph, lat_g, lon_g, latitude, longitude, elapsed_s
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare sample insert: %w", err)
	}
	defer insert.Close()
	for i := 0; i < n; i++ {
		if _, err := insert.ExecContext(
			ctx,
			lapID,
			i,
			trace.DistanceM[i],
			trace.SpeedMPH[i],
			trace.LatG[i],
			trace.LonG[i],
			trace.Latitude[i],
			trace.Longitude[i],
			trace.ElapsedS[i],
		); err != nil {
			return fmt.Errorf("insert sample %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put lap: %w", err)
	}
	return nil
}

// GetLap returns one lap record by ID.
func (s *Store) GetLap(ctx context.Context, id string) (storage.Lap, error) {
	if err := ctx.Err(); err != nil {
		return storage.Lap{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Lap{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.Lap{}, fmt.Errorf("lap id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, track, driver, lap_time_s, sample_count, recorded_at, created_at
		   FROM laps
		  WHERE id = ?`,
		id,
	)

	var lap storage.Lap
	var recordedAt int64
	var createdAt int64
	err := row.Scan(
		&lap.ID,
		&lap.Track,
		&lap.Driver,
		&lap.LapTimeS,
		&lap.SampleCount,
		&recordedAt,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Lap{}, storage.ErrNotFound
		}
		return storage.Lap{}, fmt.Errorf("get lap: %w", err)
	}
	lap.RecordedAt = fromMillis(recordedAt)
	lap.CreatedAt = fromMillis(createdAt)
	return lap, nil
}

// GetTrace loads the aligned telemetry channels for one lap, ordered by
// sample index.
func (s *Store) GetTrace(ctx context.Context, lapID string) (*replay.Trace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	lapID = strings.TrimSpace(lapID)
	if lapID == "" {
		return nil, fmt.Errorf("lap id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT distance_m, speed_mph, lat_g, lon_g, latitude, longitude, elapsed_s
		   FROM lap_samples
		  WHERE lap_id = ?
		  ORDER BY idx ASC`,
		lapID,
	)
	if err != nil {
		return nil, fmt.Errorf("load trace: %w", err)
	}
	defer rows.Close()

	trace := &replay.Trace{LapID: lapID}
	for rows.Next() {
		var distance, speed, latG, lonG, latitude, longitude, elapsed float64
		if err := rows.Scan(&distance, &speed, &latG, &lonG, &latitude, &longitude, &elapsed); err != nil {
			return nil, fmt.Errorf("load trace: %w", err)
		}
		trace.DistanceM = append(trace.DistanceM, distance)
		trace.SpeedMPH = append(trace.SpeedMPH, speed)
		trace.LatG = append(trace.LatG, latG)
		trace.LonG = append(trace.LonG, lonG)
		trace.Latitude = append(trace.Latitude, latitude)
		trace.Longitude = append(trace.Longitude, longitude)
		trace.ElapsedS = append(trace.ElapsedS, elapsed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load trace: %w", err)
	}
	if trace.Len() == 0 {
		return nil, storage.ErrNotFound
	}
	return trace, nil
}

// ListLaps returns one page of lap records ordered by ID.
func (s *Store) ListLaps(ctx context.Context, pageSize int, pageToken string) (storage.LapPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.LapPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.LapPage{}, fmt.Errorf("storage is not configured")
	}
	if pageSize <= 0 {
		return storage.LapPage{}, fmt.Errorf("page size must be greater than zero")
	}
	pageToken = strings.TrimSpace(pageToken)

	page := storage.LapPage{
		Laps: make([]storage.Lap, 0, pageSize),
	}

	var (
		rows *sql.Rows
		err  error
	)
	if pageToken == "" {
		rows, err = s.sqlDB.QueryContext(
			ctx,
			`SELECT id, track, driver, lap_time_s, sample_count, recorded_at, created_at
			   FROM laps
			  ORDER BY id ASC
			  LIMIT ?`,
			pageSize+1,
		)
	} else {
		rows, err = s.sqlDB.QueryContext(
			ctx,
			`SELECT id, track, driver, lap_time_s, sample_count, recorded_at, created_at
			   FROM laps
			  WHERE id > ?
			  ORDER BY id ASC
			  LIMIT ?`,
			pageToken,
			pageSize+1,
		)
	}
	if err != nil {
		return storage.LapPage{}, fmt.Errorf("list laps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lap storage.Lap
		var recordedAt int64
		var createdAt int64
		if err := rows.Scan(
			&lap.ID,
			&lap.Track,
			&lap.Driver,
			&lap.LapTimeS,
			&lap.SampleCount,
			&recordedAt,
			&createdAt,
		); err != nil {
			return storage.LapPage{}, fmt.Errorf("list laps: %w", err)
		}
		lap.RecordedAt = fromMillis(recordedAt)
		lap.CreatedAt = fromMillis(createdAt)
		page.Laps = append(page.Laps, lap)
	}
	if err := rows.Err(); err != nil {
		return storage.LapPage{}, fmt.Errorf("list laps: %w", err)
	}
	if len(page.Laps) > pageSize {
		page.NextPageToken = page.Laps[pageSize-1].ID
		page.Laps = page.Laps[:pageSize]
	}

	return page, nil
}

func isLapUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "laps.id")
}

var _ storage.TraceStore = (*Store)(nil)
