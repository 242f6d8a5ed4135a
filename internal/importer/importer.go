// Package importer ingests recorded lap CSV files into the trace store.
//
// The expected layout is one lap per file with a header row naming the
// channels: distance_m, speed_mph, lat_g, lon_g, lat, lon, elapsed_s.
// Column order is not significant. Distance monotony is not validated
// here; duplicate GPS fixes are handled at replay time.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lapsight/lapsight/internal/replay"
	"github.com/lapsight/lapsight/internal/storage"
)

var requiredColumns = []string{
	"distance_m", "speed_mph", "lat_g", "lon_g", "lat", "lon", "elapsed_s",
}

// Options carries lap metadata applied to every imported file.
type Options struct {
	Track  string
	Driver string
}

// ImportFile parses one lap CSV file and stores it under a fresh lap ID.
func ImportFile(ctx context.Context, store storage.TraceStore, path string, opts Options) (storage.Lap, error) {
	if store == nil {
		return storage.Lap{}, fmt.Errorf("trace store is required")
	}
	file, err := os.Open(path)
	if err != nil {
		return storage.Lap{}, fmt.Errorf("open lap file: %w", err)
	}
	defer file.Close()

	trace, err := parseTrace(file)
	if err != nil {
		return storage.Lap{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	lap := storage.Lap{
		ID:          uuid.NewString(),
		Track:       strings.TrimSpace(opts.Track),
		Driver:      strings.TrimSpace(opts.Driver),
		LapTimeS:    trace.ElapsedS[len(trace.ElapsedS)-1],
		SampleCount: trace.Len(),
	}
	if info, err := file.Stat(); err == nil {
		lap.RecordedAt = info.ModTime().UTC()
	}
	trace.LapID = lap.ID

	if err := store.PutLap(ctx, lap, trace); err != nil {
		return storage.Lap{}, fmt.Errorf("store lap: %w", err)
	}
	return lap, nil
}

// ImportDir imports every CSV file directly under dir, skipping files that
// fail to parse so one bad lap does not abort a batch. It returns the laps
// stored and the per-file errors encountered.
func ImportDir(ctx context.Context, store storage.TraceStore, dir string, opts Options) ([]storage.Lap, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("read lap dir: %w", err)}
	}

	var laps []storage.Lap
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !isLapFile(entry) {
			continue
		}
		lap, err := ImportFile(ctx, store, filepath.Join(dir, entry.Name()), opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		laps = append(laps, lap)
	}
	return laps, errs
}

func isLapFile(entry fs.DirEntry) bool {
	return strings.EqualFold(filepath.Ext(entry.Name()), ".csv")
}

func parseTrace(file *os.File) (*replay.Trace, error) {
	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	trace := &replay.Trace{}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		line++
		values := make(map[string]float64, len(requiredColumns))
		for _, name := range requiredColumns {
			raw := strings.TrimSpace(record[columns[name]])
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", line, name, err)
			}
			values[name] = value
		}
		trace.DistanceM = append(trace.DistanceM, values["distance_m"])
		trace.SpeedMPH = append(trace.SpeedMPH, values["speed_mph"])
		trace.LatG = append(trace.LatG, values["lat_g"])
		trace.LonG = append(trace.LonG, values["lon_g"])
		trace.Latitude = append(trace.Latitude, values["lat"])
		trace.Longitude = append(trace.Longitude, values["lon"])
		trace.ElapsedS = append(trace.ElapsedS, values["elapsed_s"])
	}

	if trace.Len() < 2 {
		return nil, fmt.Errorf("lap has %d samples, need at least 2", trace.Len())
	}
	return trace, nil
}
