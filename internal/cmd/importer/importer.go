// Package importer parses importer flags and runs lap file ingestion.
package importer

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/lapsight/lapsight/internal/importer"
	entrypoint "github.com/lapsight/lapsight/internal/platform/cmd"
	"github.com/lapsight/lapsight/internal/storage/sqlite"
)

// Config holds importer command configuration.
type Config struct {
	DBPath string `env:"LAPSIGHT_REPLAY_DB_PATH"`
	Dir    string `env:"LAPSIGHT_IMPORT_DIR" envDefault:"laps"`
	Track  string `env:"LAPSIGHT_IMPORT_TRACK"`
	Driver string `env:"LAPSIGHT_IMPORT_DRIVER"`
	Watch  bool
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Dir, "dir", cfg.Dir, "Directory containing lap CSV files")
	fs.StringVar(&cfg.Track, "track", cfg.Track, "Track name applied to imported laps")
	fs.StringVar(&cfg.Driver, "driver", cfg.Driver, "Driver name applied to imported laps")
	fs.BoolVar(&cfg.Watch, "watch", false, "Keep watching the directory for new lap files")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "lapsight.db")
	}
	return cfg, nil
}

// Run imports lap files once and optionally keeps watching the directory.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceImporter, func(context.Context) error {
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create storage dir: %w", err)
			}
		}
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open trace sqlite store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close trace store: %v", err)
			}
		}()

		opts := importer.Options{Track: cfg.Track, Driver: cfg.Driver}
		laps, errs := importer.ImportDir(ctx, store, cfg.Dir, opts)
		for _, err := range errs {
			log.Printf("import: %v", err)
		}
		log.Printf("imported %d laps from %s", len(laps), cfg.Dir)

		if !cfg.Watch {
			if len(errs) > 0 {
				return fmt.Errorf("%d lap files failed to import", len(errs))
			}
			return nil
		}
		return importer.Watch(ctx, store, cfg.Dir, opts)
	})
}
