// Package replay parses replay service flags and launches the service.
package replay

import (
	"context"
	"flag"

	"github.com/lapsight/lapsight/internal/app/server"
	entrypoint "github.com/lapsight/lapsight/internal/platform/cmd"
)

// Config holds replay command configuration.
type Config struct {
	Port int `env:"LAPSIGHT_REPLAY_PORT" envDefault:"8090"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The replay HTTP server port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the replay API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceReplay, func(context.Context) error {
		return server.Run(ctx, cfg.Port)
	})
}
