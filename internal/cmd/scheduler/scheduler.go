// Package scheduler parses scheduler command flags and launches the
// scheduler runtime.
package scheduler

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/countersign/internal/platform/cmd"
	schedulerapp "github.com/louisbranch/countersign/internal/services/signing/app"
)

// Config holds scheduler command configuration.
type Config struct {
	Port         int           `env:"COUNTERSIGN_SCHEDULER_PORT" envDefault:"8092"`
	DBPath       string        `env:"COUNTERSIGN_SCHEDULER_DB_PATH" envDefault:"data/signing.db"`
	Holder       string        `env:"COUNTERSIGN_SCHEDULER_HOLDER" envDefault:"scheduler"`
	PollInterval time.Duration `env:"COUNTERSIGN_SCHEDULER_POLL_INTERVAL" envDefault:"30s"`
	LeaseTTL     time.Duration `env:"COUNTERSIGN_SCHEDULER_LEASE_TTL" envDefault:"1m"`
	WarningDays  int           `env:"COUNTERSIGN_SCHEDULER_WARNING_DAYS" envDefault:"3"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The scheduler health gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The signing SQLite database path")
	fs.StringVar(&cfg.Holder, "holder", cfg.Holder, "Request lease holder name for this scheduler instance")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Scheduled task poll interval")
	fs.DurationVar(&cfg.LeaseTTL, "lease-ttl", cfg.LeaseTTL, "Per-request lease duration")
	fs.IntVar(&cfg.WarningDays, "warning-days", cfg.WarningDays, "Expiration warning window in days")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the scheduler runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceScheduler, func(context.Context) error {
		return schedulerapp.Run(ctx, schedulerapp.RuntimeConfig{
			Port:         cfg.Port,
			DBPath:       cfg.DBPath,
			Holder:       cfg.Holder,
			PollInterval: cfg.PollInterval,
			LeaseTTL:     cfg.LeaseTTL,
			WarningDays:  cfg.WarningDays,
		})
	})
}
