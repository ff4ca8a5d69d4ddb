// Package app wires the scheduler runtime: storage, notifications, the
// workflow engine, a health endpoint, and the periodic sweep loop.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/countersign/internal/platform/timeouts"
	"github.com/louisbranch/countersign/internal/services/signing/engine"
	"github.com/louisbranch/countersign/internal/services/signing/notify"
	signingsqlite "github.com/louisbranch/countersign/internal/services/signing/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// RuntimeConfig controls scheduler startup, dependencies, and sweep
// loop behavior.
type RuntimeConfig struct {
	Port         int
	DBPath       string
	Holder       string
	PollInterval time.Duration
	LeaseTTL     time.Duration
	WarningDays  int

	// Managers resolves signer emails to their managers for reassign
	// and manager-notify escalations. Optional; escalations degrade to
	// requester notifications without it.
	Managers notify.ManagerDirectory
}

const (
	defaultSchedulerPort = 8092
	defaultSchedulerDB   = "data/signing.db"
	defaultPollInterval  = 30 * time.Second
)

// Run starts scheduler runtime dependencies and the sweep loop. It
// blocks until ctx is cancelled or a dependency fails.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultSchedulerPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultSchedulerDB
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create signing storage dir: %w", err)
		}
	}

	store, err := signingsqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open signing sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close signing sqlite store: %v", closeErr)
		}
	}()

	dispatcher, err := notify.NewOutboxDispatcher(store, cfg.Managers, nil, nil)
	if err != nil {
		return fmt.Errorf("build notification dispatcher: %w", err)
	}
	eng, err := engine.New(store, dispatcher, cfg.Managers, engine.Config{
		Holder:      cfg.Holder,
		LeaseTTL:    cfg.LeaseTTL,
		WarningDays: cfg.WarningDays,
	}, nil, nil)
	if err != nil {
		return fmt.Errorf("build workflow engine: %w", err)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on scheduler port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("signing.scheduler", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("scheduler server listening at %v", listener.Addr())
	return runSweepLoop(ctx, eng, cfg.PollInterval)
}

// runSweepLoop runs scheduled tasks on every tick until ctx cancels.
// Each pass runs under its own deadline.
func runSweepLoop(ctx context.Context, eng *engine.Engine, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		tickCtx, cancel := context.WithTimeout(ctx, timeouts.SweepTick)
		summary, err := eng.RunScheduledTasks(tickCtx)
		cancel()
		if err != nil && ctx.Err() == nil {
			log.Printf("run scheduled tasks: %v", err)
		}
		if summary != (engine.TaskSummary{}) {
			log.Printf("sweep pass: %d expired, %d escalated, %d reminded, %d warned",
				summary.Expirations, summary.Escalations, summary.Reminders, summary.Warnings)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
