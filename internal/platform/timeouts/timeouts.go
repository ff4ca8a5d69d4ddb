// Package timeouts defines shared timeout constants used across the
// signing services. Centralizing these values prevents drift between
// service boundaries and makes the durations discoverable.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing a gRPC peer.
const GRPCDial = 2 * time.Second

// SweepTick caps one full scheduled-task pass. A pass that exceeds this
// budget is cancelled and retried on the next tick.
const SweepTick = 5 * time.Minute

// Shutdown limits how long the scheduler waits for an in-flight sweep
// during graceful shutdown.
const Shutdown = 5 * time.Second
