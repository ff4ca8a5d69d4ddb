// Package engine orchestrates the signing workflow: level activation,
// completion evaluation, advancement, certification, and the scheduled
// reminder, escalation, and expiration sweeps.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/countersign/internal/platform/id"
	"github.com/louisbranch/countersign/internal/services/signing/domain"
	"github.com/louisbranch/countersign/internal/services/signing/notify"
	"github.com/louisbranch/countersign/internal/services/signing/storage"
)

const (
	defaultHolder      = "scheduler"
	defaultLeaseTTL    = time.Minute
	defaultWarningDays = 3
	// defaultLevelDays seeds the completion estimate before any level
	// has resolved.
	defaultLevelDays = 3

	// reminderThrottle is the minimum gap between reminders to the same
	// signer. Hardcoded, not configurable per request.
	reminderThrottle = 24 * time.Hour
)

// Config controls engine sweep behavior and lease ownership.
type Config struct {
	// Holder names this engine instance for request leases.
	Holder string
	// LeaseTTL bounds how long one sweep may hold a request.
	LeaseTTL time.Duration
	// WarningDays is the expiration warning window.
	WarningDays int
}

func (c Config) normalized() Config {
	if strings.TrimSpace(c.Holder) == "" {
		c.Holder = defaultHolder
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = defaultLeaseTTL
	}
	if c.WarningDays <= 0 {
		c.WarningDays = defaultWarningDays
	}
	return c
}

// Engine drives signing requests from creation to completion,
// expiration, or cancellation.
type Engine struct {
	store       storage.Store
	dispatcher  notify.Dispatcher
	managers    notify.ManagerDirectory
	cfg         Config
	now         func() time.Time
	idGenerator func() (string, error)
}

// New builds a workflow engine. The manager directory may be nil; the
// reassign escalation action then degrades to a plain notification.
func New(store storage.Store, dispatcher notify.Dispatcher, managers notify.ManagerDirectory, cfg Config, now func() time.Time, idGenerator func() (string, error)) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	return &Engine{
		store:       store,
		dispatcher:  dispatcher,
		managers:    managers,
		cfg:         cfg.normalized(),
		now:         now,
		idGenerator: idGenerator,
	}, nil
}

// CreateRequest validates and persists a new signing request with a
// fully pending chain. The request is not activated until
// ExecuteWorkflow runs.
func (e *Engine) CreateRequest(ctx context.Context, input domain.CreateRequestInput) (domain.SigningRequest, error) {
	if err := ctx.Err(); err != nil {
		return domain.SigningRequest{}, err
	}

	request, err := domain.CreateSigningRequest(input, e.now, e.idGenerator)
	if err != nil {
		return domain.SigningRequest{}, codedError(err)
	}
	if err := e.store.PutRequestAggregate(ctx, aggregateFromRequest(request)); err != nil {
		return domain.SigningRequest{}, codedError(fmt.Errorf("persist request: %w", err))
	}
	return request, nil
}

// loadRequest reconstructs the domain aggregate from flat storage rows.
func (e *Engine) loadRequest(ctx context.Context, requestID string) (domain.SigningRequest, error) {
	aggregate, err := e.store.GetRequestAggregate(ctx, requestID)
	if err != nil {
		return domain.SigningRequest{}, fmt.Errorf("load request: %w", err)
	}
	return requestFromAggregate(aggregate)
}

// logAudit appends an audit entry. The trail is best effort: a failed
// append is logged and never fails the primary operation.
func (e *Engine) logAudit(ctx context.Context, entry domain.AuditEntry) {
	entryID, err := e.idGenerator()
	if err != nil {
		log.Printf("generate audit entry id for request %s: %v", entry.RequestID, err)
		return
	}
	entry.ID = entryID
	entry.CreatedAt = e.now().UTC()

	record, err := auditRecordFromEntry(entry)
	if err != nil {
		log.Printf("encode audit entry for request %s: %v", entry.RequestID, err)
		return
	}
	if err := e.store.AppendAuditEntry(ctx, record); err != nil {
		log.Printf("append audit entry for request %s: %v", entry.RequestID, err)
	}
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func intPtr(i int) *int { return &i }
