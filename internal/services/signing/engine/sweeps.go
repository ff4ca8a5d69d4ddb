package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/countersign/internal/services/signing/domain"
	"github.com/louisbranch/countersign/internal/services/signing/storage"
)

// TaskSummary reports how many items each scheduled sweep processed
// successfully. Partial failures are visible only in the logs.
type TaskSummary struct {
	Expirations int
	Escalations int
	Reminders   int
	Warnings    int
}

// RunScheduledTasks runs all sweeps in a fixed order: expirations
// first so an expired request never receives an escalation or reminder
// in the same tick, then escalations, reminders, and expiration
// warnings.
func (e *Engine) RunScheduledTasks(ctx context.Context) (TaskSummary, error) {
	if err := ctx.Err(); err != nil {
		return TaskSummary{}, err
	}

	summary := TaskSummary{}
	var err error

	if summary.Expirations, err = e.ProcessExpirations(ctx); err != nil {
		log.Printf("process expirations: %v", err)
	}
	if summary.Escalations, err = e.ProcessEscalations(ctx); err != nil {
		log.Printf("process escalations: %v", err)
	}
	if summary.Reminders, err = e.ProcessReminders(ctx); err != nil {
		log.Printf("process reminders: %v", err)
	}
	if summary.Warnings, err = e.SendExpirationWarnings(ctx, 0); err != nil {
		log.Printf("send expiration warnings: %v", err)
	}
	return summary, ctx.Err()
}

// ProcessReminders reminds every signer sitting on an in-progress
// request past its reminder threshold. Returns the number of reminders
// sent; per-item failures are logged and skipped.
func (e *Engine) ProcessReminders(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	requests, err := e.store.ListRequests(ctx, `status = "in_progress" AND reminder_enabled = true`)
	if err != nil {
		return 0, fmt.Errorf("select reminder candidates: %w", err)
	}

	count := 0
	for _, record := range requests {
		reminded, err := e.withRequestLease(ctx, record.ID, func(ctx context.Context) (int, error) {
			return e.remindRequestSigners(ctx, record.ID)
		})
		if errors.Is(err, storage.ErrLeaseHeld) {
			continue
		}
		if err != nil {
			log.Printf("remind request %s: %v", record.ID, err)
			continue
		}
		count += reminded
	}
	return count, nil
}

func (e *Engine) remindRequestSigners(ctx context.Context, requestID string) (int, error) {
	request, err := e.loadRequest(ctx, requestID)
	if err != nil {
		return 0, err
	}
	if request.Status != domain.RequestStatusInProgress || !request.ReminderEnabled {
		return 0, nil
	}

	now := e.now().UTC()
	sentCutoff := now.Add(-time.Duration(request.ReminderDays) * 24 * time.Hour)
	count := 0
	for _, level := range request.Chain.Levels {
		for _, signer := range level.Signers {
			if !signer.Status.Actionable() {
				continue
			}
			if signer.SentAt == nil || signer.SentAt.After(sentCutoff) {
				continue
			}
			if signer.LastReminderAt != nil && now.Sub(*signer.LastReminderAt) < reminderThrottle {
				continue
			}
			if err := e.SendReminderToSigner(ctx, requestID, signer.ID); err != nil {
				log.Printf("remind signer %s on request %s: %v", signer.ID, requestID, err)
				continue
			}
			count++
		}
	}
	return count, nil
}

// SendReminderToSigner dispatches one reminder and stamps the signer's
// reminder counters. RemindersSent and the last reminder date only move
// forward.
func (e *Engine) SendReminderToSigner(ctx context.Context, requestID string, signerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	request, err := e.loadRequest(ctx, requestID)
	if err != nil {
		return err
	}
	signer, err := findSigner(request, signerID)
	if err != nil {
		return err
	}
	if !signer.Status.Actionable() {
		return fmt.Errorf("signer %s is %s, not awaiting signature", signerID, signer.Status)
	}

	if err := e.dispatcher.SendReminderNotification(ctx, requestID, signerID); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}
	now := e.now().UTC()
	if err := e.store.UpdateSigner(ctx, storage.UpdateSignerParams{
		SignerID:       signerID,
		RemindersSent:  intPtr(signer.RemindersSent + 1),
		LastReminderAt: timePtr(now),
	}); err != nil {
		return fmt.Errorf("stamp reminder: %w", err)
	}
	e.logAudit(ctx, domain.AuditEntry{
		RequestID:      requestID,
		SignerID:       signerID,
		SignerEmail:    signer.Email,
		Action:         domain.AuditActionReminded,
		Description:    fmt.Sprintf("reminder %d sent to %s", signer.RemindersSent+1, signer.Email),
		IsSystemAction: true,
	})
	return nil
}

// ProcessEscalations applies the configured escalation action to every
// in-progress request past its escalation threshold. Returns the number
// of requests escalated.
func (e *Engine) ProcessEscalations(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	requests, err := e.store.ListRequests(ctx, `status = "in_progress" AND escalation_enabled = true`)
	if err != nil {
		return 0, fmt.Errorf("select escalation candidates: %w", err)
	}

	now := e.now().UTC()
	count := 0
	for _, record := range requests {
		if record.SentAt == nil {
			continue
		}
		if now.Sub(*record.SentAt) < time.Duration(record.EscalationDays)*24*time.Hour {
			continue
		}
		_, err := e.withRequestLease(ctx, record.ID, func(ctx context.Context) (int, error) {
			return 0, e.EscalateRequest(ctx, record.ID, nil)
		})
		if errors.Is(err, storage.ErrLeaseHeld) {
			continue
		}
		if err != nil {
			log.Printf("escalate request %s: %v", record.ID, err)
			continue
		}
		count++
	}
	return count, nil
}

// EscalateRequest applies an escalation action to one request. A nil
// override uses the request's configured action; an unspecified action
// falls back to a plain notification.
func (e *Engine) EscalateRequest(ctx context.Context, requestID string, override *domain.EscalationAction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	request, err := e.loadRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request.Status.Terminal() {
		log.Printf("escalate request: request %s already %s", requestID, request.Status)
		return nil
	}

	action := request.EscalationAction
	if override != nil {
		action = *override
	}
	if action == domain.EscalationActionUnspecified {
		log.Printf("escalate request %s: no action configured, falling back to notify", requestID)
		action = domain.EscalationActionNotify
	}

	var actionErr error
	switch action {
	case domain.EscalationActionNotify, domain.EscalationActionNotifyManager:
		// The dispatcher resolves the manager and falls back to the
		// requester when no manager is on file.
		actionErr = e.dispatcher.SendEscalationNotification(ctx, requestID)
	case domain.EscalationActionNotifyRequester:
		actionErr = e.dispatcher.SendRequesterEscalationNotification(ctx, requestID)
	case domain.EscalationActionReassign:
		actionErr = e.reassignCurrentLevel(ctx, request)
	case domain.EscalationActionAutoApprove:
		actionErr = e.autoApproveRequest(ctx, request)
	case domain.EscalationActionCancel:
		actionErr = e.cancelRequest(ctx, requestID, "cancelled by escalation policy")
	default:
		actionErr = e.dispatcher.SendEscalationNotification(ctx, requestID)
	}
	if actionErr != nil {
		return fmt.Errorf("apply escalation %s: %w", action, actionErr)
	}

	e.logAudit(ctx, domain.AuditEntry{
		RequestID:      requestID,
		Action:         domain.AuditActionEscalated,
		Description:    fmt.Sprintf("escalation action %s applied", action),
		Details:        map[string]string{"action": action.String()},
		IsSystemAction: true,
	})
	return nil
}

// reassignCurrentLevel delegates every outstanding signer of the
// current level to their manager and appends the manager as a
// replacement signer. Without a manager directory, or when no manager
// resolves, the action degrades to a plain escalation notification.
func (e *Engine) reassignCurrentLevel(ctx context.Context, request domain.SigningRequest) error {
	if e.managers == nil {
		log.Printf("reassign request %s: no manager directory, degrading to notify", request.ID)
		return e.dispatcher.SendEscalationNotification(ctx, request.ID)
	}

	level, err := request.CurrentLevel()
	if err != nil {
		log.Printf("reassign request %s: %v", request.ID, err)
		return nil
	}

	reassigned := 0
	for _, signer := range level.Signers {
		if signer.Status.Terminal() {
			continue
		}
		manager, err := e.managers.ManagerFor(ctx, signer.Email)
		if err != nil || manager == "" {
			log.Printf("reassign request %s: no manager for %s", request.ID, signer.Email)
			continue
		}

		replacementID, err := e.idGenerator()
		if err != nil {
			return fmt.Errorf("generate replacement signer id: %w", err)
		}
		if err := e.store.UpdateSigner(ctx, storage.UpdateSignerParams{
			SignerID:    signer.ID,
			Status:      strPtr(domain.SignerStatusDelegated.String()),
			DelegatedTo: strPtr(manager),
		}); err != nil {
			return fmt.Errorf("delegate signer %s: %w", signer.ID, err)
		}
		if err := e.store.AppendSigner(ctx, storage.SignerRecord{
			ID:        replacementID,
			RequestID: request.ID,
			Level:     signer.Level,
			SignOrder: signer.Order,
			Email:     manager,
			Role:      signer.Role,
			Status:    domain.SignerStatusPending.String(),
		}); err != nil {
			return fmt.Errorf("append replacement signer: %w", err)
		}
		e.logAudit(ctx, domain.AuditEntry{
			RequestID:      request.ID,
			SignerID:       signer.ID,
			SignerEmail:    signer.Email,
			Action:         domain.AuditActionReassigned,
			Description:    fmt.Sprintf("signer %s reassigned to %s", signer.Email, manager),
			Details:        map[string]string{"manager": manager},
			IsSystemAction: true,
		})
		reassigned++
	}

	if reassigned == 0 {
		log.Printf("reassign request %s: no managers resolved, degrading to notify", request.ID)
		return e.dispatcher.SendEscalationNotification(ctx, request.ID)
	}
	// Activate the replacement signers under the level's policy.
	return e.ExecuteWorkflow(ctx, request.ID)
}

// autoApproveRequest force-signs every non-signed signer with a system
// comment and completes the request.
func (e *Engine) autoApproveRequest(ctx context.Context, request domain.SigningRequest) error {
	now := e.now().UTC()
	for _, level := range request.Chain.Levels {
		for _, signer := range level.Signers {
			if signer.Status == domain.SignerStatusSigned {
				continue
			}
			if err := e.store.UpdateSigner(ctx, storage.UpdateSignerParams{
				SignerID:      signer.ID,
				Status:        strPtr(domain.SignerStatusSigned.String()),
				SignedAt:      timePtr(now),
				SignatureType: strPtr("system"),
				Comment:       strPtr("auto-approved by escalation policy"),
			}); err != nil {
				return fmt.Errorf("auto-approve signer %s: %w", signer.ID, err)
			}
		}
	}
	return e.completeRequest(ctx, request.ID)
}

// ProcessExpirations expires every pending or in-progress request whose
// expiration date has passed. Returns the number of requests expired.
func (e *Engine) ProcessExpirations(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	nowStamp := e.now().UTC().Format(time.RFC3339)
	filter := fmt.Sprintf(
		`(status = "pending" OR status = "in_progress") AND expiration_date <= timestamp(%q)`,
		nowStamp,
	)
	requests, err := e.store.ListRequests(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("select expiration candidates: %w", err)
	}

	count := 0
	for _, record := range requests {
		_, err := e.withRequestLease(ctx, record.ID, func(ctx context.Context) (int, error) {
			return 0, e.ExpireRequest(ctx, record.ID)
		})
		if errors.Is(err, storage.ErrLeaseHeld) {
			continue
		}
		if err != nil {
			log.Printf("expire request %s: %v", record.ID, err)
			continue
		}
		count++
	}
	return count, nil
}

// ExpireRequest moves a request to the expired terminal state, expires
// every signer who has not signed, and notifies the requester.
func (e *Engine) ExpireRequest(ctx context.Context, requestID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	request, err := e.loadRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request.Status.Terminal() {
		log.Printf("expire request: request %s already %s", requestID, request.Status)
		return nil
	}

	if err := e.store.UpdateRequest(ctx, storage.UpdateRequestParams{
		RequestID:       requestID,
		ExpectedVersion: request.Version,
		Status:          strPtr(domain.RequestStatusExpired.String()),
		ChainStatus:     strPtr(domain.RequestStatusExpired.String()),
	}); err != nil {
		return fmt.Errorf("mark request expired: %w", err)
	}

	for _, level := range request.Chain.Levels {
		for _, signer := range level.Signers {
			if signer.Status == domain.SignerStatusSigned {
				continue
			}
			if err := e.store.UpdateSigner(ctx, storage.UpdateSignerParams{
				SignerID: signer.ID,
				Status:   strPtr(domain.SignerStatusExpired.String()),
			}); err != nil {
				return fmt.Errorf("expire signer %s: %w", signer.ID, err)
			}
		}
	}

	e.logAudit(ctx, domain.AuditEntry{
		RequestID:      requestID,
		Action:         domain.AuditActionExpired,
		Description:    "request expired before all signatures were collected",
		IsSystemAction: true,
	})
	if err := e.dispatcher.SendExpirationNotification(ctx, requestID); err != nil {
		log.Printf("send expiration notification for request %s: %v", requestID, err)
	}
	return nil
}

// SendExpirationWarnings warns about in-progress requests expiring
// within the window. Warnings are deduped to one per request per day.
// A non-positive days value uses the configured default.
func (e *Engine) SendExpirationWarnings(ctx context.Context, days int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if days <= 0 {
		days = e.cfg.WarningDays
	}

	now := e.now().UTC()
	filter := fmt.Sprintf(
		`status = "in_progress" AND expiration_date > timestamp(%q) AND expiration_date <= timestamp(%q)`,
		now.Format(time.RFC3339),
		now.Add(time.Duration(days)*24*time.Hour).Format(time.RFC3339),
	)
	requests, err := e.store.ListRequests(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("select warning candidates: %w", err)
	}

	count := 0
	for _, record := range requests {
		if record.LastWarnedAt != nil && now.Sub(*record.LastWarnedAt) < 24*time.Hour {
			continue
		}
		_, err := e.withRequestLease(ctx, record.ID, func(ctx context.Context) (int, error) {
			return 0, e.warnRequest(ctx, record)
		})
		if errors.Is(err, storage.ErrLeaseHeld) {
			continue
		}
		if err != nil {
			log.Printf("warn request %s: %v", record.ID, err)
			continue
		}
		count++
	}
	return count, nil
}

func (e *Engine) warnRequest(ctx context.Context, record storage.RequestRecord) error {
	if err := e.dispatcher.SendExpirationWarningNotification(ctx, record.ID); err != nil {
		return fmt.Errorf("send expiration warning: %w", err)
	}
	now := e.now().UTC()
	if err := e.store.UpdateRequest(ctx, storage.UpdateRequestParams{
		RequestID:       record.ID,
		ExpectedVersion: record.Version,
		LastWarnedAt:    timePtr(now),
	}); err != nil {
		return fmt.Errorf("stamp warning: %w", err)
	}
	e.logAudit(ctx, domain.AuditEntry{
		RequestID:      record.ID,
		Action:         domain.AuditActionExpirationWarned,
		Description:    "expiration warning sent",
		IsSystemAction: true,
	})
	return nil
}

// withRequestLease runs fn while holding the per-request lease so
// overlapping sweep runs do not double-process the same request.
func (e *Engine) withRequestLease(ctx context.Context, requestID string, fn func(context.Context) (int, error)) (int, error) {
	now := e.now().UTC()
	if err := e.store.AcquireRequestLease(ctx, requestID, e.cfg.Holder, e.cfg.LeaseTTL, now); err != nil {
		return 0, err
	}
	defer func() {
		if err := e.store.ReleaseRequestLease(ctx, requestID, e.cfg.Holder); err != nil {
			log.Printf("release lease for request %s: %v", requestID, err)
		}
	}()
	return fn(ctx)
}
