package engine

import (
	"context"
	"testing"
	"time"

	"github.com/louisbranch/countersign/internal/services/signing/domain"
)

func TestProcessRemindersRespectsThresholdAndThrottle(t *testing.T) {
	t.Parallel()

	eng, store, dispatcher, clock := newTestEngine(t, Config{})
	ctx := context.Background()
	request, err := eng.CreateRequest(ctx, domain.CreateRequestInput{
		Title:           "Vendor contract",
		RequesterEmail:  "requester@example.com",
		WorkflowType:    domain.WorkflowTypeSequential,
		ReminderEnabled: true,
		ReminderDays:    2,
		Levels: []domain.LevelInput{
			{Signers: []domain.SignerInput{{Email: "a@example.com"}}},
		},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if err := eng.ExecuteWorkflow(ctx, request.ID); err != nil {
		t.Fatalf("execute workflow: %v", err)
	}

	// One day in, the signer is still inside the reminder threshold.
	clock.Advance(24 * time.Hour)
	count, err := eng.ProcessReminders(ctx)
	if err != nil {
		t.Fatalf("process reminders: %v", err)
	}
	if count != 0 {
		t.Fatalf("reminders = %d, want 0 inside threshold", count)
	}

	clock.Advance(48 * time.Hour)
	if count, err = eng.ProcessReminders(ctx); err != nil {
		t.Fatalf("process reminders: %v", err)
	}
	if count != 1 {
		t.Fatalf("reminders = %d, want 1 past threshold", count)
	}
	signer := signerByEmail(t, store, request.ID, "a@example.com")
	if signer.RemindersSent != 1 || signer.LastReminderAt == nil {
		t.Fatalf("signer = %+v, want stamped reminder", signer)
	}

	// A second run the same day is throttled.
	clock.Advance(time.Hour)
	if count, err = eng.ProcessReminders(ctx); err != nil {
		t.Fatalf("process reminders: %v", err)
	}
	if count != 0 {
		t.Fatalf("reminders = %d, want 0 under throttle", count)
	}

	clock.Advance(24 * time.Hour)
	if count, err = eng.ProcessReminders(ctx); err != nil {
		t.Fatalf("process reminders: %v", err)
	}
	if count != 1 {
		t.Fatalf("reminders = %d, want 1 next day", count)
	}
	if got := len(dispatcher.reminders); got != 2 {
		t.Fatalf("reminder notifications = %d, want 2", got)
	}
	signer = signerByEmail(t, store, request.ID, "a@example.com")
	if signer.RemindersSent != 2 {
		t.Fatalf("reminders sent = %d, want 2", signer.RemindersSent)
	}
}

func TestProcessEscalationsAutoApproveCompletesRequest(t *testing.T) {
	t.Parallel()

	eng, store, dispatcher, clock := newTestEngine(t, Config{})
	ctx := context.Background()
	request, err := eng.CreateRequest(ctx, domain.CreateRequestInput{
		Title:             "Vendor contract",
		RequesterEmail:    "requester@example.com",
		WorkflowType:      domain.WorkflowTypeSequential,
		EscalationEnabled: true,
		EscalationDays:    1,
		EscalationAction:  domain.EscalationActionAutoApprove,
		Levels: []domain.LevelInput{
			{Signers: []domain.SignerInput{
				{Email: "a@example.com"},
				{Email: "b@example.com"},
			}},
		},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if err := eng.ExecuteWorkflow(ctx, request.ID); err != nil {
		t.Fatalf("execute workflow: %v", err)
	}

	clock.Advance(48 * time.Hour)
	count, err := eng.ProcessEscalations(ctx)
	if err != nil {
		t.Fatalf("process escalations: %v", err)
	}
	if count != 1 {
		t.Fatalf("escalations = %d, want 1", count)
	}

	record := requestRecord(t, store, request.ID)
	if record.Status != "completed" {
		t.Fatalf("status = %q, want completed after auto-approve", record.Status)
	}
	for _, email := range []string{"a@example.com", "b@example.com"} {
		signer := signerByEmail(t, store, request.ID, email)
		if signer.Status != "signed" || signer.SignatureType != "system" {
			t.Fatalf("signer %s = %+v, want system signature", email, signer)
		}
	}
	actions := auditActions(t, store, request.ID)
	if countAction(actions, "escalated") != 1 {
		t.Fatalf("escalated audit entries = %d, want 1", countAction(actions, "escalated"))
	}
	if countAction(actions, "completed") != 1 || countAction(actions, "certificate_generated") != 1 {
		t.Fatalf("completion audit actions = %v", actions)
	}
	if len(dispatcher.completions) != 1 {
		t.Fatalf("completion notifications = %d, want 1", len(dispatcher.completions))
	}
}

func TestEscalateRequestReassignsToManagers(t *testing.T) {
	t.Parallel()

	directory := fakeManagerDirectory{"a@example.com": "manager@example.com"}
	eng, store, _, _ := newTestEngineWithDirectory(t, Config{}, directory)
	ctx := context.Background()
	request, err := eng.CreateRequest(ctx, domain.CreateRequestInput{
		Title:             "Vendor contract",
		RequesterEmail:    "requester@example.com",
		WorkflowType:      domain.WorkflowTypeSequential,
		EscalationEnabled: true,
		EscalationDays:    1,
		EscalationAction:  domain.EscalationActionReassign,
		Levels: []domain.LevelInput{
			{Signers: []domain.SignerInput{{Email: "a@example.com"}}},
		},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if err := eng.ExecuteWorkflow(ctx, request.ID); err != nil {
		t.Fatalf("execute workflow: %v", err)
	}

	if err := eng.EscalateRequest(ctx, request.ID, nil); err != nil {
		t.Fatalf("escalate request: %v", err)
	}

	original := signerByEmail(t, store, request.ID, "a@example.com")
	if original.Status != "delegated" || original.DelegatedTo != "manager@example.com" {
		t.Fatalf("original signer = %+v, want delegated to manager", original)
	}
	replacement := signerByEmail(t, store, request.ID, "manager@example.com")
	if replacement.Status != "sent" {
		t.Fatalf("replacement signer = %q, want sent after reassignment", replacement.Status)
	}
	if replacement.Level != original.Level || replacement.SignOrder != original.SignOrder {
		t.Fatalf("replacement slot = level %d order %d, want level %d order %d",
			replacement.Level, replacement.SignOrder, original.Level, original.SignOrder)
	}
	actions := auditActions(t, store, request.ID)
	if countAction(actions, "reassigned") != 1 {
		t.Fatalf("reassigned audit entries = %d, want 1", countAction(actions, "reassigned"))
	}
}

func TestEscalateRequestReassignDegradesWithoutDirectory(t *testing.T) {
	t.Parallel()

	eng, store, dispatcher, _ := newTestEngine(t, Config{})
	ctx := context.Background()
	request, err := eng.CreateRequest(ctx, domain.CreateRequestInput{
		Title:            "Vendor contract",
		RequesterEmail:   "requester@example.com",
		WorkflowType:     domain.WorkflowTypeSequential,
		EscalationAction: domain.EscalationActionReassign,
		Levels: []domain.LevelInput{
			{Signers: []domain.SignerInput{{Email: "a@example.com"}}},
		},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if err := eng.ExecuteWorkflow(ctx, request.ID); err != nil {
		t.Fatalf("execute workflow: %v", err)
	}

	if err := eng.EscalateRequest(ctx, request.ID, nil); err != nil {
		t.Fatalf("escalate request: %v", err)
	}
	if len(dispatcher.escalations) != 1 {
		t.Fatalf("escalation notifications = %d, want 1 after degrade", len(dispatcher.escalations))
	}
	if signer := signerByEmail(t, store, request.ID, "a@example.com"); signer.Status != "sent" {
		t.Fatalf("signer = %q, want unchanged sent status", signer.Status)
	}
}

func TestEscalateRequestOverrideCancel(t *testing.T) {
	t.Parallel()

	eng, store, dispatcher, _ := newTestEngine(t, Config{})
	ctx := context.Background()
	request := createRequest(t, eng, domain.WorkflowTypeSequential, []domain.LevelInput{
		{Signers: []domain.SignerInput{{Email: "a@example.com"}}},
	})
	if err := eng.ExecuteWorkflow(ctx, request.ID); err != nil {
		t.Fatalf("execute workflow: %v", err)
	}

	action := domain.EscalationActionCancel
	if err := eng.EscalateRequest(ctx, request.ID, &action); err != nil {
		t.Fatalf("escalate request: %v", err)
	}
	if record := requestRecord(t, store, request.ID); record.Status != "cancelled" {
		t.Fatalf("status = %q, want cancelled", record.Status)
	}
	if len(dispatcher.requesterEscalations) != 1 {
		t.Fatalf("requester notices = %d, want 1", len(dispatcher.requesterEscalations))
	}
}

func TestRunScheduledTasksExpiresBeforeEscalating(t *testing.T) {
	t.Parallel()

	eng, store, dispatcher, clock := newTestEngine(t, Config{})
	ctx := context.Background()
	expiresAt := fixedNow.Add(24 * time.Hour)
	request, err := eng.CreateRequest(ctx, domain.CreateRequestInput{
		Title:             "Vendor contract",
		RequesterEmail:    "requester@example.com",
		WorkflowType:      domain.WorkflowTypeSequential,
		ExpirationDate:    &expiresAt,
		EscalationEnabled: true,
		EscalationDays:    1,
		EscalationAction:  domain.EscalationActionNotify,
		Levels: []domain.LevelInput{
			{Signers: []domain.SignerInput{{Email: "a@example.com"}}},
		},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if err := eng.ExecuteWorkflow(ctx, request.ID); err != nil {
		t.Fatalf("execute workflow: %v", err)
	}

	// Two days later the request is both expired and escalation-due;
	// expiration wins and the escalation sweep no longer sees it.
	clock.Advance(48 * time.Hour)
	summary, err := eng.RunScheduledTasks(ctx)
	if err != nil {
		t.Fatalf("run scheduled tasks: %v", err)
	}
	if summary.Expirations != 1 || summary.Escalations != 0 {
		t.Fatalf("summary = %+v, want one expiration and no escalations", summary)
	}

	record := requestRecord(t, store, request.ID)
	if record.Status != "expired" {
		t.Fatalf("status = %q, want expired", record.Status)
	}
	if signer := signerByEmail(t, store, request.ID, "a@example.com"); signer.Status != "expired" {
		t.Fatalf("signer = %q, want expired", signer.Status)
	}
	if len(dispatcher.expirations) != 1 || len(dispatcher.escalations) != 0 {
		t.Fatalf("notifications = %d expirations, %d escalations", len(dispatcher.expirations), len(dispatcher.escalations))
	}
}

func TestSendExpirationWarningsDedupesDaily(t *testing.T) {
	t.Parallel()

	eng, store, dispatcher, clock := newTestEngine(t, Config{})
	ctx := context.Background()
	expiresAt := fixedNow.Add(48 * time.Hour)
	request, err := eng.CreateRequest(ctx, domain.CreateRequestInput{
		Title:          "Vendor contract",
		RequesterEmail: "requester@example.com",
		WorkflowType:   domain.WorkflowTypeSequential,
		ExpirationDate: &expiresAt,
		Levels: []domain.LevelInput{
			{Signers: []domain.SignerInput{{Email: "a@example.com"}}},
		},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if err := eng.ExecuteWorkflow(ctx, request.ID); err != nil {
		t.Fatalf("execute workflow: %v", err)
	}

	count, err := eng.SendExpirationWarnings(ctx, 0)
	if err != nil {
		t.Fatalf("send expiration warnings: %v", err)
	}
	if count != 1 {
		t.Fatalf("warnings = %d, want 1 inside window", count)
	}
	if record := requestRecord(t, store, request.ID); record.LastWarnedAt == nil {
		t.Fatal("warning date not stamped")
	}

	// A second pass the same day skips the request.
	clock.Advance(time.Hour)
	if count, err = eng.SendExpirationWarnings(ctx, 0); err != nil {
		t.Fatalf("send expiration warnings: %v", err)
	}
	if count != 0 {
		t.Fatalf("warnings = %d, want 0 same day", count)
	}

	clock.Advance(24 * time.Hour)
	if count, err = eng.SendExpirationWarnings(ctx, 0); err != nil {
		t.Fatalf("send expiration warnings: %v", err)
	}
	if count != 1 {
		t.Fatalf("warnings = %d, want 1 next day", count)
	}
	if got := len(dispatcher.warnings); got != 2 {
		t.Fatalf("warning notifications = %d, want 2", got)
	}
}

func TestSweepsSkipLeasedRequests(t *testing.T) {
	t.Parallel()

	eng, store, dispatcher, clock := newTestEngine(t, Config{})
	ctx := context.Background()
	expiresAt := fixedNow.Add(time.Hour)
	request, err := eng.CreateRequest(ctx, domain.CreateRequestInput{
		Title:          "Vendor contract",
		RequesterEmail: "requester@example.com",
		WorkflowType:   domain.WorkflowTypeSequential,
		ExpirationDate: &expiresAt,
		Levels: []domain.LevelInput{
			{Signers: []domain.SignerInput{{Email: "a@example.com"}}},
		},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if err := eng.ExecuteWorkflow(ctx, request.ID); err != nil {
		t.Fatalf("execute workflow: %v", err)
	}

	clock.Advance(2 * time.Hour)
	if err := store.AcquireRequestLease(ctx, request.ID, "another-scheduler", time.Hour, clock.Now()); err != nil {
		t.Fatalf("acquire competing lease: %v", err)
	}

	count, err := eng.ProcessExpirations(ctx)
	if err != nil {
		t.Fatalf("process expirations: %v", err)
	}
	if count != 0 {
		t.Fatalf("expirations = %d, want 0 while leased", count)
	}
	if record := requestRecord(t, store, request.ID); record.Status != "in_progress" {
		t.Fatalf("status = %q, want untouched in_progress", record.Status)
	}
	if len(dispatcher.expirations) != 0 {
		t.Fatalf("expiration notifications = %d, want 0", len(dispatcher.expirations))
	}
}
