package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/louisbranch/countersign/internal/services/signing/domain"
)

func TestExecuteWorkflowSequentialActivatesLowestOrder(t *testing.T) {
	t.Parallel()

	eng, store, dispatcher, _ := newTestEngine(t, Config{})
	ctx := context.Background()
	request := createRequest(t, eng, domain.WorkflowTypeSequential, []domain.LevelInput{
		{Signers: []domain.SignerInput{
			{Name: "Ada", Email: "ada@example.com"},
			{Name: "Grace", Email: "grace@example.com"},
		}},
	})

	if err := eng.ExecuteWorkflow(ctx, request.ID); err != nil {
		t.Fatalf("execute workflow: %v", err)
	}

	first := signerByEmail(t, store, request.ID, "ada@example.com")
	second := signerByEmail(t, store, request.ID, "grace@example.com")
	if first.Status != "sent" || first.SentAt == nil {
		t.Fatalf("first signer = %+v, want sent", first)
	}
	if second.Status != "pending" {
		t.Fatalf("second signer = %q, want pending", second.Status)
	}

	record := requestRecord(t, store, request.ID)
	if record.Status != "in_progress" || record.SentAt == nil {
		t.Fatalf("request = %+v, want in_progress with sent date", record)
	}
	if len(dispatcher.signatureRequests) != 1 {
		t.Fatalf("signature notifications = %d, want 1", len(dispatcher.signatureRequests))
	}

	// Re-running while a signer is active is a no-op.
	if err := eng.ExecuteWorkflow(ctx, request.ID); err != nil {
		t.Fatalf("re-execute workflow: %v", err)
	}
	if len(dispatcher.signatureRequests) != 1 {
		t.Fatalf("signature notifications after re-run = %d, want 1", len(dispatcher.signatureRequests))
	}
}

func TestExecuteWorkflowParallelActivatesAll(t *testing.T) {
	t.Parallel()

	eng, store, dispatcher, _ := newTestEngine(t, Config{})
	ctx := context.Background()
	request := createRequest(t, eng, domain.WorkflowTypeParallel, []domain.LevelInput{
		{Signers: []domain.SignerInput{
			{Email: "a@example.com"},
			{Email: "b@example.com"},
			{Email: "c@example.com"},
		}},
	})

	if err := eng.ExecuteWorkflow(ctx, request.ID); err != nil {
		t.Fatalf("execute workflow: %v", err)
	}
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		if signer := signerByEmail(t, store, request.ID, email); signer.Status != "sent" {
			t.Fatalf("signer %s = %q, want sent", email, signer.Status)
		}
	}
	if len(dispatcher.signatureRequests) != 3 {
		t.Fatalf("signature notifications = %d, want 3", len(dispatcher.signatureRequests))
	}
	actions := auditActions(t, store, request.ID)
	if countAction(actions, "sent") != 3 {
		t.Fatalf("sent audit entries = %d, want 3", countAction(actions, "sent"))
	}
}

func TestExecuteWorkflowHybridUsesLevelOverride(t *testing.T) {
	t.Parallel()

	eng, store, _, _ := newTestEngine(t, Config{})
	ctx := context.Background()
	request := createRequest(t, eng, domain.WorkflowTypeHybrid, []domain.LevelInput{
		{
			WorkflowOverride: domain.WorkflowTypeParallel,
			Signers: []domain.SignerInput{
				{Email: "a@example.com"},
				{Email: "b@example.com"},
			},
		},
	})

	if err := eng.ExecuteWorkflow(ctx, request.ID); err != nil {
		t.Fatalf("execute workflow: %v", err)
	}
	for _, email := range []string{"a@example.com", "b@example.com"} {
		if signer := signerByEmail(t, store, request.ID, email); signer.Status != "sent" {
			t.Fatalf("signer %s = %q, want sent under parallel override", email, signer.Status)
		}
	}
}

func TestSignerActionAdvancesSequentialLevel(t *testing.T) {
	t.Parallel()

	eng, store, _, _ := newTestEngine(t, Config{})
	ctx := context.Background()
	request := createRequest(t, eng, domain.WorkflowTypeSequential, []domain.LevelInput{
		{Signers: []domain.SignerInput{
			{Email: "a@example.com"},
			{Email: "b@example.com"},
		}},
	})
	if err := eng.ExecuteWorkflow(ctx, request.ID); err != nil {
		t.Fatalf("execute workflow: %v", err)
	}

	first := signerByEmail(t, store, request.ID, "a@example.com")
	if err := eng.RecordSignerAction(ctx, request.ID, first.ID, SignerActionInput{
		Status:      domain.SignerStatusSigned,
		SignatureIP: "192.0.2.10",
	}); err != nil {
		t.Fatalf("record signer action: %v", err)
	}

	// The level is not complete, so the next signer is activated.
	second := signerByEmail(t, store, request.ID, "b@example.com")
	if second.Status != "sent" {
		t.Fatalf("second signer = %q, want sent", second.Status)
	}
	first = signerByEmail(t, store, request.ID, "a@example.com")
	if first.Status != "signed" || first.SignedAt == nil || first.SignatureIP != "192.0.2.10" {
		t.Fatalf("first signer = %+v, want signed with metadata", first)
	}
}

func TestSignerActionRejectsInvalidTransition(t *testing.T) {
	t.Parallel()

	eng, store, _, _ := newTestEngine(t, Config{})
	ctx := context.Background()
	request := createRequest(t, eng, domain.WorkflowTypeSequential, []domain.LevelInput{
		{Signers: []domain.SignerInput{
			{Email: "a@example.com"},
			{Email: "b@example.com"},
		}},
	})
	if err := eng.ExecuteWorkflow(ctx, request.ID); err != nil {
		t.Fatalf("execute workflow: %v", err)
	}

	// The second signer is still pending; signing is not allowed.
	pending := signerByEmail(t, store, request.ID, "b@example.com")
	err := eng.RecordSignerAction(ctx, request.ID, pending.ID, SignerActionInput{
		Status: domain.SignerStatusSigned,
	})
	if err == nil || !strings.Contains(err.Error(), "cannot move") {
		t.Fatalf("expected transition rejection, got %v", err)
	}
}

func TestQuorumCompletionAdvancesChain(t *testing.T) {
	t.Parallel()

	eng, store, _, _ := newTestEngine(t, Config{})
	ctx := context.Background()
	request := createRequest(t, eng, domain.WorkflowTypeParallel, []domain.LevelInput{
		{
			RequiredSignatures: 2,
			Signers: []domain.SignerInput{
				{Email: "a@example.com"},
				{Email: "b@example.com"},
				{Email: "c@example.com"},
			},
		},
		{Signers: []domain.SignerInput{{Email: "approver@example.com"}}},
	})
	if err := eng.ExecuteWorkflow(ctx, request.ID); err != nil {
		t.Fatalf("execute workflow: %v", err)
	}

	for _, email := range []string{"a@example.com", "b@example.com"} {
		signer := signerByEmail(t, store, request.ID, email)
		if err := eng.RecordSignerAction(ctx, request.ID, signer.ID, SignerActionInput{
			Status: domain.SignerStatusSigned,
		}); err != nil {
			t.Fatalf("sign %s: %v", email, err)
		}
	}

	record := requestRecord(t, store, request.ID)
	if record.CurrentLevel != 2 {
		t.Fatalf("current level = %d, want 2 after quorum", record.CurrentLevel)
	}
	if approver := signerByEmail(t, store, request.ID, "approver@example.com"); approver.Status != "sent" {
		t.Fatalf("level 2 signer = %q, want sent", approver.Status)
	}
	// The third level 1 signer keeps their status.
	if third := signerByEmail(t, store, request.ID, "c@example.com"); third.Status != "sent" {
		t.Fatalf("remaining quorum signer = %q, want sent", third.Status)
	}
	actions := auditActions(t, store, request.ID)
	if countAction(actions, "level_advanced") != 1 {
		t.Fatalf("level_advanced audit entries = %d, want 1", countAction(actions, "level_advanced"))
	}
}

func TestFirstSignerCompletesOnFirstSignature(t *testing.T) {
	t.Parallel()

	eng, store, dispatcher, _ := newTestEngine(t, Config{})
	ctx := context.Background()
	request := createRequest(t, eng, domain.WorkflowTypeFirstSigner, []domain.LevelInput{
		{Signers: []domain.SignerInput{
			{Email: "a@example.com"},
			{Email: "b@example.com"},
			{Email: "c@example.com"},
		}},
	})
	if err := eng.ExecuteWorkflow(ctx, request.ID); err != nil {
		t.Fatalf("execute workflow: %v", err)
	}

	winner := signerByEmail(t, store, request.ID, "b@example.com")
	if err := eng.RecordSignerAction(ctx, request.ID, winner.ID, SignerActionInput{
		Status: domain.SignerStatusSigned,
	}); err != nil {
		t.Fatalf("record signer action: %v", err)
	}

	record := requestRecord(t, store, request.ID)
	if record.Status != "completed" || record.CompletedAt == nil {
		t.Fatalf("request = %+v, want completed", record)
	}
	// Non-winning signers are left untouched, not cancelled.
	for _, email := range []string{"a@example.com", "c@example.com"} {
		if signer := signerByEmail(t, store, request.ID, email); signer.Status != "sent" {
			t.Fatalf("non-winning signer %s = %q, want sent", email, signer.Status)
		}
	}
	if _, err := store.GetCertificateByRequest(ctx, request.ID); err != nil {
		t.Fatalf("get certificate: %v", err)
	}
	if len(dispatcher.completions) != 1 {
		t.Fatalf("completion notifications = %d, want 1", len(dispatcher.completions))
	}
}

func TestDeclineCancelsRequest(t *testing.T) {
	t.Parallel()

	eng, store, dispatcher, _ := newTestEngine(t, Config{})
	ctx := context.Background()
	request := createRequest(t, eng, domain.WorkflowTypeSequential, []domain.LevelInput{
		{Signers: []domain.SignerInput{{Email: "a@example.com"}}},
	})
	if err := eng.ExecuteWorkflow(ctx, request.ID); err != nil {
		t.Fatalf("execute workflow: %v", err)
	}

	signer := signerByEmail(t, store, request.ID, "a@example.com")
	if err := eng.RecordSignerAction(ctx, request.ID, signer.ID, SignerActionInput{
		Status:  domain.SignerStatusDeclined,
		Comment: "terms unacceptable",
	}); err != nil {
		t.Fatalf("record signer action: %v", err)
	}

	record := requestRecord(t, store, request.ID)
	if record.Status != "cancelled" {
		t.Fatalf("status = %q, want cancelled", record.Status)
	}
	actions := auditActions(t, store, request.ID)
	if countAction(actions, "declined") != 1 || countAction(actions, "cancelled") != 1 {
		t.Fatalf("audit actions = %v", actions)
	}
	if len(dispatcher.requesterEscalations) != 1 {
		t.Fatalf("requester notices = %d, want 1", len(dispatcher.requesterEscalations))
	}
}

func TestAdvanceAtLastLevelEqualsComplete(t *testing.T) {
	t.Parallel()

	eng, store, _, _ := newTestEngine(t, Config{})
	ctx := context.Background()
	request := createRequest(t, eng, domain.WorkflowTypeParallel, []domain.LevelInput{
		{Signers: []domain.SignerInput{{Email: "a@example.com"}}},
	})
	if err := eng.ExecuteWorkflow(ctx, request.ID); err != nil {
		t.Fatalf("execute workflow: %v", err)
	}

	signer := signerByEmail(t, store, request.ID, "a@example.com")
	if err := eng.RecordSignerAction(ctx, request.ID, signer.ID, SignerActionInput{
		Status: domain.SignerStatusSigned,
	}); err != nil {
		t.Fatalf("record signer action: %v", err)
	}

	record := requestRecord(t, store, request.ID)
	if record.Status != "completed" {
		t.Fatalf("status = %q, want completed", record.Status)
	}
	actions := auditActions(t, store, request.ID)
	if countAction(actions, "completed") != 1 {
		t.Fatalf("completed audit entries = %d, want 1", countAction(actions, "completed"))
	}
	if countAction(actions, "certificate_generated") != 1 {
		t.Fatalf("certificate audit entries = %d, want 1", countAction(actions, "certificate_generated"))
	}

	// Advancing a terminal request is absorbing.
	if err := eng.AdvanceToNextLevel(ctx, request.ID); err != nil {
		t.Fatalf("advance terminal request: %v", err)
	}
	actions = auditActions(t, store, request.ID)
	if countAction(actions, "completed") != 1 {
		t.Fatalf("completed audit entries after re-advance = %d, want 1", countAction(actions, "completed"))
	}
}

func TestEvaluateLevelCompletionMissingLevelIsNoOp(t *testing.T) {
	t.Parallel()

	eng, _, _, _ := newTestEngine(t, Config{})
	ctx := context.Background()
	request := createRequest(t, eng, domain.WorkflowTypeSequential, []domain.LevelInput{
		{Signers: []domain.SignerInput{{Email: "a@example.com"}}},
	})

	complete, err := eng.EvaluateLevelCompletion(ctx, request.ID, 9)
	if err != nil {
		t.Fatalf("evaluate missing level: %v", err)
	}
	if complete {
		t.Fatal("missing level reported complete")
	}
}

func TestApprovalThenSignRequiresAllSigners(t *testing.T) {
	t.Parallel()

	eng, store, _, _ := newTestEngine(t, Config{})
	ctx := context.Background()
	request := createRequest(t, eng, domain.WorkflowTypeApprovalThenSign, []domain.LevelInput{
		{Signers: []domain.SignerInput{
			{Email: "approver@example.com", Role: "Approver"},
			{Email: "signer@example.com"},
		}},
	})
	if err := eng.ExecuteWorkflow(ctx, request.ID); err != nil {
		t.Fatalf("execute workflow: %v", err)
	}

	// An approver in the level activates everyone at once.
	for _, email := range []string{"approver@example.com", "signer@example.com"} {
		if signer := signerByEmail(t, store, request.ID, email); signer.Status != "sent" {
			t.Fatalf("signer %s = %q, want sent", email, signer.Status)
		}
	}

	approver := signerByEmail(t, store, request.ID, "approver@example.com")
	if err := eng.RecordSignerAction(ctx, request.ID, approver.ID, SignerActionInput{
		Status: domain.SignerStatusSigned,
	}); err != nil {
		t.Fatalf("sign approver: %v", err)
	}
	if record := requestRecord(t, store, request.ID); record.Status != "in_progress" {
		t.Fatalf("status = %q, want in_progress until all sign", record.Status)
	}

	signer := signerByEmail(t, store, request.ID, "signer@example.com")
	if err := eng.RecordSignerAction(ctx, request.ID, signer.ID, SignerActionInput{
		Status: domain.SignerStatusSigned,
	}); err != nil {
		t.Fatalf("sign signer: %v", err)
	}
	if record := requestRecord(t, store, request.ID); record.Status != "completed" {
		t.Fatalf("status = %q, want completed", record.Status)
	}
}
