package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	apperrors "github.com/louisbranch/countersign/internal/platform/errors"
	"github.com/louisbranch/countersign/internal/services/signing/domain"
	"github.com/louisbranch/countersign/internal/services/signing/storage"
)

// ExecuteWorkflow activates the signer(s) of the current level
// according to the effective workflow type. The first execution also
// moves the request from pending to in progress and stamps the sent
// date. Executing a terminal request is a no-op.
func (e *Engine) ExecuteWorkflow(ctx context.Context, requestID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	request, err := e.loadRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request.Status.Terminal() {
		log.Printf("execute workflow: request %s already %s", requestID, request.Status)
		return nil
	}

	level, err := request.CurrentLevel()
	if err != nil {
		// Configuration error: the chain points at a level that does
		// not exist. Logged no-op rather than a failure.
		log.Printf("execute workflow: request %s: %v", requestID, err)
		return nil
	}

	workflowType := request.EffectiveWorkflowType(level)
	now := e.now().UTC()
	for _, signer := range domain.NextActivation(level, workflowType) {
		if err := e.store.UpdateSigner(ctx, storage.UpdateSignerParams{
			SignerID: signer.ID,
			Status:   strPtr(domain.SignerStatusSent.String()),
			SentAt:   timePtr(now),
		}); err != nil {
			return fmt.Errorf("activate signer %s: %w", signer.ID, err)
		}
		if err := e.dispatcher.SendSignatureRequestNotification(ctx, requestID, signer.ID); err != nil {
			log.Printf("notify signer %s on request %s: %v", signer.ID, requestID, err)
		}
		e.logAudit(ctx, domain.AuditEntry{
			RequestID:   requestID,
			SignerID:    signer.ID,
			SignerEmail: signer.Email,
			Action:      domain.AuditActionSent,
			Description: fmt.Sprintf("signature request sent to %s at level %d", signer.Email, level.Level),
		})
	}

	if request.Status == domain.RequestStatusPending {
		if err := e.store.UpdateRequest(ctx, storage.UpdateRequestParams{
			RequestID:       requestID,
			ExpectedVersion: request.Version,
			Status:          strPtr(domain.RequestStatusInProgress.String()),
			ChainStatus:     strPtr(domain.RequestStatusInProgress.String()),
			SentAt:          timePtr(now),
		}); err != nil {
			return fmt.Errorf("mark request in progress: %w", err)
		}
	}
	return nil
}

// SignerActionInput carries one signer-initiated state change.
type SignerActionInput struct {
	Status        domain.SignerStatus
	SignatureIP   string
	SignatureType string
	Comment       string
	DelegatedTo   string
}

// RecordSignerAction applies one signer action, appends the audit
// entry, and evaluates level completion. A declined signature cancels
// the whole request: the chain cannot complete past a refusal.
func (e *Engine) RecordSignerAction(ctx context.Context, requestID string, signerID string, input SignerActionInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	request, err := e.loadRequest(ctx, requestID)
	if err != nil {
		return codedError(err)
	}
	if request.Status.Terminal() {
		return apperrors.New(apperrors.CodeRequestAlreadyTerminal,
			fmt.Sprintf("request %s is already %s", requestID, request.Status))
	}

	signer, err := findSigner(request, signerID)
	if err != nil {
		return err
	}
	if !signer.Status.CanTransition(input.Status) {
		return apperrors.New(apperrors.CodeSignerInvalidTransition,
			fmt.Sprintf("signer %s cannot move from %s to %s", signerID, signer.Status, input.Status))
	}

	now := e.now().UTC()
	params := storage.UpdateSignerParams{
		SignerID: signerID,
		Status:   strPtr(input.Status.String()),
	}
	switch input.Status {
	case domain.SignerStatusViewed:
		params.ViewedAt = timePtr(now)
	case domain.SignerStatusSigned:
		params.SignedAt = timePtr(now)
		params.SignatureIP = strPtr(input.SignatureIP)
		params.SignatureType = strPtr(input.SignatureType)
	case domain.SignerStatusDelegated:
		params.DelegatedTo = strPtr(input.DelegatedTo)
	}
	if input.Comment != "" {
		params.Comment = strPtr(input.Comment)
	}
	if err := e.store.UpdateSigner(ctx, params); err != nil {
		return fmt.Errorf("record signer action: %w", err)
	}

	e.logAudit(ctx, domain.AuditEntry{
		RequestID:   requestID,
		SignerID:    signerID,
		SignerEmail: signer.Email,
		Action:      auditActionForSignerStatus(input.Status),
		Description: fmt.Sprintf("signer %s moved to %s", signer.Email, input.Status),
	})

	switch input.Status {
	case domain.SignerStatusDeclined:
		return e.cancelRequest(ctx, requestID, fmt.Sprintf("declined by %s", signer.Email))
	case domain.SignerStatusSigned, domain.SignerStatusDelegated:
		complete, err := e.EvaluateLevelCompletion(ctx, requestID, signer.Level)
		if err != nil {
			return err
		}
		if !complete {
			// A sequential level may now be waiting on its next signer.
			return e.ExecuteWorkflow(ctx, requestID)
		}
	}
	return nil
}

// EvaluateLevelCompletion reports whether the given level is complete
// and, when the current level completes, advances the chain. A level
// missing from the chain is a configuration error: logged, no-op.
func (e *Engine) EvaluateLevelCompletion(ctx context.Context, requestID string, levelNumber int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	request, err := e.loadRequest(ctx, requestID)
	if err != nil {
		return false, err
	}

	level, err := request.Chain.LevelAt(levelNumber)
	if err != nil {
		if errors.Is(err, domain.ErrLevelNotFound) {
			log.Printf("evaluate level completion: request %s: %v", requestID, err)
			return false, nil
		}
		return false, err
	}

	complete := domain.LevelComplete(level, request.EffectiveWorkflowType(level))
	if !complete {
		return false, nil
	}
	if levelNumber == request.Chain.CurrentLevel && !request.Status.Terminal() {
		if err := e.AdvanceToNextLevel(ctx, requestID); err != nil {
			return true, err
		}
	}
	return true, nil
}

// AdvanceToNextLevel moves the chain forward and activates the next
// level, or completes the request when the last level has resolved.
// Calling it at the last level is exactly equivalent to completing the
// request directly.
func (e *Engine) AdvanceToNextLevel(ctx context.Context, requestID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	request, err := e.loadRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request.Status.Terminal() {
		log.Printf("advance level: request %s already %s", requestID, request.Status)
		return nil
	}

	if request.Chain.CurrentLevel >= request.Chain.TotalLevels {
		return e.completeRequest(ctx, requestID)
	}

	nextLevel := request.Chain.CurrentLevel + 1
	if err := e.store.UpdateChainLevel(ctx, requestID, nextLevel, request.Version); err != nil {
		return fmt.Errorf("advance chain: %w", err)
	}
	e.logAudit(ctx, domain.AuditEntry{
		RequestID:      requestID,
		Action:         domain.AuditActionLevelAdvanced,
		Description:    fmt.Sprintf("chain advanced to level %d of %d", nextLevel, request.Chain.TotalLevels),
		Details:        map[string]string{"level": fmt.Sprintf("%d", nextLevel)},
		IsSystemAction: true,
	})
	return e.ExecuteWorkflow(ctx, requestID)
}

// completeRequest finalizes a fully resolved request: terminal status,
// completion stamp, certificate of completion, and stakeholder notice.
func (e *Engine) completeRequest(ctx context.Context, requestID string) error {
	request, err := e.loadRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request.Status.Terminal() {
		log.Printf("complete request: request %s already %s", requestID, request.Status)
		return nil
	}

	now := e.now().UTC()
	if err := e.store.UpdateRequest(ctx, storage.UpdateRequestParams{
		RequestID:       requestID,
		ExpectedVersion: request.Version,
		Status:          strPtr(domain.RequestStatusCompleted.String()),
		ChainStatus:     strPtr(domain.RequestStatusCompleted.String()),
		CompletedAt:     timePtr(now),
	}); err != nil {
		return fmt.Errorf("mark request completed: %w", err)
	}

	e.logAudit(ctx, domain.AuditEntry{
		RequestID:      requestID,
		Action:         domain.AuditActionCompleted,
		Description:    "all levels resolved, request completed",
		IsSystemAction: true,
	})
	if err := e.dispatcher.SendCompletionNotification(ctx, requestID); err != nil {
		log.Printf("send completion notification for request %s: %v", requestID, err)
	}

	certificate, err := domain.NewCertificate(request, e.now, e.idGenerator)
	if err != nil {
		return fmt.Errorf("build certificate: %w", err)
	}
	record, err := certificateRecordFromCertificate(certificate)
	if err != nil {
		return err
	}
	if err := e.store.PutCertificate(ctx, record); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			// A concurrent completion already certified the request.
			log.Printf("certificate for request %s already exists", requestID)
			return nil
		}
		return fmt.Errorf("persist certificate: %w", err)
	}
	e.logAudit(ctx, domain.AuditEntry{
		RequestID:      requestID,
		Action:         domain.AuditActionCertificateGenerated,
		Description:    fmt.Sprintf("certificate %s generated", certificate.ID),
		Details:        map[string]string{"certificate_id": certificate.ID},
		IsSystemAction: true,
	})
	return nil
}

// cancelRequest moves the request to the cancelled terminal state and
// notifies the requester.
func (e *Engine) cancelRequest(ctx context.Context, requestID string, reason string) error {
	request, err := e.loadRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request.Status.Terminal() {
		return nil
	}

	if err := e.store.UpdateRequest(ctx, storage.UpdateRequestParams{
		RequestID:       requestID,
		ExpectedVersion: request.Version,
		Status:          strPtr(domain.RequestStatusCancelled.String()),
		ChainStatus:     strPtr(domain.RequestStatusCancelled.String()),
	}); err != nil {
		return fmt.Errorf("mark request cancelled: %w", err)
	}
	e.logAudit(ctx, domain.AuditEntry{
		RequestID:      requestID,
		Action:         domain.AuditActionCancelled,
		Description:    fmt.Sprintf("request cancelled: %s", reason),
		IsSystemAction: true,
	})
	if err := e.dispatcher.SendRequesterEscalationNotification(ctx, requestID); err != nil {
		log.Printf("send cancellation notice for request %s: %v", requestID, err)
	}
	return nil
}

func findSigner(request domain.SigningRequest, signerID string) (domain.Signer, error) {
	for _, level := range request.Chain.Levels {
		for _, signer := range level.Signers {
			if signer.ID == signerID {
				return signer, nil
			}
		}
	}
	return domain.Signer{}, apperrors.New(apperrors.CodeSignerNotFound,
		fmt.Sprintf("signer %s not on request %s", signerID, request.ID))
}

func auditActionForSignerStatus(status domain.SignerStatus) domain.AuditAction {
	switch status {
	case domain.SignerStatusViewed:
		return domain.AuditActionViewed
	case domain.SignerStatusSigned:
		return domain.AuditActionSigned
	case domain.SignerStatusDeclined:
		return domain.AuditActionDeclined
	case domain.SignerStatusDelegated:
		return domain.AuditActionDelegated
	default:
		return domain.AuditAction(status.String())
	}
}
