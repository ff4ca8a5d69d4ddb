package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/countersign/internal/services/signing/domain"
)

// LevelProgress summarizes one level's signature progress.
type LevelProgress struct {
	Level           int
	Signed          int
	Total           int
	PercentComplete int
	Complete        bool
}

// WorkflowStatus is the read-only progress summary of one request.
type WorkflowStatus struct {
	RequestID       string
	Status          domain.RequestStatus
	CurrentLevel    int
	TotalLevels     int
	Levels          []LevelProgress
	PercentComplete int
	// NextActions names the signers the request is currently waiting on.
	NextActions []string
	// EstimatedCompletion is a heuristic projection, nil for terminal
	// requests. It never exceeds the request's due date.
	EstimatedCompletion *time.Time
}

// GetWorkflowStatus aggregates per-level and overall progress, the
// signers currently being waited on, and a completion estimate.
func (e *Engine) GetWorkflowStatus(ctx context.Context, requestID string) (WorkflowStatus, error) {
	if err := ctx.Err(); err != nil {
		return WorkflowStatus{}, err
	}

	request, err := e.loadRequest(ctx, requestID)
	if err != nil {
		return WorkflowStatus{}, err
	}

	status := WorkflowStatus{
		RequestID:    request.ID,
		Status:       request.Status,
		CurrentLevel: request.Chain.CurrentLevel,
		TotalLevels:  request.Chain.TotalLevels,
	}

	signedTotal := 0
	signerTotal := 0
	for _, level := range request.Chain.Levels {
		signed := 0
		for _, signer := range level.Signers {
			if signer.Status == domain.SignerStatusSigned {
				signed++
			}
		}
		progress := LevelProgress{
			Level:    level.Level,
			Signed:   signed,
			Total:    len(level.Signers),
			Complete: domain.LevelComplete(level, request.EffectiveWorkflowType(level)),
		}
		if progress.Total > 0 {
			progress.PercentComplete = signed * 100 / progress.Total
		}
		status.Levels = append(status.Levels, progress)
		signedTotal += signed
		signerTotal += len(level.Signers)

		if level.Level == request.Chain.CurrentLevel {
			for _, signer := range level.Signers {
				if !signer.Status.Actionable() {
					continue
				}
				name := signer.Name
				if name == "" {
					name = signer.Email
				}
				status.NextActions = append(status.NextActions, fmt.Sprintf("awaiting signature from %s", name))
			}
		}
	}
	if signerTotal > 0 {
		status.PercentComplete = signedTotal * 100 / signerTotal
	}

	if !request.Status.Terminal() {
		status.EstimatedCompletion = estimateCompletion(request, e.now().UTC())
	}
	return status, nil
}

// estimateCompletion projects a completion date from the observed pace:
// elapsed time divided by resolved levels, seeded with a default pace
// before any level resolves. The estimate is clamped to the due date.
func estimateCompletion(request domain.SigningRequest, now time.Time) *time.Time {
	remaining := request.Chain.TotalLevels - request.Chain.CurrentLevel + 1
	if remaining < 0 {
		remaining = 0
	}

	start := request.CreatedAt
	if request.SentAt != nil {
		start = *request.SentAt
	}

	perLevel := time.Duration(defaultLevelDays) * 24 * time.Hour
	if resolved := request.Chain.CurrentLevel - 1; resolved > 0 {
		if elapsed := now.Sub(start); elapsed > 0 {
			perLevel = elapsed / time.Duration(resolved)
		}
	}

	estimate := now.Add(time.Duration(remaining) * perLevel)
	if request.DueDate != nil && estimate.After(*request.DueDate) {
		estimate = *request.DueDate
	}
	return &estimate
}
