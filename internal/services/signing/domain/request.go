package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/countersign/internal/platform/id"
)

var (
	// ErrEmptyTitle indicates a missing request title.
	ErrEmptyTitle = errors.New("request title is required")
	// ErrEmptyRequester indicates a missing requester email.
	ErrEmptyRequester = errors.New("requester email is required")
	// ErrInvalidWorkflowType indicates a missing or unknown workflow type.
	ErrInvalidWorkflowType = errors.New("workflow type is required")
	// ErrEmptyChain indicates a request without signing levels.
	ErrEmptyChain = errors.New("at least one signing level is required")
	// ErrEmptyLevel indicates a level without signers.
	ErrEmptyLevel = errors.New("each level requires at least one signer")
	// ErrEmptySignerEmail indicates a signer without an email address.
	ErrEmptySignerEmail = errors.New("signer email is required")
	// ErrDuplicateSigner indicates two signers with the same email in one level.
	ErrDuplicateSigner = errors.New("signer email is duplicated within a level")
	// ErrQuorumOutOfRange indicates a required-signatures count exceeding the level size.
	ErrQuorumOutOfRange = errors.New("required signatures exceed level signer count")
	// ErrLevelNotFound indicates a referenced level missing from the chain.
	ErrLevelNotFound = errors.New("level not found in signing chain")
)

// Signer is one participant required to act at a specific level.
type Signer struct {
	ID             string
	RequestID      string
	Level          int
	Order          int
	Name           string
	Email          string
	Role           string
	Status         SignerStatus
	SentAt         *time.Time
	ViewedAt       *time.Time
	SignedAt       *time.Time
	RemindersSent  int
	LastReminderAt *time.Time
	SignatureIP    string
	SignatureType  string
	Comment        string
	DelegatedTo    string
}

// SigningLevel is one stage in the chain with its own signer set and,
// under a hybrid workflow, its own concurrency policy.
type SigningLevel struct {
	Level int
	// WorkflowOverride applies only when the request workflow is hybrid.
	WorkflowOverride WorkflowType
	// RequiredSignatures is the completion quorum; zero means all signers.
	RequiredSignatures int
	Signers            []Signer
}

// SigningChain is the ordered sequence of levels a request passes through.
type SigningChain struct {
	CurrentLevel int
	TotalLevels  int
	Status       RequestStatus
	Levels       []SigningLevel
}

// LevelAt returns the level with the given 1-based number.
func (c SigningChain) LevelAt(level int) (SigningLevel, error) {
	for _, l := range c.Levels {
		if l.Level == level {
			return l, nil
		}
	}
	return SigningLevel{}, fmt.Errorf("%w: level %d of %d", ErrLevelNotFound, level, c.TotalLevels)
}

// SigningRequest is the aggregate root for one document set moving
// through an approval chain. Version increments on every persisted
// mutation and backs optimistic concurrency checks.
type SigningRequest struct {
	ID             string
	Title          string
	RequesterEmail string
	DocumentRefs   []string
	WorkflowType   WorkflowType
	Status         RequestStatus

	DueDate        *time.Time
	ExpirationDate *time.Time

	ReminderEnabled bool
	ReminderDays    int

	EscalationEnabled bool
	EscalationDays    int
	EscalationAction  EscalationAction

	CreatedAt    time.Time
	SentAt       *time.Time
	CompletedAt  *time.Time
	LastWarnedAt *time.Time

	Version int64
	Chain   SigningChain
}

// CurrentLevel returns the chain level currently awaiting signatures.
func (r SigningRequest) CurrentLevel() (SigningLevel, error) {
	return r.Chain.LevelAt(r.Chain.CurrentLevel)
}

// EffectiveWorkflowType resolves the policy governing one level. A
// hybrid request defers to the level's own override and falls back to
// sequential when no override is set.
func (r SigningRequest) EffectiveWorkflowType(level SigningLevel) WorkflowType {
	if r.WorkflowType != WorkflowTypeHybrid {
		return r.WorkflowType
	}
	if level.WorkflowOverride != WorkflowTypeUnspecified {
		return level.WorkflowOverride
	}
	return WorkflowTypeSequential
}

// SignerInput describes one signer of a new request.
type SignerInput struct {
	Name  string
	Email string
	Role  string
}

// LevelInput describes one level of a new request.
type LevelInput struct {
	WorkflowOverride   WorkflowType
	RequiredSignatures int
	Signers            []SignerInput
}

// CreateRequestInput describes the metadata needed to create a request.
type CreateRequestInput struct {
	Title          string
	RequesterEmail string
	DocumentRefs   []string
	WorkflowType   WorkflowType

	DueDate        *time.Time
	ExpirationDate *time.Time

	ReminderEnabled bool
	ReminderDays    int

	EscalationEnabled bool
	EscalationDays    int
	EscalationAction  EscalationAction

	Levels []LevelInput
}

// CreateSigningRequest creates a new request with generated identifiers
// and a fully pending chain. Unknown workflow types are rejected here
// rather than silently defaulting at execution time.
func CreateSigningRequest(input CreateRequestInput, now func() time.Time, idGenerator func() (string, error)) (SigningRequest, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := normalizeCreateRequestInput(input)
	if err != nil {
		return SigningRequest{}, err
	}

	requestID, err := idGenerator()
	if err != nil {
		return SigningRequest{}, fmt.Errorf("generate request id: %w", err)
	}

	createdAt := now().UTC()
	chain := SigningChain{
		CurrentLevel: 1,
		TotalLevels:  len(normalized.Levels),
		Status:       RequestStatusPending,
	}
	for i, levelInput := range normalized.Levels {
		level := SigningLevel{
			Level:              i + 1,
			WorkflowOverride:   levelInput.WorkflowOverride,
			RequiredSignatures: levelInput.RequiredSignatures,
		}
		for j, signerInput := range levelInput.Signers {
			signerID, err := idGenerator()
			if err != nil {
				return SigningRequest{}, fmt.Errorf("generate signer id: %w", err)
			}
			level.Signers = append(level.Signers, Signer{
				ID:        signerID,
				RequestID: requestID,
				Level:     i + 1,
				Order:     j + 1,
				Name:      signerInput.Name,
				Email:     signerInput.Email,
				Role:      signerInput.Role,
				Status:    SignerStatusPending,
			})
		}
		chain.Levels = append(chain.Levels, level)
	}

	return SigningRequest{
		ID:                requestID,
		Title:             normalized.Title,
		RequesterEmail:    normalized.RequesterEmail,
		DocumentRefs:      normalized.DocumentRefs,
		WorkflowType:      normalized.WorkflowType,
		Status:            RequestStatusPending,
		DueDate:           normalized.DueDate,
		ExpirationDate:    normalized.ExpirationDate,
		ReminderEnabled:   normalized.ReminderEnabled,
		ReminderDays:      normalized.ReminderDays,
		EscalationEnabled: normalized.EscalationEnabled,
		EscalationDays:    normalized.EscalationDays,
		EscalationAction:  normalized.EscalationAction,
		CreatedAt:         createdAt,
		Version:           1,
		Chain:             chain,
	}, nil
}

// normalizeCreateRequestInput trims and validates request input metadata.
func normalizeCreateRequestInput(input CreateRequestInput) (CreateRequestInput, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return CreateRequestInput{}, ErrEmptyTitle
	}
	input.RequesterEmail = strings.ToLower(strings.TrimSpace(input.RequesterEmail))
	if input.RequesterEmail == "" {
		return CreateRequestInput{}, ErrEmptyRequester
	}
	switch input.WorkflowType {
	case WorkflowTypeSequential, WorkflowTypeParallel, WorkflowTypeHybrid,
		WorkflowTypeFirstSigner, WorkflowTypeApprovalThenSign:
	default:
		return CreateRequestInput{}, ErrInvalidWorkflowType
	}
	if len(input.Levels) == 0 {
		return CreateRequestInput{}, ErrEmptyChain
	}
	if input.EscalationEnabled && input.EscalationAction == EscalationActionUnspecified {
		input.EscalationAction = EscalationActionNotify
	}

	for i := range input.Levels {
		level := &input.Levels[i]
		if len(level.Signers) == 0 {
			return CreateRequestInput{}, fmt.Errorf("%w: level %d", ErrEmptyLevel, i+1)
		}
		if level.RequiredSignatures < 0 || level.RequiredSignatures > len(level.Signers) {
			return CreateRequestInput{}, fmt.Errorf("%w: level %d", ErrQuorumOutOfRange, i+1)
		}
		seen := make(map[string]struct{}, len(level.Signers))
		for j := range level.Signers {
			signer := &level.Signers[j]
			signer.Name = strings.TrimSpace(signer.Name)
			signer.Email = strings.ToLower(strings.TrimSpace(signer.Email))
			signer.Role = strings.TrimSpace(signer.Role)
			if signer.Email == "" {
				return CreateRequestInput{}, fmt.Errorf("%w: level %d signer %d", ErrEmptySignerEmail, i+1, j+1)
			}
			if _, dup := seen[signer.Email]; dup {
				return CreateRequestInput{}, fmt.Errorf("%w: level %d email %s", ErrDuplicateSigner, i+1, signer.Email)
			}
			seen[signer.Email] = struct{}{}
		}
	}
	return input, nil
}
