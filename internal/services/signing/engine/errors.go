package engine

import (
	"errors"

	apperrors "github.com/louisbranch/countersign/internal/platform/errors"
	"github.com/louisbranch/countersign/internal/services/signing/domain"
	"github.com/louisbranch/countersign/internal/services/signing/storage"
)

// codedError attaches a machine-readable code to errors leaving the
// engine's public entry points, preserving the original chain for
// errors.Is checks. Errors with no mapped code pass through unchanged.
func codedError(err error) error {
	if err == nil {
		return nil
	}
	code := codeFor(err)
	if code == apperrors.CodeUnknown {
		return err
	}
	return apperrors.Wrap(code, err.Error(), err)
}

func codeFor(err error) apperrors.Code {
	switch {
	case errors.Is(err, domain.ErrEmptyTitle):
		return apperrors.CodeRequestTitleEmpty
	case errors.Is(err, domain.ErrEmptyRequester):
		return apperrors.CodeRequestRequesterEmpty
	case errors.Is(err, domain.ErrInvalidWorkflowType):
		return apperrors.CodeRequestInvalidWorkflowType
	case errors.Is(err, domain.ErrEmptyChain), errors.Is(err, domain.ErrEmptyLevel):
		return apperrors.CodeChainEmpty
	case errors.Is(err, domain.ErrEmptySignerEmail):
		return apperrors.CodeSignerEmptyEmail
	case errors.Is(err, domain.ErrDuplicateSigner):
		return apperrors.CodeSignerDuplicateForLevel
	case errors.Is(err, domain.ErrQuorumOutOfRange):
		return apperrors.CodeChainQuorumOutOfRange
	case errors.Is(err, domain.ErrLevelNotFound):
		return apperrors.CodeChainLevelNotFound
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.CodeNotFound
	case errors.Is(err, storage.ErrConflict):
		return apperrors.CodeConflict
	case errors.Is(err, storage.ErrLeaseHeld):
		return apperrors.CodeLeaseHeld
	default:
		return apperrors.CodeUnknown
	}
}
