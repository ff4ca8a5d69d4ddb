// Package errors provides structured error handling for the signing services.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Request errors
	CodeRequestTitleEmpty           Code = "REQUEST_TITLE_EMPTY"
	CodeRequestRequesterEmpty       Code = "REQUEST_REQUESTER_EMPTY"
	CodeRequestInvalidWorkflowType  Code = "REQUEST_INVALID_WORKFLOW_TYPE"
	CodeRequestInvalidStatusChange  Code = "REQUEST_INVALID_STATUS_TRANSITION"
	CodeRequestStatusDisallowsOp    Code = "REQUEST_STATUS_DISALLOWS_OPERATION"
	CodeRequestAlreadyTerminal      Code = "REQUEST_ALREADY_TERMINAL"
	CodeRequestInvalidEscalation    Code = "REQUEST_INVALID_ESCALATION_ACTION"
	CodeRequestExpirationBeforeSend Code = "REQUEST_EXPIRATION_BEFORE_SEND"

	// Chain errors
	CodeChainEmpty            Code = "CHAIN_EMPTY"
	CodeChainLevelNotFound    Code = "CHAIN_LEVEL_NOT_FOUND"
	CodeChainBackwardAdvance  Code = "CHAIN_BACKWARD_ADVANCE"
	CodeChainLevelUnresolved  Code = "CHAIN_LEVEL_UNRESOLVED"
	CodeChainQuorumOutOfRange Code = "CHAIN_QUORUM_OUT_OF_RANGE"

	// Signer errors
	CodeSignerEmptyEmail         Code = "SIGNER_EMPTY_EMAIL"
	CodeSignerNotFound           Code = "SIGNER_NOT_FOUND"
	CodeSignerInvalidTransition  Code = "SIGNER_INVALID_STATUS_TRANSITION"
	CodeSignerNotActionable      Code = "SIGNER_NOT_ACTIONABLE"
	CodeSignerDuplicateForLevel  Code = "SIGNER_DUPLICATE_FOR_LEVEL"
	CodeSignerDelegateUnresolved Code = "SIGNER_DELEGATE_UNRESOLVED"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeLeaseHeld     Code = "LEASE_HELD"
	CodeStaleVersion  Code = "STALE_VERSION"
	CodeFilterInvalid Code = "FILTER_INVALID"
)

// GRPCCode maps the error code to a canonical gRPC status code.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeNotFound, CodeChainLevelNotFound, CodeSignerNotFound:
		return codes.NotFound
	case CodeConflict, CodeLeaseHeld, CodeStaleVersion:
		return codes.Aborted
	case CodeRequestInvalidStatusChange, CodeRequestStatusDisallowsOp,
		CodeRequestAlreadyTerminal, CodeChainBackwardAdvance,
		CodeChainLevelUnresolved, CodeSignerInvalidTransition,
		CodeSignerNotActionable:
		return codes.FailedPrecondition
	case CodeRequestTitleEmpty, CodeRequestRequesterEmpty, CodeRequestInvalidWorkflowType,
		CodeRequestInvalidEscalation, CodeRequestExpirationBeforeSend,
		CodeChainEmpty, CodeChainQuorumOutOfRange, CodeSignerEmptyEmail,
		CodeSignerDuplicateForLevel, CodeFilterInvalid:
		return codes.InvalidArgument
	case CodeSignerDelegateUnresolved:
		return codes.Unavailable
	default:
		return codes.Unknown
	}
}
