package domain

import "fmt"

// RequestStatus is the lifecycle state of a signing request and its chain.
type RequestStatus int

const (
	// RequestStatusUnspecified represents an invalid request status value.
	RequestStatusUnspecified RequestStatus = iota
	// RequestStatusPending means the request was created but not yet sent.
	RequestStatusPending
	// RequestStatusInProgress means at least one signer has been activated.
	RequestStatusInProgress
	// RequestStatusCompleted means every level resolved successfully.
	RequestStatusCompleted
	// RequestStatusExpired means the request passed its expiration date.
	RequestStatusExpired
	// RequestStatusCancelled means the request was cancelled before completion.
	RequestStatusCancelled
)

// String returns the canonical storage form of the request status.
func (s RequestStatus) String() string {
	switch s {
	case RequestStatusPending:
		return "pending"
	case RequestStatusInProgress:
		return "in_progress"
	case RequestStatusCompleted:
		return "completed"
	case RequestStatusExpired:
		return "expired"
	case RequestStatusCancelled:
		return "cancelled"
	default:
		return "unspecified"
	}
}

// ParseRequestStatus converts a canonical string into a RequestStatus.
func ParseRequestStatus(value string) (RequestStatus, error) {
	switch value {
	case "pending":
		return RequestStatusPending, nil
	case "in_progress":
		return RequestStatusInProgress, nil
	case "completed":
		return RequestStatusCompleted, nil
	case "expired":
		return RequestStatusExpired, nil
	case "cancelled":
		return RequestStatusCancelled, nil
	default:
		return RequestStatusUnspecified, fmt.Errorf("unknown request status %q", value)
	}
}

// Terminal reports whether the status is absorbing: once a request is
// completed, expired, or cancelled no further transitions are allowed.
func (s RequestStatus) Terminal() bool {
	switch s {
	case RequestStatusCompleted, RequestStatusExpired, RequestStatusCancelled:
		return true
	default:
		return false
	}
}

// SignerStatus is the lifecycle state of one signer.
type SignerStatus int

const (
	// SignerStatusUnspecified represents an invalid signer status value.
	SignerStatusUnspecified SignerStatus = iota
	// SignerStatusPending means the signer has not been activated.
	SignerStatusPending
	// SignerStatusSent means a signature request was sent to the signer.
	SignerStatusSent
	// SignerStatusViewed means the signer opened the request.
	SignerStatusViewed
	// SignerStatusSigned means the signer signed.
	SignerStatusSigned
	// SignerStatusDeclined means the signer declined to sign.
	SignerStatusDeclined
	// SignerStatusDelegated means the signer delegated to someone else.
	SignerStatusDelegated
	// SignerStatusExpired means the request expired before the signer acted.
	SignerStatusExpired
)

// String returns the canonical storage form of the signer status.
func (s SignerStatus) String() string {
	switch s {
	case SignerStatusPending:
		return "pending"
	case SignerStatusSent:
		return "sent"
	case SignerStatusViewed:
		return "viewed"
	case SignerStatusSigned:
		return "signed"
	case SignerStatusDeclined:
		return "declined"
	case SignerStatusDelegated:
		return "delegated"
	case SignerStatusExpired:
		return "expired"
	default:
		return "unspecified"
	}
}

// ParseSignerStatus converts a canonical string into a SignerStatus.
func ParseSignerStatus(value string) (SignerStatus, error) {
	switch value {
	case "pending":
		return SignerStatusPending, nil
	case "sent":
		return SignerStatusSent, nil
	case "viewed":
		return SignerStatusViewed, nil
	case "signed":
		return SignerStatusSigned, nil
	case "declined":
		return SignerStatusDeclined, nil
	case "delegated":
		return SignerStatusDelegated, nil
	case "expired":
		return SignerStatusExpired, nil
	default:
		return SignerStatusUnspecified, fmt.Errorf("unknown signer status %q", value)
	}
}

// Terminal reports whether the signer status is absorbing.
func (s SignerStatus) Terminal() bool {
	switch s {
	case SignerStatusSigned, SignerStatusDeclined, SignerStatusDelegated, SignerStatusExpired:
		return true
	default:
		return false
	}
}

// Actionable reports whether the signer can currently act on the request.
func (s SignerStatus) Actionable() bool {
	return s == SignerStatusSent || s == SignerStatusViewed
}

// signerTransitions lists the allowed signer status transitions for
// signer-initiated and activation moves. System sweeps (expiration,
// auto-approve) override these gates deliberately.
var signerTransitions = map[SignerStatus][]SignerStatus{
	SignerStatusPending: {SignerStatusSent, SignerStatusDelegated, SignerStatusExpired},
	SignerStatusSent:    {SignerStatusViewed, SignerStatusSigned, SignerStatusDeclined, SignerStatusDelegated, SignerStatusExpired},
	SignerStatusViewed:  {SignerStatusSigned, SignerStatusDeclined, SignerStatusDelegated, SignerStatusExpired},
}

// CanTransition reports whether a signer may move from s to next.
// Signed and Declined are reachable only from Sent or Viewed.
func (s SignerStatus) CanTransition(next SignerStatus) bool {
	for _, allowed := range signerTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
