package domain

import "fmt"

// EscalationAction is the automated intervention applied when a request
// stays outstanding past its escalation threshold.
type EscalationAction int

const (
	// EscalationActionUnspecified represents an invalid escalation action.
	EscalationActionUnspecified EscalationAction = iota
	// EscalationActionNotify sends a generic escalation notice.
	EscalationActionNotify
	// EscalationActionNotifyManager notifies each outstanding signer's manager.
	EscalationActionNotifyManager
	// EscalationActionNotifyRequester notifies the request owner.
	EscalationActionNotifyRequester
	// EscalationActionReassign delegates outstanding signers to their managers.
	EscalationActionReassign
	// EscalationActionAutoApprove force-signs outstanding signers and completes.
	EscalationActionAutoApprove
	// EscalationActionCancel cancels the request.
	EscalationActionCancel
)

// String returns the canonical storage form of the escalation action.
func (a EscalationAction) String() string {
	switch a {
	case EscalationActionNotify:
		return "notify"
	case EscalationActionNotifyManager:
		return "notify_manager"
	case EscalationActionNotifyRequester:
		return "notify_requester"
	case EscalationActionReassign:
		return "reassign"
	case EscalationActionAutoApprove:
		return "auto_approve"
	case EscalationActionCancel:
		return "cancel"
	default:
		return "unspecified"
	}
}

// ParseEscalationAction converts a canonical string into an EscalationAction.
func ParseEscalationAction(value string) (EscalationAction, error) {
	switch value {
	case "notify":
		return EscalationActionNotify, nil
	case "notify_manager":
		return EscalationActionNotifyManager, nil
	case "notify_requester":
		return EscalationActionNotifyRequester, nil
	case "reassign":
		return EscalationActionReassign, nil
	case "auto_approve":
		return EscalationActionAutoApprove, nil
	case "cancel":
		return EscalationActionCancel, nil
	default:
		return EscalationActionUnspecified, fmt.Errorf("unknown escalation action %q", value)
	}
}
