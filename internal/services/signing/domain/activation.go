package domain

import "strings"

// approverRole marks the signer role that switches an approval-then-sign
// level into parallel activation.
const approverRole = "approver"

// NextActivation returns the signers of a level that should be activated
// now, given the policy that governs the level. The returned slice holds
// copies; the caller persists the actual transitions.
//
// Unknown workflow types fall back to sequential activation. Callers
// that care should detect the fallback via ParseWorkflowType at request
// creation; at execution time the engine only logs it.
func NextActivation(level SigningLevel, workflowType WorkflowType) []Signer {
	switch workflowType {
	case WorkflowTypeParallel, WorkflowTypeFirstSigner:
		return pendingSigners(level)
	case WorkflowTypeApprovalThenSign:
		if levelHasApprover(level) {
			return pendingSigners(level)
		}
		return sequentialActivation(level)
	default:
		return sequentialActivation(level)
	}
}

// sequentialActivation picks the lowest-order pending signer, unless a
// signer is already active: sequential levels keep at most one signer in
// sent or viewed status at a time.
func sequentialActivation(level SigningLevel) []Signer {
	for _, signer := range level.Signers {
		if signer.Status.Actionable() {
			return nil
		}
	}

	var next *Signer
	for i := range level.Signers {
		signer := &level.Signers[i]
		if signer.Status != SignerStatusPending {
			continue
		}
		if next == nil || signer.Order < next.Order {
			next = signer
		}
	}
	if next == nil {
		return nil
	}
	return []Signer{*next}
}

func pendingSigners(level SigningLevel) []Signer {
	var pending []Signer
	for _, signer := range level.Signers {
		if signer.Status == SignerStatusPending {
			pending = append(pending, signer)
		}
	}
	return pending
}

func levelHasApprover(level SigningLevel) bool {
	for _, signer := range level.Signers {
		if strings.EqualFold(signer.Role, approverRole) {
			return true
		}
	}
	return false
}
