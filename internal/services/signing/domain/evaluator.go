package domain

// LevelComplete reports whether a level has been resolved under the
// policy that governs it. The function is pure: it never mutates the
// level and callers decide what to do with the result.
//
// Completion rules:
//   - first_signer: one signature completes the level. Signers still
//     outstanding are left untouched; they are not cancelled here.
//   - approval_then_sign: every signer must be signed or delegated,
//     regardless of role mix and of any configured quorum.
//   - everything else: a configured quorum completes the level once
//     that many signatures exist; without a quorum every signer must be
//     signed or delegated.
func LevelComplete(level SigningLevel, workflowType WorkflowType) bool {
	switch workflowType {
	case WorkflowTypeFirstSigner:
		return signedCount(level) > 0
	case WorkflowTypeApprovalThenSign:
		return allResolved(level)
	default:
		if level.RequiredSignatures > 0 {
			return signedCount(level) >= level.RequiredSignatures
		}
		return allResolved(level)
	}
}

func signedCount(level SigningLevel) int {
	count := 0
	for _, signer := range level.Signers {
		if signer.Status == SignerStatusSigned {
			count++
		}
	}
	return count
}

func allResolved(level SigningLevel) bool {
	for _, signer := range level.Signers {
		if signer.Status != SignerStatusSigned && signer.Status != SignerStatusDelegated {
			return false
		}
	}
	return len(level.Signers) > 0
}
