package domain

import "fmt"

// WorkflowType is the concurrency policy governing how signers within a
// level are activated and how level completion is evaluated.
type WorkflowType int

const (
	// WorkflowTypeUnspecified represents an invalid workflow type value.
	WorkflowTypeUnspecified WorkflowType = iota
	// WorkflowTypeSequential activates one signer at a time in order.
	WorkflowTypeSequential
	// WorkflowTypeParallel activates every signer in a level at once.
	WorkflowTypeParallel
	// WorkflowTypeHybrid defers to each level's own workflow override.
	WorkflowTypeHybrid
	// WorkflowTypeFirstSigner activates all signers and completes the
	// level on the first signature.
	WorkflowTypeFirstSigner
	// WorkflowTypeApprovalThenSign activates in parallel when the level
	// contains an approver, sequentially otherwise.
	WorkflowTypeApprovalThenSign
)

// String returns the canonical storage form of the workflow type.
func (w WorkflowType) String() string {
	switch w {
	case WorkflowTypeSequential:
		return "sequential"
	case WorkflowTypeParallel:
		return "parallel"
	case WorkflowTypeHybrid:
		return "hybrid"
	case WorkflowTypeFirstSigner:
		return "first_signer"
	case WorkflowTypeApprovalThenSign:
		return "approval_then_sign"
	default:
		return "unspecified"
	}
}

// ParseWorkflowType converts a canonical string into a WorkflowType.
func ParseWorkflowType(value string) (WorkflowType, error) {
	switch value {
	case "sequential":
		return WorkflowTypeSequential, nil
	case "parallel":
		return WorkflowTypeParallel, nil
	case "hybrid":
		return WorkflowTypeHybrid, nil
	case "first_signer":
		return WorkflowTypeFirstSigner, nil
	case "approval_then_sign":
		return WorkflowTypeApprovalThenSign, nil
	default:
		return WorkflowTypeUnspecified, fmt.Errorf("unknown workflow type %q", value)
	}
}
