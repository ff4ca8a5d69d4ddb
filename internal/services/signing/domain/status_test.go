package domain

import "testing"

func TestRequestStatusRoundTrip(t *testing.T) {
	statuses := []RequestStatus{
		RequestStatusPending,
		RequestStatusInProgress,
		RequestStatusCompleted,
		RequestStatusExpired,
		RequestStatusCancelled,
	}
	for _, status := range statuses {
		parsed, err := ParseRequestStatus(status.String())
		if err != nil {
			t.Fatalf("parse %q: %v", status.String(), err)
		}
		if parsed != status {
			t.Fatalf("round trip %v = %v", status, parsed)
		}
	}
	if _, err := ParseRequestStatus("bogus"); err == nil {
		t.Fatal("expected unknown status error")
	}
}

func TestRequestStatusTerminal(t *testing.T) {
	if RequestStatusInProgress.Terminal() {
		t.Fatal("in_progress must not be terminal")
	}
	for _, status := range []RequestStatus{RequestStatusCompleted, RequestStatusExpired, RequestStatusCancelled} {
		if !status.Terminal() {
			t.Fatalf("%v must be terminal", status)
		}
	}
}

func TestSignerStatusCanTransition(t *testing.T) {
	cases := []struct {
		from SignerStatus
		to   SignerStatus
		want bool
	}{
		{SignerStatusPending, SignerStatusSent, true},
		{SignerStatusPending, SignerStatusSigned, false},
		{SignerStatusPending, SignerStatusDeclined, false},
		{SignerStatusSent, SignerStatusViewed, true},
		{SignerStatusSent, SignerStatusSigned, true},
		{SignerStatusViewed, SignerStatusSigned, true},
		{SignerStatusViewed, SignerStatusDeclined, true},
		{SignerStatusSigned, SignerStatusDeclined, false},
		{SignerStatusDeclined, SignerStatusSigned, false},
		{SignerStatusExpired, SignerStatusSent, false},
		{SignerStatusDelegated, SignerStatusSigned, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Fatalf("%v -> %v = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestSignerStatusActionable(t *testing.T) {
	if !SignerStatusSent.Actionable() || !SignerStatusViewed.Actionable() {
		t.Fatal("sent and viewed must be actionable")
	}
	if SignerStatusPending.Actionable() || SignerStatusSigned.Actionable() {
		t.Fatal("pending and signed must not be actionable")
	}
}

func TestWorkflowTypeRoundTrip(t *testing.T) {
	types := []WorkflowType{
		WorkflowTypeSequential,
		WorkflowTypeParallel,
		WorkflowTypeHybrid,
		WorkflowTypeFirstSigner,
		WorkflowTypeApprovalThenSign,
	}
	for _, workflowType := range types {
		parsed, err := ParseWorkflowType(workflowType.String())
		if err != nil {
			t.Fatalf("parse %q: %v", workflowType.String(), err)
		}
		if parsed != workflowType {
			t.Fatalf("round trip %v = %v", workflowType, parsed)
		}
	}
	if _, err := ParseWorkflowType("round_robin"); err == nil {
		t.Fatal("expected unknown workflow type error")
	}
}

func TestEscalationActionRoundTrip(t *testing.T) {
	actions := []EscalationAction{
		EscalationActionNotify,
		EscalationActionNotifyManager,
		EscalationActionNotifyRequester,
		EscalationActionReassign,
		EscalationActionAutoApprove,
		EscalationActionCancel,
	}
	for _, action := range actions {
		parsed, err := ParseEscalationAction(action.String())
		if err != nil {
			t.Fatalf("parse %q: %v", action.String(), err)
		}
		if parsed != action {
			t.Fatalf("round trip %v = %v", action, parsed)
		}
	}
	if _, err := ParseEscalationAction("page_oncall"); err == nil {
		t.Fatal("expected unknown escalation action error")
	}
}
