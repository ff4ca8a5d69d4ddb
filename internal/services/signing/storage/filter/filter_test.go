package filter

import (
	"testing"
	"time"
)

func TestParseRequestFilterEmpty(t *testing.T) {
	cond, err := ParseRequestFilter("   ")
	if err != nil {
		t.Fatalf("parse empty filter: %v", err)
	}
	if cond.Clause != "" || len(cond.Params) != 0 {
		t.Fatalf("expected empty condition, got %+v", cond)
	}
}

func TestParseRequestFilterEquality(t *testing.T) {
	cond, err := ParseRequestFilter(`status = "in_progress"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "status = ?" {
		t.Fatalf("clause = %q, want %q", cond.Clause, "status = ?")
	}
	if len(cond.Params) != 1 || cond.Params[0] != "in_progress" {
		t.Fatalf("params = %v, want [in_progress]", cond.Params)
	}
}

func TestParseRequestFilterConjunction(t *testing.T) {
	cond, err := ParseRequestFilter(`status = "in_progress" AND reminder_enabled = true`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(status = ? AND reminder_enabled = ?)" {
		t.Fatalf("clause = %q", cond.Clause)
	}
	if len(cond.Params) != 2 {
		t.Fatalf("params = %v, want 2 values", cond.Params)
	}
	if cond.Params[1] != true {
		t.Fatalf("params[1] = %v, want true", cond.Params[1])
	}
}

func TestParseRequestFilterTimestampConvertsToMillis(t *testing.T) {
	cond, err := ParseRequestFilter(`expiration_date < timestamp("2026-03-14T00:00:00Z")`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "expiration_date < ?" {
		t.Fatalf("clause = %q", cond.Clause)
	}
	want := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC).UnixMilli()
	if len(cond.Params) != 1 || cond.Params[0] != want {
		t.Fatalf("params = %v, want [%d]", cond.Params, want)
	}
}

func TestParseRequestFilterRejectsUnknownField(t *testing.T) {
	if _, err := ParseRequestFilter(`secret = "x"`); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestParseSignerFilter(t *testing.T) {
	cond, err := ParseSignerFilter(`request_id = "req-1" AND status = "sent"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(request_id = ? AND status = ?)" {
		t.Fatalf("clause = %q", cond.Clause)
	}
	if len(cond.Params) != 2 || cond.Params[0] != "req-1" || cond.Params[1] != "sent" {
		t.Fatalf("params = %v", cond.Params)
	}
}

func TestParseSignerFilterRejectsRequestFields(t *testing.T) {
	if _, err := ParseSignerFilter(`workflow_type = "parallel"`); err == nil {
		t.Fatal("expected unknown field error for request-only field")
	}
}
