// Package filter provides AIP-160 filter expression parsing and SQL
// translation for signing request and signer listings.
package filter

import (
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// SQLCondition represents a SQL WHERE clause fragment with parameters.
type SQLCondition struct {
	// Clause is the SQL WHERE clause (e.g., "status = ?").
	Clause string
	// Params are the positional parameters for the clause.
	Params []any
}

// requestDeclarations returns the field declarations for request filtering.
func requestDeclarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("status", filtering.TypeString),
		filtering.DeclareIdent("workflow_type", filtering.TypeString),
		filtering.DeclareIdent("requester_email", filtering.TypeString),
		filtering.DeclareIdent("reminder_enabled", filtering.TypeBool),
		filtering.DeclareIdent("escalation_enabled", filtering.TypeBool),
		filtering.DeclareIdent("current_level", filtering.TypeInt),
		filtering.DeclareIdent("due_date", filtering.TypeTimestamp),
		filtering.DeclareIdent("expiration_date", filtering.TypeTimestamp),
		filtering.DeclareIdent("sent_at", filtering.TypeTimestamp),
		filtering.DeclareIdent("created_at", filtering.TypeTimestamp),
	)
}

// signerDeclarations returns the field declarations for signer filtering.
func signerDeclarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("request_id", filtering.TypeString),
		filtering.DeclareIdent("level", filtering.TypeInt),
		filtering.DeclareIdent("email", filtering.TypeString),
		filtering.DeclareIdent("role", filtering.TypeString),
		filtering.DeclareIdent("status", filtering.TypeString),
		filtering.DeclareIdent("sent_at", filtering.TypeTimestamp),
		filtering.DeclareIdent("last_reminder_at", filtering.TypeTimestamp),
	)
}

// requestFieldMapping maps request filter fields to SQL column names.
var requestFieldMapping = map[string]string{
	"status":             "status",
	"workflow_type":      "workflow_type",
	"requester_email":    "requester_email",
	"reminder_enabled":   "reminder_enabled",
	"escalation_enabled": "escalation_enabled",
	"current_level":      "current_level",
	"due_date":           "due_date",
	"expiration_date":    "expiration_date",
	"sent_at":            "sent_at",
	"created_at":         "created_at",
}

// signerFieldMapping maps signer filter fields to SQL column names.
var signerFieldMapping = map[string]string{
	"request_id":       "request_id",
	"level":            "level",
	"email":            "email",
	"role":             "role",
	"status":           "status",
	"sent_at":          "sent_at",
	"last_reminder_at": "last_reminder_at",
}

// ParseRequestFilter parses an AIP-160 filter over request fields and
// returns a SQL condition. Returns an empty condition for an empty filter.
func ParseRequestFilter(filterStr string) (SQLCondition, error) {
	return parse(filterStr, requestDeclarations, requestFieldMapping)
}

// ParseSignerFilter parses an AIP-160 filter over signer fields and
// returns a SQL condition. Returns an empty condition for an empty filter.
func ParseSignerFilter(filterStr string) (SQLCondition, error) {
	return parse(filterStr, signerDeclarations, signerFieldMapping)
}

func parse(filterStr string, declare func() (*filtering.Declarations, error), mapping map[string]string) (SQLCondition, error) {
	if strings.TrimSpace(filterStr) == "" {
		return SQLCondition{}, nil
	}

	decls, err := declare()
	if err != nil {
		return SQLCondition{}, fmt.Errorf("create declarations: %w", err)
	}

	parsed, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return SQLCondition{}, fmt.Errorf("parse filter: %w", err)
	}

	translator := translator{mapping: mapping}
	return translator.expr(parsed.CheckedExpr.Expr)
}

type translator struct {
	mapping map[string]string
}

func (t translator) expr(e *expr.Expr) (SQLCondition, error) {
	if e == nil {
		return SQLCondition{}, nil
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return t.call(kind.CallExpr)
	default:
		return SQLCondition{}, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

func (t translator) call(call *expr.Expr_Call) (SQLCondition, error) {
	switch call.Function {
	case "_&&_", "AND":
		return t.logical(call.Args, "AND")
	case "_||_", "OR":
		return t.logical(call.Args, "OR")
	case "_==_", "=":
		return t.comparison(call.Args, "=")
	case "_!=_", "!=":
		return t.comparison(call.Args, "!=")
	case "_<_", "<":
		return t.comparison(call.Args, "<")
	case "_<=_", "<=":
		return t.comparison(call.Args, "<=")
	case "_>_", ">":
		return t.comparison(call.Args, ">")
	case "_>=_", ">=":
		return t.comparison(call.Args, ">=")
	default:
		return SQLCondition{}, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func (t translator) logical(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("%s requires 2 arguments", op)
	}

	left, err := t.expr(args[0])
	if err != nil {
		return SQLCondition{}, err
	}
	right, err := t.expr(args[1])
	if err != nil {
		return SQLCondition{}, err
	}

	return SQLCondition{
		Clause: fmt.Sprintf("(%s %s %s)", left.Clause, op, right.Clause),
		Params: append(left.Params, right.Params...),
	}, nil
}

func (t translator) comparison(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("comparison requires 2 arguments")
	}

	field, err := extractFieldName(args[0])
	if err != nil {
		return SQLCondition{}, err
	}
	column, ok := t.mapping[field]
	if !ok {
		return SQLCondition{}, fmt.Errorf("unknown field: %s", field)
	}

	value, err := extractValue(args[1])
	if err != nil {
		return SQLCondition{}, err
	}

	return SQLCondition{
		Clause: fmt.Sprintf("%s %s ?", column, op),
		Params: []any{value},
	}, nil
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_IdentExpr:
		return kind.IdentExpr.Name, nil
	default:
		return "", fmt.Errorf("expected identifier, got %T", kind)
	}
}

func extractValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		return extractConstValue(kind.ConstExpr)
	case *expr.Expr_CallExpr:
		// Handle timestamp("...") in value position; timestamps are
		// stored as UTC millis, matching the sqlite store encoding.
		if kind.CallExpr.Function == "timestamp" && len(kind.CallExpr.Args) == 1 {
			return extractTimestampMillis(kind.CallExpr.Args[0])
		}
		return nil, fmt.Errorf("unsupported function in value position: %s", kind.CallExpr.Function)
	default:
		return nil, fmt.Errorf("expected constant or timestamp, got %T", kind)
	}
}

func extractConstValue(c *expr.Constant) (any, error) {
	if c == nil {
		return nil, fmt.Errorf("nil constant")
	}

	switch kind := c.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return kind.Uint64Value, nil
	case *expr.Constant_DoubleValue:
		return kind.DoubleValue, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}

func extractTimestampMillis(e *expr.Expr) (int64, error) {
	if e == nil {
		return 0, fmt.Errorf("nil timestamp argument")
	}

	constExpr, ok := e.ExprKind.(*expr.Expr_ConstExpr)
	if !ok {
		return 0, fmt.Errorf("expected timestamp string, got %T", e.ExprKind)
	}
	strVal, ok := constExpr.ConstExpr.ConstantKind.(*expr.Constant_StringValue)
	if !ok {
		return 0, fmt.Errorf("expected timestamp string constant")
	}

	parsed, err := time.Parse(time.RFC3339, strVal.StringValue)
	if err != nil {
		return 0, fmt.Errorf("parse timestamp %q: %w", strVal.StringValue, err)
	}
	return parsed.UTC().UnixMilli(), nil
}
