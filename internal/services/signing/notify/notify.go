// Package notify delivers signing workflow notifications. The engine
// only calls the Dispatcher; delivery transports consume the outbox
// written by the production implementation.
package notify

import "context"

// Dispatcher is the notification contract consumed by the workflow
// engine. Implementations must not block the calling operation beyond
// a local persistence write; transport delivery happens out of band.
type Dispatcher interface {
	// SendSignatureRequestNotification tells a signer their signature
	// is requested.
	SendSignatureRequestNotification(ctx context.Context, requestID string, signerID string) error
	// SendReminderNotification nudges a signer with a pending signature.
	SendReminderNotification(ctx context.Context, requestID string, signerID string) error
	// SendEscalationNotification alerts the requester's manager about a
	// stalled request, falling back to the requester when no manager
	// resolves.
	SendEscalationNotification(ctx context.Context, requestID string) error
	// SendRequesterEscalationNotification alerts the requester about a
	// stalled request.
	SendRequesterEscalationNotification(ctx context.Context, requestID string) error
	// SendCompletionNotification tells the requester every signature
	// was collected.
	SendCompletionNotification(ctx context.Context, requestID string) error
	// SendExpirationNotification tells the requester the request expired.
	SendExpirationNotification(ctx context.Context, requestID string) error
	// SendExpirationWarningNotification warns the requester about an
	// upcoming expiration.
	SendExpirationWarningNotification(ctx context.Context, requestID string) error
}

// ManagerDirectory resolves the manager responsible for an employee
// email. Backed by an HR directory in production deployments.
type ManagerDirectory interface {
	// ManagerFor returns the manager's email for the given employee
	// email. An error means no manager could be resolved.
	ManagerFor(ctx context.Context, email string) (string, error)
}
