package domain

import "time"

// AuditAction identifies one kind of audit trail event.
type AuditAction string

const (
	// AuditActionSent records a signature request being sent to a signer.
	AuditActionSent AuditAction = "sent"
	// AuditActionViewed records a signer opening the request.
	AuditActionViewed AuditAction = "viewed"
	// AuditActionSigned records a signature.
	AuditActionSigned AuditAction = "signed"
	// AuditActionDeclined records a signer declining.
	AuditActionDeclined AuditAction = "declined"
	// AuditActionDelegated records a delegation to another signer.
	AuditActionDelegated AuditAction = "delegated"
	// AuditActionReminded records a reminder notification.
	AuditActionReminded AuditAction = "reminded"
	// AuditActionEscalated records an escalation intervention.
	AuditActionEscalated AuditAction = "escalated"
	// AuditActionReassigned records signers reassigned during escalation.
	AuditActionReassigned AuditAction = "reassigned"
	// AuditActionExpired records a request expiring.
	AuditActionExpired AuditAction = "expired"
	// AuditActionExpirationWarned records a pre-expiration warning.
	AuditActionExpirationWarned AuditAction = "expiration_warned"
	// AuditActionLevelAdvanced records the chain moving to the next level.
	AuditActionLevelAdvanced AuditAction = "level_advanced"
	// AuditActionCancelled records a request cancellation.
	AuditActionCancelled AuditAction = "cancelled"
	// AuditActionCompleted records a request reaching completion.
	AuditActionCompleted AuditAction = "completed"
	// AuditActionCertificateGenerated records certificate issuance.
	AuditActionCertificateGenerated AuditAction = "certificate_generated"
)

// AuditEntry is one append-only audit trail record. Entries are never
// mutated or deleted after being written.
type AuditEntry struct {
	ID             string
	RequestID      string
	SignerID       string
	SignerEmail    string
	Action         AuditAction
	Description    string
	Details        map[string]string
	IsSystemAction bool
	CreatedAt      time.Time
}
