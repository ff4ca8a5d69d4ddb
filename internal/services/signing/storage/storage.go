// Package storage defines the persistence contracts for the signing
// service. Records are flat rows; the nested request/chain/signer view
// is reconstructed at the repository boundary.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write lost an optimistic concurrency check.
	ErrConflict = errors.New("record version conflict")
	// ErrLeaseHeld indicates another holder owns the request lease.
	ErrLeaseHeld = errors.New("request lease held")
)

// RequestRecord stores one signing request row, chain columns included.
type RequestRecord struct {
	ID             string
	Title          string
	RequesterEmail string
	DocumentRefs   []string
	WorkflowType   string
	Status         string

	CurrentLevel int
	TotalLevels  int
	ChainStatus  string

	DueDate        *time.Time
	ExpirationDate *time.Time

	ReminderEnabled bool
	ReminderDays    int

	EscalationEnabled bool
	EscalationDays    int
	EscalationAction  string

	CreatedAt    time.Time
	SentAt       *time.Time
	CompletedAt  *time.Time
	LastWarnedAt *time.Time

	Version int64
}

// LevelRecord stores one chain level row.
type LevelRecord struct {
	RequestID          string
	Level              int
	WorkflowOverride   string
	RequiredSignatures int
}

// SignerRecord stores one signer row.
type SignerRecord struct {
	ID             string
	RequestID      string
	Level          int
	SignOrder      int
	Name           string
	Email          string
	Role           string
	Status         string
	SentAt         *time.Time
	ViewedAt       *time.Time
	SignedAt       *time.Time
	RemindersSent  int
	LastReminderAt *time.Time
	SignatureIP    string
	SignatureType  string
	Comment        string
	DelegatedTo    string
}

// RequestAggregate bundles the flat rows making up one request.
type RequestAggregate struct {
	Request RequestRecord
	Levels  []LevelRecord
	Signers []SignerRecord
}

// AuditEntryRecord stores one append-only audit trail row.
type AuditEntryRecord struct {
	ID             string
	RequestID      string
	SignerID       string
	SignerEmail    string
	Action         string
	Description    string
	DetailsJSON    string
	IsSystemAction bool
	CreatedAt      time.Time
}

// CertificateRecord stores one certificate of completion row. The
// signer entries are serialized as JSON; the certificate is a summary
// artifact, not a queryable aggregate.
type CertificateRecord struct {
	ID           string
	RequestID    string
	Title        string
	DocumentRefs []string
	SignersJSON  string
	GeneratedAt  time.Time
}

// NotificationRecord stores one outbox notification row awaiting delivery.
type NotificationRecord struct {
	ID             string
	RequestID      string
	SignerID       string
	RecipientEmail string
	Topic          string
	PayloadJSON    string
	DedupeKey      string
	CreatedAt      time.Time
}

// DeliveryChannel identifies one notification delivery channel.
type DeliveryChannel string

const (
	// DeliveryChannelInApp represents inbox/internal delivery.
	DeliveryChannelInApp DeliveryChannel = "in_app"
	// DeliveryChannelEmail represents email delivery.
	DeliveryChannelEmail DeliveryChannel = "email"
)

// DeliveryStatus identifies one delivery lifecycle state.
type DeliveryStatus string

const (
	// DeliveryStatusPending means the delivery is queued for a transport.
	DeliveryStatusPending DeliveryStatus = "pending"
	// DeliveryStatusDelivered means the transport completed the delivery.
	DeliveryStatusDelivered DeliveryStatus = "delivered"
)

// DeliveryRecord stores one channel delivery row for an outbox notification.
type DeliveryRecord struct {
	NotificationID string
	Channel        DeliveryChannel
	Status         DeliveryStatus
	AttemptCount   int
	CreatedAt      time.Time
	DeliveredAt    *time.Time
}

// UpdateRequestParams carries a partial request update. Nil fields are
// left unchanged. ExpectedVersion must match the stored row or the
// update fails with ErrConflict; the write bumps the version by one.
type UpdateRequestParams struct {
	RequestID       string
	ExpectedVersion int64

	Status       *string
	ChainStatus  *string
	SentAt       *time.Time
	CompletedAt  *time.Time
	LastWarnedAt *time.Time
}

// UpdateSignerParams carries a partial signer update. Nil fields are
// left unchanged.
type UpdateSignerParams struct {
	SignerID string

	Status         *string
	SentAt         *time.Time
	ViewedAt       *time.Time
	SignedAt       *time.Time
	RemindersSent  *int
	LastReminderAt *time.Time
	SignatureIP    *string
	SignatureType  *string
	Comment        *string
	DelegatedTo    *string
}

// RequestStore persists signing request aggregates.
type RequestStore interface {
	// PutRequestAggregate atomically persists a request with its levels
	// and signers. Fails with ErrConflict when the request id exists.
	PutRequestAggregate(ctx context.Context, aggregate RequestAggregate) error
	// GetRequestAggregate reconstructs the nested view from flat rows.
	GetRequestAggregate(ctx context.Context, requestID string) (RequestAggregate, error)
	// UpdateRequest applies a version-checked partial update.
	UpdateRequest(ctx context.Context, params UpdateRequestParams) error
	// UpdateChainLevel advances the chain pointer. Backward moves are
	// rejected; the write is version-checked like UpdateRequest.
	UpdateChainLevel(ctx context.Context, requestID string, level int, expectedVersion int64) error
	// ListRequests returns request rows matching an AIP-160 filter
	// expression; an empty filter selects everything.
	ListRequests(ctx context.Context, filter string) ([]RequestRecord, error)
}

// SignerStore persists signer rows.
type SignerStore interface {
	UpdateSigner(ctx context.Context, params UpdateSignerParams) error
	// AppendSigner adds a replacement signer to an existing level.
	AppendSigner(ctx context.Context, signer SignerRecord) error
	// ListSigners returns signer rows matching an AIP-160 filter
	// expression; an empty filter selects everything.
	ListSigners(ctx context.Context, filter string) ([]SignerRecord, error)
}

// AuditStore persists the append-only audit trail.
type AuditStore interface {
	AppendAuditEntry(ctx context.Context, entry AuditEntryRecord) error
	ListAuditEntries(ctx context.Context, requestID string) ([]AuditEntryRecord, error)
}

// CertificateStore persists certificates of completion.
type CertificateStore interface {
	PutCertificate(ctx context.Context, certificate CertificateRecord) error
	GetCertificateByRequest(ctx context.Context, requestID string) (CertificateRecord, error)
}

// LeaseStore hands out short-lived per-request leases so overlapping
// sweep runs do not double-process the same request.
type LeaseStore interface {
	// AcquireRequestLease grants the lease to holder until now+ttl.
	// An unexpired lease owned by another holder fails with ErrLeaseHeld;
	// expired leases are reclaimed.
	AcquireRequestLease(ctx context.Context, requestID string, holder string, ttl time.Duration, now time.Time) error
	// ReleaseRequestLease drops the lease if holder still owns it.
	ReleaseRequestLease(ctx context.Context, requestID string, holder string) error
}

// NotificationStore persists the notification outbox.
type NotificationStore interface {
	// PutNotificationWithDeliveries atomically persists one notification
	// with its initial channel deliveries.
	PutNotificationWithDeliveries(ctx context.Context, notification NotificationRecord, deliveries []DeliveryRecord) error
	// ListPendingDeliveries returns queued deliveries for one channel.
	ListPendingDeliveries(ctx context.Context, channel DeliveryChannel, limit int) ([]DeliveryRecord, error)
	// MarkDeliveryDelivered finalizes one channel delivery.
	MarkDeliveryDelivered(ctx context.Context, notificationID string, channel DeliveryChannel, deliveredAt time.Time) error
}

// Store aggregates every persistence contract the signing engine needs.
type Store interface {
	RequestStore
	SignerStore
	AuditStore
	CertificateStore
	LeaseStore
	NotificationStore
}
