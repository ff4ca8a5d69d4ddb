package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/countersign/internal/services/signing/storage"
	"github.com/louisbranch/countersign/internal/services/signing/storage/filter"
)

const requestColumns = `
    id, title, requester_email, document_refs, workflow_type, status,
    current_level, total_levels, chain_status,
    due_date, expiration_date,
    reminder_enabled, reminder_days,
    escalation_enabled, escalation_days, escalation_action,
    created_at, sent_at, completed_at, last_warned_at, version
`

const signerColumns = `
    id, request_id, level, sign_order, name, email, role, status,
    sent_at, viewed_at, signed_at,
    reminders_sent, last_reminder_at,
    signature_ip, signature_type, comment, delegated_to
`

// GetRequestAggregate reconstructs the nested request view from flat rows.
func (s *Store) GetRequestAggregate(ctx context.Context, requestID string) (storage.RequestAggregate, error) {
	if err := ctx.Err(); err != nil {
		return storage.RequestAggregate{}, err
	}
	if err := s.ready(); err != nil {
		return storage.RequestAggregate{}, err
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return storage.RequestAggregate{}, fmt.Errorf("request id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM signing_requests WHERE id = ?", requestID)
	request, err := scanRequest(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.RequestAggregate{}, fmt.Errorf("request %s: %w", requestID, storage.ErrNotFound)
		}
		return storage.RequestAggregate{}, fmt.Errorf("get request: %w", err)
	}

	levels, err := s.listLevels(ctx, requestID)
	if err != nil {
		return storage.RequestAggregate{}, err
	}

	signerRows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+signerColumns+" FROM signers WHERE request_id = ? ORDER BY level, sign_order, id", requestID)
	if err != nil {
		return storage.RequestAggregate{}, fmt.Errorf("list request signers: %w", err)
	}
	defer signerRows.Close()
	signers, err := collectSigners(signerRows)
	if err != nil {
		return storage.RequestAggregate{}, err
	}

	return storage.RequestAggregate{Request: request, Levels: levels, Signers: signers}, nil
}

func (s *Store) listLevels(ctx context.Context, requestID string) ([]storage.LevelRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT request_id, level, workflow_override, required_signatures
FROM signing_levels WHERE request_id = ? ORDER BY level
`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}
	defer rows.Close()

	var levels []storage.LevelRecord
	for rows.Next() {
		var level storage.LevelRecord
		if err := rows.Scan(&level.RequestID, &level.Level, &level.WorkflowOverride, &level.RequiredSignatures); err != nil {
			return nil, fmt.Errorf("scan level: %w", err)
		}
		levels = append(levels, level)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate levels: %w", err)
	}
	return levels, nil
}

// ListRequests returns request rows matching an AIP-160 filter expression.
func (s *Store) ListRequests(ctx context.Context, filterStr string) ([]storage.RequestRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	condition, err := filter.ParseRequestFilter(filterStr)
	if err != nil {
		return nil, fmt.Errorf("parse request filter: %w", err)
	}

	query := "SELECT " + requestColumns + " FROM signing_requests"
	if condition.Clause != "" {
		query += " WHERE " + condition.Clause
	}
	query += " ORDER BY created_at, id"

	rows, err := s.sqlDB.QueryContext(ctx, query, condition.Params...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var requests []storage.RequestRecord
	for rows.Next() {
		request, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return requests, nil
}

// ListSigners returns signer rows matching an AIP-160 filter expression.
func (s *Store) ListSigners(ctx context.Context, filterStr string) ([]storage.SignerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	condition, err := filter.ParseSignerFilter(filterStr)
	if err != nil {
		return nil, fmt.Errorf("parse signer filter: %w", err)
	}

	query := "SELECT " + signerColumns + " FROM signers"
	if condition.Clause != "" {
		query += " WHERE " + condition.Clause
	}
	query += " ORDER BY request_id, level, sign_order, id"

	rows, err := s.sqlDB.QueryContext(ctx, query, condition.Params...)
	if err != nil {
		return nil, fmt.Errorf("list signers: %w", err)
	}
	defer rows.Close()
	return collectSigners(rows)
}

// ListAuditEntries returns the audit trail of one request oldest-first.
func (s *Store) ListAuditEntries(ctx context.Context, requestID string) ([]storage.AuditEntryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, fmt.Errorf("request id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, request_id, signer_id, signer_email, action, description,
       details_json, is_system_action, created_at
FROM audit_entries WHERE request_id = ? ORDER BY created_at, id
`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []storage.AuditEntryRecord
	for rows.Next() {
		var entry storage.AuditEntryRecord
		var isSystem int
		var createdAt int64
		if err := rows.Scan(
			&entry.ID, &entry.RequestID, &entry.SignerID, &entry.SignerEmail,
			&entry.Action, &entry.Description, &entry.DetailsJSON,
			&isSystem, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.IsSystemAction = isSystem != 0
		entry.CreatedAt = fromMillis(createdAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

// GetCertificateByRequest loads the certificate generated for one request.
func (s *Store) GetCertificateByRequest(ctx context.Context, requestID string) (storage.CertificateRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.CertificateRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.CertificateRecord{}, err
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return storage.CertificateRecord{}, fmt.Errorf("request id is required")
	}

	var certificate storage.CertificateRecord
	var documentRefs string
	var generatedAt int64
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, request_id, title, document_refs, signers_json, generated_at
FROM certificates WHERE request_id = ?
`, requestID)
	if err := row.Scan(
		&certificate.ID, &certificate.RequestID, &certificate.Title,
		&documentRefs, &certificate.SignersJSON, &generatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.CertificateRecord{}, fmt.Errorf("certificate for request %s: %w", requestID, storage.ErrNotFound)
		}
		return storage.CertificateRecord{}, fmt.Errorf("get certificate: %w", err)
	}
	refs, err := decodeStringSlice(documentRefs)
	if err != nil {
		return storage.CertificateRecord{}, err
	}
	certificate.DocumentRefs = refs
	certificate.GeneratedAt = fromMillis(generatedAt)
	return certificate, nil
}

// ListPendingDeliveries returns queued deliveries for one channel oldest-first.
func (s *Store) ListPendingDeliveries(ctx context.Context, channel storage.DeliveryChannel, limit int) ([]storage.DeliveryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT notification_id, channel, status, attempt_count, created_at, delivered_at
FROM notification_deliveries
WHERE channel = ? AND status = ?
ORDER BY created_at, notification_id
LIMIT ?
`, channel, storage.DeliveryStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []storage.DeliveryRecord
	for rows.Next() {
		var delivery storage.DeliveryRecord
		var createdAt int64
		var deliveredAt sql.NullInt64
		if err := rows.Scan(
			&delivery.NotificationID, &delivery.Channel, &delivery.Status,
			&delivery.AttemptCount, &createdAt, &deliveredAt,
		); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		delivery.CreatedAt = fromMillis(createdAt)
		delivery.DeliveredAt = fromNullMillis(deliveredAt)
		deliveries = append(deliveries, delivery)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return deliveries, nil
}

func scanRequest(scan func(dest ...any) error) (storage.RequestRecord, error) {
	var request storage.RequestRecord
	var documentRefs string
	var dueDate, expirationDate, sentAt, completedAt, lastWarnedAt sql.NullInt64
	var reminderEnabled, escalationEnabled int
	var createdAt int64

	if err := scan(
		&request.ID, &request.Title, &request.RequesterEmail, &documentRefs,
		&request.WorkflowType, &request.Status,
		&request.CurrentLevel, &request.TotalLevels, &request.ChainStatus,
		&dueDate, &expirationDate,
		&reminderEnabled, &request.ReminderDays,
		&escalationEnabled, &request.EscalationDays, &request.EscalationAction,
		&createdAt, &sentAt, &completedAt, &lastWarnedAt, &request.Version,
	); err != nil {
		return storage.RequestRecord{}, err
	}

	refs, err := decodeStringSlice(documentRefs)
	if err != nil {
		return storage.RequestRecord{}, err
	}
	request.DocumentRefs = refs
	request.ReminderEnabled = reminderEnabled != 0
	request.EscalationEnabled = escalationEnabled != 0
	request.CreatedAt = fromMillis(createdAt)
	request.DueDate = fromNullMillis(dueDate)
	request.ExpirationDate = fromNullMillis(expirationDate)
	request.SentAt = fromNullMillis(sentAt)
	request.CompletedAt = fromNullMillis(completedAt)
	request.LastWarnedAt = fromNullMillis(lastWarnedAt)
	return request, nil
}

func collectSigners(rows *sql.Rows) ([]storage.SignerRecord, error) {
	var signers []storage.SignerRecord
	for rows.Next() {
		var signer storage.SignerRecord
		var sentAt, viewedAt, signedAt, lastReminderAt sql.NullInt64
		if err := rows.Scan(
			&signer.ID, &signer.RequestID, &signer.Level, &signer.SignOrder,
			&signer.Name, &signer.Email, &signer.Role, &signer.Status,
			&sentAt, &viewedAt, &signedAt,
			&signer.RemindersSent, &lastReminderAt,
			&signer.SignatureIP, &signer.SignatureType, &signer.Comment, &signer.DelegatedTo,
		); err != nil {
			return nil, fmt.Errorf("scan signer: %w", err)
		}
		signer.SentAt = fromNullMillis(sentAt)
		signer.ViewedAt = fromNullMillis(viewedAt)
		signer.SignedAt = fromNullMillis(signedAt)
		signer.LastReminderAt = fromNullMillis(lastReminderAt)
		signers = append(signers, signer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signers: %w", err)
	}
	return signers, nil
}
