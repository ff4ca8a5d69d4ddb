package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/countersign/internal/services/signing/storage"
)

// PutRequestAggregate atomically persists one request with its levels and signers.
func (s *Store) PutRequestAggregate(ctx context.Context, aggregate storage.RequestAggregate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	request := aggregate.Request
	if strings.TrimSpace(request.ID) == "" {
		return fmt.Errorf("request id is required")
	}

	documentRefs, err := encodeStringSlice(request.DocumentRefs)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin request aggregate write: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback request aggregate write: %v", cause, rollbackErr)
		}
		return cause
	}

	version := request.Version
	if version <= 0 {
		version = 1
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO signing_requests (
    id, title, requester_email, document_refs, workflow_type, status,
    current_level, total_levels, chain_status,
    due_date, expiration_date,
    reminder_enabled, reminder_days,
    escalation_enabled, escalation_days, escalation_action,
    created_at, sent_at, completed_at, last_warned_at, version
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		request.ID, request.Title, request.RequesterEmail, documentRefs,
		request.WorkflowType, request.Status,
		request.CurrentLevel, request.TotalLevels, request.ChainStatus,
		toNullMillis(request.DueDate), toNullMillis(request.ExpirationDate),
		boolToInt(request.ReminderEnabled), request.ReminderDays,
		boolToInt(request.EscalationEnabled), request.EscalationDays, request.EscalationAction,
		toMillis(request.CreatedAt), toNullMillis(request.SentAt),
		toNullMillis(request.CompletedAt), toNullMillis(request.LastWarnedAt),
		version,
	); err != nil {
		if isUniqueViolation(err) {
			return rollbackWith(fmt.Errorf("request %s: %w", request.ID, storage.ErrConflict))
		}
		return rollbackWith(fmt.Errorf("insert request: %w", err))
	}

	for _, level := range aggregate.Levels {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO signing_levels (request_id, level, workflow_override, required_signatures)
VALUES (?, ?, ?, ?)
`, request.ID, level.Level, level.WorkflowOverride, level.RequiredSignatures); err != nil {
			return rollbackWith(fmt.Errorf("insert level %d: %w", level.Level, err))
		}
	}

	for _, signer := range aggregate.Signers {
		if err := insertSignerExec(ctx, tx, signer); err != nil {
			return rollbackWith(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit request aggregate write: %w", err)
	}
	return nil
}

func insertSignerExec(ctx context.Context, tx *sql.Tx, signer storage.SignerRecord) error {
	if _, err := tx.ExecContext(ctx, `
INSERT INTO signers (
    id, request_id, level, sign_order, name, email, role, status,
    sent_at, viewed_at, signed_at,
    reminders_sent, last_reminder_at,
    signature_ip, signature_type, comment, delegated_to
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		signer.ID, signer.RequestID, signer.Level, signer.SignOrder,
		signer.Name, signer.Email, signer.Role, signer.Status,
		toNullMillis(signer.SentAt), toNullMillis(signer.ViewedAt), toNullMillis(signer.SignedAt),
		signer.RemindersSent, toNullMillis(signer.LastReminderAt),
		signer.SignatureIP, signer.SignatureType, signer.Comment, signer.DelegatedTo,
	); err != nil {
		return fmt.Errorf("insert signer %s: %w", signer.ID, err)
	}
	return nil
}

// UpdateRequest applies a version-checked partial update to one request row.
func (s *Store) UpdateRequest(ctx context.Context, params storage.UpdateRequestParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(params.RequestID) == "" {
		return fmt.Errorf("request id is required")
	}

	assignments := []string{"version = version + 1"}
	args := []any{}
	if params.Status != nil {
		assignments = append(assignments, "status = ?")
		args = append(args, *params.Status)
	}
	if params.ChainStatus != nil {
		assignments = append(assignments, "chain_status = ?")
		args = append(args, *params.ChainStatus)
	}
	if params.SentAt != nil {
		assignments = append(assignments, "sent_at = ?")
		args = append(args, toMillis(*params.SentAt))
	}
	if params.CompletedAt != nil {
		assignments = append(assignments, "completed_at = ?")
		args = append(args, toMillis(*params.CompletedAt))
	}
	if params.LastWarnedAt != nil {
		assignments = append(assignments, "last_warned_at = ?")
		args = append(args, toMillis(*params.LastWarnedAt))
	}

	query := fmt.Sprintf(
		"UPDATE signing_requests SET %s WHERE id = ? AND version = ?",
		strings.Join(assignments, ", "),
	)
	args = append(args, params.RequestID, params.ExpectedVersion)

	result, err := s.sqlDB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	return s.checkVersionedWrite(ctx, result, params.RequestID)
}

// UpdateChainLevel advances the chain pointer with a version check.
// Backward moves are rejected.
func (s *Store) UpdateChainLevel(ctx context.Context, requestID string, level int, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(requestID) == "" {
		return fmt.Errorf("request id is required")
	}

	var currentLevel, totalLevels int
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT current_level, total_levels FROM signing_requests WHERE id = ?", requestID)
	if err := row.Scan(&currentLevel, &totalLevels); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("request %s: %w", requestID, storage.ErrNotFound)
		}
		return fmt.Errorf("read chain level: %w", err)
	}
	if level < currentLevel {
		return fmt.Errorf("chain level %d behind current %d", level, currentLevel)
	}
	if level > totalLevels {
		return fmt.Errorf("chain level %d beyond total %d", level, totalLevels)
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE signing_requests SET current_level = ?, version = version + 1
WHERE id = ? AND version = ?
`, level, requestID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update chain level: %w", err)
	}
	return s.checkVersionedWrite(ctx, result, requestID)
}

func (s *Store) checkVersionedWrite(ctx context.Context, result sql.Result, requestID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists int
	row := s.sqlDB.QueryRowContext(ctx, "SELECT 1 FROM signing_requests WHERE id = ?", requestID)
	if err := row.Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("request %s: %w", requestID, storage.ErrNotFound)
		}
		return fmt.Errorf("check request existence: %w", err)
	}
	return fmt.Errorf("request %s: %w", requestID, storage.ErrConflict)
}

// UpdateSigner applies a partial update to one signer row.
func (s *Store) UpdateSigner(ctx context.Context, params storage.UpdateSignerParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(params.SignerID) == "" {
		return fmt.Errorf("signer id is required")
	}

	var assignments []string
	var args []any
	if params.Status != nil {
		assignments = append(assignments, "status = ?")
		args = append(args, *params.Status)
	}
	if params.SentAt != nil {
		assignments = append(assignments, "sent_at = ?")
		args = append(args, toMillis(*params.SentAt))
	}
	if params.ViewedAt != nil {
		assignments = append(assignments, "viewed_at = ?")
		args = append(args, toMillis(*params.ViewedAt))
	}
	if params.SignedAt != nil {
		assignments = append(assignments, "signed_at = ?")
		args = append(args, toMillis(*params.SignedAt))
	}
	if params.RemindersSent != nil {
		assignments = append(assignments, "reminders_sent = ?")
		args = append(args, *params.RemindersSent)
	}
	if params.LastReminderAt != nil {
		assignments = append(assignments, "last_reminder_at = ?")
		args = append(args, toMillis(*params.LastReminderAt))
	}
	if params.SignatureIP != nil {
		assignments = append(assignments, "signature_ip = ?")
		args = append(args, *params.SignatureIP)
	}
	if params.SignatureType != nil {
		assignments = append(assignments, "signature_type = ?")
		args = append(args, *params.SignatureType)
	}
	if params.Comment != nil {
		assignments = append(assignments, "comment = ?")
		args = append(args, *params.Comment)
	}
	if params.DelegatedTo != nil {
		assignments = append(assignments, "delegated_to = ?")
		args = append(args, *params.DelegatedTo)
	}
	if len(assignments) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE signers SET %s WHERE id = ?", strings.Join(assignments, ", "))
	args = append(args, params.SignerID)

	result, err := s.sqlDB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update signer: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("signer %s: %w", params.SignerID, storage.ErrNotFound)
	}
	return nil
}

// AppendSigner adds a replacement signer to an existing level.
func (s *Store) AppendSigner(ctx context.Context, signer storage.SignerRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(signer.ID) == "" {
		return fmt.Errorf("signer id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin signer append: %w", err)
	}
	if err := insertSignerExec(ctx, tx, signer); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback signer append: %v", err, rollbackErr)
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("signer %s: %w", signer.ID, storage.ErrConflict)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit signer append: %w", err)
	}
	return nil
}

// AppendAuditEntry persists one append-only audit trail row.
func (s *Store) AppendAuditEntry(ctx context.Context, entry storage.AuditEntryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(entry.ID) == "" {
		return fmt.Errorf("audit entry id is required")
	}

	detailsJSON := entry.DetailsJSON
	if strings.TrimSpace(detailsJSON) == "" {
		detailsJSON = "{}"
	}
	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO audit_entries (
    id, request_id, signer_id, signer_email, action, description,
    details_json, is_system_action, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		entry.ID, entry.RequestID, entry.SignerID, entry.SignerEmail,
		entry.Action, entry.Description, detailsJSON,
		boolToInt(entry.IsSystemAction), toMillis(entry.CreatedAt),
	); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// PutCertificate persists one certificate of completion row.
func (s *Store) PutCertificate(ctx context.Context, certificate storage.CertificateRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(certificate.ID) == "" {
		return fmt.Errorf("certificate id is required")
	}

	documentRefs, err := encodeStringSlice(certificate.DocumentRefs)
	if err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO certificates (id, request_id, title, document_refs, signers_json, generated_at)
VALUES (?, ?, ?, ?, ?, ?)
`,
		certificate.ID, certificate.RequestID, certificate.Title,
		documentRefs, certificate.SignersJSON, toMillis(certificate.GeneratedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("certificate for request %s: %w", certificate.RequestID, storage.ErrConflict)
		}
		return fmt.Errorf("put certificate: %w", err)
	}
	return nil
}

// AcquireRequestLease grants the request lease to holder until now+ttl.
func (s *Store) AcquireRequestLease(ctx context.Context, requestID string, holder string, ttl time.Duration, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(requestID) == "" {
		return fmt.Errorf("request id is required")
	}
	if strings.TrimSpace(holder) == "" {
		return fmt.Errorf("lease holder is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("lease ttl must be positive")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO request_leases (request_id, holder, expires_at)
VALUES (?, ?, ?)
ON CONFLICT (request_id) DO UPDATE
SET holder = excluded.holder, expires_at = excluded.expires_at
WHERE request_leases.holder = excluded.holder OR request_leases.expires_at <= ?
`, requestID, holder, toMillis(now.Add(ttl)), toMillis(now))
	if err != nil {
		return fmt.Errorf("acquire request lease: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("request %s: %w", requestID, storage.ErrLeaseHeld)
	}
	return nil
}

// ReleaseRequestLease drops the lease if holder still owns it.
func (s *Store) ReleaseRequestLease(ctx context.Context, requestID string, holder string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		"DELETE FROM request_leases WHERE request_id = ? AND holder = ?",
		requestID, holder,
	); err != nil {
		return fmt.Errorf("release request lease: %w", err)
	}
	return nil
}

// PutNotificationWithDeliveries atomically persists one outbox
// notification with its initial channel deliveries.
func (s *Store) PutNotificationWithDeliveries(ctx context.Context, notification storage.NotificationRecord, deliveries []storage.DeliveryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(notification.ID) == "" {
		return fmt.Errorf("notification id is required")
	}

	payloadJSON := notification.PayloadJSON
	if strings.TrimSpace(payloadJSON) == "" {
		payloadJSON = "{}"
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin notification write: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback notification write: %v", cause, rollbackErr)
		}
		return cause
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO notifications (id, request_id, signer_id, recipient_email, topic, payload_json, dedupe_key, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		notification.ID, notification.RequestID, notification.SignerID,
		notification.RecipientEmail, notification.Topic, payloadJSON,
		notification.DedupeKey, toMillis(notification.CreatedAt),
	); err != nil {
		return rollbackWith(fmt.Errorf("insert notification: %w", err))
	}

	for _, delivery := range deliveries {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO notification_deliveries (notification_id, channel, status, attempt_count, created_at, delivered_at)
VALUES (?, ?, ?, ?, ?, ?)
`,
			notification.ID, delivery.Channel, delivery.Status,
			delivery.AttemptCount, toMillis(delivery.CreatedAt), toNullMillis(delivery.DeliveredAt),
		); err != nil {
			return rollbackWith(fmt.Errorf("insert delivery %s: %w", delivery.Channel, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit notification write: %w", err)
	}
	return nil
}

// MarkDeliveryDelivered finalizes one channel delivery.
func (s *Store) MarkDeliveryDelivered(ctx context.Context, notificationID string, channel storage.DeliveryChannel, deliveredAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE notification_deliveries
SET status = ?, attempt_count = attempt_count + 1, delivered_at = ?
WHERE notification_id = ? AND channel = ?
`, storage.DeliveryStatusDelivered, toMillis(deliveredAt), notificationID, channel)
	if err != nil {
		return fmt.Errorf("mark delivery delivered: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("delivery %s/%s: %w", notificationID, channel, storage.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint") || strings.Contains(message, "constraint failed")
}
