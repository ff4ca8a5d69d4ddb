package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/countersign/internal/platform/id"
	"github.com/louisbranch/countersign/internal/services/signing/notify/render"
	"github.com/louisbranch/countersign/internal/services/signing/storage"
)

// OutboxStore is the persistence surface the outbox dispatcher needs.
type OutboxStore interface {
	GetRequestAggregate(ctx context.Context, requestID string) (storage.RequestAggregate, error)
	PutNotificationWithDeliveries(ctx context.Context, notification storage.NotificationRecord, deliveries []storage.DeliveryRecord) error
}

// OutboxDispatcher persists one outbox notification row plus
// per-channel delivery records for every dispatch. Actual transport
// delivery is a separate consumer of the outbox.
type OutboxDispatcher struct {
	store       OutboxStore
	managers    ManagerDirectory
	now         func() time.Time
	idGenerator func() (string, error)
}

// NewOutboxDispatcher builds an outbox dispatcher. The manager
// directory may be nil; escalation notifications then go to the
// requester.
func NewOutboxDispatcher(store OutboxStore, managers ManagerDirectory, now func() time.Time, idGenerator func() (string, error)) (*OutboxDispatcher, error) {
	if store == nil {
		return nil, fmt.Errorf("outbox store is required")
	}
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	return &OutboxDispatcher{
		store:       store,
		managers:    managers,
		now:         now,
		idGenerator: idGenerator,
	}, nil
}

// SendSignatureRequestNotification writes a signature-request outbox entry.
func (d *OutboxDispatcher) SendSignatureRequestNotification(ctx context.Context, requestID string, signerID string) error {
	return d.dispatchToSigner(ctx, requestID, signerID, render.TopicSignatureRequest)
}

// SendReminderNotification writes a reminder outbox entry, deduped per day.
func (d *OutboxDispatcher) SendReminderNotification(ctx context.Context, requestID string, signerID string) error {
	return d.dispatchToSigner(ctx, requestID, signerID, render.TopicReminder)
}

// SendEscalationNotification writes an escalation outbox entry addressed
// to the requester's manager, or to the requester when no manager resolves.
func (d *OutboxDispatcher) SendEscalationNotification(ctx context.Context, requestID string) error {
	aggregate, err := d.store.GetRequestAggregate(ctx, requestID)
	if err != nil {
		return fmt.Errorf("load request for escalation: %w", err)
	}

	recipient := aggregate.Request.RequesterEmail
	if d.managers != nil {
		manager, err := d.managers.ManagerFor(ctx, aggregate.Request.RequesterEmail)
		if err == nil && strings.TrimSpace(manager) != "" {
			recipient = manager
		}
	}
	return d.persist(ctx, aggregate, "", recipient, render.TopicEscalation, 0)
}

// SendRequesterEscalationNotification writes an escalation outbox entry
// addressed to the requester.
func (d *OutboxDispatcher) SendRequesterEscalationNotification(ctx context.Context, requestID string) error {
	return d.dispatchToRequester(ctx, requestID, render.TopicRequesterEscalation)
}

// SendCompletionNotification writes a completion outbox entry.
func (d *OutboxDispatcher) SendCompletionNotification(ctx context.Context, requestID string) error {
	return d.dispatchToRequester(ctx, requestID, render.TopicCompletion)
}

// SendExpirationNotification writes an expiration outbox entry.
func (d *OutboxDispatcher) SendExpirationNotification(ctx context.Context, requestID string) error {
	return d.dispatchToRequester(ctx, requestID, render.TopicExpiration)
}

// SendExpirationWarningNotification writes an expiration-warning outbox
// entry with the remaining days carried in the payload.
func (d *OutboxDispatcher) SendExpirationWarningNotification(ctx context.Context, requestID string) error {
	aggregate, err := d.store.GetRequestAggregate(ctx, requestID)
	if err != nil {
		return fmt.Errorf("load request for expiration warning: %w", err)
	}

	daysRemaining := 0
	if aggregate.Request.ExpirationDate != nil {
		remaining := aggregate.Request.ExpirationDate.Sub(d.now().UTC())
		if remaining > 0 {
			daysRemaining = int(remaining.Hours() / 24)
			if daysRemaining == 0 {
				daysRemaining = 1
			}
		}
	}
	return d.persist(ctx, aggregate, "", aggregate.Request.RequesterEmail, render.TopicExpirationWarning, daysRemaining)
}

func (d *OutboxDispatcher) dispatchToSigner(ctx context.Context, requestID string, signerID string, topic string) error {
	aggregate, err := d.store.GetRequestAggregate(ctx, requestID)
	if err != nil {
		return fmt.Errorf("load request for %s: %w", topic, err)
	}

	var signer *storage.SignerRecord
	for i := range aggregate.Signers {
		if aggregate.Signers[i].ID == signerID {
			signer = &aggregate.Signers[i]
			break
		}
	}
	if signer == nil {
		return fmt.Errorf("signer %s not on request %s", signerID, requestID)
	}
	return d.persistWithSigner(ctx, aggregate, *signer, topic)
}

func (d *OutboxDispatcher) persistWithSigner(ctx context.Context, aggregate storage.RequestAggregate, signer storage.SignerRecord, topic string) error {
	payload := render.Payload{
		RequestID:    aggregate.Request.ID,
		RequestTitle: aggregate.Request.Title,
		SignerName:   signer.Name,
	}
	return d.persistPayload(ctx, aggregate, signer.ID, signer.Email, topic, payload)
}

func (d *OutboxDispatcher) dispatchToRequester(ctx context.Context, requestID string, topic string) error {
	aggregate, err := d.store.GetRequestAggregate(ctx, requestID)
	if err != nil {
		return fmt.Errorf("load request for %s: %w", topic, err)
	}
	return d.persist(ctx, aggregate, "", aggregate.Request.RequesterEmail, topic, 0)
}

func (d *OutboxDispatcher) persist(ctx context.Context, aggregate storage.RequestAggregate, signerID string, recipient string, topic string, daysRemaining int) error {
	payload := render.Payload{
		RequestID:     aggregate.Request.ID,
		RequestTitle:  aggregate.Request.Title,
		DaysRemaining: daysRemaining,
	}
	return d.persistPayload(ctx, aggregate, signerID, recipient, topic, payload)
}

func (d *OutboxDispatcher) persistPayload(ctx context.Context, aggregate storage.RequestAggregate, signerID string, recipient string, topic string, payload render.Payload) error {
	if strings.TrimSpace(recipient) == "" {
		return fmt.Errorf("notification recipient is required")
	}

	notificationID, err := d.idGenerator()
	if err != nil {
		return fmt.Errorf("generate notification id: %w", err)
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode notification payload: %w", err)
	}

	now := d.now().UTC()
	notification := storage.NotificationRecord{
		ID:             notificationID,
		RequestID:      aggregate.Request.ID,
		SignerID:       signerID,
		RecipientEmail: recipient,
		Topic:          topic,
		PayloadJSON:    string(encoded),
		DedupeKey:      dedupeKey(topic, aggregate.Request.ID, signerID, now),
		CreatedAt:      now,
	}
	deliveries := []storage.DeliveryRecord{
		{NotificationID: notificationID, Channel: storage.DeliveryChannelInApp, Status: storage.DeliveryStatusPending, CreatedAt: now},
		{NotificationID: notificationID, Channel: storage.DeliveryChannelEmail, Status: storage.DeliveryStatusPending, CreatedAt: now},
	}
	if err := d.store.PutNotificationWithDeliveries(ctx, notification, deliveries); err != nil {
		return fmt.Errorf("persist %s notification: %w", topic, err)
	}
	return nil
}

// dedupeKey keeps repeat dispatches distinguishable for transports.
// Daily topics carry the UTC date so one key covers one calendar day.
func dedupeKey(topic string, requestID string, signerID string, now time.Time) string {
	parts := []string{topic, requestID}
	if signerID != "" {
		parts = append(parts, signerID)
	}
	switch topic {
	case render.TopicReminder, render.TopicExpirationWarning:
		parts = append(parts, now.Format("2006-01-02"))
	}
	return strings.Join(parts, ":")
}
