// Package render produces localized, channel-aware notification copy
// for signing workflow events. Copy is derived from the stored outbox
// payload so it can be re-rendered per recipient locale at delivery
// time.
package render

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// TopicSignatureRequest asks a signer for their signature.
	TopicSignatureRequest = "signing.request"
	// TopicReminder nudges a signer with a pending signature.
	TopicReminder = "signing.reminder"
	// TopicEscalation alerts a manager about a stalled request.
	TopicEscalation = "signing.escalation"
	// TopicRequesterEscalation alerts the requester about a stalled request.
	TopicRequesterEscalation = "signing.escalation.requester"
	// TopicCompletion announces a fully signed request.
	TopicCompletion = "signing.completed"
	// TopicExpiration announces an expired request.
	TopicExpiration = "signing.expired"
	// TopicExpirationWarning warns about an upcoming expiration.
	TopicExpirationWarning = "signing.expiration_warning"

	defaultGenericTitle        = "Notification"
	defaultGenericBody         = "You have a new signing notification."
	defaultGenericEmailSubject = "Countersign notification"
)

// Channel identifies where one notification artifact is rendered.
type Channel string

const (
	// ChannelInApp renders copy for the inbox/detail view.
	ChannelInApp Channel = "in_app"
	// ChannelEmail renders copy for email delivery.
	ChannelEmail Channel = "email"
)

// Input is one channel render request for a stored notification artifact.
type Input struct {
	Topic       string
	PayloadJSON string
	Channel     Channel
}

// Output is localized, channel-aware copy derived from one notification artifact.
type Output struct {
	Title        string
	BodyText     string
	EmailSubject string
}

// Localizer is the minimal message-printer contract required by the renderer.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// Payload carries the request context stored alongside an outbox
// notification.
type Payload struct {
	RequestID     string `json:"request_id"`
	RequestTitle  string `json:"request_title"`
	SignerName    string `json:"signer_name,omitempty"`
	DaysRemaining int    `json:"days_remaining,omitempty"`
}

// PrinterFor returns a message printer for the given BCP 47 locale,
// falling back to English when the tag does not parse.
func PrinterFor(locale string) *message.Printer {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag)
}

// Render returns localized copy for one notification artifact.
func Render(loc Localizer, input Input) Output {
	key, ok := topicKeys[normalizeToken(input.Topic)]
	if !ok {
		return genericOutput(loc)
	}

	payload := Payload{}
	if raw := strings.TrimSpace(input.PayloadJSON); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return genericOutput(loc)
		}
	}
	if strings.TrimSpace(payload.RequestTitle) == "" {
		return genericOutput(loc)
	}

	titleKey := "notification." + key + ".title"
	bodyKey := "notification." + key + ".body"
	if input.Channel == ChannelEmail {
		bodyKey = "notification." + key + ".email_body"
	}
	subjectKey := "notification." + key + ".email_subject"

	var body string
	if key == "expiration_warning" {
		body = localize(loc, bodyKey, payload.RequestTitle, payload.DaysRemaining)
	} else {
		body = localize(loc, bodyKey, payload.RequestTitle)
	}

	title := localize(loc, titleKey)
	subject := localize(loc, subjectKey, payload.RequestTitle)
	if title == titleKey || body == bodyKey {
		return genericOutput(loc)
	}
	if subject == subjectKey {
		subject = title
	}

	return Output{
		Title:        title,
		BodyText:     body,
		EmailSubject: subject,
	}
}

var topicKeys = map[string]string{
	TopicSignatureRequest:    "signature_request",
	TopicReminder:            "reminder",
	TopicEscalation:          "escalation",
	TopicRequesterEscalation: "requester_escalation",
	TopicCompletion:          "completion",
	TopicExpiration:          "expiration",
	TopicExpirationWarning:   "expiration_warning",
}

func genericOutput(loc Localizer) Output {
	title := localizeWithFallback(loc, "notification.generic.title", defaultGenericTitle)
	body := localizeWithFallback(loc, "notification.generic.body", defaultGenericBody)
	subject := localizeWithFallback(loc, "notification.generic.email_subject", defaultGenericEmailSubject)
	if subject == "notification.generic.email_subject" {
		subject = title
	}

	return Output{
		Title:        title,
		BodyText:     body,
		EmailSubject: subject,
	}
}

func localize(loc Localizer, key message.Reference, args ...any) string {
	if loc == nil {
		if asString, ok := key.(string); ok {
			return asString
		}
		return ""
	}
	return loc.Sprintf(key, args...)
}

func localizeWithFallback(loc Localizer, key string, fallback string) string {
	value := strings.TrimSpace(localize(loc, key))
	if value == "" || value == key {
		return fallback
	}
	return value
}

func normalizeToken(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
