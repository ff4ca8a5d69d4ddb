package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.English

	message.SetString(lang, "notification.generic.title", defaultGenericTitle)
	message.SetString(lang, "notification.generic.body", defaultGenericBody)
	message.SetString(lang, "notification.generic.email_subject", defaultGenericEmailSubject)

	message.SetString(lang, "notification.signature_request.title", "Signature requested")
	message.SetString(lang, "notification.signature_request.body", "Your signature is requested on %q.")
	message.SetString(lang, "notification.signature_request.email_subject", "Signature requested: %s")
	message.SetString(lang, "notification.signature_request.email_body", "Your signature is requested on %q. Open your inbox to review and sign.")

	message.SetString(lang, "notification.reminder.title", "Signature reminder")
	message.SetString(lang, "notification.reminder.body", "Reminder: %q is still waiting for your signature.")
	message.SetString(lang, "notification.reminder.email_subject", "Reminder: %s awaits your signature")
	message.SetString(lang, "notification.reminder.email_body", "Reminder: %q is still waiting for your signature.")

	message.SetString(lang, "notification.escalation.title", "Signing request escalated")
	message.SetString(lang, "notification.escalation.body", "The signing request %q has stalled and needs attention.")
	message.SetString(lang, "notification.escalation.email_subject", "Escalation: %s")
	message.SetString(lang, "notification.escalation.email_body", "The signing request %q has stalled and needs attention.")

	message.SetString(lang, "notification.requester_escalation.title", "Your signing request was escalated")
	message.SetString(lang, "notification.requester_escalation.body", "Your signing request %q has stalled and was escalated.")
	message.SetString(lang, "notification.requester_escalation.email_subject", "Escalation: %s")
	message.SetString(lang, "notification.requester_escalation.email_body", "Your signing request %q has stalled and was escalated.")

	message.SetString(lang, "notification.completion.title", "Signing request completed")
	message.SetString(lang, "notification.completion.body", "All signatures on %q have been collected.")
	message.SetString(lang, "notification.completion.email_subject", "Completed: %s")
	message.SetString(lang, "notification.completion.email_body", "All signatures on %q have been collected. The certificate of completion is available.")

	message.SetString(lang, "notification.expiration.title", "Signing request expired")
	message.SetString(lang, "notification.expiration.body", "The signing request %q expired before all signatures were collected.")
	message.SetString(lang, "notification.expiration.email_subject", "Expired: %s")
	message.SetString(lang, "notification.expiration.email_body", "The signing request %q expired before all signatures were collected.")

	message.SetString(lang, "notification.expiration_warning.title", "Signing request expiring soon")
	message.SetString(lang, "notification.expiration_warning.body", "The signing request %q expires in %d day(s).")
	message.SetString(lang, "notification.expiration_warning.email_subject", "Expiring soon: %s")
	message.SetString(lang, "notification.expiration_warning.email_body", "The signing request %q expires in %d day(s). Pending signers have been reminded.")
}
