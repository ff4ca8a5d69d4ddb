package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.MustParse("pt-BR")

	message.SetString(lang, "notification.generic.title", "Notificação")
	message.SetString(lang, "notification.generic.body", "Você tem uma nova notificação de assinatura.")
	message.SetString(lang, "notification.generic.email_subject", "Notificação do Countersign")

	message.SetString(lang, "notification.signature_request.title", "Assinatura solicitada")
	message.SetString(lang, "notification.signature_request.body", "Sua assinatura foi solicitada em %q.")
	message.SetString(lang, "notification.signature_request.email_subject", "Assinatura solicitada: %s")
	message.SetString(lang, "notification.signature_request.email_body", "Sua assinatura foi solicitada em %q. Abra sua caixa de entrada para revisar e assinar.")

	message.SetString(lang, "notification.reminder.title", "Lembrete de assinatura")
	message.SetString(lang, "notification.reminder.body", "Lembrete: %q ainda aguarda sua assinatura.")
	message.SetString(lang, "notification.reminder.email_subject", "Lembrete: %s aguarda sua assinatura")
	message.SetString(lang, "notification.reminder.email_body", "Lembrete: %q ainda aguarda sua assinatura.")

	message.SetString(lang, "notification.escalation.title", "Solicitação de assinatura escalada")
	message.SetString(lang, "notification.escalation.body", "A solicitação de assinatura %q está parada e precisa de atenção.")
	message.SetString(lang, "notification.escalation.email_subject", "Escalação: %s")
	message.SetString(lang, "notification.escalation.email_body", "A solicitação de assinatura %q está parada e precisa de atenção.")

	message.SetString(lang, "notification.requester_escalation.title", "Sua solicitação de assinatura foi escalada")
	message.SetString(lang, "notification.requester_escalation.body", "Sua solicitação de assinatura %q está parada e foi escalada.")
	message.SetString(lang, "notification.requester_escalation.email_subject", "Escalação: %s")
	message.SetString(lang, "notification.requester_escalation.email_body", "Sua solicitação de assinatura %q está parada e foi escalada.")

	message.SetString(lang, "notification.completion.title", "Solicitação de assinatura concluída")
	message.SetString(lang, "notification.completion.body", "Todas as assinaturas de %q foram coletadas.")
	message.SetString(lang, "notification.completion.email_subject", "Concluída: %s")
	message.SetString(lang, "notification.completion.email_body", "Todas as assinaturas de %q foram coletadas. O certificado de conclusão está disponível.")

	message.SetString(lang, "notification.expiration.title", "Solicitação de assinatura expirada")
	message.SetString(lang, "notification.expiration.body", "A solicitação de assinatura %q expirou antes de todas as assinaturas serem coletadas.")
	message.SetString(lang, "notification.expiration.email_subject", "Expirada: %s")
	message.SetString(lang, "notification.expiration.email_body", "A solicitação de assinatura %q expirou antes de todas as assinaturas serem coletadas.")

	message.SetString(lang, "notification.expiration_warning.title", "Solicitação de assinatura expira em breve")
	message.SetString(lang, "notification.expiration_warning.body", "A solicitação de assinatura %q expira em %d dia(s).")
	message.SetString(lang, "notification.expiration_warning.email_subject", "Expira em breve: %s")
	message.SetString(lang, "notification.expiration_warning.email_body", "A solicitação de assinatura %q expira em %d dia(s). Os signatários pendentes foram lembrados.")
}
