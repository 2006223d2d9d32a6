package mailer

import (
	"net/mail"
)

type EmailMessage struct {
	To      []mail.Address
	Cc      []mail.Address
	Bcc     []mail.Address
	Subject string
	Body    string // text/plain
}

func (m *EmailMessage) HasRecipients() bool {
	return len(m.To) > 0 || len(m.Cc) > 0 || len(m.Bcc) > 0
}

func (m *EmailMessage) HasContent() bool {
	return m.Body != ""
}

// EmailService is any service that can send emails.
type EmailService interface {
	SendMessages(messages ...*EmailMessage) error
}
