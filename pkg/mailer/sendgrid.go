package mailer

import (
	"fmt"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
)

type sendgridService struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	log        *logrus.Logger
}

var _ EmailService = (*sendgridService)(nil)

func NewSendgridService(key string, from mail.Address, subjPrefix string, log *logrus.Logger) EmailService {
	return &sendgridService{
		key:        key,
		from:       sgmail.NewEmail(from.Name, from.Address),
		subjPrefix: subjPrefix,
		log:        log,
	}
}

func (svc *sendgridService) SendMessages(messages ...*EmailMessage) error {
	for _, msg := range messages {
		if !msg.HasRecipients() || !msg.HasContent() {
			continue
		}
		if err := svc.send(msg); err != nil {
			return err
		}
	}
	return nil
}

func (svc *sendgridService) send(msg *EmailMessage) error {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail(to.Name, to.Address))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(sgmail.NewEmail(cc.Name, cc.Address))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(sgmail.NewEmail(bcc.Name, bcc.Address))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Body))

	resp, err := sendgrid.NewSendClient(svc.key).Send(m)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: unexpected status %d: %s", resp.StatusCode, resp.Body)
	}
	svc.log.WithField("subject", msg.Subject).Debug("mail sent")
	return nil
}
