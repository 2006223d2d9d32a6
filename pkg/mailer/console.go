package mailer

import (
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type consoleService struct {
	from       mail.Address
	subjPrefix string
	log        *logrus.Logger

	mu   sync.Mutex
	sent []EmailMessage
}

var _ EmailService = (*consoleService)(nil)

// NewConsoleService writes outgoing mail to the log instead of delivering it.
// Sent messages are recorded and can be inspected in tests.
func NewConsoleService(from mail.Address, subjPrefix string, log *logrus.Logger) *consoleService {
	return &consoleService{
		from:       from,
		subjPrefix: subjPrefix,
		log:        log,
	}
}

func (svc *consoleService) SendMessages(messages ...*EmailMessage) error {
	for _, msg := range messages {
		if !msg.HasRecipients() || !msg.HasContent() {
			continue
		}
		svc.log.Info(svc.format(msg))
		svc.mu.Lock()
		svc.sent = append(svc.sent, *msg)
		svc.mu.Unlock()
	}
	return nil
}

func (svc *consoleService) SentMessages() []EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	out := make([]EmailMessage, len(svc.sent))
	copy(out, svc.sent)
	return out
}

func (svc *consoleService) format(msg *EmailMessage) string {
	body := new(strings.Builder)
	_, _ = fmt.Fprintf(body, "From: %s\r\n", svc.from.String())
	_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(body, "Subject: %s\r\n", svc.subjPrefix+msg.Subject)
	_, _ = fmt.Fprintf(body, "To: %s\r\n", joinAddresses(msg.To))
	if len(msg.Cc) > 0 {
		_, _ = fmt.Fprintf(body, "CC: %s\r\n", joinAddresses(msg.Cc))
	}
	if len(msg.Bcc) > 0 {
		_, _ = fmt.Fprintf(body, "BCC: %s\r\n", joinAddresses(msg.Bcc))
	}
	_, _ = fmt.Fprint(body, "\r\n")
	_, _ = fmt.Fprint(body, msg.Body)
	return body.String()
}

func joinAddresses(addrs []mail.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}
