package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/user"
	"github.com/evapdev/evap/modules/evaluation/importer"
	"github.com/evapdev/evap/pkg/eventbus"
	"github.com/evapdev/evap/pkg/mailer"
)

// CMSMailHandler mails a summary of every committed CMS feed run to all
// managers. Delivery failures are logged and never fail the import; the data
// is already committed when the mail goes out.
type CMSMailHandler struct {
	users user.Repository
	mail  mailer.EmailService
	log   *logrus.Logger
}

func NewCMSMailHandler(users user.Repository, mail mailer.EmailService, log *logrus.Logger) *CMSMailHandler {
	return &CMSMailHandler{users: users, mail: mail, log: log}
}

func (h *CMSMailHandler) Register(bus eventbus.EventBus) {
	bus.Subscribe(h.onCMSImported)
}

func (h *CMSMailHandler) onCMSImported(event CMSImportedEvent) {
	managers, err := h.users.Managers(context.Background())
	if err != nil {
		h.log.WithError(err).Error("cms import mail: failed to load managers")
		return
	}
	if len(managers) == 0 {
		h.log.Warn("cms import mail: no managers to notify")
		return
	}

	to := make([]mail.Address, 0, len(managers))
	for _, m := range managers {
		to = append(to, mail.Address{Name: m.FullName(), Address: m.Email()})
	}
	msg := &mailer.EmailMessage{
		To:      to,
		Subject: "CMS import finished",
		Body:    FormatCMSSummary(event.Statistics),
	}
	if err := h.mail.SendMessages(msg); err != nil {
		h.log.WithError(err).Error("cms import mail: delivery failed")
	}
}

// FormatCMSSummary renders the statistics of a feed run as the plain-text
// body of the manager notification.
func FormatCMSSummary(stats *importer.CMSStatistics) string {
	var b strings.Builder
	b.WriteString("The following changes were made by the CMS import.\n")

	writeSection(&b, "New Courses", stats.NewCourses)
	writeSection(&b, "New Evaluations", stats.NewEvaluations)
	writeSection(&b, "Updated Courses", stats.UpdatedCourses)
	writeSection(&b, "Updated Evaluations", stats.UpdatedEvaluations)
	writeSection(&b, "Attempted Changes", stats.AttemptedChanges)

	if len(stats.NameChanges) > 0 {
		b.WriteString("\nName Changes:\n")
		for _, change := range stats.NameChanges {
			fmt.Fprintf(&b, "- %s: '%s' is now '%s'\n", change.Email, change.OldName, change.NewName)
		}
	}
	writeSection(&b, "Warnings", stats.Warnings)
	return b.String()
}

func writeSection(b *strings.Builder, title string, entries []string) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, entry := range entries {
		fmt.Fprintf(b, "- %s\n", entry)
	}
}
