package services

import (
	"context"
	"fmt"
	"html"
	"strings"

	"bom-analytics-helper/config"
	"bom-analytics-helper/models"
	"bom-analytics-helper/utils"
)

// BackfillNotifier is told when a backfill run finishes.
type BackfillNotifier interface {
	BackfillCompleted(ctx context.Context, progress *models.BackfillProgress) error
}

// MailNotifier mails a completion summary to a fixed recipient list.
type MailNotifier struct {
	Recipients []string
	Send       func(to []string, subject, html string) error
}

// NewMailNotifier returns nil when mail is not configured or nobody should be
// told, which BackfillService treats as "no notification".
func NewMailNotifier(settings *config.Settings) *MailNotifier {
	if !settings.MailConfigured() {
		return nil
	}
	to := settings.NotifyRecipients()
	if len(to) == 0 {
		return nil
	}
	return &MailNotifier{Recipients: to, Send: config.SendMail}
}

func (n *MailNotifier) BackfillCompleted(_ context.Context, p *models.BackfillProgress) error {
	if n == nil || len(n.Recipients) == 0 || n.Send == nil || p == nil {
		return nil
	}
	subject := fmt.Sprintf("BOM analytics backfill completed (%s orders)", utils.FormatCount(p.Processed))

	var b strings.Builder
	b.WriteString("<p>The BOM analytics backfill has finished.</p><ul>")
	fmt.Fprintf(&b, "<li>Processed: %s of %s orders</li>", utils.FormatCount(p.Processed), utils.FormatCount(p.Total))
	fmt.Fprintf(&b, "<li>Errors: %s</li>", utils.FormatCount(p.Errors))
	if p.Started != nil {
		fmt.Fprintf(&b, "<li>Started: %s</li>", html.EscapeString(*p.Started))
	}
	if p.Completed != nil {
		fmt.Fprintf(&b, "<li>Completed: %s</li>", html.EscapeString(*p.Completed))
	}
	if p.RunID != "" {
		fmt.Fprintf(&b, "<li>Run: %s</li>", html.EscapeString(p.RunID))
	}
	b.WriteString("</ul>")

	return n.Send(n.Recipients, subject, b.String())
}
