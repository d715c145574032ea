package notification

import (
	"bytes"
	"fmt"
	"net/smtp"
	"strings"
	"text/template"
	"time"

	"github.com/smukkama/landslide-monitor/internal/logger"
	"github.com/smukkama/landslide-monitor/internal/protocol"
	"github.com/smukkama/landslide-monitor/internal/risk"
	"github.com/smukkama/landslide-monitor/pkg/config"
)

var alertTemplate = template.Must(template.New("alert").Funcs(template.FuncMap{
	"join": func(items []string) string { return strings.Join(items, ", ") },
}).Parse(`
Landslide Risk Alert
====================

Site: {{.Site}}
Risk Level: {{.Level}}
Severity: {{.Severity}}
Critical Factors: {{if .Factors}}{{join .Factors}}{{else}}none{{end}}
Reading Time: {{.ReadingTime}}
Alert ID: {{.ID}}

{{.Message}}

---
Landslide Monitoring System
`))

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier sends email notifications
type EmailNotifier struct {
	config *config.SMTPConfig
	send   SendFunc
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg *config.SMTPConfig) *EmailNotifier {
	return &EmailNotifier{config: cfg, send: smtp.SendMail}
}

// Configured reports whether SMTP credentials are present
func (e *EmailNotifier) Configured() bool {
	return e.config.Username != "" && e.config.Password != ""
}

// SendAlert emails an alert notification. Without SMTP credentials the
// message is only logged.
func (e *EmailNotifier) SendAlert(n *protocol.AlertNotification) error {
	subject := fmt.Sprintf("Landslide risk %s - %s", strings.ToUpper(n.Level.String()), n.Site)
	if n.Level == risk.High {
		subject = "🚨 " + subject
	}

	body, err := renderAlert(n)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return e.sendEmail(subject, body)
}

func renderAlert(n *protocol.AlertNotification) (string, error) {
	factors := make([]string, len(n.CriticalFactors))
	for i, f := range n.CriticalFactors {
		factors[i] = string(f)
	}

	var buf bytes.Buffer
	err := alertTemplate.Execute(&buf, map[string]any{
		"Site":        n.Site,
		"Level":       n.Level.String(),
		"Severity":    n.Severity,
		"Factors":     factors,
		"ReadingTime": n.ReadingTime.Format(time.RFC1123),
		"ID":          n.ID,
		"Message":     n.Message,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *EmailNotifier) sendEmail(subject, body string) error {
	log := logger.WithComponent("email")

	if !e.Configured() {
		log.Info().Str("subject", subject).Msg("SMTP not configured, skipping email")
		return nil
	}

	message := fmt.Sprintf("From: %s\r\n", e.config.From)
	message += fmt.Sprintf("To: %s\r\n", e.config.To)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	message += "\r\n"
	message += body

	auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	if err := e.send(addr, auth, e.config.From, []string{e.config.To}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Info().Str("subject", subject).Msg("email sent")
	return nil
}
