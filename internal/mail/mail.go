// ABOUTME: Outbound mail dispatch for sign-in tokens
// ABOUTME: Provides the Mailer interface and an SMTP implementation

package mail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"text/template"

	"github.com/yuin/goldmark"
)

// Mailer delivers a sign-in link to a user out of band.
type Mailer interface {
	SendSignInLink(ctx context.Context, to, url string) error
}

// Subject line of the sign-in email.
const subject = "Sync your Noted account"

// linkParams is passed as data when executing the email templates.
type linkParams struct {
	Email string
	URL   string
}

const textTemplate = `Hi {{.Email}},

Use this link to sync your Noted account:

{{.URL}}

If you did not request this email, you can ignore it.
`

// markdownTemplate is rendered to HTML for the alternative body part.
const markdownTemplate = `Hi {{.Email}},

[Sync your Noted account]({{.URL}})

If you did not request this email, you can ignore it.
`

var (
	textTmpl     = template.Must(template.New("text").Parse(textTemplate))
	markdownTmpl = template.Must(template.New("markdown").Parse(markdownTemplate))
)

// SMTPConfig holds the outbound mail transport settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends sign-in links through an SMTP relay.
type SMTPMailer struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

// NewSMTPMailer creates a mailer for the given transport settings.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPMailer{
		cfg:    cfg,
		logger: slog.Default().With("component", "mail"),
	}
}

// SendSignInLink emails the sign-in URL to the given address.
func (m *SMTPMailer) SendSignInLink(ctx context.Context, to, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := buildMessage(m.cfg.From, to, url)
	if err != nil {
		return fmt.Errorf("building message: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("sending mail via %s: %w", addr, err)
	}

	m.logger.Info("emailed sign-in link", "to", to)
	return nil
}

// buildMessage assembles a multipart/alternative message with a plain-text
// part and an HTML part rendered from the markdown template.
func buildMessage(from, to, url string) ([]byte, error) {
	params := linkParams{Email: to, URL: url}

	var text bytes.Buffer
	if err := textTmpl.Execute(&text, params); err != nil {
		return nil, fmt.Errorf("executing text template: %w", err)
	}

	var md bytes.Buffer
	if err := markdownTmpl.Execute(&md, params); err != nil {
		return nil, fmt.Errorf("executing markdown template: %w", err)
	}
	var html bytes.Buffer
	if err := goldmark.Convert(md.Bytes(), &html); err != nil {
		return nil, fmt.Errorf("rendering html part: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n", mw.Boundary())
	fmt.Fprintf(&buf, "\r\n")

	textPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := textPart.Write(text.Bytes()); err != nil {
		return nil, err
	}

	htmlPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := htmlPart.Write(html.Bytes()); err != nil {
		return nil, err
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LogMailer logs sign-in links instead of sending them. Used when no SMTP
// host is configured, which keeps local development usable without a relay.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a mailer that only logs.
func NewLogMailer() *LogMailer {
	return &LogMailer{logger: slog.Default().With("component", "mail")}
}

// SendSignInLink logs the sign-in URL instead of dispatching it.
func (m *LogMailer) SendSignInLink(_ context.Context, to, url string) error {
	m.logger.Info("smtp not configured, logging sign-in link", "to", to, "url", url)
	return nil
}

var _ Mailer = (*SMTPMailer)(nil)
var _ Mailer = (*LogMailer)(nil)
