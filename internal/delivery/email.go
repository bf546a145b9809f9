package delivery

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"flulance/internal/models"

	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// mailDialer is the part of *gomail.Dialer the sender uses.
type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

var emailTemplate = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif">
  <h2>{{.Subject}}</h2>
  <p>{{.Body}}</p>
  {{if .Link}}<p><a href="{{.Link}}">Open in Flulance</a></p>{{end}}
</body>
</html>`))

type EmailSender struct {
	from   string
	dialer mailDialer
}

func NewEmailSender(cfg SMTPConfig) (*EmailSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.FromEmail == "" {
		return nil, fmt.Errorf("smtp from_email is required")
	}
	return &EmailSender{
		from:   formatFrom(cfg.FromName, cfg.FromEmail),
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}, nil
}

func formatFrom(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

func (s *EmailSender) Name() string { return "email" }

func (s *EmailSender) Send(ctx context.Context, contact models.DeliveryContact, msg Message) error {
	if contact.Email == nil || *contact.Email == "" {
		return ErrNoAddress
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var html strings.Builder
	if err := emailTemplate.Execute(&html, msg); err != nil {
		return fmt.Errorf("render email: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", *contact.Email)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", plainText(msg))
	m.AddAlternative("text/html", html.String())

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func plainText(msg Message) string {
	parts := []string{msg.Body}
	if msg.Link != "" {
		parts = append(parts, msg.Link)
	}
	return strings.Join(parts, "\n\n")
}
