package email

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"journal-backend/internal/config"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type EmailSender struct {
	config *config.Config
	logger *zap.Logger
	send   sendFunc
}

func NewEmailSender(cfg *config.Config, logger *zap.Logger) *EmailSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailSender{config: cfg, logger: logger, send: smtp.SendMail}
}

// Send delivers msg over SMTP. Without credentials the message is only logged.
func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("email: empty recipient")
	}
	if !s.config.SMTPEnabled() {
		s.logger.Info("SMTP credentials not set, skipping email",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
		)
		return nil
	}

	from := s.config.SMTP.Email
	host := s.config.SMTP.Host
	address := host + ":" + s.config.SMTP.Port
	auth := smtp.PlainAuth("", from, s.config.SMTP.Password, host)

	if err := s.send(address, auth, from, []string{msg.To}, s.compose(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *EmailSender) compose(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", encodeHeader(s.config.SMTP.FromName), s.config.SMTP.Email)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", encodeHeader(msg.Subject))
	b.WriteString("MIME-version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

// encodeHeader applies RFC 2047 encoding; plain ASCII passes through unchanged.
func encodeHeader(v string) string {
	return mime.QEncoding.Encode("UTF-8", sanitizeHeader(v))
}
