package sending

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/pkg/logger"
)

// SMTPSender delivers through an SMTP submission server, upgrading with
// STARTTLS when offered.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	timeout  time.Duration
}

// NewSMTPSender creates an SMTP transport.
func NewSMTPSender(host string, port int, username, password string) *SMTPSender {
	if port == 0 {
		port = 587
	}
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		timeout:  30 * time.Second,
	}
}

// Send delivers msg in one SMTP transaction.
func (s *SMTPSender) Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	if s.host == "" {
		return nil, fmt.Errorf("smtp: %w", ErrNotConfigured)
	}
	messageID := fmt.Sprintf("%s@%s", uuid.New().String(), s.host)
	body, err := BuildMessage(msg, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.deliver(ctx, msg.FromEmail, msg.To, body); err != nil {
		return nil, fmt.Errorf("smtp send: %w", err)
	}
	logger.Debug("smtp delivered", "email", msg.To, "message_id", messageID)
	return &domain.SendResult{MessageID: messageID, Transport: domain.TransportSMTP, SentAt: time.Now()}, nil
}

func (s *SMTPSender) deliver(ctx context.Context, from, to string, body []byte) error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	dialer := &net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(s.timeout))
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("client: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if s.username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
				return fmt.Errorf("auth: %w", err)
			}
		}
	}

	if err := c.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("DATA close: %w", err)
	}
	return c.Quit()
}

// BuildMessage renders msg as an RFC 5322 message with a quoted-printable
// HTML body.
func BuildMessage(msg *domain.EmailMessage, messageID string) ([]byte, error) {
	from := (&mail.Address{Name: msg.FromName, Address: msg.FromEmail}).String()
	to := (&mail.Address{Address: msg.To}).String()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: <%s>\r\n", messageID)
	buf.WriteString("MIME-Version: 1.0\r\n")
	if msg.CampaignID != "" {
		fmt.Fprintf(&buf, "X-Campaign-ID: %s\r\n", msg.CampaignID)
	}
	if msg.SubscriberID != "" {
		fmt.Fprintf(&buf, "X-Subscriber-ID: %s\r\n", msg.SubscriberID)
	}
	buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")

	qp := quotedprintable.NewWriter(&buf)
	if _, err := qp.Write([]byte(msg.HTML)); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	buf.WriteString("\r\n")
	return buf.Bytes(), nil
}
