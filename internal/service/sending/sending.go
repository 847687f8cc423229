// Package sending delivers fully rendered messages through a mail
// transport. Transports are selected by configuration: SMTP, AWS SES, or a
// log-only transport for development.
package sending

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/newsletter/internal/domain"
)

// ErrNotConfigured is returned by a transport missing required settings.
var ErrNotConfigured = errors.New("mail transport not configured")

// Sender sends a single email. Implementations must be safe for concurrent
// use.
type Sender interface {
	Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error)
}

// Options holds transport settings.
type Options struct {
	Transport domain.TransportType

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string

	SESAccessKey string
	SESSecretKey string
	SESRegion    string
}

// New returns the Sender selected by opts.Transport.
func New(ctx context.Context, opts Options) (Sender, error) {
	switch opts.Transport {
	case domain.TransportSMTP, "":
		return NewSMTPSender(opts.SMTPHost, opts.SMTPPort, opts.SMTPUsername, opts.SMTPPassword), nil
	case domain.TransportSES:
		return NewSESSender(ctx, opts.SESAccessKey, opts.SESSecretKey, opts.SESRegion)
	case domain.TransportLog:
		return NewLogSender(), nil
	}
	return nil, fmt.Errorf("unknown transport %q", opts.Transport)
}
