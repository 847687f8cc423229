package sending

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/pkg/logger"
)

// LogSender records messages instead of delivering them.
type LogSender struct {
	mu   sync.Mutex
	sent []domain.EmailMessage
}

// NewLogSender creates a log-only transport.
func NewLogSender() *LogSender { return &LogSender{} }

func (s *LogSender) Send(_ context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	s.mu.Lock()
	s.sent = append(s.sent, *msg)
	s.mu.Unlock()

	id := uuid.New().String()
	logger.Info("email logged",
		"email", msg.To,
		"subject", msg.Subject,
		"campaign_id", msg.CampaignID,
		"encrypted", msg.Encrypted,
		"message_id", id,
	)
	return &domain.SendResult{MessageID: id, Transport: domain.TransportLog, SentAt: time.Now()}, nil
}

// Sent returns a copy of everything recorded so far.
func (s *LogSender) Sent() []domain.EmailMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.EmailMessage(nil), s.sent...)
}
