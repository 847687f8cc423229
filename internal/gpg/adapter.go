package gpg

import (
	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/metrics"
	"github.com/ignite/newsletter/internal/pkg/logger"
)

// HTMLEncrypter is the part of Service the dispatch path needs.
type HTMLEncrypter interface {
	EncryptHTML(htmlContent, armoredKey string) (string, error)
}

// Adapter decides per recipient whether to encrypt and never fails a send.
type Adapter struct {
	enc HTMLEncrypter
}

// NewAdapter wraps enc.
func NewAdapter(enc HTMLEncrypter) *Adapter {
	return &Adapter{enc: enc}
}

// MaybeEncrypt returns the encrypted content and true when sub opted in and
// has a key. Otherwise, or if encryption fails, it returns content
// unchanged and false.
func (a *Adapter) MaybeEncrypt(content string, sub *domain.Subscriber) (string, bool) {
	if a == nil || a.enc == nil || sub == nil || !sub.CanEncrypt() {
		return content, false
	}
	out, err := a.enc.EncryptHTML(content, sub.GPGPublicKey)
	if err != nil {
		metrics.DispatchEncrypted.WithLabelValues("fallback").Inc()
		logger.Warn("gpg encryption failed, sending plaintext",
			"subscriber_email", sub.Email,
			"subscriber_id", sub.ID,
			"error", err,
		)
		return content, false
	}
	metrics.DispatchEncrypted.WithLabelValues("encrypted").Inc()
	return out, true
}
