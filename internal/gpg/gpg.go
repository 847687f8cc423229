// Package gpg encrypts outbound mail to subscribers' OpenPGP public keys.
package gpg

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"io"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"
	"golang.org/x/crypto/openpgp/packet"
)

// ErrNoKey is returned when an armored block holds no usable public key.
var ErrNoKey = errors.New("no public key found")

// KeyInfo describes the primary key of an armored public key block.
type KeyInfo struct {
	KeyID       string    `json:"keyId"`
	Fingerprint string    `json:"fingerprint"`
	UserIDs     []string  `json:"userIds"`
	Created     time.Time `json:"created"`
	Algorithm   string    `json:"algorithm"`
}

// Service performs OpenPGP operations. The zero value is ready to use.
type Service struct {
	config *packet.Config
}

// NewService returns a Service using the package defaults.
func NewService() *Service { return &Service{} }

func readKey(armored string) (*openpgp.Entity, error) {
	list, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armored))
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}
	if len(list) == 0 {
		return nil, ErrNoKey
	}
	return list[0], nil
}

// Encrypt returns message encrypted to the key, ASCII armored.
func (s *Service) Encrypt(message, armoredKey string) (string, error) {
	entity, err := readKey(armoredKey)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	aw, err := armor.Encode(&buf, "PGP MESSAGE", nil)
	if err != nil {
		return "", fmt.Errorf("armor: %w", err)
	}
	pw, err := openpgp.Encrypt(aw, []*openpgp.Entity{entity}, nil, nil, s.config)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	if _, err := io.WriteString(pw, message); err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	if err := pw.Close(); err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	if err := aw.Close(); err != nil {
		return "", fmt.Errorf("armor: %w", err)
	}
	return buf.String(), nil
}

// EncryptHTML encrypts htmlContent and wraps the armored text in a small
// HTML notice so mail clients without PGP support still show something.
func (s *Service) EncryptHTML(htmlContent, armoredKey string) (string, error) {
	armored, err := s.Encrypt(htmlContent, armoredKey)
	if err != nil {
		return "", err
	}
	return `<html>
<body>
<p>This message is encrypted with PGP/GPG.</p>
<p>Please use your private key to decrypt the content below:</p>
<pre style="background: #f4f4f4; padding: 10px; overflow-x: auto;">
` + html.EscapeString(armored) + `</pre>
</body>
</html>
`, nil
}

// ValidatePublicKey reports whether armoredKey parses as a public key that
// can be encrypted to.
func (s *Service) ValidatePublicKey(armoredKey string) bool {
	entity, err := readKey(armoredKey)
	if err != nil {
		return false
	}
	_, ok := entity.EncryptionKey(time.Now())
	return ok
}

// KeyInfo describes the first key in armoredKey.
func (s *Service) KeyInfo(armoredKey string) (*KeyInfo, error) {
	entity, err := readKey(armoredKey)
	if err != nil {
		return nil, err
	}
	pk := entity.PrimaryKey
	ids := make([]string, 0, len(entity.Identities))
	for name := range entity.Identities {
		ids = append(ids, name)
	}
	sort.Strings(ids)
	return &KeyInfo{
		KeyID:       fmt.Sprintf("%016x", pk.KeyId),
		Fingerprint: hex.EncodeToString(pk.Fingerprint[:]),
		UserIDs:     ids,
		Created:     pk.CreationTime,
		Algorithm:   algorithmName(pk.PubKeyAlgo),
	}, nil
}

func algorithmName(a packet.PublicKeyAlgorithm) string {
	switch a {
	case packet.PubKeyAlgoRSA, packet.PubKeyAlgoRSAEncryptOnly, packet.PubKeyAlgoRSASignOnly:
		return "rsa"
	case packet.PubKeyAlgoDSA:
		return "dsa"
	case packet.PubKeyAlgoElGamal:
		return "elgamal"
	case packet.PubKeyAlgoECDH:
		return "ecdh"
	case packet.PubKeyAlgoECDSA:
		return "ecdsa"
	}
	return fmt.Sprintf("unknown(%d)", a)
}
