// Package tracking issues signed open and click URLs for outbound mail and
// records the events when those URLs are hit.
package tracking

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Verification is the result of checking a token.
type Verification struct {
	Data    string `json:"data"`
	Valid   bool   `json:"valid"`
	Expired bool   `json:"expired"`
}

// Claims are the identifiers carried by a tracking token.
type Claims struct {
	CampaignID   string `json:"campaignId"`
	SubscriberID string `json:"subscriberId"`
	LinkID       string `json:"linkId"`
	Valid        bool   `json:"valid"`
	Expired      bool   `json:"expired"`
}

// Signer produces and verifies tokens of the form
// base64url(data:expiresAtMillis).hex(hmacSHA256(data:expiresAtMillis)).
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a signer keyed by secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

func (s *Signer) sign(payload string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// GenerateToken signs data with an expiry.
func (s *Signer) GenerateToken(data string, expiresAt time.Time) string {
	payload := data + ":" + strconv.FormatInt(expiresAt.UnixMilli(), 10)
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + s.sign(payload)
}

// VerifyToken checks the signature and expiry. A bad signature yields an
// empty, invalid, unexpired result; an expired token keeps its data.
func (s *Signer) VerifyToken(token string) Verification {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return Verification{}
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Verification{}
	}
	payload := string(raw)
	if !hmac.Equal([]byte(s.sign(payload)), []byte(sig)) {
		return Verification{}
	}

	idx := strings.LastIndex(payload, ":")
	if idx < 0 {
		return Verification{}
	}
	data := payload[:idx]
	expiresAt, err := strconv.ParseInt(payload[idx+1:], 10, 64)
	if err != nil {
		return Verification{}
	}
	if s.now().UnixMilli() > expiresAt {
		return Verification{Data: data, Expired: true}
	}
	return Verification{Data: data, Valid: true}
}

func (s *Signer) trackingToken(campaignID, subscriberID, linkID string, ttlDays int) string {
	if ttlDays <= 0 {
		ttlDays = 30
	}
	data := fmt.Sprintf("%s:%s:%s", campaignID, subscriberID, linkID)
	return s.GenerateToken(data, s.now().Add(time.Duration(ttlDays)*24*time.Hour))
}

// CreateTrackingURL returns baseURL/track/<token> for a click on linkID.
func (s *Signer) CreateTrackingURL(baseURL, campaignID, subscriberID, linkID string, ttlDays int) string {
	return strings.TrimRight(baseURL, "/") + "/track/" + s.trackingToken(campaignID, subscriberID, linkID, ttlDays)
}

// CreateOpenURL returns baseURL/track/open/<token> for the open pixel.
func (s *Signer) CreateOpenURL(baseURL, campaignID, subscriberID string, ttlDays int) string {
	return strings.TrimRight(baseURL, "/") + "/track/open/" + s.trackingToken(campaignID, subscriberID, "", ttlDays)
}

// ParseTrackingToken verifies token and splits its campaign, subscriber
// and link identifiers.
func (s *Signer) ParseTrackingToken(token string) Claims {
	v := s.VerifyToken(token)
	if !v.Valid {
		return Claims{Expired: v.Expired}
	}
	parts := strings.SplitN(v.Data, ":", 3)
	if len(parts) != 3 {
		return Claims{}
	}
	return Claims{
		CampaignID:   parts[0],
		SubscriberID: parts[1],
		LinkID:       parts[2],
		Valid:        true,
	}
}

// LinkID derives the stable identifier of a destination URL. The click
// handler refuses to redirect to a URL whose LinkID differs from the token.
func LinkID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:6])
}
