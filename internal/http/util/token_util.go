package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

var (
	ErrInvalidToken  = errors.New("invalid webhook token")
	ErrMissingSecret = errors.New("webhook secret is not configured")
)

const webhookTokenLabel = "telegram-webhook"

// WebhookSigner derives the path token Telegram must present on webhook
// calls, so the endpoint URL cannot be guessed from the bot's public data.
type WebhookSigner struct {
	secret []byte
}

// NewWebhookSigner returns a signer keyed by secret.
func NewWebhookSigner(secret []byte) *WebhookSigner {
	return &WebhookSigner{secret: secret}
}

// Token returns the URL-safe token for the webhook path.
func (s *WebhookSigner) Token() (string, error) {
	if len(s.secret) == 0 {
		return "", ErrMissingSecret
	}
	sig := s.sign()
	return base64.RawURLEncoding.EncodeToString(sig[:16]), nil
}

// Validate checks a token taken from a request path.
func (s *WebhookSigner) Validate(token string) error {
	if len(s.secret) == 0 {
		return ErrMissingSecret
	}

	provided, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(provided) != 16 {
		return ErrInvalidToken
	}

	expected := s.sign()
	if !hmac.Equal(provided, expected[:16]) {
		return ErrInvalidToken
	}
	return nil
}

func (s *WebhookSigner) sign() []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(webhookTokenLabel))
	return mac.Sum(nil)
}
