// Package seal provides the authenticated-encryption envelope that carries
// in-flight signing session state between requests. The orchestrator stays
// stateless: losing or outliving the token is the only cancellation path.
package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// DefaultTTL bounds how long a sealed token stays redeemable.
const DefaultTTL = 5 * time.Minute

var (
	ErrTokenInvalid = errors.New("session token is invalid")
	ErrTokenExpired = errors.New("session token has expired")
)

type envelope struct {
	ExpiresAt time.Time       `json:"exp"`
	Payload   json.RawMessage `json:"payload"`
}

// Sealer encrypts small payloads with AES-GCM under a key derived from the
// configured secret.
type Sealer struct {
	aead cipher.AEAD
	ttl  time.Duration
}

// New derives the sealing key from secret. TTL <= 0 falls back to DefaultTTL.
func New(secret string, ttl time.Duration) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("seal secret is required")
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Sealer{aead: aead, ttl: ttl}, nil
}

// Seal encrypts payload together with an expiry claim and returns an opaque
// URL-safe token.
func (s *Sealer) Seal(payload any, now time.Time) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	plaintext, err := json.Marshal(envelope{
		ExpiresAt: now.UTC().Add(s.ttl),
		Payload:   raw,
	})
	if err != nil {
		return "", err
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := s.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts the token into payload and enforces the expiry claim.
func (s *Sealer) Open(token string, now time.Time, payload any) error {
	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ErrTokenInvalid
	}
	if len(sealed) < s.aead.NonceSize() {
		return ErrTokenInvalid
	}
	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return ErrTokenInvalid
	}
	var env envelope
	if err := json.Unmarshal(plaintext, &env); err != nil {
		return ErrTokenInvalid
	}
	if now.UTC().After(env.ExpiresAt) {
		return ErrTokenExpired
	}
	return json.Unmarshal(env.Payload, payload)
}
