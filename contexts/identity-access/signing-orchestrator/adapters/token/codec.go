// Package token seals signing sessions into the encrypted bearer token the
// orchestrator hands the caller between requests.
package token

import (
	"errors"
	"time"

	"agora/contexts/identity-access/signing-orchestrator/domain/entities"
	domainerrors "agora/contexts/identity-access/signing-orchestrator/domain/errors"
	"agora/internal/shared/seal"
)

type Codec struct {
	sealer *seal.Sealer
}

func NewCodec(secret string, ttl time.Duration) (*Codec, error) {
	sealer, err := seal.New(secret, ttl)
	if err != nil {
		return nil, err
	}
	return &Codec{sealer: sealer}, nil
}

func (c *Codec) Seal(session entities.SigningSession, now time.Time) (string, error) {
	return c.sealer.Seal(session, now)
}

func (c *Codec) Open(token string, now time.Time) (entities.SigningSession, error) {
	var session entities.SigningSession
	if err := c.sealer.Open(token, now, &session); err != nil {
		switch {
		case errors.Is(err, seal.ErrTokenExpired):
			return entities.SigningSession{}, domainerrors.ErrSessionExpired
		default:
			return entities.SigningSession{}, domainerrors.ErrSessionInvalid
		}
	}
	return session, nil
}
