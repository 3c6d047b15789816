package providers

import (
	"context"
	"crypto/x509"
	"time"

	domainerrors "agora/contexts/identity-access/signing-orchestrator/domain/errors"
)

// CardValidator checks the caller-supplied smart-card certificate. Revocation
// is checked later at container finalization through the OCSP embed, which
// fails the build closed; here only structure and validity window gate the
// flow.
type CardValidator struct {
	Clock func() time.Time
}

func (v CardValidator) Validate(_ context.Context, certDER []byte) error {
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return domainerrors.ErrInvalidSigningInput
	}
	now := time.Now().UTC()
	if v.Clock != nil {
		now = v.Clock().UTC()
	}
	if now.After(cert.NotAfter) {
		return domainerrors.ErrCertificateExpired
	}
	if now.Before(cert.NotBefore) {
		return domainerrors.ErrCertificateSuspended
	}
	return nil
}
