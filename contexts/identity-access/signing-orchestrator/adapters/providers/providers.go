// Package providers holds the thin clients for the external strong-identity
// signing services. Provider-specific failure codes are mapped onto the
// closed error taxonomy in domain/errors; anything unrecognized surfaces as
// ErrProviderUnknown.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	domainerrors "agora/contexts/identity-access/signing-orchestrator/domain/errors"
)

func mapProviderCode(code string) error {
	switch code {
	case "USER_CANCELLED", "USER_REFUSED":
		return domainerrors.ErrUserCancelled
	case "PHONE_ABSENT", "NOT_REACHABLE":
		return domainerrors.ErrPhoneUnreachable
	case "CERTIFICATE_SUSPENDED":
		return domainerrors.ErrCertificateSuspended
	case "CERTIFICATE_REVOKED", "DOCUMENT_UNUSABLE":
		return domainerrors.ErrCertificateRevoked
	case "CERTIFICATE_EXPIRED":
		return domainerrors.ErrCertificateExpired
	case "DELIVERY_ERROR", "SIM_ERROR", "SMS_SENDING_ERROR":
		return domainerrors.ErrDeliveryError
	case "TIMEOUT", "EXPIRED_TRANSACTION":
		return domainerrors.ErrPollTimeout
	default:
		return fmt.Errorf("%w: code %q", domainerrors.ErrProviderUnknown, code)
	}
}

func postJSON(ctx context.Context, client *http.Client, url string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON(client, req, out)
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return doJSON(client, req, out)
}

func doJSON(client *http.Client, req *http.Request, out any) error {
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrDeliveryError, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", domainerrors.ErrProviderUnknown, resp.StatusCode)
	}
	return json.Unmarshal(raw, out)
}
