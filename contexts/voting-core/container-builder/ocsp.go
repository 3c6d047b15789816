package containerbuilder

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/crypto/ocsp"
)

const defaultOCSPTimeout = 10 * time.Second

// HTTPOCSPSource fetches revocation proof from an OCSP responder.
type HTTPOCSPSource struct {
	ResponderURL string
	Issuer       *x509.Certificate
	Client       *http.Client
	Timeout      time.Duration
}

func (s HTTPOCSPSource) Fetch(ctx context.Context, cert *x509.Certificate) ([]byte, error) {
	if s.ResponderURL == "" {
		return nil, errors.New("ocsp responder url is not configured")
	}
	issuer := s.Issuer
	if issuer == nil {
		return nil, errors.New("ocsp issuer certificate is not configured")
	}
	request, err := ocsp.CreateRequest(cert, issuer, nil)
	if err != nil {
		return nil, fmt.Errorf("build ocsp request: %w", err)
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultOCSPTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.ResponderURL, bytes.NewReader(request))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/ocsp-request")
	httpReq.Header.Set("Accept", "application/ocsp-response")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ocsp responder request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ocsp responder returned status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	parsed, err := ocsp.ParseResponseForCert(raw, cert, issuer)
	if err != nil {
		return nil, fmt.Errorf("parse ocsp response: %w", err)
	}
	if parsed.Status != ocsp.Good {
		return nil, fmt.Errorf("certificate revocation status %d", parsed.Status)
	}
	return raw, nil
}
