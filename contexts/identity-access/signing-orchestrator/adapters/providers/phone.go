package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"agora/contexts/identity-access/signing-orchestrator/domain/entities"
	domainerrors "agora/contexts/identity-access/signing-orchestrator/domain/errors"
	"agora/contexts/identity-access/signing-orchestrator/ports"
)

// PhoneProvider is the SIM-based asynchronous signing service client.
type PhoneProvider struct {
	BaseURL string
	Client  *http.Client
}

type phoneCertificateRequest struct {
	PersonalID  string `json:"national_identity_number"`
	PhoneNumber string `json:"phone_number"`
}

type phoneCertificateResponse struct {
	Result      string `json:"result"`
	Certificate string `json:"cert"`
}

type phoneSignatureRequest struct {
	PersonalID  string `json:"national_identity_number"`
	PhoneNumber string `json:"phone_number"`
	Hash        string `json:"hash"`
	HashType    string `json:"hash_type"`
}

type phoneSignatureResponse struct {
	SessionID        string `json:"session_id"`
	VerificationCode string `json:"verification_code"`
}

type phoneSessionResponse struct {
	State     string `json:"state"`
	Result    string `json:"result"`
	Signature struct {
		Value string `json:"value"`
	} `json:"signature"`
}

func (p PhoneProvider) Certificate(ctx context.Context, identity entities.Identity) ([]byte, error) {
	var resp phoneCertificateResponse
	err := postJSON(ctx, p.Client, p.BaseURL+"/certificate", phoneCertificateRequest{
		PersonalID:  identity.PersonalID,
		PhoneNumber: identity.PhoneNumber,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Result != "OK" {
		return nil, mapProviderCode(resp.Result)
	}
	certDER, err := base64.StdEncoding.DecodeString(resp.Certificate)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed certificate", domainerrors.ErrProviderUnknown)
	}
	return certDER, nil
}

func (p PhoneProvider) Start(ctx context.Context, identity entities.Identity, digest []byte) (ports.Challenge, error) {
	var resp phoneSignatureResponse
	err := postJSON(ctx, p.Client, p.BaseURL+"/signature", phoneSignatureRequest{
		PersonalID:  identity.PersonalID,
		PhoneNumber: identity.PhoneNumber,
		Hash:        base64.StdEncoding.EncodeToString(digest),
		HashType:    "SHA256",
	}, &resp)
	if err != nil {
		return ports.Challenge{}, err
	}
	if resp.SessionID == "" {
		return ports.Challenge{}, domainerrors.ErrProviderUnknown
	}
	return ports.Challenge{
		SessionRef:       resp.SessionID,
		VerificationCode: resp.VerificationCode,
	}, nil
}

func (p PhoneProvider) Poll(ctx context.Context, sessionRef string, wait time.Duration) (ports.PollResult, error) {
	endpoint := fmt.Sprintf("%s/signature/session/%s?timeoutMs=%d",
		p.BaseURL, url.PathEscape(sessionRef), wait.Milliseconds())

	ctx, cancel := context.WithTimeout(ctx, wait+2*time.Second)
	defer cancel()

	var resp phoneSessionResponse
	if err := getJSON(ctx, p.Client, endpoint, &resp); err != nil {
		return ports.PollResult{}, err
	}
	if resp.State == "RUNNING" {
		return ports.PollResult{State: ports.PollRunning}, nil
	}
	if resp.State != "COMPLETE" {
		return ports.PollResult{}, fmt.Errorf("%w: state %q", domainerrors.ErrProviderUnknown, resp.State)
	}
	if resp.Result != "OK" {
		return ports.PollResult{}, mapProviderCode(resp.Result)
	}
	signature, err := base64.StdEncoding.DecodeString(resp.Signature.Value)
	if err != nil || len(signature) == 0 {
		return ports.PollResult{}, fmt.Errorf("%w: malformed signature", domainerrors.ErrProviderUnknown)
	}
	return ports.PollResult{State: ports.PollSigned, Signature: signature}, nil
}
