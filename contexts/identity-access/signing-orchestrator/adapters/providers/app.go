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

// AppProvider is the app-based asynchronous signing service client, keyed by
// personal id and country code.
type AppProvider struct {
	BaseURL string
	Client  *http.Client
}

type appCertificateResponse struct {
	Result string `json:"result"`
	Cert   struct {
		Value string `json:"value"`
	} `json:"cert"`
}

type appSignatureRequest struct {
	Hash     string `json:"hash"`
	HashType string `json:"hashType"`
}

type appSignatureResponse struct {
	SessionID        string `json:"sessionID"`
	VerificationCode string `json:"verificationCode"`
}

type appSessionResponse struct {
	State  string `json:"state"`
	Result struct {
		EndResult string `json:"endResult"`
	} `json:"result"`
	Signature struct {
		Value string `json:"value"`
	} `json:"signature"`
}

func (p AppProvider) identityPath(identity entities.Identity) string {
	return fmt.Sprintf("%s/etsi/PNO%s-%s",
		p.BaseURL,
		url.PathEscape(identity.CountryCode),
		url.PathEscape(identity.PersonalID),
	)
}

func (p AppProvider) Certificate(ctx context.Context, identity entities.Identity) ([]byte, error) {
	var resp appCertificateResponse
	if err := postJSON(ctx, p.Client, p.identityPath(identity)+"/certificatechoice", struct{}{}, &resp); err != nil {
		return nil, err
	}
	if resp.Result != "OK" {
		return nil, mapProviderCode(resp.Result)
	}
	certDER, err := base64.StdEncoding.DecodeString(resp.Cert.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed certificate", domainerrors.ErrProviderUnknown)
	}
	return certDER, nil
}

func (p AppProvider) Start(ctx context.Context, identity entities.Identity, digest []byte) (ports.Challenge, error) {
	var resp appSignatureResponse
	err := postJSON(ctx, p.Client, p.identityPath(identity)+"/signature", appSignatureRequest{
		Hash:     base64.StdEncoding.EncodeToString(digest),
		HashType: "SHA256",
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

func (p AppProvider) Poll(ctx context.Context, sessionRef string, wait time.Duration) (ports.PollResult, error) {
	endpoint := fmt.Sprintf("%s/session/%s?timeoutMs=%d",
		p.BaseURL, url.PathEscape(sessionRef), wait.Milliseconds())

	ctx, cancel := context.WithTimeout(ctx, wait+2*time.Second)
	defer cancel()

	var resp appSessionResponse
	if err := getJSON(ctx, p.Client, endpoint, &resp); err != nil {
		return ports.PollResult{}, err
	}
	if resp.State == "RUNNING" {
		return ports.PollResult{State: ports.PollRunning}, nil
	}
	if resp.State != "COMPLETE" {
		return ports.PollResult{}, fmt.Errorf("%w: state %q", domainerrors.ErrProviderUnknown, resp.State)
	}
	if resp.Result.EndResult != "OK" {
		return ports.PollResult{}, mapProviderCode(resp.Result.EndResult)
	}
	signature, err := base64.StdEncoding.DecodeString(resp.Signature.Value)
	if err != nil || len(signature) == 0 {
		return ports.PollResult{}, fmt.Errorf("%w: malformed signature", domainerrors.ErrProviderUnknown)
	}
	return ports.PollResult{State: ports.PollSigned, Signature: signature}, nil
}
