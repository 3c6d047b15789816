// Package container wires the voting-core container builder behind the
// orchestrator's ContainerService port. The prepared state travels as opaque
// bytes inside the sealed session token.
package container

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	containerbuilder "agora/contexts/voting-core/container-builder"
)

type Service struct {
	Builder containerbuilder.Builder
}

func (s Service) Prepare(
	ctx context.Context,
	voteID string,
	userID string,
	optionNames []string,
	certDER []byte,
	now time.Time,
) ([]byte, []byte, error) {
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, nil, fmt.Errorf("parse signer certificate: %w", err)
	}
	signatureMethod := containerbuilder.SignatureMethodRSA
	if _, ok := cert.PublicKey.(*ecdsa.PublicKey); ok {
		signatureMethod = containerbuilder.SignatureMethodECDSA
	}
	ballot := ballotDocument(voteID, userID, optionNames, now)
	prepared, err := s.Builder.Prepare([]containerbuilder.Document{ballot}, cert, signatureMethod, now)
	if err != nil {
		return nil, nil, err
	}
	state, err := json.Marshal(prepared)
	if err != nil {
		return nil, nil, err
	}
	return state, prepared.SignableDigest(), nil
}

func (s Service) Finalize(ctx context.Context, preparedState []byte, signatureValue []byte) ([]byte, error) {
	var prepared containerbuilder.Prepared
	if err := json.Unmarshal(preparedState, &prepared); err != nil {
		return nil, fmt.Errorf("decode prepared container state: %w", err)
	}
	return s.Builder.Finalize(ctx, prepared, signatureValue)
}

// ballotDocument renders the voter's choices as the signed data entry.
func ballotDocument(voteID string, userID string, optionNames []string, now time.Time) containerbuilder.Document {
	content := fmt.Sprintf(
		"vote: %s\nvoter: %s\ncast at: %s\nchoices: %s\n",
		voteID,
		userID,
		now.UTC().Format(time.RFC3339),
		strings.Join(optionNames, ", "),
	)
	return containerbuilder.Document{
		Name:      "ballot.txt",
		MediaType: "text/plain",
		Content:   []byte(content),
	}
}
