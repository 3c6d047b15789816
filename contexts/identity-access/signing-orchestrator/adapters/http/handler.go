package httpadapter

import (
	"context"
	"encoding/base64"
	"log/slog"
	"time"

	"agora/contexts/identity-access/signing-orchestrator/application/commands"
	"agora/contexts/identity-access/signing-orchestrator/domain/entities"
	domainerrors "agora/contexts/identity-access/signing-orchestrator/domain/errors"
	httptransport "agora/contexts/identity-access/signing-orchestrator/transport/http"
)

type Handler struct {
	Signing commands.SigningUseCase
	Logger  *slog.Logger
}

func (h Handler) InitSigningHandler(
	ctx context.Context,
	voteID string,
	userID string,
	req httptransport.InitSigningRequest,
) (httptransport.SigningStatusResponse, error) {
	var certDER []byte
	if req.CertDER != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.CertDER)
		if err != nil {
			return httptransport.SigningStatusResponse{}, domainerrors.ErrInvalidSigningInput
		}
		certDER = decoded
	}
	status, err := h.Signing.InitSigning(ctx, commands.InitSigningCommand{
		VoteID:      voteID,
		UserID:      userID,
		Method:      entities.SigningMethod(req.Method),
		OptionIDs:   req.OptionIDs,
		CertDER:     certDER,
		PersonalID:  req.PersonalID,
		PhoneNumber: req.PhoneNumber,
		CountryCode: req.CountryCode,
	})
	if err != nil {
		return httptransport.SigningStatusResponse{}, err
	}
	return statusResponse(status), nil
}

func (h Handler) CompleteSigningHandler(
	ctx context.Context,
	req httptransport.CompleteSigningRequest,
) (httptransport.SigningStatusResponse, error) {
	signature, err := base64.StdEncoding.DecodeString(req.SignatureValue)
	if err != nil {
		return httptransport.SigningStatusResponse{}, domainerrors.ErrInvalidSigningInput
	}
	status, err := h.Signing.CompleteSigning(ctx, req.Token, signature)
	if err != nil {
		return httptransport.SigningStatusResponse{}, err
	}
	return statusResponse(status), nil
}

func (h Handler) PollSigningHandler(
	ctx context.Context,
	req httptransport.PollSigningRequest,
) (httptransport.SigningStatusResponse, error) {
	wait := time.Duration(req.TimeoutMs) * time.Millisecond
	status, err := h.Signing.PollSigning(ctx, req.Token, wait)
	if err != nil {
		return httptransport.SigningStatusResponse{}, err
	}
	return statusResponse(status), nil
}

func statusResponse(status commands.SigningStatus) httptransport.SigningStatusResponse {
	return httptransport.SigningStatusResponse{
		State:            string(status.State),
		Token:            status.Token,
		SignableHash:     status.SignableHash,
		VerificationCode: status.VerificationCode,
	}
}
