package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	signingdomainerrors "agora/contexts/identity-access/signing-orchestrator/domain/errors"
	signinghttp "agora/contexts/identity-access/signing-orchestrator/transport/http"
)

func (s *Server) handleInitSigning(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req signinghttp.InitSigningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSigningError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	voteID := r.PathValue("vote_id")
	resp, err := s.signing.Handler.InitSigningHandler(r.Context(), voteID, userID, req)
	if err != nil {
		writeSigningDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCompleteSigning(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}

	var req signinghttp.CompleteSigningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSigningError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.signing.Handler.CompleteSigningHandler(r.Context(), req)
	if err != nil {
		writeSigningDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePollSigning(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}

	var req signinghttp.PollSigningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSigningError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.signing.Handler.PollSigningHandler(r.Context(), req)
	if err != nil {
		writeSigningDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeSigningDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, signingdomainerrors.ErrInvalidSigningInput):
		writeSigningError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, signingdomainerrors.ErrVoteNotStrong),
		errors.Is(err, signingdomainerrors.ErrVoteClosed):
		writeSigningError(w, http.StatusConflict, "vote_state", err.Error())
	case errors.Is(err, signingdomainerrors.ErrSessionInvalid),
		errors.Is(err, signingdomainerrors.ErrSessionExpired):
		writeSigningError(w, http.StatusUnauthorized, "session_invalid", err.Error())
	case errors.Is(err, signingdomainerrors.ErrWrongFlowState):
		writeSigningError(w, http.StatusConflict, "wrong_flow_state", err.Error())
	case errors.Is(err, signingdomainerrors.ErrIdentityAlreadyBound),
		errors.Is(err, signingdomainerrors.ErrAccountAlreadyBound):
		writeSigningError(w, http.StatusConflict, "identity_binding_conflict", err.Error())
	case errors.Is(err, signingdomainerrors.ErrUserCancelled),
		errors.Is(err, signingdomainerrors.ErrPhoneUnreachable),
		errors.Is(err, signingdomainerrors.ErrCertificateSuspended),
		errors.Is(err, signingdomainerrors.ErrCertificateRevoked),
		errors.Is(err, signingdomainerrors.ErrCertificateExpired),
		errors.Is(err, signingdomainerrors.ErrDeliveryError),
		errors.Is(err, signingdomainerrors.ErrPollTimeout):
		writeSigningError(w, http.StatusUnprocessableEntity, "signing_failed", err.Error())
	case errors.Is(err, signingdomainerrors.ErrProviderUnknown):
		writeSigningError(w, http.StatusBadGateway, "provider_error", err.Error())
	default:
		writeSigningError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
