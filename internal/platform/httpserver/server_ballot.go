package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	ballotdomainerrors "agora/contexts/voting-core/ballot-service/domain/errors"
	ballothttp "agora/contexts/voting-core/ballot-service/transport/http"
)

func (s *Server) handleCreateVote(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req ballothttp.CreateVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBallotError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	proposalID := r.PathValue("proposal_id")
	resp, err := s.ballots.Handler.CreateVoteHandler(r.Context(), proposalID, userID, req)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetVote(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	voteID := r.PathValue("vote_id")
	resp, err := s.ballots.Handler.GetVoteHandler(r.Context(), voteID, userID)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateVote(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req ballothttp.UpdateVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBallotError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	voteID := r.PathValue("vote_id")
	resp, err := s.ballots.Handler.UpdateVoteHandler(r.Context(), voteID, userID, req)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOpenVote(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	voteID := r.PathValue("vote_id")
	resp, err := s.ballots.Handler.OpenVoteHandler(r.Context(), voteID, userID)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastBallot(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req ballothttp.CastBallotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBallotError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	voteID := r.PathValue("vote_id")
	resp, err := s.ballots.Handler.CastBallotHandler(r.Context(), voteID, userID, req)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDelegate(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req ballothttp.DelegateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBallotError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	voteID := r.PathValue("vote_id")
	resp, err := s.ballots.Handler.DelegateHandler(r.Context(), voteID, userID, req)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRevokeDelegation(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	voteID := r.PathValue("vote_id")
	if err := s.ballots.Handler.RevokeDelegationHandler(r.Context(), voteID, userID); err != nil {
		writeBallotDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVoteResults(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	voteID := r.PathValue("vote_id")
	resp, err := s.ballots.Handler.VoteResultsHandler(r.Context(), voteID, userID)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeBallotDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ballotdomainerrors.ErrVoteNotFound),
		errors.Is(err, ballotdomainerrors.ErrOptionNotFound),
		errors.Is(err, ballotdomainerrors.ErrDelegationNotFound),
		errors.Is(err, ballotdomainerrors.ErrContainerNotFound):
		writeBallotError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ballotdomainerrors.ErrInvalidVoteInput),
		errors.Is(err, ballotdomainerrors.ErrInvalidOptionCount),
		errors.Is(err, ballotdomainerrors.ErrReservedOptionPrefix),
		errors.Is(err, ballotdomainerrors.ErrReservedOptionValue),
		errors.Is(err, ballotdomainerrors.ErrOptionsTooSimilar),
		errors.Is(err, ballotdomainerrors.ErrMalformedDeadline):
		writeBallotError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, ballotdomainerrors.ErrVoteNotDraft),
		errors.Is(err, ballotdomainerrors.ErrVoteClosed),
		errors.Is(err, ballotdomainerrors.ErrVoteNotEnded):
		writeBallotError(w, http.StatusConflict, "vote_state", err.Error())
	case errors.Is(err, ballotdomainerrors.ErrDelegationCycle):
		writeBallotError(w, http.StatusConflict, "delegation_cycle", err.Error())
	case errors.Is(err, ballotdomainerrors.ErrSelfDelegation),
		errors.Is(err, ballotdomainerrors.ErrDelegationNotAllowed):
		writeBallotError(w, http.StatusUnprocessableEntity, "delegation_rejected", err.Error())
	case errors.Is(err, ballotdomainerrors.ErrPermissionDenied):
		writeBallotError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, ballotdomainerrors.ErrConflict):
		writeBallotError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeBallotError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
