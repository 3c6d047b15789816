package httpserver

import (
	"fmt"
	"net/http"

	containerbuilder "agora/contexts/voting-core/container-builder"

	"github.com/dustin/go-humanize"
)

// Container downloads return the raw signed archive, not JSON.

func (s *Server) handleUserContainer(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	voteID := r.PathValue("vote_id")
	content, err := s.ballots.Handler.UserContainerHandler(r.Context(), voteID, userID)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	s.writeContainer(w, fmt.Sprintf("ballot-%s.asice", voteID), content)
	s.logger.Info("user container downloaded",
		"event", "http_user_container_downloaded",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"vote_id", voteID,
		"size", humanize.Bytes(uint64(len(content))),
	)
}

func (s *Server) handleFinalContainer(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	voteID := r.PathValue("vote_id")
	content, err := s.ballots.Handler.FinalContainerHandler(r.Context(), voteID, userID)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	s.writeContainer(w, fmt.Sprintf("vote-%s.asice", voteID), content)
	s.logger.Info("final container downloaded",
		"event", "http_final_container_downloaded",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"vote_id", voteID,
		"size", humanize.Bytes(uint64(len(content))),
	)
}

func (s *Server) writeContainer(w http.ResponseWriter, filename string, content []byte) {
	w.Header().Set("Content-Type", containerbuilder.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}
