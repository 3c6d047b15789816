// Package gateway hands finished signing flows back to the voting core.
package gateway

import (
	"context"
	"time"

	ballotservice "agora/contexts/voting-core/ballot-service"
	"agora/contexts/voting-core/ballot-service/application/commands"
	ballotentities "agora/contexts/voting-core/ballot-service/domain/entities"
	ballotports "agora/contexts/voting-core/ballot-service/ports"

	"agora/contexts/identity-access/signing-orchestrator/ports"
)

// BallotGateway adapts the ballot-service module to the orchestrator's port.
// CastSigned performs the handover of a completed flow: one transactional
// write of the ballot group and its signed container, then auto-close
// evaluation.
type BallotGateway struct {
	Module ballotservice.Module
	Votes  ballotports.VoteRepository
	Clock  ballotports.Clock
}

func (g BallotGateway) GetVote(ctx context.Context, voteID string) (ports.VoteInfo, error) {
	vote, err := g.Votes.GetVote(ctx, voteID)
	if err != nil {
		return ports.VoteInfo{}, err
	}
	names := make(map[string]string, len(vote.Options))
	for _, option := range vote.Options {
		names[option.OptionID] = option.Value
	}
	return ports.VoteInfo{
		VoteID:      vote.VoteID,
		ProposalID:  vote.ProposalID,
		StrongAuth:  vote.AuthType == ballotentities.AuthTypeStrong,
		Open:        vote.Open(g.now()),
		OptionNames: names,
	}, nil
}

func (g BallotGateway) CastSigned(
	ctx context.Context,
	voteID string,
	userID string,
	userHash string,
	optionIDs []string,
	container []byte,
) error {
	_, err := g.Module.Ballots.CastSignedBallot(ctx, commands.SignedBallotCommand{
		VoteID:    voteID,
		VoterID:   userID,
		UserHash:  userHash,
		OptionIDs: optionIDs,
		Container: container,
	})
	return err
}

func (g BallotGateway) now() time.Time {
	if g.Clock != nil {
		return g.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
