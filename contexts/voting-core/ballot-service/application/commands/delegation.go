package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "agora/contexts/voting-core/ballot-service/application"
	"agora/contexts/voting-core/ballot-service/domain/entities"
	domainerrors "agora/contexts/voting-core/ballot-service/domain/errors"
	"agora/contexts/voting-core/ballot-service/ports"
)

type DelegateCommand struct {
	VoteID   string
	ByUserID string
	ToUserID string
}

// DelegationUseCase owns delegation edge writes. The cycle check itself runs
// inside the repository transaction so concurrent writes on the same vote
// cannot race it.
type DelegationUseCase struct {
	Votes       ports.VoteRepository
	Permissions ports.PermissionService
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Logger      *slog.Logger
}

func (uc DelegationUseCase) Delegate(ctx context.Context, cmd DelegateCommand) (entities.VoteDelegation, error) {
	logger := application.ResolveLogger(uc.Logger)
	byUserID := strings.TrimSpace(cmd.ByUserID)
	toUserID := strings.TrimSpace(cmd.ToUserID)
	if strings.TrimSpace(cmd.VoteID) == "" || byUserID == "" || toUserID == "" {
		return entities.VoteDelegation{}, domainerrors.ErrInvalidVoteInput
	}
	if byUserID == toUserID {
		return entities.VoteDelegation{}, domainerrors.ErrSelfDelegation
	}

	vote, err := uc.Votes.GetVote(ctx, strings.TrimSpace(cmd.VoteID))
	if err != nil {
		return entities.VoteDelegation{}, err
	}
	if err := uc.Permissions.HasPermission(ctx, vote.ProposalID, byUserID, ports.PermissionVote); err != nil {
		return entities.VoteDelegation{}, err
	}
	now := uc.now()
	if !vote.Open(now) {
		return entities.VoteDelegation{}, domainerrors.ErrVoteClosed
	}
	if !vote.DelegationAllowed {
		return entities.VoteDelegation{}, domainerrors.ErrDelegationNotAllowed
	}

	delegationID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.VoteDelegation{}, err
	}
	delegation, err := uc.Votes.SaveDelegation(ctx, entities.VoteDelegation{
		DelegationID: delegationID,
		VoteID:       vote.VoteID,
		ByUserID:     byUserID,
		ToUserID:     toUserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if err == domainerrors.ErrDelegationCycle {
			logger.Warn("delegation rejected: cycle",
				"event", "ballot_delegation_cycle_rejected",
				"module", "voting-core/ballot-service",
				"layer", "application",
				"vote_id", vote.VoteID,
				"by_user_id", byUserID,
				"to_user_id", toUserID,
			)
		}
		return entities.VoteDelegation{}, err
	}
	logger.Info("delegation created",
		"event", "ballot_delegation_created",
		"module", "voting-core/ballot-service",
		"layer", "application",
		"vote_id", vote.VoteID,
		"by_user_id", byUserID,
		"to_user_id", toUserID,
	)
	return delegation, nil
}

func (uc DelegationUseCase) RevokeDelegation(ctx context.Context, voteID string, byUserID string) error {
	logger := application.ResolveLogger(uc.Logger)
	vote, err := uc.Votes.GetVote(ctx, strings.TrimSpace(voteID))
	if err != nil {
		return err
	}
	now := uc.now()
	if !vote.Open(now) {
		return domainerrors.ErrVoteClosed
	}
	if err := uc.Votes.RevokeDelegation(ctx, vote.VoteID, strings.TrimSpace(byUserID), now); err != nil {
		return err
	}
	logger.Info("delegation revoked",
		"event", "ballot_delegation_revoked",
		"module", "voting-core/ballot-service",
		"layer", "application",
		"vote_id", vote.VoteID,
		"by_user_id", strings.TrimSpace(byUserID),
	)
	return nil
}

func (uc DelegationUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
