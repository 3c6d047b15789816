package queries

import (
	"context"
	"sort"
	"strings"
	"time"

	domainerrors "agora/contexts/voting-core/ballot-service/domain/errors"
	"agora/contexts/voting-core/ballot-service/ports"
)

// ContainerUseCase serves the signed archive downloads.
type ContainerUseCase struct {
	Votes       ports.VoteRepository
	Permissions ports.PermissionService
	Final       ports.FinalContainerBuilder
	Clock       ports.Clock
}

// UserContainer returns the caller's live signed container for the vote.
// Resolution goes by the owning account, so the voter never has to present
// their own identity hash.
func (uc ContainerUseCase) UserContainer(ctx context.Context, voteID string, userID string) ([]byte, error) {
	vote, err := uc.Votes.GetVote(ctx, strings.TrimSpace(voteID))
	if err != nil {
		return nil, err
	}
	if err := uc.Permissions.HasPermission(ctx, vote.ProposalID, userID, ports.PermissionRead); err != nil {
		return nil, err
	}
	containers, err := uc.Votes.ListUserContainers(ctx, vote.VoteID)
	if err != nil {
		return nil, err
	}
	owner := strings.TrimSpace(userID)
	for _, container := range containers {
		if container.DeletedAt == nil && container.UserID == owner {
			return container.Content, nil
		}
	}
	return nil, domainerrors.ErrContainerNotFound
}

// FinalContainer assembles the aggregate archive of every accepted signed
// ballot. Only available once the vote end time has passed.
func (uc ContainerUseCase) FinalContainer(ctx context.Context, voteID string, userID string) ([]byte, error) {
	vote, err := uc.Votes.GetVote(ctx, strings.TrimSpace(voteID))
	if err != nil {
		return nil, err
	}
	if err := uc.Permissions.HasPermission(ctx, vote.ProposalID, userID, ports.PermissionRead); err != nil {
		return nil, err
	}
	if !vote.Ended(uc.now()) {
		return nil, domainerrors.ErrVoteNotEnded
	}
	containers, err := uc.Votes.ListUserContainers(ctx, vote.VoteID)
	if err != nil {
		return nil, err
	}
	live := containers[:0]
	for _, container := range containers {
		if container.DeletedAt == nil {
			live = append(live, container)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].UserHash < live[j].UserHash })
	return uc.Final.BuildFinal(ctx, vote.VoteID, live)
}

func (uc ContainerUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
