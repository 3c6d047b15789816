package ports

import (
	"context"
	"time"

	"agora/contexts/voting-core/ballot-service/domain/entities"
	"agora/internal/shared/events"
	"agora/internal/shared/outbox"
)

type VoteRepository interface {
	SaveVote(ctx context.Context, vote entities.Vote) error
	GetVote(ctx context.Context, voteID string) (entities.Vote, error)
	// ListOpenVotes returns every non-deleted vote in the open status,
	// including ones whose deadline already passed. The sweeper decides.
	ListOpenVotes(ctx context.Context) ([]entities.Vote, error)
	// CloseVote sets the vote end time if not already set to an earlier
	// instant. Idempotent.
	CloseVote(ctx context.Context, voteID string, endsAt time.Time) error

	// ReplaceBallot atomically soft-deletes the voter's prior ballot rows,
	// inserts the new group, revokes the voter's outgoing delegation and
	// appends the activity entry. Nothing is visible half-written.
	ReplaceBallot(ctx context.Context, group entities.BallotGroup) error
	ListLiveBallots(ctx context.Context, voteID string) ([]entities.Ballot, error)

	// SaveDelegation upserts the live edge for (vote, byUser). The cycle
	// check runs atomically with the write; a rejected edge leaves the edge
	// set unchanged and returns ErrDelegationCycle. The delegator's own live
	// ballot rows are soft-deleted in the same transaction.
	SaveDelegation(ctx context.Context, delegation entities.VoteDelegation) (entities.VoteDelegation, error)
	RevokeDelegation(ctx context.Context, voteID string, byUserID string, revokedAt time.Time) error
	ListLiveDelegations(ctx context.Context, voteID string) ([]entities.VoteDelegation, error)
	// DelegationGraphVersion changes whenever the live edge set for the vote
	// changes; used to memoize chain resolution.
	DelegationGraphVersion(ctx context.Context, voteID string) (int64, error)

	// ReplaceUserContainer supersedes any live container for the same
	// (vote, userHash) key.
	ReplaceUserContainer(ctx context.Context, container entities.UserContainer) error
	// ReplaceSignedBallot writes the ballot group and the signed container
	// for the same identity in one transaction. Either both land or the vote
	// is left untouched; a counted ballot without its signed artifact never
	// becomes visible.
	ReplaceSignedBallot(ctx context.Context, group entities.BallotGroup, container entities.UserContainer) error
	GetUserContainer(ctx context.Context, voteID string, userHash string) (entities.UserContainer, bool, error)
	ListUserContainers(ctx context.Context, voteID string) ([]entities.UserContainer, error)
}

// FinalContainerBuilder assembles the aggregate signed archive for a closed
// vote from the individually signed per-user containers.
type FinalContainerBuilder interface {
	BuildFinal(ctx context.Context, voteID string, containers []entities.UserContainer) ([]byte, error)
}

// PermissionLevel mirrors the membership service's access levels.
type PermissionLevel string

const (
	PermissionRead  PermissionLevel = "read"
	PermissionVote  PermissionLevel = "vote"
	PermissionAdmin PermissionLevel = "admin"
)

// PermissionService is the external membership/permission collaborator.
// Consulted before any mutation; not reimplemented here.
type PermissionService interface {
	HasPermission(ctx context.Context, proposalID string, userID string, level PermissionLevel) error
}

// MemberRegistry exposes the member population auto-close conditions are
// evaluated against.
type MemberRegistry interface {
	CountMembers(ctx context.Context, proposalID string) (int, error)
}

// EventOutbox stores integration events next to the state change that caused
// them. EnqueueEvent is idempotent by message ID so sweepers can re-run.
type EventOutbox interface {
	EnqueueEvent(ctx context.Context, message outbox.Message) error
	ListPendingEvents(ctx context.Context, limit int) ([]outbox.Message, error)
	MarkEventPublished(ctx context.Context, messageID string) error
}

// EventPublisher delivers envelopes to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event events.Envelope) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
