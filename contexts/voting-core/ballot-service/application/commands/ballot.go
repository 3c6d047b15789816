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

// CastBallotCommand replaces the voter's ballot group for one vote.
// UserHash is set by the signing flow for strong-identity votes and empty
// otherwise.
type CastBallotCommand struct {
	VoteID    string
	VoterID   string
	UserHash  string
	OptionIDs []string
}

// BallotUseCase owns ballot submission and auto-close evaluation.
type BallotUseCase struct {
	Votes       ports.VoteRepository
	Permissions ports.PermissionService
	Members     ports.MemberRegistry
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Logger      *slog.Logger
	// AutoCloseDisabled turns EvaluateAutoClose into a no-op deployment-wide,
	// regardless of per-vote rules.
	AutoCloseDisabled bool
}

// CastBallot validates the selection against the vote definition and replaces
// the voter's prior ballot group atomically. Casting twice with the same
// selection leaves exactly one live group.
func (uc BallotUseCase) CastBallot(ctx context.Context, cmd CastBallotCommand) (entities.BallotGroup, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.VoteID) == "" || strings.TrimSpace(cmd.VoterID) == "" {
		return entities.BallotGroup{}, domainerrors.ErrInvalidVoteInput
	}

	vote, err := uc.Votes.GetVote(ctx, strings.TrimSpace(cmd.VoteID))
	if err != nil {
		return entities.BallotGroup{}, err
	}
	if err := uc.Permissions.HasPermission(ctx, vote.ProposalID, cmd.VoterID, ports.PermissionVote); err != nil {
		return entities.BallotGroup{}, err
	}

	now := uc.now()
	if !vote.Open(now) {
		return entities.BallotGroup{}, domainerrors.ErrVoteClosed
	}
	if vote.AuthType == entities.AuthTypeStrong && strings.TrimSpace(cmd.UserHash) == "" {
		// Strong-identity ballots only enter through the signing flow which
		// supplies the verified identity hash.
		return entities.BallotGroup{}, domainerrors.ErrPermissionDenied
	}
	if err := validateSelection(vote, cmd.OptionIDs); err != nil {
		logger.Warn("ballot selection rejected",
			"event", "ballot_cast_validation_failed",
			"module", "voting-core/ballot-service",
			"layer", "application",
			"vote_id", vote.VoteID,
			"voter_id", cmd.VoterID,
			"error", err.Error(),
		)
		return entities.BallotGroup{}, err
	}

	groupID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.BallotGroup{}, err
	}
	group := entities.BallotGroup{
		VoteID:        vote.VoteID,
		VoterID:       strings.TrimSpace(cmd.VoterID),
		UserHash:      strings.TrimSpace(cmd.UserHash),
		OptionGroupID: groupID,
		OptionIDs:     cmd.OptionIDs,
		CreatedAt:     now,
	}
	if err := uc.Votes.ReplaceBallot(ctx, group); err != nil {
		return entities.BallotGroup{}, err
	}
	logger.Info("ballot cast",
		"event", "ballot_cast",
		"module", "voting-core/ballot-service",
		"layer", "application",
		"vote_id", vote.VoteID,
		"voter_id", group.VoterID,
		"option_group_id", group.OptionGroupID,
		"option_count", len(group.OptionIDs),
	)

	uc.EvaluateAutoClose(ctx, vote.VoteID)
	return group, nil
}

// SignedBallotCommand carries a completed signing flow into the ballot store:
// the verified selection plus the signed container proving it.
type SignedBallotCommand struct {
	VoteID    string
	VoterID   string
	UserHash  string
	OptionIDs []string
	Container []byte
}

// CastSignedBallot records the ballot group and its signed container in one
// repository transaction. A failed container write rolls the ballot back, so
// a counted ballot without its signed artifact never exists.
func (uc BallotUseCase) CastSignedBallot(ctx context.Context, cmd SignedBallotCommand) (entities.BallotGroup, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.VoteID) == "" ||
		strings.TrimSpace(cmd.VoterID) == "" ||
		strings.TrimSpace(cmd.UserHash) == "" ||
		len(cmd.Container) == 0 {
		return entities.BallotGroup{}, domainerrors.ErrInvalidVoteInput
	}

	vote, err := uc.Votes.GetVote(ctx, strings.TrimSpace(cmd.VoteID))
	if err != nil {
		return entities.BallotGroup{}, err
	}
	if err := uc.Permissions.HasPermission(ctx, vote.ProposalID, cmd.VoterID, ports.PermissionVote); err != nil {
		return entities.BallotGroup{}, err
	}

	now := uc.now()
	if !vote.Open(now) {
		return entities.BallotGroup{}, domainerrors.ErrVoteClosed
	}
	if err := validateSelection(vote, cmd.OptionIDs); err != nil {
		logger.Warn("ballot selection rejected",
			"event", "ballot_signed_cast_validation_failed",
			"module", "voting-core/ballot-service",
			"layer", "application",
			"vote_id", vote.VoteID,
			"voter_id", cmd.VoterID,
			"error", err.Error(),
		)
		return entities.BallotGroup{}, err
	}

	groupID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.BallotGroup{}, err
	}
	containerID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.BallotGroup{}, err
	}
	group := entities.BallotGroup{
		VoteID:        vote.VoteID,
		VoterID:       strings.TrimSpace(cmd.VoterID),
		UserHash:      strings.TrimSpace(cmd.UserHash),
		OptionGroupID: groupID,
		OptionIDs:     cmd.OptionIDs,
		CreatedAt:     now,
	}
	container := entities.UserContainer{
		ContainerID: containerID,
		VoteID:      vote.VoteID,
		UserID:      group.VoterID,
		UserHash:    group.UserHash,
		Content:     cmd.Container,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.Votes.ReplaceSignedBallot(ctx, group, container); err != nil {
		return entities.BallotGroup{}, err
	}
	logger.Info("signed ballot cast",
		"event", "ballot_signed_cast",
		"module", "voting-core/ballot-service",
		"layer", "application",
		"vote_id", vote.VoteID,
		"voter_id", group.VoterID,
		"option_group_id", group.OptionGroupID,
	)

	uc.EvaluateAutoClose(ctx, vote.VoteID)
	return group, nil
}

// EvaluateAutoClose checks the configured close conditions and sets the vote
// end time when one is satisfied. Idempotent; failures are logged and do not
// fail the triggering operation since a missed auto-close only leaves the
// vote open longer.
func (uc BallotUseCase) EvaluateAutoClose(ctx context.Context, voteID string) {
	if uc.AutoCloseDisabled {
		return
	}
	logger := application.ResolveLogger(uc.Logger)
	vote, err := uc.Votes.GetVote(ctx, voteID)
	if err != nil {
		logger.Warn("auto-close vote load failed",
			"event", "ballot_autoclose_load_failed",
			"module", "voting-core/ballot-service",
			"layer", "application",
			"vote_id", voteID,
			"error", err.Error(),
		)
		return
	}
	now := uc.now()
	if vote.Ended(now) {
		return
	}
	enabled := false
	for _, rule := range vote.AutoClose {
		if rule.Enabled && rule.Condition == entities.AutoCloseAllMembersVoted {
			enabled = true
		}
	}
	if !enabled || uc.Members == nil {
		return
	}

	members, err := uc.Members.CountMembers(ctx, vote.ProposalID)
	if err != nil {
		logger.Warn("auto-close member count failed",
			"event", "ballot_autoclose_members_failed",
			"module", "voting-core/ballot-service",
			"layer", "application",
			"vote_id", voteID,
			"error", err.Error(),
		)
		return
	}
	ballots, err := uc.Votes.ListLiveBallots(ctx, voteID)
	if err != nil {
		return
	}
	// A member has acted once they hold a live ballot or once their
	// delegation chain ends at someone who does. Delegating soft-deletes the
	// delegator's own ballots, so the edge set has to count too.
	acted := make(map[string]bool)
	for _, ballot := range ballots {
		acted[ballot.VoterID] = true
	}
	delegations, err := uc.Votes.ListLiveDelegations(ctx, voteID)
	if err != nil {
		return
	}
	edges := make(map[string]string, len(delegations))
	for _, delegation := range delegations {
		edges[delegation.ByUserID] = delegation.ToUserID
	}
	for by, terminal := range entities.ResolveTerminals(edges) {
		if terminal.Depth >= 0 && acted[terminal.ToUserID] {
			acted[by] = true
		}
	}
	if members <= 0 || len(acted) < members {
		return
	}
	if err := uc.Votes.CloseVote(ctx, voteID, now); err != nil {
		logger.Warn("auto-close persist failed",
			"event", "ballot_autoclose_persist_failed",
			"module", "voting-core/ballot-service",
			"layer", "application",
			"vote_id", voteID,
			"error", err.Error(),
		)
		return
	}
	logger.Info("vote auto-closed",
		"event", "ballot_vote_auto_closed",
		"module", "voting-core/ballot-service",
		"layer", "application",
		"vote_id", voteID,
		"voters", len(acted),
		"members", members,
	)
}

func (uc BallotUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func validateSelection(vote entities.Vote, optionIDs []string) error {
	if len(optionIDs) < vote.MinChoices || len(optionIDs) > vote.MaxChoices {
		return domainerrors.ErrInvalidOptionCount
	}
	seen := make(map[string]bool, len(optionIDs))
	for _, optionID := range optionIDs {
		option, ok := vote.Option(optionID)
		if !ok {
			return domainerrors.ErrOptionNotFound
		}
		if seen[optionID] {
			return domainerrors.ErrInvalidVoteInput
		}
		seen[optionID] = true
		if option.SingleSelectOnly() && len(optionIDs) > 1 {
			return domainerrors.ErrReservedOptionValue
		}
	}
	return nil
}
