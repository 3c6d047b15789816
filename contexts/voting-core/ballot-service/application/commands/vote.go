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

// reservedOptionPrefix marks option values the system injects itself; user
// supplied values may not collide with it.
const reservedOptionPrefix = "__"

// CreateVoteCommand is the write-model input for vote creation.
type CreateVoteCommand struct {
	ProposalID        string
	UserID            string
	OptionValues      []string
	MinChoices        int
	MaxChoices        int
	AuthType          entities.AuthType
	DelegationAllowed bool
	EndsAt            *time.Time
	AutoClose         []entities.AutoCloseRule
}

// UpdateVoteCommand carries the editable field set. Outside draft only the
// deadline and reminder survive validation.
type UpdateVoteCommand struct {
	VoteID       string
	UserID       string
	EndsAt       *time.Time
	ReminderTime *time.Time
	// Draft-only fields; ignored once the vote has left draft.
	MinChoices        *int
	MaxChoices        *int
	DelegationAllowed *bool
}

// VoteUseCase owns the vote definition lifecycle.
type VoteUseCase struct {
	Votes       ports.VoteRepository
	Permissions ports.PermissionService
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Logger      *slog.Logger
}

func (uc VoteUseCase) CreateVote(ctx context.Context, cmd CreateVoteCommand) (entities.Vote, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.ProposalID) == "" || strings.TrimSpace(cmd.UserID) == "" {
		return entities.Vote{}, domainerrors.ErrInvalidVoteInput
	}
	if err := uc.Permissions.HasPermission(ctx, cmd.ProposalID, cmd.UserID, ports.PermissionAdmin); err != nil {
		return entities.Vote{}, err
	}

	now := uc.now()
	if err := validateOptionValues(cmd.OptionValues); err != nil {
		logger.Warn("vote create validation failed",
			"event", "ballot_vote_create_validation_failed",
			"module", "voting-core/ballot-service",
			"layer", "application",
			"proposal_id", cmd.ProposalID,
			"error", err.Error(),
		)
		return entities.Vote{}, err
	}
	if err := validateChoiceBounds(cmd.MinChoices, cmd.MaxChoices, len(cmd.OptionValues)); err != nil {
		return entities.Vote{}, err
	}
	if cmd.AuthType != entities.AuthTypeWeak && cmd.AuthType != entities.AuthTypeStrong {
		return entities.Vote{}, domainerrors.ErrInvalidVoteInput
	}
	if cmd.EndsAt != nil && !cmd.EndsAt.After(now) {
		return entities.Vote{}, domainerrors.ErrMalformedDeadline
	}

	voteID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Vote{}, err
	}
	vote := entities.Vote{
		VoteID:            voteID,
		ProposalID:        strings.TrimSpace(cmd.ProposalID),
		AuthType:          cmd.AuthType,
		MinChoices:        cmd.MinChoices,
		MaxChoices:        cmd.MaxChoices,
		DelegationAllowed: cmd.DelegationAllowed,
		EndsAt:            cmd.EndsAt,
		AutoClose:         cmd.AutoClose,
		Status:            entities.VoteStatusDraft,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	for _, value := range cmd.OptionValues {
		optionID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return entities.Vote{}, err
		}
		vote.Options = append(vote.Options, entities.VoteOption{
			OptionID:  optionID,
			VoteID:    voteID,
			Value:     strings.TrimSpace(value),
			CreatedAt: now,
		})
	}
	if err := uc.Votes.SaveVote(ctx, vote); err != nil {
		return entities.Vote{}, err
	}
	logger.Info("vote created",
		"event", "ballot_vote_created",
		"module", "voting-core/ballot-service",
		"layer", "application",
		"vote_id", vote.VoteID,
		"proposal_id", vote.ProposalID,
		"auth_type", string(vote.AuthType),
		"option_count", len(vote.Options),
	)
	return vote, nil
}

// GetVote reads one vote definition for a member with read access.
func (uc VoteUseCase) GetVote(ctx context.Context, voteID string, userID string) (entities.Vote, error) {
	vote, err := uc.Votes.GetVote(ctx, strings.TrimSpace(voteID))
	if err != nil {
		return entities.Vote{}, err
	}
	if err := uc.Permissions.HasPermission(ctx, vote.ProposalID, userID, ports.PermissionRead); err != nil {
		return entities.Vote{}, err
	}
	return vote, nil
}

// OpenVote moves a draft vote into the open state. Called when the containing
// proposal leaves draft.
func (uc VoteUseCase) OpenVote(ctx context.Context, voteID string, userID string) (entities.Vote, error) {
	vote, err := uc.Votes.GetVote(ctx, strings.TrimSpace(voteID))
	if err != nil {
		return entities.Vote{}, err
	}
	if err := uc.Permissions.HasPermission(ctx, vote.ProposalID, userID, ports.PermissionAdmin); err != nil {
		return entities.Vote{}, err
	}
	if vote.Status != entities.VoteStatusDraft {
		return vote, nil
	}
	vote.Status = entities.VoteStatusOpen
	vote.UpdatedAt = uc.now()
	if err := uc.Votes.SaveVote(ctx, vote); err != nil {
		return entities.Vote{}, err
	}
	return vote, nil
}

func (uc VoteUseCase) UpdateVote(ctx context.Context, cmd UpdateVoteCommand) (entities.Vote, error) {
	logger := application.ResolveLogger(uc.Logger)
	vote, err := uc.Votes.GetVote(ctx, strings.TrimSpace(cmd.VoteID))
	if err != nil {
		return entities.Vote{}, err
	}
	if err := uc.Permissions.HasPermission(ctx, vote.ProposalID, cmd.UserID, ports.PermissionAdmin); err != nil {
		return entities.Vote{}, err
	}

	now := uc.now()
	draft := vote.Status == entities.VoteStatusDraft
	if !draft && (cmd.MinChoices != nil || cmd.MaxChoices != nil || cmd.DelegationAllowed != nil) {
		return entities.Vote{}, domainerrors.ErrVoteNotDraft
	}
	if cmd.EndsAt != nil {
		if !cmd.EndsAt.After(now) {
			return entities.Vote{}, domainerrors.ErrMalformedDeadline
		}
		vote.EndsAt = cmd.EndsAt
	}
	if cmd.ReminderTime != nil {
		vote.ReminderTime = cmd.ReminderTime
	}
	if draft {
		if cmd.MinChoices != nil {
			vote.MinChoices = *cmd.MinChoices
		}
		if cmd.MaxChoices != nil {
			vote.MaxChoices = *cmd.MaxChoices
		}
		if err := validateChoiceBounds(vote.MinChoices, vote.MaxChoices, len(vote.Options)); err != nil {
			return entities.Vote{}, err
		}
		if cmd.DelegationAllowed != nil {
			vote.DelegationAllowed = *cmd.DelegationAllowed
		}
	}
	vote.UpdatedAt = now
	if err := uc.Votes.SaveVote(ctx, vote); err != nil {
		return entities.Vote{}, err
	}
	logger.Info("vote updated",
		"event", "ballot_vote_updated",
		"module", "voting-core/ballot-service",
		"layer", "application",
		"vote_id", vote.VoteID,
		"draft", draft,
	)
	return vote, nil
}

func (uc VoteUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func validateOptionValues(values []string) error {
	if len(values) < 2 {
		return domainerrors.ErrInvalidVoteInput
	}
	seen := make(map[string]bool, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return domainerrors.ErrInvalidVoteInput
		}
		if strings.HasPrefix(trimmed, reservedOptionPrefix) {
			return domainerrors.ErrReservedOptionPrefix
		}
		normalized := strings.ToLower(strings.Join(strings.Fields(trimmed), " "))
		if seen[normalized] {
			return domainerrors.ErrOptionsTooSimilar
		}
		seen[normalized] = true
	}
	return nil
}

func validateChoiceBounds(minChoices int, maxChoices int, optionCount int) error {
	if minChoices < 1 || maxChoices < minChoices || maxChoices > optionCount {
		return domainerrors.ErrInvalidOptionCount
	}
	return nil
}
