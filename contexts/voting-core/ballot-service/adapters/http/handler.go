package httpadapter

import (
	"context"
	"log/slog"

	"agora/contexts/voting-core/ballot-service/application/commands"
	"agora/contexts/voting-core/ballot-service/application/queries"
	"agora/contexts/voting-core/ballot-service/domain/entities"
	httptransport "agora/contexts/voting-core/ballot-service/transport/http"
)

type Handler struct {
	Votes       commands.VoteUseCase
	Ballots     commands.BallotUseCase
	Delegations commands.DelegationUseCase
	Tally       *queries.TallyUseCase
	Containers  queries.ContainerUseCase
	Logger      *slog.Logger
}

func (h Handler) CreateVoteHandler(
	ctx context.Context,
	proposalID string,
	userID string,
	req httptransport.CreateVoteRequest,
) (httptransport.VoteResponse, error) {
	autoClose := make([]entities.AutoCloseRule, 0, len(req.AutoClose))
	for _, rule := range req.AutoClose {
		autoClose = append(autoClose, entities.AutoCloseRule{
			Condition: entities.AutoCloseCondition(rule.Condition),
			Enabled:   rule.Enabled,
		})
	}
	vote, err := h.Votes.CreateVote(ctx, commands.CreateVoteCommand{
		ProposalID:        proposalID,
		UserID:            userID,
		OptionValues:      req.Options,
		MinChoices:        req.MinChoices,
		MaxChoices:        req.MaxChoices,
		AuthType:          entities.AuthType(req.AuthType),
		DelegationAllowed: req.DelegationAllowed,
		EndsAt:            req.EndsAt,
		AutoClose:         autoClose,
	})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return voteResponse(vote), nil
}

func (h Handler) UpdateVoteHandler(
	ctx context.Context,
	voteID string,
	userID string,
	req httptransport.UpdateVoteRequest,
) (httptransport.VoteResponse, error) {
	vote, err := h.Votes.UpdateVote(ctx, commands.UpdateVoteCommand{
		VoteID:            voteID,
		UserID:            userID,
		EndsAt:            req.EndsAt,
		ReminderTime:      req.ReminderTime,
		MinChoices:        req.MinChoices,
		MaxChoices:        req.MaxChoices,
		DelegationAllowed: req.DelegationAllowed,
	})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return voteResponse(vote), nil
}

func (h Handler) GetVoteHandler(ctx context.Context, voteID string, userID string) (httptransport.VoteResponse, error) {
	vote, err := h.Votes.GetVote(ctx, voteID, userID)
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return voteResponse(vote), nil
}

func (h Handler) OpenVoteHandler(ctx context.Context, voteID string, userID string) (httptransport.VoteResponse, error) {
	vote, err := h.Votes.OpenVote(ctx, voteID, userID)
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return voteResponse(vote), nil
}

func (h Handler) CastBallotHandler(
	ctx context.Context,
	voteID string,
	userID string,
	req httptransport.CastBallotRequest,
) (httptransport.CastBallotResponse, error) {
	group, err := h.Ballots.CastBallot(ctx, commands.CastBallotCommand{
		VoteID:    voteID,
		VoterID:   userID,
		OptionIDs: req.OptionIDs,
	})
	if err != nil {
		return httptransport.CastBallotResponse{}, err
	}
	return httptransport.CastBallotResponse{
		VoteID:        group.VoteID,
		OptionGroupID: group.OptionGroupID,
	}, nil
}

func (h Handler) DelegateHandler(
	ctx context.Context,
	voteID string,
	userID string,
	req httptransport.DelegateRequest,
) (httptransport.DelegationResponse, error) {
	delegation, err := h.Delegations.Delegate(ctx, commands.DelegateCommand{
		VoteID:   voteID,
		ByUserID: userID,
		ToUserID: req.ToUserID,
	})
	if err != nil {
		return httptransport.DelegationResponse{}, err
	}
	return httptransport.DelegationResponse{
		VoteID:   delegation.VoteID,
		ByUserID: delegation.ByUserID,
		ToUserID: delegation.ToUserID,
	}, nil
}

func (h Handler) RevokeDelegationHandler(ctx context.Context, voteID string, userID string) error {
	return h.Delegations.RevokeDelegation(ctx, voteID, userID)
}

func (h Handler) VoteResultsHandler(ctx context.Context, voteID string, viewerID string) (httptransport.VoteResultsResponse, error) {
	results, err := h.Tally.VoteResults(ctx, voteID, viewerID)
	if err != nil {
		return httptransport.VoteResultsResponse{}, err
	}
	resp := httptransport.VoteResultsResponse{
		VoteID:         results.VoteID,
		VotersCount:    results.VotersCount,
		ViewerDelegate: results.ViewerDelegate,
	}
	for _, option := range results.Options {
		resp.Options = append(resp.Options, httptransport.OptionResultResponse{
			OptionID: option.OptionID,
			Value:    option.Value,
			Count:    option.Count,
			Percent:  option.Percent,
			Selected: option.Selected,
		})
	}
	return resp, nil
}

func (h Handler) UserContainerHandler(ctx context.Context, voteID string, userID string) ([]byte, error) {
	return h.Containers.UserContainer(ctx, voteID, userID)
}

func (h Handler) FinalContainerHandler(ctx context.Context, voteID string, userID string) ([]byte, error) {
	return h.Containers.FinalContainer(ctx, voteID, userID)
}

func voteResponse(vote entities.Vote) httptransport.VoteResponse {
	resp := httptransport.VoteResponse{
		VoteID:            vote.VoteID,
		ProposalID:        vote.ProposalID,
		AuthType:          string(vote.AuthType),
		MinChoices:        vote.MinChoices,
		MaxChoices:        vote.MaxChoices,
		DelegationAllowed: vote.DelegationAllowed,
		Status:            string(vote.Status),
		EndsAt:            vote.EndsAt,
		ReminderTime:      vote.ReminderTime,
	}
	for _, option := range vote.Options {
		resp.Options = append(resp.Options, httptransport.VoteOptionResponse{
			OptionID: option.OptionID,
			Value:    option.Value,
		})
	}
	return resp
}
