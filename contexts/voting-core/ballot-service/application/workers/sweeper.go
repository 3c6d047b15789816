package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "agora/contexts/voting-core/ballot-service/application"
	"agora/contexts/voting-core/ballot-service/application/commands"
	"agora/contexts/voting-core/ballot-service/domain/entities"
	"agora/contexts/voting-core/ballot-service/ports"
	"agora/internal/shared/events"
	"agora/internal/shared/outbox"
)

// Sweeper walks every open vote on each pass: re-evaluates auto-close
// conditions (the member population can shrink without a cast), enqueues the
// closed event once a vote ends and the reminder event once its reminder
// instant passes. All enqueues are idempotent by message ID so repeated
// passes over the same vote are harmless.
type Sweeper struct {
	Votes   ports.VoteRepository
	Outbox  ports.EventOutbox
	Ballots commands.BallotUseCase
	Clock   ports.Clock
	Logger  *slog.Logger
}

func (s Sweeper) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(s.Logger)
	votes, err := s.Votes.ListOpenVotes(ctx)
	if err != nil {
		logger.Error("sweeper vote list failed",
			"event", "ballot_sweeper_list_failed",
			"module", "voting-core/ballot-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	now := time.Now().UTC()
	if s.Clock != nil {
		now = s.Clock.Now().UTC()
	}

	for _, vote := range votes {
		s.Ballots.EvaluateAutoClose(ctx, vote.VoteID)

		current, err := s.Votes.GetVote(ctx, vote.VoteID)
		if err != nil {
			logger.Warn("sweeper vote reload failed",
				"event", "ballot_sweeper_reload_failed",
				"module", "voting-core/ballot-service",
				"layer", "worker",
				"vote_id", vote.VoteID,
				"error", err.Error(),
			)
			continue
		}

		if current.Ended(now) {
			if err := s.enqueue(ctx, "vote.closed", current, now); err != nil {
				return err
			}
			continue
		}
		if current.ReminderTime != nil && !current.ReminderTime.After(now) {
			if err := s.enqueue(ctx, "vote.reminder_due", current, now); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s Sweeper) enqueue(ctx context.Context, eventType string, vote entities.Vote, now time.Time) error {
	logger := application.ResolveLogger(s.Logger)
	envelope := events.Envelope{
		EventID:        eventType + ":" + vote.VoteID,
		EventType:      eventType,
		SourceService:  "voting-core/ballot-service",
		OccurredAtUTC:  now,
		EntityType:     "vote",
		EntityID:       vote.VoteID,
		PayloadVersion: 1,
		Payload: map[string]any{
			"vote_id":     vote.VoteID,
			"proposal_id": vote.ProposalID,
		},
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	if err := s.Outbox.EnqueueEvent(ctx, outbox.Message{
		ID:        envelope.EventID,
		EventType: eventType,
		Payload:   payload,
		Status:    "pending",
	}); err != nil {
		logger.Error("sweeper enqueue failed",
			"event", "ballot_sweeper_enqueue_failed",
			"module", "voting-core/ballot-service",
			"layer", "worker",
			"vote_id", vote.VoteID,
			"event_type", eventType,
			"error", err.Error(),
		)
		return err
	}
	return nil
}
