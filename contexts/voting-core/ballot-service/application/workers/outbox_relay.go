package workers

import (
	"context"
	"encoding/json"
	"log/slog"

	application "agora/contexts/voting-core/ballot-service/application"
	"agora/contexts/voting-core/ballot-service/ports"
	"agora/internal/shared/events"
)

type OutboxRelay struct {
	Outbox    ports.EventOutbox
	Publisher ports.EventPublisher
	Topic     string
	BatchSize int
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}
	topic := r.Topic
	if topic == "" {
		topic = "voting.events"
	}

	pending, err := r.Outbox.ListPendingEvents(ctx, limit)
	if err != nil {
		logger.Error("outbox list pending failed",
			"event", "ballot_outbox_list_failed",
			"module", "voting-core/ballot-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	for _, message := range pending {
		var envelope events.Envelope
		if err := json.Unmarshal(message.Payload, &envelope); err != nil {
			logger.Error("outbox payload decode failed",
				"event", "ballot_outbox_decode_failed",
				"module", "voting-core/ballot-service",
				"layer", "worker",
				"message_id", message.ID,
				"error", err.Error(),
			)
			return err
		}

		if err := r.Publisher.Publish(ctx, topic, envelope); err != nil {
			logger.Error("outbox publish failed",
				"event", "ballot_outbox_publish_failed",
				"module", "voting-core/ballot-service",
				"layer", "worker",
				"message_id", message.ID,
				"event_type", envelope.EventType,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkEventPublished(ctx, message.ID); err != nil {
			logger.Error("outbox mark published failed",
				"event", "ballot_outbox_mark_published_failed",
				"module", "voting-core/ballot-service",
				"layer", "worker",
				"message_id", message.ID,
				"error", err.Error(),
			)
			return err
		}
	}
	return nil
}
