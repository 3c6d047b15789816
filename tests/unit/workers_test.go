package unit

import (
	"context"
	"testing"
	"time"

	ballotservice "agora/contexts/voting-core/ballot-service"
	"agora/contexts/voting-core/ballot-service/application/workers"
	httptransport "agora/contexts/voting-core/ballot-service/transport/http"
	"agora/internal/shared/events"
)

type capturingPublisher struct {
	topics    []string
	envelopes []events.Envelope
}

func (p *capturingPublisher) Publish(_ context.Context, topic string, envelope events.Envelope) error {
	p.topics = append(p.topics, topic)
	p.envelopes = append(p.envelopes, envelope)
	return nil
}

func TestSweeperEnqueuesCloseAndReminderOnce(t *testing.T) {
	module := ballotservice.NewInMemoryModule(nil, nil, nil)
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	module.Store.SetClock(func() time.Time { return base })

	endsAt := base.Add(time.Hour)
	reminderAt := base.Add(30 * time.Minute)
	created, err := module.Handler.CreateVoteHandler(context.Background(), "proposal-1", "admin-1", httptransport.CreateVoteRequest{
		Options:    []string{"Yes", "No"},
		MinChoices: 1,
		MaxChoices: 1,
		AuthType:   "weak",
		EndsAt:     &endsAt,
	})
	if err != nil {
		t.Fatalf("create vote failed: %v", err)
	}
	if _, err := module.Handler.UpdateVoteHandler(context.Background(), created.VoteID, "admin-1", httptransport.UpdateVoteRequest{
		ReminderTime: &reminderAt,
	}); err != nil {
		t.Fatalf("set reminder failed: %v", err)
	}
	if _, err := module.Handler.OpenVoteHandler(context.Background(), created.VoteID, "admin-1"); err != nil {
		t.Fatalf("open vote failed: %v", err)
	}

	sweeper := workers.Sweeper{
		Votes:   module.Store,
		Outbox:  module.Store,
		Ballots: module.Ballots,
		Clock:   module.Store,
	}

	// Before the reminder instant nothing is due.
	if err := sweeper.RunOnce(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	pending, err := module.Store.ListPendingEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("no events expected before reminder time, got %d", len(pending))
	}

	// Past the reminder instant, repeated sweeps enqueue the reminder once.
	module.Store.SetClock(func() time.Time { return base.Add(45 * time.Minute) })
	for i := 0; i < 3; i++ {
		if err := sweeper.RunOnce(context.Background()); err != nil {
			t.Fatalf("sweep failed: %v", err)
		}
	}
	pending, err = module.Store.ListPendingEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].EventType != "vote.reminder_due" {
		t.Fatalf("expected a single reminder event, got %+v", pending)
	}

	// Past the end instant the closed event joins it.
	module.Store.SetClock(func() time.Time { return base.Add(2 * time.Hour) })
	if err := sweeper.RunOnce(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	pending, err = module.Store.ListPendingEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	types := make(map[string]int)
	for _, message := range pending {
		types[message.EventType]++
	}
	if types["vote.reminder_due"] != 1 || types["vote.closed"] != 1 {
		t.Fatalf("expected one reminder and one closed event, got %v", types)
	}
}

func TestOutboxRelayPublishesAndMarks(t *testing.T) {
	module := ballotservice.NewInMemoryModule(nil, nil, nil)
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	module.Store.SetClock(func() time.Time { return base })

	endsAt := base.Add(time.Minute)
	created, err := module.Handler.CreateVoteHandler(context.Background(), "proposal-1", "admin-1", httptransport.CreateVoteRequest{
		Options:    []string{"Yes", "No"},
		MinChoices: 1,
		MaxChoices: 1,
		AuthType:   "weak",
		EndsAt:     &endsAt,
	})
	if err != nil {
		t.Fatalf("create vote failed: %v", err)
	}
	if _, err := module.Handler.OpenVoteHandler(context.Background(), created.VoteID, "admin-1"); err != nil {
		t.Fatalf("open vote failed: %v", err)
	}

	module.Store.SetClock(func() time.Time { return base.Add(time.Hour) })
	sweeper := workers.Sweeper{
		Votes:   module.Store,
		Outbox:  module.Store,
		Ballots: module.Ballots,
		Clock:   module.Store,
	}
	if err := sweeper.RunOnce(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	publisher := &capturingPublisher{}
	relay := workers.OutboxRelay{
		Outbox:    module.Store,
		Publisher: publisher,
	}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay failed: %v", err)
	}

	if len(publisher.envelopes) != 1 {
		t.Fatalf("expected one published event, got %d", len(publisher.envelopes))
	}
	if publisher.topics[0] != "voting.events" {
		t.Fatalf("default topic expected, got %q", publisher.topics[0])
	}
	envelope := publisher.envelopes[0]
	if envelope.EventType != "vote.closed" || envelope.EntityID != created.VoteID {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}

	pending, err := module.Store.ListPendingEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("published events must leave the pending set, got %d", len(pending))
	}

	// A second pass finds nothing to do.
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("idle relay pass failed: %v", err)
	}
	if len(publisher.envelopes) != 1 {
		t.Fatalf("idle pass must not republish, got %d", len(publisher.envelopes))
	}
}
