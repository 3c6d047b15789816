package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"agora/contexts/voting-core/ballot-service/domain/entities"
	domainerrors "agora/contexts/voting-core/ballot-service/domain/errors"
	"agora/contexts/voting-core/ballot-service/ports"
	"agora/internal/shared/outbox"

	"github.com/google/uuid"
)

// Store is the in-memory adapter implementing every ballot-service port.
// The mutex scopes the delegation cycle check and the edge write into one
// critical section, mirroring the serializable transaction of the postgres
// adapter.
type Store struct {
	mu sync.RWMutex

	votes         map[string]entities.Vote
	ballots       map[string][]entities.Ballot // voteID -> rows
	delegations   map[string][]entities.VoteDelegation
	graphVersion  map[string]int64
	containers    map[string][]entities.UserContainer
	activity      map[string][]entities.ActivityEntry
	members       map[string]int  // proposalID -> member count
	deniedUsers   map[string]bool // userID -> deny all permissions
	outboxRows    []outbox.Message
	clockOverride func() time.Time
}

func NewStore(seed []entities.Vote) *Store {
	votes := make(map[string]entities.Vote, len(seed))
	for _, vote := range seed {
		votes[vote.VoteID] = vote
	}
	return &Store{
		votes:        votes,
		ballots:      make(map[string][]entities.Ballot),
		delegations:  make(map[string][]entities.VoteDelegation),
		graphVersion: make(map[string]int64),
		containers:   make(map[string][]entities.UserContainer),
		activity:     make(map[string][]entities.ActivityEntry),
		members:      make(map[string]int),
		deniedUsers:  make(map[string]bool),
	}
}

func (s *Store) SetMemberCount(proposalID string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[strings.TrimSpace(proposalID)] = count
}

func (s *Store) DenyUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deniedUsers[strings.TrimSpace(userID)] = true
}

func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clockOverride = now
}

func (s *Store) SaveVote(_ context.Context, vote entities.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes[vote.VoteID] = vote
	return nil
}

func (s *Store) GetVote(_ context.Context, voteID string) (entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vote, ok := s.votes[strings.TrimSpace(voteID)]
	if !ok || vote.DeletedAt != nil {
		return entities.Vote{}, domainerrors.ErrVoteNotFound
	}
	return vote, nil
}

func (s *Store) ListOpenVotes(_ context.Context) ([]entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var open []entities.Vote
	for _, vote := range s.votes {
		if vote.Status == entities.VoteStatusOpen && vote.DeletedAt == nil {
			open = append(open, vote)
		}
	}
	return open, nil
}

func (s *Store) CloseVote(_ context.Context, voteID string, endsAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	vote, ok := s.votes[voteID]
	if !ok {
		return domainerrors.ErrVoteNotFound
	}
	if vote.EndsAt != nil && !vote.EndsAt.After(endsAt) {
		return nil
	}
	vote.EndsAt = &endsAt
	vote.Status = entities.VoteStatusClosed
	vote.UpdatedAt = endsAt
	s.votes[voteID] = vote
	return nil
}

func (s *Store) ReplaceBallot(_ context.Context, group entities.BallotGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceBallotLocked(group)
	return nil
}

func (s *Store) replaceBallotLocked(group entities.BallotGroup) {
	now := group.CreatedAt
	voterKey := group.UserHash
	if voterKey == "" {
		voterKey = group.VoterID
	}
	rows := s.ballots[group.VoteID]
	for i := range rows {
		if rows[i].DeletedAt != nil {
			continue
		}
		if rows[i].VoterKey() == voterKey || rows[i].VoterID == group.VoterID {
			deleted := now
			rows[i].DeletedAt = &deleted
		}
	}
	for _, optionID := range group.OptionIDs {
		rows = append(rows, entities.Ballot{
			BallotID:      uuid.NewString(),
			VoteID:        group.VoteID,
			VoterID:       group.VoterID,
			OptionID:      optionID,
			OptionGroupID: group.OptionGroupID,
			UserHash:      group.UserHash,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	s.ballots[group.VoteID] = rows

	// Casting directly supersedes the voter's outgoing delegation.
	s.revokeDelegationLocked(group.VoteID, group.VoterID, now)

	s.activity[group.VoteID] = append(s.activity[group.VoteID], entities.ActivityEntry{
		ActivityID: uuid.NewString(),
		VoteID:     group.VoteID,
		ActorID:    group.VoterID,
		Action:     "ballot.cast",
		Detail:     group.OptionGroupID,
		CreatedAt:  now,
	})
}

func (s *Store) ListLiveBallots(_ context.Context, voteID string) ([]entities.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var live []entities.Ballot
	for _, ballot := range s.ballots[strings.TrimSpace(voteID)] {
		if ballot.Live() {
			live = append(live, ballot)
		}
	}
	return live, nil
}

func (s *Store) SaveDelegation(_ context.Context, delegation entities.VoteDelegation) (entities.VoteDelegation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	edges := make(map[string]string)
	for _, edge := range s.delegations[delegation.VoteID] {
		if edge.Live() && edge.ByUserID != delegation.ByUserID {
			edges[edge.ByUserID] = edge.ToUserID
		}
	}
	if entities.WouldCycle(edges, delegation.ByUserID, delegation.ToUserID) {
		return entities.VoteDelegation{}, domainerrors.ErrDelegationCycle
	}

	now := delegation.CreatedAt
	s.revokeDelegationLocked(delegation.VoteID, delegation.ByUserID, now)

	// Latest action wins: delegating supersedes the delegator's own ballot.
	rows := s.ballots[delegation.VoteID]
	for i := range rows {
		if rows[i].Live() && rows[i].VoterID == delegation.ByUserID {
			deleted := now
			rows[i].DeletedAt = &deleted
		}
	}
	s.ballots[delegation.VoteID] = rows

	s.delegations[delegation.VoteID] = append(s.delegations[delegation.VoteID], delegation)
	s.graphVersion[delegation.VoteID]++
	s.activity[delegation.VoteID] = append(s.activity[delegation.VoteID], entities.ActivityEntry{
		ActivityID: uuid.NewString(),
		VoteID:     delegation.VoteID,
		ActorID:    delegation.ByUserID,
		Action:     "delegation.created",
		Detail:     delegation.ToUserID,
		CreatedAt:  now,
	})
	return delegation, nil
}

func (s *Store) RevokeDelegation(_ context.Context, voteID string, byUserID string, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.revokeDelegationLocked(voteID, byUserID, revokedAt) {
		return domainerrors.ErrDelegationNotFound
	}
	s.activity[voteID] = append(s.activity[voteID], entities.ActivityEntry{
		ActivityID: uuid.NewString(),
		VoteID:     voteID,
		ActorID:    byUserID,
		Action:     "delegation.revoked",
		CreatedAt:  revokedAt,
	})
	return nil
}

func (s *Store) revokeDelegationLocked(voteID string, byUserID string, revokedAt time.Time) bool {
	revoked := false
	edges := s.delegations[voteID]
	for i := range edges {
		if edges[i].Live() && edges[i].ByUserID == byUserID {
			at := revokedAt
			edges[i].RevokedAt = &at
			edges[i].UpdatedAt = revokedAt
			revoked = true
		}
	}
	if revoked {
		s.delegations[voteID] = edges
		s.graphVersion[voteID]++
	}
	return revoked
}

func (s *Store) ListLiveDelegations(_ context.Context, voteID string) ([]entities.VoteDelegation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var live []entities.VoteDelegation
	for _, edge := range s.delegations[strings.TrimSpace(voteID)] {
		if edge.Live() {
			live = append(live, edge)
		}
	}
	return live, nil
}

func (s *Store) DelegationGraphVersion(_ context.Context, voteID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graphVersion[strings.TrimSpace(voteID)], nil
}

func (s *Store) ReplaceUserContainer(_ context.Context, container entities.UserContainer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceContainerLocked(container)
	return nil
}

// ReplaceSignedBallot applies the ballot swap and the container swap under one
// lock, matching the single transaction of the postgres adapter.
func (s *Store) ReplaceSignedBallot(_ context.Context, group entities.BallotGroup, container entities.UserContainer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceBallotLocked(group)
	s.replaceContainerLocked(container)
	return nil
}

func (s *Store) replaceContainerLocked(container entities.UserContainer) {
	rows := s.containers[container.VoteID]
	for i := range rows {
		if rows[i].DeletedAt == nil && rows[i].UserHash == container.UserHash {
			deleted := container.CreatedAt
			rows[i].DeletedAt = &deleted
		}
	}
	s.containers[container.VoteID] = append(rows, container)
}

func (s *Store) GetUserContainer(_ context.Context, voteID string, userHash string) (entities.UserContainer, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, container := range s.containers[strings.TrimSpace(voteID)] {
		if container.DeletedAt == nil && container.UserHash == strings.TrimSpace(userHash) {
			return container, true, nil
		}
	}
	return entities.UserContainer{}, false, nil
}

func (s *Store) ListUserContainers(_ context.Context, voteID string) ([]entities.UserContainer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var live []entities.UserContainer
	for _, container := range s.containers[strings.TrimSpace(voteID)] {
		if container.DeletedAt == nil {
			live = append(live, container)
		}
	}
	return live, nil
}

// ListActivity exposes the activity log for assertions in tests.
func (s *Store) ListActivity(voteID string) []entities.ActivityEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entities.ActivityEntry(nil), s.activity[strings.TrimSpace(voteID)]...)
}

func (s *Store) EnqueueEvent(_ context.Context, message outbox.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.outboxRows {
		if row.ID == message.ID {
			return nil
		}
	}
	if message.Status == "" {
		message.Status = "pending"
	}
	s.outboxRows = append(s.outboxRows, message)
	return nil
}

func (s *Store) ListPendingEvents(_ context.Context, limit int) ([]outbox.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pending []outbox.Message
	for _, row := range s.outboxRows {
		if row.Status != "pending" {
			continue
		}
		pending = append(pending, row)
		if limit > 0 && len(pending) >= limit {
			break
		}
	}
	return pending, nil
}

func (s *Store) MarkEventPublished(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outboxRows {
		if s.outboxRows[i].ID == messageID {
			s.outboxRows[i].Status = "published"
			return nil
		}
	}
	return nil
}

func (s *Store) HasPermission(_ context.Context, _ string, userID string, _ ports.PermissionLevel) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deniedUsers[strings.TrimSpace(userID)] {
		return domainerrors.ErrPermissionDenied
	}
	return nil
}

func (s *Store) CountMembers(_ context.Context, proposalID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.members[strings.TrimSpace(proposalID)], nil
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	override := s.clockOverride
	s.mu.RUnlock()
	if override != nil {
		return override()
	}
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
