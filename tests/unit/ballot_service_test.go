package unit

import (
	"context"
	"errors"
	"testing"
	"time"

	ballotservice "agora/contexts/voting-core/ballot-service"
	"agora/contexts/voting-core/ballot-service/adapters/memory"
	"agora/contexts/voting-core/ballot-service/application/commands"
	domainerrors "agora/contexts/voting-core/ballot-service/domain/errors"
	httptransport "agora/contexts/voting-core/ballot-service/transport/http"
)

func openYesNoVote(t *testing.T, module ballotservice.Module, delegationAllowed bool) httptransport.VoteResponse {
	t.Helper()
	created, err := module.Handler.CreateVoteHandler(context.Background(), "proposal-1", "admin-1", httptransport.CreateVoteRequest{
		Options:           []string{"Yes", "No"},
		MinChoices:        1,
		MaxChoices:        1,
		AuthType:          "weak",
		DelegationAllowed: delegationAllowed,
	})
	if err != nil {
		t.Fatalf("create vote failed: %v", err)
	}
	opened, err := module.Handler.OpenVoteHandler(context.Background(), created.VoteID, "admin-1")
	if err != nil {
		t.Fatalf("open vote failed: %v", err)
	}
	return opened
}

func optionID(t *testing.T, vote httptransport.VoteResponse, value string) string {
	t.Helper()
	for _, option := range vote.Options {
		if option.Value == value {
			return option.OptionID
		}
	}
	t.Fatalf("option %q not found", value)
	return ""
}

func cast(t *testing.T, module ballotservice.Module, voteID string, userID string, optionIDs ...string) {
	t.Helper()
	_, err := module.Handler.CastBallotHandler(context.Background(), voteID, userID, httptransport.CastBallotRequest{OptionIDs: optionIDs})
	if err != nil {
		t.Fatalf("cast for %s failed: %v", userID, err)
	}
}

func delegate(t *testing.T, module ballotservice.Module, voteID string, byUserID string, toUserID string) {
	t.Helper()
	_, err := module.Handler.DelegateHandler(context.Background(), voteID, byUserID, httptransport.DelegateRequest{ToUserID: toUserID})
	if err != nil {
		t.Fatalf("delegate %s -> %s failed: %v", byUserID, toUserID, err)
	}
}

func results(t *testing.T, module ballotservice.Module, voteID string, viewerID string) httptransport.VoteResultsResponse {
	t.Helper()
	resp, err := module.Handler.VoteResultsHandler(context.Background(), voteID, viewerID)
	if err != nil {
		t.Fatalf("results failed: %v", err)
	}
	return resp
}

func optionCount(resp httptransport.VoteResultsResponse, id string) int {
	for _, option := range resp.Options {
		if option.OptionID == id {
			return option.Count
		}
	}
	return -1
}

func TestCastAndRecastKeepsLatestBallot(t *testing.T) {
	module := ballotservice.NewInMemoryModule(nil, nil, nil)
	vote := openYesNoVote(t, module, false)
	yes := optionID(t, vote, "Yes")
	no := optionID(t, vote, "No")

	cast(t, module, vote.VoteID, "user-1", yes)
	cast(t, module, vote.VoteID, "user-1", no)

	resp := results(t, module, vote.VoteID, "user-1")
	if got := optionCount(resp, yes); got != 0 {
		t.Fatalf("superseded ballot still counted: yes=%d", got)
	}
	if got := optionCount(resp, no); got != 1 {
		t.Fatalf("latest ballot not counted: no=%d", got)
	}
	if resp.VotersCount != 1 {
		t.Fatalf("re-cast must not inflate voters count, got %d", resp.VotersCount)
	}
}

func TestDelegationCycleRejected(t *testing.T) {
	module := ballotservice.NewInMemoryModule(nil, nil, nil)
	vote := openYesNoVote(t, module, true)

	delegate(t, module, vote.VoteID, "alice", "bob")
	delegate(t, module, vote.VoteID, "bob", "carol")

	_, err := module.Handler.DelegateHandler(context.Background(), vote.VoteID, "carol", httptransport.DelegateRequest{ToUserID: "alice"})
	if !errors.Is(err, domainerrors.ErrDelegationCycle) {
		t.Fatalf("expected ErrDelegationCycle, got %v", err)
	}

	// The rejected edge must leave nothing behind; carol can still delegate
	// outside the chain.
	delegate(t, module, vote.VoteID, "carol", "dave")
}

func TestSelfDelegationRejected(t *testing.T) {
	module := ballotservice.NewInMemoryModule(nil, nil, nil)
	vote := openYesNoVote(t, module, true)

	_, err := module.Handler.DelegateHandler(context.Background(), vote.VoteID, "alice", httptransport.DelegateRequest{ToUserID: "alice"})
	if !errors.Is(err, domainerrors.ErrSelfDelegation) {
		t.Fatalf("expected ErrSelfDelegation, got %v", err)
	}
}

func TestTransitiveDelegationWeights(t *testing.T) {
	module := ballotservice.NewInMemoryModule(nil, nil, nil)
	vote := openYesNoVote(t, module, true)
	yes := optionID(t, vote, "Yes")

	// alice -> bob -> carol; only carol votes.
	delegate(t, module, vote.VoteID, "alice", "bob")
	delegate(t, module, vote.VoteID, "bob", "carol")
	cast(t, module, vote.VoteID, "carol", yes)

	resp := results(t, module, vote.VoteID, "carol")
	if got := optionCount(resp, yes); got != 3 {
		t.Fatalf("carol should carry alice and bob, got weight %d", got)
	}
	if resp.VotersCount != 1 {
		t.Fatalf("one human cast a counted ballot, got voters count %d", resp.VotersCount)
	}
}

func TestThreeHopDelegationChainWeight(t *testing.T) {
	module := ballotservice.NewInMemoryModule(nil, nil, nil)
	vote := openYesNoVote(t, module, true)
	yes := optionID(t, vote, "Yes")

	// alice -> bob -> carol -> dave; only dave votes.
	delegate(t, module, vote.VoteID, "alice", "bob")
	delegate(t, module, vote.VoteID, "bob", "carol")
	delegate(t, module, vote.VoteID, "carol", "dave")
	cast(t, module, vote.VoteID, "dave", yes)

	resp := results(t, module, vote.VoteID, "dave")
	if got := optionCount(resp, yes); got != 4 {
		t.Fatalf("dave should carry the whole chain, got weight %d", got)
	}
	if resp.VotersCount != 1 {
		t.Fatalf("one human cast a counted ballot, got voters count %d", resp.VotersCount)
	}
}

func TestDelegateBallotDoesNotDoubleCount(t *testing.T) {
	module := ballotservice.NewInMemoryModule(nil, nil, nil)
	vote := openYesNoVote(t, module, true)
	yes := optionID(t, vote, "Yes")
	no := optionID(t, vote, "No")

	delegate(t, module, vote.VoteID, "alice", "bob")
	cast(t, module, vote.VoteID, "bob", yes)
	cast(t, module, vote.VoteID, "carol", no)

	resp := results(t, module, vote.VoteID, "bob")
	if got := optionCount(resp, yes); got != 2 {
		t.Fatalf("bob should weigh 2, got %d", got)
	}
	if got := optionCount(resp, no); got != 1 {
		t.Fatalf("carol should weigh 1, got %d", got)
	}
	if resp.VotersCount != 2 {
		t.Fatalf("two humans cast counted ballots, got %d", resp.VotersCount)
	}
	for _, option := range resp.Options {
		if option.OptionID == yes && (option.Percent < 66.6 || option.Percent > 66.7) {
			t.Fatalf("yes should hold two thirds of the weight, got %.2f%%", option.Percent)
		}
	}
}

func TestDelegationRevocationIsRetroactive(t *testing.T) {
	module := ballotservice.NewInMemoryModule(nil, nil, nil)
	vote := openYesNoVote(t, module, true)
	yes := optionID(t, vote, "Yes")

	delegate(t, module, vote.VoteID, "alice", "bob")
	cast(t, module, vote.VoteID, "bob", yes)
	if got := optionCount(results(t, module, vote.VoteID, "bob"), yes); got != 2 {
		t.Fatalf("expected weight 2 before revocation, got %d", got)
	}

	if err := module.Handler.RevokeDelegationHandler(context.Background(), vote.VoteID, "alice"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if got := optionCount(results(t, module, vote.VoteID, "bob"), yes); got != 1 {
		t.Fatalf("revocation must retroactively drop the weight, got %d", got)
	}
}

func TestCastSupersedesOwnDelegation(t *testing.T) {
	module := ballotservice.NewInMemoryModule(nil, nil, nil)
	vote := openYesNoVote(t, module, true)
	yes := optionID(t, vote, "Yes")
	no := optionID(t, vote, "No")

	delegate(t, module, vote.VoteID, "alice", "bob")
	cast(t, module, vote.VoteID, "bob", yes)
	// Latest action wins: alice voting herself revokes her delegation.
	cast(t, module, vote.VoteID, "alice", no)

	resp := results(t, module, vote.VoteID, "alice")
	if got := optionCount(resp, yes); got != 1 {
		t.Fatalf("bob should fall back to weight 1, got %d", got)
	}
	if got := optionCount(resp, no); got != 1 {
		t.Fatalf("alice's own ballot should count, got %d", got)
	}
	if resp.ViewerDelegate != "" {
		t.Fatalf("alice's delegation should be revoked, still points to %s", resp.ViewerDelegate)
	}
}

func TestDelegationSupersedesOwnBallot(t *testing.T) {
	module := ballotservice.NewInMemoryModule(nil, nil, nil)
	vote := openYesNoVote(t, module, true)
	yes := optionID(t, vote, "Yes")
	no := optionID(t, vote, "No")

	cast(t, module, vote.VoteID, "alice", no)
	cast(t, module, vote.VoteID, "bob", yes)
	// Latest action wins the other way: delegating drops alice's own ballot.
	delegate(t, module, vote.VoteID, "alice", "bob")

	resp := results(t, module, vote.VoteID, "alice")
	if got := optionCount(resp, no); got != 0 {
		t.Fatalf("alice's superseded ballot still counted, no=%d", got)
	}
	if got := optionCount(resp, yes); got != 2 {
		t.Fatalf("bob should carry alice, got %d", got)
	}
	if resp.ViewerDelegate != "bob" {
		t.Fatalf("viewer delegate should be bob, got %q", resp.ViewerDelegate)
	}
}

func TestDelegationNotAllowedOnVote(t *testing.T) {
	module := ballotservice.NewInMemoryModule(nil, nil, nil)
	vote := openYesNoVote(t, module, false)

	_, err := module.Handler.DelegateHandler(context.Background(), vote.VoteID, "alice", httptransport.DelegateRequest{ToUserID: "bob"})
	if !errors.Is(err, domainerrors.ErrDelegationNotAllowed) {
		t.Fatalf("expected ErrDelegationNotAllowed, got %v", err)
	}
}

func TestAutoCloseWhenAllMembersVoted(t *testing.T) {
	module := ballotservice.NewInMemoryModule(nil, nil, nil)
	module.Store.SetMemberCount("proposal-1", 2)

	created, err := module.Handler.CreateVoteHandler(context.Background(), "proposal-1", "admin-1", httptransport.CreateVoteRequest{
		Options:    []string{"Yes", "No"},
		MinChoices: 1,
		MaxChoices: 1,
		AuthType:   "weak",
		AutoClose: []httptransport.AutoCloseRule{
			{Condition: "allMembersVoted", Enabled: true},
		},
	})
	if err != nil {
		t.Fatalf("create vote failed: %v", err)
	}
	vote, err := module.Handler.OpenVoteHandler(context.Background(), created.VoteID, "admin-1")
	if err != nil {
		t.Fatalf("open vote failed: %v", err)
	}
	yes := optionID(t, vote, "Yes")

	cast(t, module, vote.VoteID, "user-1", yes)
	stored, err := module.Store.GetVote(context.Background(), vote.VoteID)
	if err != nil {
		t.Fatalf("get vote failed: %v", err)
	}
	if stored.Ended(time.Now().UTC()) {
		t.Fatalf("vote must stay open until every member voted")
	}

	cast(t, module, vote.VoteID, "user-2", yes)
	stored, err = module.Store.GetVote(context.Background(), vote.VoteID)
	if err != nil {
		t.Fatalf("get vote failed: %v", err)
	}
	if !stored.Ended(time.Now().UTC()) {
		t.Fatalf("vote should auto-close once all members voted")
	}

	_, err = module.Handler.CastBallotHandler(context.Background(), vote.VoteID, "user-3", httptransport.CastBallotRequest{OptionIDs: []string{yes}})
	if !errors.Is(err, domainerrors.ErrVoteClosed) {
		t.Fatalf("expected ErrVoteClosed after auto-close, got %v", err)
	}
}

func TestAutoCloseCountsDelegatorsAsActed(t *testing.T) {
	module := ballotservice.NewInMemoryModule(nil, nil, nil)
	module.Store.SetMemberCount("proposal-1", 2)

	created, err := module.Handler.CreateVoteHandler(context.Background(), "proposal-1", "admin-1", httptransport.CreateVoteRequest{
		Options:           []string{"Yes", "No"},
		MinChoices:        1,
		MaxChoices:        1,
		AuthType:          "weak",
		DelegationAllowed: true,
		AutoClose: []httptransport.AutoCloseRule{
			{Condition: "allMembersVoted", Enabled: true},
		},
	})
	if err != nil {
		t.Fatalf("create vote failed: %v", err)
	}
	vote, err := module.Handler.OpenVoteHandler(context.Background(), created.VoteID, "admin-1")
	if err != nil {
		t.Fatalf("open vote failed: %v", err)
	}
	yes := optionID(t, vote, "Yes")

	// One member delegates, the other votes: everyone has acted even though
	// only one live ballot exists.
	delegate(t, module, vote.VoteID, "user-1", "user-2")
	cast(t, module, vote.VoteID, "user-2", yes)

	stored, err := module.Store.GetVote(context.Background(), vote.VoteID)
	if err != nil {
		t.Fatalf("get vote failed: %v", err)
	}
	if !stored.Ended(time.Now().UTC()) {
		t.Fatalf("vote should auto-close when every member voted or delegated")
	}
}

func TestAutoCloseDisabledByConfig(t *testing.T) {
	store := memory.NewStore(nil)
	module := ballotservice.NewModule(ballotservice.Dependencies{
		Votes:             store,
		Permissions:       store,
		Members:           store,
		Clock:             store,
		IDGen:             store,
		AutoCloseDisabled: true,
	})
	module.Store = store
	store.SetMemberCount("proposal-1", 1)

	created, err := module.Handler.CreateVoteHandler(context.Background(), "proposal-1", "admin-1", httptransport.CreateVoteRequest{
		Options:    []string{"Yes", "No"},
		MinChoices: 1,
		MaxChoices: 1,
		AuthType:   "weak",
		AutoClose: []httptransport.AutoCloseRule{
			{Condition: "allMembersVoted", Enabled: true},
		},
	})
	if err != nil {
		t.Fatalf("create vote failed: %v", err)
	}
	vote, err := module.Handler.OpenVoteHandler(context.Background(), created.VoteID, "admin-1")
	if err != nil {
		t.Fatalf("open vote failed: %v", err)
	}
	cast(t, module, vote.VoteID, "user-1", optionID(t, vote, "Yes"))

	stored, err := store.GetVote(context.Background(), vote.VoteID)
	if err != nil {
		t.Fatalf("get vote failed: %v", err)
	}
	if stored.Ended(time.Now().UTC()) {
		t.Fatalf("disabled auto-close must leave the vote open")
	}
}

func TestReservedOptionPrefixRejectedAtCreation(t *testing.T) {
	module := ballotservice.NewInMemoryModule(nil, nil, nil)
	_, err := module.Handler.CreateVoteHandler(context.Background(), "proposal-1", "admin-1", httptransport.CreateVoteRequest{
		Options:    []string{"Yes", "__neutral"},
		MinChoices: 1,
		MaxChoices: 1,
		AuthType:   "weak",
	})
	if !errors.Is(err, domainerrors.ErrReservedOptionPrefix) {
		t.Fatalf("expected ErrReservedOptionPrefix, got %v", err)
	}
}

func TestNearDuplicateOptionsRejected(t *testing.T) {
	module := ballotservice.NewInMemoryModule(nil, nil, nil)
	_, err := module.Handler.CreateVoteHandler(context.Background(), "proposal-1", "admin-1", httptransport.CreateVoteRequest{
		Options:    []string{"Budget  2026", "budget 2026"},
		MinChoices: 1,
		MaxChoices: 1,
		AuthType:   "weak",
	})
	if !errors.Is(err, domainerrors.ErrOptionsTooSimilar) {
		t.Fatalf("expected ErrOptionsTooSimilar, got %v", err)
	}
}

func TestNeutralMustBeCastAlone(t *testing.T) {
	module := ballotservice.NewInMemoryModule(nil, nil, nil)
	created, err := module.Handler.CreateVoteHandler(context.Background(), "proposal-1", "admin-1", httptransport.CreateVoteRequest{
		Options:    []string{"Yes", "No", "neutral"},
		MinChoices: 1,
		MaxChoices: 2,
		AuthType:   "weak",
	})
	if err != nil {
		t.Fatalf("create vote failed: %v", err)
	}
	vote, err := module.Handler.OpenVoteHandler(context.Background(), created.VoteID, "admin-1")
	if err != nil {
		t.Fatalf("open vote failed: %v", err)
	}
	yes := optionID(t, vote, "Yes")
	neutral := optionID(t, vote, "neutral")

	_, err = module.Handler.CastBallotHandler(context.Background(), vote.VoteID, "user-1", httptransport.CastBallotRequest{OptionIDs: []string{yes, neutral}})
	if !errors.Is(err, domainerrors.ErrReservedOptionValue) {
		t.Fatalf("expected ErrReservedOptionValue, got %v", err)
	}
	cast(t, module, vote.VoteID, "user-1", neutral)
}

func TestStrongVoteRejectsUnsignedCast(t *testing.T) {
	module := ballotservice.NewInMemoryModule(nil, nil, nil)
	created, err := module.Handler.CreateVoteHandler(context.Background(), "proposal-1", "admin-1", httptransport.CreateVoteRequest{
		Options:    []string{"Yes", "No"},
		MinChoices: 1,
		MaxChoices: 1,
		AuthType:   "strong",
	})
	if err != nil {
		t.Fatalf("create vote failed: %v", err)
	}
	vote, err := module.Handler.OpenVoteHandler(context.Background(), created.VoteID, "admin-1")
	if err != nil {
		t.Fatalf("open vote failed: %v", err)
	}
	yes := optionID(t, vote, "Yes")

	_, err = module.Ballots.CastBallot(context.Background(), commands.CastBallotCommand{
		VoteID:    vote.VoteID,
		VoterID:   "user-1",
		OptionIDs: []string{yes},
	})
	if !errors.Is(err, domainerrors.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied without identity hash, got %v", err)
	}
}

func TestStrongVoteDedupsByIdentityHash(t *testing.T) {
	module := ballotservice.NewInMemoryModule(nil, nil, nil)
	created, err := module.Handler.CreateVoteHandler(context.Background(), "proposal-1", "admin-1", httptransport.CreateVoteRequest{
		Options:    []string{"Yes", "No"},
		MinChoices: 1,
		MaxChoices: 1,
		AuthType:   "strong",
	})
	if err != nil {
		t.Fatalf("create vote failed: %v", err)
	}
	vote, err := module.Handler.OpenVoteHandler(context.Background(), created.VoteID, "admin-1")
	if err != nil {
		t.Fatalf("open vote failed: %v", err)
	}
	yes := optionID(t, vote, "Yes")
	no := optionID(t, vote, "No")

	// Same physical person behind two accounts: the identity hash wins.
	if _, err := module.Ballots.CastBallot(context.Background(), commands.CastBallotCommand{
		VoteID:    vote.VoteID,
		VoterID:   "account-1",
		UserHash:  "hash-xyz",
		OptionIDs: []string{yes},
	}); err != nil {
		t.Fatalf("first signed cast failed: %v", err)
	}
	if _, err := module.Ballots.CastBallot(context.Background(), commands.CastBallotCommand{
		VoteID:    vote.VoteID,
		VoterID:   "account-2",
		UserHash:  "hash-xyz",
		OptionIDs: []string{no},
	}); err != nil {
		t.Fatalf("second signed cast failed: %v", err)
	}

	resp := results(t, module, vote.VoteID, "account-2")
	if got := optionCount(resp, yes); got != 0 {
		t.Fatalf("first account's ballot must be superseded, yes=%d", got)
	}
	if got := optionCount(resp, no); got != 1 {
		t.Fatalf("latest signed ballot should count once, no=%d", got)
	}
	if resp.VotersCount != 1 {
		t.Fatalf("one physical voter expected, got %d", resp.VotersCount)
	}
}

func TestPermissionDeniedUserCannotCast(t *testing.T) {
	module := ballotservice.NewInMemoryModule(nil, nil, nil)
	vote := openYesNoVote(t, module, false)
	yes := optionID(t, vote, "Yes")
	module.Store.DenyUser("banned-1")

	_, err := module.Handler.CastBallotHandler(context.Background(), vote.VoteID, "banned-1", httptransport.CastBallotRequest{OptionIDs: []string{yes}})
	if !errors.Is(err, domainerrors.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}
