package queries

import (
	"context"
	"sort"
	"strings"
	"sync"

	"agora/contexts/voting-core/ballot-service/domain/entities"
	"agora/contexts/voting-core/ballot-service/ports"
)

// TallyUseCase computes delegation-resolved vote results.
//
// Chain resolution is memoized per (vote, graph version) so repeated reads of
// a vote with an unchanged delegation edge set reuse the resolved terminal
// map instead of re-walking the graph.
type TallyUseCase struct {
	Votes ports.VoteRepository

	mu    sync.Mutex
	cache map[string]resolvedGraph
}

type resolvedGraph struct {
	version   int64
	edges     map[string]string
	terminals map[string]entities.ResolvedDelegate
}

// NewTallyUseCase builds a tally reader over the given repository.
func NewTallyUseCase(votes ports.VoteRepository) *TallyUseCase {
	return &TallyUseCase{
		Votes: votes,
		cache: make(map[string]resolvedGraph),
	}
}

// VoteResults tallies the vote. viewerID is optional; when supplied the
// viewer's own selections are marked and their resolved delegate reported.
// A vote without ballots yields zero counts, not an error.
func (uc *TallyUseCase) VoteResults(ctx context.Context, voteID string, viewerID string) (entities.VoteResults, error) {
	vote, err := uc.Votes.GetVote(ctx, strings.TrimSpace(voteID))
	if err != nil {
		return entities.VoteResults{}, err
	}
	ballots, err := uc.Votes.ListLiveBallots(ctx, vote.VoteID)
	if err != nil {
		return entities.VoteResults{}, err
	}
	graph, err := uc.resolveGraph(ctx, vote.VoteID)
	if err != nil {
		return entities.VoteResults{}, err
	}

	// One live group per voter key: the replace-on-revote invariant keeps one
	// group per account, but two accounts sharing a userHash (the same real
	// person re-authenticated) collapse to the latest group.
	latest := latestGroups(ballots)

	// Accounts whose own ballot is counted directly; delegators never add to
	// a terminal that has no counted ballot of its own.
	counted := make(map[string]bool, len(latest))
	for _, group := range latest {
		counted[group[0].VoterID] = true
	}

	// Distinct delegating accounts per resolved terminal. Accounts with a
	// live counted ballot of their own are excluded from the chains.
	delegated := make(map[string]int)
	for byUserID, resolved := range graph.terminals {
		if resolved.Depth < 0 || counted[byUserID] {
			continue
		}
		delegated[resolved.ToUserID]++
	}

	counts := make(map[string]int, len(vote.Options))
	viewerSelected := make(map[string]bool)
	votersCount := 0
	for _, group := range latest {
		voterID := group[0].VoterID
		if _, delegates := graph.edges[voterID]; delegates {
			// A voter with a live outgoing edge is absorbed into the chain;
			// the write path clears ballots on delegation so this is a guard
			// against historical rows.
			continue
		}
		weight := 1 + delegated[voterID]
		for _, ballot := range group {
			counts[ballot.OptionID] += weight
			if viewerID != "" && voterID == viewerID {
				viewerSelected[ballot.OptionID] = true
			}
		}
		votersCount++
	}

	totalWeight := 0
	for _, count := range counts {
		totalWeight += count
	}
	results := entities.VoteResults{
		VoteID:      vote.VoteID,
		VotersCount: votersCount,
	}
	for _, option := range vote.Options {
		percent := 0.0
		if totalWeight > 0 {
			percent = float64(counts[option.OptionID]) / float64(totalWeight) * 100
		}
		results.Options = append(results.Options, entities.OptionResult{
			OptionID: option.OptionID,
			Value:    option.Value,
			Count:    counts[option.OptionID],
			Percent:  percent,
			Selected: viewerSelected[option.OptionID],
		})
	}
	if viewerID != "" {
		if resolved, ok := graph.terminals[viewerID]; ok && resolved.Depth >= 0 {
			results.ViewerDelegate = resolved.ToUserID
		}
	}
	return results, nil
}

func (uc *TallyUseCase) resolveGraph(ctx context.Context, voteID string) (resolvedGraph, error) {
	version, err := uc.Votes.DelegationGraphVersion(ctx, voteID)
	if err != nil {
		return resolvedGraph{}, err
	}
	uc.mu.Lock()
	if cached, ok := uc.cache[voteID]; ok && cached.version == version {
		uc.mu.Unlock()
		return cached, nil
	}
	uc.mu.Unlock()

	delegations, err := uc.Votes.ListLiveDelegations(ctx, voteID)
	if err != nil {
		return resolvedGraph{}, err
	}
	edges := make(map[string]string, len(delegations))
	for _, delegation := range delegations {
		edges[delegation.ByUserID] = delegation.ToUserID
	}
	graph := resolvedGraph{
		version:   version,
		edges:     edges,
		terminals: entities.ResolveTerminals(edges),
	}
	uc.mu.Lock()
	if uc.cache == nil {
		uc.cache = make(map[string]resolvedGraph)
	}
	uc.cache[voteID] = graph
	uc.mu.Unlock()
	return graph, nil
}

// latestGroups picks each voter key's most recent live ballot group, ordered
// by the group rows' update time.
func latestGroups(ballots []entities.Ballot) map[string][]entities.Ballot {
	groups := make(map[string][]entities.Ballot)
	for _, ballot := range ballots {
		if !ballot.Live() {
			continue
		}
		groups[ballot.OptionGroupID] = append(groups[ballot.OptionGroupID], ballot)
	}
	latest := make(map[string][]entities.Ballot)
	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool { return group[i].OptionID < group[j].OptionID })
		key := group[0].VoterKey()
		current, ok := latest[key]
		if !ok || group[0].UpdatedAt.After(current[0].UpdatedAt) {
			latest[key] = group
		}
	}
	return latest
}
