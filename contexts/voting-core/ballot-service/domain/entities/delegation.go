package entities

import "time"

// VoteDelegation is a directed edge byUser -> toUser scoped to one vote.
// At most one live edge per (vote, byUser); revocation is a soft delete.
type VoteDelegation struct {
	DelegationID string
	VoteID       string
	ByUserID     string
	ToUserID     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	RevokedAt    *time.Time
}

func (d VoteDelegation) Live() bool {
	return d.RevokedAt == nil
}

// WouldCycle reports whether adding the edge byUser -> toUser to the live edge
// set would let byUser become reachable from itself. Callers must invoke it
// inside the same critical section as the edge write.
func WouldCycle(edges map[string]string, byUserID string, toUserID string) bool {
	if byUserID == toUserID {
		return true
	}
	current := toUserID
	for steps := 0; steps <= len(edges); steps++ {
		next, ok := edges[current]
		if !ok {
			return false
		}
		if next == byUserID {
			return true
		}
		current = next
	}
	// More lookups than edges without reaching a terminal means the walk
	// revisited a node, which only happens on an existing cycle.
	return true
}

// ResolvedDelegate is the terminal of one user's delegation chain.
type ResolvedDelegate struct {
	ByUserID string
	ToUserID string
	Depth    int
}

// ResolveTerminals walks every chain in the live edge set to its terminal
// node. Iterative with visited marks, O(V+E) over the edge set. Nodes on a
// cycle resolve to nothing and are dropped; the write path keeps the edge set
// acyclic so that branch is defensive only.
func ResolveTerminals(edges map[string]string) map[string]ResolvedDelegate {
	resolved := make(map[string]ResolvedDelegate, len(edges))
	for start := range edges {
		if _, done := resolved[start]; done {
			continue
		}
		path := []string{start}
		onPath := map[string]bool{start: true}
		current := start
		for {
			next, ok := edges[current]
			if !ok {
				// current is terminal; unwind the path recording depths.
				for i, node := range path {
					resolved[node] = ResolvedDelegate{
						ByUserID: node,
						ToUserID: current,
						Depth:    len(path) - 1 - i,
					}
				}
				break
			}
			if prior, done := resolved[next]; done {
				for i, node := range path {
					resolved[node] = ResolvedDelegate{
						ByUserID: node,
						ToUserID: prior.ToUserID,
						Depth:    len(path) - i + prior.Depth,
					}
				}
				break
			}
			if onPath[next] {
				// Cycle: mark every node on it as unresolvable.
				for _, node := range path {
					resolved[node] = ResolvedDelegate{ByUserID: node, ToUserID: "", Depth: -1}
				}
				break
			}
			path = append(path, next)
			onPath[next] = true
			current = next
		}
	}
	return resolved
}
