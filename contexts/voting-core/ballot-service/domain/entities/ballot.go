package entities

import "time"

// Ballot is one (vote, voter, option) row. Rows sharing an OptionGroupID were
// cast atomically in one submission. For strong-identity votes UserHash
// identifies the real-world voter independent of the internal account.
type Ballot struct {
	BallotID      string
	VoteID        string
	VoterID       string
	OptionID      string
	OptionGroupID string
	UserHash      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

func (b Ballot) Live() bool {
	return b.DeletedAt == nil
}

// VoterKey is the identity ballots are deduplicated by: the salted external
// identity hash when present, the internal account otherwise.
func (b Ballot) VoterKey() string {
	if b.UserHash != "" {
		return b.UserHash
	}
	return b.VoterID
}

// BallotGroup is one submission: the sibling rows a voter cast atomically.
type BallotGroup struct {
	VoteID        string
	VoterID       string
	UserHash      string
	OptionGroupID string
	OptionIDs     []string
	CreatedAt     time.Time
}

// UserContainer is the signed artifact for one voter's ballot, keyed by
// (vote, userHash). A re-signature replaces the prior row for the same key.
type UserContainer struct {
	ContainerID string
	VoteID      string
	UserID      string
	UserHash    string
	Content     []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// OptionResult is one option's tallied weight. Percent is the option's share
// of all counted weight, 0 on a vote without ballots.
type OptionResult struct {
	OptionID string
	Value    string
	Count    int
	Percent  float64
	Selected bool
}

// VoteResults is the delegation-resolved read model for one vote.
type VoteResults struct {
	VoteID      string
	Options     []OptionResult
	VotersCount int
	// ViewerDelegate is set when the viewer has a live outgoing delegation;
	// it names the terminal of their chain.
	ViewerDelegate string
}

type ActivityEntry struct {
	ActivityID string
	VoteID     string
	ActorID    string
	Action     string
	Detail     string
	CreatedAt  time.Time
}
