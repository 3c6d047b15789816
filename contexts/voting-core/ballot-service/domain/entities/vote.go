package entities

import "time"

type AuthType string

const (
	AuthTypeWeak   AuthType = "weak"
	AuthTypeStrong AuthType = "strong"
)

type VoteStatus string

const (
	VoteStatusDraft  VoteStatus = "draft"
	VoteStatusOpen   VoteStatus = "open"
	VoteStatusClosed VoteStatus = "closed"
)

// Reserved option values that may only be cast on their own.
const (
	OptionValueNeutral = "neutral"
	OptionValueVeto    = "veto"
)

type AutoCloseCondition string

const (
	AutoCloseAllMembersVoted AutoCloseCondition = "allMembersVoted"
)

type AutoCloseRule struct {
	Condition AutoCloseCondition `json:"condition"`
	Enabled   bool               `json:"enabled"`
}

type Vote struct {
	VoteID            string
	ProposalID        string
	AuthType          AuthType
	MinChoices        int
	MaxChoices        int
	DelegationAllowed bool
	EndsAt            *time.Time
	ReminderTime      *time.Time
	AutoClose         []AutoCloseRule
	Status            VoteStatus
	Options           []VoteOption
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time
}

// Open reports whether the vote accepts ballots at the given instant.
func (v Vote) Open(now time.Time) bool {
	if v.Status != VoteStatusOpen || v.DeletedAt != nil {
		return false
	}
	if v.EndsAt != nil && !v.EndsAt.After(now) {
		return false
	}
	return true
}

// Ended reports whether the vote end time has passed.
func (v Vote) Ended(now time.Time) bool {
	return v.Status == VoteStatusClosed || (v.EndsAt != nil && !v.EndsAt.After(now))
}

func (v Vote) Option(optionID string) (VoteOption, bool) {
	for _, option := range v.Options {
		if option.OptionID == optionID {
			return option, true
		}
	}
	return VoteOption{}, false
}

type VoteOption struct {
	OptionID  string
	VoteID    string
	Value     string
	CreatedAt time.Time
}

// SingleSelectOnly reports whether the option must be the sole selection in a
// ballot group.
func (o VoteOption) SingleSelectOnly() bool {
	return o.Value == OptionValueNeutral || o.Value == OptionValueVeto
}
