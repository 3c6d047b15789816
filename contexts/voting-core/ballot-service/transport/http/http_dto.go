package http

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type AutoCloseRule struct {
	Condition string `json:"condition"`
	Enabled   bool   `json:"enabled"`
}

type CreateVoteRequest struct {
	Options           []string        `json:"options"`
	MinChoices        int             `json:"min_choices"`
	MaxChoices        int             `json:"max_choices"`
	AuthType          string          `json:"auth_type"`
	DelegationAllowed bool            `json:"delegation_allowed"`
	EndsAt            *time.Time      `json:"ends_at,omitempty"`
	AutoClose         []AutoCloseRule `json:"auto_close,omitempty"`
}

type UpdateVoteRequest struct {
	EndsAt            *time.Time `json:"ends_at,omitempty"`
	ReminderTime      *time.Time `json:"reminder_time,omitempty"`
	MinChoices        *int       `json:"min_choices,omitempty"`
	MaxChoices        *int       `json:"max_choices,omitempty"`
	DelegationAllowed *bool      `json:"delegation_allowed,omitempty"`
}

type VoteOptionResponse struct {
	OptionID string `json:"option_id"`
	Value    string `json:"value"`
}

type VoteResponse struct {
	VoteID            string               `json:"vote_id"`
	ProposalID        string               `json:"proposal_id"`
	AuthType          string               `json:"auth_type"`
	MinChoices        int                  `json:"min_choices"`
	MaxChoices        int                  `json:"max_choices"`
	DelegationAllowed bool                 `json:"delegation_allowed"`
	Status            string               `json:"status"`
	EndsAt            *time.Time           `json:"ends_at,omitempty"`
	ReminderTime      *time.Time           `json:"reminder_time,omitempty"`
	Options           []VoteOptionResponse `json:"options"`
}

type CastBallotRequest struct {
	OptionIDs []string `json:"option_ids"`
}

type CastBallotResponse struct {
	VoteID        string `json:"vote_id"`
	OptionGroupID string `json:"option_group_id"`
}

type DelegateRequest struct {
	ToUserID string `json:"to_user_id"`
}

type DelegationResponse struct {
	VoteID   string `json:"vote_id"`
	ByUserID string `json:"by_user_id"`
	ToUserID string `json:"to_user_id"`
}

type OptionResultResponse struct {
	OptionID string  `json:"option_id"`
	Value    string  `json:"value"`
	Count    int     `json:"count"`
	Percent  float64 `json:"percent"`
	Selected bool    `json:"selected,omitempty"`
}

type VoteResultsResponse struct {
	VoteID         string                 `json:"vote_id"`
	VotersCount    int                    `json:"voters_count"`
	Options        []OptionResultResponse `json:"options"`
	ViewerDelegate string                 `json:"viewer_delegate,omitempty"`
}
