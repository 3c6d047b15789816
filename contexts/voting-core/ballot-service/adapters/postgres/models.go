package postgresadapter

import (
	"encoding/json"
	"time"

	"agora/contexts/voting-core/ballot-service/domain/entities"

	"gorm.io/datatypes"
)

type voteModel struct {
	ID                string `gorm:"primaryKey;column:id"`
	ProposalID        string `gorm:"column:proposal_id;index"`
	AuthType          string `gorm:"column:auth_type"`
	MinChoices        int    `gorm:"column:min_choices"`
	MaxChoices        int    `gorm:"column:max_choices"`
	DelegationAllowed bool   `gorm:"column:delegation_allowed"`
	EndsAt            *time.Time
	ReminderTime      *time.Time
	AutoClose         datatypes.JSON `gorm:"column:auto_close"`
	Status            string         `gorm:"column:status"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time
}

func (voteModel) TableName() string { return "votes" }

type voteOptionModel struct {
	ID        string `gorm:"primaryKey;column:id"`
	VoteID    string `gorm:"column:vote_id;index"`
	Value     string `gorm:"column:value"`
	CreatedAt time.Time
}

func (voteOptionModel) TableName() string { return "vote_options" }

type ballotModel struct {
	ID            string `gorm:"primaryKey;column:id"`
	VoteID        string `gorm:"column:vote_id;index"`
	VoterID       string `gorm:"column:voter_id"`
	OptionID      string `gorm:"column:option_id"`
	OptionGroupID string `gorm:"column:option_group_id"`
	UserHash      string `gorm:"column:user_hash"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

func (ballotModel) TableName() string { return "vote_lists" }

type delegationModel struct {
	ID        string `gorm:"primaryKey;column:id"`
	VoteID    string `gorm:"column:vote_id;index"`
	ByUserID  string `gorm:"column:by_user_id"`
	ToUserID  string `gorm:"column:to_user_id"`
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

func (delegationModel) TableName() string { return "vote_delegations" }

type containerModel struct {
	ID        string `gorm:"primaryKey;column:id"`
	VoteID    string `gorm:"column:vote_id;index"`
	UserID    string `gorm:"column:user_id"`
	UserHash  string `gorm:"column:user_hash"`
	Content   []byte `gorm:"column:content"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

func (containerModel) TableName() string { return "vote_user_containers" }

type activityModel struct {
	ID        string `gorm:"primaryKey;column:id"`
	VoteID    string `gorm:"column:vote_id;index"`
	ActorID   string `gorm:"column:actor_id"`
	Action    string `gorm:"column:action"`
	Detail    string `gorm:"column:detail"`
	CreatedAt time.Time
}

func (activityModel) TableName() string { return "vote_activities" }

type outboxModel struct {
	ID         string `gorm:"primaryKey;column:id"`
	EventType  string `gorm:"column:event_type"`
	Payload    []byte `gorm:"column:payload"`
	Status     string `gorm:"column:status;index"`
	RetryCount int    `gorm:"column:retry_count"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (outboxModel) TableName() string { return "vote_outbox" }

func voteModelFromEntity(vote entities.Vote) (voteModel, []voteOptionModel, error) {
	autoClose, err := json.Marshal(vote.AutoClose)
	if err != nil {
		return voteModel{}, nil, err
	}
	row := voteModel{
		ID:                vote.VoteID,
		ProposalID:        vote.ProposalID,
		AuthType:          string(vote.AuthType),
		MinChoices:        vote.MinChoices,
		MaxChoices:        vote.MaxChoices,
		DelegationAllowed: vote.DelegationAllowed,
		EndsAt:            vote.EndsAt,
		ReminderTime:      vote.ReminderTime,
		AutoClose:         datatypes.JSON(autoClose),
		Status:            string(vote.Status),
		CreatedAt:         vote.CreatedAt,
		UpdatedAt:         vote.UpdatedAt,
		DeletedAt:         vote.DeletedAt,
	}
	options := make([]voteOptionModel, 0, len(vote.Options))
	for _, option := range vote.Options {
		options = append(options, voteOptionModel{
			ID:        option.OptionID,
			VoteID:    vote.VoteID,
			Value:     option.Value,
			CreatedAt: option.CreatedAt,
		})
	}
	return row, options, nil
}

func (m voteModel) toEntity(options []voteOptionModel) (entities.Vote, error) {
	var autoClose []entities.AutoCloseRule
	if len(m.AutoClose) > 0 {
		if err := json.Unmarshal(m.AutoClose, &autoClose); err != nil {
			return entities.Vote{}, err
		}
	}
	vote := entities.Vote{
		VoteID:            m.ID,
		ProposalID:        m.ProposalID,
		AuthType:          entities.AuthType(m.AuthType),
		MinChoices:        m.MinChoices,
		MaxChoices:        m.MaxChoices,
		DelegationAllowed: m.DelegationAllowed,
		EndsAt:            m.EndsAt,
		ReminderTime:      m.ReminderTime,
		AutoClose:         autoClose,
		Status:            entities.VoteStatus(m.Status),
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
		DeletedAt:         m.DeletedAt,
	}
	for _, option := range options {
		vote.Options = append(vote.Options, entities.VoteOption{
			OptionID:  option.ID,
			VoteID:    option.VoteID,
			Value:     option.Value,
			CreatedAt: option.CreatedAt,
		})
	}
	return vote, nil
}

func (m ballotModel) toEntity() entities.Ballot {
	return entities.Ballot{
		BallotID:      m.ID,
		VoteID:        m.VoteID,
		VoterID:       m.VoterID,
		OptionID:      m.OptionID,
		OptionGroupID: m.OptionGroupID,
		UserHash:      m.UserHash,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		DeletedAt:     m.DeletedAt,
	}
}

func (m delegationModel) toEntity() entities.VoteDelegation {
	return entities.VoteDelegation{
		DelegationID: m.ID,
		VoteID:       m.VoteID,
		ByUserID:     m.ByUserID,
		ToUserID:     m.ToUserID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		RevokedAt:    m.RevokedAt,
	}
}

func (m containerModel) toEntity() entities.UserContainer {
	return entities.UserContainer{
		ContainerID: m.ID,
		VoteID:      m.VoteID,
		UserID:      m.UserID,
		UserHash:    m.UserHash,
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		DeletedAt:   m.DeletedAt,
	}
}
