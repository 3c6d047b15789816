package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"agora/contexts/voting-core/ballot-service/domain/entities"
	domainerrors "agora/contexts/voting-core/ballot-service/domain/errors"
	"agora/internal/shared/outbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const serializationRetries = 3

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) SaveVote(ctx context.Context, vote entities.Vote) error {
	row, options, err := voteModelFromEntity(vote)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		create := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"ends_at":       row.EndsAt,
				"reminder_time": row.ReminderTime,
				"min_choices":   row.MinChoices,
				"max_choices":   row.MaxChoices,
				"delegation_allowed": row.DelegationAllowed,
				"auto_close":         row.AutoClose,
				"status":             row.Status,
				"updated_at":         row.UpdatedAt,
			}),
		}).Create(&row)
		if create.Error != nil {
			return r.logError("ballot_repo_save_vote_failed", create.Error, "vote_id", vote.VoteID)
		}
		for _, option := range options {
			insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&option)
			if insert.Error != nil {
				return r.logError("ballot_repo_save_option_failed", insert.Error, "vote_id", vote.VoteID)
			}
		}
		return nil
	})
}

func (r *Repository) GetVote(ctx context.Context, voteID string) (entities.Vote, error) {
	var row voteModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", strings.TrimSpace(voteID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Vote{}, domainerrors.ErrVoteNotFound
		}
		return entities.Vote{}, r.logError("ballot_repo_get_vote_failed", err, "vote_id", strings.TrimSpace(voteID))
	}
	var options []voteOptionModel
	if err := r.db.WithContext(ctx).
		Where("vote_id = ?", row.ID).
		Order("created_at ASC, id ASC").
		Find(&options).Error; err != nil {
		return entities.Vote{}, r.logError("ballot_repo_get_options_failed", err, "vote_id", row.ID)
	}
	return row.toEntity(options)
}

func (r *Repository) ListOpenVotes(ctx context.Context) ([]entities.Vote, error) {
	var rows []voteModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND deleted_at IS NULL", string(entities.VoteStatusOpen)).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("ballot_repo_list_open_votes_failed", err)
	}
	votes := make([]entities.Vote, 0, len(rows))
	for _, row := range rows {
		vote, err := row.toEntity(nil)
		if err != nil {
			return nil, r.logError("ballot_repo_list_open_votes_failed", err, "vote_id", row.ID)
		}
		votes = append(votes, vote)
	}
	return votes, nil
}

func (r *Repository) CloseVote(ctx context.Context, voteID string, endsAt time.Time) error {
	update := r.db.WithContext(ctx).Model(&voteModel{}).
		Where("id = ? AND deleted_at IS NULL", strings.TrimSpace(voteID)).
		Where("ends_at IS NULL OR ends_at > ?", endsAt).
		Updates(map[string]any{
			"ends_at":    endsAt,
			"status":     string(entities.VoteStatusClosed),
			"updated_at": endsAt,
		})
	if update.Error != nil {
		return r.logError("ballot_repo_close_vote_failed", update.Error, "vote_id", strings.TrimSpace(voteID))
	}
	return nil
}

// ReplaceBallot runs the whole ballot swap in one transaction: prior rows for
// the voter (by account and by identity hash) are soft-deleted, the new group
// is inserted, the voter's outgoing delegation revoked and the activity entry
// appended. The tally never observes a half-written group.
func (r *Repository) ReplaceBallot(ctx context.Context, group entities.BallotGroup) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceBallotTx(tx, group)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.logError("ballot_repo_replace_ballot_failed", err,
			"vote_id", group.VoteID,
			"voter_id", group.VoterID,
		)
	}
	return nil
}

func replaceBallotTx(tx *gorm.DB, group entities.BallotGroup) error {
	now := group.CreatedAt
	supersede := tx.Model(&ballotModel{}).
		Where("vote_id = ? AND deleted_at IS NULL", group.VoteID).
		Where("voter_id = ? OR (user_hash <> '' AND user_hash = ?)", group.VoterID, group.UserHash).
		Updates(map[string]any{"deleted_at": now, "updated_at": now})
	if supersede.Error != nil {
		return supersede.Error
	}
	for _, optionID := range group.OptionIDs {
		row := ballotModel{
			ID:            uuid.NewString(),
			VoteID:        group.VoteID,
			VoterID:       group.VoterID,
			OptionID:      optionID,
			OptionGroupID: group.OptionGroupID,
			UserHash:      group.UserHash,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	revoke := tx.Model(&delegationModel{}).
		Where("vote_id = ? AND by_user_id = ? AND revoked_at IS NULL", group.VoteID, group.VoterID).
		Updates(map[string]any{"revoked_at": now, "updated_at": now})
	if revoke.Error != nil {
		return revoke.Error
	}
	activity := activityModel{
		ID:        uuid.NewString(),
		VoteID:    group.VoteID,
		ActorID:   group.VoterID,
		Action:    "ballot.cast",
		Detail:    group.OptionGroupID,
		CreatedAt: now,
	}
	return tx.Create(&activity).Error
}

func (r *Repository) ListLiveBallots(ctx context.Context, voteID string) ([]entities.Ballot, error) {
	var rows []ballotModel
	err := r.db.WithContext(ctx).
		Where("vote_id = ? AND deleted_at IS NULL", strings.TrimSpace(voteID)).
		Order("updated_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("ballot_repo_list_ballots_failed", err, "vote_id", strings.TrimSpace(voteID))
	}
	ballots := make([]entities.Ballot, 0, len(rows))
	for _, row := range rows {
		ballots = append(ballots, row.toEntity())
	}
	return ballots, nil
}

// SaveDelegation performs the reachability check and the edge write inside a
// serializable transaction so no concurrent edge write on the same vote can
// slip a cycle past the check. Serialization failures retry a bounded number
// of times.
func (r *Repository) SaveDelegation(ctx context.Context, delegation entities.VoteDelegation) (entities.VoteDelegation, error) {
	var lastErr error
	for attempt := 0; attempt < serializationRetries; attempt++ {
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec("SET TRANSACTION ISOLATION LEVEL SERIALIZABLE").Error; err != nil {
				return err
			}
			var rows []delegationModel
			if err := tx.
				Where("vote_id = ? AND revoked_at IS NULL", delegation.VoteID).
				Find(&rows).Error; err != nil {
				return err
			}
			edges := make(map[string]string, len(rows))
			for _, row := range rows {
				if row.ByUserID != delegation.ByUserID {
					edges[row.ByUserID] = row.ToUserID
				}
			}
			if entities.WouldCycle(edges, delegation.ByUserID, delegation.ToUserID) {
				return domainerrors.ErrDelegationCycle
			}

			now := delegation.CreatedAt
			revoke := tx.Model(&delegationModel{}).
				Where("vote_id = ? AND by_user_id = ? AND revoked_at IS NULL", delegation.VoteID, delegation.ByUserID).
				Updates(map[string]any{"revoked_at": now, "updated_at": now})
			if revoke.Error != nil {
				return revoke.Error
			}
			supersede := tx.Model(&ballotModel{}).
				Where("vote_id = ? AND voter_id = ? AND deleted_at IS NULL", delegation.VoteID, delegation.ByUserID).
				Updates(map[string]any{"deleted_at": now, "updated_at": now})
			if supersede.Error != nil {
				return supersede.Error
			}
			row := delegationModel{
				ID:        delegation.DelegationID,
				VoteID:    delegation.VoteID,
				ByUserID:  delegation.ByUserID,
				ToUserID:  delegation.ToUserID,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			activity := activityModel{
				ID:        uuid.NewString(),
				VoteID:    delegation.VoteID,
				ActorID:   delegation.ByUserID,
				Action:    "delegation.created",
				Detail:    delegation.ToUserID,
				CreatedAt: now,
			}
			return tx.Create(&activity).Error
		})
		if err == nil {
			return delegation, nil
		}
		if errors.Is(err, domainerrors.ErrDelegationCycle) {
			return entities.VoteDelegation{}, err
		}
		if isUniqueViolation(err) {
			return entities.VoteDelegation{}, domainerrors.ErrConflict
		}
		if !isSerializationFailure(err) {
			return entities.VoteDelegation{}, r.logError("ballot_repo_save_delegation_failed", err,
				"vote_id", delegation.VoteID,
				"by_user_id", delegation.ByUserID,
			)
		}
		lastErr = err
	}
	return entities.VoteDelegation{}, r.logError("ballot_repo_save_delegation_retries_exhausted", lastErr,
		"vote_id", delegation.VoteID,
		"by_user_id", delegation.ByUserID,
	)
}

func (r *Repository) RevokeDelegation(ctx context.Context, voteID string, byUserID string, revokedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		revoke := tx.Model(&delegationModel{}).
			Where("vote_id = ? AND by_user_id = ? AND revoked_at IS NULL", strings.TrimSpace(voteID), strings.TrimSpace(byUserID)).
			Updates(map[string]any{"revoked_at": revokedAt, "updated_at": revokedAt})
		if revoke.Error != nil {
			return r.logError("ballot_repo_revoke_delegation_failed", revoke.Error,
				"vote_id", strings.TrimSpace(voteID),
				"by_user_id", strings.TrimSpace(byUserID),
			)
		}
		if revoke.RowsAffected == 0 {
			return domainerrors.ErrDelegationNotFound
		}
		activity := activityModel{
			ID:        uuid.NewString(),
			VoteID:    strings.TrimSpace(voteID),
			ActorID:   strings.TrimSpace(byUserID),
			Action:    "delegation.revoked",
			CreatedAt: revokedAt,
		}
		return tx.Create(&activity).Error
	})
}

func (r *Repository) ListLiveDelegations(ctx context.Context, voteID string) ([]entities.VoteDelegation, error) {
	var rows []delegationModel
	err := r.db.WithContext(ctx).
		Where("vote_id = ? AND revoked_at IS NULL", strings.TrimSpace(voteID)).
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("ballot_repo_list_delegations_failed", err, "vote_id", strings.TrimSpace(voteID))
	}
	delegations := make([]entities.VoteDelegation, 0, len(rows))
	for _, row := range rows {
		delegations = append(delegations, row.toEntity())
	}
	return delegations, nil
}

func (r *Repository) DelegationGraphVersion(ctx context.Context, voteID string) (int64, error) {
	var result struct {
		Total       int64
		LastChanged *time.Time
	}
	err := r.db.WithContext(ctx).Model(&delegationModel{}).
		Select("COUNT(*) AS total, MAX(updated_at) AS last_changed").
		Where("vote_id = ?", strings.TrimSpace(voteID)).
		Scan(&result).Error
	if err != nil {
		return 0, r.logError("ballot_repo_graph_version_failed", err, "vote_id", strings.TrimSpace(voteID))
	}
	version := result.Total
	if result.LastChanged != nil {
		version += result.LastChanged.UnixMicro()
	}
	return version, nil
}

func (r *Repository) ReplaceUserContainer(ctx context.Context, container entities.UserContainer) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceContainerTx(tx, container)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.logError("ballot_repo_replace_container_failed", err,
			"vote_id", container.VoteID,
			"user_hash", container.UserHash,
		)
	}
	return nil
}

// ReplaceSignedBallot joins the ballot swap and the container swap in a single
// transaction. A failure on either side rolls back both, so the tally never
// counts a signed ballot whose container was lost.
func (r *Repository) ReplaceSignedBallot(ctx context.Context, group entities.BallotGroup, container entities.UserContainer) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := replaceBallotTx(tx, group); err != nil {
			return err
		}
		return replaceContainerTx(tx, container)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.logError("ballot_repo_replace_signed_ballot_failed", err,
			"vote_id", group.VoteID,
			"voter_id", group.VoterID,
		)
	}
	return nil
}

func replaceContainerTx(tx *gorm.DB, container entities.UserContainer) error {
	supersede := tx.Model(&containerModel{}).
		Where("vote_id = ? AND user_hash = ? AND deleted_at IS NULL", container.VoteID, container.UserHash).
		Updates(map[string]any{"deleted_at": container.CreatedAt, "updated_at": container.CreatedAt})
	if supersede.Error != nil {
		return supersede.Error
	}
	row := containerModel{
		ID:        container.ContainerID,
		VoteID:    container.VoteID,
		UserID:    container.UserID,
		UserHash:  container.UserHash,
		Content:   container.Content,
		CreatedAt: container.CreatedAt,
		UpdatedAt: container.UpdatedAt,
	}
	return tx.Create(&row).Error
}

func (r *Repository) GetUserContainer(ctx context.Context, voteID string, userHash string) (entities.UserContainer, bool, error) {
	var row containerModel
	err := r.db.WithContext(ctx).
		Where("vote_id = ? AND user_hash = ? AND deleted_at IS NULL", strings.TrimSpace(voteID), strings.TrimSpace(userHash)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.UserContainer{}, false, nil
		}
		return entities.UserContainer{}, false, r.logError("ballot_repo_get_container_failed", err,
			"vote_id", strings.TrimSpace(voteID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListUserContainers(ctx context.Context, voteID string) ([]entities.UserContainer, error) {
	var rows []containerModel
	err := r.db.WithContext(ctx).
		Where("vote_id = ? AND deleted_at IS NULL", strings.TrimSpace(voteID)).
		Order("user_hash ASC").
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("ballot_repo_list_containers_failed", err, "vote_id", strings.TrimSpace(voteID))
	}
	containers := make([]entities.UserContainer, 0, len(rows))
	for _, row := range rows {
		containers = append(containers, row.toEntity())
	}
	return containers, nil
}

func (r *Repository) EnqueueEvent(ctx context.Context, message outbox.Message) error {
	status := message.Status
	if status == "" {
		status = "pending"
	}
	insert := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&outboxModel{
			ID:         message.ID,
			EventType:  message.EventType,
			Payload:    message.Payload,
			Status:     status,
			RetryCount: message.RetryCount,
		})
	if insert.Error != nil {
		return r.logError("ballot_repo_enqueue_event_failed", insert.Error, "event_type", message.EventType)
	}
	return nil
}

func (r *Repository) ListPendingEvents(ctx context.Context, limit int) ([]outbox.Message, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", "pending").
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []outboxModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_pending_events_failed", err)
	}
	messages := make([]outbox.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, outbox.Message{
			ID:         row.ID,
			EventType:  row.EventType,
			Payload:    row.Payload,
			Status:     row.Status,
			RetryCount: row.RetryCount,
		})
	}
	return messages, nil
}

func (r *Repository) MarkEventPublished(ctx context.Context, messageID string) error {
	update := r.db.WithContext(ctx).Model(&outboxModel{}).
		Where("id = ?", messageID).
		Update("status", "published")
	if update.Error != nil {
		return r.logError("ballot_repo_mark_event_published_failed", update.Error, "message_id", messageID)
	}
	return nil
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "voting-core/ballot-service",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	r.logger.Error("ballot repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}
