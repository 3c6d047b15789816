package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	domainerrors "agora/contexts/voting-core/ballot-service/domain/errors"
	"agora/contexts/voting-core/ballot-service/ports"

	"gorm.io/gorm"
)

type permissionModel struct {
	ProposalID string `gorm:"primaryKey;column:proposal_id"`
	UserID     string `gorm:"primaryKey;column:user_id"`
	Level      string `gorm:"column:level"`
	UpdatedAt  time.Time
}

func (permissionModel) TableName() string { return "proposal_permissions" }

// MembershipStore reads the proposal_permissions projection the memberships
// system replicates into this database. The module never writes it.
type MembershipStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewMembershipStore(db *gorm.DB, logger *slog.Logger) *MembershipStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MembershipStore{db: db, logger: logger}
}

// levelRank orders the access levels; a higher level implies every lower one.
func levelRank(level ports.PermissionLevel) int {
	switch level {
	case ports.PermissionRead:
		return 1
	case ports.PermissionVote:
		return 2
	case ports.PermissionAdmin:
		return 3
	default:
		return 0
	}
}

func (m *MembershipStore) HasPermission(ctx context.Context, proposalID string, userID string, level ports.PermissionLevel) error {
	var row permissionModel
	err := m.db.WithContext(ctx).
		Where("proposal_id = ? AND user_id = ?", proposalID, userID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainerrors.ErrPermissionDenied
		}
		m.logger.Error("permission lookup failed",
			"event", "ballot_repo_permission_lookup_failed",
			"module", "voting-core/ballot-service",
			"layer", "adapter",
			"proposal_id", proposalID,
			"error", err.Error(),
		)
		return err
	}
	if levelRank(ports.PermissionLevel(row.Level)) < levelRank(level) {
		return domainerrors.ErrPermissionDenied
	}
	return nil
}

// CountMembers counts accounts holding at least vote access; they are the
// population the all-members auto-close condition compares against.
func (m *MembershipStore) CountMembers(ctx context.Context, proposalID string) (int, error) {
	var count int64
	err := m.db.WithContext(ctx).
		Model(&permissionModel{}).
		Where("proposal_id = ? AND level IN ?", proposalID, []string{
			string(ports.PermissionVote),
			string(ports.PermissionAdmin),
		}).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}
