package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"agora/contexts/identity-access/signing-orchestrator/domain/entities"
	domainerrors "agora/contexts/identity-access/signing-orchestrator/domain/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type connectionModel struct {
	ID         string `gorm:"primaryKey;column:id"`
	UserID     string `gorm:"column:user_id"`
	Method     string `gorm:"column:method"`
	ExternalID string `gorm:"column:external_id"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (connectionModel) TableName() string { return "user_connections" }

// Repository persists account/identity bindings. The unique constraints on
// (method, external_id) and (user_id, method) back the invariant; violations
// map to the typed binding conflicts.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

func (r *Repository) Upsert(ctx context.Context, connection entities.UserConnection) error {
	externalID := strings.TrimSpace(connection.ExternalID)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing connectionModel
		err := tx.
			Where("method = ? AND external_id = ?", string(connection.Method), externalID).
			First(&existing).Error
		switch {
		case err == nil:
			if existing.UserID != connection.UserID {
				return domainerrors.ErrIdentityAlreadyBound
			}
			return tx.Model(&connectionModel{}).
				Where("id = ?", existing.ID).
				Update("updated_at", connection.UpdatedAt).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		var sameAccount connectionModel
		err = tx.
			Where("user_id = ? AND method = ?", connection.UserID, string(connection.Method)).
			First(&sameAccount).Error
		switch {
		case err == nil:
			return domainerrors.ErrAccountAlreadyBound
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		row := connectionModel{
			ID:         uuid.NewString(),
			UserID:     connection.UserID,
			Method:     string(connection.Method),
			ExternalID: externalID,
			CreatedAt:  connection.CreatedAt,
			UpdatedAt:  connection.UpdatedAt,
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrIdentityAlreadyBound) || errors.Is(err, domainerrors.ErrAccountAlreadyBound) {
			return err
		}
		if isUniqueViolation(err) {
			// Concurrent insert raced past the read; the constraint caught it.
			return domainerrors.ErrIdentityAlreadyBound
		}
		r.logger.Error("connection upsert failed",
			"event", "signing_repo_connection_upsert_failed",
			"module", "identity-access/signing-orchestrator",
			"layer", "adapter",
			"user_id", connection.UserID,
			"method", string(connection.Method),
			"error", err.Error(),
		)
		return err
	}
	return nil
}

func (r *Repository) GetByExternalID(ctx context.Context, method entities.SigningMethod, externalID string) (entities.UserConnection, bool, error) {
	var row connectionModel
	err := r.db.WithContext(ctx).
		Where("method = ? AND external_id = ?", string(method), strings.TrimSpace(externalID)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.UserConnection{}, false, nil
		}
		return entities.UserConnection{}, false, err
	}
	return entities.UserConnection{
		ConnectionID: row.ID,
		UserID:       row.UserID,
		Method:       entities.SigningMethod(row.Method),
		ExternalID:   row.ExternalID,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}, true, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
