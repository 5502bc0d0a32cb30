package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	domainrepo "github.com/ignatzorin/wastewatch-backend/internal/domain/repository"
	"github.com/ignatzorin/wastewatch-backend/internal/domain/valueobject"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
	"github.com/ignatzorin/wastewatch-backend/internal/repository/common"
)

const userColumns = `id, display_name, role, reward_balance, reward_lifetime, reward_tier, created_at, updated_at`

// UserRepository отвечает за таблицы users и reward_events.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

var _ domainrepo.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.RewardTier == "" {
		user.RewardTier = valueobject.TierForLifetime(user.RewardLifetime)
	}
	query := `
		INSERT INTO users (id, display_name, role, reward_balance, reward_lifetime, reward_tier)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		user.ID, user.DisplayName, user.Role, user.RewardBalance, user.RewardLifetime, string(user.RewardTier),
	).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		if common.IsUniqueViolation(err) {
			return apperror.Newf(apperror.ErrCodeConflict, "пользователь %s уже существует", user.ID)
		}
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать пользователя")
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if common.IsNoRows(err) {
		return nil, apperror.ErrUserNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить пользователя")
	}
	return &user, nil
}

func (r *UserRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error) {
	out := make(map[uuid.UUID]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}

	var users []models.User
	if err := r.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1::uuid[])`, pq.Array(raw)); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить пользователей")
	}
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

// ApplyCredit записывает событие и меняет баланс в одной транзакции.
// Повтор с тем же (report_id, reason) ничего не меняет.
func (r *UserRepository) ApplyCredit(ctx context.Context, credit models.RewardCredit) (int64, bool, error) {
	var lifetime int64
	applied := false

	err := common.InTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &lifetime,
			`SELECT reward_lifetime FROM users WHERE id = $1 FOR UPDATE`, credit.UserID); err != nil {
			if common.IsNoRows(err) {
				return apperror.ErrUserNotFound
			}
			return err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO reward_events (user_id, report_id, reason, points)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (report_id, reason) WHERE report_id IS NOT NULL DO NOTHING
		`, credit.UserID, credit.ReportID, credit.Reason, credit.Points)
		if err != nil {
			return fmt.Errorf("insert reward event: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// событие уже записано
			return nil
		}

		if err := tx.GetContext(ctx, &lifetime, `
			UPDATE users
			SET reward_balance = reward_balance + $2,
				reward_lifetime = reward_lifetime + $2,
				updated_at = NOW()
			WHERE id = $1
			RETURNING reward_lifetime
		`, credit.UserID, credit.Points); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		if apperror.IsNotFound(err) {
			return 0, false, err
		}
		return 0, false, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось начислить баллы")
	}
	return lifetime, applied, nil
}

func (r *UserRepository) SetTier(ctx context.Context, userID uuid.UUID, tier valueobject.RewardTier, lifetime int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET reward_tier = $2 WHERE id = $1 AND reward_lifetime = $3
	`, userID, string(tier), lifetime)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить уровень")
	}
	return nil
}
