package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/wastewatch-backend/internal/domain/valueobject"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error)

	// ApplyCredit добавляет баллы к балансу и накопленной сумме.
	// Возвращает новую накопленную сумму; applied=false, если событие с тем же
	// (ReportID, Reason) уже было записано.
	ApplyCredit(ctx context.Context, credit models.RewardCredit) (lifetime int64, applied bool, err error)

	// SetTier записывает уровень, только если накопленная сумма всё ещё равна lifetime.
	SetTier(ctx context.Context, userID uuid.UUID, tier valueobject.RewardTier, lifetime int64) error
}
