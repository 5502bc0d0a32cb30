package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/wastewatch-backend/internal/domain/valueobject"
)

// User проекция пользователя: только поля, нужные заявкам и наградам.
type User struct {
	ID             uuid.UUID              `db:"id" json:"id"`
	DisplayName    string                 `db:"display_name" json:"display_name"`
	Role           string                 `db:"role" json:"role"`
	RewardBalance  int64                  `db:"reward_balance" json:"reward_balance"`
	RewardLifetime int64                  `db:"reward_lifetime" json:"reward_lifetime"`
	RewardTier     valueobject.RewardTier `db:"reward_tier" json:"reward_tier"`
	CreatedAt      time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time              `db:"updated_at" json:"updated_at"`
}

// UserRef короткая ссылка на пользователя для сообщений о конфликтах.
type UserRef struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
}

// RewardCredit запрос на начисление баллов.
// Если ReportID задан, пара (ReportID, Reason) начисляется не более одного раза.
type RewardCredit struct {
	UserID   uuid.UUID
	Points   int64
	Reason   string
	ReportID *uuid.UUID
}

// RewardEvent запись журнала начислений.
type RewardEvent struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	UserID    uuid.UUID  `db:"user_id" json:"user_id"`
	ReportID  *uuid.UUID `db:"report_id" json:"report_id,omitempty"`
	Reason    string     `db:"reason" json:"reason"`
	Points    int64      `db:"points" json:"points"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// RewardAccount состояние счёта пользователя.
type RewardAccount struct {
	UserID     uuid.UUID              `json:"user_id"`
	Balance    int64                  `json:"balance"`
	Lifetime   int64                  `json:"lifetime"`
	Tier       valueobject.RewardTier `json:"tier"`
	NextTierAt *int64                 `json:"next_tier_at,omitempty"`
}

func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, DisplayName: u.DisplayName}
}
