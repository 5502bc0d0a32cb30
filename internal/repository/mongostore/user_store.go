package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ignatzorin/wastewatch-backend/internal/domain/repository"
	"github.com/ignatzorin/wastewatch-backend/internal/domain/valueobject"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
)

type UserStore struct {
	users  *mongo.Collection
	events *mongo.Collection
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{
		users:  db.Collection(colUsers),
		events: db.Collection(colRewardEvents),
	}
}

var _ repository.UserRepository = (*UserStore)(nil)

func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.RewardTier == "" {
		u.RewardTier = valueobject.TierForLifetime(u.RewardLifetime)
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	_, err := s.users.InsertOne(ctx, userDoc{
		ID:             u.ID.String(),
		DisplayName:    u.DisplayName,
		Role:           u.Role,
		RewardBalance:  u.RewardBalance,
		RewardLifetime: u.RewardLifetime,
		RewardTier:     string(u.RewardTier),
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	})
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать пользователя")
	}
	return nil
}

func (s *UserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.ErrUserNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить пользователя")
	}
	return doc.toModel(), nil
}

func (s *UserStore) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error) {
	out := make(map[uuid.UUID]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	raw := make(bson.A, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}

	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": raw}})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить пользователей")
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось прочитать пользователей")
	}
	for i := range docs {
		u := docs[i].toModel()
		out[u.ID] = u
	}
	return out, nil
}

// ApplyCredit: без транзакций. Сначала пишется событие (уникальный индекс
// по report_id+reason отсекает повтор), затем $inc по балансу.
// Падение между двумя записями теряет начисление, но не удваивает его.
func (s *UserStore) ApplyCredit(ctx context.Context, credit models.RewardCredit) (int64, bool, error) {
	user, err := s.FindByID(ctx, credit.UserID)
	if err != nil {
		return 0, false, err
	}

	event := rewardEventDoc{
		ID:        uuid.New().String(),
		UserID:    credit.UserID.String(),
		ReportID:  uuidPtrString(credit.ReportID),
		Reason:    credit.Reason,
		Points:    credit.Points,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.events.InsertOne(ctx, event); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.RewardLifetime, false, nil
		}
		return 0, false, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось записать начисление")
	}

	var doc userDoc
	err = s.users.FindOneAndUpdate(ctx,
		bson.M{"_id": credit.UserID.String()},
		bson.M{
			"$inc": bson.M{"reward_balance": credit.Points, "reward_lifetime": credit.Points},
			"$set": bson.M{"updated_at": event.CreatedAt},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, false, apperror.ErrUserNotFound
	}
	if err != nil {
		return 0, false, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось начислить баллы")
	}
	return doc.RewardLifetime, true, nil
}

func (s *UserStore) SetTier(ctx context.Context, userID uuid.UUID, tier valueobject.RewardTier, lifetime int64) error {
	_, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID.String(), "reward_lifetime": lifetime},
		bson.M{"$set": bson.M{"reward_tier": string(tier)}},
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить уровень")
	}
	return nil
}
