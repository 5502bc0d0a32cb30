package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/wastewatch-backend/internal/domain/repository"
	"github.com/ignatzorin/wastewatch-backend/internal/domain/valueobject"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
)

type eventKey struct {
	reportID uuid.UUID
	reason   string
}

type UserStore struct {
	mu     sync.RWMutex
	users  map[uuid.UUID]*models.User
	events map[eventKey]models.RewardEvent
}

func NewUserStore() *UserStore {
	return &UserStore{
		users:  make(map[uuid.UUID]*models.User),
		events: make(map[eventKey]models.RewardEvent),
	}
}

var _ repository.UserRepository = (*UserStore)(nil)

func (s *UserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.RewardTier == "" {
		user.RewardTier = valueobject.TierForLifetime(user.RewardLifetime)
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *UserStore) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperror.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *UserStore) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[uuid.UUID]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (s *UserStore) ApplyCredit(_ context.Context, credit models.RewardCredit) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[credit.UserID]
	if !ok {
		return 0, false, apperror.ErrUserNotFound
	}

	event := models.RewardEvent{
		ID:        uuid.New(),
		UserID:    credit.UserID,
		ReportID:  credit.ReportID,
		Reason:    credit.Reason,
		Points:    credit.Points,
		CreatedAt: time.Now().UTC(),
	}
	if credit.ReportID != nil {
		key := eventKey{reportID: *credit.ReportID, reason: credit.Reason}
		if _, seen := s.events[key]; seen {
			return u.RewardLifetime, false, nil
		}
		s.events[key] = event
	}

	u.RewardBalance += credit.Points
	u.RewardLifetime += credit.Points
	u.UpdatedAt = event.CreatedAt
	return u.RewardLifetime, true, nil
}

func (s *UserStore) SetTier(_ context.Context, userID uuid.UUID, tier valueobject.RewardTier, lifetime int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return apperror.ErrUserNotFound
	}
	if u.RewardLifetime == lifetime {
		u.RewardTier = tier
	}
	return nil
}
