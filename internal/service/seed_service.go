package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/wastewatch-backend/internal/domain/repository"
	"github.com/ignatzorin/wastewatch-backend/internal/domain/valueobject"
	"github.com/ignatzorin/wastewatch-backend/internal/geo"
	"github.com/ignatzorin/wastewatch-backend/internal/logger"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
)

// Фиксированные идентификаторы демо-пользователей, чтобы токены не менялись между запусками.
var (
	DemoAdminID   = uuid.MustParse("00000000-0000-4000-8000-000000000001")
	DemoCitizenID = uuid.MustParse("00000000-0000-4000-8000-000000000002")
	DemoWorker1ID = uuid.MustParse("00000000-0000-4000-8000-000000000003")
	DemoWorker2ID = uuid.MustParse("00000000-0000-4000-8000-000000000004")
)

// SeedService заполняет пустое окружение демо-данными для разработки.
type SeedService struct {
	users      repository.UserRepository
	facilities repository.FacilityRepository
	tokens     *TokenManager
	now        Clock
}

func NewSeedService(users repository.UserRepository, facilities repository.FacilityRepository, tokens *TokenManager) *SeedService {
	return &SeedService{users: users, facilities: facilities, tokens: tokens, now: systemClock}
}

// SeedDemo создаёт недостающих демо-пользователей и пункты приёма и пишет в лог их токены.
func (s *SeedService) SeedDemo(ctx context.Context) error {
	demo := []models.User{
		{ID: DemoAdminID, DisplayName: "Администратор", Role: models.RoleAdmin},
		{ID: DemoCitizenID, DisplayName: "Анна Жительница", Role: models.RoleCitizen},
		{ID: DemoWorker1ID, DisplayName: "Иван Сборщик", Role: models.RoleWorker},
		{ID: DemoWorker2ID, DisplayName: "Пётр Сборщик", Role: models.RoleWorker},
	}

	created := 0
	for i := range demo {
		u := demo[i]
		if _, err := s.users.FindByID(ctx, u.ID); err == nil {
			continue
		} else if !apperror.IsNotFound(err) {
			return fmt.Errorf("seed service: %w", err)
		}
		now := s.now()
		u.RewardTier = valueobject.TierForLifetime(0)
		u.CreatedAt, u.UpdatedAt = now, now
		if err := s.users.Create(ctx, &u); err != nil {
			return fmt.Errorf("seed service: не удалось создать пользователя %s: %w", u.DisplayName, err)
		}
		created++
	}

	// пункты приёма создаются только вместе с пользователями, при первом запуске
	if created == len(demo) {
		if err := s.seedFacilities(ctx); err != nil {
			return err
		}
	}

	for _, u := range demo {
		token, _, err := s.tokens.GenerateAccess(u.ID, u.Role)
		if err != nil {
			return fmt.Errorf("seed service: %w", err)
		}
		logger.Log.WithFields(logrus.Fields{
			"user_id": u.ID,
			"role":    u.Role,
			"token":   token,
		}).Info("демо-пользователь")
	}
	return nil
}

func (s *SeedService) seedFacilities(ctx context.Context) error {
	now := s.now()
	sites := []models.Facility{
		{
			Name:               "Пункт переработки на Марина-Бич",
			Type:               models.FacilityRecyclingCenter,
			Location:           geo.Point{Longitude: 80.2824, Latitude: 13.0500},
			AcceptedWasteTypes: []string{models.WasteTypePlastic, models.WasteTypePaper, models.WasteTypeGlass, models.WasteTypeMetal},
			OperatingHours:     "Пн-Сб 08:00-20:00",
			Rating:             4.5,
		},
		{
			Name:               "Приём электроники Т-Нагар",
			Type:               models.FacilityEWaste,
			Location:           geo.Point{Longitude: 80.2337, Latitude: 13.0418},
			AcceptedWasteTypes: []string{models.WasteTypeElectronic},
			OperatingHours:     "Ежедневно 10:00-18:00",
			Rating:             4.1,
		},
		{
			Name:               "Компостная площадка Адьяр",
			Type:               models.FacilityComposting,
			Location:           geo.Point{Longitude: 80.2570, Latitude: 13.0012},
			AcceptedWasteTypes: []string{models.WasteTypeOrganic},
			OperatingHours:     "Пн-Пт 07:00-15:00",
			Rating:             3.9,
		},
	}
	for i := range sites {
		f := sites[i]
		f.ID = uuid.New()
		f.IsActive = true
		f.CreatedAt, f.UpdatedAt = now, now
		if err := s.facilities.Create(ctx, &f); err != nil {
			return fmt.Errorf("seed service: не удалось создать пункт приёма %s: %w", f.Name, err)
		}
	}
	return nil
}
