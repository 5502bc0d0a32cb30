package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/wastewatch-backend/internal/domain/repository"
	"github.com/ignatzorin/wastewatch-backend/internal/domain/valueobject"
	"github.com/ignatzorin/wastewatch-backend/internal/dto"
	"github.com/ignatzorin/wastewatch-backend/internal/geo"
	"github.com/ignatzorin/wastewatch-backend/internal/logger"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
	"github.com/ignatzorin/wastewatch-backend/internal/validation"
)

const facilityCachePrefix = "facilities:"

// DiscoveryConfig параметры геопоиска.
type DiscoveryConfig struct {
	DefaultRadiusMeters float64
	ResultLimit         int
	FacilityCacheTTL    time.Duration
}

// DiscoveryService поиск заявок и пунктов приёма рядом с точкой.
type DiscoveryService struct {
	reports    repository.ReportRepository
	facilities repository.FacilityRepository
	cache      Cache
	cfg        DiscoveryConfig
	now        Clock
}

func NewDiscoveryService(reports repository.ReportRepository, facilities repository.FacilityRepository, cache Cache, cfg DiscoveryConfig) *DiscoveryService {
	if cfg.DefaultRadiusMeters <= 0 {
		cfg.DefaultRadiusMeters = 5000
	}
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = 100
	}
	return &DiscoveryService{
		reports:    reports,
		facilities: facilities,
		cache:      cache,
		cfg:        cfg,
		now:        systemClock,
	}
}

// NearbyReports свободные заявки в радиусе, ближайшие первыми.
// С includeAssigned добавляются заявки, которые исполнитель уже взял.
// Без координат возвращается отфильтрованный список без расстояний, ordered=false.
func (s *DiscoveryService) NearbyReports(ctx context.Context, actor Actor, q dto.NearbyReportsQuery) ([]*models.NearbyReport, bool, error) {
	if !CanPerform(actor, ActionDiscover, nil) {
		return nil, false, apperror.New(apperror.ErrCodeForbidden, "поиск заявок доступен только исполнителям")
	}
	if err := validation.Struct(q); err != nil {
		return nil, false, err
	}
	center, hasCenter, err := pointFromQuery(q.Longitude, q.Latitude)
	if err != nil {
		return nil, false, err
	}

	statuses := []valueobject.ReportStatus{valueobject.ReportStatusReported, valueobject.ReportStatusAcknowledged}
	var workerID *uuid.UUID
	if q.IncludeAssigned && actor.IsWorker() {
		statuses = append(statuses, valueobject.ReportStatusAssigned, valueobject.ReportStatusInProgress)
		id := actor.ID
		workerID = &id
	}

	if !hasCenter {
		items, err := s.listWithoutPoint(ctx, statuses, workerID, q.WasteType)
		return items, false, err
	}

	items, err := s.reports.Nearby(ctx, repository.NearbyReportsQuery{
		Center:       center,
		RadiusMeters: s.radius(q.Radius),
		Statuses:     statuses,
		WorkerID:     workerID,
		WasteType:    q.WasteType,
		Limit:        s.cfg.ResultLimit,
	})
	if err != nil {
		return nil, false, err
	}
	return items, true, nil
}

// listWithoutPoint: свободные заявки и, при workerID, заявки этого исполнителя.
func (s *DiscoveryService) listWithoutPoint(ctx context.Context, statuses []valueobject.ReportStatus, workerID *uuid.UUID, wasteType string) ([]*models.NearbyReport, error) {
	free, _, err := s.reports.List(ctx, repository.ReportFilter{
		Statuses:       statuses,
		WasteType:      wasteType,
		UnassignedOnly: true,
		Limit:          s.cfg.ResultLimit,
	})
	if err != nil {
		return nil, err
	}
	all := free
	if workerID != nil && len(all) < s.cfg.ResultLimit {
		own, _, err := s.reports.List(ctx, repository.ReportFilter{
			Statuses:         statuses,
			WasteType:        wasteType,
			AssignedWorkerID: workerID,
			Limit:            s.cfg.ResultLimit - len(all),
		})
		if err != nil {
			return nil, err
		}
		all = append(all, own...)
	}

	out := make([]*models.NearbyReport, 0, len(all))
	for _, r := range all {
		out = append(out, &models.NearbyReport{WasteReport: *r})
	}
	return out, nil
}

// NearbyFacilities активные пункты приёма с фильтрами по типу и принимаемым отходам.
func (s *DiscoveryService) NearbyFacilities(ctx context.Context, q dto.NearbyFacilitiesQuery) ([]*models.NearbyFacility, bool, error) {
	if err := validation.Struct(q); err != nil {
		return nil, false, err
	}
	center, hasCenter, err := pointFromQuery(q.Longitude, q.Latitude)
	if err != nil {
		return nil, false, err
	}

	wasteTypes := append([]string(nil), q.WasteTypes...)
	sort.Strings(wasteTypes)
	filter := repository.FacilityFilter{Type: q.Type, WasteTypes: wasteTypes, Limit: s.cfg.ResultLimit}

	if !hasCenter {
		key := fmt.Sprintf("%slist:%s:%s", facilityCachePrefix, q.Type, strings.Join(wasteTypes, ","))
		items, err := cachedJSON(ctx, s.cache, key, s.cfg.FacilityCacheTTL, func() ([]*models.NearbyFacility, error) {
			list, err := s.facilities.List(ctx, filter)
			if err != nil {
				return nil, err
			}
			out := make([]*models.NearbyFacility, 0, len(list))
			for _, f := range list {
				out = append(out, &models.NearbyFacility{Facility: *f})
			}
			return out, nil
		})
		return items, false, err
	}

	radius := s.radius(q.Radius)
	// координаты округляются до ~1 м, чтобы соседние запросы попадали в один ключ
	key := fmt.Sprintf("%snear:%.5f:%.5f:%.0f:%s:%s", facilityCachePrefix,
		center.Longitude, center.Latitude, radius, q.Type, strings.Join(wasteTypes, ","))
	items, err := cachedJSON(ctx, s.cache, key, s.cfg.FacilityCacheTTL, func() ([]*models.NearbyFacility, error) {
		return s.facilities.Nearby(ctx, repository.NearbyFacilitiesQuery{
			Center:         center,
			RadiusMeters:   radius,
			FacilityFilter: filter,
		})
	})
	if err != nil {
		return nil, false, err
	}
	return items, true, nil
}

func (s *DiscoveryService) GetFacility(ctx context.Context, id uuid.UUID) (*models.Facility, error) {
	return s.facilities.FindByID(ctx, id)
}

// CreateFacility добавляет пункт приёма и сбрасывает кэш поиска.
func (s *DiscoveryService) CreateFacility(ctx context.Context, actor Actor, req dto.CreateFacilityRequest) (*models.Facility, error) {
	if !CanPerform(actor, ActionManageSites, nil) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "добавлять пункты приёма может только администратор")
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	point, err := geo.NewPoint(*req.Longitude, *req.Latitude)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	now := s.now()
	f := &models.Facility{
		ID:                 uuid.New(),
		Name:               strings.TrimSpace(req.Name),
		Type:               req.Type,
		Location:           point,
		Address:            strings.TrimSpace(req.Address),
		AcceptedWasteTypes: dedupe(req.AcceptedWasteTypes),
		OperatingHours:     req.OperatingHours,
		Contact: models.FacilityContact{
			Phone:   req.Contact.Phone,
			Email:   req.Contact.Email,
			Website: req.Contact.Website,
		},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.facilities.Create(ctx, f); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.InvalidateByPrefix(ctx, facilityCachePrefix)
	}

	logger.Log.WithFields(logrus.Fields{"facility_id": f.ID, "type": f.Type}).Info("добавлен пункт приёма")
	return f, nil
}

func (s *DiscoveryService) radius(r *float64) float64 {
	if r == nil {
		return s.cfg.DefaultRadiusMeters
	}
	return *r
}

// pointFromQuery: координаты передаются только парой.
func pointFromQuery(lon, lat *float64) (geo.Point, bool, error) {
	if lon == nil && lat == nil {
		return geo.Point{}, false, nil
	}
	if lon == nil || lat == nil {
		return geo.Point{}, false, apperror.New(apperror.ErrCodeValidation, "нужно указать и долготу, и широту")
	}
	p, err := geo.NewPoint(*lon, *lat)
	if err != nil {
		return geo.Point{}, false, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	return p, true, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
