package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/wastewatch-backend/internal/domain/repository"
	"github.com/ignatzorin/wastewatch-backend/internal/geo"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
)

type FacilityStore struct {
	mu         sync.RWMutex
	facilities map[uuid.UUID]*models.Facility
	index      *geo.Index[uuid.UUID]
}

func NewFacilityStore() *FacilityStore {
	return &FacilityStore{
		facilities: make(map[uuid.UUID]*models.Facility),
		index:      geo.NewIndex[uuid.UUID](geo.DefaultCellSize),
	}
}

var _ repository.FacilityRepository = (*FacilityStore)(nil)

func (s *FacilityStore) Create(_ context.Context, f *models.Facility) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = f.CreatedAt
	}
	s.facilities[f.ID] = cloneFacility(f)
	s.index.Insert(f.ID, f.Location)
	return nil
}

func (s *FacilityStore) FindByID(_ context.Context, id uuid.UUID) (*models.Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.facilities[id]
	if !ok {
		return nil, apperror.ErrFacilityNotFound
	}
	return cloneFacility(f), nil
}

func (s *FacilityStore) List(_ context.Context, filter repository.FacilityFilter) ([]*models.Facility, error) {
	s.mu.RLock()
	out := make([]*models.Facility, 0)
	for _, f := range s.facilities {
		if facilityMatches(f, filter) {
			out = append(out, cloneFacility(f))
		}
	}
	s.mu.RUnlock()

	// порядок не задан, но стабилен между вызовами
	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].Name, out[j].Name) < 0
	})
	return paginate(out, filter.Limit, 0), nil
}

func (s *FacilityStore) Nearby(_ context.Context, query repository.NearbyFacilitiesQuery) ([]*models.NearbyFacility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keep := func(id uuid.UUID) bool {
		f, ok := s.facilities[id]
		return ok && facilityMatches(f, query.FacilityFilter)
	}
	tie := func(a, b uuid.UUID) int {
		return s.facilities[a].CreatedAt.Compare(s.facilities[b].CreatedAt)
	}

	hits := s.index.Within(query.Center, query.RadiusMeters, keep, tie)
	if query.Limit > 0 && len(hits) > query.Limit {
		hits = hits[:query.Limit]
	}

	out := make([]*models.NearbyFacility, 0, len(hits))
	for _, h := range hits {
		out = append(out, &models.NearbyFacility{
			Facility:       *cloneFacility(s.facilities[h.Key]),
			DistanceMeters: h.Distance,
		})
	}
	return out, nil
}

func facilityMatches(f *models.Facility, filter repository.FacilityFilter) bool {
	if !f.IsActive {
		return false
	}
	if filter.Type != "" && f.Type != filter.Type {
		return false
	}
	return f.Accepts(filter.WasteTypes)
}

func cloneFacility(f *models.Facility) *models.Facility {
	cp := *f
	cp.AcceptedWasteTypes = append([]string(nil), f.AcceptedWasteTypes...)
	return &cp
}
