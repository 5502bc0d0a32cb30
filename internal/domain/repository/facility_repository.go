package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/wastewatch-backend/internal/geo"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
)

type FacilityRepository interface {
	Create(ctx context.Context, facility *models.Facility) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Facility, error)
	List(ctx context.Context, filter FacilityFilter) ([]*models.Facility, error)
	Nearby(ctx context.Context, query NearbyFacilitiesQuery) ([]*models.NearbyFacility, error)
}

// FacilityFilter учитывает только активные пункты.
type FacilityFilter struct {
	Type       string
	WasteTypes []string
	Limit      int
}

type NearbyFacilitiesQuery struct {
	Center       geo.Point
	RadiusMeters float64
	FacilityFilter
}
