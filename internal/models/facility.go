package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/wastewatch-backend/internal/geo"
)

// Facility пункт приёма или переработки отходов.
type Facility struct {
	ID                 uuid.UUID       `json:"id"`
	Name               string          `json:"name"`
	Type               string          `json:"type"`
	Location           geo.Point       `json:"location"`
	Address            string          `json:"address,omitempty"`
	AcceptedWasteTypes []string        `json:"accepted_waste_types"`
	OperatingHours     string          `json:"operating_hours,omitempty"`
	Contact            FacilityContact `json:"contact"`
	Rating             float64         `json:"rating"`
	IsActive           bool            `json:"is_active"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type FacilityContact struct {
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`
}

// NearbyFacility результат геопоиска с расстоянием в метрах.
type NearbyFacility struct {
	Facility
	DistanceMeters float64 `json:"distance_meters"`
}

// Accepts проверяет, принимает ли пункт все перечисленные типы отходов.
func (f *Facility) Accepts(wasteTypes []string) bool {
	for _, want := range wasteTypes {
		found := false
		for _, have := range f.AcceptedWasteTypes {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
