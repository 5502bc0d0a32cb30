package dto

import (
	"github.com/ignatzorin/wastewatch-backend/internal/models"
)

// ClaimResponse ответ на взятие заявки.
type ClaimResponse struct {
	Outcome string              `json:"outcome"`
	Report  *models.WasteReport `json:"report"`
}

// NearbyReportsResponse: Ordered=false, если координаты не переданы и расстояние не считалось.
type NearbyReportsResponse struct {
	Items   []*models.NearbyReport `json:"items"`
	Ordered bool                   `json:"ordered"`
}

type NearbyFacilitiesResponse struct {
	Items   []*models.NearbyFacility `json:"items"`
	Ordered bool                     `json:"ordered"`
}

// HealthResponse состояние сервиса.
type HealthResponse struct {
	Status  string            `json:"status"`
	Storage string            `json:"storage"`
	Checks  map[string]string `json:"checks"`
}
