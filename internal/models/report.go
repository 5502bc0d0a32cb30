package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/wastewatch-backend/internal/domain/valueobject"
	"github.com/ignatzorin/wastewatch-backend/internal/geo"
)

// WasteReport описывает обращение жителя о загрязнении.
type WasteReport struct {
	ID                uuid.UUID                `json:"id"`
	ReporterID        uuid.UUID                `json:"reporter_id"`
	Location          ReportLocation           `json:"location"`
	WasteType         string                   `json:"waste_type"`
	Category          string                   `json:"category"`
	Severity          string                   `json:"severity"`
	EstimatedQuantity string                   `json:"estimated_quantity"`
	Description       string                   `json:"description"`
	Images            []ReportImage            `json:"images"`
	Status            valueobject.ReportStatus `json:"status"`
	AssignedWorkerID  *uuid.UUID               `json:"assigned_worker_id,omitempty"`
	ActualCollection  *ActualCollection        `json:"actual_collection,omitempty"`
	Priority          int                      `json:"priority"`
	Rewards           ReportRewards            `json:"rewards"`
	// CompletionRewardIssued выставляется один раз, до начисления баллов за выполнение.
	CompletionRewardIssued bool      `json:"-"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// ReportLocation точка на карте и необязательный адрес.
type ReportLocation struct {
	geo.Point
	Address string `json:"address,omitempty"`
}

// ReportImage ссылка на сохранённое изображение.
type ReportImage struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// ActualCollection заполняется при переходе в completed.
type ActualCollection struct {
	Date     time.Time `json:"date"`
	WorkerID uuid.UUID `json:"worker_id"`
	Notes    string    `json:"notes,omitempty"`
}

// ReportRewards баллы, начисленные автору при создании.
type ReportRewards struct {
	Points    int64      `json:"points"`
	AwardedAt *time.Time `json:"awarded_at,omitempty"`
}

// NearbyReport результат геопоиска с расстоянием в метрах.
type NearbyReport struct {
	WasteReport
	DistanceMeters float64 `json:"distance_meters"`
}

// IsAssignedTo проверяет, что исполнитель заявки совпадает с workerID.
func (r *WasteReport) IsAssignedTo(workerID uuid.UUID) bool {
	return r.AssignedWorkerID != nil && *r.AssignedWorkerID == workerID
}

// CheckInvariants: исполнитель отсутствует тогда и только тогда, когда статус reported или acknowledged;
// actualCollection есть только у completed и у того, что из него выросло.
func (r *WasteReport) CheckInvariants() bool {
	if r.Status != valueobject.ReportStatusRejected && r.Status.IsUnassigned() != (r.AssignedWorkerID == nil) {
		return false
	}
	switch r.Status {
	case valueobject.ReportStatusCompleted, valueobject.ReportStatusVerified:
		return r.ActualCollection != nil
	case valueobject.ReportStatusRejected:
		return true
	default:
		return r.ActualCollection == nil
	}
}
