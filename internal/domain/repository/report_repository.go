package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/wastewatch-backend/internal/domain/valueobject"
	"github.com/ignatzorin/wastewatch-backend/internal/geo"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
)

// ReportRepository хранилище заявок.
// Исполнитель заявки меняется только через ClaimIfUnassigned и Reassign.
// Все условные методы возвращают (nil, false, nil), если условие не выполнилось;
// вызывающий сам перечитывает заявку, чтобы понять причину.
type ReportRepository interface {
	Create(ctx context.Context, report *models.WasteReport) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.WasteReport, error)
	List(ctx context.Context, filter ReportFilter) ([]*models.WasteReport, int, error)
	Nearby(ctx context.Context, query NearbyReportsQuery) ([]*models.NearbyReport, error)

	// ClaimIfUnassigned атомарно назначает workerID, если исполнителя нет
	// и заявка ещё в reported или acknowledged.
	ClaimIfUnassigned(ctx context.Context, id, workerID uuid.UUID, at time.Time) (*models.WasteReport, bool, error)

	// UpdateStatus меняет статус, только если текущие статус и исполнитель совпадают с ожидаемыми.
	UpdateStatus(ctx context.Context, change StatusChange) (*models.WasteReport, bool, error)

	// Reassign административно меняет исполнителя при ожидаемом статусе.
	Reassign(ctx context.Context, id uuid.UUID, expected valueobject.ReportStatus, workerID uuid.UUID, next valueobject.ReportStatus, at time.Time) (*models.WasteReport, bool, error)

	// MarkCompletionRewardIssued выставляет флаг один раз; false, если он уже стоял.
	MarkCompletionRewardIssued(ctx context.Context, id uuid.UUID) (bool, error)

	UpdateDetails(ctx context.Context, id uuid.UUID, patch ReportPatch, at time.Time) (*models.WasteReport, error)
	SetRewards(ctx context.Context, id uuid.UUID, rewards models.ReportRewards) error
	Ping(ctx context.Context) error
}

// StatusChange условная смена статуса.
type StatusChange struct {
	ReportID         uuid.UUID
	From             valueobject.ReportStatus
	To               valueobject.ReportStatus
	ExpectedWorkerID *uuid.UUID
	Collection       *models.ActualCollection
	At               time.Time
}

// ReportPatch административная правка описательных полей.
type ReportPatch struct {
	WasteType         *string
	Category          *string
	Severity          *string
	EstimatedQuantity *string
	Priority          *int
}

type ReportFilter struct {
	Statuses         []valueobject.ReportStatus
	WasteType        string
	Severity         string
	ReporterID       *uuid.UUID
	AssignedWorkerID *uuid.UUID
	UnassignedOnly   bool
	// ByPriority: сначала срочные, затем самые старые.
	ByPriority bool
	Limit      int
	Offset     int
}

// NearbyReportsQuery: статус из Statuses, исполнитель отсутствует или равен WorkerID,
// расстояние до Center не больше RadiusMeters.
type NearbyReportsQuery struct {
	Center       geo.Point
	RadiusMeters float64
	Statuses     []valueobject.ReportStatus
	WorkerID     *uuid.UUID
	WasteType    string
	Limit        int
}
