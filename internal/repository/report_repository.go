package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	domainrepo "github.com/ignatzorin/wastewatch-backend/internal/domain/repository"
	"github.com/ignatzorin/wastewatch-backend/internal/domain/valueobject"
	"github.com/ignatzorin/wastewatch-backend/internal/geo"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
	"github.com/ignatzorin/wastewatch-backend/internal/repository/common"
)

const reportColumns = `id, reporter_id, longitude, latitude, address, waste_type, category, severity,
	estimated_quantity, description, images, status, assigned_worker_id, collected_at, collected_by,
	collection_notes, priority, reward_points, reward_awarded_at, completion_reward_issued, created_at, updated_at`

// haversineSQL расстояние в метрах от ($1 долгота, $2 широта) до строки.
const haversineSQL = `2 * 6371000 * ASIN(LEAST(1, SQRT(
	POWER(SIN(RADIANS(latitude - $2) / 2), 2) +
	COS(RADIANS($2)) * COS(RADIANS(latitude)) * POWER(SIN(RADIANS(longitude - $1) / 2), 2)
)))`

// ReportRepository хранит заявки в PostgreSQL.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository создаёт экземпляр репозитория.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

var _ domainrepo.ReportRepository = (*ReportRepository)(nil)

// reportImages хранится в колонке JSONB.
type reportImages []models.ReportImage

func (ri reportImages) Value() (driver.Value, error) {
	if ri == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(ri)
}

func (ri *reportImages) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*ri = nil
		return nil
	case []byte:
		return json.Unmarshal(v, ri)
	case string:
		return json.Unmarshal([]byte(v), ri)
	default:
		return fmt.Errorf("reportImages: неподдерживаемый тип %T", src)
	}
}

type reportRow struct {
	ID                     uuid.UUID    `db:"id"`
	ReporterID             uuid.UUID    `db:"reporter_id"`
	Longitude              float64      `db:"longitude"`
	Latitude               float64      `db:"latitude"`
	Address                string       `db:"address"`
	WasteType              string       `db:"waste_type"`
	Category               string       `db:"category"`
	Severity               string       `db:"severity"`
	EstimatedQuantity      string       `db:"estimated_quantity"`
	Description            string       `db:"description"`
	Images                 reportImages `db:"images"`
	Status                 string       `db:"status"`
	AssignedWorkerID       *uuid.UUID   `db:"assigned_worker_id"`
	CollectedAt            *time.Time   `db:"collected_at"`
	CollectedBy            *uuid.UUID   `db:"collected_by"`
	CollectionNotes        *string      `db:"collection_notes"`
	Priority               int          `db:"priority"`
	RewardPoints           int64        `db:"reward_points"`
	RewardAwardedAt        *time.Time   `db:"reward_awarded_at"`
	CompletionRewardIssued bool         `db:"completion_reward_issued"`
	CreatedAt              time.Time    `db:"created_at"`
	UpdatedAt              time.Time    `db:"updated_at"`
}

type nearbyReportRow struct {
	reportRow
	Distance float64 `db:"distance"`
}

func (row *reportRow) toModel() *models.WasteReport {
	r := &models.WasteReport{
		ID:         row.ID,
		ReporterID: row.ReporterID,
		Location: models.ReportLocation{
			Point:   geo.Point{Longitude: row.Longitude, Latitude: row.Latitude},
			Address: row.Address,
		},
		WasteType:              row.WasteType,
		Category:               row.Category,
		Severity:               row.Severity,
		EstimatedQuantity:      row.EstimatedQuantity,
		Description:            row.Description,
		Images:                 []models.ReportImage(row.Images),
		Status:                 valueobject.ReportStatus(row.Status),
		AssignedWorkerID:       row.AssignedWorkerID,
		Priority:               row.Priority,
		Rewards:                models.ReportRewards{Points: row.RewardPoints, AwardedAt: row.RewardAwardedAt},
		CompletionRewardIssued: row.CompletionRewardIssued,
		CreatedAt:              row.CreatedAt,
		UpdatedAt:              row.UpdatedAt,
	}
	if row.CollectedAt != nil && row.CollectedBy != nil {
		r.ActualCollection = &models.ActualCollection{Date: *row.CollectedAt, WorkerID: *row.CollectedBy}
		if row.CollectionNotes != nil {
			r.ActualCollection.Notes = *row.CollectionNotes
		}
	}
	if r.Images == nil {
		r.Images = []models.ReportImage{}
	}
	return r
}

func (r *ReportRepository) Create(ctx context.Context, report *models.WasteReport) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	query := `
		INSERT INTO reports (id, reporter_id, longitude, latitude, address, waste_type, category, severity,
			estimated_quantity, description, images, status, priority, reward_points, reward_awarded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		report.ID,
		report.ReporterID,
		report.Location.Longitude,
		report.Location.Latitude,
		report.Location.Address,
		report.WasteType,
		report.Category,
		report.Severity,
		report.EstimatedQuantity,
		report.Description,
		reportImages(report.Images),
		string(report.Status),
		report.Priority,
		report.Rewards.Points,
		report.Rewards.AwardedAt,
	).Scan(&report.CreatedAt, &report.UpdatedAt)
	if common.IsUniqueViolation(err) {
		return apperror.Newf(apperror.ErrCodeConflict, "заявка %s уже существует", report.ID)
	}
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать заявку")
	}
	return nil
}

func (r *ReportRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.WasteReport, error) {
	var row reportRow
	err := r.db.GetContext(ctx, &row, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)
	if common.IsNoRows(err) {
		return nil, apperror.ErrReportNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить заявку")
	}
	return row.toModel(), nil
}

// ClaimIfUnassigned: условие проверяет сама база в одном UPDATE.
func (r *ReportRepository) ClaimIfUnassigned(ctx context.Context, id, workerID uuid.UUID, at time.Time) (*models.WasteReport, bool, error) {
	query := `
		UPDATE reports
		SET assigned_worker_id = $2, status = 'assigned', updated_at = $3
		WHERE id = $1
			AND assigned_worker_id IS NULL
			AND status IN ('reported', 'acknowledged')
		RETURNING ` + reportColumns
	return r.updateReturning(ctx, "не удалось назначить исполнителя", query, id, workerID, at)
}

func (r *ReportRepository) UpdateStatus(ctx context.Context, change domainrepo.StatusChange) (*models.WasteReport, bool, error) {
	var collectedAt *time.Time
	var collectedBy *uuid.UUID
	var notes *string
	if c := change.Collection; c != nil {
		collectedAt, collectedBy, notes = &c.Date, &c.WorkerID, &c.Notes
	}

	query := `
		UPDATE reports
		SET status = $3,
			collected_at = COALESCE($5, collected_at),
			collected_by = COALESCE($6, collected_by),
			collection_notes = COALESCE($7, collection_notes),
			updated_at = $8
		WHERE id = $1
			AND status = $2
			AND assigned_worker_id IS NOT DISTINCT FROM $4
		RETURNING ` + reportColumns
	return r.updateReturning(ctx, "не удалось обновить статус заявки", query,
		change.ReportID, string(change.From), string(change.To), change.ExpectedWorkerID,
		collectedAt, collectedBy, notes, change.At)
}

func (r *ReportRepository) Reassign(ctx context.Context, id uuid.UUID, expected valueobject.ReportStatus, workerID uuid.UUID, next valueobject.ReportStatus, at time.Time) (*models.WasteReport, bool, error) {
	query := `
		UPDATE reports
		SET assigned_worker_id = $3, status = $4, updated_at = $5
		WHERE id = $1 AND status = $2
		RETURNING ` + reportColumns
	return r.updateReturning(ctx, "не удалось переназначить заявку", query,
		id, string(expected), workerID, string(next), at)
}

func (r *ReportRepository) updateReturning(ctx context.Context, failMsg, query string, args ...any) (*models.WasteReport, bool, error) {
	var row reportRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if common.IsNoRows(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperror.Wrap(err, apperror.ErrCodeDatabaseError, failMsg)
	}
	return row.toModel(), true, nil
}

func (r *ReportRepository) MarkCompletionRewardIssued(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reports SET completion_reward_issued = TRUE
		WHERE id = $1 AND completion_reward_issued = FALSE
	`, id)
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось отметить начисление")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось проверить результат обновления")
	}
	return n == 1, nil
}

func (r *ReportRepository) UpdateDetails(ctx context.Context, id uuid.UUID, patch domainrepo.ReportPatch, at time.Time) (*models.WasteReport, error) {
	query := `
		UPDATE reports
		SET waste_type = COALESCE($2, waste_type),
			category = COALESCE($3, category),
			severity = COALESCE($4, severity),
			estimated_quantity = COALESCE($5, estimated_quantity),
			priority = COALESCE($6, priority),
			updated_at = $7
		WHERE id = $1
		RETURNING ` + reportColumns
	report, ok, err := r.updateReturning(ctx, "не удалось обновить заявку", query,
		id, patch.WasteType, patch.Category, patch.Severity, patch.EstimatedQuantity, patch.Priority, at)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.ErrReportNotFound
	}
	return report, nil
}

func (r *ReportRepository) SetRewards(ctx context.Context, id uuid.UUID, rewards models.ReportRewards) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE reports SET reward_points = $2, reward_awarded_at = $3 WHERE id = $1
	`, id, rewards.Points, rewards.AwardedAt)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить награду заявки")
	}
	return nil
}

// List возвращает заявки с фильтрацией и общим количеством.
func (r *ReportRepository) List(ctx context.Context, filter domainrepo.ReportFilter) ([]*models.WasteReport, int, error) {
	where, args := reportWhere(filter)
	argIndex := len(args) + 1

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM reports WHERE `+where, args...); err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось посчитать заявки")
	}

	order := "created_at DESC"
	if filter.ByPriority {
		order = "priority DESC, created_at ASC"
	}
	query := fmt.Sprintf(`SELECT %s FROM reports WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		reportColumns, where, order, argIndex, argIndex+1)
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)

	var rows []reportRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить список заявок")
	}

	out := make([]*models.WasteReport, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, total, nil
}

func reportWhere(filter domainrepo.ReportFilter) (string, []any) {
	conds := []string{"1=1"}
	args := []any{}
	add := func(format string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(format, len(args)))
	}

	if len(filter.Statuses) > 0 {
		add("status = ANY($%d)", pq.Array(statusStrings(filter.Statuses)))
	}
	if filter.WasteType != "" {
		add("waste_type = $%d", filter.WasteType)
	}
	if filter.Severity != "" {
		add("severity = $%d", filter.Severity)
	}
	if filter.ReporterID != nil {
		add("reporter_id = $%d", *filter.ReporterID)
	}
	if filter.AssignedWorkerID != nil {
		add("assigned_worker_id = $%d", *filter.AssignedWorkerID)
	}
	if filter.UnassignedOnly {
		conds = append(conds, "assigned_worker_id IS NULL")
	}
	return strings.Join(conds, " AND "), args
}

// Nearby: прямоугольник отсекает кандидатов по индексу, точное расстояние считается формулой гаверсинусов.
func (r *ReportRepository) Nearby(ctx context.Context, q domainrepo.NearbyReportsQuery) ([]*models.NearbyReport, error) {
	box := geo.BoundsAround(q.Center, q.RadiusMeters)
	args := []any{
		q.Center.Longitude, q.Center.Latitude,
		box.MinLatitude, box.MaxLatitude, box.MinLongitude, box.MaxLongitude,
		pq.Array(statusStrings(q.Statuses)), q.WorkerID, q.RadiusMeters, q.Limit,
	}
	wasteClause := ""
	if q.WasteType != "" {
		args = append(args, q.WasteType)
		wasteClause = fmt.Sprintf(" AND waste_type = $%d", len(args))
	}

	query := `
		SELECT * FROM (
			SELECT ` + reportColumns + `, ` + haversineSQL + ` AS distance
			FROM reports
			WHERE latitude BETWEEN $3 AND $4
				AND longitude BETWEEN $5 AND $6
				AND status = ANY($7)
				AND (assigned_worker_id IS NULL OR assigned_worker_id = $8)` + wasteClause + `
		) candidates
		WHERE distance <= $9
		ORDER BY distance ASC, created_at ASC
		LIMIT $10
	`

	var rows []nearbyReportRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось выполнить геопоиск заявок")
	}

	out := make([]*models.NearbyReport, 0, len(rows))
	for i := range rows {
		out = append(out, &models.NearbyReport{
			WasteReport:    *rows[i].toModel(),
			DistanceMeters: rows[i].Distance,
		})
	}
	return out, nil
}

func (r *ReportRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func statusStrings(statuses []valueobject.ReportStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
