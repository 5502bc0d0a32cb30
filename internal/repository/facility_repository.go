package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	domainrepo "github.com/ignatzorin/wastewatch-backend/internal/domain/repository"
	"github.com/ignatzorin/wastewatch-backend/internal/geo"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
	"github.com/ignatzorin/wastewatch-backend/internal/repository/common"
)

const facilityColumns = `id, name, type, longitude, latitude, address, accepted_waste_types, operating_hours,
	contact_phone, contact_email, contact_website, rating, is_active, created_at, updated_at`

// FacilityRepository хранит пункты приёма в PostgreSQL.
type FacilityRepository struct {
	db *sqlx.DB
}

func NewFacilityRepository(db *sqlx.DB) *FacilityRepository {
	return &FacilityRepository{db: db}
}

var _ domainrepo.FacilityRepository = (*FacilityRepository)(nil)

type facilityRow struct {
	ID                 uuid.UUID      `db:"id"`
	Name               string         `db:"name"`
	Type               string         `db:"type"`
	Longitude          float64        `db:"longitude"`
	Latitude           float64        `db:"latitude"`
	Address            string         `db:"address"`
	AcceptedWasteTypes pq.StringArray `db:"accepted_waste_types"`
	OperatingHours     string         `db:"operating_hours"`
	ContactPhone       string         `db:"contact_phone"`
	ContactEmail       string         `db:"contact_email"`
	ContactWebsite     string         `db:"contact_website"`
	Rating             float64        `db:"rating"`
	IsActive           bool           `db:"is_active"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

type nearbyFacilityRow struct {
	facilityRow
	Distance float64 `db:"distance"`
}

func (row *facilityRow) toModel() *models.Facility {
	return &models.Facility{
		ID:                 row.ID,
		Name:               row.Name,
		Type:               row.Type,
		Location:           geo.Point{Longitude: row.Longitude, Latitude: row.Latitude},
		Address:            row.Address,
		AcceptedWasteTypes: []string(row.AcceptedWasteTypes),
		OperatingHours:     row.OperatingHours,
		Contact: models.FacilityContact{
			Phone:   row.ContactPhone,
			Email:   row.ContactEmail,
			Website: row.ContactWebsite,
		},
		Rating:    row.Rating,
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func (r *FacilityRepository) Create(ctx context.Context, f *models.Facility) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	query := `
		INSERT INTO facilities (id, name, type, longitude, latitude, address, accepted_waste_types,
			operating_hours, contact_phone, contact_email, contact_website, rating, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		f.ID, f.Name, f.Type, f.Location.Longitude, f.Location.Latitude, f.Address,
		pq.Array(f.AcceptedWasteTypes), f.OperatingHours,
		f.Contact.Phone, f.Contact.Email, f.Contact.Website, f.Rating, f.IsActive,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать пункт приёма")
	}
	return nil
}

func (r *FacilityRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Facility, error) {
	var row facilityRow
	err := r.db.GetContext(ctx, &row, `SELECT `+facilityColumns+` FROM facilities WHERE id = $1`, id)
	if common.IsNoRows(err) {
		return nil, apperror.ErrFacilityNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить пункт приёма")
	}
	return row.toModel(), nil
}

func facilityWhere(filter domainrepo.FacilityFilter, args []any) (string, []any) {
	where := "is_active = TRUE"
	if filter.Type != "" {
		args = append(args, filter.Type)
		where += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if len(filter.WasteTypes) > 0 {
		args = append(args, pq.Array(filter.WasteTypes))
		where += fmt.Sprintf(" AND accepted_waste_types @> $%d", len(args))
	}
	return where, args
}

func (r *FacilityRepository) List(ctx context.Context, filter domainrepo.FacilityFilter) ([]*models.Facility, error) {
	where, args := facilityWhere(filter, nil)
	args = append(args, filter.Limit)
	query := fmt.Sprintf(`SELECT %s FROM facilities WHERE %s ORDER BY name LIMIT $%d`, facilityColumns, where, len(args))

	var rows []facilityRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить список пунктов приёма")
	}
	out := make([]*models.Facility, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

func (r *FacilityRepository) Nearby(ctx context.Context, q domainrepo.NearbyFacilitiesQuery) ([]*models.NearbyFacility, error) {
	box := geo.BoundsAround(q.Center, q.RadiusMeters)
	args := []any{
		q.Center.Longitude, q.Center.Latitude,
		box.MinLatitude, box.MaxLatitude, box.MinLongitude, box.MaxLongitude,
		q.RadiusMeters, q.Limit,
	}
	where, args := facilityWhere(q.FacilityFilter, args)

	query := `
		SELECT * FROM (
			SELECT ` + facilityColumns + `, ` + haversineSQL + ` AS distance
			FROM facilities
			WHERE latitude BETWEEN $3 AND $4
				AND longitude BETWEEN $5 AND $6
				AND ` + where + `
		) candidates
		WHERE distance <= $7
		ORDER BY distance ASC, created_at ASC
		LIMIT $8
	`

	var rows []nearbyFacilityRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось выполнить геопоиск пунктов приёма")
	}
	out := make([]*models.NearbyFacility, 0, len(rows))
	for i := range rows {
		out = append(out, &models.NearbyFacility{
			Facility:       *rows[i].toModel(),
			DistanceMeters: rows[i].Distance,
		})
	}
	return out, nil
}
