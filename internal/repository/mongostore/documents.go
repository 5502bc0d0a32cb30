// Package mongostore хранит заявки, пункты приёма и баллы в MongoDB.
// Условное назначение исполнителя выполняется одним FindOneAndUpdate,
// геопоиск идёт через $geoNear по индексу 2dsphere.
package mongostore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ignatzorin/wastewatch-backend/internal/domain/valueobject"
	"github.com/ignatzorin/wastewatch-backend/internal/geo"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
)

const (
	colReports      = "reports"
	colFacilities   = "facilities"
	colUsers        = "users"
	colRewardEvents = "reward_events"
)

// geoPoint точка в формате GeoJSON: [долгота, широта].
type geoPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
}

func toGeoPoint(p geo.Point) geoPoint {
	return geoPoint{Type: "Point", Coordinates: []float64{p.Longitude, p.Latitude}}
}

func (g geoPoint) point() geo.Point {
	if len(g.Coordinates) != 2 {
		return geo.Point{}
	}
	return geo.Point{Longitude: g.Coordinates[0], Latitude: g.Coordinates[1]}
}

type imageDoc struct {
	Filename     string    `bson:"filename"`
	OriginalName string    `bson:"original_name"`
	ContentType  string    `bson:"content_type"`
	Size         int64     `bson:"size"`
	UploadedAt   time.Time `bson:"uploaded_at"`
}

type collectionDoc struct {
	Date     time.Time `bson:"date"`
	WorkerID string    `bson:"worker_id"`
	Notes    string    `bson:"notes,omitempty"`
}

// assigned_worker_id пишется всегда, null означает «нет исполнителя».
type reportDoc struct {
	ID                     string         `bson:"_id"`
	ReporterID             string         `bson:"reporter_id"`
	Location               geoPoint       `bson:"location"`
	Address                string         `bson:"address"`
	WasteType              string         `bson:"waste_type"`
	Category               string         `bson:"category"`
	Severity               string         `bson:"severity"`
	EstimatedQuantity      string         `bson:"estimated_quantity"`
	Description            string         `bson:"description"`
	Images                 []imageDoc     `bson:"images"`
	Status                 string         `bson:"status"`
	AssignedWorkerID       *string        `bson:"assigned_worker_id"`
	ActualCollection       *collectionDoc `bson:"actual_collection,omitempty"`
	Priority               int            `bson:"priority"`
	RewardPoints           int64          `bson:"reward_points"`
	RewardAwardedAt        *time.Time     `bson:"reward_awarded_at,omitempty"`
	CompletionRewardIssued bool           `bson:"completion_reward_issued"`
	CreatedAt              time.Time      `bson:"created_at"`
	UpdatedAt              time.Time      `bson:"updated_at"`
}

func newReportDoc(r *models.WasteReport) reportDoc {
	doc := reportDoc{
		ID:                     r.ID.String(),
		ReporterID:             r.ReporterID.String(),
		Location:               toGeoPoint(r.Location.Point),
		Address:                r.Location.Address,
		WasteType:              r.WasteType,
		Category:               r.Category,
		Severity:               r.Severity,
		EstimatedQuantity:      r.EstimatedQuantity,
		Description:            r.Description,
		Images:                 make([]imageDoc, 0, len(r.Images)),
		Status:                 string(r.Status),
		AssignedWorkerID:       uuidPtrString(r.AssignedWorkerID),
		Priority:               r.Priority,
		RewardPoints:           r.Rewards.Points,
		RewardAwardedAt:        r.Rewards.AwardedAt,
		CompletionRewardIssued: r.CompletionRewardIssued,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}
	for _, img := range r.Images {
		doc.Images = append(doc.Images, imageDoc(img))
	}
	if c := r.ActualCollection; c != nil {
		doc.ActualCollection = &collectionDoc{Date: c.Date, WorkerID: c.WorkerID.String(), Notes: c.Notes}
	}
	return doc
}

func (d *reportDoc) toModel() *models.WasteReport {
	r := &models.WasteReport{
		ID:         parseUUID(d.ID),
		ReporterID: parseUUID(d.ReporterID),
		Location: models.ReportLocation{
			Point:   d.Location.point(),
			Address: d.Address,
		},
		WasteType:              d.WasteType,
		Category:               d.Category,
		Severity:               d.Severity,
		EstimatedQuantity:      d.EstimatedQuantity,
		Description:            d.Description,
		Images:                 make([]models.ReportImage, 0, len(d.Images)),
		Status:                 valueobject.ReportStatus(d.Status),
		AssignedWorkerID:       parseUUIDPtr(d.AssignedWorkerID),
		Priority:               d.Priority,
		Rewards:                models.ReportRewards{Points: d.RewardPoints, AwardedAt: d.RewardAwardedAt},
		CompletionRewardIssued: d.CompletionRewardIssued,
		CreatedAt:              d.CreatedAt,
		UpdatedAt:              d.UpdatedAt,
	}
	for _, img := range d.Images {
		r.Images = append(r.Images, models.ReportImage(img))
	}
	if c := d.ActualCollection; c != nil {
		r.ActualCollection = &models.ActualCollection{Date: c.Date, WorkerID: parseUUID(c.WorkerID), Notes: c.Notes}
	}
	return r
}

type facilityDoc struct {
	ID                 string    `bson:"_id"`
	Name               string    `bson:"name"`
	Type               string    `bson:"type"`
	Location           geoPoint  `bson:"location"`
	Address            string    `bson:"address"`
	AcceptedWasteTypes []string  `bson:"accepted_waste_types"`
	OperatingHours     string    `bson:"operating_hours"`
	Phone              string    `bson:"phone,omitempty"`
	Email              string    `bson:"email,omitempty"`
	Website            string    `bson:"website,omitempty"`
	Rating             float64   `bson:"rating"`
	IsActive           bool      `bson:"is_active"`
	CreatedAt          time.Time `bson:"created_at"`
	UpdatedAt          time.Time `bson:"updated_at"`
}

func newFacilityDoc(f *models.Facility) facilityDoc {
	return facilityDoc{
		ID:                 f.ID.String(),
		Name:               f.Name,
		Type:               f.Type,
		Location:           toGeoPoint(f.Location),
		Address:            f.Address,
		AcceptedWasteTypes: append([]string{}, f.AcceptedWasteTypes...),
		OperatingHours:     f.OperatingHours,
		Phone:              f.Contact.Phone,
		Email:              f.Contact.Email,
		Website:            f.Contact.Website,
		Rating:             f.Rating,
		IsActive:           f.IsActive,
		CreatedAt:          f.CreatedAt,
		UpdatedAt:          f.UpdatedAt,
	}
}

func (d *facilityDoc) toModel() *models.Facility {
	return &models.Facility{
		ID:                 parseUUID(d.ID),
		Name:               d.Name,
		Type:               d.Type,
		Location:           d.Location.point(),
		Address:            d.Address,
		AcceptedWasteTypes: d.AcceptedWasteTypes,
		OperatingHours:     d.OperatingHours,
		Contact:            models.FacilityContact{Phone: d.Phone, Email: d.Email, Website: d.Website},
		Rating:             d.Rating,
		IsActive:           d.IsActive,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

type userDoc struct {
	ID             string    `bson:"_id"`
	DisplayName    string    `bson:"display_name"`
	Role           string    `bson:"role"`
	RewardBalance  int64     `bson:"reward_balance"`
	RewardLifetime int64     `bson:"reward_lifetime"`
	RewardTier     string    `bson:"reward_tier"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

func (d *userDoc) toModel() *models.User {
	return &models.User{
		ID:             parseUUID(d.ID),
		DisplayName:    d.DisplayName,
		Role:           d.Role,
		RewardBalance:  d.RewardBalance,
		RewardLifetime: d.RewardLifetime,
		RewardTier:     valueobject.RewardTier(d.RewardTier),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type rewardEventDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	ReportID  *string   `bson:"report_id,omitempty"`
	Reason    string    `bson:"reason"`
	Points    int64     `bson:"points"`
	CreatedAt time.Time `bson:"created_at"`
}

// EnsureIndexes создаёт индексы; ошибки собираются и возвращаются одной строкой.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	specs := []struct {
		col   string
		name  string
		model mongo.IndexModel
	}{
		{colReports, "location", mongo.IndexModel{Keys: bson.D{{Key: "location", Value: "2dsphere"}}}},
		{colReports, "status", mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}, {Key: "assigned_worker_id", Value: 1}}}},
		{colReports, "reporter", mongo.IndexModel{Keys: bson.D{{Key: "reporter_id", Value: 1}, {Key: "created_at", Value: -1}}}},
		{colReports, "available", mongo.IndexModel{Keys: bson.D{{Key: "priority", Value: -1}, {Key: "created_at", Value: 1}}}},
		{colFacilities, "location", mongo.IndexModel{Keys: bson.D{{Key: "location", Value: "2dsphere"}}}},
		{colFacilities, "waste_types", mongo.IndexModel{Keys: bson.D{{Key: "accepted_waste_types", Value: 1}}}},
		{colRewardEvents, "report_reason", mongo.IndexModel{
			Keys: bson.D{{Key: "report_id", Value: 1}, {Key: "reason", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"report_id": bson.M{"$type": "string"}}),
		}},
	}

	var errs []string
	for _, s := range specs {
		if _, err := db.Collection(s.col).Indexes().CreateOne(ctx, s.model); err != nil {
			errs = append(errs, s.col+"."+s.name+": "+err.Error())
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func parseUUID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func parseUUIDPtr(s *string) *uuid.UUID {
	if s == nil {
		return nil
	}
	id := parseUUID(*s)
	return &id
}
