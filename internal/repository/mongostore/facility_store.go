package mongostore

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ignatzorin/wastewatch-backend/internal/domain/repository"
	"github.com/ignatzorin/wastewatch-backend/internal/geo"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
)

type FacilityStore struct {
	col *mongo.Collection
}

func NewFacilityStore(db *mongo.Database) *FacilityStore {
	return &FacilityStore{col: db.Collection(colFacilities)}
}

var _ repository.FacilityRepository = (*FacilityStore)(nil)

func (s *FacilityStore) Create(ctx context.Context, f *models.Facility) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	f.UpdatedAt = f.CreatedAt

	if _, err := s.col.InsertOne(ctx, newFacilityDoc(f)); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать пункт приёма")
	}
	return nil
}

func (s *FacilityStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Facility, error) {
	var doc facilityDoc
	err := s.col.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.ErrFacilityNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить пункт приёма")
	}
	return doc.toModel(), nil
}

func facilityFilter(f repository.FacilityFilter) bson.M {
	filter := bson.M{"is_active": true}
	if f.Type != "" {
		filter["type"] = f.Type
	}
	if len(f.WasteTypes) > 0 {
		filter["accepted_waste_types"] = bson.M{"$all": f.WasteTypes}
	}
	return filter
}

func (s *FacilityStore) List(ctx context.Context, f repository.FacilityFilter) ([]*models.Facility, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	cur, err := s.col.Find(ctx, facilityFilter(f), opts)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить список пунктов приёма")
	}
	var docs []facilityDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось прочитать список пунктов приёма")
	}
	out := make([]*models.Facility, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, nil
}

func (s *FacilityStore) Nearby(ctx context.Context, q repository.NearbyFacilitiesQuery) ([]*models.NearbyFacility, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	pipeline := mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.M{
			"near":          toGeoPoint(q.Center),
			"distanceField": "distance",
			"maxDistance":   q.RadiusMeters * geoNearSlack,
			"spherical":     true,
			"query":         facilityFilter(q.FacilityFilter),
		}}},
		{{Key: "$limit", Value: limit * 2}},
	}

	cur, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось выполнить геопоиск пунктов приёма")
	}
	var docs []facilityDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось прочитать результаты геопоиска")
	}

	out := make([]*models.NearbyFacility, 0, len(docs))
	for i := range docs {
		f := docs[i].toModel()
		d := geo.Distance(q.Center, f.Location)
		if d > q.RadiusMeters {
			continue
		}
		out = append(out, &models.NearbyFacility{Facility: *f, DistanceMeters: d})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters < out[j].DistanceMeters
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
