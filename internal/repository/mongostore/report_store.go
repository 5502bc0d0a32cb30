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
	"github.com/ignatzorin/wastewatch-backend/internal/domain/valueobject"
	"github.com/ignatzorin/wastewatch-backend/internal/geo"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
)

// $geoNear считает расстояние с другим радиусом Земли, поэтому кандидатов берём
// с небольшим запасом и пересчитываем расстояние сами.
const geoNearSlack = 1.002

type ReportStore struct {
	col *mongo.Collection
}

func NewReportStore(db *mongo.Database) *ReportStore {
	return &ReportStore{col: db.Collection(colReports)}
}

var _ repository.ReportRepository = (*ReportStore)(nil)

func (s *ReportStore) Create(ctx context.Context, report *models.WasteReport) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	now := time.Now().UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	report.UpdatedAt = report.CreatedAt

	if _, err := s.col.InsertOne(ctx, newReportDoc(report)); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать заявку")
	}
	return nil
}

func (s *ReportStore) FindByID(ctx context.Context, id uuid.UUID) (*models.WasteReport, error) {
	var doc reportDoc
	err := s.col.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.ErrReportNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить заявку")
	}
	return doc.toModel(), nil
}

// ClaimIfUnassigned: фильтр и изменение применяются к документу атомарно.
func (s *ReportStore) ClaimIfUnassigned(ctx context.Context, id, workerID uuid.UUID, at time.Time) (*models.WasteReport, bool, error) {
	filter := bson.M{
		"_id":                id.String(),
		"assigned_worker_id": nil,
		"status": bson.M{"$in": bson.A{
			string(valueobject.ReportStatusReported),
			string(valueobject.ReportStatusAcknowledged),
		}},
	}
	update := bson.M{"$set": bson.M{
		"assigned_worker_id": workerID.String(),
		"status":             string(valueobject.ReportStatusAssigned),
		"updated_at":         at,
	}}
	return s.findAndUpdate(ctx, filter, update, "не удалось назначить исполнителя")
}

func (s *ReportStore) UpdateStatus(ctx context.Context, change repository.StatusChange) (*models.WasteReport, bool, error) {
	filter := bson.M{
		"_id":                change.ReportID.String(),
		"status":             string(change.From),
		"assigned_worker_id": uuidPtrString(change.ExpectedWorkerID),
	}
	set := bson.M{
		"status":     string(change.To),
		"updated_at": change.At,
	}
	if c := change.Collection; c != nil {
		set["actual_collection"] = collectionDoc{Date: c.Date, WorkerID: c.WorkerID.String(), Notes: c.Notes}
	}
	return s.findAndUpdate(ctx, filter, bson.M{"$set": set}, "не удалось обновить статус заявки")
}

func (s *ReportStore) Reassign(ctx context.Context, id uuid.UUID, expected valueobject.ReportStatus, workerID uuid.UUID, next valueobject.ReportStatus, at time.Time) (*models.WasteReport, bool, error) {
	filter := bson.M{"_id": id.String(), "status": string(expected)}
	update := bson.M{"$set": bson.M{
		"assigned_worker_id": workerID.String(),
		"status":             string(next),
		"updated_at":         at,
	}}
	return s.findAndUpdate(ctx, filter, update, "не удалось переназначить заявку")
}

func (s *ReportStore) findAndUpdate(ctx context.Context, filter, update bson.M, failMsg string) (*models.WasteReport, bool, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc reportDoc
	err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperror.Wrap(err, apperror.ErrCodeDatabaseError, failMsg)
	}
	return doc.toModel(), true, nil
}

func (s *ReportStore) MarkCompletionRewardIssued(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id.String(), "completion_reward_issued": false},
		bson.M{"$set": bson.M{"completion_reward_issued": true}},
	)
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось отметить начисление")
	}
	return res.ModifiedCount == 1, nil
}

func (s *ReportStore) UpdateDetails(ctx context.Context, id uuid.UUID, patch repository.ReportPatch, at time.Time) (*models.WasteReport, error) {
	set := bson.M{"updated_at": at}
	if patch.WasteType != nil {
		set["waste_type"] = *patch.WasteType
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}
	if patch.Severity != nil {
		set["severity"] = *patch.Severity
	}
	if patch.EstimatedQuantity != nil {
		set["estimated_quantity"] = *patch.EstimatedQuantity
	}
	if patch.Priority != nil {
		set["priority"] = *patch.Priority
	}

	report, ok, err := s.findAndUpdate(ctx, bson.M{"_id": id.String()}, bson.M{"$set": set}, "не удалось обновить заявку")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.ErrReportNotFound
	}
	return report, nil
}

func (s *ReportStore) SetRewards(ctx context.Context, id uuid.UUID, rewards models.ReportRewards) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": bson.M{
		"reward_points":     rewards.Points,
		"reward_awarded_at": rewards.AwardedAt,
	}})
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить награду заявки")
	}
	return nil
}

func reportFilter(f repository.ReportFilter) bson.M {
	filter := bson.M{}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": statusValues(f.Statuses)}
	}
	if f.WasteType != "" {
		filter["waste_type"] = f.WasteType
	}
	if f.Severity != "" {
		filter["severity"] = f.Severity
	}
	if f.ReporterID != nil {
		filter["reporter_id"] = f.ReporterID.String()
	}
	if f.AssignedWorkerID != nil {
		filter["assigned_worker_id"] = f.AssignedWorkerID.String()
	} else if f.UnassignedOnly {
		filter["assigned_worker_id"] = nil
	}
	return filter
}

func (s *ReportStore) List(ctx context.Context, f repository.ReportFilter) ([]*models.WasteReport, int, error) {
	filter := reportFilter(f)

	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось посчитать заявки")
	}

	sortSpec := bson.D{{Key: "created_at", Value: -1}}
	if f.ByPriority {
		sortSpec = bson.D{{Key: "priority", Value: -1}, {Key: "created_at", Value: 1}}
	}
	opts := options.Find().SetSort(sortSpec).SetSkip(int64(f.Offset))
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить список заявок")
	}
	var docs []reportDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось прочитать список заявок")
	}

	out := make([]*models.WasteReport, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, int(total), nil
}

func (s *ReportStore) Nearby(ctx context.Context, q repository.NearbyReportsQuery) ([]*models.NearbyReport, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	query := bson.M{"status": bson.M{"$in": statusValues(q.Statuses)}}
	if q.WorkerID != nil {
		query["$or"] = bson.A{
			bson.M{"assigned_worker_id": nil},
			bson.M{"assigned_worker_id": q.WorkerID.String()},
		}
	} else {
		query["assigned_worker_id"] = nil
	}
	if q.WasteType != "" {
		query["waste_type"] = q.WasteType
	}

	pipeline := mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.M{
			"near":          toGeoPoint(q.Center),
			"distanceField": "distance",
			"maxDistance":   q.RadiusMeters * geoNearSlack,
			"spherical":     true,
			"query":         query,
		}}},
		{{Key: "$limit", Value: limit * 2}},
	}

	cur, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось выполнить геопоиск заявок")
	}
	var docs []reportDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось прочитать результаты геопоиска")
	}

	out := make([]*models.NearbyReport, 0, len(docs))
	for i := range docs {
		r := docs[i].toModel()
		d := geo.Distance(q.Center, r.Location.Point)
		if d > q.RadiusMeters {
			continue
		}
		out = append(out, &models.NearbyReport{WasteReport: *r, DistanceMeters: d})
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

func (s *ReportStore) Ping(ctx context.Context) error {
	return s.col.Database().Client().Ping(ctx, nil)
}

func statusValues(statuses []valueobject.ReportStatus) bson.A {
	out := make(bson.A, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}
