// Package memory хранит данные в памяти процесса.
// Используется в тестах и при STORAGE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/wastewatch-backend/internal/domain/repository"
	"github.com/ignatzorin/wastewatch-backend/internal/domain/valueobject"
	"github.com/ignatzorin/wastewatch-backend/internal/geo"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
)

type ReportStore struct {
	mu      sync.RWMutex
	reports map[uuid.UUID]*models.WasteReport
	index   *geo.Index[uuid.UUID]
}

func NewReportStore() *ReportStore {
	return &ReportStore{
		reports: make(map[uuid.UUID]*models.WasteReport),
		index:   geo.NewIndex[uuid.UUID](geo.DefaultCellSize),
	}
}

var _ repository.ReportRepository = (*ReportStore)(nil)

func (s *ReportStore) Create(_ context.Context, report *models.WasteReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	if _, exists := s.reports[report.ID]; exists {
		return apperror.New(apperror.ErrCodeConflict, "заявка с таким идентификатором уже существует")
	}
	now := time.Now().UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	if report.UpdatedAt.IsZero() {
		report.UpdatedAt = report.CreatedAt
	}

	s.reports[report.ID] = cloneReport(report)
	s.index.Insert(report.ID, report.Location.Point)
	return nil
}

func (s *ReportStore) FindByID(_ context.Context, id uuid.UUID) (*models.WasteReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, apperror.ErrReportNotFound
	}
	return cloneReport(r), nil
}

func (s *ReportStore) ClaimIfUnassigned(_ context.Context, id, workerID uuid.UUID, at time.Time) (*models.WasteReport, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok || r.AssignedWorkerID != nil || !r.Status.IsUnassigned() {
		return nil, false, nil
	}
	w := workerID
	r.AssignedWorkerID = &w
	r.Status = valueobject.ReportStatusAssigned
	r.UpdatedAt = at
	return cloneReport(r), true, nil
}

func (s *ReportStore) UpdateStatus(_ context.Context, change repository.StatusChange) (*models.WasteReport, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[change.ReportID]
	if !ok || r.Status != change.From || !sameWorker(r.AssignedWorkerID, change.ExpectedWorkerID) {
		return nil, false, nil
	}
	r.Status = change.To
	if change.Collection != nil {
		c := *change.Collection
		r.ActualCollection = &c
	}
	r.UpdatedAt = change.At
	return cloneReport(r), true, nil
}

func (s *ReportStore) Reassign(_ context.Context, id uuid.UUID, expected valueobject.ReportStatus, workerID uuid.UUID, next valueobject.ReportStatus, at time.Time) (*models.WasteReport, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok || r.Status != expected {
		return nil, false, nil
	}
	w := workerID
	r.AssignedWorkerID = &w
	r.Status = next
	r.UpdatedAt = at
	return cloneReport(r), true, nil
}

func (s *ReportStore) MarkCompletionRewardIssued(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok {
		return false, apperror.ErrReportNotFound
	}
	if r.CompletionRewardIssued {
		return false, nil
	}
	r.CompletionRewardIssued = true
	return true, nil
}

func (s *ReportStore) UpdateDetails(_ context.Context, id uuid.UUID, patch repository.ReportPatch, at time.Time) (*models.WasteReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, apperror.ErrReportNotFound
	}
	if patch.WasteType != nil {
		r.WasteType = *patch.WasteType
	}
	if patch.Category != nil {
		r.Category = *patch.Category
	}
	if patch.Severity != nil {
		r.Severity = *patch.Severity
	}
	if patch.EstimatedQuantity != nil {
		r.EstimatedQuantity = *patch.EstimatedQuantity
	}
	if patch.Priority != nil {
		r.Priority = *patch.Priority
	}
	r.UpdatedAt = at
	return cloneReport(r), nil
}

func (s *ReportStore) SetRewards(_ context.Context, id uuid.UUID, rewards models.ReportRewards) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok {
		return apperror.ErrReportNotFound
	}
	r.Rewards = rewards
	if rewards.AwardedAt != nil {
		t := *rewards.AwardedAt
		r.Rewards.AwardedAt = &t
	}
	return nil
}

func (s *ReportStore) List(_ context.Context, filter repository.ReportFilter) ([]*models.WasteReport, int, error) {
	s.mu.RLock()
	matched := make([]*models.WasteReport, 0)
	for _, r := range s.reports {
		if matchesFilter(r, filter) {
			matched = append(matched, cloneReport(r))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if filter.ByPriority {
			if a.Priority != b.Priority {
				return a.Priority > b.Priority
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	total := len(matched)
	return paginate(matched, filter.Limit, filter.Offset), total, nil
}

func (s *ReportStore) Nearby(_ context.Context, query repository.NearbyReportsQuery) ([]*models.NearbyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keep := func(id uuid.UUID) bool {
		r, ok := s.reports[id]
		if !ok || !hasStatus(query.Statuses, r.Status) {
			return false
		}
		if query.WasteType != "" && r.WasteType != query.WasteType {
			return false
		}
		return r.AssignedWorkerID == nil || (query.WorkerID != nil && *r.AssignedWorkerID == *query.WorkerID)
	}
	tie := func(a, b uuid.UUID) int {
		return s.reports[a].CreatedAt.Compare(s.reports[b].CreatedAt)
	}

	hits := s.index.Within(query.Center, query.RadiusMeters, keep, tie)
	if query.Limit > 0 && len(hits) > query.Limit {
		hits = hits[:query.Limit]
	}

	out := make([]*models.NearbyReport, 0, len(hits))
	for _, h := range hits {
		out = append(out, &models.NearbyReport{
			WasteReport:    *cloneReport(s.reports[h.Key]),
			DistanceMeters: h.Distance,
		})
	}
	return out, nil
}

func (s *ReportStore) Ping(context.Context) error {
	return nil
}

func matchesFilter(r *models.WasteReport, f repository.ReportFilter) bool {
	if len(f.Statuses) > 0 && !hasStatus(f.Statuses, r.Status) {
		return false
	}
	if f.WasteType != "" && r.WasteType != f.WasteType {
		return false
	}
	if f.Severity != "" && r.Severity != f.Severity {
		return false
	}
	if f.ReporterID != nil && r.ReporterID != *f.ReporterID {
		return false
	}
	if f.AssignedWorkerID != nil && !r.IsAssignedTo(*f.AssignedWorkerID) {
		return false
	}
	if f.UnassignedOnly && r.AssignedWorkerID != nil {
		return false
	}
	return true
}

func hasStatus(statuses []valueobject.ReportStatus, s valueobject.ReportStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func sameWorker(current, expected *uuid.UUID) bool {
	if current == nil || expected == nil {
		return current == nil && expected == nil
	}
	return *current == *expected
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func cloneReport(r *models.WasteReport) *models.WasteReport {
	cp := *r
	if r.Images != nil {
		cp.Images = append([]models.ReportImage(nil), r.Images...)
	}
	if r.AssignedWorkerID != nil {
		w := *r.AssignedWorkerID
		cp.AssignedWorkerID = &w
	}
	if r.ActualCollection != nil {
		c := *r.ActualCollection
		cp.ActualCollection = &c
	}
	if r.Rewards.AwardedAt != nil {
		t := *r.Rewards.AwardedAt
		cp.Rewards.AwardedAt = &t
	}
	return &cp
}
