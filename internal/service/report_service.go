package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/wastewatch-backend/internal/domain/repository"
	"github.com/ignatzorin/wastewatch-backend/internal/domain/valueobject"
	"github.com/ignatzorin/wastewatch-backend/internal/dto"
	"github.com/ignatzorin/wastewatch-backend/internal/geo"
	"github.com/ignatzorin/wastewatch-backend/internal/logger"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
	"github.com/ignatzorin/wastewatch-backend/internal/validation"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Режимы списка заявок.
const (
	ViewMine     = "mine"
	ViewAssigned = "assigned"
	ViewAll      = "all"
)

// ReportService создание, просмотр и административная правка заявок.
type ReportService struct {
	reports  repository.ReportRepository
	users    repository.UserRepository
	images   *ImageService
	rewards  *RewardService
	notifier Notifier
	now      Clock
	// availableLimit потолок выдачи свободных заявок
	availableLimit int
}

func NewReportService(
	reports repository.ReportRepository,
	users repository.UserRepository,
	images *ImageService,
	rewards *RewardService,
	notifier Notifier,
	availableLimit int,
) *ReportService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if availableLimit <= 0 {
		availableLimit = maxPageSize
	}
	return &ReportService{
		reports:        reports,
		users:          users,
		images:         images,
		rewards:        rewards,
		notifier:       notifier,
		now:            systemClock,
		availableLimit: availableLimit,
	}
}

// Create сохраняет изображения, создаёт заявку без исполнителя и начисляет автору баллы.
func (s *ReportService) Create(ctx context.Context, actor Actor, req dto.CreateReportRequest, uploads []dto.ImageUpload) (*models.WasteReport, error) {
	if !CanPerform(actor, ActionSubmit, nil) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "создавать заявки могут только жители")
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	point, err := geo.NewPoint(*req.Longitude, *req.Latitude)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	images, err := s.images.StoreReportImages(ctx, uploads)
	if err != nil {
		return nil, err
	}

	now := s.now()
	report := &models.WasteReport{
		ID:                uuid.New(),
		ReporterID:        actor.ID,
		Location:          models.ReportLocation{Point: point, Address: strings.TrimSpace(req.Address)},
		WasteType:         req.WasteType,
		Category:          req.Category,
		Severity:          req.Severity,
		EstimatedQuantity: req.EstimatedQuantity,
		Description:       strings.TrimSpace(req.Description),
		Images:            images,
		Status:            valueobject.ReportStatusReported,
		Priority:          models.PriorityDefault,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.reports.Create(ctx, report); err != nil {
		s.images.DeleteImages(ctx, images)
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"report_id":   report.ID,
		"reporter_id": actor.ID,
		"waste_type":  report.WasteType,
		"images":      len(images),
	}).Info("создана заявка")

	if err := s.rewards.CreditSubmission(ctx, report); err != nil {
		// заявка уже создана, начисление можно повторить тем же ключом
		logger.Log.WithError(err).WithField("report_id", report.ID).Error("не удалось начислить баллы за заявку")
	}
	return report, nil
}

func (s *ReportService) Get(ctx context.Context, id uuid.UUID) (*models.WasteReport, error) {
	return s.reports.FindByID(ctx, id)
}

// ListResult страница заявок.
type ListResult struct {
	Items  []*models.WasteReport
	Total  int
	Limit  int
	Offset int
}

// List: житель видит только свои заявки, исполнитель по умолчанию свои назначенные,
// администратор по умолчанию все.
func (s *ReportService) List(ctx context.Context, actor Actor, q dto.ListReportsQuery) (*ListResult, error) {
	if err := validation.Struct(q); err != nil {
		return nil, err
	}

	view := q.ViewType
	if view == "" {
		switch {
		case actor.IsAdmin():
			view = ViewAll
		case actor.IsWorker():
			view = ViewAssigned
		default:
			view = ViewMine
		}
	}

	filter := repository.ReportFilter{WasteType: q.WasteType}
	switch view {
	case ViewMine:
		filter.ReporterID = &actor.ID
	case ViewAssigned:
		if !actor.IsWorker() {
			return nil, apperror.New(apperror.ErrCodeForbidden, "список назначенных заявок доступен только исполнителям")
		}
		filter.AssignedWorkerID = &actor.ID
	case ViewAll:
		if !CanPerform(actor, ActionListAll, nil) {
			return nil, apperror.New(apperror.ErrCodeForbidden, "полный список заявок недоступен")
		}
	}

	if q.Status != "" {
		st, err := valueobject.NewReportStatus(q.Status)
		if err != nil {
			return nil, apperror.Newf(apperror.ErrCodeValidation, "некорректный статус заявки: %q", q.Status)
		}
		filter.Statuses = []valueobject.ReportStatus{st}
	}

	filter.Limit, filter.Offset = pageBounds(q.Limit, q.Offset)
	items, total, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ListResult{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// ListAvailable свободные заявки: сначала срочные, среди равных самые старые.
func (s *ReportService) ListAvailable(ctx context.Context, actor Actor, q dto.AvailableReportsQuery) ([]*models.WasteReport, error) {
	if !CanPerform(actor, ActionDiscover, nil) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "свободные заявки доступны только исполнителям")
	}
	if err := validation.Struct(q); err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 || limit > s.availableLimit {
		limit = s.availableLimit
	}
	items, _, err := s.reports.List(ctx, repository.ReportFilter{
		Statuses:       []valueobject.ReportStatus{valueobject.ReportStatusReported, valueobject.ReportStatusAcknowledged},
		WasteType:      q.WasteType,
		Severity:       q.Severity,
		UnassignedOnly: true,
		ByPriority:     true,
		Limit:          limit,
	})
	return items, err
}

// Assign административно назначает или меняет исполнителя в обход взятия заявки.
func (s *ReportService) Assign(ctx context.Context, actor Actor, reportID uuid.UUID, req dto.AssignReportRequest) (*models.WasteReport, error) {
	if !CanPerform(actor, ActionAssign, nil) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "назначать исполнителей может только администратор")
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	workerID := uuid.MustParse(req.WorkerID)

	worker, err := s.users.FindByID(ctx, workerID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.New(apperror.ErrCodeValidation, "исполнитель не найден")
		}
		return nil, err
	}
	if worker.Role != models.RoleWorker {
		return nil, apperror.New(apperror.ErrCodeValidation, "назначить можно только пользователя с ролью worker")
	}

	report, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !report.Status.IsReassignable() {
		return nil, apperror.Newf(apperror.ErrCodeConflict, "в статусе %s сменить исполнителя нельзя", report.Status).
			WithDetails(map[string]any{"status": report.Status})
	}
	if report.IsAssignedTo(workerID) {
		return report, nil
	}

	next := report.Status
	if next.IsUnassigned() {
		next = valueobject.ReportStatusAssigned
	}
	updated, applied, err := s.reports.Reassign(ctx, reportID, report.Status, workerID, next, s.now())
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, apperror.New(apperror.ErrCodeConflict, "заявка была изменена другим пользователем, обновите данные")
	}

	logger.Log.WithFields(logrus.Fields{
		"report_id":  reportID,
		"admin_id":   actor.ID,
		"worker_id":  workerID,
		"previous":   report.AssignedWorkerID,
		"new_status": next,
	}).Info("исполнитель назначен администратором")

	payload := map[string]any{"report_id": reportID, "status": updated.Status}
	s.notifier.NotifyUser(workerID, EventReportAssigned, payload)
	if report.AssignedWorkerID != nil {
		s.notifier.NotifyUser(*report.AssignedWorkerID, EventReportUnassigned, payload)
	}
	if next != report.Status {
		s.notifier.NotifyUser(updated.ReporterID, EventReportStatusChanged, map[string]any{
			"report_id": reportID,
			"from":      report.Status,
			"to":        next,
		})
	}
	return updated, nil
}

// Update меняет описательные поля заявки. Местоположение и автор не меняются.
func (s *ReportService) Update(ctx context.Context, actor Actor, reportID uuid.UUID, req dto.UpdateReportRequest) (*models.WasteReport, error) {
	if !CanPerform(actor, ActionEdit, nil) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "редактировать заявки может только администратор")
	}
	if req.IsEmpty() {
		return nil, apperror.New(apperror.ErrCodeValidation, "нет полей для изменения")
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	updated, err := s.reports.UpdateDetails(ctx, reportID, repository.ReportPatch{
		WasteType:         req.WasteType,
		Category:          req.Category,
		Severity:          req.Severity,
		EstimatedQuantity: req.EstimatedQuantity,
		Priority:          req.Priority,
	}, s.now())
	if err != nil {
		return nil, err
	}
	logger.Log.WithFields(logrus.Fields{"report_id": reportID, "admin_id": actor.ID}).Info("заявка отредактирована")
	return updated, nil
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
