package service

import (
	"context"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/wastewatch-backend/internal/domain/repository"
	"github.com/ignatzorin/wastewatch-backend/internal/domain/valueobject"
	"github.com/ignatzorin/wastewatch-backend/internal/logger"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
)

const maxNotesLength = 1000

// StatusService проводит заявку по жизненному циклу.
type StatusService struct {
	reports  repository.ReportRepository
	claims   *ClaimService
	rewards  *RewardService
	notifier Notifier
	now      Clock
}

func NewStatusService(reports repository.ReportRepository, claims *ClaimService, rewards *RewardService, notifier Notifier) *StatusService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &StatusService{
		reports:  reports,
		claims:   claims,
		rewards:  rewards,
		notifier: notifier,
		now:      systemClock,
	}
}

// Transition меняет статус заявки.
// Порядок проверок: исполнитель чужой заявки, допустимость перехода, права роли.
// Переход в assigned от исполнителя выполняется как взятие заявки.
func (s *StatusService) Transition(ctx context.Context, actor Actor, reportID uuid.UUID, target valueobject.ReportStatus, notes string) (*models.WasteReport, error) {
	if !target.IsValid() {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "некорректный статус заявки: %q", target)
	}
	if utf8.RuneCountInString(notes) > maxNotesLength {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "комментарий длиннее %d символов", maxNotesLength)
	}

	report, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		return nil, err
	}

	if target == valueobject.ReportStatusAssigned && report.Status.CanTransitionTo(target) {
		if !actor.IsWorker() {
			return nil, apperror.New(apperror.ErrCodeBadRequest, "для назначения исполнителя используйте /assign")
		}
		res, err := s.claims.Claim(ctx, actor, reportID)
		if err != nil {
			return nil, err
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return res.Report, nil
	}

	if actor.IsWorker() && !report.IsAssignedTo(actor.ID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "заявка не назначена вам")
	}
	if !report.Status.CanTransitionTo(target) {
		return nil, invalidTransition(report.Status, target)
	}
	if action, ok := ActionForTarget(target); !ok || !CanPerform(actor, action, report) {
		return nil, apperror.Newf(apperror.ErrCodeForbidden, "недостаточно прав для перехода в статус %s", target)
	}

	now := s.now()
	change := repository.StatusChange{
		ReportID:         report.ID,
		From:             report.Status,
		To:               target,
		ExpectedWorkerID: report.AssignedWorkerID,
		At:               now,
	}
	if target == valueobject.ReportStatusCompleted {
		change.Collection = &models.ActualCollection{Date: now, WorkerID: actor.ID, Notes: notes}
	}

	updated, applied, err := s.reports.UpdateStatus(ctx, change)
	if err != nil {
		return nil, err
	}
	if !applied {
		if _, err := s.reports.FindByID(ctx, reportID); err != nil {
			return nil, err
		}
		return nil, apperror.New(apperror.ErrCodeConflict, "заявка была изменена другим пользователем, обновите данные")
	}

	logger.Log.WithFields(logrus.Fields{
		"report_id": report.ID,
		"actor_id":  actor.ID,
		"from":      report.Status,
		"to":        target,
	}).Info("статус заявки изменён")

	if target == valueobject.ReportStatusCompleted {
		if err := s.rewards.CreditCompletion(ctx, updated); err != nil {
			// статус уже записан; флаг не выставлен, начисление можно повторить
			logger.Log.WithError(err).WithField("report_id", report.ID).Error("не удалось начислить баллы за выполнение")
		}
	}

	s.notifyStatusChanged(actor, report.Status, updated)
	return updated, nil
}

// RetryCompletionReward повторяет начисление за выполненную заявку, если оно не прошло.
func (s *StatusService) RetryCompletionReward(ctx context.Context, actor Actor, reportID uuid.UUID) (*models.WasteReport, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	report, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status != valueobject.ReportStatusCompleted && report.Status != valueobject.ReportStatusVerified {
		return nil, apperror.Newf(apperror.ErrCodeConflict, "заявка в статусе %s не выполнена", report.Status)
	}
	if err := s.rewards.CreditCompletion(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *StatusService) notifyStatusChanged(actor Actor, from valueobject.ReportStatus, report *models.WasteReport) {
	payload := map[string]any{
		"report_id": report.ID,
		"from":      from,
		"to":        report.Status,
	}
	s.notifier.NotifyUser(report.ReporterID, EventReportStatusChanged, payload)
	if report.AssignedWorkerID != nil && *report.AssignedWorkerID != actor.ID {
		s.notifier.NotifyUser(*report.AssignedWorkerID, EventReportStatusChanged, payload)
	}
}

func invalidTransition(from, to valueobject.ReportStatus) error {
	return apperror.Newf(apperror.ErrCodeConflict, "переход из статуса %s в %s недопустим", from, to).
		WithDetails(map[string]any{
			"from":    from,
			"to":      to,
			"allowed": from.AllowedTransitions(),
		})
}
