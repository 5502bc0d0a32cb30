package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/wastewatch-backend/internal/domain/repository"
	"github.com/ignatzorin/wastewatch-backend/internal/logger"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
)

type ClaimOutcome string

const (
	ClaimOutcomeClaimed            ClaimOutcome = "claimed"
	ClaimOutcomeAlreadyOwnedBySelf ClaimOutcome = "already_owned_by_self"
	ClaimOutcomeAlreadyAssigned    ClaimOutcome = "already_assigned"
)

// ClaimResult итог попытки взять заявку. Holder заполнен для ClaimOutcomeAlreadyAssigned.
type ClaimResult struct {
	Outcome ClaimOutcome        `json:"outcome"`
	Report  *models.WasteReport `json:"report"`
	Holder  *models.UserRef     `json:"holder,omitempty"`
}

// Err превращает проигрыш гонки в ошибку конфликта с именем текущего исполнителя.
func (r *ClaimResult) Err() error {
	if r.Outcome != ClaimOutcomeAlreadyAssigned {
		return nil
	}
	name := r.Holder.DisplayName
	if name == "" {
		name = r.Holder.ID.String()
	}
	return apperror.Newf(apperror.ErrCodeConflict, "заявка уже назначена исполнителю %s", name).
		WithDetails(map[string]any{
			"assigned_worker_id":   r.Holder.ID,
			"assigned_worker_name": r.Holder.DisplayName,
		})
}

// ClaimService назначает заявку ровно одному исполнителю.
// Гонку решает условное обновление хранилища, сервис только разбирает результат.
type ClaimService struct {
	reports  repository.ReportRepository
	users    repository.UserRepository
	notifier Notifier
	now      Clock
}

func NewClaimService(reports repository.ReportRepository, users repository.UserRepository, notifier Notifier) *ClaimService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ClaimService{reports: reports, users: users, notifier: notifier, now: systemClock}
}

func (s *ClaimService) Claim(ctx context.Context, actor Actor, reportID uuid.UUID) (*ClaimResult, error) {
	if !CanPerform(actor, ActionClaim, nil) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "брать заявки в работу могут только исполнители")
	}

	report, claimed, err := s.reports.ClaimIfUnassigned(ctx, reportID, actor.ID, s.now())
	if err != nil {
		return nil, err
	}
	if claimed {
		logger.Log.WithFields(logrus.Fields{
			"report_id": reportID,
			"worker_id": actor.ID,
		}).Info("заявка взята в работу")
		s.notifier.NotifyUser(report.ReporterID, EventReportClaimed, map[string]any{
			"report_id": report.ID,
			"worker_id": actor.ID,
			"status":    report.Status,
		})
		return &ClaimResult{Outcome: ClaimOutcomeClaimed, Report: report}, nil
	}

	// условие не выполнилось: перечитываем, чтобы назвать причину
	current, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		return nil, err
	}

	switch {
	case current.IsAssignedTo(actor.ID):
		return &ClaimResult{Outcome: ClaimOutcomeAlreadyOwnedBySelf, Report: current}, nil
	case current.AssignedWorkerID != nil:
		holder := s.holderRef(ctx, *current.AssignedWorkerID)
		logger.Log.WithFields(logrus.Fields{
			"report_id": reportID,
			"worker_id": actor.ID,
			"holder_id": holder.ID,
		}).Info("заявка уже занята другим исполнителем")
		return &ClaimResult{Outcome: ClaimOutcomeAlreadyAssigned, Report: current, Holder: &holder}, nil
	default:
		return nil, apperror.Newf(apperror.ErrCodeConflict, "заявку в статусе %s нельзя взять в работу", current.Status).
			WithDetails(map[string]any{"status": current.Status})
	}
}

func (s *ClaimService) holderRef(ctx context.Context, id uuid.UUID) models.UserRef {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if !apperror.IsNotFound(err) {
			logger.Log.WithError(err).WithField("user_id", id).Warn("не удалось получить исполнителя")
		}
		return models.UserRef{ID: id}
	}
	return u.Ref()
}
