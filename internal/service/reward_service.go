package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/wastewatch-backend/internal/domain/repository"
	"github.com/ignatzorin/wastewatch-backend/internal/domain/valueobject"
	"github.com/ignatzorin/wastewatch-backend/internal/logger"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
)

const completionCreditAttempts = 3

// RewardConfig размеры начислений.
type RewardConfig struct {
	ReportPoints     int64
	CompletionPoints int64
}

// RewardService ведёт баланс баллов и уровень пользователя.
type RewardService struct {
	users    repository.UserRepository
	reports  repository.ReportRepository
	cfg      RewardConfig
	notifier Notifier
	now      Clock
	// retryDelay пауза между попытками начисления за выполнение
	retryDelay time.Duration
}

func NewRewardService(users repository.UserRepository, reports repository.ReportRepository, cfg RewardConfig, notifier Notifier) *RewardService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &RewardService{
		users:      users,
		reports:    reports,
		cfg:        cfg,
		notifier:   notifier,
		now:        systemClock,
		retryDelay: 200 * time.Millisecond,
	}
}

// Credit добавляет баллы к балансу и накопленной сумме и пересчитывает уровень.
// Возвращает false, если начисление с тем же ключом уже было.
func (s *RewardService) Credit(ctx context.Context, credit models.RewardCredit) (bool, error) {
	if credit.Points <= 0 {
		return false, apperror.New(apperror.ErrCodeValidation, "количество баллов должно быть положительным")
	}

	lifetime, applied, err := s.users.ApplyCredit(ctx, credit)
	if err != nil {
		return false, err
	}

	tier := valueobject.TierForLifetime(lifetime)
	if err := s.users.SetTier(ctx, credit.UserID, tier, lifetime); err != nil {
		// уровень всё равно выводится из накопленной суммы при чтении
		logger.Log.WithError(err).WithField("user_id", credit.UserID).Warn("не удалось сохранить уровень")
	}

	if applied {
		logger.Log.WithFields(logrus.Fields{
			"user_id":  credit.UserID,
			"points":   credit.Points,
			"reason":   credit.Reason,
			"lifetime": lifetime,
			"tier":     tier,
		}).Info("начислены баллы")
		s.notifier.NotifyUser(credit.UserID, EventRewardCredited, map[string]any{
			"points": credit.Points,
			"reason": credit.Reason,
			"tier":   tier,
		})
	}
	return applied, nil
}

// CreditSubmission начисляет автору баллы за новую заявку и сохраняет их в заявке.
func (s *RewardService) CreditSubmission(ctx context.Context, report *models.WasteReport) error {
	if s.cfg.ReportPoints <= 0 {
		return nil
	}
	reportID := report.ID
	if _, err := s.Credit(ctx, models.RewardCredit{
		UserID:   report.ReporterID,
		Points:   s.cfg.ReportPoints,
		Reason:   models.RewardReasonReportSubmitted,
		ReportID: &reportID,
	}); err != nil {
		return err
	}

	awardedAt := s.now()
	report.Rewards = models.ReportRewards{Points: s.cfg.ReportPoints, AwardedAt: &awardedAt}
	return s.reports.SetRewards(ctx, report.ID, report.Rewards)
}

// CreditCompletion начисляет автору баллы за выполненную заявку не более одного раза.
// Повтор безопасен: ключ события (заявка, причина) отсекает дубль, флаг в заявке
// ставится только после успешного начисления.
func (s *RewardService) CreditCompletion(ctx context.Context, report *models.WasteReport) error {
	if report.CompletionRewardIssued || s.cfg.CompletionPoints <= 0 {
		return nil
	}

	reportID := report.ID
	credit := models.RewardCredit{
		UserID:   report.ReporterID,
		Points:   s.cfg.CompletionPoints,
		Reason:   models.RewardReasonReportCompleted,
		ReportID: &reportID,
	}

	var err error
	for attempt := 1; ; attempt++ {
		_, err = s.Credit(ctx, credit)
		if err == nil || attempt == completionCreditAttempts || apperror.IsNotFound(err) || apperror.IsValidation(err) {
			break
		}
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"report_id": report.ID,
			"attempt":   attempt,
		}).Warn("повтор начисления за выполнение")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.retryDelay * time.Duration(attempt)):
		}
	}
	if err != nil {
		return err
	}

	if _, err := s.reports.MarkCompletionRewardIssued(ctx, report.ID); err != nil {
		return err
	}
	report.CompletionRewardIssued = true
	return nil
}

// GetAccount возвращает счёт; уровень вычисляется из накопленной суммы.
func (s *RewardService) GetAccount(ctx context.Context, userID uuid.UUID) (*models.RewardAccount, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	account := &models.RewardAccount{
		UserID:   u.ID,
		Balance:  u.RewardBalance,
		Lifetime: u.RewardLifetime,
		Tier:     valueobject.TierForLifetime(u.RewardLifetime),
	}
	if next, ok := valueobject.NextThreshold(u.RewardLifetime); ok {
		account.NextTierAt = &next
	}
	return account, nil
}
