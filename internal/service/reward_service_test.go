package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/wastewatch-backend/internal/domain/repository"
	"github.com/ignatzorin/wastewatch-backend/internal/domain/valueobject"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
)

func TestReward_CreditIdempotentPerReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reportID := uuid.New()

	credit := models.RewardCredit{
		UserID:   f.citizen.ID,
		Points:   20,
		Reason:   models.RewardReasonReportCompleted,
		ReportID: &reportID,
	}
	applied, err := f.rewards.Credit(ctx, credit)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = f.rewards.Credit(ctx, credit)
	require.NoError(t, err)
	assert.False(t, applied)

	u := f.user(t, f.citizen.ID)
	assert.Equal(t, int64(20), u.RewardBalance)
	assert.Equal(t, int64(20), u.RewardLifetime)

	// другая причина по той же заявке начисляется отдельно
	credit.Reason = models.RewardReasonReportSubmitted
	applied, err = f.rewards.Credit(ctx, credit)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int64(40), f.user(t, f.citizen.ID).RewardLifetime)
}

func TestReward_CreditValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.rewards.Credit(context.Background(), models.RewardCredit{UserID: f.citizen.ID, Points: 0})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.rewards.Credit(context.Background(), models.RewardCredit{UserID: uuid.New(), Points: 5})
	assert.True(t, apperror.IsNotFound(err))
}

func TestReward_TierNeverDecreases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prev := 0
	for i := 0; i < 40; i++ {
		_, err := f.rewards.Credit(ctx, models.RewardCredit{UserID: f.citizen.ID, Points: 50, Reason: "bonus"})
		require.NoError(t, err)

		account, err := f.rewards.GetAccount(ctx, f.citizen.ID)
		require.NoError(t, err)
		rank := account.Tier.Rank()
		require.GreaterOrEqual(t, rank, prev)
		prev = rank

		assert.Equal(t, account.Tier, f.user(t, f.citizen.ID).RewardTier)
	}

	account, err := f.rewards.GetAccount(ctx, f.citizen.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.RewardTierPlatinum, account.Tier)
	assert.Nil(t, account.NextTierAt)
}

func TestReward_GetAccountNextTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rewards.Credit(ctx, models.RewardCredit{UserID: f.worker1.ID, Points: 120, Reason: "bonus"})
	require.NoError(t, err)

	account, err := f.rewards.GetAccount(ctx, f.worker1.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.RewardTierSilver, account.Tier)
	require.NotNil(t, account.NextTierAt)
	assert.Equal(t, int64(500), *account.NextTierAt)
}

// flakyUsers отказывает в начислении заданное число раз.
type flakyUsers struct {
	repository.UserRepository
	failures int
	calls    int
}

func (u *flakyUsers) ApplyCredit(ctx context.Context, credit models.RewardCredit) (int64, bool, error) {
	u.calls++
	if u.calls <= u.failures {
		return 0, false, errors.New("connection reset")
	}
	return u.UserRepository.ApplyCredit(ctx, credit)
}

func TestReward_CreditCompletionRetries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w1 := f.worker1.ID

	t.Run("успех после сбоев", func(t *testing.T) {
		users := &flakyUsers{UserRepository: f.users, failures: 2}
		rewards := NewRewardService(users, f.reports, RewardConfig{CompletionPoints: 20}, nil)
		rewards.retryDelay = 0

		report := f.putReport(t, valueobject.ReportStatusCompleted, &w1, chennai)
		require.NoError(t, rewards.CreditCompletion(ctx, report))
		assert.Equal(t, 3, users.calls)
		assert.True(t, f.reload(t, report.ID).CompletionRewardIssued)
	})

	t.Run("флаг не ставится после исчерпания попыток", func(t *testing.T) {
		users := &flakyUsers{UserRepository: f.users, failures: 10}
		rewards := NewRewardService(users, f.reports, RewardConfig{CompletionPoints: 20}, nil)
		rewards.retryDelay = 0

		report := f.putReport(t, valueobject.ReportStatusCompleted, &w1, chennai)
		require.Error(t, rewards.CreditCompletion(ctx, report))
		assert.Equal(t, completionCreditAttempts, users.calls)
		assert.False(t, f.reload(t, report.ID).CompletionRewardIssued)
	})
}
