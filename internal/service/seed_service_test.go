package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/wastewatch-backend/internal/domain/repository"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/repository/memory"
)

func TestSeedDemo_Idempotent(t *testing.T) {
	users := memory.NewUserStore()
	facilities := memory.NewFacilityStore()
	seeder := NewSeedService(users, facilities, NewTokenManager("secret", time.Hour))
	ctx := context.Background()

	require.NoError(t, seeder.SeedDemo(ctx))
	require.NoError(t, seeder.SeedDemo(ctx))

	worker, err := users.FindByID(ctx, DemoWorker1ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleWorker, worker.Role)

	list, err := facilities.List(ctx, repository.FacilityFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 3)
}
