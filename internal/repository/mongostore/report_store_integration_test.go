package mongostore

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ignatzorin/wastewatch-backend/internal/db"
	"github.com/ignatzorin/wastewatch-backend/internal/domain/repository"
	"github.com/ignatzorin/wastewatch-backend/internal/domain/valueobject"
	"github.com/ignatzorin/wastewatch-backend/internal/geo"
	"github.com/ignatzorin/wastewatch-backend/internal/logger"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
)

// Тесты ходят в настоящий MongoDB и пропускаются без MONGO_URI.
// Каждый тест работает в своей временной базе.
func openTestDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI не задан")
	}
	logger.Silence()

	ctx := context.Background()
	name := "wastewatch_test_" + uuid.NewString()[:8]
	client, database, err := db.NewMongo(ctx, uri, name)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = database.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	require.NoError(t, EnsureIndexes(ctx, database))
	return database
}

func newStoredReport(t *testing.T, store *ReportStore) *models.WasteReport {
	t.Helper()
	r := &models.WasteReport{
		ReporterID:        uuid.New(),
		Location:          models.ReportLocation{Point: geo.Point{Longitude: 80.27, Latitude: 13.08}},
		WasteType:         models.WasteTypeOrganic,
		Category:          models.CategoryOverflowingBin,
		Severity:          models.SeverityHigh,
		EstimatedQuantity: models.QuantityMedium,
		Status:            valueobject.ReportStatusReported,
		Priority:          models.PriorityDefault,
	}
	require.NoError(t, store.Create(context.Background(), r))
	return r
}

func TestReportStore_ClaimIfUnassigned_SingleWinner(t *testing.T) {
	store := NewReportStore(openTestDatabase(t))
	report := newStoredReport(t, store)
	ctx := context.Background()

	workers := make([]uuid.UUID, 8)
	for i := range workers {
		workers[i] = uuid.New()
	}

	var (
		mu      sync.Mutex
		winners []uuid.UUID
		wg      sync.WaitGroup
	)
	start := make(chan struct{})
	for _, id := range workers {
		wg.Add(1)
		go func(workerID uuid.UUID) {
			defer wg.Done()
			<-start
			claimed, ok, err := store.ClaimIfUnassigned(ctx, report.ID, workerID, time.Now().UTC())
			assert.NoError(t, err)
			if ok {
				assert.True(t, claimed.IsAssignedTo(workerID))
				mu.Lock()
				winners = append(winners, workerID)
				mu.Unlock()
			}
		}(id)
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1)
	stored, err := store.FindByID(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ReportStatusAssigned, stored.Status)
	assert.True(t, stored.IsAssignedTo(winners[0]))
	assert.True(t, stored.CheckInvariants())

	_, ok, err := store.ClaimIfUnassigned(ctx, report.ID, workers[0], time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReportStore_UpdateStatusGuardedByCurrentState(t *testing.T) {
	store := NewReportStore(openTestDatabase(t))
	report := newStoredReport(t, store)
	ctx := context.Background()
	owner, other := uuid.New(), uuid.New()

	_, ok, err := store.ClaimIfUnassigned(ctx, report.ID, owner, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, ok)

	change := repository.StatusChange{
		ReportID:         report.ID,
		From:             valueobject.ReportStatusAssigned,
		To:               valueobject.ReportStatusInProgress,
		ExpectedWorkerID: &other,
		At:               time.Now().UTC(),
	}
	_, ok, err = store.UpdateStatus(ctx, change)
	require.NoError(t, err)
	assert.False(t, ok)

	change.ExpectedWorkerID = &owner
	updated, ok, err := store.UpdateStatus(ctx, change)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, valueobject.ReportStatusInProgress, updated.Status)

	_, ok, err = store.UpdateStatus(ctx, change)
	require.NoError(t, err)
	assert.False(t, ok)
}
