package service

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/wastewatch-backend/internal/domain/valueobject"
	"github.com/ignatzorin/wastewatch-backend/internal/dto"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
)

func TestReportService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	uploads := []dto.ImageUpload{{OriginalName: "bin.png", Data: pngHeader}}
	report, err := f.reportSvc.Create(ctx, f.citizen, validReportRequest(chennai), uploads)
	require.NoError(t, err)

	assert.Equal(t, valueobject.ReportStatusReported, report.Status)
	assert.Nil(t, report.AssignedWorkerID)
	assert.Equal(t, models.PriorityDefault, report.Priority)
	assert.Equal(t, f.citizen.ID, report.ReporterID)
	require.Len(t, report.Images, 1)
	assert.Equal(t, "image/png", report.Images[0].ContentType)
	assert.Equal(t, int64(10), report.Rewards.Points)

	stored := f.reload(t, report.ID)
	assert.Equal(t, int64(10), stored.Rewards.Points)
	assert.NotNil(t, stored.Rewards.AwardedAt)
	assert.Equal(t, int64(10), f.user(t, f.citizen.ID).RewardBalance)
}

func TestReportService_Create_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.reportSvc.Create(ctx, f.worker1, validReportRequest(chennai), nil)
	assert.True(t, apperror.IsForbidden(err))

	req := validReportRequest(chennai)
	req.WasteType = "asbestos"
	_, err = f.reportSvc.Create(ctx, f.citizen, req, nil)
	assert.True(t, apperror.IsValidation(err))

	req = validReportRequest(chennai)
	req.Latitude = nil
	_, err = f.reportSvc.Create(ctx, f.citizen, req, nil)
	assert.True(t, apperror.IsValidation(err))

	_, err = f.reportSvc.Create(ctx, f.citizen, validReportRequest(chennai),
		[]dto.ImageUpload{{OriginalName: "notes.txt", Data: []byte("hello")}})
	assert.True(t, apperror.IsValidation(err))

	tooMany := make([]dto.ImageUpload, 6)
	for i := range tooMany {
		tooMany[i] = dto.ImageUpload{OriginalName: "a.png", Data: pngHeader}
	}
	_, err = f.reportSvc.Create(ctx, f.citizen, validReportRequest(chennai), tooMany)
	assert.True(t, apperror.IsValidation(err))

	// ни одна неудачная попытка не оставила заявок
	res, err := f.reportSvc.List(ctx, f.admin, dto.ListReportsQuery{})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
}

func TestReportService_ListViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w1 := f.worker1.ID

	other := f.addUser(t, "Борис", models.RoleCitizen)
	f.submit(t, chennai)
	_, err := f.reportSvc.Create(ctx, other, validReportRequest(chennai), nil)
	require.NoError(t, err)
	f.putReport(t, valueobject.ReportStatusAssigned, &w1, chennai)

	res, err := f.reportSvc.List(ctx, other, dto.ListReportsQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	res, err = f.reportSvc.List(ctx, f.worker1, dto.ListReportsQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.True(t, res.Items[0].IsAssignedTo(w1))

	res, err = f.reportSvc.List(ctx, f.admin, dto.ListReportsQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Len(t, res.Items, 2)

	res, err = f.reportSvc.List(ctx, f.admin, dto.ListReportsQuery{Status: "assigned"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	_, err = f.reportSvc.List(ctx, f.citizen, dto.ListReportsQuery{ViewType: ViewAll})
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.reportSvc.List(ctx, f.admin, dto.ListReportsQuery{Status: "lost"})
	assert.True(t, apperror.IsValidation(err))
}

func TestReportService_ListAvailable_PriorityThenOldest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w1 := f.worker1.ID

	first := f.submit(t, chennai)
	second := f.submit(t, chennai)
	urgent := f.submit(t, chennai)
	f.putReport(t, valueobject.ReportStatusAssigned, &w1, chennai)

	high := 5
	_, err := f.reportSvc.Update(ctx, f.admin, urgent.ID, dto.UpdateReportRequest{Priority: &high})
	require.NoError(t, err)

	items, err := f.reportSvc.ListAvailable(ctx, f.worker2, dto.AvailableReportsQuery{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, urgent.ID, items[0].ID)
	assert.Equal(t, first.ID, items[1].ID)
	assert.Equal(t, second.ID, items[2].ID)

	_, err = f.reportSvc.ListAvailable(ctx, f.citizen, dto.AvailableReportsQuery{})
	assert.True(t, apperror.IsForbidden(err))
}

func TestReportService_AdminReassign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	report := f.submit(t, chennai)

	res, err := f.claims.Claim(ctx, f.worker1, report.ID)
	require.NoError(t, err)
	require.Equal(t, ClaimOutcomeClaimed, res.Outcome)

	updated, err := f.reportSvc.Assign(ctx, f.admin, report.ID, dto.AssignReportRequest{WorkerID: f.worker2.ID.String()})
	require.NoError(t, err)
	assert.True(t, updated.IsAssignedTo(f.worker2.ID))
	assert.Equal(t, valueobject.ReportStatusAssigned, updated.Status)
	f.reload(t, report.ID)

	assert.True(t, f.notifier.sentTo(f.worker2.ID, EventReportAssigned))
	assert.True(t, f.notifier.sentTo(f.worker1.ID, EventReportUnassigned))

	// прежний исполнитель больше не может двигать заявку
	_, err = f.statuses.Transition(ctx, f.worker1, report.ID, valueobject.ReportStatusInProgress, "")
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.statuses.Transition(ctx, f.worker2, report.ID, valueobject.ReportStatusInProgress, "")
	require.NoError(t, err)
	f.reload(t, report.ID)
}

func TestReportService_Assign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w1 := f.worker1.ID

	t.Run("свободная заявка переходит в assigned", func(t *testing.T) {
		report := f.submit(t, chennai)
		updated, err := f.reportSvc.Assign(ctx, f.admin, report.ID, dto.AssignReportRequest{WorkerID: w1.String()})
		require.NoError(t, err)
		assert.Equal(t, valueobject.ReportStatusAssigned, updated.Status)
		assert.True(t, f.notifier.sentTo(f.citizen.ID, EventReportStatusChanged))
		f.reload(t, report.ID)
	})

	t.Run("в работе статус сохраняется", func(t *testing.T) {
		report := f.putReport(t, valueobject.ReportStatusInProgress, &w1, chennai)
		updated, err := f.reportSvc.Assign(ctx, f.admin, report.ID, dto.AssignReportRequest{WorkerID: f.worker2.ID.String()})
		require.NoError(t, err)
		assert.Equal(t, valueobject.ReportStatusInProgress, updated.Status)
		assert.True(t, updated.IsAssignedTo(f.worker2.ID))
	})

	t.Run("выполненную нельзя переназначить", func(t *testing.T) {
		report := f.putReport(t, valueobject.ReportStatusCompleted, &w1, chennai)
		_, err := f.reportSvc.Assign(ctx, f.admin, report.ID, dto.AssignReportRequest{WorkerID: f.worker2.ID.String()})
		assert.True(t, apperror.IsConflict(err))
	})

	t.Run("назначить можно только исполнителя", func(t *testing.T) {
		report := f.submit(t, chennai)
		_, err := f.reportSvc.Assign(ctx, f.admin, report.ID, dto.AssignReportRequest{WorkerID: f.citizen.ID.String()})
		assert.True(t, apperror.IsValidation(err))

		_, err = f.reportSvc.Assign(ctx, f.admin, report.ID, dto.AssignReportRequest{WorkerID: uuid.NewString()})
		assert.True(t, apperror.IsValidation(err))

		_, err = f.reportSvc.Assign(ctx, f.admin, report.ID, dto.AssignReportRequest{WorkerID: "worker-1"})
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("только администратор", func(t *testing.T) {
		report := f.submit(t, chennai)
		_, err := f.reportSvc.Assign(ctx, f.worker1, report.ID, dto.AssignReportRequest{WorkerID: w1.String()})
		assert.True(t, apperror.IsForbidden(err))
	})
}

func TestReportService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	report := f.submit(t, chennai)

	severity := models.SeverityCritical
	updated, err := f.reportSvc.Update(ctx, f.admin, report.ID, dto.UpdateReportRequest{Severity: &severity})
	require.NoError(t, err)
	assert.Equal(t, models.SeverityCritical, updated.Severity)
	assert.Equal(t, report.Location, updated.Location)

	_, err = f.reportSvc.Update(ctx, f.admin, report.ID, dto.UpdateReportRequest{})
	assert.True(t, apperror.IsValidation(err))

	bad := 9
	_, err = f.reportSvc.Update(ctx, f.admin, report.ID, dto.UpdateReportRequest{Priority: &bad})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.reportSvc.Update(ctx, f.citizen, report.ID, dto.UpdateReportRequest{Severity: &severity})
	assert.True(t, apperror.IsForbidden(err))
}

func TestImageService_Retrieve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	report, err := f.reportSvc.Create(ctx, f.citizen, validReportRequest(chennai),
		[]dto.ImageUpload{{OriginalName: "photo.png", Data: pngHeader}})
	require.NoError(t, err)
	blobID := report.Images[0].Filename

	_, err = f.reportSvc.images.Retrieve(ctx, blobID, "")
	assert.True(t, apperror.IsUnauthorized(err))

	_, err = f.reportSvc.images.Retrieve(ctx, blobID, "garbage")
	assert.True(t, apperror.IsUnauthorized(err))

	token, _, err := f.tokens.GenerateAccess(f.worker1.ID, models.RoleWorker)
	require.NoError(t, err)

	content, err := f.reportSvc.images.Retrieve(ctx, blobID, token)
	require.NoError(t, err)
	defer content.Body.Close()
	body, err := io.ReadAll(content.Body)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, body)
	assert.Equal(t, "image/png", content.ContentType)
	assert.Contains(t, content.CacheControl, "immutable")

	_, err = f.reportSvc.images.Retrieve(ctx, "missing-file.png", token)
	assert.True(t, apperror.IsNotFound(err))
}
