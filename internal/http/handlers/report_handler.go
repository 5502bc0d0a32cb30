package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/wastewatch-backend/internal/domain/valueobject"
	"github.com/ignatzorin/wastewatch-backend/internal/dto"
	"github.com/ignatzorin/wastewatch-backend/internal/http/handlers/common"
	"github.com/ignatzorin/wastewatch-backend/internal/interface/http/response"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
	"github.com/ignatzorin/wastewatch-backend/internal/service"
)

// ReportHandler маршруты /reports.
type ReportHandler struct {
	reports   *service.ReportService
	claims    *service.ClaimService
	statuses  *service.StatusService
	discovery *service.DiscoveryService
	// лимиты загрузки
	maxImageBytes int64
	maxImages     int
}

func NewReportHandler(
	reports *service.ReportService,
	claims *service.ClaimService,
	statuses *service.StatusService,
	discovery *service.DiscoveryService,
	maxImageBytes int64,
	maxImages int,
) *ReportHandler {
	return &ReportHandler{
		reports:       reports,
		claims:        claims,
		statuses:      statuses,
		discovery:     discovery,
		maxImageBytes: maxImageBytes,
		maxImages:     maxImages,
	}
}

// Create обрабатывает POST /reports (multipart: поля заявки и до N файлов images).
func (h *ReportHandler) Create(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.CreateReportRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректные поля заявки"))
		return
	}
	uploads, err := readUploads(c, h.maxImageBytes, h.maxImages)
	if err != nil {
		response.Error(c, err)
		return
	}

	report, err := h.reports.Create(c.Request.Context(), actor, req, uploads)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, report)
}

// List обрабатывает GET /reports.
func (h *ReportHandler) List(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var q dto.ListReportsQuery
	if err := common.BindQuery(c, &q); err != nil {
		response.Error(c, err)
		return
	}
	// принимаем и camelCase, как в мобильном клиенте
	if q.ViewType == "" {
		q.ViewType = c.Query("viewType")
	}
	if q.WasteType == "" {
		q.WasteType = c.Query("wasteType")
	}

	res, err := h.reports.List(c.Request.Context(), actor, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, res.Items, res.Total, res.Limit, res.Offset)
}

// Available обрабатывает GET /reports/available.
func (h *ReportHandler) Available(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var q dto.AvailableReportsQuery
	if err := common.BindQuery(c, &q); err != nil {
		response.Error(c, err)
		return
	}
	if q.WasteType == "" {
		q.WasteType = c.Query("wasteType")
	}

	items, err := h.reports.ListAvailable(c.Request.Context(), actor, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, items)
}

// Nearby обрабатывает GET /reports/nearby.
func (h *ReportHandler) Nearby(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var q dto.NearbyReportsQuery
	if err := common.BindQuery(c, &q); err != nil {
		response.Error(c, err)
		return
	}
	if q.WasteType == "" {
		q.WasteType = c.Query("wasteType")
	}

	items, ordered, err := h.discovery.NearbyReports(c.Request.Context(), actor, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NearbyReportsResponse{Items: items, Ordered: ordered})
}

// Get обрабатывает GET /reports/:id.
func (h *ReportHandler) Get(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	report, err := h.reports.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}

// Claim обрабатывает PUT /reports/:id/claim.
// Повторное взятие своей заявки не ошибка, занятая другим отдаёт 400 с именем исполнителя.
func (h *ReportHandler) Claim(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.claims.Claim(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := res.Err(); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ClaimResponse{Outcome: string(res.Outcome), Report: res.Report})
}

// UpdateStatus обрабатывает PUT /reports/:id/status.
func (h *ReportHandler) UpdateStatus(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateStatusRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	target := valueobject.ReportStatus(strings.TrimSpace(req.Status))
	report, err := h.statuses.Transition(c.Request.Context(), actor, id, target, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}

// Assign обрабатывает PUT /reports/:id/assign.
func (h *ReportHandler) Assign(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.AssignReportRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	report, err := h.reports.Assign(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}

// Update обрабатывает PATCH /reports/:id.
func (h *ReportHandler) Update(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateReportRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	report, err := h.reports.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}

// RetryReward обрабатывает POST /reports/:id/reward/retry.
func (h *ReportHandler) RetryReward(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	report, err := h.statuses.RetryCompletionReward(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}
