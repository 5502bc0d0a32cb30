package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/wastewatch-backend/internal/dto"
	"github.com/ignatzorin/wastewatch-backend/internal/http/handlers/common"
	"github.com/ignatzorin/wastewatch-backend/internal/interface/http/response"
	"github.com/ignatzorin/wastewatch-backend/internal/service"
)

// FacilityHandler маршруты /facilities.
type FacilityHandler struct {
	discovery *service.DiscoveryService
}

func NewFacilityHandler(discovery *service.DiscoveryService) *FacilityHandler {
	return &FacilityHandler{discovery: discovery}
}

// Nearby обрабатывает GET /facilities/nearby.
func (h *FacilityHandler) Nearby(c *gin.Context) {
	var q dto.NearbyFacilitiesQuery
	if err := common.BindQuery(c, &q); err != nil {
		response.Error(c, err)
		return
	}
	if len(q.WasteTypes) == 0 {
		q.WasteTypes = c.QueryArray("wasteTypes")
	}

	items, ordered, err := h.discovery.NearbyFacilities(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NearbyFacilitiesResponse{Items: items, Ordered: ordered})
}

// Get обрабатывает GET /facilities/:id.
func (h *FacilityHandler) Get(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	f, err := h.discovery.GetFacility(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, f)
}

// Create обрабатывает POST /facilities.
func (h *FacilityHandler) Create(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CreateFacilityRequest
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	f, err := h.discovery.CreateFacility(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, f)
}
