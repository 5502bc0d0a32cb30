package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/wastewatch-backend/internal/http/handlers/common"
	"github.com/ignatzorin/wastewatch-backend/internal/interface/http/response"
	"github.com/ignatzorin/wastewatch-backend/internal/service"
)

type RewardHandler struct {
	rewards *service.RewardService
}

func NewRewardHandler(rewards *service.RewardService) *RewardHandler {
	return &RewardHandler{rewards: rewards}
}

// Me обрабатывает GET /rewards/me.
func (h *RewardHandler) Me(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	account, err := h.rewards.GetAccount(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, account)
}
