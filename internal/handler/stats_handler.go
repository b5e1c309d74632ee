package handler

import (
	"net/http"

	"github.com/blues/agrofund/internal/logic"
	"github.com/gin-gonic/gin"
)

// StatsHandler 统计处理器
type StatsHandler struct {
	statsLogic *logic.StatisticsLogic
}

func NewStatsHandler(statsLogic *logic.StatisticsLogic) *StatsHandler {
	return &StatsHandler{statsLogic: statsLogic}
}

// GetPlatformStats 平台统计
func (h *StatsHandler) GetPlatformStats(c *gin.Context) {
	stats, err := h.statsLogic.PlatformStats(c.Request.Context())
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", stats)
}

// GetProjectStats 项目统计
func (h *StatsHandler) GetProjectStats(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	stats, err := h.statsLogic.ProjectStats(c.Request.Context(), id)
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", stats)
}

// GetContributorStats 出资人统计
func (h *StatsHandler) GetContributorStats(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	stats, err := h.statsLogic.ContributorStats(c.Request.Context(), id)
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", stats)
}
