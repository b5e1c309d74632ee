package handler

import (
	"net/http"

	"github.com/blues/agrofund/internal/logic"
	"github.com/gin-gonic/gin"
)

// ContributionHandler 出资处理器
type ContributionHandler struct {
	contributionLogic *logic.ContributionLogic
}

// NewContributionHandler 创建出资处理器
func NewContributionHandler(contributionLogic *logic.ContributionLogic) *ContributionHandler {
	return &ContributionHandler{contributionLogic: contributionLogic}
}

// GetFundingView 出资前查看项目募资情况
func (h *ContributionHandler) GetFundingView(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	view, err := h.contributionLogic.GetFundingView(c.Request.Context(), id)
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", view)
}

// CreateContribution 上报已广播的出资交易
func (h *ContributionHandler) CreateContribution(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in logic.CreateContributionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	in.ProjectId = id

	var (
		contribution interface{}
		err          error
	)
	if in.TxHash == "" && c.Query("pending") == "true" {
		contribution, err = h.contributionLogic.CreatePendingContribution(c.Request.Context(), ActorFrom(c), in)
	} else {
		contribution, err = h.contributionLogic.CreateContribution(c.Request.Context(), ActorFrom(c), in)
	}
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "contribution recorded", contribution)
}

// ConfirmContribution 为待确认出资补充交易哈希
func (h *ContributionHandler) ConfirmContribution(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req ConfirmContributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	contribution, err := h.contributionLogic.ConfirmContribution(c.Request.Context(), ActorFrom(c), id, req.TxHash)
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "contribution confirmed", contribution)
}

// GetContribution 获取出资记录
func (h *ContributionHandler) GetContribution(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	contribution, err := h.contributionLogic.Get(c.Request.Context(), id)
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", contribution)
}

// GetContributionByTxHash 根据交易哈希获取出资记录
func (h *ContributionHandler) GetContributionByTxHash(c *gin.Context) {
	contribution, err := h.contributionLogic.GetByTxHash(c.Request.Context(), c.Param("tx_hash"))
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", contribution)
}

// GetProjectContributions 获取项目出资记录
func (h *ContributionHandler) GetProjectContributions(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	page, pageSize := pageParams(c)
	items, total, err := h.contributionLogic.ListByProject(c.Request.Context(), id, page, pageSize)
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", newPage(items, page, pageSize, total))
}

// GetUserContributions 获取用户出资记录
func (h *ContributionHandler) GetUserContributions(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	page, pageSize := pageParams(c)
	items, total, err := h.contributionLogic.ListByContributor(c.Request.Context(), id, page, pageSize)
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", newPage(items, page, pageSize, total))
}

// ReconcileProject 手动触发对账
func (h *ContributionHandler) ReconcileProject(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	result, err := h.contributionLogic.Reconcile(c.Request.Context(), id)
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", result)
}
