package handler

import (
	"net/http"
	"strconv"

	"github.com/blues/agrofund/internal/logic"
	"github.com/gin-gonic/gin"
)

type ProjectHandler struct {
	projectLogic *logic.ProjectLogic
}

func NewProjectHandler(projectLogic *logic.ProjectLogic) *ProjectHandler {
	return &ProjectHandler{projectLogic: projectLogic}
}

// CreateProject 创建项目
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var in logic.CreateProjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.projectLogic.Create(c.Request.Context(), ActorFrom(c), in)
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "project submitted", project)
}

// GetProjects 获取项目列表
func (h *ProjectHandler) GetProjects(c *gin.Context) {
	page, pageSize := pageParams(c)
	ownerId, _ := strconv.ParseInt(c.Query("owner_id"), 10, 64)

	projects, total, err := h.projectLogic.List(c.Request.Context(), logic.ProjectFilter{
		Status:     c.Query("status"),
		Department: c.Query("department"),
		Category:   c.Query("category"),
		OwnerId:    ownerId,
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", newPage(projects, page, pageSize, total))
}

// GetProject 获取单个项目详情
func (h *ProjectHandler) GetProject(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	project, err := h.projectLogic.Get(c.Request.Context(), id)
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", project)
}

// GetProjectBySlug 根据slug获取项目
func (h *ProjectHandler) GetProjectBySlug(c *gin.Context) {
	project, err := h.projectLogic.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", project)
}

// UpdateProject 更新项目
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in logic.UpdateProjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.projectLogic.Update(c.Request.Context(), ActorFrom(c), id, in)
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "project updated", project)
}

// DeleteProject 删除项目
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.projectLogic.Remove(c.Request.Context(), ActorFrom(c), id); err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "project removed", nil)
}

// StartDueDiligence 开始尽调
func (h *ProjectHandler) StartDueDiligence(c *gin.Context) {
	h.dueDiligence(c, func(c *gin.Context, id int64, req DueDiligenceRequest) (interface{}, error) {
		return h.projectLogic.StartDueDiligence(c.Request.Context(), ActorFrom(c), id, req.Notes)
	})
}

// UpdateDueDiligence 更新尽调
func (h *ProjectHandler) UpdateDueDiligence(c *gin.Context) {
	h.dueDiligence(c, func(c *gin.Context, id int64, req DueDiligenceRequest) (interface{}, error) {
		return h.projectLogic.UpdateDueDiligence(c.Request.Context(), ActorFrom(c), id, req.Notes, req.Documents)
	})
}

// CompleteDueDiligence 完成尽调
func (h *ProjectHandler) CompleteDueDiligence(c *gin.Context) {
	h.dueDiligence(c, func(c *gin.Context, id int64, req DueDiligenceRequest) (interface{}, error) {
		return h.projectLogic.CompleteDueDiligence(c.Request.Context(), ActorFrom(c), id, req.Passed, req.Notes)
	})
}

func (h *ProjectHandler) dueDiligence(c *gin.Context, fn func(*gin.Context, int64, DueDiligenceRequest) (interface{}, error)) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req DueDiligenceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	project, err := fn(c, id, req)
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", project)
}

// VerifyProject 审核通过并上链
func (h *ProjectHandler) VerifyProject(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req VerifyRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	project, err := h.projectLogic.Verify(c.Request.Context(), ActorFrom(c), id, req.Notes)
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "project verified", project)
}

// RejectProject 驳回项目
func (h *ProjectHandler) RejectProject(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.projectLogic.Reject(c.Request.Context(), ActorFrom(c), id, req.Reason)
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "project rejected", project)
}

// RetryDeployment 重新上链
func (h *ProjectHandler) RetryDeployment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	project, err := h.projectLogic.RetryDeployment(c.Request.Context(), ActorFrom(c), id)
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", project)
}

// CompleteProject 关闭项目
func (h *ProjectHandler) CompleteProject(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	project, err := h.projectLogic.Complete(c.Request.Context(), ActorFrom(c), id)
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "project closed", project)
}

// SetChainActive 激活或停用链上项目
func (h *ProjectHandler) SetChainActive(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req ChainActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	txHash, err := h.projectLogic.SetOnChainActive(c.Request.Context(), ActorFrom(c), id, *req.Active)
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", gin.H{"tx_hash": txHash})
}
