package handler

import (
	"net/http"

	"github.com/blues/agrofund/internal/logic"
	"github.com/gin-gonic/gin"
)

// UserHandler 用户与部门处理器
type UserHandler struct {
	userLogic       *logic.UserLogic
	departmentLogic *logic.DepartmentLogic
}

func NewUserHandler(userLogic *logic.UserLogic, departmentLogic *logic.DepartmentLogic) *UserHandler {
	return &UserHandler{userLogic: userLogic, departmentLogic: departmentLogic}
}

// GetUser 获取用户
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	user, err := h.userLogic.GetUser(c.Request.Context(), id)
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", user)
}

// UpdateWallet 设置收款钱包
func (h *UserHandler) UpdateWallet(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req UpdateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userLogic.UpdateWallet(c.Request.Context(), ActorFrom(c), id, req.WalletAddress)
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "wallet updated", user)
}

// Categorize 查询类别对应的部门
func (h *UserHandler) Categorize(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, "", gin.H{
		"category":   c.Query("category"),
		"department": h.departmentLogic.Categorize(c.Query("category")),
	})
}

// GetDepartmentWorkload 部门工作量
func (h *UserHandler) GetDepartmentWorkload(c *gin.Context) {
	workload, err := h.departmentLogic.Workload(c.Request.Context(), c.Param("department"))
	if err != nil {
		ErrorFromLogic(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", workload)
}
