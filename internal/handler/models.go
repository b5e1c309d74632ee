package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// 分页信息结构
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"pageSize"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"totalPage"`
}

// PageResponse 分页列表响应
type PageResponse struct {
	Items      interface{} `json:"items"`
	Pagination Pagination  `json:"pagination"`
}

// VerifyRequest 审核通过
type VerifyRequest struct {
	Notes string `json:"notes"`
}

// RejectRequest 驳回
type RejectRequest struct {
	Reason string `json:"reason"`
}

// DueDiligenceRequest 尽调操作
type DueDiligenceRequest struct {
	Notes     string   `json:"notes"`
	Documents []string `json:"documents"`
	Passed    bool     `json:"passed"`
}

// ChainActiveRequest 链上激活/停用
type ChainActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// ConfirmContributionRequest 补充交易哈希
type ConfirmContributionRequest struct {
	TxHash string `json:"tx_hash" binding:"required"`
}

// UpdateWalletRequest 设置收款钱包
type UpdateWalletRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
}

// pageParams 读取分页参数
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func newPage(items interface{}, page, pageSize int, total int64) PageResponse {
	return PageResponse{
		Items: items,
		Pagination: Pagination{
			Page:      page,
			PageSize:  pageSize,
			Total:     total,
			TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
		},
	}
}

// idParam 解析路径中的ID
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		ErrorResponse(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}
