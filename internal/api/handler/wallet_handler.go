package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"blockward/backend/internal/dto"
	"blockward/backend/internal/model"
	"blockward/backend/internal/service"
	"blockward/backend/pkg/response"
)

// WalletHandler 钱包模块 HTTP 处理器
type WalletHandler struct {
	walletSvc service.WalletService
}

// NewWalletHandler 创建 WalletHandler
func NewWalletHandler(walletSvc service.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// GetWallet 获取用户钱包，不存在时创建
// GET /api/v1/wallets/:userId
//
// 查询本人钱包时按本人角色创建；教师与管理员查询他人时按学生钱包创建。
func (h *WalletHandler) GetWallet(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	role, ok := MustGetRole(c)
	if !ok {
		return
	}

	userID := c.Param("userId")
	walletRole := role
	if userID != callerID {
		if !isPrivileged(role) {
			response.Forbidden(c, 10003, "无权限访问")
			return
		}
		walletRole = model.WalletRoleStudent
	}

	wallet, err := h.walletSvc.GetOrCreate(c.Request.Context(), userID, walletRole)
	if err != nil {
		h.handleWalletError(c, err)
		return
	}

	response.OK(c, wallet)
}

// AwardPoints 直接为学生发放积分
// POST /api/v1/wallets/:userId/points
func (h *WalletHandler) AwardPoints(c *gin.Context) {
	var req dto.AwardPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	wallet, err := h.walletSvc.AwardPoints(c.Request.Context(), c.Param("userId"), &req, callerID)
	if err != nil {
		h.handleWalletError(c, err)
		return
	}

	response.OK(c, wallet)
}

// ListTokens 用户持有的奖励代币
// GET /api/v1/wallets/:userId/tokens?page=1&page_size=20
func (h *WalletHandler) ListTokens(c *gin.Context) {
	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	role, ok := MustGetRole(c)
	if !ok {
		return
	}

	userID := c.Param("userId")
	if userID != callerID && !isPrivileged(role) {
		response.Forbidden(c, 10003, "无权限访问")
		return
	}

	list, err := h.walletSvc.ListTokens(c.Request.Context(), userID, &page)
	if err != nil {
		h.handleWalletError(c, err)
		return
	}

	response.OKPage(c, list.Items, list.Total, list.Page, list.PageSize)
}

func (h *WalletHandler) handleWalletError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidUserID),
		errors.Is(err, service.ErrInvalidWalletRole):
		response.BadRequest(c, 22001, err.Error())
	case errors.Is(err, service.ErrInvalidPoints):
		response.BadRequest(c, 22002, err.Error())
	case errors.Is(err, service.ErrWalletNotFound):
		response.NotFound(c, 22003, err.Error())
	default:
		handleStorageError(c, err)
	}
}
