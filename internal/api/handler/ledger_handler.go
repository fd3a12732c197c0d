package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"blockward/backend/internal/dto"
	"blockward/backend/internal/service"
	"blockward/backend/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// LedgerHandler 奖励账本 HTTP 处理器
type LedgerHandler struct {
	ledgerSvc service.LedgerService
}

// NewLedgerHandler 创建 LedgerHandler
func NewLedgerHandler(ledgerSvc service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc}
}

// MintToken 创建奖励代币
// POST /api/v1/tokens
func (h *LedgerHandler) MintToken(c *gin.Context) {
	var req dto.MintTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
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

	token, err := h.ledgerSvc.MintToken(c.Request.Context(), &req, callerID, role)
	if err != nil {
		h.handleLedgerError(c, err)
		return
	}

	response.Created(c, token)
}

// Transfer 转移奖励代币
// POST /api/v1/transfers
func (h *LedgerHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.ledgerSvc.TransferToUser(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleLedgerError(c, err)
		return
	}

	response.Created(c, result)
}

// GetOwner 代币当前持有人
// GET /api/v1/tokens/:tokenId/owner
func (h *LedgerHandler) GetOwner(c *gin.Context) {
	tokenID, ok := MustGetUUIDParam(c, "tokenId")
	if !ok {
		return
	}

	owner, err := h.ledgerSvc.CurrentOwner(c.Request.Context(), tokenID)
	if err != nil {
		h.handleLedgerError(c, err)
		return
	}

	response.OK(c, owner)
}

// GetHistory 代币转移记录
// GET /api/v1/tokens/:tokenId/history
func (h *LedgerHandler) GetHistory(c *gin.Context) {
	tokenID, ok := MustGetUUIDParam(c, "tokenId")
	if !ok {
		return
	}

	history, err := h.ledgerSvc.History(c.Request.Context(), tokenID)
	if err != nil {
		h.handleLedgerError(c, err)
		return
	}

	response.OK(c, gin.H{"list": history})
}

// ExportHistory 导出代币转移记录
// GET /api/v1/tokens/:tokenId/history/export
func (h *LedgerHandler) ExportHistory(c *gin.Context) {
	tokenID, ok := MustGetUUIDParam(c, "tokenId")
	if !ok {
		return
	}

	buf, filename, err := h.ledgerSvc.ExportHistory(c.Request.Context(), tokenID)
	if err != nil {
		h.handleLedgerError(c, err)
		return
	}

	response.Download(c, filename, xlsxContentType, buf.Bytes())
}

func (h *LedgerHandler) handleLedgerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCategory):
		response.BadRequest(c, 23001, err.Error())
	case errors.Is(err, service.ErrInvalidPoints):
		response.BadRequest(c, 23002, err.Error())
	case errors.Is(err, service.ErrInvalidUserID),
		errors.Is(err, service.ErrInvalidWalletRole):
		response.BadRequest(c, 23003, err.Error())
	case errors.Is(err, service.ErrRewardTokenNotFound):
		response.NotFound(c, 23004, err.Error())
	case errors.Is(err, service.ErrWalletNotFound):
		response.NotFound(c, 23005, err.Error())
	case errors.Is(err, service.ErrOwnershipMismatch):
		response.Conflict(c, 23006, err.Error())
	case errors.Is(err, service.ErrConcurrentTransferConflict):
		response.Conflict(c, 23007, err.Error())
	case errors.Is(err, service.ErrSelfTransfer):
		response.Conflict(c, 23008, err.Error())
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		handleStorageError(c, err)
	}
}
