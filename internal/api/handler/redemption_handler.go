package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"blockward/backend/internal/dto"
	"blockward/backend/internal/service"
	"blockward/backend/pkg/response"
)

// RedemptionHandler 邀请码兑换 HTTP 处理器
type RedemptionHandler struct {
	redemptionSvc service.RedemptionService
}

// NewRedemptionHandler 创建 RedemptionHandler
func NewRedemptionHandler(redemptionSvc service.RedemptionService) *RedemptionHandler {
	return &RedemptionHandler{redemptionSvc: redemptionSvc}
}

// Redeem 兑换邀请码加入班级
// POST /api/v1/redemptions
//
// student_id 缺省为当前用户；学生只能为自己兑换。
func (h *RedemptionHandler) Redeem(c *gin.Context) {
	var req dto.RedeemRequest
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

	studentID := req.StudentID
	if studentID == "" {
		studentID = callerID
	}
	if studentID != callerID && !isPrivileged(role) {
		response.Forbidden(c, 10003, "无权限访问")
		return
	}

	result, err := h.redemptionSvc.Redeem(c.Request.Context(), req.Token, studentID)
	if err != nil {
		h.handleRedemptionError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *RedemptionHandler) handleRedemptionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrInvalidStudentID):
		response.BadRequest(c, 21002, err.Error())
	case errors.Is(err, service.ErrCodeNotFound):
		response.NotFound(c, 21005, err.Error())
	case errors.Is(err, service.ErrCodeExpired):
		response.Gone(c, 21006, err.Error())
	case errors.Is(err, service.ErrCodeInvalidated):
		response.Conflict(c, 21007, err.Error())
	default:
		handleStorageError(c, err)
	}
}
