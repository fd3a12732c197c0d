package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"blockward/backend/internal/dto"
	"blockward/backend/internal/service"
	"blockward/backend/pkg/response"
)

// InvitationHandler 邀请码模块 HTTP 处理器
type InvitationHandler struct {
	invitationSvc service.InvitationService
}

// NewInvitationHandler 创建 InvitationHandler
func NewInvitationHandler(invitationSvc service.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitationSvc: invitationSvc}
}

// CreateInvitation 为班级签发邀请码
// POST /api/v1/invitations
func (h *InvitationHandler) CreateInvitation(c *gin.Context) {
	var req dto.CreateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	inv, err := h.invitationSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleInvitationError(c, err)
		return
	}

	response.Created(c, inv)
}

// RegenerateInvitation 作废当前邀请码并签发新码
// POST /api/v1/invitations/:classroomId/regenerate
func (h *InvitationHandler) RegenerateInvitation(c *gin.Context) {
	classroomID, ok := MustGetUUIDParam(c, "classroomId")
	if !ok {
		return
	}

	var req dto.RegenerateInvitationRequest
	// 请求体可以为空，全部使用默认值
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, 10001, "参数校验失败")
			return
		}
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	inv, err := h.invitationSvc.Regenerate(c.Request.Context(), classroomID, &req, callerID)
	if err != nil {
		h.handleInvitationError(c, err)
		return
	}

	response.Created(c, inv)
}

// GetActiveInvitation 查询班级当前有效的邀请码
// GET /api/v1/invitations/:classroomId/active?purpose=general
func (h *InvitationHandler) GetActiveInvitation(c *gin.Context) {
	classroomID, ok := MustGetUUIDParam(c, "classroomId")
	if !ok {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	inv, err := h.invitationSvc.FindActive(c.Request.Context(), classroomID, c.Query("purpose"), callerID)
	if err != nil {
		h.handleInvitationError(c, err)
		return
	}

	response.OK(c, inv)
}

// LookupInvitation 兑换前预览邀请码状态
// GET /api/v1/invitations/by-token/:token
func (h *InvitationHandler) LookupInvitation(c *gin.Context) {
	inv, err := h.invitationSvc.Lookup(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.handleInvitationError(c, err)
		return
	}

	response.OK(c, inv)
}

func (h *InvitationHandler) handleInvitationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidTTL),
		errors.Is(err, service.ErrInvalidPurpose),
		errors.Is(err, service.ErrInvalidMaxRedemptions):
		response.BadRequest(c, 21001, err.Error())
	case errors.Is(err, service.ErrInvalidToken):
		response.BadRequest(c, 21002, err.Error())
	case errors.Is(err, service.ErrClassroomNotFound):
		response.NotFound(c, 21003, err.Error())
	case errors.Is(err, service.ErrNotClassroomTeacher):
		response.Forbidden(c, 21004, err.Error())
	case errors.Is(err, service.ErrCodeNotFound):
		response.NotFound(c, 21005, err.Error())
	case errors.Is(err, service.ErrCodeExpired):
		response.Gone(c, 21006, err.Error())
	case errors.Is(err, service.ErrCodeInvalidated):
		response.Conflict(c, 21007, err.Error())
	case errors.Is(err, service.ErrActiveInvitationExists):
		response.Conflict(c, 21008, err.Error())
	case errors.Is(err, service.ErrGenerationExhausted):
		response.Error(c, http.StatusServiceUnavailable, 21009, err.Error())
	default:
		handleStorageError(c, err)
	}
}
