package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"blockward/backend/internal/dto"
	"blockward/backend/internal/service"
	"blockward/backend/pkg/response"
)

// ClassroomHandler 班级与成员 HTTP 处理器
type ClassroomHandler struct {
	classroomSvc service.ClassroomService
}

// NewClassroomHandler 创建 ClassroomHandler
func NewClassroomHandler(classroomSvc service.ClassroomService) *ClassroomHandler {
	return &ClassroomHandler{classroomSvc: classroomSvc}
}

// CreateClassroom 创建班级，调用者成为班级教师
// POST /api/v1/classrooms
func (h *ClassroomHandler) CreateClassroom(c *gin.Context) {
	var req dto.CreateClassroomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	classroom, err := h.classroomSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleClassroomError(c, err)
		return
	}

	response.Created(c, classroom)
}

// Enroll 教师直接添加学生
// POST /api/v1/classrooms/:id/enrollments
func (h *ClassroomHandler) Enroll(c *gin.Context) {
	classroomID, ok := MustGetUUIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	enrollment, err := h.classroomSvc.Enroll(c.Request.Context(), classroomID, req.StudentID, callerID)
	if err != nil {
		h.handleClassroomError(c, err)
		return
	}

	if enrollment.AlreadyEnrolled {
		response.OK(c, enrollment)
		return
	}
	response.Created(c, enrollment)
}

// Unenroll 移出学生
// DELETE /api/v1/classrooms/:id/enrollments/:studentId
func (h *ClassroomHandler) Unenroll(c *gin.Context) {
	classroomID, ok := MustGetUUIDParam(c, "id")
	if !ok {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.classroomSvc.Unenroll(c.Request.Context(), classroomID, c.Param("studentId"), callerID); err != nil {
		h.handleClassroomError(c, err)
		return
	}

	response.OK(c, nil)
}

// ListEnrollments 班级成员列表
// GET /api/v1/classrooms/:id/enrollments?page=1&page_size=20
func (h *ClassroomHandler) ListEnrollments(c *gin.Context) {
	classroomID, ok := MustGetUUIDParam(c, "id")
	if !ok {
		return
	}

	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.classroomSvc.ListEnrollments(c.Request.Context(), classroomID, &page, callerID)
	if err != nil {
		h.handleClassroomError(c, err)
		return
	}

	response.OKPage(c, list.Items, list.Total, list.Page, list.PageSize)
}

func (h *ClassroomHandler) handleClassroomError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidStudentID):
		response.BadRequest(c, 20001, err.Error())
	case errors.Is(err, service.ErrClassroomNotFound):
		response.NotFound(c, 20002, err.Error())
	case errors.Is(err, service.ErrNotClassroomTeacher):
		response.Forbidden(c, 20003, err.Error())
	case errors.Is(err, service.ErrEnrollmentNotFound):
		response.NotFound(c, 20004, err.Error())
	default:
		handleStorageError(c, err)
	}
}
