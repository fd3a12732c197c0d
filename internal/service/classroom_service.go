package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"blockward/backend/internal/dto"
	"blockward/backend/internal/model"
	"blockward/backend/internal/repository"
)

// ── 班级模块业务错误 ──

var (
	ErrClassroomNotFound   = errors.New("班级不存在")
	ErrNotClassroomTeacher = errors.New("仅班级教师可执行此操作")
	ErrEnrollmentNotFound  = errors.New("该学生不在班级中")
	ErrInvalidStudentID    = errors.New("学生 ID 不能为空")
)

// ClassroomService 班级与成员业务接口
type ClassroomService interface {
	Create(ctx context.Context, req *dto.CreateClassroomRequest, callerID string) (*dto.ClassroomResponse, error)
	// Enroll 教师直接添加学生；已在班级中时返回 AlreadyEnrolled=true
	Enroll(ctx context.Context, classroomID, studentID, callerID string) (*dto.EnrollmentResponse, error)
	Unenroll(ctx context.Context, classroomID, studentID, callerID string) error
	ListEnrollments(ctx context.Context, classroomID string, page *dto.PaginationRequest, callerID string) (*dto.EnrollmentListResponse, error)
}

type classroomService struct {
	repo   *repository.Repository
	events *eventSink
	logger *zap.Logger
	now    func() time.Time
}

// NewClassroomService 创建 ClassroomService 实例
func NewClassroomService(repo *repository.Repository, events *eventSink, logger *zap.Logger) ClassroomService {
	return &classroomService{repo: repo, events: events, logger: logger, now: time.Now}
}

// ────────────────────── Create ──────────────────────

func (s *classroomService) Create(ctx context.Context, req *dto.CreateClassroomRequest, callerID string) (*dto.ClassroomResponse, error) {
	classroom := &model.Classroom{
		Name:      req.Name,
		TeacherID: callerID,
	}
	if err := s.repo.Classroom.Create(ctx, classroom); err != nil {
		s.logger.Error("创建班级失败", zap.Error(err))
		return nil, err
	}
	return toClassroomResponse(classroom), nil
}

// ────────────────────── Enroll ──────────────────────

func (s *classroomService) Enroll(ctx context.Context, classroomID, studentID, callerID string) (*dto.EnrollmentResponse, error) {
	if studentID == "" {
		return nil, ErrInvalidStudentID
	}
	if _, err := loadOwnedClassroom(ctx, s.repo, classroomID, callerID); err != nil {
		return nil, err
	}

	enrollment := &model.Enrollment{
		ClassroomID: classroomID,
		StudentID:   studentID,
		Source:      model.EnrollmentViaTeacher,
		CreatedBy:   callerID,
		CreatedAt:   s.now(),
	}
	created, err := s.repo.Enrollment.Create(ctx, enrollment)
	if err != nil && !errors.Is(err, repository.ErrDuplicate) {
		s.logger.Error("添加班级成员失败", zap.String("classroom_id", classroomID), zap.Error(err))
		return nil, err
	}

	resp := &dto.EnrollmentResponse{
		ClassroomID:     classroomID,
		StudentID:       studentID,
		Source:          string(model.EnrollmentViaTeacher),
		AlreadyEnrolled: !created,
	}
	if created {
		resp.CreatedAt = formatTime(enrollment.CreatedAt)
		s.events.emit(ctx, SubjectEnrollmentCreated, dto.EnrollmentEvent{
			ClassroomID: classroomID,
			StudentID:   studentID,
			Source:      string(model.EnrollmentViaTeacher),
			OccurredAt:  formatTime(enrollment.CreatedAt),
		})
	}
	return resp, nil
}

// ────────────────────── Unenroll ──────────────────────

func (s *classroomService) Unenroll(ctx context.Context, classroomID, studentID, callerID string) error {
	if _, err := loadOwnedClassroom(ctx, s.repo, classroomID, callerID); err != nil {
		return err
	}
	deleted, err := s.repo.Enrollment.Delete(ctx, classroomID, studentID)
	if err != nil {
		s.logger.Error("移除班级成员失败", zap.String("classroom_id", classroomID), zap.Error(err))
		return err
	}
	if !deleted {
		return ErrEnrollmentNotFound
	}
	return nil
}

// ────────────────────── ListEnrollments ──────────────────────

func (s *classroomService) ListEnrollments(ctx context.Context, classroomID string, page *dto.PaginationRequest, callerID string) (*dto.EnrollmentListResponse, error) {
	if _, err := loadOwnedClassroom(ctx, s.repo, classroomID, callerID); err != nil {
		return nil, err
	}
	enrollments, total, err := s.repo.Enrollment.ListByClassroom(ctx, classroomID, page.GetOffset(), page.GetPageSize())
	if err != nil {
		return nil, err
	}

	items := make([]dto.EnrollmentResponse, 0, len(enrollments))
	for i := range enrollments {
		e := &enrollments[i]
		items = append(items, dto.EnrollmentResponse{
			ClassroomID:  e.ClassroomID,
			StudentID:    e.StudentID,
			Source:       string(e.Source),
			InvitationID: e.InvitationID,
			CreatedAt:    formatTime(e.CreatedAt),
		})
	}
	return &dto.EnrollmentListResponse{
		Items:    items,
		Total:    total,
		Page:     page.GetPage(),
		PageSize: page.GetPageSize(),
	}, nil
}

// ── 内部辅助 ──

// loadOwnedClassroom 查询班级并校验调用者为该班级教师
func loadOwnedClassroom(ctx context.Context, repo *repository.Repository, classroomID, callerID string) (*model.Classroom, error) {
	classroom, err := repo.Classroom.GetByID(ctx, classroomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassroomNotFound
		}
		return nil, err
	}
	if classroom.TeacherID != callerID {
		return nil, ErrNotClassroomTeacher
	}
	return classroom, nil
}

func toClassroomResponse(c *model.Classroom) *dto.ClassroomResponse {
	return &dto.ClassroomResponse{
		ID:        c.ClassroomID,
		Name:      c.Name,
		TeacherID: c.TeacherID,
		CreatedAt: formatTime(c.CreatedAt),
	}
}
