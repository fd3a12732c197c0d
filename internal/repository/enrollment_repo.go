package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"blockward/backend/internal/model"
)

// EnrollmentRepository 班级成员数据访问接口
type EnrollmentRepository interface {
	// Create 插入成员关系；已存在时不报错，返回 created=false
	Create(ctx context.Context, enrollment *model.Enrollment) (bool, error)
	Exists(ctx context.Context, classroomID, studentID string) (bool, error)
	Delete(ctx context.Context, classroomID, studentID string) (bool, error)
	ListByClassroom(ctx context.Context, classroomID string, offset, limit int) ([]model.Enrollment, int64, error)
}

type enrollmentRepo struct {
	db *gorm.DB
}

// NewEnrollmentRepo 创建 EnrollmentRepository 实例
func NewEnrollmentRepo(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepo{db: db}
}

func (r *enrollmentRepo) Create(ctx context.Context, enrollment *model.Enrollment) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "classroom_id"}, {Name: "student_id"}},
			DoNothing: true,
		}).
		Create(enrollment)
	if result.Error != nil {
		return false, translate(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *enrollmentRepo) Exists(ctx context.Context, classroomID, studentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Enrollment{}).
		Where("classroom_id = ? AND student_id = ?", classroomID, studentID).
		Count(&count).Error
	if err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

func (r *enrollmentRepo) Delete(ctx context.Context, classroomID, studentID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("classroom_id = ? AND student_id = ?", classroomID, studentID).
		Delete(&model.Enrollment{})
	return result.RowsAffected > 0, translate(result.Error)
}

func (r *enrollmentRepo) ListByClassroom(ctx context.Context, classroomID string, offset, limit int) ([]model.Enrollment, int64, error) {
	var total int64
	query := r.db.WithContext(ctx).Model(&model.Enrollment{}).Where("classroom_id = ?", classroomID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var enrollments []model.Enrollment
	err := query.
		Order("created_at ASC").
		Offset(offset).
		Limit(limit).
		Find(&enrollments).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return enrollments, total, nil
}
