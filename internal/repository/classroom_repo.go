package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"blockward/backend/internal/model"
)

// ClassroomRepository 班级数据访问接口
type ClassroomRepository interface {
	Create(ctx context.Context, classroom *model.Classroom) error
	GetByID(ctx context.Context, id string) (*model.Classroom, error)
	// GetByIDForUpdate 行级锁查询班级，用于串行化同一班级的邀请码签发
	GetByIDForUpdate(ctx context.Context, id string) (*model.Classroom, error)
}

type classroomRepo struct {
	db *gorm.DB
}

// NewClassroomRepo 创建 ClassroomRepository 实例
func NewClassroomRepo(db *gorm.DB) ClassroomRepository {
	return &classroomRepo{db: db}
}

func (r *classroomRepo) Create(ctx context.Context, classroom *model.Classroom) error {
	return translate(r.db.WithContext(ctx).Create(classroom).Error)
}

func (r *classroomRepo) GetByID(ctx context.Context, id string) (*model.Classroom, error) {
	var classroom model.Classroom
	err := r.db.WithContext(ctx).
		Where("classroom_id = ?", id).
		First(&classroom).Error
	if err != nil {
		return nil, translate(err)
	}
	return &classroom, nil
}

// GetByIDForUpdate 必须在事务连接上调用
// 使用 NO KEY UPDATE：签发之间互斥，但不阻塞 enrollments 外键检查所需的 KEY SHARE
func (r *classroomRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Classroom, error) {
	var classroom model.Classroom
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "NO KEY UPDATE"}).
		Where("classroom_id = ?", id).
		First(&classroom).Error
	if err != nil {
		return nil, translate(err)
	}
	return &classroom, nil
}
