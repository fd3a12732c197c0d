package repository

import (
	"context"

	"gorm.io/gorm"

	"blockward/backend/internal/model"
)

// PointAwardRepository 积分发放记录数据访问接口
type PointAwardRepository interface {
	Create(ctx context.Context, award *model.PointAward) error
}

type pointAwardRepo struct {
	db *gorm.DB
}

// NewPointAwardRepo 创建 PointAwardRepository 实例
func NewPointAwardRepo(db *gorm.DB) PointAwardRepository {
	return &pointAwardRepo{db: db}
}

func (r *pointAwardRepo) Create(ctx context.Context, award *model.PointAward) error {
	return translate(r.db.WithContext(ctx).Create(award).Error)
}
