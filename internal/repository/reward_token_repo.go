package repository

import (
	"context"

	"gorm.io/gorm"

	"blockward/backend/internal/model"
	pkgerrors "blockward/backend/pkg/errors"
)

// RewardTokenRepository 奖励代币数据访问接口
type RewardTokenRepository interface {
	Create(ctx context.Context, token *model.RewardToken) error
	GetByID(ctx context.Context, id string) (*model.RewardToken, error)
	ListByOwner(ctx context.Context, walletID string, offset, limit int) ([]model.RewardToken, int64, error)
	// UpdateOwner 以 last_sequence 为版本号的 CAS 更新；版本不符返回 ErrOptimisticLock
	UpdateOwner(ctx context.Context, tokenID string, expectedSequence int64, ownerWalletID string) error
	// List 按 token_id 升序分批读取，afterID 为空表示从头开始
	List(ctx context.Context, afterID string, limit int) ([]model.RewardToken, error)
	// SetProjection 用账本重算结果覆盖缓存投影
	SetProjection(ctx context.Context, tokenID string, ownerWalletID *string, lastSequence int64) error
}

type rewardTokenRepo struct {
	db *gorm.DB
}

// NewRewardTokenRepo 创建 RewardTokenRepository 实例
func NewRewardTokenRepo(db *gorm.DB) RewardTokenRepository {
	return &rewardTokenRepo{db: db}
}

func (r *rewardTokenRepo) Create(ctx context.Context, token *model.RewardToken) error {
	return translate(r.db.WithContext(ctx).Create(token).Error)
}

func (r *rewardTokenRepo) GetByID(ctx context.Context, id string) (*model.RewardToken, error) {
	var token model.RewardToken
	err := r.db.WithContext(ctx).Where("token_id = ?", id).First(&token).Error
	if err != nil {
		return nil, translate(err)
	}
	return &token, nil
}

func (r *rewardTokenRepo) ListByOwner(ctx context.Context, walletID string, offset, limit int) ([]model.RewardToken, int64, error) {
	var total int64
	query := r.db.WithContext(ctx).Model(&model.RewardToken{}).Where("owner_wallet_id = ?", walletID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var tokens []model.RewardToken
	err := query.
		Order("updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&tokens).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return tokens, total, nil
}

func (r *rewardTokenRepo) UpdateOwner(ctx context.Context, tokenID string, expectedSequence int64, ownerWalletID string) error {
	result := r.db.WithContext(ctx).
		Model(&model.RewardToken{}).
		Where("token_id = ? AND last_sequence = ?", tokenID, expectedSequence).
		Updates(map[string]interface{}{
			"owner_wallet_id": ownerWalletID,
			"last_sequence":   expectedSequence + 1,
			"updated_at":      gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *rewardTokenRepo) List(ctx context.Context, afterID string, limit int) ([]model.RewardToken, error) {
	query := r.db.WithContext(ctx).Order("token_id ASC").Limit(limit)
	if afterID != "" {
		query = query.Where("token_id > ?", afterID)
	}
	var tokens []model.RewardToken
	if err := query.Find(&tokens).Error; err != nil {
		return nil, translate(err)
	}
	return tokens, nil
}

func (r *rewardTokenRepo) SetProjection(ctx context.Context, tokenID string, ownerWalletID *string, lastSequence int64) error {
	return translate(r.db.WithContext(ctx).
		Model(&model.RewardToken{}).
		Where("token_id = ?", tokenID).
		Updates(map[string]interface{}{
			"owner_wallet_id": ownerWalletID,
			"last_sequence":   lastSequence,
			"updated_at":      gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error)
}
