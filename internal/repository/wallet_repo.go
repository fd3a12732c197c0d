package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"blockward/backend/internal/model"
)

// WalletRepository 钱包数据访问接口
type WalletRepository interface {
	// CreateIfAbsent 按 owner_id 幂等插入；已存在返回 created=false，地址冲突返回 ErrDuplicate
	CreateIfAbsent(ctx context.Context, wallet *model.Wallet) (bool, error)
	GetByID(ctx context.Context, id string) (*model.Wallet, error)
	GetByOwner(ctx context.Context, ownerID string) (*model.Wallet, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Wallet, error)
	// Credit 原子增加余额，返回新余额
	Credit(ctx context.Context, walletID string, points int64) (int64, error)
}

type walletRepo struct {
	db *gorm.DB
}

// NewWalletRepo 创建 WalletRepository 实例
func NewWalletRepo(db *gorm.DB) WalletRepository {
	return &walletRepo{db: db}
}

func (r *walletRepo) CreateIfAbsent(ctx context.Context, wallet *model.Wallet) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}},
			DoNothing: true,
		}).
		Create(wallet)
	if result.Error != nil {
		return false, translate(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *walletRepo) GetByID(ctx context.Context, id string) (*model.Wallet, error) {
	var wallet model.Wallet
	err := r.db.WithContext(ctx).Where("wallet_id = ?", id).First(&wallet).Error
	if err != nil {
		return nil, translate(err)
	}
	return &wallet, nil
}

func (r *walletRepo) GetByOwner(ctx context.Context, ownerID string) (*model.Wallet, error) {
	var wallet model.Wallet
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&wallet).Error
	if err != nil {
		return nil, translate(err)
	}
	return &wallet, nil
}

func (r *walletRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Wallet, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var wallets []model.Wallet
	err := r.db.WithContext(ctx).Where("wallet_id IN ?", ids).Find(&wallets).Error
	if err != nil {
		return nil, translate(err)
	}
	return wallets, nil
}

func (r *walletRepo) Credit(ctx context.Context, walletID string, points int64) (int64, error) {
	var wallet model.Wallet
	result := r.db.WithContext(ctx).
		Model(&wallet).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "point_balance"}}}).
		Where("wallet_id = ?", walletID).
		Updates(map[string]interface{}{
			"point_balance": gorm.Expr("point_balance + ?", points),
			"updated_at":    gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if result.Error != nil {
		return 0, translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	return wallet.PointBalance, nil
}
