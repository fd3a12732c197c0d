package repository

import (
	"context"

	"gorm.io/gorm"

	"blockward/backend/internal/model"
)

// LedgerRepository 账本数据访问接口（只追加）
type LedgerRepository interface {
	// Append 追加条目；(token_id, sequence) 冲突返回 ErrDuplicate
	Append(ctx context.Context, entry *model.LedgerEntry) error
	// ListByToken 按 sequence 升序返回全部条目
	ListByToken(ctx context.Context, tokenID string) ([]model.LedgerEntry, error)
	// Latest 返回 sequence 最大的条目，无条目时返回 ErrNotFound
	Latest(ctx context.Context, tokenID string) (*model.LedgerEntry, error)
}

type ledgerRepo struct {
	db *gorm.DB
}

// NewLedgerRepo 创建 LedgerRepository 实例
func NewLedgerRepo(db *gorm.DB) LedgerRepository {
	return &ledgerRepo{db: db}
}

func (r *ledgerRepo) Append(ctx context.Context, entry *model.LedgerEntry) error {
	return translate(r.db.WithContext(ctx).Create(entry).Error)
}

func (r *ledgerRepo) ListByToken(ctx context.Context, tokenID string) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("token_id = ?", tokenID).
		Order("sequence ASC").
		Find(&entries).Error
	if err != nil {
		return nil, translate(err)
	}
	return entries, nil
}

func (r *ledgerRepo) Latest(ctx context.Context, tokenID string) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("token_id = ?", tokenID).
		Order("sequence DESC").
		First(&entry).Error
	if err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}
