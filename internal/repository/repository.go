package repository

import (
	"context"

	"gorm.io/gorm"
)

// TxFunc 在事务内执行 fn，fn 收到绑定事务连接的 Repository
type TxFunc func(ctx context.Context, fn func(r *Repository) error) error

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Classroom   ClassroomRepository
	Invitation  InvitationRepository
	Enrollment  EnrollmentRepository
	Wallet      WalletRepository
	RewardToken RewardTokenRepository
	Ledger      LedgerRepository
	PointAward  PointAwardRepository

	// RunInTx 事务执行器；为空时直接在当前 Repository 上执行（测试用）
	RunInTx TxFunc
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	r := newRepository(db)
	r.RunInTx = func(ctx context.Context, fn func(r *Repository) error) error {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(r.WithTx(tx))
		})
	}
	return r
}

func newRepository(db *gorm.DB) *Repository {
	return &Repository{
		Classroom:   NewClassroomRepo(db),
		Invitation:  NewInvitationRepo(db),
		Enrollment:  NewEnrollmentRepo(db),
		Wallet:      NewWalletRepo(db),
		RewardToken: NewRewardTokenRepo(db),
		Ledger:      NewLedgerRepo(db),
		PointAward:  NewPointAwardRepo(db),
	}
}

// WithTx 返回绑定到事务连接的 Repository 副本
// 嵌套调用 Transaction 时使用 SAVEPOINT
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	txRepo := newRepository(tx)
	txRepo.RunInTx = func(ctx context.Context, fn func(r *Repository) error) error {
		return tx.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
			return fn(txRepo.WithTx(inner))
		})
	}
	return txRepo
}

// Transaction 在事务内执行 fn；fn 返回错误时回滚
func (r *Repository) Transaction(ctx context.Context, fn func(r *Repository) error) error {
	if r.RunInTx == nil {
		return fn(r)
	}
	return r.RunInTx(ctx, fn)
}
