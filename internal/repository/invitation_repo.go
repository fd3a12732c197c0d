package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"blockward/backend/internal/model"
	pkgerrors "blockward/backend/pkg/errors"
)

// InvitationRepository 邀请码数据访问接口
type InvitationRepository interface {
	// Create 插入邀请码；待使用 token 冲突返回 ErrTokenCollision，班级已有待使用邀请码返回 ErrActiveSlotTaken
	Create(ctx context.Context, code *model.InvitationCode) error
	// GetByToken 按 token 查询，优先返回待使用记录，否则返回最近一条
	GetByToken(ctx context.Context, token string) (*model.InvitationCode, error)
	// GetByTokenForUpdate 同 GetByToken，附加行级锁；必须在事务内调用
	GetByTokenForUpdate(ctx context.Context, token string) (*model.InvitationCode, error)
	// FindPending 查询班级 + 用途当前的待使用邀请码（可能已过期但尚未清理）
	FindPending(ctx context.Context, classroomID, purpose string) (*model.InvitationCode, error)
	// SupersedePending 作废班级 + 用途下所有待使用邀请码，返回作废数量
	SupersedePending(ctx context.Context, classroomID, purpose string, at time.Time) (int64, error)
	MarkExpired(ctx context.Context, invitationID string) error
	// RecordRedemption 使用次数 +1，达到上限时标记为已兑换；状态已变化时返回 ErrOptimisticLock
	RecordRedemption(ctx context.Context, code *model.InvitationCode, studentID string, at time.Time) error
	// ExpireOverdue 将已过期的待使用邀请码标记为 expired
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
	// PurgeExpired 删除 before 之前已过期或已作废的记录；已兑换记录保留
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

type invitationRepo struct {
	db *gorm.DB
}

// NewInvitationRepo 创建 InvitationRepository 实例
func NewInvitationRepo(db *gorm.DB) InvitationRepository {
	return &invitationRepo{db: db}
}

func (r *invitationRepo) Create(ctx context.Context, code *model.InvitationCode) error {
	return translate(r.db.WithContext(ctx).Create(code).Error)
}

func (r *invitationRepo) byToken(db *gorm.DB, token string) (*model.InvitationCode, error) {
	var code model.InvitationCode
	err := db.
		Where("token = ?", token).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:  "CASE WHEN status = ? THEN 0 ELSE 1 END",
			Vars: []interface{}{model.InvitationPending},
		}}).
		Order("created_at DESC").
		First(&code).Error
	if err != nil {
		return nil, translate(err)
	}
	return &code, nil
}

func (r *invitationRepo) GetByToken(ctx context.Context, token string) (*model.InvitationCode, error) {
	return r.byToken(r.db.WithContext(ctx), token)
}

func (r *invitationRepo) GetByTokenForUpdate(ctx context.Context, token string) (*model.InvitationCode, error) {
	return r.byToken(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), token)
}

func (r *invitationRepo) FindPending(ctx context.Context, classroomID, purpose string) (*model.InvitationCode, error) {
	var code model.InvitationCode
	err := r.db.WithContext(ctx).
		Where("classroom_id = ? AND purpose = ? AND status = ?", classroomID, purpose, model.InvitationPending).
		First(&code).Error
	if err != nil {
		return nil, translate(err)
	}
	return &code, nil
}

func (r *invitationRepo) SupersedePending(ctx context.Context, classroomID, purpose string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.InvitationCode{}).
		Where("classroom_id = ? AND purpose = ? AND status = ?", classroomID, purpose, model.InvitationPending).
		Updates(map[string]interface{}{
			"status":        model.InvitationSuperseded,
			"superseded_at": at,
			"updated_at":    at,
		})
	return result.RowsAffected, translate(result.Error)
}

func (r *invitationRepo) MarkExpired(ctx context.Context, invitationID string) error {
	return translate(r.db.WithContext(ctx).
		Model(&model.InvitationCode{}).
		Where("invitation_id = ? AND status = ?", invitationID, model.InvitationPending).
		Updates(map[string]interface{}{
			"status":     model.InvitationExpired,
			"updated_at": time.Now(),
		}).Error)
}

func (r *invitationRepo) RecordRedemption(ctx context.Context, code *model.InvitationCode, studentID string, at time.Time) error {
	usage := code.UsageCount + 1
	updates := map[string]interface{}{
		"usage_count": usage,
		"redeemed_at": at,
		"redeemed_by": studentID,
		"updated_at":  at,
	}
	status := code.Status
	if code.MaxRedemptions > 0 && usage >= code.MaxRedemptions {
		status = model.InvitationRedeemed
		updates["status"] = status
	}

	result := r.db.WithContext(ctx).
		Model(&model.InvitationCode{}).
		Where("invitation_id = ? AND status = ? AND usage_count = ?", code.InvitationID, model.InvitationPending, code.UsageCount).
		Updates(updates)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}

	code.UsageCount = usage
	code.Status = status
	code.RedeemedAt = &at
	code.RedeemedBy = &studentID
	return nil
}

func (r *invitationRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.InvitationCode{}).
		Where("status = ? AND expires_at < ?", model.InvitationPending, now).
		Updates(map[string]interface{}{
			"status":     model.InvitationExpired,
			"updated_at": now,
		})
	return result.RowsAffected, translate(result.Error)
}

func (r *invitationRepo) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?",
			[]model.InvitationStatus{model.InvitationExpired, model.InvitationSuperseded},
			before).
		Delete(&model.InvitationCode{})
	return result.RowsAffected, translate(result.Error)
}
