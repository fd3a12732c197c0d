package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	pkgerrors "blockward/backend/pkg/errors"
)

// 存储层约束冲突，供服务层区分处理
var (
	ErrDuplicate       = errors.New("记录已存在")
	ErrTokenCollision  = errors.New("邀请码与现有待使用邀请码冲突")
	ErrActiveSlotTaken = errors.New("该班级已存在待使用邀请码")
	ErrInvalidInput    = errors.New("参数格式错误")
	ErrNotFound        = gorm.ErrRecordNotFound
)

const (
	pgUniqueViolation           = "23505"
	pgInvalidTextRepresentation = "22P02"

	constraintPendingToken = "uq_invitation_codes_pending_token"
	constraintPendingSlot  = "uq_invitation_codes_pending_slot"
)

// translate 将 PostgreSQL 约束错误转换为仓储层错误，暂时性错误包装为 ErrTransient
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return pkgerrors.Classify(err)
	}
	switch pgErr.Code {
	case pgInvalidTextRepresentation:
		// 非法 UUID 等格式错误落到带类型的列
		return ErrInvalidInput
	case pgUniqueViolation:
		switch pgErr.ConstraintName {
		case constraintPendingToken:
			return ErrTokenCollision
		case constraintPendingSlot:
			return ErrActiveSlotTaken
		default:
			return ErrDuplicate
		}
	}
	return pkgerrors.Classify(err)
}
