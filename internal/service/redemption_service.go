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
	"blockward/backend/pkg/codegen"
	pkgerrors "blockward/backend/pkg/errors"
	"blockward/backend/pkg/metrics"
)

// RedemptionService 邀请码兑换业务接口
type RedemptionService interface {
	// Redeem 校验邀请码并将学生加入班级，同一学生重复兑换返回 AlreadyEnrolled=true
	Redeem(ctx context.Context, token, studentID string) (*dto.RedeemResponse, error)
}

type redemptionService struct {
	repo   *repository.Repository
	events *eventSink
	logger *zap.Logger
	now    func() time.Time
}

// NewRedemptionService 创建 RedemptionService 实例
func NewRedemptionService(repo *repository.Repository, events *eventSink, logger *zap.Logger) RedemptionService {
	return &redemptionService{repo: repo, events: events, logger: logger, now: time.Now}
}

func (s *redemptionService) Redeem(ctx context.Context, token, studentID string) (*dto.RedeemResponse, error) {
	token = codegen.Normalize(token)
	if err := codegen.Validate(token); err != nil {
		return nil, ErrInvalidToken
	}
	if studentID == "" {
		return nil, ErrInvalidStudentID
	}

	var (
		resp       *dto.RedeemResponse
		enrollment *model.Enrollment
		expiredID  string
	)
	now := s.now()

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		code, err := tx.Invitation.GetByTokenForUpdate(ctx, token)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCodeNotFound
			}
			return err
		}

		// 1. 过期
		if code.IsExpired(now) {
			if code.Status == model.InvitationPending {
				expiredID = code.InvitationID
			}
			return ErrCodeExpired
		}
		// 2. 已被重新生成作废
		if code.Status == model.InvitationSuperseded {
			return ErrCodeInvalidated
		}

		// 3. 已在班级中：幂等成功，不做任何写入
		enrolled, err := tx.Enrollment.Exists(ctx, code.ClassroomID, studentID)
		if err != nil {
			return err
		}
		if enrolled {
			resp = &dto.RedeemResponse{ClassroomID: code.ClassroomID, AlreadyEnrolled: true}
			return nil
		}

		// 4. 一次性邀请已被他人使用
		if code.Status == model.InvitationRedeemed || code.Exhausted() {
			return ErrCodeInvalidated
		}

		// 5. 写入成员关系；唯一约束冲突视为已在班级中
		invitationID := code.InvitationID
		enrollment = &model.Enrollment{
			ClassroomID:  code.ClassroomID,
			StudentID:    studentID,
			Source:       model.EnrollmentViaInvitation,
			InvitationID: &invitationID,
			CreatedBy:    studentID,
			CreatedAt:    now,
		}
		created, err := tx.Enrollment.Create(ctx, enrollment)
		if err != nil && !errors.Is(err, repository.ErrDuplicate) {
			return err
		}
		if !created {
			enrollment = nil
			resp = &dto.RedeemResponse{ClassroomID: code.ClassroomID, AlreadyEnrolled: true}
			return nil
		}

		if err := tx.Invitation.RecordRedemption(ctx, code, studentID, now); err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				return ErrCodeInvalidated
			}
			return err
		}
		resp = &dto.RedeemResponse{ClassroomID: code.ClassroomID, AlreadyEnrolled: false}
		return nil
	})

	if expiredID != "" {
		// 事务已回滚，在事务外补记过期状态；失败不影响结果
		if markErr := s.repo.Invitation.MarkExpired(ctx, expiredID); markErr != nil {
			s.logger.Warn("标记邀请码过期失败", zap.String("invitation_id", expiredID), zap.Error(markErr))
		}
	}

	if err != nil {
		metrics.Redemptions.WithLabelValues(redemptionOutcome(err)).Inc()
		if redemptionOutcome(err) == "error" {
			s.logger.Error("兑换邀请码失败", zap.Error(err))
		}
		return nil, err
	}

	if resp.AlreadyEnrolled {
		metrics.Redemptions.WithLabelValues("already_enrolled").Inc()
		return resp, nil
	}

	metrics.Redemptions.WithLabelValues("enrolled").Inc()
	s.logger.Info("学生通过邀请码加入班级",
		zap.String("classroom_id", resp.ClassroomID),
		zap.String("student_id", studentID),
	)
	s.events.emit(ctx, SubjectEnrollmentCreated, dto.EnrollmentEvent{
		ClassroomID:  enrollment.ClassroomID,
		StudentID:    studentID,
		Source:       string(model.EnrollmentViaInvitation),
		InvitationID: enrollment.InvitationID,
		OccurredAt:   formatTime(now),
	})
	return resp, nil
}

func redemptionOutcome(err error) string {
	switch {
	case errors.Is(err, ErrCodeNotFound):
		return "not_found"
	case errors.Is(err, ErrCodeExpired):
		return "expired"
	case errors.Is(err, ErrCodeInvalidated):
		return "invalidated"
	default:
		return "error"
	}
}
