package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"blockward/backend/config"
	"blockward/backend/internal/dto"
	"blockward/backend/internal/model"
	"blockward/backend/internal/repository"
	"blockward/backend/pkg/codegen"
	"blockward/backend/pkg/metrics"
)

// ── 邀请码模块业务错误 ──

var (
	ErrCodeNotFound           = errors.New("邀请码不存在")
	ErrCodeExpired            = errors.New("邀请码已过期")
	ErrCodeInvalidated        = errors.New("邀请码已失效")
	ErrGenerationExhausted    = errors.New("邀请码生成失败，请稍后重试")
	ErrActiveInvitationExists = errors.New("该班级已有有效邀请码，请使用重新生成")
	ErrInvalidTTL             = errors.New("邀请码有效期超出允许范围")
	ErrInvalidPurpose         = errors.New("不支持的邀请码用途")
	ErrInvalidToken           = errors.New("邀请码格式错误")
	ErrInvalidMaxRedemptions  = errors.New("兑换次数上限不能为负数")
)

const (
	kindInvitation = "invitation"
	kindLink       = "link"
)

// InvitationService 邀请码业务接口
type InvitationService interface {
	// Create 为班级签发邀请码；已有未过期的待使用邀请码时返回 ErrActiveInvitationExists
	Create(ctx context.Context, req *dto.CreateInvitationRequest, callerID string) (*dto.InvitationResponse, error)
	// Regenerate 作废班级当前待使用邀请码并签发新码，两步在同一事务内完成
	Regenerate(ctx context.Context, classroomID string, req *dto.RegenerateInvitationRequest, callerID string) (*dto.InvitationResponse, error)
	FindActive(ctx context.Context, classroomID, purpose, callerID string) (*dto.InvitationResponse, error)
	Lookup(ctx context.Context, token string) (*dto.InvitationResponse, error)
	// SweepExpired 标记过期邀请码并清理历史记录；正确性不依赖此任务
	SweepExpired(ctx context.Context) (*dto.SweepResult, error)
}

type invitationService struct {
	cfg    *config.InvitationConfig
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
	gen    func() (string, error)
}

// NewInvitationService 创建 InvitationService 实例
func NewInvitationService(cfg *config.InvitationConfig, repo *repository.Repository, logger *zap.Logger) InvitationService {
	return &invitationService{
		cfg:    cfg,
		repo:   repo,
		logger: logger,
		now:    time.Now,
		gen:    codegen.Generate,
	}
}

// issueParams 签发参数（已校验）
type issueParams struct {
	classroomID    string
	purpose        string
	ttl            time.Duration
	maxRedemptions int
	createdBy      string
}

// ────────────────────── Create ──────────────────────

func (s *invitationService) Create(ctx context.Context, req *dto.CreateInvitationRequest, callerID string) (*dto.InvitationResponse, error) {
	params, err := s.resolveParams(req.ClassroomID, req.Purpose, req.Kind, req.TTLSeconds, req.MaxRedemptions, callerID)
	if err != nil {
		return nil, err
	}

	var code *model.InvitationCode
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := lockOwnedClassroom(ctx, tx, params.classroomID, callerID); err != nil {
			return err
		}

		existing, err := tx.Invitation.FindPending(ctx, params.classroomID, params.purpose)
		switch {
		case err == nil && !existing.IsExpired(s.now()):
			return ErrActiveInvitationExists
		case err == nil:
			// 旧码已过期但尚未标记，先释放待使用槽位
			if err := tx.Invitation.MarkExpired(ctx, existing.InvitationID); err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		code, err = s.issue(ctx, tx, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.InvitationsIssued.WithLabelValues("created").Inc()
	s.logger.Info("邀请码已签发",
		zap.String("classroom_id", code.ClassroomID),
		zap.String("invitation_id", code.InvitationID),
		zap.Time("expires_at", code.ExpiresAt),
	)
	return toInvitationResponse(code), nil
}

// ────────────────────── Regenerate ──────────────────────

func (s *invitationService) Regenerate(ctx context.Context, classroomID string, req *dto.RegenerateInvitationRequest, callerID string) (*dto.InvitationResponse, error) {
	params, err := s.resolveParams(classroomID, req.Purpose, req.Kind, req.TTLSeconds, req.MaxRedemptions, callerID)
	if err != nil {
		return nil, err
	}

	var (
		code       *model.InvitationCode
		superseded int64
	)
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := lockOwnedClassroom(ctx, tx, params.classroomID, callerID); err != nil {
			return err
		}
		var err error
		superseded, err = tx.Invitation.SupersedePending(ctx, params.classroomID, params.purpose, s.now())
		if err != nil {
			return err
		}
		code, err = s.issue(ctx, tx, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.InvitationsIssued.WithLabelValues("regenerated").Inc()
	s.logger.Info("邀请码已重新生成",
		zap.String("classroom_id", code.ClassroomID),
		zap.String("invitation_id", code.InvitationID),
		zap.Int64("superseded", superseded),
	)
	return toInvitationResponse(code), nil
}

// ────────────────────── FindActive ──────────────────────

func (s *invitationService) FindActive(ctx context.Context, classroomID, purpose, callerID string) (*dto.InvitationResponse, error) {
	purpose, err := normalizePurpose(purpose)
	if err != nil {
		return nil, err
	}
	if _, err := loadOwnedClassroom(ctx, s.repo, classroomID, callerID); err != nil {
		return nil, err
	}

	code, err := s.repo.Invitation.FindPending(ctx, classroomID, purpose)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}
	if code.IsExpired(s.now()) {
		return nil, ErrCodeNotFound
	}
	return toInvitationResponse(code), nil
}

// ────────────────────── Lookup ──────────────────────

func (s *invitationService) Lookup(ctx context.Context, token string) (*dto.InvitationResponse, error) {
	token = codegen.Normalize(token)
	if err := codegen.Validate(token); err != nil {
		return nil, ErrInvalidToken
	}
	code, err := s.repo.Invitation.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}
	return toInvitationResponse(code), nil
}

// ────────────────────── SweepExpired ──────────────────────

func (s *invitationService) SweepExpired(ctx context.Context) (*dto.SweepResult, error) {
	now := s.now()
	result := &dto.SweepResult{}

	expired, err := s.repo.Invitation.ExpireOverdue(ctx, now)
	if err != nil {
		s.logger.Error("标记过期邀请码失败", zap.Error(err))
		return nil, err
	}
	result.Expired = expired
	metrics.SweptInvitations.WithLabelValues("expired").Add(float64(expired))

	if s.cfg.PurgeAfter > 0 {
		purged, err := s.repo.Invitation.PurgeExpired(ctx, now.Add(-s.cfg.PurgeAfter))
		if err != nil {
			s.logger.Error("清理历史邀请码失败", zap.Error(err))
			return nil, err
		}
		result.Purged = purged
		metrics.SweptInvitations.WithLabelValues("purged").Add(float64(purged))
	}

	if result.Expired > 0 || result.Purged > 0 {
		s.logger.Info("邀请码清理完成",
			zap.Int64("expired", result.Expired),
			zap.Int64("purged", result.Purged),
		)
	}
	return result, nil
}

// ── 内部辅助 ──

func (s *invitationService) resolveParams(classroomID, purpose, kind string, ttlSeconds int64, maxRedemptions int, callerID string) (*issueParams, error) {
	purpose, err := normalizePurpose(purpose)
	if err != nil {
		return nil, err
	}
	if maxRedemptions < 0 {
		return nil, ErrInvalidMaxRedemptions
	}

	var ttl time.Duration
	switch {
	case ttlSeconds > 0:
		ttl = time.Duration(ttlSeconds) * time.Second
	case kind == kindLink:
		ttl = s.cfg.LinkTTL
	default:
		ttl = s.cfg.DefaultTTL
	}
	if ttl <= 0 || ttl > s.cfg.MaxTTL {
		return nil, ErrInvalidTTL
	}

	return &issueParams{
		classroomID:    classroomID,
		purpose:        purpose,
		ttl:            ttl,
		maxRedemptions: maxRedemptions,
		createdBy:      callerID,
	}, nil
}

// issue 在事务内生成并插入邀请码；每次插入使用 SAVEPOINT，碰撞时回滚到保存点后重试
func (s *invitationService) issue(ctx context.Context, tx *repository.Repository, p *issueParams) (*model.InvitationCode, error) {
	attempts := s.cfg.MaxGenerateAttempts
	if attempts <= 0 {
		attempts = 5
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		token, err := s.gen()
		if err != nil {
			return nil, err
		}

		now := s.now()
		code := &model.InvitationCode{
			Token:          token,
			ClassroomID:    p.classroomID,
			Purpose:        p.purpose,
			Status:         model.InvitationPending,
			MaxRedemptions: p.maxRedemptions,
			ExpiresAt:      now.Add(p.ttl),
			CreatedBy:      p.createdBy,
			BaseModel:      model.BaseModel{CreatedAt: now, UpdatedAt: now},
		}

		err = tx.Transaction(ctx, func(sp *repository.Repository) error {
			return sp.Invitation.Create(ctx, code)
		})
		switch {
		case err == nil:
			return code, nil
		case errors.Is(err, repository.ErrTokenCollision):
			metrics.CodeCollisions.Inc()
			s.logger.Debug("邀请码碰撞，重新生成", zap.Int("attempt", attempt))
		case errors.Is(err, repository.ErrActiveSlotTaken):
			return nil, ErrActiveInvitationExists
		default:
			return nil, err
		}
	}

	s.logger.Error("邀请码生成次数耗尽",
		zap.String("classroom_id", p.classroomID),
		zap.Int("attempts", attempts),
	)
	return nil, ErrGenerationExhausted
}

func normalizePurpose(purpose string) (string, error) {
	if purpose == "" {
		return model.PurposeGeneral, nil
	}
	if purpose != model.PurposeGeneral {
		return "", ErrInvalidPurpose
	}
	return purpose, nil
}

// lockOwnedClassroom 在事务内锁定班级行并校验调用者，同一班级的签发由此串行化
func lockOwnedClassroom(ctx context.Context, tx *repository.Repository, classroomID, callerID string) (*model.Classroom, error) {
	classroom, err := tx.Classroom.GetByIDForUpdate(ctx, classroomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassroomNotFound
		}
		return nil, err
	}
	if classroom.TeacherID != callerID {
		return nil, ErrNotClassroomTeacher
	}
	return classroom, nil
}

func toInvitationResponse(c *model.InvitationCode) *dto.InvitationResponse {
	return &dto.InvitationResponse{
		ID:             c.InvitationID,
		Token:          c.Token,
		ClassroomID:    c.ClassroomID,
		Purpose:        c.Purpose,
		Status:         string(c.Status),
		MaxRedemptions: c.MaxRedemptions,
		UsageCount:     c.UsageCount,
		ExpiresAt:      formatTime(c.ExpiresAt),
		CreatedAt:      formatTime(c.CreatedAt),
	}
}
