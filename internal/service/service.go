package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"blockward/backend/config"
	"blockward/backend/internal/repository"
)

// ── 领域事件 subject ──

const (
	SubjectEnrollmentCreated = "enrollment.created"
	SubjectRewardTransferred = "reward.transferred"
)

// EventPublisher 领域事件发布接口（提交后发布，失败只记录日志）
type EventPublisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// Service 所有 Service 的聚合入口
type Service struct {
	Classroom  ClassroomService
	Invitation InvitationService
	Redemption RedemptionService
	Wallet     WalletService
	Ledger     LedgerService
}

// NewService 创建 Service 聚合
// publisher 可为 nil，表示不发布领域事件
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	publisher EventPublisher,
	logger *zap.Logger,
) *Service {
	events := newEventSink(publisher, logger)
	return &Service{
		Classroom:  NewClassroomService(repo, events, logger),
		Invitation: NewInvitationService(&cfg.Invitation, repo, logger),
		Redemption: NewRedemptionService(repo, events, logger),
		Wallet:     NewWalletService(&cfg.Ledger, repo, logger),
		Ledger:     NewLedgerService(&cfg.Ledger, repo, events, logger),
	}
}

// eventSink 包装 EventPublisher，统一处理 nil 与失败日志
type eventSink struct {
	publisher EventPublisher
	logger    *zap.Logger
}

func newEventSink(publisher EventPublisher, logger *zap.Logger) *eventSink {
	return &eventSink{publisher: publisher, logger: logger}
}

func (e *eventSink) emit(ctx context.Context, subject string, v any) {
	if e == nil || e.publisher == nil {
		return
	}
	// 请求上下文可能已取消，事件发布使用独立的短超时
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := e.publisher.Publish(pubCtx, subject, v); err != nil {
		e.logger.Warn("领域事件发布失败", zap.String("subject", subject), zap.Error(err))
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
