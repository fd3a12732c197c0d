package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"blockward/backend/internal/dto"
)

// sweepTimeout 单次清理的最长执行时间
const sweepTimeout = 5 * time.Minute

// InvitationSweeper 标记过期邀请码并清理历史记录
type InvitationSweeper interface {
	SweepExpired(ctx context.Context) (*dto.SweepResult, error)
}

// Sweeper 定时执行邀请码清理
// 兑换时会重新判断过期，清理任务只影响存储占用与状态展示
type Sweeper struct {
	sched    gocron.Scheduler
	ctx      context.Context
	cancel   context.CancelFunc
	target   InvitationSweeper
	interval time.Duration
	logger   *zap.Logger
}

// NewSweeper 创建清理任务；interval 为 0 时返回的 Sweeper 不做任何事
func NewSweeper(target InvitationSweeper, interval time.Duration, logger *zap.Logger) (*Sweeper, error) {
	s := &Sweeper{target: target, interval: interval, logger: logger}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if interval <= 0 {
		return s, nil
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		s.cancel()
		return nil, fmt.Errorf("创建调度器失败: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { s.RunOnce(s.ctx) }),
		gocron.WithName("invitation-sweeper"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		s.cancel()
		_ = sched.Shutdown()
		return nil, fmt.Errorf("注册清理任务失败: %w", err)
	}

	s.sched = sched
	return s, nil
}

// Start 启动调度器
func (s *Sweeper) Start() {
	if s.sched == nil {
		s.logger.Info("邀请码清理任务未启用")
		return
	}
	s.sched.Start()
	s.logger.Info("邀请码清理任务已启动", zap.Duration("interval", s.interval))
}

// Stop 取消正在执行的清理并停止调度器
func (s *Sweeper) Stop() error {
	s.cancel()
	if s.sched == nil {
		return nil
	}
	return s.sched.Shutdown()
}

// RunOnce 执行一次清理，错误只记录日志
func (s *Sweeper) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.target.SweepExpired(ctx)
	if err != nil {
		s.logger.Error("邀请码清理失败", zap.Error(err))
		return
	}
	if result.Expired > 0 || result.Purged > 0 {
		s.logger.Info("邀请码清理完成",
			zap.Int64("expired", result.Expired),
			zap.Int64("purged", result.Purged),
			zap.Duration("took", time.Since(start)),
		)
	}
}
