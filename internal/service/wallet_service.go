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
	"blockward/backend/pkg/address"
	"blockward/backend/pkg/metrics"
)

// ── 钱包模块业务错误 ──

var (
	ErrWalletNotFound    = errors.New("钱包不存在")
	ErrInvalidWalletRole = errors.New("无效的钱包角色")
	ErrInvalidUserID     = errors.New("用户 ID 不能为空")
	ErrInvalidPoints     = errors.New("积分数值超出允许范围")
)

// 地址碰撞时的最大重试次数
const maxAddressAttempts = 3

// WalletService 钱包业务接口
type WalletService interface {
	// GetOrCreate 返回用户钱包，不存在时创建；并发调用只会产生一个钱包
	GetOrCreate(ctx context.Context, userID string, role model.WalletRole) (*dto.WalletResponse, error)
	// Credit 增加钱包余额，amount 必须非负
	Credit(ctx context.Context, walletID string, amount int64) (int64, error)
	// AwardPoints 不经代币转移直接发放积分，与发放记录在同一事务内写入
	AwardPoints(ctx context.Context, userID string, req *dto.AwardPointsRequest, callerID string) (*dto.WalletResponse, error)
	ListTokens(ctx context.Context, userID string, page *dto.PaginationRequest) (*dto.RewardTokenListResponse, error)
}

type walletService struct {
	cfg    *config.LedgerConfig
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewWalletService 创建 WalletService 实例
func NewWalletService(cfg *config.LedgerConfig, repo *repository.Repository, logger *zap.Logger) WalletService {
	return &walletService{cfg: cfg, repo: repo, logger: logger, now: time.Now}
}

// ────────────────────── GetOrCreate ──────────────────────

func (s *walletService) GetOrCreate(ctx context.Context, userID string, role model.WalletRole) (*dto.WalletResponse, error) {
	wallet, err := ensureWallet(ctx, s.repo, userID, role)
	if err != nil {
		if !isWalletInputError(err) {
			s.logger.Error("获取或创建钱包失败", zap.String("user_id", userID), zap.Error(err))
		}
		return nil, err
	}
	return toWalletResponse(wallet), nil
}

// ────────────────────── Credit ──────────────────────

func (s *walletService) Credit(ctx context.Context, walletID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidPoints
	}
	if amount == 0 {
		wallet, err := s.repo.Wallet.GetByID(ctx, walletID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, ErrWalletNotFound
			}
			return 0, err
		}
		return wallet.PointBalance, nil
	}

	balance, err := s.repo.Wallet.Credit(ctx, walletID, amount)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrWalletNotFound
		}
		return 0, err
	}
	metrics.PointsCredited.WithLabelValues("credit").Add(float64(amount))
	return balance, nil
}

// ────────────────────── AwardPoints ──────────────────────

func (s *walletService) AwardPoints(ctx context.Context, userID string, req *dto.AwardPointsRequest, callerID string) (*dto.WalletResponse, error) {
	if req.Points <= 0 || (s.cfg.MaxPointsPerTransfer > 0 && req.Points > s.cfg.MaxPointsPerTransfer) {
		return nil, ErrInvalidPoints
	}

	wallet, err := ensureWallet(ctx, s.repo, userID, model.WalletRoleStudent)
	if err != nil {
		return nil, err
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		balance, err := tx.Wallet.Credit(ctx, wallet.WalletID, req.Points)
		if err != nil {
			return err
		}
		wallet.PointBalance = balance
		return tx.PointAward.Create(ctx, &model.PointAward{
			WalletID:  wallet.WalletID,
			Points:    req.Points,
			Reason:    req.Reason,
			AwardedBy: callerID,
			CreatedAt: s.now(),
		})
	})
	if err != nil {
		s.logger.Error("发放积分失败", zap.String("wallet_id", wallet.WalletID), zap.Error(err))
		return nil, err
	}

	metrics.PointsCredited.WithLabelValues("award").Add(float64(req.Points))
	s.logger.Info("积分已发放",
		zap.String("wallet_id", wallet.WalletID),
		zap.Int64("points", req.Points),
		zap.String("awarded_by", callerID),
	)
	return toWalletResponse(wallet), nil
}

// ────────────────────── ListTokens ──────────────────────

func (s *walletService) ListTokens(ctx context.Context, userID string, page *dto.PaginationRequest) (*dto.RewardTokenListResponse, error) {
	resp := &dto.RewardTokenListResponse{
		Items:    []dto.RewardTokenResponse{},
		Page:     page.GetPage(),
		PageSize: page.GetPageSize(),
	}

	wallet, err := s.repo.Wallet.GetByOwner(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return resp, nil
		}
		return nil, err
	}

	tokens, total, err := s.repo.RewardToken.ListByOwner(ctx, wallet.WalletID, page.GetOffset(), page.GetPageSize())
	if err != nil {
		return nil, err
	}
	for i := range tokens {
		resp.Items = append(resp.Items, *toRewardTokenResponse(&tokens[i]))
	}
	resp.Total = total
	return resp, nil
}

// ── 内部辅助 ──

// ensureWallet 幂等获取或创建钱包
// owner_id 唯一约束保证并发创建只有一个成功；地址碰撞时换新地址重试
func ensureWallet(ctx context.Context, repo *repository.Repository, userID string, role model.WalletRole) (*model.Wallet, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	if !role.Valid() {
		return nil, ErrInvalidWalletRole
	}

	wallet, err := repo.Wallet.GetByOwner(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	for attempt := 0; attempt < maxAddressAttempts; attempt++ {
		addr, err := address.New()
		if err != nil {
			return nil, err
		}
		candidate := &model.Wallet{
			OwnerID: userID,
			Role:    role,
			Address: addr,
		}
		created, err := repo.Wallet.CreateIfAbsent(ctx, candidate)
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if created {
			return candidate, nil
		}
		// 并发请求已创建
		return repo.Wallet.GetByOwner(ctx, userID)
	}
	return nil, errors.New("钱包地址生成冲突次数过多")
}

func isWalletInputError(err error) bool {
	return errors.Is(err, ErrInvalidUserID) || errors.Is(err, ErrInvalidWalletRole)
}

func toWalletResponse(w *model.Wallet) *dto.WalletResponse {
	return &dto.WalletResponse{
		ID:           w.WalletID,
		OwnerID:      w.OwnerID,
		Role:         string(w.Role),
		Address:      w.Address,
		PointBalance: w.PointBalance,
	}
}
