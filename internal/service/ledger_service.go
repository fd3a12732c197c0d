package service

import (
	"bytes"
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"blockward/backend/config"
	"blockward/backend/internal/dto"
	"blockward/backend/internal/model"
	"blockward/backend/internal/repository"
	pkgerrors "blockward/backend/pkg/errors"
	"blockward/backend/pkg/metrics"
)

// ── 奖励账本模块业务错误 ──

var (
	ErrRewardTokenNotFound        = errors.New("奖励代币不存在")
	ErrOwnershipMismatch          = errors.New("转出钱包不是该代币的当前持有人")
	ErrConcurrentTransferConflict = errors.New("代币正在被其他操作转移，请刷新后重试")
	ErrSelfTransfer               = errors.New("不能转移给当前持有人")
	ErrInvalidCategory            = errors.New("无效的奖励类别")
)

// TransferInput 单次代币转移参数
// FromWalletID 为 nil 表示从未分配池首次发放；PointsToAward 为 nil 时取代币面值
type TransferInput struct {
	TokenID       string
	FromWalletID  *string
	ToWalletID    string
	PointsToAward *int64
	InitiatedBy   string
}

// LedgerService 奖励账本业务接口
type LedgerService interface {
	// MintToken 创建未分配的奖励代币，AssignToSelf 时立即发放到创建者钱包
	MintToken(ctx context.Context, req *dto.MintTokenRequest, callerID string, callerRole model.WalletRole) (*dto.RewardTokenResponse, error)
	// Transfer 在一个事务内追加账本、更新持有人投影并发放积分
	Transfer(ctx context.Context, in *TransferInput) (*dto.TransferResponse, error)
	// TransferToUser 以调用者身份把代币转给指定用户（接收方钱包按需创建）
	TransferToUser(ctx context.Context, req *dto.TransferRequest, callerID string) (*dto.TransferResponse, error)
	CurrentOwner(ctx context.Context, tokenID string) (*dto.OwnerResponse, error)
	// History 按 sequence 升序返回转移记录
	History(ctx context.Context, tokenID string) ([]dto.LedgerEntryResponse, error)
	ExportHistory(ctx context.Context, tokenID string) (*bytes.Buffer, string, error)
	// Reconcile 以账本为准重算持有人投影，fix 为 true 时修复偏差
	Reconcile(ctx context.Context, fix bool) (*dto.ReconcileReport, error)
}

type ledgerService struct {
	cfg    *config.LedgerConfig
	repo   *repository.Repository
	events *eventSink
	logger *zap.Logger
	now    func() time.Time
}

// NewLedgerService 创建 LedgerService 实例
func NewLedgerService(cfg *config.LedgerConfig, repo *repository.Repository, events *eventSink, logger *zap.Logger) LedgerService {
	return &ledgerService{cfg: cfg, repo: repo, events: events, logger: logger, now: time.Now}
}

// ────────────────────── MintToken ──────────────────────

func (s *ledgerService) MintToken(ctx context.Context, req *dto.MintTokenRequest, callerID string, callerRole model.WalletRole) (*dto.RewardTokenResponse, error) {
	meta := req.Metadata
	category := model.RewardCategory(meta.Category)
	if !category.Valid() {
		return nil, ErrInvalidCategory
	}
	if err := s.checkPoints(meta.PointValue); err != nil {
		return nil, err
	}

	extensions := datatypes.JSONMap{}
	for k, v := range meta.Extensions {
		extensions[k] = v
	}

	token := &model.RewardToken{
		Metadata: model.RewardMetadata{
			Title:       meta.Title,
			Description: meta.Description,
			PointValue:  meta.PointValue,
			Category:    category,
			Extensions:  extensions,
		},
		CreatedBy: callerID,
	}
	if req.AssignToSelf && !callerRole.Valid() {
		return nil, ErrInvalidWalletRole
	}

	// 创建与首次发放在同一事务内，发放失败时不留下孤立代币
	var entry *model.LedgerEntry
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.RewardToken.Create(ctx, token); err != nil {
			return err
		}
		if !req.AssignToSelf {
			return nil
		}

		wallet, err := ensureWallet(ctx, tx, callerID, callerRole)
		if err != nil {
			return err
		}
		zero := int64(0)
		entry, _, err = s.transferTx(ctx, tx, &TransferInput{
			TokenID:       token.TokenID,
			ToWalletID:    wallet.WalletID,
			PointsToAward: &zero,
			InitiatedBy:   callerID,
		})
		if err != nil {
			return err
		}
		token.OwnerWalletID = &wallet.WalletID
		token.LastSequence = entry.Sequence
		return nil
	})
	if err != nil {
		s.logger.Error("创建奖励代币失败", zap.String("created_by", callerID), zap.Error(err))
		return nil, err
	}

	if entry != nil {
		s.transferred(ctx, entry)
	}
	return toRewardTokenResponse(token), nil
}

// ────────────────────── Transfer ──────────────────────

func (s *ledgerService) Transfer(ctx context.Context, in *TransferInput) (*dto.TransferResponse, error) {
	if in.ToWalletID == "" {
		return nil, ErrWalletNotFound
	}
	if in.FromWalletID != nil && *in.FromWalletID == in.ToWalletID {
		return nil, ErrSelfTransfer
	}
	if in.PointsToAward != nil {
		if err := s.checkPoints(*in.PointsToAward); err != nil {
			return nil, err
		}
	}

	var (
		entry     *model.LedgerEntry
		recipient *model.Wallet
	)
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		entry, recipient, err = s.transferTx(ctx, tx, in)
		return err
	})
	if err != nil {
		metrics.Transfers.WithLabelValues(transferOutcome(err)).Inc()
		if transferOutcome(err) == "error" {
			s.logger.Error("代币转移失败", zap.String("token_id", in.TokenID), zap.Error(err))
		}
		return nil, err
	}

	s.transferred(ctx, entry)
	return &dto.TransferResponse{
		LedgerEntryID:   entry.EntryID,
		TokenID:         entry.TokenID,
		Sequence:        entry.Sequence,
		NewOwnerWallet:  entry.ToWalletID,
		NewOwnerAddress: recipient.Address,
		PointsAwarded:   entry.PointsAwarded,
	}, nil
}

// transferTx 在调用方事务内完成一次转移：校验持有人、CAS 更新投影、追加账本、发放积分
func (s *ledgerService) transferTx(ctx context.Context, tx *repository.Repository, in *TransferInput) (*model.LedgerEntry, *model.Wallet, error) {
	token, err := tx.RewardToken.GetByID(ctx, in.TokenID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrRewardTokenNotFound
		}
		return nil, nil, err
	}

	recipient, err := tx.Wallet.GetByID(ctx, in.ToWalletID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrWalletNotFound
		}
		return nil, nil, err
	}

	// 以账本为准推导当前持有人与版本号
	var (
		owner   *string
		lastSeq int64
	)
	latest, err := tx.Ledger.Latest(ctx, in.TokenID)
	switch {
	case err == nil:
		owner = &latest.ToWalletID
		lastSeq = latest.Sequence
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil, err
	}

	if !sameOwner(owner, in.FromWalletID) {
		return nil, nil, ErrOwnershipMismatch
	}
	if owner != nil && *owner == in.ToWalletID {
		return nil, nil, ErrSelfTransfer
	}

	points := token.Metadata.PointValue
	if in.PointsToAward != nil {
		points = *in.PointsToAward
	}
	if err := s.checkPoints(points); err != nil {
		return nil, nil, err
	}

	// 投影 CAS：last_sequence 不符说明已有并发转移提交
	if err := tx.RewardToken.UpdateOwner(ctx, in.TokenID, lastSeq, in.ToWalletID); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, nil, ErrConcurrentTransferConflict
		}
		return nil, nil, err
	}

	entry := &model.LedgerEntry{
		TokenID:       in.TokenID,
		Sequence:      lastSeq + 1,
		FromWalletID:  owner,
		ToWalletID:    in.ToWalletID,
		PointsAwarded: points,
		InitiatedBy:   in.InitiatedBy,
		CreatedAt:     s.now(),
	}
	if err := tx.Ledger.Append(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, ErrConcurrentTransferConflict
		}
		return nil, nil, err
	}

	if points > 0 {
		balance, err := tx.Wallet.Credit(ctx, in.ToWalletID, points)
		if err != nil {
			return nil, nil, err
		}
		recipient.PointBalance = balance
	}
	return entry, recipient, nil
}

// transferred 转移提交后记录指标、日志并发布事件
func (s *ledgerService) transferred(ctx context.Context, entry *model.LedgerEntry) {
	metrics.Transfers.WithLabelValues("ok").Inc()
	if entry.PointsAwarded > 0 {
		metrics.PointsCredited.WithLabelValues("transfer").Add(float64(entry.PointsAwarded))
	}
	s.logger.Info("代币已转移",
		zap.String("token_id", entry.TokenID),
		zap.Int64("sequence", entry.Sequence),
		zap.String("to_wallet_id", entry.ToWalletID),
		zap.Int64("points", entry.PointsAwarded),
	)
	s.events.emit(ctx, SubjectRewardTransferred, dto.TransferEvent{
		LedgerEntryID: entry.EntryID,
		TokenID:       entry.TokenID,
		Sequence:      entry.Sequence,
		FromWalletID:  entry.FromWalletID,
		ToWalletID:    entry.ToWalletID,
		PointsAwarded: entry.PointsAwarded,
		OccurredAt:    formatTime(entry.CreatedAt),
	})
}

// ────────────────────── TransferToUser ──────────────────────

func (s *ledgerService) TransferToUser(ctx context.Context, req *dto.TransferRequest, callerID string) (*dto.TransferResponse, error) {
	token, err := s.repo.RewardToken.GetByID(ctx, req.TokenID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRewardTokenNotFound
		}
		return nil, err
	}

	in := &TransferInput{
		TokenID:       token.TokenID,
		PointsToAward: req.PointsToAward,
		InitiatedBy:   callerID,
	}

	if token.OwnerWalletID == nil {
		// 未分配代币只能由创建者首次发放
		if token.CreatedBy != callerID {
			return nil, ErrOwnershipMismatch
		}
	} else {
		from, err := s.repo.Wallet.GetByOwner(ctx, callerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrOwnershipMismatch
			}
			return nil, err
		}
		in.FromWalletID = &from.WalletID
	}

	to, err := ensureWallet(ctx, s.repo, req.ToUserID, model.WalletRoleStudent)
	if err != nil {
		return nil, err
	}
	in.ToWalletID = to.WalletID

	return s.Transfer(ctx, in)
}

// ────────────────────── CurrentOwner ──────────────────────

func (s *ledgerService) CurrentOwner(ctx context.Context, tokenID string) (*dto.OwnerResponse, error) {
	if _, err := s.getToken(ctx, tokenID); err != nil {
		return nil, err
	}

	resp := &dto.OwnerResponse{TokenID: tokenID}
	latest, err := s.repo.Ledger.Latest(ctx, tokenID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return resp, nil
		}
		return nil, err
	}

	ownerID := latest.ToWalletID
	resp.OwnerWalletID = &ownerID
	resp.Sequence = latest.Sequence
	wallet, err := s.repo.Wallet.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	resp.OwnerAddress = &wallet.Address
	return resp, nil
}

// ────────────────────── History ──────────────────────

func (s *ledgerService) History(ctx context.Context, tokenID string) ([]dto.LedgerEntryResponse, error) {
	if _, err := s.getToken(ctx, tokenID); err != nil {
		return nil, err
	}
	entries, err := s.repo.Ledger.ListByToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	addresses, err := s.walletAddresses(ctx, entries)
	if err != nil {
		return nil, err
	}

	result := make([]dto.LedgerEntryResponse, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		item := dto.LedgerEntryResponse{
			ID:            e.EntryID,
			Sequence:      e.Sequence,
			ToAddress:     addresses[e.ToWalletID],
			Timestamp:     formatTime(e.CreatedAt),
			PointsAwarded: e.PointsAwarded,
			InitiatedBy:   e.InitiatedBy,
		}
		if !e.IsMint() {
			from := addresses[*e.FromWalletID]
			item.FromAddress = &from
		}
		result = append(result, item)
	}
	return result, nil
}

// ────────────────────── Reconcile ──────────────────────

func (s *ledgerService) Reconcile(ctx context.Context, fix bool) (*dto.ReconcileReport, error) {
	batch := s.cfg.ReconcileBatchSize
	if batch <= 0 {
		batch = 500
	}

	report := &dto.ReconcileReport{Drifted: []dto.ProjectionGap{}}
	afterID := ""
	for {
		tokens, err := s.repo.RewardToken.List(ctx, afterID, batch)
		if err != nil {
			return nil, err
		}
		if len(tokens) == 0 {
			break
		}

		for i := range tokens {
			gap, err := s.reconcileToken(ctx, &tokens[i], fix)
			if err != nil {
				return nil, err
			}
			report.Checked++
			if gap == nil {
				continue
			}
			report.Drifted = append(report.Drifted, *gap)
			if fix {
				report.Repaired++
			}
		}
		afterID = tokens[len(tokens)-1].TokenID
		if len(tokens) < batch {
			break
		}
	}

	metrics.ProjectionDrift.Set(float64(len(report.Drifted) - report.Repaired))
	s.logger.Info("账本对账完成",
		zap.Int("checked", report.Checked),
		zap.Int("drifted", len(report.Drifted)),
		zap.Int("repaired", report.Repaired),
	)
	return report, nil
}

// reconcileToken 比较单个代币的投影与账本；fix 时在事务内重读账本并覆盖投影
func (s *ledgerService) reconcileToken(ctx context.Context, token *model.RewardToken, fix bool) (*dto.ProjectionGap, error) {
	var gap *dto.ProjectionGap
	check := func(r *repository.Repository) error {
		var (
			owner   *string
			lastSeq int64
		)
		latest, err := r.Ledger.Latest(ctx, token.TokenID)
		switch {
		case err == nil:
			owner = &latest.ToWalletID
			lastSeq = latest.Sequence
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if sameOwner(owner, token.OwnerWalletID) && lastSeq == token.LastSequence {
			return nil
		}
		gap = &dto.ProjectionGap{
			TokenID:        token.TokenID,
			CachedOwner:    token.OwnerWalletID,
			LedgerOwner:    owner,
			CachedSequence: token.LastSequence,
			LedgerSequence: lastSeq,
		}
		s.logger.Warn("代币持有人投影与账本不一致",
			zap.String("token_id", token.TokenID),
			zap.Int64("cached_sequence", token.LastSequence),
			zap.Int64("ledger_sequence", lastSeq),
		)
		if !fix {
			return nil
		}
		return r.RewardToken.SetProjection(ctx, token.TokenID, owner, lastSeq)
	}

	var err error
	if fix {
		err = s.repo.Transaction(ctx, check)
	} else {
		err = check(s.repo)
	}
	if err != nil {
		return nil, err
	}
	return gap, nil
}

// ── 内部辅助 ──

func (s *ledgerService) checkPoints(points int64) error {
	if points < 0 {
		return ErrInvalidPoints
	}
	if s.cfg.MaxPointsPerTransfer > 0 && points > s.cfg.MaxPointsPerTransfer {
		return ErrInvalidPoints
	}
	return nil
}

func (s *ledgerService) getToken(ctx context.Context, tokenID string) (*model.RewardToken, error) {
	token, err := s.repo.RewardToken.GetByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRewardTokenNotFound
		}
		return nil, err
	}
	return token, nil
}

// walletAddresses 批量查询账本条目涉及的钱包地址
func (s *ledgerService) walletAddresses(ctx context.Context, entries []model.LedgerEntry) (map[string]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for i := range entries {
		for _, id := range []*string{entries[i].FromWalletID, &entries[i].ToWalletID} {
			if id != nil && !seen[*id] {
				seen[*id] = true
				ids = append(ids, *id)
			}
		}
	}

	wallets, err := s.repo.Wallet.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	addresses := make(map[string]string, len(wallets))
	for _, w := range wallets {
		addresses[w.WalletID] = w.Address
	}
	return addresses, nil
}

func sameOwner(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func transferOutcome(err error) string {
	switch {
	case errors.Is(err, ErrOwnershipMismatch):
		return "ownership_mismatch"
	case errors.Is(err, ErrConcurrentTransferConflict):
		return "conflict"
	case errors.Is(err, ErrRewardTokenNotFound), errors.Is(err, ErrWalletNotFound),
		errors.Is(err, ErrInvalidPoints), errors.Is(err, ErrSelfTransfer):
		return "rejected"
	default:
		return "error"
	}
}

func toRewardTokenResponse(t *model.RewardToken) *dto.RewardTokenResponse {
	return &dto.RewardTokenResponse{
		ID: t.TokenID,
		Metadata: dto.RewardMetadataDTO{
			Title:       t.Metadata.Title,
			Description: t.Metadata.Description,
			PointValue:  t.Metadata.PointValue,
			Category:    string(t.Metadata.Category),
			Extensions:  map[string]interface{}(t.Metadata.Extensions),
		},
		OwnerWalletID: t.OwnerWalletID,
		LastSequence:  t.LastSequence,
		CreatedBy:     t.CreatedBy,
		CreatedAt:     formatTime(t.CreatedAt),
	}
}
