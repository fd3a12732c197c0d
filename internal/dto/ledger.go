package dto

// ── 奖励账本模块 DTO ──

// RewardMetadataDTO 奖励元数据
type RewardMetadataDTO struct {
	Title       string                 `json:"title"       binding:"required,min=1,max=200"`
	Description string                 `json:"description" binding:"omitempty,max=2000"`
	PointValue  int64                  `json:"point_value" binding:"omitempty,min=0"`
	Category    string                 `json:"category"    binding:"required,oneof=achievement participation behavior academic other"`
	Extensions  map[string]interface{} `json:"extensions,omitempty"`
}

// MintTokenRequest 创建奖励代币请求
// AssignToSelf 为 true 时立即发放到创建者钱包
type MintTokenRequest struct {
	Metadata     RewardMetadataDTO `json:"metadata" binding:"required"`
	AssignToSelf bool              `json:"assign_to_self"`
}

// RewardTokenResponse 奖励代币响应
type RewardTokenResponse struct {
	ID            string            `json:"id"`
	Metadata      RewardMetadataDTO `json:"metadata"`
	OwnerWalletID *string           `json:"owner_wallet_id"`
	LastSequence  int64             `json:"last_sequence"`
	CreatedBy     string            `json:"created_by"`
	CreatedAt     string            `json:"created_at"`
}

// RewardTokenListResponse 奖励代币列表（分页）
type RewardTokenListResponse struct {
	Items    []RewardTokenResponse `json:"items"`
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

// TransferRequest 奖励转移请求；points_to_award 缺省为代币面值
type TransferRequest struct {
	TokenID       string `json:"token_id"        binding:"required,uuid"`
	ToUserID      string `json:"to_user_id"      binding:"required,max=64"`
	PointsToAward *int64 `json:"points_to_award" binding:"omitempty,min=0"`
}

// TransferResponse 奖励转移结果
type TransferResponse struct {
	LedgerEntryID   string `json:"ledger_entry_id"`
	TokenID         string `json:"token_id"`
	Sequence        int64  `json:"sequence"`
	NewOwnerWallet  string `json:"new_owner_wallet_id"`
	NewOwnerAddress string `json:"new_owner_address"`
	PointsAwarded   int64  `json:"points_awarded"`
}

// OwnerResponse 当前持有人
type OwnerResponse struct {
	TokenID       string  `json:"token_id"`
	OwnerWalletID *string `json:"owner_wallet_id"`
	OwnerAddress  *string `json:"owner_address"`
	Sequence      int64   `json:"sequence"`
}

// LedgerEntryResponse 账本条目（历史）
type LedgerEntryResponse struct {
	ID            string  `json:"id"`
	Sequence      int64   `json:"sequence"`
	FromAddress   *string `json:"from_address"`
	ToAddress     string  `json:"to_address"`
	Timestamp     string  `json:"timestamp"`
	PointsAwarded int64   `json:"points_awarded"`
	InitiatedBy   string  `json:"initiated_by"`
}

// TransferEvent 奖励转移事件
type TransferEvent struct {
	LedgerEntryID string  `json:"ledger_entry_id"`
	TokenID       string  `json:"token_id"`
	Sequence      int64   `json:"sequence"`
	FromWalletID  *string `json:"from_wallet_id"`
	ToWalletID    string  `json:"to_wallet_id"`
	PointsAwarded int64   `json:"points_awarded"`
	OccurredAt    string  `json:"occurred_at"`
}

// ReconcileReport 账本对账结果
type ReconcileReport struct {
	Checked  int             `json:"checked"`
	Drifted  []ProjectionGap `json:"drifted"`
	Repaired int             `json:"repaired"`
}

// ProjectionGap 单个代币的投影偏差
type ProjectionGap struct {
	TokenID        string  `json:"token_id"`
	CachedOwner    *string `json:"cached_owner"`
	LedgerOwner    *string `json:"ledger_owner"`
	CachedSequence int64   `json:"cached_sequence"`
	LedgerSequence int64   `json:"ledger_sequence"`
}
