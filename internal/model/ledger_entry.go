package model

import "time"

// LedgerEntry 账本条目 对应 ledger_entries（只追加，不更新不删除）
// 同一 token 的条目按 Sequence 全序；当前持有人为 Sequence 最大的条目的 ToWalletID
type LedgerEntry struct {
	EntryID       string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"entry_id"`
	TokenID       string    `gorm:"type:uuid;not null"                             json:"token_id"`
	Sequence      int64     `gorm:"not null"                                       json:"sequence"`
	FromWalletID  *string   `gorm:"type:uuid"                                      json:"from_wallet_id"`
	ToWalletID    string    `gorm:"type:uuid;not null"                             json:"to_wallet_id"`
	PointsAwarded int64     `gorm:"not null;default:0"                             json:"points_awarded"`
	InitiatedBy   string    `gorm:"type:varchar(64);not null"                      json:"initiated_by"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"timestamp"`
}

// TableName 指定表名
func (LedgerEntry) TableName() string { return "ledger_entries" }

// IsMint 是否为首次发放（无转出方）
func (e *LedgerEntry) IsMint() bool {
	return e.FromWalletID == nil
}
