package model

import "gorm.io/datatypes"

// RewardCategory 奖励类别
type RewardCategory string

const (
	RewardCategoryAchievement   RewardCategory = "achievement"
	RewardCategoryParticipation RewardCategory = "participation"
	RewardCategoryBehavior      RewardCategory = "behavior"
	RewardCategoryAcademic      RewardCategory = "academic"
	RewardCategoryOther         RewardCategory = "other"
)

// Valid 类别是否合法
func (c RewardCategory) Valid() bool {
	switch c {
	case RewardCategoryAchievement, RewardCategoryParticipation, RewardCategoryBehavior,
		RewardCategoryAcademic, RewardCategoryOther:
		return true
	}
	return false
}

// RewardMetadata 奖励元数据：已知字段 + 开放扩展
type RewardMetadata struct {
	Title       string            `gorm:"type:varchar(200);not null"            json:"title"`
	Description string            `gorm:"type:text;not null;default:''"         json:"description"`
	PointValue  int64             `gorm:"not null;default:0"                    json:"point_value"`
	Category    RewardCategory    `gorm:"type:varchar(32);not null"             json:"category"`
	Extensions  datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"      json:"extensions,omitempty"`
}

// RewardToken 奖励代币表 对应 reward_tokens
//
// OwnerWalletID 与 LastSequence 是账本的缓存投影，只能与账本追加在同一事务内写入。
// LastSequence 同时充当乐观锁版本号。
type RewardToken struct {
	TokenID       string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"token_id"`
	Metadata      RewardMetadata `gorm:"embedded"                                       json:"metadata"`
	OwnerWalletID *string        `gorm:"type:uuid"                                      json:"owner_wallet_id,omitempty"`
	LastSequence  int64          `gorm:"not null;default:0"                             json:"last_sequence"`
	CreatedBy     string         `gorm:"type:varchar(64);not null"                      json:"created_by"`
	BaseModel
}

// TableName 指定表名
func (RewardToken) TableName() string { return "reward_tokens" }
