package model

import "time"

// InvitationStatus 邀请码状态
type InvitationStatus string

const (
	InvitationPending    InvitationStatus = "pending"
	InvitationRedeemed   InvitationStatus = "redeemed"
	InvitationExpired    InvitationStatus = "expired"
	InvitationSuperseded InvitationStatus = "superseded"
)

// PurposeGeneral 通用加入班级用途（目前唯一支持的用途）
const PurposeGeneral = "general"

// InvitationCode 邀请码表 对应 invitation_codes
//
// MaxRedemptions = 0 表示可多次使用的班级码；= 1 表示一次性邀请。
type InvitationCode struct {
	InvitationID   string           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"invitation_id"`
	Token          string           `gorm:"type:varchar(6);not null"                       json:"token"`
	ClassroomID    string           `gorm:"type:uuid;not null"                             json:"classroom_id"`
	Purpose        string           `gorm:"type:varchar(32);not null;default:'general'"    json:"purpose"`
	Status         InvitationStatus `gorm:"type:varchar(16);not null;default:'pending'"    json:"status"`
	MaxRedemptions int              `gorm:"not null;default:0"                             json:"max_redemptions"`
	UsageCount     int              `gorm:"not null;default:0"                             json:"usage_count"`
	ExpiresAt      time.Time        `gorm:"not null"                                       json:"expires_at"`
	RedeemedAt     *time.Time       `json:"redeemed_at,omitempty"`
	RedeemedBy     *string          `gorm:"type:varchar(64)"                               json:"redeemed_by,omitempty"`
	SupersededAt   *time.Time       `json:"superseded_at,omitempty"`
	CreatedBy      string           `gorm:"type:varchar(64);not null"                      json:"created_by"`
	BaseModel
}

// TableName 指定表名
func (InvitationCode) TableName() string { return "invitation_codes" }

// IsExpired 过期判断：now 严格晚于 expires_at
func (c *InvitationCode) IsExpired(now time.Time) bool {
	return c.Status == InvitationExpired || now.After(c.ExpiresAt)
}

// Exhausted 使用次数已达上限
func (c *InvitationCode) Exhausted() bool {
	return c.MaxRedemptions > 0 && c.UsageCount >= c.MaxRedemptions
}
