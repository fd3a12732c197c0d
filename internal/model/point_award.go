package model

import "time"

// PointAward 直接积分发放记录 对应 point_awards（只追加）
type PointAward struct {
	AwardID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"award_id"`
	WalletID  string    `gorm:"type:uuid;not null"                             json:"wallet_id"`
	Points    int64     `gorm:"not null"                                       json:"points"`
	Reason    string    `gorm:"type:varchar(200);not null;default:''"          json:"reason"`
	AwardedBy string    `gorm:"type:varchar(64);not null"                      json:"awarded_by"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (PointAward) TableName() string { return "point_awards" }
