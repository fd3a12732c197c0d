package model

// WalletRole 钱包所属用户角色
type WalletRole string

const (
	WalletRoleTeacher WalletRole = "teacher"
	WalletRoleStudent WalletRole = "student"
	WalletRoleAdmin   WalletRole = "admin"
)

// Valid 角色是否合法
func (r WalletRole) Valid() bool {
	switch r {
	case WalletRoleTeacher, WalletRoleStudent, WalletRoleAdmin:
		return true
	}
	return false
}

// Wallet 钱包表 对应 wallets
// 每个用户一个钱包；地址生成后永不变更；余额只能通过转移或积分发放增加
type Wallet struct {
	WalletID     string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"wallet_id"`
	OwnerID      string     `gorm:"type:varchar(64);not null;uniqueIndex"          json:"owner_id"`
	Role         WalletRole `gorm:"type:varchar(16);not null"                      json:"role"`
	Address      string     `gorm:"type:varchar(90);not null;uniqueIndex"          json:"address"`
	PointBalance int64      `gorm:"not null;default:0"                             json:"point_balance"`
	BaseModel
}

// TableName 指定表名
func (Wallet) TableName() string { return "wallets" }
