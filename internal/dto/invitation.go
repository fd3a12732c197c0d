package dto

// ── 邀请码模块 DTO ──

// CreateInvitationRequest 创建邀请码请求
//
// Kind 仅决定默认有效期：invitation 为 7 天，link 为 90 天。
// MaxRedemptions 为 0 表示不限次数的班级码，1 表示一次性邀请。
type CreateInvitationRequest struct {
	ClassroomID    string `json:"classroom_id"    binding:"required,uuid"`
	Purpose        string `json:"purpose"         binding:"omitempty,max=32"`
	Kind           string `json:"kind"            binding:"omitempty,oneof=invitation link"`
	TTLSeconds     int64  `json:"ttl"             binding:"omitempty,min=1"`
	MaxRedemptions int    `json:"max_redemptions" binding:"omitempty,min=0"`
}

// RegenerateInvitationRequest 重新生成邀请码请求
type RegenerateInvitationRequest struct {
	Purpose        string `json:"purpose"         binding:"omitempty,max=32"`
	Kind           string `json:"kind"            binding:"omitempty,oneof=invitation link"`
	TTLSeconds     int64  `json:"ttl"             binding:"omitempty,min=1"`
	MaxRedemptions int    `json:"max_redemptions" binding:"omitempty,min=0"`
}

// InvitationResponse 邀请码响应
type InvitationResponse struct {
	ID             string `json:"id"`
	Token          string `json:"token"`
	ClassroomID    string `json:"classroom_id"`
	Purpose        string `json:"purpose"`
	Status         string `json:"status"`
	MaxRedemptions int    `json:"max_redemptions"`
	UsageCount     int    `json:"usage_count"`
	ExpiresAt      string `json:"expires_at"`
	CreatedAt      string `json:"created_at"`
}

// SweepResult 过期邀请码清理结果
type SweepResult struct {
	Expired int64 `json:"expired"`
	Purged  int64 `json:"purged"`
}

// ── 兑换模块 DTO ──

// RedeemRequest 兑换邀请码请求；student_id 缺省为当前用户
type RedeemRequest struct {
	Token     string `json:"token"      binding:"required"`
	StudentID string `json:"student_id" binding:"omitempty,max=64"`
}

// RedeemResponse 兑换结果
type RedeemResponse struct {
	ClassroomID     string `json:"classroom_id"`
	AlreadyEnrolled bool   `json:"already_enrolled"`
}
