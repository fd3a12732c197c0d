package dto

// ── 钱包模块 DTO ──

// WalletResponse 钱包信息响应
type WalletResponse struct {
	ID           string `json:"id"`
	OwnerID      string `json:"owner_id"`
	Role         string `json:"role"`
	Address      string `json:"address"`
	PointBalance int64  `json:"point_balance"`
}

// AwardPointsRequest 直接发放积分请求
type AwardPointsRequest struct {
	Points int64  `json:"points" binding:"required,min=1"`
	Reason string `json:"reason" binding:"omitempty,max=200"`
}
