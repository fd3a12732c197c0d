package handler

import "blockward/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Classroom  *ClassroomHandler
	Invitation *InvitationHandler
	Redemption *RedemptionHandler
	Wallet     *WalletHandler
	Ledger     *LedgerHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Classroom:  NewClassroomHandler(svc.Classroom),
		Invitation: NewInvitationHandler(svc.Invitation),
		Redemption: NewRedemptionHandler(svc.Redemption),
		Wallet:     NewWalletHandler(svc.Wallet),
		Ledger:     NewLedgerHandler(svc.Ledger),
	}
}
