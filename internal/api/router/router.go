package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"blockward/backend/config"
	"blockward/backend/internal/api/handler"
	"blockward/backend/internal/api/middleware"
	"blockward/backend/pkg/jwt"
	"blockward/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// ── 健康检查与指标 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// ── API v1（全部需要认证）──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr, rdb, logger))
	{
		teacherOnly := middleware.RoleAuth("teacher", "admin")

		// 班级模块
		classrooms := v1.Group("/classrooms")
		{
			classrooms.POST("", teacherOnly, h.Classroom.CreateClassroom)
			classrooms.GET("/:id/enrollments", teacherOnly, h.Classroom.ListEnrollments)
			classrooms.POST("/:id/enrollments", teacherOnly, h.Classroom.Enroll)
			classrooms.DELETE("/:id/enrollments/:studentId", teacherOnly, h.Classroom.Unenroll)
		}

		// 邀请码模块（班级归属在 Service 层校验）
		invitations := v1.Group("/invitations")
		{
			invitations.POST("", teacherOnly, h.Invitation.CreateInvitation)
			invitations.GET("/by-token/:token", h.Invitation.LookupInvitation)
			invitations.POST("/:classroomId/regenerate", teacherOnly, h.Invitation.RegenerateInvitation)
			invitations.GET("/:classroomId/active", teacherOnly, h.Invitation.GetActiveInvitation)
		}

		// 兑换（按用户限流）
		v1.POST("/redemptions",
			middleware.RateLimit(rdb, cfg.Invitation.RedeemRateLimit, cfg.Invitation.RedeemRateWindow, logger),
			h.Redemption.Redeem,
		)

		// 钱包模块
		wallets := v1.Group("/wallets")
		{
			wallets.GET("/:userId", h.Wallet.GetWallet)
			wallets.GET("/:userId/tokens", h.Wallet.ListTokens)
			wallets.POST("/:userId/points", teacherOnly, h.Wallet.AwardPoints)
		}

		// 奖励账本模块
		tokens := v1.Group("/tokens")
		{
			tokens.POST("", teacherOnly, h.Ledger.MintToken)
			tokens.GET("/:tokenId/owner", h.Ledger.GetOwner)
			tokens.GET("/:tokenId/history", h.Ledger.GetHistory)
			tokens.GET("/:tokenId/history/export", teacherOnly, h.Ledger.ExportHistory)
		}
		v1.POST("/transfers", teacherOnly, h.Ledger.Transfer)
	}

	return r
}
