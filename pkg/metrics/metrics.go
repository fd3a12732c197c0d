package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "blockward"

var (
	// InvitationsIssued 签发的邀请码数量（kind: created / regenerated）
	InvitationsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invitations_issued_total",
		Help:      "Invitation codes issued, by kind.",
	}, []string{"kind"})

	// CodeCollisions 生成邀请码时的碰撞次数
	CodeCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invitation_code_collisions_total",
		Help:      "Generated invitation codes rejected because they collided with a pending code.",
	})

	// Redemptions 兑换结果（outcome: enrolled / already_enrolled / not_found / expired / invalidated / error）
	Redemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "redemptions_total",
		Help:      "Invitation redemption attempts, by outcome.",
	}, []string{"outcome"})

	// Transfers 奖励转移结果（outcome: ok / ownership_mismatch / conflict / rejected / error）
	Transfers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reward_transfers_total",
		Help:      "Reward token transfers, by outcome.",
	}, []string{"outcome"})

	// PointsCredited 累计发放的积分（source: transfer / award / credit）
	PointsCredited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "points_credited_total",
		Help:      "Points credited to wallets, by source.",
	}, []string{"source"})

	// SweptInvitations 清理任务处理的邀请码（action: expired / purged）
	SweptInvitations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invitations_swept_total",
		Help:      "Invitations marked expired or purged by the sweeper.",
	}, []string{"action"})

	// ProjectionDrift 对账发现的投影不一致数量
	ProjectionDrift = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ledger_projection_drift",
		Help:      "Reward tokens whose cached owner disagreed with the ledger at the last reconciliation.",
	})

	// HTTPRequests HTTP 请求计数（route 为路由模板，避免高基数）
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests handled, by method, route and status class.",
	}, []string{"method", "route", "status"})

	// HTTPLatency HTTP 请求耗时
	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency, by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// RateLimited 被限流拒绝的请求
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter, by route.",
	}, []string{"route"})
)
