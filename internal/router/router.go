package router

import (
	"fmt"
	"strings"

	"github.com/refledger/internal/cache"
	"github.com/refledger/internal/config"
	opshandlers "github.com/refledger/internal/http/handlers/ops"
	publichandlers "github.com/refledger/internal/http/handlers/public"
	"github.com/refledger/internal/logger"
	"github.com/refledger/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按对外/运维分组）
	publicHandler := publichandlers.New(c)
	opsHandler := opshandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "rl"
	}
	redisClient := cache.Client()
	webhookRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:webhook", redisPrefix),
		WindowSeconds: cfg.Security.WebhookRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.WebhookRateLimit.MaxRequests,
		BlockSeconds:  cfg.Security.WebhookRateLimit.BlockSeconds,
		Message:       "事件投递过于频繁，请稍后重试",
	}
	clickRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:click", redisPrefix),
		WindowSeconds: cfg.Security.ClickRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.ClickRateLimit.MaxRequests,
		BlockSeconds:  cfg.Security.ClickRateLimit.BlockSeconds,
		Message:       "点击上报过于频繁，请稍后重试",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(MetricsMiddleware())
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 事件入口（上游支付系统投递）
		events := apiV1.Group("/events")
		events.Use(RateLimitMiddleware(redisClient, webhookRule, KeyByIP))
		{
			events.POST("/payment", publicHandler.PaymentWebhook)
			events.POST("/refund", publicHandler.RefundWebhook)
		}

		// 推广点击上报（同码同IP共享配额）
		apiV1.POST("/referrals/click",
			RateLimitMiddleware(redisClient, clickRule, KeyByIPAndJSONField("referral_code")),
			publicHandler.TrackReferralClick)

		// 查询面
		apiV1.GET("/leaderboard", publicHandler.GetLeaderboard)
		apiV1.GET("/members/:id/stats", publicHandler.GetMemberStats)
		apiV1.GET("/members/:id/risk", publicHandler.GetMemberRisk)

		// 运维接口
		ops := apiV1.Group("/ops")
		{
			ops.GET("/overview", opsHandler.GetOverview)
			ops.GET("/overview/trends", opsHandler.GetTrends)
			ops.GET("/overview/top-creators", opsHandler.GetTopCreators)

			ops.GET("/reviews", opsHandler.ListReviews)
			ops.POST("/reviews/:id/decision", opsHandler.DecideReview)

			ops.GET("/parked", opsHandler.ListParkedEvents)
			ops.POST("/parked/:id/reprocess", opsHandler.ReprocessParkedEvent)
			ops.POST("/parked/:id/discard", opsHandler.DiscardParkedEvent)

			ops.POST("/reconcile", opsHandler.TriggerReconcile)
			ops.POST("/snapshots/refresh", opsHandler.RefreshSnapshots)

			ops.GET("/creators", opsHandler.ListCreators)
			ops.POST("/creators", opsHandler.CreateCreator)
			ops.GET("/creators/:id", opsHandler.GetCreator)
			ops.PUT("/creators/:id", opsHandler.UpdateCreator)
			ops.POST("/creators/:id/status", opsHandler.SetCreatorStatus)

			ops.GET("/members", opsHandler.ListMembers)
			ops.POST("/members", opsHandler.CreateMember)
			ops.GET("/members/:id", opsHandler.GetMember)
			ops.POST("/members/:id/status", opsHandler.UpdateMemberStatus)
			ops.POST("/members/:id/release", opsHandler.ReleaseMember)

			ops.GET("/bonuses", opsHandler.ListBonuses)
			ops.POST("/bonuses/:id/pay", opsHandler.PayBonus)
			ops.POST("/bonuses/:id/revoke", opsHandler.RevokeBonus)
		}
	}

	// 指标与健康检查
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
