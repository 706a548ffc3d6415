package main

import (
	"context"
	"fmt"
	"time"

	"github.com/refledger/internal/config"
	"github.com/refledger/internal/logger"
	"github.com/refledger/internal/models"
	"github.com/refledger/internal/provider"
	"github.com/refledger/internal/service"
)

// 演示数据：两个创作者、一条推荐链、若干支付事件走完整入账流程
func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 种子数据不走队列，避免依赖 Redis
	cfg.Queue.Enabled = false
	cfg.Redis.Enabled = false
	container := provider.NewContainer(cfg)
	ctx := context.Background()

	// 创作者
	creatorInputs := []service.CreateCreatorInput{
		{Name: "Pixel Academy", Slug: "pixel-academy", RewardTierThresholds: []int64{5, 20, 50}},
		{Name: "Synth Studio", Slug: "synth-studio", MemberRate: 0.15, CreatorRate: 0.65, PlatformRate: 0.20},
	}
	creatorIDs := make(map[string]uint, len(creatorInputs))
	for _, input := range creatorInputs {
		creator, err := container.CreatorService.Create(input)
		if err != nil {
			existing, getErr := container.CreatorRepo.GetBySlug(input.Slug)
			if getErr != nil || existing == nil {
				stdLog.Fatalf("Failed to seed creator %s: %v", input.Slug, err)
			}
			creatorIDs[input.Slug] = existing.ID
			stdLog.Printf("Creator already exists: %s", input.Slug)
			continue
		}
		creatorIDs[input.Slug] = creator.ID
		stdLog.Printf("Created creator: %s (id=%d)", creator.Slug, creator.ID)
	}

	// 会员：alice 推广，bob/carol 经 alice 的码注册
	alice, err := container.MemberService.Create(service.CreateMemberInput{
		CreatorID:   creatorIDs["pixel-academy"],
		DisplayName: "Alice",
		Email:       "alice@example.com",
		VisitorKey:  "vk-alice",
	})
	if err != nil {
		stdLog.Fatalf("Failed to seed member alice: %v", err)
	}
	stdLog.Printf("Created member: %s (code=%s)", alice.DisplayName, alice.ReferralCode)

	for _, name := range []string{"Bob", "Carol"} {
		member, err := container.MemberService.Create(service.CreateMemberInput{
			CreatorID:    creatorIDs["pixel-academy"],
			DisplayName:  name,
			ReferralCode: alice.ReferralCode,
			VisitorKey:   fmt.Sprintf("vk-%s", name),
		})
		if err != nil {
			stdLog.Printf("Failed to seed member %s: %v", name, err)
			continue
		}
		stdLog.Printf("Created member: %s (code=%s)", member.DisplayName, member.ReferralCode)
	}

	// 推广点击
	if err := container.AttributionService.TrackClick(service.TrackClickInput{
		ReferralCode: alice.ReferralCode,
		VisitorKey:   "vk-visitor-1",
		LandingPath:  "/course/intro",
		ClientIP:     "203.0.113.10",
		UserAgent:    "seed",
	}, time.Now()); err != nil {
		stdLog.Printf("Failed to seed click: %v", err)
	}

	// 支付事件：点击归因、推荐码归因、自然成交各一笔
	events := []service.PaymentEventInput{
		{ExternalPaymentID: "seed-pay-001", CreatorID: creatorIDs["pixel-academy"], BuyerVisitorKey: "vk-visitor-1", Amount: 49.99},
		{ExternalPaymentID: "seed-pay-002", CreatorID: creatorIDs["pixel-academy"], ReferralCode: alice.ReferralCode, Amount: 120},
		{ExternalPaymentID: "seed-pay-003", CreatorID: creatorIDs["synth-studio"], Amount: 15.5},
	}
	for _, event := range events {
		result, err := container.ProcessorService.ProcessPaymentEvent(ctx, event)
		if err != nil {
			stdLog.Printf("Failed to process payment %s: %v", event.ExternalPaymentID, err)
			continue
		}
		stdLog.Printf("Processed payment %s: %s", event.ExternalPaymentID, result.Result)
	}

	// 重建榜单快照，让演示环境立即有榜单数据
	if err := container.RankService.RefreshSnapshots(ctx); err != nil {
		stdLog.Printf("Failed to refresh snapshots: %v", err)
	}

	stdLog.Printf("Seed finished")
}
