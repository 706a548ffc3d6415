//go:build integration
// +build integration

package repository

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/refledger/internal/constants"
	"github.com/refledger/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := []interface{}{
		&models.RankSnapshot{},
		&models.ReferralBonus{},
		&models.RiskReview{},
		&models.ParkedEvent{},
		&models.AttributionClick{},
		&models.Commission{},
		&models.Member{},
		&models.Creator{},
	}
	_ = db.Migrator().DropTable(cleanupModels...)

	if err := db.AutoMigrate(
		&models.Creator{},
		&models.Member{},
		&models.Commission{},
		&models.AttributionClick{},
		&models.ReferralBonus{},
		&models.RankSnapshot{},
		&models.RiskReview{},
		&models.ParkedEvent{},
	); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func TestPostgresMemberKeywordSearchIsCaseInsensitive(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewMemberRepository(db)
	creator := createTestCreator(t, db, "pg-search")

	createTestMember(t, db, creator.ID, "PGSE0001", func(m *models.Member) {
		m.DisplayName = "Rocket Promoter"
		m.Email = "rocket@example.com"
	})
	createTestMember(t, db, creator.ID, "PGSE0002", func(m *models.Member) {
		m.DisplayName = "someone else"
	})

	rows, total, err := repo.List(MemberListFilter{
		Page:     1,
		PageSize: 10,
		Keyword:  "rOcKeT",
	})
	if err != nil {
		t.Fatalf("member keyword search failed: %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("case-insensitive search want 1 got total=%d len=%d", total, len(rows))
	}
	if rows[0].DisplayName != "Rocket Promoter" {
		t.Fatalf("search hit want Rocket Promoter got %s", rows[0].DisplayName)
	}
}

func TestPostgresCounterRollover(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewMemberRepository(db)
	creator := createTestCreator(t, db, "pg-rollover")
	now := time.Now().UTC().Truncate(time.Second)

	member := createTestMember(t, db, creator.ID, "PGRO0001", func(m *models.Member) {
		m.LifetimeEarnings = models.NewMoneyFromDecimal(decimal.NewFromInt(100))
		m.MonthlyEarnings = models.NewMoneyFromDecimal(decimal.NewFromInt(40))
		m.StatsMonth = "2026-07"
	})

	if err := repo.ApplyEarningsDelta(member.ID, MemberCounterDelta{
		Earnings:  decimal.RequireFromString("7.25"),
		Referrals: 1,
	}, "2026-08", now); err != nil {
		t.Fatalf("apply earnings delta failed: %v", err)
	}

	got, err := repo.GetByID(member.ID)
	if err != nil {
		t.Fatalf("get member failed: %v", err)
	}
	if !got.LifetimeEarnings.Decimal.Equal(decimal.RequireFromString("107.25")) {
		t.Fatalf("lifetime earnings want 107.25 got %s", got.LifetimeEarnings.String())
	}
	if !got.MonthlyEarnings.Decimal.Equal(decimal.RequireFromString("7.25")) {
		t.Fatalf("monthly earnings should roll over, want 7.25 got %s", got.MonthlyEarnings.String())
	}
	if got.StatsMonth != "2026-08" {
		t.Fatalf("stats month want 2026-08 got %s", got.StatsMonth)
	}
}

func TestPostgresDashboardQueries(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewDashboardRepository(db)
	creator := createTestCreator(t, db, "pg-dashboard")
	member := createTestMember(t, db, creator.ID, "PGDA0001", nil)
	now := time.Now().UTC().Truncate(time.Second)

	commission := buildTestCommission(creator.ID, uintPtr(member.ID), "pg_pay_001", func(c *models.Commission) {
		c.CreatedAt = now
		c.StatsMonth = now.Format(constants.StatsMonthLayout)
	})
	if err := db.Create(&commission).Error; err != nil {
		t.Fatalf("create commission failed: %v", err)
	}

	startAt := now.Add(-time.Hour)
	endAt := now.Add(time.Hour)

	overview, err := repo.GetOverview(startAt, endAt)
	if err != nil {
		t.Fatalf("get overview failed: %v", err)
	}
	if overview.CommissionsTotal != 1 {
		t.Fatalf("overview commissions want 1 got %d", overview.CommissionsTotal)
	}
	if overview.GrossVolume < 49.98 || overview.GrossVolume > 50.00 {
		t.Fatalf("overview gross volume want ~49.99 got %f", overview.GrossVolume)
	}

	trends, err := repo.GetCommissionTrends(startAt, endAt)
	if err != nil {
		t.Fatalf("get commission trends failed: %v", err)
	}
	if len(trends) == 0 {
		t.Fatalf("commission trends should not be empty")
	}
	if strings.TrimSpace(trends[0].Day) == "" {
		t.Fatalf("trend day should not be empty")
	}

	topCreators, err := repo.GetTopCreators(startAt, endAt, 5)
	if err != nil {
		t.Fatalf("get top creators failed: %v", err)
	}
	if len(topCreators) != 1 {
		t.Fatalf("top creators len want 1 got %d", len(topCreators))
	}
	if topCreators[0].CreatorID != creator.ID {
		t.Fatalf("top creator want %d got %d", creator.ID, topCreators[0].CreatorID)
	}
}
