package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/refledger/internal/constants"
	"github.com/refledger/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupRankSnapshotRepositoryTest(t *testing.T) (*GormRankSnapshotRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:rank_snapshot_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Creator{},
		&models.Member{},
		&models.RankSnapshot{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewRankSnapshotRepository(db), db
}

func buildSnapshotRow(memberID uint, value int64, rank int64, computedAt time.Time) models.RankSnapshot {
	return models.RankSnapshot{
		Scope:       constants.RankScopeGlobal,
		CreatorID:   0,
		Metric:      constants.RankMetricLifetimeEarnings,
		MemberID:    memberID,
		MetricValue: models.NewMoneyFromDecimal(decimal.NewFromInt(value)),
		Rank:        rank,
		ComputedAt:  computedAt,
	}
}

func TestRankSnapshotRepositoryUpsertBatchUpdatesExisting(t *testing.T) {
	repo, db := setupRankSnapshotRepositoryTest(t)
	creator := createTestCreator(t, db, "snapshots")
	base := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)

	older := createTestMember(t, db, creator.ID, "SNAP0001", func(m *models.Member) {
		m.CreatedAt = base
	})
	newer := createTestMember(t, db, creator.ID, "SNAP0002", func(m *models.Member) {
		m.CreatedAt = base.Add(time.Minute)
	})
	third := createTestMember(t, db, creator.ID, "SNAP0003", func(m *models.Member) {
		m.CreatedAt = base.Add(2 * time.Minute)
	})

	firstRun := base.Add(30 * time.Minute)
	if err := repo.UpsertBatch([]models.RankSnapshot{
		buildSnapshotRow(older.ID, 10, 1, firstRun),
		buildSnapshotRow(newer.ID, 10, 1, firstRun),
		buildSnapshotRow(third.ID, 8, 3, firstRun),
	}); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	secondRun := firstRun.Add(5 * time.Minute)
	if err := repo.UpsertBatch([]models.RankSnapshot{
		buildSnapshotRow(older.ID, 12, 1, secondRun),
		buildSnapshotRow(newer.ID, 10, 2, secondRun),
		buildSnapshotRow(third.ID, 8, 3, secondRun),
	}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	var count int64
	if err := db.Model(&models.RankSnapshot{}).Count(&count).Error; err != nil {
		t.Fatalf("count snapshot rows failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("upsert must not duplicate rows, want 3 got %d", count)
	}

	row, err := repo.GetMemberRank(constants.RankScopeGlobal, 0, constants.RankMetricLifetimeEarnings, newer.ID)
	if err != nil {
		t.Fatalf("get member rank failed: %v", err)
	}
	if row == nil {
		t.Fatalf("member rank row should exist")
	}
	if row.Rank != 2 {
		t.Fatalf("rank should update on conflict, want 2 got %d", row.Rank)
	}
	if !row.MetricValue.Decimal.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("metric value want 10 got %s", row.MetricValue.String())
	}
}

func TestRankSnapshotRepositoryListTopOrdersTiesByMemberCreation(t *testing.T) {
	repo, db := setupRankSnapshotRepositoryTest(t)
	creator := createTestCreator(t, db, "snapshots-order")
	base := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)

	older := createTestMember(t, db, creator.ID, "SNAP0004", func(m *models.Member) {
		m.CreatedAt = base
	})
	newer := createTestMember(t, db, creator.ID, "SNAP0005", func(m *models.Member) {
		m.CreatedAt = base.Add(time.Minute)
	})
	lower := createTestMember(t, db, creator.ID, "SNAP0006", func(m *models.Member) {
		m.CreatedAt = base.Add(2 * time.Minute)
	})

	computedAt := time.Now().UTC().Truncate(time.Second)
	// 与会员注册顺序相反的写入顺序，排序必须仍按名次与注册时间
	if err := repo.UpsertBatch([]models.RankSnapshot{
		buildSnapshotRow(lower.ID, 8, 3, computedAt),
		buildSnapshotRow(newer.ID, 10, 1, computedAt),
		buildSnapshotRow(older.ID, 10, 1, computedAt),
	}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	rows, err := repo.ListTop(constants.RankScopeGlobal, 0, constants.RankMetricLifetimeEarnings, 10)
	if err != nil {
		t.Fatalf("list top failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("list top rows want 3 got %d", len(rows))
	}
	if rows[0].MemberID != older.ID || rows[1].MemberID != newer.ID {
		t.Fatalf("tied rank must order by member creation, got %d then %d", rows[0].MemberID, rows[1].MemberID)
	}
	if rows[2].MemberID != lower.ID || rows[2].Rank != 3 {
		t.Fatalf("last row want member %d rank 3, got member %d rank %d", lower.ID, rows[2].MemberID, rows[2].Rank)
	}

	limited, err := repo.ListTop(constants.RankScopeGlobal, 0, constants.RankMetricLifetimeEarnings, 2)
	if err != nil {
		t.Fatalf("list top limited failed: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limited rows want 2 got %d", len(limited))
	}
}

func TestRankSnapshotRepositoryPruneStaleRemovesDroppedMembers(t *testing.T) {
	repo, db := setupRankSnapshotRepositoryTest(t)
	creator := createTestCreator(t, db, "snapshots-prune")
	kept := createTestMember(t, db, creator.ID, "SNAP0007", nil)
	dropped := createTestMember(t, db, creator.ID, "SNAP0008", nil)

	firstRun := time.Now().UTC().Truncate(time.Second).Add(-10 * time.Minute)
	if err := repo.UpsertBatch([]models.RankSnapshot{
		buildSnapshotRow(kept.ID, 10, 1, firstRun),
		buildSnapshotRow(dropped.ID, 5, 2, firstRun),
	}); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	secondRun := firstRun.Add(5 * time.Minute)
	if err := repo.UpsertBatch([]models.RankSnapshot{
		buildSnapshotRow(kept.ID, 11, 1, secondRun),
	}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	pruned, err := repo.PruneStale(constants.RankScopeGlobal, 0, constants.RankMetricLifetimeEarnings, secondRun)
	if err != nil {
		t.Fatalf("prune stale failed: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("prune want 1 row got %d", pruned)
	}

	row, err := repo.GetMemberRank(constants.RankScopeGlobal, 0, constants.RankMetricLifetimeEarnings, dropped.ID)
	if err != nil {
		t.Fatalf("get dropped member rank failed: %v", err)
	}
	if row != nil {
		t.Fatalf("dropped member snapshot should be pruned")
	}
	row, err = repo.GetMemberRank(constants.RankScopeGlobal, 0, constants.RankMetricLifetimeEarnings, kept.ID)
	if err != nil {
		t.Fatalf("get kept member rank failed: %v", err)
	}
	if row == nil {
		t.Fatalf("kept member snapshot must survive prune")
	}
}
