package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/refledger/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAttributionClickRepositoryTest(t *testing.T) (*GormAttributionClickRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:click_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Creator{},
		&models.Member{},
		&models.AttributionClick{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewAttributionClickRepository(db), db
}

func buildTestClick(memberID uint, visitorKey string, createdAt time.Time, window time.Duration) models.AttributionClick {
	return models.AttributionClick{
		MemberID:     memberID,
		ReferralCode: fmt.Sprintf("CLK%d", memberID),
		VisitorKey:   visitorKey,
		LandingPath:  "/pricing",
		ExpiresAt:    createdAt.Add(window),
		CreatedAt:    createdAt,
	}
}

func TestAttributionClickRepositoryLatestActiveWins(t *testing.T) {
	repo, db := setupAttributionClickRepositoryTest(t)
	creator := createTestCreator(t, db, "clicks")
	early := createTestMember(t, db, creator.ID, "CLIC0001", nil)
	late := createTestMember(t, db, creator.ID, "CLIC0002", nil)
	now := time.Now().UTC().Truncate(time.Second)
	window := 30 * 24 * time.Hour

	visitor := "visitor-latest"
	clicks := []models.AttributionClick{
		buildTestClick(early.ID, visitor, now.Add(-48*time.Hour), window),
		buildTestClick(late.ID, visitor, now.Add(-2*time.Hour), window),
		buildTestClick(early.ID, "visitor-other", now.Add(-time.Hour), window),
	}
	for i := range clicks {
		if err := repo.Create(&clicks[i]); err != nil {
			t.Fatalf("seed click %d failed: %v", i, err)
		}
	}

	got, err := repo.GetLatestActiveByVisitorKey(visitor, now)
	if err != nil {
		t.Fatalf("get latest click failed: %v", err)
	}
	if got == nil {
		t.Fatalf("latest click should resolve")
	}
	if got.MemberID != late.ID {
		t.Fatalf("latest click wins, want member %d got %d", late.ID, got.MemberID)
	}

	// 窗口外的点击不参与归因
	expired := buildTestClick(early.ID, "visitor-expired", now.Add(-40*24*time.Hour), window)
	if err := repo.Create(&expired); err != nil {
		t.Fatalf("seed expired click failed: %v", err)
	}
	got, err = repo.GetLatestActiveByVisitorKey("visitor-expired", now)
	if err != nil {
		t.Fatalf("get expired visitor click failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expired click must not resolve, got click %d", got.ID)
	}
}

func TestAttributionClickRepositoryMarkConvertedOnlyOnce(t *testing.T) {
	repo, db := setupAttributionClickRepositoryTest(t)
	creator := createTestCreator(t, db, "clicks-convert")
	member := createTestMember(t, db, creator.ID, "CLIC0003", nil)
	now := time.Now().UTC().Truncate(time.Second)

	click := buildTestClick(member.ID, "visitor-convert", now.Add(-time.Hour), 30*24*time.Hour)
	if err := repo.Create(&click); err != nil {
		t.Fatalf("seed click failed: %v", err)
	}

	changed, err := repo.MarkConverted(click.ID, "pay_convert_001", now)
	if err != nil {
		t.Fatalf("mark converted failed: %v", err)
	}
	if !changed {
		t.Fatalf("first conversion mark should apply")
	}

	changed, err = repo.MarkConverted(click.ID, "pay_convert_002", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second mark converted failed: %v", err)
	}
	if changed {
		t.Fatalf("converted click must not flip again")
	}

	var got models.AttributionClick
	if err := db.First(&got, click.ID).Error; err != nil {
		t.Fatalf("load click failed: %v", err)
	}
	if !got.Converted || got.ConvertedPaymentID != "pay_convert_001" {
		t.Fatalf("click must keep the first conversion payment id, got %q", got.ConvertedPaymentID)
	}
}

func TestAttributionClickRepositoryDedupeAndPrune(t *testing.T) {
	repo, db := setupAttributionClickRepositoryTest(t)
	creator := createTestCreator(t, db, "clicks-dedupe")
	member := createTestMember(t, db, creator.ID, "CLIC0004", nil)
	now := time.Now().UTC().Truncate(time.Second)

	recent := buildTestClick(member.ID, "visitor-dedupe", now.Add(-time.Minute), 30*24*time.Hour)
	if err := repo.Create(&recent); err != nil {
		t.Fatalf("seed recent click failed: %v", err)
	}

	has, err := repo.HasRecentClick(member.ID, "visitor-dedupe", now.Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("has recent click failed: %v", err)
	}
	if !has {
		t.Fatalf("click within dedupe window should be detected")
	}
	has, err = repo.HasRecentClick(member.ID, "visitor-unknown", now.Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("has recent click for unknown visitor failed: %v", err)
	}
	if has {
		t.Fatalf("unknown visitor should have no recent click")
	}

	staleConverted := buildTestClick(member.ID, "visitor-stale-converted", now.Add(-60*24*time.Hour), 30*24*time.Hour)
	staleConverted.Converted = true
	staleOpen := buildTestClick(member.ID, "visitor-stale-open", now.Add(-60*24*time.Hour), 30*24*time.Hour)
	for _, click := range []*models.AttributionClick{&staleConverted, &staleOpen} {
		if err := repo.Create(click); err != nil {
			t.Fatalf("seed stale click failed: %v", err)
		}
	}

	pruned, err := repo.PruneExpired(now)
	if err != nil {
		t.Fatalf("prune expired failed: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("only the stale unconverted click prunes, want 1 got %d", pruned)
	}
	var remaining int64
	if err := db.Model(&models.AttributionClick{}).Count(&remaining).Error; err != nil {
		t.Fatalf("count remaining clicks failed: %v", err)
	}
	if remaining != 2 {
		t.Fatalf("remaining clicks want 2 got %d", remaining)
	}
}
