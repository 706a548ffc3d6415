package service

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/refledger/internal/config"
	"github.com/refledger/internal/constants"
	"github.com/refledger/internal/models"
	"github.com/refledger/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupMemberServiceTest(t *testing.T) (*MemberService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:member_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Creator{}, &models.Member{}, &models.RankSnapshot{}, &models.ReferralBonus{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	memberRepo := repository.NewMemberRepository(db)
	creatorRepo := repository.NewCreatorRepository(db)
	rankService := NewRankService(
		memberRepo,
		creatorRepo,
		repository.NewRankSnapshotRepository(db),
		config.LeaderboardConfig{RefreshIntervalSeconds: 300, CacheTTLSeconds: 60, DefaultLimit: 10, MaxLimit: 100},
	)
	bonusService := NewBonusService(repository.NewBonusRepository(db), memberRepo, config.BonusConfig{Amount: 5, MinMemberShare: 1, HoldDays: 7})
	svc := NewMemberService(memberRepo, creatorRepo, rankService, bonusService)
	return svc, db
}

func setCreatorRewardTiers(t *testing.T, db *gorm.DB, creatorID uint, thresholds models.Int64Array) {
	t.Helper()

	if err := db.Model(&models.Creator{}).Where("id = ?", creatorID).
		Update("reward_tier_thresholds", thresholds).Error; err != nil {
		t.Fatalf("set reward tiers failed: %v", err)
	}
}

func TestCreateMemberAssignsReferralCode(t *testing.T) {
	svc, db := setupMemberServiceTest(t)

	creator := createServiceTestCreator(t, db, "member-create")
	member, err := svc.Create(CreateMemberInput{
		CreatorID:   creator.ID,
		DisplayName: "  Alice  ",
		Email:       " alice@example.com ",
		VisitorKey:  "fp-alice",
	})
	if err != nil {
		t.Fatalf("create member failed: %v", err)
	}
	if member.DisplayName != "Alice" || member.Email != "alice@example.com" {
		t.Fatalf("expected trimmed fields, got %q / %q", member.DisplayName, member.Email)
	}
	if member.Origin != constants.MemberOriginOrganic || member.ReferrerID != nil {
		t.Fatalf("expected organic member without referrer, got origin=%q referrer=%v", member.Origin, member.ReferrerID)
	}
	if member.Status != constants.MemberStatusActive {
		t.Fatalf("expected active status, got %q", member.Status)
	}

	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	if len(member.ReferralCode) != memberReferralCodeLength {
		t.Fatalf("expected %d-char referral code, got %q", memberReferralCodeLength, member.ReferralCode)
	}
	for _, ch := range member.ReferralCode {
		if !strings.ContainsRune(alphabet, ch) {
			t.Fatalf("referral code %q contains invalid character %q", member.ReferralCode, ch)
		}
	}

	var stored models.Creator
	if err := db.First(&stored, creator.ID).Error; err != nil {
		t.Fatalf("reload creator failed: %v", err)
	}
	if stored.MemberCount != 1 {
		t.Fatalf("expected member_count 1 after registration, got %d", stored.MemberCount)
	}
}

func TestCreateMemberWithReferrer(t *testing.T) {
	svc, db := setupMemberServiceTest(t)

	creator := createServiceTestCreator(t, db, "member-referred")
	referrer := createServiceTestMember(t, db, creator.ID, "REFPARNT", constants.MemberStatusActive, "")

	member, err := svc.Create(CreateMemberInput{
		CreatorID:    creator.ID,
		DisplayName:  "Bob",
		ReferralCode: " refparnt ",
	})
	if err != nil {
		t.Fatalf("create referred member failed: %v", err)
	}
	if member.Origin != constants.MemberOriginReferred {
		t.Fatalf("expected referred origin, got %q", member.Origin)
	}
	if member.ReferrerID == nil || *member.ReferrerID != referrer.ID {
		t.Fatalf("expected referrer %d, got %v", referrer.ID, member.ReferrerID)
	}
}

func TestCreateMemberReferrerEligibility(t *testing.T) {
	svc, db := setupMemberServiceTest(t)

	creator := createServiceTestCreator(t, db, "member-eligibility")
	otherCreator := createServiceTestCreator(t, db, "member-eligibility-other")
	createServiceTestMember(t, db, creator.ID, "REFQUIET", constants.MemberStatusDisabled, "")
	createServiceTestMember(t, db, otherCreator.ID, "REFOTHER", constants.MemberStatusActive, "")

	if _, err := svc.Create(CreateMemberInput{
		CreatorID:    creator.ID,
		DisplayName:  "unknown-code",
		ReferralCode: "NOSUCHCD",
	}); !errors.Is(err, ErrReferralCodeInvalid) {
		t.Fatalf("expected ErrReferralCodeInvalid for unknown code, got %v", err)
	}

	// 推荐人停用：降级为自然注册
	member, err := svc.Create(CreateMemberInput{
		CreatorID:    creator.ID,
		DisplayName:  "inactive-referrer",
		ReferralCode: "REFQUIET",
	})
	if err != nil {
		t.Fatalf("create with inactive referrer failed: %v", err)
	}
	if member.Origin != constants.MemberOriginOrganic || member.ReferrerID != nil {
		t.Fatalf("expected organic fallback for inactive referrer, got origin=%q referrer=%v", member.Origin, member.ReferrerID)
	}

	// 跨创作者推荐码：同样降级为自然注册
	member, err = svc.Create(CreateMemberInput{
		CreatorID:    creator.ID,
		DisplayName:  "cross-creator",
		ReferralCode: "REFOTHER",
	})
	if err != nil {
		t.Fatalf("create with cross-creator referrer failed: %v", err)
	}
	if member.Origin != constants.MemberOriginOrganic || member.ReferrerID != nil {
		t.Fatalf("expected organic fallback for cross-creator referrer, got origin=%q referrer=%v", member.Origin, member.ReferrerID)
	}
}

func TestCreateMemberCreatorGuards(t *testing.T) {
	svc, db := setupMemberServiceTest(t)

	creator := createServiceTestCreator(t, db, "member-guards")
	if err := db.Model(&models.Creator{}).Where("id = ?", creator.ID).
		Update("status", constants.CreatorStatusDisabled).Error; err != nil {
		t.Fatalf("disable creator failed: %v", err)
	}

	if _, err := svc.Create(CreateMemberInput{CreatorID: 9999, DisplayName: "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown creator, got %v", err)
	}
	if _, err := svc.Create(CreateMemberInput{CreatorID: creator.ID, DisplayName: "blocked"}); !errors.Is(err, ErrCreatorDisabled) {
		t.Fatalf("expected ErrCreatorDisabled, got %v", err)
	}
}

func TestGetMemberStats(t *testing.T) {
	svc, db := setupMemberServiceTest(t)

	creator := createServiceTestCreator(t, db, "member-stats")
	setCreatorRewardTiers(t, db, creator.ID, models.Int64Array{1, 3, 10})

	leader := createServiceTestMember(t, db, creator.ID, "STATLEAD", constants.MemberStatusActive, "")
	runner := createServiceTestMember(t, db, creator.ID, "STATRUNR", constants.MemberStatusActive, "")

	now := time.Now()
	month := now.Format(constants.StatsMonthLayout)
	setMemberLedgerCounters(t, db, leader.ID, 100, 40, 3, 2, month)
	setMemberLedgerCounters(t, db, runner.ID, 50, 10, 1, 1, month)
	createServiceTestBonus(t, db, leader.ID, 77, constants.BonusStatusPendingConfirmation, now.Add(24*time.Hour))

	stats, err := svc.GetStats(leader.ID, now)
	if err != nil {
		t.Fatalf("get member stats failed: %v", err)
	}
	if !stats.LifetimeEarnings.Decimal.Equal(decimal.NewFromFloat(100)) {
		t.Fatalf("expected lifetime earnings 100, got %s", stats.LifetimeEarnings.Decimal)
	}
	if !stats.MonthlyEarnings.Decimal.Equal(decimal.NewFromFloat(40)) {
		t.Fatalf("expected monthly earnings 40, got %s", stats.MonthlyEarnings.Decimal)
	}
	if stats.LifetimeReferrals != 3 || stats.MonthlyReferrals != 2 {
		t.Fatalf("expected referrals 3/2, got %d/%d", stats.LifetimeReferrals, stats.MonthlyReferrals)
	}
	if stats.RewardTier != 2 || stats.NextTierThreshold != 10 {
		t.Fatalf("expected reward tier 2 next 10, got %d next %d", stats.RewardTier, stats.NextTierThreshold)
	}
	if stats.GlobalRank != 1 || stats.CreatorRank != 1 {
		t.Fatalf("expected leader ranked 1/1, got %d/%d", stats.GlobalRank, stats.CreatorRank)
	}
	if stats.Bonus == nil || stats.Bonus.Status != constants.BonusStatusPendingConfirmation {
		t.Fatalf("expected pending bonus in stats, got %+v", stats.Bonus)
	}

	runnerStats, err := svc.GetStats(runner.ID, now)
	if err != nil {
		t.Fatalf("get runner stats failed: %v", err)
	}
	if runnerStats.GlobalRank != 2 || runnerStats.CreatorRank != 2 {
		t.Fatalf("expected runner ranked 2/2, got %d/%d", runnerStats.GlobalRank, runnerStats.CreatorRank)
	}
	if runnerStats.RewardTier != 1 || runnerStats.NextTierThreshold != 3 {
		t.Fatalf("expected runner tier 1 next 3, got %d next %d", runnerStats.RewardTier, runnerStats.NextTierThreshold)
	}
	if runnerStats.Bonus != nil {
		t.Fatalf("expected no bonus for runner, got %+v", runnerStats.Bonus)
	}

	if _, err := svc.GetStats(9999, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown member, got %v", err)
	}
}

func TestGetMemberStatsZeroesStaleMonth(t *testing.T) {
	svc, db := setupMemberServiceTest(t)

	creator := createServiceTestCreator(t, db, "member-stale")
	member := createServiceTestMember(t, db, creator.ID, "STALEMON", constants.MemberStatusActive, "")
	setMemberLedgerCounters(t, db, member.ID, 80, 30, 4, 2, "2000-01")

	stats, err := svc.GetStats(member.ID, time.Now())
	if err != nil {
		t.Fatalf("get member stats failed: %v", err)
	}
	if !stats.MonthlyEarnings.Decimal.IsZero() || stats.MonthlyReferrals != 0 {
		t.Fatalf("expected stale monthly counters zeroed, got %s / %d", stats.MonthlyEarnings.Decimal, stats.MonthlyReferrals)
	}
	if !stats.LifetimeEarnings.Decimal.Equal(decimal.NewFromFloat(80)) || stats.LifetimeReferrals != 4 {
		t.Fatalf("expected lifetime counters untouched, got %s / %d", stats.LifetimeEarnings.Decimal, stats.LifetimeReferrals)
	}
}

func TestUpdateMemberStatus(t *testing.T) {
	svc, db := setupMemberServiceTest(t)

	creator := createServiceTestCreator(t, db, "member-status")
	member := createServiceTestMember(t, db, creator.ID, "STATFLIP", constants.MemberStatusActive, "")

	updated, err := svc.UpdateStatus(member.ID, constants.MemberStatusDisabled)
	if err != nil {
		t.Fatalf("update member status failed: %v", err)
	}
	if updated.Status != constants.MemberStatusDisabled {
		t.Fatalf("expected disabled status, got %q", updated.Status)
	}

	var stored models.Member
	if err := db.First(&stored, member.ID).Error; err != nil {
		t.Fatalf("reload member failed: %v", err)
	}
	if stored.Status != constants.MemberStatusDisabled {
		t.Fatalf("expected persisted disabled status, got %q", stored.Status)
	}

	if _, err := svc.UpdateStatus(member.ID, "banned"); !errors.Is(err, ErrMemberStatusInvalid) {
		t.Fatalf("expected ErrMemberStatusInvalid, got %v", err)
	}
	if _, err := svc.UpdateStatus(9999, constants.MemberStatusActive); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown member, got %v", err)
	}
}

func TestRewardTierProgress(t *testing.T) {
	thresholds := models.Int64Array{1, 3, 10}
	cases := []struct {
		referrals int64
		tier      int
		next      int64
	}{
		{0, 0, 1},
		{1, 1, 3},
		{2, 1, 3},
		{3, 2, 10},
		{9, 2, 10},
		{10, 3, 0},
		{50, 3, 0},
	}
	for _, tc := range cases {
		tier, next := rewardTierProgress(thresholds, tc.referrals)
		if tier != tc.tier || next != tc.next {
			t.Fatalf("referrals %d: expected tier %d next %d, got %d/%d", tc.referrals, tc.tier, tc.next, tier, next)
		}
	}

	if tier, next := rewardTierProgress(nil, 5); tier != 0 || next != 0 {
		t.Fatalf("expected zero progress without thresholds, got %d/%d", tier, next)
	}
}
