package service

import (
	"errors"
	"fmt"
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

func setupBonusServiceTest(t *testing.T) (*BonusService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:bonus_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Creator{}, &models.Member{}, &models.Commission{}, &models.ReferralBonus{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	cfg := config.BonusConfig{Amount: 5, MinMemberShare: 1, HoldDays: 7}
	svc := NewBonusService(repository.NewBonusRepository(db), repository.NewMemberRepository(db), cfg)
	return svc, db
}

func setMemberReferralCount(t *testing.T, db *gorm.DB, memberID uint, count int64) {
	t.Helper()

	if err := db.Model(&models.Member{}).Where("id = ?", memberID).
		Update("lifetime_referrals", count).Error; err != nil {
		t.Fatalf("set referral count failed: %v", err)
	}
}

func createServiceTestBonus(t *testing.T, db *gorm.DB, memberID, commissionID uint, status string, confirmAt time.Time) models.ReferralBonus {
	t.Helper()

	row := models.ReferralBonus{
		MemberID:     memberID,
		CommissionID: commissionID,
		Amount:       models.NewMoneyFromDecimal(decimal.NewFromInt(5)),
		BonusType:    constants.BonusTypeFirstReferral,
		Status:       status,
		EligibleAt:   confirmAt.Add(-7 * 24 * time.Hour),
		ConfirmAt:    confirmAt,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create bonus failed: %v", err)
	}
	return row
}

func TestEvaluateAfterCommissionGrantsBonus(t *testing.T) {
	svc, db := setupBonusServiceTest(t)

	creator := createServiceTestCreator(t, db, "bonus-grant")
	referrer := createServiceTestMember(t, db, creator.ID, "BNSGRANT", constants.MemberStatusActive, "")
	setMemberReferralCount(t, db, referrer.ID, 1)
	commission := createServiceTestCommission(t, db, creator.ID, memberIDPtr(referrer.ID), "pay-bonus-1", 49.99, constants.CommissionStatusPaid, time.Now())

	now := time.Now()
	bonus, err := svc.EvaluateAfterCommission(&commission, now)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if bonus == nil {
		t.Fatalf("expected bonus granted")
	}
	if bonus.Status != constants.BonusStatusPendingConfirmation {
		t.Fatalf("expected pending_confirmation, got %s", bonus.Status)
	}
	if !bonus.Amount.Decimal.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected amount 5, got %s", bonus.Amount)
	}
	wantConfirm := now.Add(7 * 24 * time.Hour)
	if bonus.ConfirmAt.Sub(wantConfirm) > time.Second || wantConfirm.Sub(bonus.ConfirmAt) > time.Second {
		t.Fatalf("expected confirm_at near %v, got %v", wantConfirm, bonus.ConfirmAt)
	}
}

func TestEvaluateAfterCommissionOncePerMember(t *testing.T) {
	svc, db := setupBonusServiceTest(t)

	creator := createServiceTestCreator(t, db, "bonus-once")
	referrer := createServiceTestMember(t, db, creator.ID, "BNSONCEE", constants.MemberStatusActive, "")
	setMemberReferralCount(t, db, referrer.ID, 1)

	first := createServiceTestCommission(t, db, creator.ID, memberIDPtr(referrer.ID), "pay-once-1", 49.99, constants.CommissionStatusPaid, time.Now())
	if bonus, err := svc.EvaluateAfterCommission(&first, time.Now()); err != nil || bonus == nil {
		t.Fatalf("expected first bonus granted, got bonus=%v err=%v", bonus, err)
	}

	second := createServiceTestCommission(t, db, creator.ID, memberIDPtr(referrer.ID), "pay-once-2", 59.99, constants.CommissionStatusPaid, time.Now())
	bonus, err := svc.EvaluateAfterCommission(&second, time.Now())
	if err != nil {
		t.Fatalf("second evaluate failed: %v", err)
	}
	if bonus != nil {
		t.Fatalf("expected no second bonus, got %+v", bonus)
	}

	var count int64
	if err := db.Model(&models.ReferralBonus{}).Where("member_id = ?", referrer.ID).Count(&count).Error; err != nil {
		t.Fatalf("count bonuses failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 bonus row, got %d", count)
	}
}

func TestEvaluateAfterCommissionSkipsNonEligible(t *testing.T) {
	svc, db := setupBonusServiceTest(t)

	creator := createServiceTestCreator(t, db, "bonus-skip")
	referrer := createServiceTestMember(t, db, creator.ID, "BNSSKIPP", constants.MemberStatusActive, "")
	setMemberReferralCount(t, db, referrer.ID, 1)

	// 续费支付不触发
	recurring := createServiceTestCommission(t, db, creator.ID, memberIDPtr(referrer.ID), "pay-skip-1", 49.99, constants.CommissionStatusPaid, time.Now())
	recurring.PaymentType = constants.PaymentTypeRecurring
	if bonus, err := svc.EvaluateAfterCommission(&recurring, time.Now()); err != nil || bonus != nil {
		t.Fatalf("expected recurring skipped, got bonus=%v err=%v", bonus, err)
	}

	// 自然成交（无推荐人）不触发
	organic := createServiceTestCommission(t, db, creator.ID, nil, "pay-skip-2", 49.99, constants.CommissionStatusPaid, time.Now())
	if bonus, err := svc.EvaluateAfterCommission(&organic, time.Now()); err != nil || bonus != nil {
		t.Fatalf("expected organic skipped, got bonus=%v err=%v", bonus, err)
	}

	// 推荐人份额低于门槛不触发
	small := createServiceTestCommission(t, db, creator.ID, memberIDPtr(referrer.ID), "pay-skip-3", 5, constants.CommissionStatusPaid, time.Now())
	if bonus, err := svc.EvaluateAfterCommission(&small, time.Now()); err != nil || bonus != nil {
		t.Fatalf("expected below-threshold skipped, got bonus=%v err=%v", bonus, err)
	}

	// 非首笔推荐不触发
	veteran := createServiceTestMember(t, db, creator.ID, "BNSVETER", constants.MemberStatusActive, "")
	setMemberReferralCount(t, db, veteran.ID, 2)
	repeatSale := createServiceTestCommission(t, db, creator.ID, memberIDPtr(veteran.ID), "pay-skip-4", 49.99, constants.CommissionStatusPaid, time.Now())
	if bonus, err := svc.EvaluateAfterCommission(&repeatSale, time.Now()); err != nil || bonus != nil {
		t.Fatalf("expected veteran skipped, got bonus=%v err=%v", bonus, err)
	}

	var count int64
	if err := db.Model(&models.ReferralBonus{}).Count(&count).Error; err != nil {
		t.Fatalf("count bonuses failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no bonus rows, got %d", count)
	}
}

func TestConfirmDueSweep(t *testing.T) {
	svc, db := setupBonusServiceTest(t)

	creator := createServiceTestCreator(t, db, "bonus-sweep")
	memberDue := createServiceTestMember(t, db, creator.ID, "BNSDUEAA", constants.MemberStatusActive, "")
	memberWait := createServiceTestMember(t, db, creator.ID, "BNSWAITB", constants.MemberStatusActive, "")

	now := time.Now()
	due := createServiceTestBonus(t, db, memberDue.ID, 101, constants.BonusStatusPendingConfirmation, now.Add(-time.Hour))
	waiting := createServiceTestBonus(t, db, memberWait.ID, 102, constants.BonusStatusPendingConfirmation, now.Add(48*time.Hour))

	confirmed, err := svc.ConfirmDue(now)
	if err != nil {
		t.Fatalf("confirm due failed: %v", err)
	}
	if confirmed != 1 {
		t.Fatalf("expected 1 confirmed, got %d", confirmed)
	}

	var reloaded models.ReferralBonus
	if err := db.First(&reloaded, due.ID).Error; err != nil {
		t.Fatalf("reload due bonus failed: %v", err)
	}
	if reloaded.Status != constants.BonusStatusConfirmed || reloaded.ConfirmedAt == nil {
		t.Fatalf("expected confirmed with timestamp, got %+v", reloaded)
	}

	reloaded = models.ReferralBonus{}
	if err := db.First(&reloaded, waiting.ID).Error; err != nil {
		t.Fatalf("reload waiting bonus failed: %v", err)
	}
	if reloaded.Status != constants.BonusStatusPendingConfirmation {
		t.Fatalf("expected waiting bonus untouched, got %s", reloaded.Status)
	}
}

func TestBonusPaidTransition(t *testing.T) {
	svc, db := setupBonusServiceTest(t)

	creator := createServiceTestCreator(t, db, "bonus-paid")
	member := createServiceTestMember(t, db, creator.ID, "BNSPAIDA", constants.MemberStatusActive, "")
	bonus := createServiceTestBonus(t, db, member.ID, 201, constants.BonusStatusPendingConfirmation, time.Now().Add(-time.Hour))

	// 待确认状态不能直接发放
	if _, err := svc.MarkPaid(bonus.ID); !errors.Is(err, ErrBonusTransitionInvalid) {
		t.Fatalf("expected ErrBonusTransitionInvalid for pending bonus, got %v", err)
	}

	if _, err := svc.ConfirmDue(time.Now()); err != nil {
		t.Fatalf("confirm due failed: %v", err)
	}

	paid, err := svc.MarkPaid(bonus.ID)
	if err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	if paid.Status != constants.BonusStatusPaid || paid.PaidAt == nil {
		t.Fatalf("expected paid with timestamp, got %+v", paid)
	}

	// 已发放奖励不可撤销
	if _, err := svc.Revoke(bonus.ID, "fraud confirmed"); !errors.Is(err, ErrBonusTransitionInvalid) {
		t.Fatalf("expected ErrBonusTransitionInvalid for paid bonus, got %v", err)
	}

	if _, err := svc.MarkPaid(9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing bonus, got %v", err)
	}
}

func TestBonusRevokeFromPendingAndConfirmed(t *testing.T) {
	svc, db := setupBonusServiceTest(t)

	creator := createServiceTestCreator(t, db, "bonus-revoke")
	memberA := createServiceTestMember(t, db, creator.ID, "BNSREVKA", constants.MemberStatusActive, "")
	memberB := createServiceTestMember(t, db, creator.ID, "BNSREVKB", constants.MemberStatusActive, "")

	pending := createServiceTestBonus(t, db, memberA.ID, 301, constants.BonusStatusPendingConfirmation, time.Now().Add(24*time.Hour))
	confirmed := createServiceTestBonus(t, db, memberB.ID, 302, constants.BonusStatusConfirmed, time.Now().Add(-time.Hour))

	revoked, err := svc.Revoke(pending.ID, "refund received")
	if err != nil {
		t.Fatalf("revoke pending failed: %v", err)
	}
	if revoked.Status != constants.BonusStatusRevoked || revoked.RevokedAt == nil {
		t.Fatalf("expected revoked pending bonus, got %+v", revoked)
	}
	if revoked.RevokeReason != "refund received" {
		t.Fatalf("expected revoke reason persisted, got %q", revoked.RevokeReason)
	}

	revoked, err = svc.Revoke(confirmed.ID, "fraud confirmed")
	if err != nil {
		t.Fatalf("revoke confirmed failed: %v", err)
	}
	if revoked.Status != constants.BonusStatusRevoked {
		t.Fatalf("expected revoked confirmed bonus, got %+v", revoked)
	}
}

func TestRevokeForCommissionTx(t *testing.T) {
	svc, db := setupBonusServiceTest(t)

	creator := createServiceTestCreator(t, db, "bonus-refund")
	memberA := createServiceTestMember(t, db, creator.ID, "BNSRFNDA", constants.MemberStatusActive, "")
	memberB := createServiceTestMember(t, db, creator.ID, "BNSRFNDB", constants.MemberStatusActive, "")

	commissionA := createServiceTestCommission(t, db, creator.ID, memberIDPtr(memberA.ID), "pay-refund-a", 49.99, constants.CommissionStatusPaid, time.Now())
	commissionB := createServiceTestCommission(t, db, creator.ID, memberIDPtr(memberB.ID), "pay-refund-b", 49.99, constants.CommissionStatusPaid, time.Now())

	pending := createServiceTestBonus(t, db, memberA.ID, commissionA.ID, constants.BonusStatusPendingConfirmation, time.Now().Add(24*time.Hour))
	paid := createServiceTestBonus(t, db, memberB.ID, commissionB.ID, constants.BonusStatusPaid, time.Now().Add(-48*time.Hour))

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.RevokeForCommissionTx(tx, commissionA.ID, "payment refunded", time.Now())
	})
	if err != nil {
		t.Fatalf("revoke in tx failed: %v", err)
	}

	var reloaded models.ReferralBonus
	if err := db.First(&reloaded, pending.ID).Error; err != nil {
		t.Fatalf("reload bonus failed: %v", err)
	}
	if reloaded.Status != constants.BonusStatusRevoked {
		t.Fatalf("expected revoked bonus, got %s", reloaded.Status)
	}

	// 已发放奖励在退款时保持不动
	err = db.Transaction(func(tx *gorm.DB) error {
		return svc.RevokeForCommissionTx(tx, commissionB.ID, "payment refunded", time.Now())
	})
	if err != nil {
		t.Fatalf("revoke paid in tx failed: %v", err)
	}
	reloaded = models.ReferralBonus{}
	if err := db.First(&reloaded, paid.ID).Error; err != nil {
		t.Fatalf("reload paid bonus failed: %v", err)
	}
	if reloaded.Status != constants.BonusStatusPaid {
		t.Fatalf("expected paid bonus kept, got %s", reloaded.Status)
	}

	// 无对应奖励的佣金退款安静跳过
	err = db.Transaction(func(tx *gorm.DB) error {
		return svc.RevokeForCommissionTx(tx, 9999, "payment refunded", time.Now())
	})
	if err != nil {
		t.Fatalf("revoke missing bonus failed: %v", err)
	}
}
