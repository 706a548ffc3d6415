package service

import (
	"context"
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

func fraudTestConfig() config.FraudConfig {
	return config.FraudConfig{
		CacheTTLSeconds:      180,
		VelocityWindowHours:  24,
		VelocityMaxReferrals: 5,
		FingerprintMinShared: 2,
		RepeatedAmountWindow: 48,
		RepeatedAmountMin:    3,
		ChargebackWindowDays: 90,
		ChargebackMin:        2,
		BurstWindowMinutes:   10,
		BurstMin:             3,
	}
}

func setupFraudServiceTest(t *testing.T) (*FraudService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:fraud_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Creator{}, &models.Member{}, &models.Commission{}, &models.RiskReview{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	svc := NewFraudService(
		repository.NewCommissionRepository(db),
		repository.NewMemberRepository(db),
		repository.NewRiskReviewRepository(db),
		fraudTestConfig(),
	)
	return svc, db
}

func createServiceTestCommission(t *testing.T, db *gorm.DB, creatorID uint, memberID *uint, externalID string, saleAmount float64, status string, createdAt time.Time) models.Commission {
	t.Helper()

	amount := decimal.NewFromFloat(saleAmount)
	row := models.Commission{
		ExternalPaymentID: externalID,
		CreatorID:         creatorID,
		MemberID:          memberID,
		SaleAmount:        models.NewMoneyFromDecimal(amount),
		MemberShare:       models.NewMoneyFromDecimal(amount.Mul(decimal.NewFromFloat(0.10))),
		CreatorShare:      models.NewMoneyFromDecimal(amount.Mul(decimal.NewFromFloat(0.70))),
		PlatformShare:     models.NewMoneyFromDecimal(amount.Mul(decimal.NewFromFloat(0.20))),
		PaymentType:       constants.PaymentTypeInitial,
		Status:            status,
		AttributionSource: constants.AttributionSourceCode,
		RiskLevel:         constants.RiskLevelLow,
		StatsMonth:        createdAt.Format(constants.StatsMonthLayout),
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}
	if status == constants.CommissionStatusRefunded {
		refundedAt := createdAt.Add(time.Hour)
		row.RefundedAt = &refundedAt
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create commission failed: %v", err)
	}
	return row
}

func memberIDPtr(id uint) *uint {
	return &id
}

func TestAssessCleanReferrerIsLow(t *testing.T) {
	svc, db := setupFraudServiceTest(t)

	creator := createServiceTestCreator(t, db, "fraud-clean")
	referrer := createServiceTestMember(t, db, creator.ID, "FRDCLEAN", constants.MemberStatusActive, "device-clean")

	assessment, err := svc.Assess(context.Background(), FraudSubject{
		Referrer:          &referrer,
		CreatorID:         creator.ID,
		SaleAmount:        decimal.NewFromFloat(49.99),
		ExternalPaymentID: "pay-clean-1",
		Now:               time.Now(),
	})
	if err != nil {
		t.Fatalf("assess failed: %v", err)
	}
	if assessment.Score != 0 {
		t.Fatalf("expected zero score, got %d", assessment.Score)
	}
	if assessment.Level != constants.RiskLevelLow {
		t.Fatalf("expected low level, got %s", assessment.Level)
	}
	if len(assessment.TriggeredRules) != 0 {
		t.Fatalf("expected no triggered rules, got %v", assessment.TriggeredRules)
	}
}

func TestAssessNilReferrerIsLow(t *testing.T) {
	svc, _ := setupFraudServiceTest(t)

	assessment, err := svc.Assess(context.Background(), FraudSubject{Now: time.Now()})
	if err != nil {
		t.Fatalf("assess failed: %v", err)
	}
	if assessment.Score != 0 || assessment.Level != constants.RiskLevelLow {
		t.Fatalf("expected zero/low for organic subject, got %+v", assessment)
	}
}

func TestAssessVelocityRule(t *testing.T) {
	svc, db := setupFraudServiceTest(t)

	creator := createServiceTestCreator(t, db, "fraud-velocity")
	referrer := createServiceTestMember(t, db, creator.ID, "FRDVELOC", constants.MemberStatusActive, "")

	now := time.Now()
	for i := 0; i < 5; i++ {
		createdAt := now.Add(-time.Duration(i+1) * time.Hour)
		createServiceTestCommission(t, db, creator.ID, memberIDPtr(referrer.ID),
			fmt.Sprintf("pay-velocity-%d", i), 20, constants.CommissionStatusPaid, createdAt)
	}

	assessment, err := svc.Assess(context.Background(), FraudSubject{
		Referrer:          &referrer,
		CreatorID:         creator.ID,
		SaleAmount:        decimal.NewFromFloat(49.99),
		ExternalPaymentID: "pay-velocity-next",
		Now:               now,
	})
	if err != nil {
		t.Fatalf("assess failed: %v", err)
	}
	if !containsRule(assessment.TriggeredRules, fraudRuleVelocity) {
		t.Fatalf("expected velocity rule triggered, got %v", assessment.TriggeredRules)
	}
	if assessment.Score != fraudWeightVelocity {
		t.Fatalf("expected score %d, got %d", fraudWeightVelocity, assessment.Score)
	}
	if assessment.Level != constants.RiskLevelLow {
		t.Fatalf("expected low level at score 25, got %s", assessment.Level)
	}
}

func TestAssessSharedFingerprintRule(t *testing.T) {
	svc, db := setupFraudServiceTest(t)

	creator := createServiceTestCreator(t, db, "fraud-fingerprint")
	referrer := createServiceTestMember(t, db, creator.ID, "FRDFINGR", constants.MemberStatusActive, "device-dup")
	createServiceTestMember(t, db, creator.ID, "FRDFING2", constants.MemberStatusActive, "device-dup")
	createServiceTestMember(t, db, creator.ID, "FRDFING3", constants.MemberStatusActive, "device-dup")

	assessment, err := svc.Assess(context.Background(), FraudSubject{
		Referrer:          &referrer,
		CreatorID:         creator.ID,
		SaleAmount:        decimal.NewFromFloat(49.99),
		ExternalPaymentID: "pay-fingerprint-1",
		Now:               time.Now(),
	})
	if err != nil {
		t.Fatalf("assess failed: %v", err)
	}
	if !containsRule(assessment.TriggeredRules, fraudRuleSharedFingerprint) {
		t.Fatalf("expected shared fingerprint rule triggered, got %v", assessment.TriggeredRules)
	}
	if assessment.Score != fraudWeightSharedFingerprint {
		t.Fatalf("expected score %d, got %d", fraudWeightSharedFingerprint, assessment.Score)
	}
	if assessment.Level != constants.RiskLevelMedium {
		t.Fatalf("expected medium level at score 35, got %s", assessment.Level)
	}
}

func TestAssessRepeatedAmountRule(t *testing.T) {
	svc, db := setupFraudServiceTest(t)

	creator := createServiceTestCreator(t, db, "fraud-repeated")
	referrer := createServiceTestMember(t, db, creator.ID, "FRDREPEA", constants.MemberStatusActive, "")

	now := time.Now()
	createServiceTestCommission(t, db, creator.ID, memberIDPtr(referrer.ID), "pay-repeat-1", 49.99, constants.CommissionStatusPaid, now.Add(-3*time.Hour))
	createServiceTestCommission(t, db, creator.ID, memberIDPtr(referrer.ID), "pay-repeat-2", 49.99, constants.CommissionStatusPaid, now.Add(-2*time.Hour))

	// 第三笔相同金额触发规则
	assessment, err := svc.Assess(context.Background(), FraudSubject{
		Referrer:          &referrer,
		CreatorID:         creator.ID,
		SaleAmount:        decimal.NewFromFloat(49.99),
		ExternalPaymentID: "pay-repeat-3",
		Now:               now,
	})
	if err != nil {
		t.Fatalf("assess failed: %v", err)
	}
	if !containsRule(assessment.TriggeredRules, fraudRuleRepeatedAmount) {
		t.Fatalf("expected repeated amount rule triggered, got %v", assessment.TriggeredRules)
	}

	// 金额不同则不触发
	assessment, err = svc.Assess(context.Background(), FraudSubject{
		Referrer:          &referrer,
		CreatorID:         creator.ID,
		SaleAmount:        decimal.NewFromFloat(19.99),
		ExternalPaymentID: "pay-repeat-4",
		Now:               now,
	})
	if err != nil {
		t.Fatalf("assess failed: %v", err)
	}
	if containsRule(assessment.TriggeredRules, fraudRuleRepeatedAmount) {
		t.Fatalf("expected repeated amount rule not triggered for new amount, got %v", assessment.TriggeredRules)
	}
}

func TestAssessChargebackRule(t *testing.T) {
	svc, db := setupFraudServiceTest(t)

	creator := createServiceTestCreator(t, db, "fraud-chargeback")
	referrer := createServiceTestMember(t, db, creator.ID, "FRDCHARG", constants.MemberStatusActive, "")

	now := time.Now()
	createServiceTestCommission(t, db, creator.ID, memberIDPtr(referrer.ID), "pay-cb-1", 30, constants.CommissionStatusRefunded, now.Add(-20*24*time.Hour))
	createServiceTestCommission(t, db, creator.ID, memberIDPtr(referrer.ID), "pay-cb-2", 40, constants.CommissionStatusRefunded, now.Add(-10*24*time.Hour))

	assessment, err := svc.Assess(context.Background(), FraudSubject{
		Referrer:          &referrer,
		CreatorID:         creator.ID,
		SaleAmount:        decimal.NewFromFloat(49.99),
		ExternalPaymentID: "pay-cb-next",
		Now:               now,
	})
	if err != nil {
		t.Fatalf("assess failed: %v", err)
	}
	if !containsRule(assessment.TriggeredRules, fraudRuleChargeback) {
		t.Fatalf("expected chargeback rule triggered, got %v", assessment.TriggeredRules)
	}
	if assessment.Score != fraudWeightChargeback {
		t.Fatalf("expected score %d, got %d", fraudWeightChargeback, assessment.Score)
	}
}

func TestAssessConversionBurstRule(t *testing.T) {
	svc, db := setupFraudServiceTest(t)

	creator := createServiceTestCreator(t, db, "fraud-burst")
	referrer := createServiceTestMember(t, db, creator.ID, "FRDBURST", constants.MemberStatusActive, "")

	now := time.Now()
	createServiceTestCommission(t, db, creator.ID, memberIDPtr(referrer.ID), "pay-burst-1", 15, constants.CommissionStatusPaid, now.Add(-5*time.Minute))
	createServiceTestCommission(t, db, creator.ID, memberIDPtr(referrer.ID), "pay-burst-2", 25, constants.CommissionStatusPaid, now.Add(-3*time.Minute))

	assessment, err := svc.Assess(context.Background(), FraudSubject{
		Referrer:          &referrer,
		CreatorID:         creator.ID,
		SaleAmount:        decimal.NewFromFloat(35),
		ExternalPaymentID: "pay-burst-3",
		Now:               now,
	})
	if err != nil {
		t.Fatalf("assess failed: %v", err)
	}
	if !containsRule(assessment.TriggeredRules, fraudRuleConversionBurst) {
		t.Fatalf("expected conversion burst rule triggered, got %v", assessment.TriggeredRules)
	}
}

func TestAssessScoreCappedAtCeiling(t *testing.T) {
	svc, db := setupFraudServiceTest(t)

	creator := createServiceTestCreator(t, db, "fraud-cap")
	referrer := createServiceTestMember(t, db, creator.ID, "FRDCAPPP", constants.MemberStatusActive, "device-cap")
	createServiceTestMember(t, db, creator.ID, "FRDCAPP2", constants.MemberStatusActive, "device-cap")
	createServiceTestMember(t, db, creator.ID, "FRDCAPP3", constants.MemberStatusActive, "device-cap")

	now := time.Now()
	// 近窗口内大量同金额退款成单，同时命中流速、重复金额、拒付与爆发
	for i := 0; i < 6; i++ {
		createServiceTestCommission(t, db, creator.ID, memberIDPtr(referrer.ID),
			fmt.Sprintf("pay-cap-%d", i), 49.99, constants.CommissionStatusRefunded, now.Add(-time.Duration(i+1)*time.Minute))
	}

	assessment, err := svc.Assess(context.Background(), FraudSubject{
		Referrer:          &referrer,
		CreatorID:         creator.ID,
		SaleAmount:        decimal.NewFromFloat(49.99),
		ExternalPaymentID: "pay-cap-next",
		Now:               now,
	})
	if err != nil {
		t.Fatalf("assess failed: %v", err)
	}
	if len(assessment.TriggeredRules) != 5 {
		t.Fatalf("expected all 5 rules triggered, got %v", assessment.TriggeredRules)
	}
	if assessment.Score != constants.RiskScoreCeiling {
		t.Fatalf("expected capped score %d, got %d", constants.RiskScoreCeiling, assessment.Score)
	}
	if assessment.Level != constants.RiskLevelHigh {
		t.Fatalf("expected high level, got %s", assessment.Level)
	}
}

func TestAssessRuleFailureIsIsolated(t *testing.T) {
	db := setupFraudRuleIsolationDB(t)

	commissionRepo := repository.NewCommissionRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	svc := NewFraudService(commissionRepo, memberRepo, repository.NewRiskReviewRepository(db), fraudTestConfig())
	// 用必然失败的规则替换一条，验证其余规则照常累分
	svc.rules = []FraudRule{
		failingFraudRule{},
		sharedFingerprintRule{repo: memberRepo, minShared: 2},
	}

	creator := createServiceTestCreator(t, db, "fraud-isolated")
	referrer := createServiceTestMember(t, db, creator.ID, "FRDISOLA", constants.MemberStatusActive, "device-iso")
	createServiceTestMember(t, db, creator.ID, "FRDISOL2", constants.MemberStatusActive, "device-iso")
	createServiceTestMember(t, db, creator.ID, "FRDISOL3", constants.MemberStatusActive, "device-iso")

	assessment, err := svc.Assess(context.Background(), FraudSubject{
		Referrer:          &referrer,
		CreatorID:         creator.ID,
		SaleAmount:        decimal.NewFromFloat(49.99),
		ExternalPaymentID: "pay-isolated-1",
		Now:               time.Now(),
	})
	if err != nil {
		t.Fatalf("assess failed: %v", err)
	}
	if !containsRule(assessment.TriggeredRules, fraudRuleSharedFingerprint) {
		t.Fatalf("expected surviving rule triggered, got %v", assessment.TriggeredRules)
	}
	if assessment.Score != fraudWeightSharedFingerprint {
		t.Fatalf("expected score %d from surviving rule, got %d", fraudWeightSharedFingerprint, assessment.Score)
	}
}

func TestRiskLevelBoundaries(t *testing.T) {
	cases := []struct {
		score int
		level string
	}{
		{0, constants.RiskLevelLow},
		{30, constants.RiskLevelLow},
		{31, constants.RiskLevelMedium},
		{70, constants.RiskLevelMedium},
		{71, constants.RiskLevelHigh},
		{100, constants.RiskLevelHigh},
	}
	for _, tc := range cases {
		if got := riskLevelForScore(tc.score); got != tc.level {
			t.Fatalf("score %d: expected %s, got %s", tc.score, tc.level, got)
		}
	}
}

func TestAssessMemberNotFound(t *testing.T) {
	svc, _ := setupFraudServiceTest(t)

	_, err := svc.AssessMember(context.Background(), 9999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDecideReviewTransitions(t *testing.T) {
	svc, db := setupFraudServiceTest(t)

	creator := createServiceTestCreator(t, db, "fraud-review")
	referrer := createServiceTestMember(t, db, creator.ID, "FRDREVIE", constants.MemberStatusActive, "")

	review := models.RiskReview{
		MemberID:          referrer.ID,
		ExternalPaymentID: "pay-review-1",
		Score:             85,
		Level:             constants.RiskLevelHigh,
		TriggeredRules:    fraudRuleSharedFingerprint + "," + fraudRuleChargeback,
		Status:            constants.RiskReviewStatusOpen,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	if err := db.Create(&review).Error; err != nil {
		t.Fatalf("create review failed: %v", err)
	}

	if _, err := svc.DecideReview(review.ID, "escalated", ""); !errors.Is(err, ErrReviewStatusInvalid) {
		t.Fatalf("expected ErrReviewStatusInvalid for unknown status, got %v", err)
	}

	decided, err := svc.DecideReview(review.ID, constants.RiskReviewStatusCleared, "verified manually")
	if err != nil {
		t.Fatalf("decide review failed: %v", err)
	}
	if decided.Status != constants.RiskReviewStatusCleared {
		t.Fatalf("expected cleared status, got %s", decided.Status)
	}
	if decided.ReviewedAt == nil {
		t.Fatalf("expected reviewed_at set")
	}

	// 已有结论的复核单不可再流转
	if _, err := svc.DecideReview(review.ID, constants.RiskReviewStatusConfirmed, ""); !errors.Is(err, ErrReviewStatusInvalid) {
		t.Fatalf("expected ErrReviewStatusInvalid for settled review, got %v", err)
	}

	if _, err := svc.DecideReview(8888, constants.RiskReviewStatusCleared, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing review, got %v", err)
	}
}

func setupFraudRuleIsolationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:fraud_isolation_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Creator{}, &models.Member{}, &models.Commission{}, &models.RiskReview{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

type failingFraudRule struct{}

func (failingFraudRule) Name() string { return "always_failing" }

func (failingFraudRule) Weight() int { return 40 }

func (failingFraudRule) Evaluate(FraudSubject) (bool, error) {
	return false, errors.New("rule backend unavailable")
}

func containsRule(rules []string, name string) bool {
	for _, rule := range rules {
		if rule == name {
			return true
		}
	}
	return false
}
