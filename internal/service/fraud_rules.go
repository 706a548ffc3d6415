package service

import (
	"strings"
	"time"

	"github.com/refledger/internal/config"
	"github.com/refledger/internal/models"
	"github.com/refledger/internal/repository"

	"github.com/shopspring/decimal"
)

// 风控规则名称（入库到佣金与复核单的 triggered_rules 字段）
const (
	fraudRuleVelocity          = "velocity"
	fraudRuleSharedFingerprint = "shared_fingerprint"
	fraudRuleRepeatedAmount    = "repeated_amount"
	fraudRuleChargeback        = "chargeback_history"
	fraudRuleConversionBurst   = "conversion_burst"
)

// 风控规则权重，合计超出评分上限时按上限封顶
const (
	fraudWeightVelocity          = 25
	fraudWeightSharedFingerprint = 35
	fraudWeightRepeatedAmount    = 15
	fraudWeightChargeback        = 30
	fraudWeightConversionBurst   = 20
)

// FraudSubject 单次风控评估的输入快照
type FraudSubject struct {
	Referrer          *models.Member
	CreatorID         uint
	SaleAmount        decimal.Decimal
	VisitorKey        string
	ExternalPaymentID string
	Now               time.Time
}

// FraudRule 风控规则
// Evaluate 的错误由调度方隔离：单条规则失败记日志后按未命中继续，不中断整体评分
type FraudRule interface {
	Name() string
	Weight() int
	Evaluate(subject FraudSubject) (bool, error)
}

// newFraudRules 构建规则集，权重与顺序固定
func newFraudRules(commissionRepo repository.CommissionRepository, memberRepo repository.MemberRepository, cfg config.FraudConfig) []FraudRule {
	return []FraudRule{
		velocityRule{repo: commissionRepo, windowHours: cfg.VelocityWindowHours, maxReferrals: cfg.VelocityMaxReferrals},
		sharedFingerprintRule{repo: memberRepo, minShared: cfg.FingerprintMinShared},
		repeatedAmountRule{repo: commissionRepo, windowHours: cfg.RepeatedAmountWindow, minCount: cfg.RepeatedAmountMin},
		chargebackRule{repo: commissionRepo, windowDays: cfg.ChargebackWindowDays, minCount: cfg.ChargebackMin},
		conversionBurstRule{repo: commissionRepo, windowMinutes: cfg.BurstWindowMinutes, minCount: cfg.BurstMin},
	}
}

// velocityRule 推荐频率：归因窗口期内已成佣金笔数达到上限后再来的支付视为刷单信号
type velocityRule struct {
	repo         repository.CommissionRepository
	windowHours  int
	maxReferrals int
}

func (r velocityRule) Name() string { return fraudRuleVelocity }

func (r velocityRule) Weight() int { return fraudWeightVelocity }

func (r velocityRule) Evaluate(subject FraudSubject) (bool, error) {
	if subject.Referrer == nil || r.repo == nil || r.maxReferrals <= 0 {
		return false, nil
	}
	since := subject.Now.Add(-time.Duration(r.windowHours) * time.Hour)
	count, err := r.repo.CountByMemberSince(subject.Referrer.ID, since)
	if err != nil {
		return false, err
	}
	return count >= int64(r.maxReferrals), nil
}

// sharedFingerprintRule 指纹共享：推荐人的注册指纹出现在多个其他账号上
type sharedFingerprintRule struct {
	repo      repository.MemberRepository
	minShared int
}

func (r sharedFingerprintRule) Name() string { return fraudRuleSharedFingerprint }

func (r sharedFingerprintRule) Weight() int { return fraudWeightSharedFingerprint }

func (r sharedFingerprintRule) Evaluate(subject FraudSubject) (bool, error) {
	if subject.Referrer == nil || r.repo == nil || r.minShared <= 0 {
		return false, nil
	}
	key := strings.TrimSpace(subject.Referrer.VisitorKey)
	if key == "" {
		return false, nil
	}
	count, err := r.repo.CountByVisitorKey(key, subject.Referrer.ID)
	if err != nil {
		return false, err
	}
	return count >= int64(r.minShared), nil
}

// repeatedAmountRule 相同金额：窗口期内同一推荐人反复出现同一销售金额
type repeatedAmountRule struct {
	repo        repository.CommissionRepository
	windowHours int
	minCount    int
}

func (r repeatedAmountRule) Name() string { return fraudRuleRepeatedAmount }

func (r repeatedAmountRule) Weight() int { return fraudWeightRepeatedAmount }

func (r repeatedAmountRule) Evaluate(subject FraudSubject) (bool, error) {
	if subject.Referrer == nil || r.repo == nil || r.minCount <= 0 {
		return false, nil
	}
	if subject.SaleAmount.LessThanOrEqual(decimal.Zero) {
		return false, nil
	}
	since := subject.Now.Add(-time.Duration(r.windowHours) * time.Hour)
	count, err := r.repo.CountByMemberAndAmountSince(subject.Referrer.ID, subject.SaleAmount, since)
	if err != nil {
		return false, err
	}
	// 当前这笔也计入
	return count+1 >= int64(r.minCount), nil
}

// chargebackRule 拒付历史：窗口期内推荐的成交被退款的次数
type chargebackRule struct {
	repo       repository.CommissionRepository
	windowDays int
	minCount   int
}

func (r chargebackRule) Name() string { return fraudRuleChargeback }

func (r chargebackRule) Weight() int { return fraudWeightChargeback }

func (r chargebackRule) Evaluate(subject FraudSubject) (bool, error) {
	if subject.Referrer == nil || r.repo == nil || r.minCount <= 0 {
		return false, nil
	}
	since := subject.Now.Add(-time.Duration(r.windowDays) * 24 * time.Hour)
	count, err := r.repo.CountRefundedByMemberSince(subject.Referrer.ID, since)
	if err != nil {
		return false, err
	}
	return count >= int64(r.minCount), nil
}

// conversionBurstRule 转化爆发：极短窗口内同一推荐人连续成单
type conversionBurstRule struct {
	repo          repository.CommissionRepository
	windowMinutes int
	minCount      int
}

func (r conversionBurstRule) Name() string { return fraudRuleConversionBurst }

func (r conversionBurstRule) Weight() int { return fraudWeightConversionBurst }

func (r conversionBurstRule) Evaluate(subject FraudSubject) (bool, error) {
	if subject.Referrer == nil || r.repo == nil || r.minCount <= 0 {
		return false, nil
	}
	since := subject.Now.Add(-time.Duration(r.windowMinutes) * time.Minute)
	count, err := r.repo.CountByMemberSince(subject.Referrer.ID, since)
	if err != nil {
		return false, err
	}
	return count+1 >= int64(r.minCount), nil
}
