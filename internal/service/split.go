package service

import (
	"math"

	"github.com/refledger/internal/config"
	"github.com/refledger/internal/models"

	"github.com/shopspring/decimal"
)

// 分账金额统一保留 4 位小数，亚分级份额不丢失
const splitAmountPrecision = 4

var splitSumTolerance = decimal.NewFromFloat(0.01)

// RateTriple 三方分成比例
type RateTriple struct {
	Member   decimal.Decimal
	Creator  decimal.Decimal
	Platform decimal.Decimal
}

// Valid 校验比例非负且合计为 1
func (r RateTriple) Valid() bool {
	if r.Member.IsNegative() || r.Creator.IsNegative() || r.Platform.IsNegative() {
		return false
	}
	sum := r.Member.Add(r.Creator).Add(r.Platform)
	return sum.Sub(decimal.NewFromInt(1)).Abs().LessThanOrEqual(decimal.NewFromFloat(0.0001))
}

// Split 单笔成交的三方分账结果
type Split struct {
	SaleAmount    decimal.Decimal
	MemberShare   decimal.Decimal
	CreatorShare  decimal.Decimal
	PlatformShare decimal.Decimal
}

// DecimalFromEventAmount 将事件金额转换为 decimal
// NaN / Inf 出现在未经净化的网关输入里，必须在进入分账前拒绝
func DecimalFromEventAmount(value float64) (decimal.Decimal, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return decimal.Zero, ErrInvalidAmount
	}
	return decimal.NewFromFloat(value), nil
}

// CalculateSplit 计算三方分账
// 推荐人与创作者份额按比例四舍五入到 4 位小数，余数全部并入平台份额，
// 因此三方之和恒等于成交金额。
func CalculateSplit(amount decimal.Decimal, rates RateTriple, maxAmount decimal.Decimal) (Split, error) {
	normalized := amount.Round(splitAmountPrecision)
	if normalized.IsNegative() {
		return Split{}, ErrInvalidAmount
	}
	if maxAmount.GreaterThan(decimal.Zero) && normalized.GreaterThan(maxAmount) {
		return Split{}, ErrInvalidAmount
	}

	memberShare := normalized.Mul(rates.Member).Round(splitAmountPrecision)
	creatorShare := normalized.Mul(rates.Creator).Round(splitAmountPrecision)
	platformShare := normalized.Sub(memberShare).Sub(creatorShare)
	if memberShare.IsNegative() || creatorShare.IsNegative() || platformShare.IsNegative() {
		return Split{}, ErrInvariantViolation
	}

	sum := memberShare.Add(creatorShare).Add(platformShare)
	if sum.Sub(normalized).Abs().GreaterThan(splitSumTolerance) {
		return Split{}, ErrInvariantViolation
	}

	return Split{
		SaleAmount:    normalized,
		MemberShare:   memberShare,
		CreatorShare:  creatorShare,
		PlatformShare: platformShare,
	}, nil
}

// RateTripleFromCreator 取创作者配置的分成比例，不合法时回退到全局默认
func RateTripleFromCreator(creator *models.Creator, cfg config.CommissionConfig) RateTriple {
	if creator != nil {
		rates := RateTriple{
			Member:   creator.MemberRate.Decimal,
			Creator:  creator.CreatorRate.Decimal,
			Platform: creator.PlatformRate.Decimal,
		}
		if rates.Valid() {
			return rates
		}
	}
	return RateTriple{
		Member:   decimal.NewFromFloat(cfg.MemberRate),
		Creator:  decimal.NewFromFloat(cfg.CreatorRate),
		Platform: decimal.NewFromFloat(cfg.PlatformRate),
	}
}
