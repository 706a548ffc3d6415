package constants

// 创作者状态常量
const (
	CreatorStatusActive   = "active"
	CreatorStatusDisabled = "disabled"
)

// 推广会员状态常量
const (
	MemberStatusActive      = "active"
	MemberStatusQuarantined = "quarantined"
	MemberStatusDisabled    = "disabled"
)

// 推广会员来源常量
const (
	MemberOriginOrganic  = "organic"
	MemberOriginReferred = "referred"
)

// 佣金状态常量
const (
	CommissionStatusPending  = "pending"
	CommissionStatusPaid     = "paid"
	CommissionStatusRefunded = "refunded"
)

// 佣金对应的支付类型常量
const (
	PaymentTypeInitial   = "initial"
	PaymentTypeRecurring = "recurring"
)

// 归因来源常量
const (
	AttributionSourceClick = "click"
	AttributionSourceCode  = "code"
	AttributionSourceNone  = "none"
)

// 风险等级常量
const (
	RiskLevelLow    = "low"
	RiskLevelMedium = "medium"
	RiskLevelHigh   = "high"
)

// 风险等级分界线常量
const (
	RiskScoreLowMax    = 30
	RiskScoreMediumMax = 70
	RiskScoreCeiling   = 100
)

// 首次推荐奖励状态常量
const (
	BonusStatusPendingConfirmation = "pending_confirmation"
	BonusStatusConfirmed           = "confirmed"
	BonusStatusPaid                = "paid"
	BonusStatusRevoked             = "revoked"
)

// 奖励类型常量
const (
	BonusTypeFirstReferral = "first_referral"
)

// 排行榜范围常量
const (
	RankScopeGlobal  = "global"
	RankScopeCreator = "creator"
)

// 排行榜指标常量
const (
	RankMetricLifetimeEarnings = "lifetime_earnings"
	RankMetricMonthlyEarnings  = "monthly_earnings"
	RankMetricTotalReferrals   = "total_referrals"
)

// 风险人工复核状态常量
const (
	RiskReviewStatusOpen      = "open"
	RiskReviewStatusCleared   = "cleared"
	RiskReviewStatusConfirmed = "confirmed"
)

// 滞留事件状态常量
const (
	ParkedEventStatusParked      = "parked"
	ParkedEventStatusReprocessed = "reprocessed"
	ParkedEventStatusDiscarded   = "discarded"
)

// 滞留事件类型常量
const (
	ParkedEventKindPayment = "payment"
	ParkedEventKindRefund  = "refund"
)

// 支付事件处理结果常量
const (
	PaymentResultAccepted  = "accepted"
	PaymentResultDuplicate = "duplicate"
	PaymentResultRejected  = "rejected"
)

// 退款事件处理结果常量
const (
	RefundResultReversed        = "reversed"
	RefundResultNotFound        = "not_found"
	RefundResultAlreadyReversed = "already_reversed"
)

// 队列常量
const (
	QueueDefault       = "default"
	TaskRefundRetry    = "refund:retry"
	TaskRankRefresh    = "rank:refresh"
	TaskReconcileRun   = "reconcile:run"
	TaskEventReprocess = "event:reprocess"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "rl"
)

// 统计月份格式常量
const (
	StatsMonthLayout = "2006-01"
)
