package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreatorListFilter 查询创作者列表的过滤条件
type CreatorListFilter struct {
	Page     int
	PageSize int
	Status   string
	Keyword  string
}

// MemberListFilter 查询会员列表的过滤条件
type MemberListFilter struct {
	Page        int
	PageSize    int
	CreatorID   uint
	ReferrerID  uint
	Origin      string
	Status      string
	Keyword     string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// CommissionListFilter 查询佣金记录列表的过滤条件
type CommissionListFilter struct {
	Page              int
	PageSize          int
	CreatorID         uint
	MemberID          uint
	BuyerMemberID     uint
	ExternalPaymentID string
	Status            string
	RiskLevel         string
	StatsMonth        string
	CreatedFrom       *time.Time
	CreatedTo         *time.Time
}

// BonusListFilter 查询首次推荐奖励列表的过滤条件
type BonusListFilter struct {
	Page     int
	PageSize int
	MemberID uint
	Status   string
}

// RiskReviewListFilter 查询风险复核列表的过滤条件
type RiskReviewListFilter struct {
	Page     int
	PageSize int
	MemberID uint
	Status   string
}

// ParkedEventListFilter 查询滞留事件列表的过滤条件
type ParkedEventListFilter struct {
	Page     int
	PageSize int
	Kind     string
	Status   string
}

// MemberCounterDelta 会员计数增量（单行原子更新）
type MemberCounterDelta struct {
	Earnings  decimal.Decimal
	Referrals int64
}

// MemberStatsAggregate 从佣金原始记录重算出的会员统计
type MemberStatsAggregate struct {
	LifetimeEarnings  decimal.Decimal
	MonthlyEarnings   decimal.Decimal
	LifetimeReferrals int64
	MonthlyReferrals  int64
}

// CreatorStatsAggregate 从佣金原始记录重算出的创作者统计
type CreatorStatsAggregate struct {
	TotalRevenue   decimal.Decimal
	MonthlyRevenue decimal.Decimal
	MemberCount    int64
}

// RankedMemberRow 排名计算输入行（按指标降序、注册时间升序预排序）
type RankedMemberRow struct {
	MemberID    uint            `gorm:"column:member_id"`
	CreatorID   uint            `gorm:"column:creator_id"`
	MetricValue decimal.Decimal `gorm:"column:metric_value"`
	CreatedAt   time.Time       `gorm:"column:created_at"`
}

