package repository

import (
	"fmt"
	"time"

	"github.com/refledger/internal/constants"
	"github.com/refledger/internal/models"

	"gorm.io/gorm"
)

// DashboardRepository 运营总览聚合查询接口
// 说明：仅聚合统计数据，不承载业务规则。
type DashboardRepository interface {
	GetOverview(startAt, endAt time.Time) (LedgerOverviewRow, error)
	GetCommissionTrends(startAt, endAt time.Time) ([]CommissionTrendRow, error)
	GetTopCreators(startAt, endAt time.Time, limit int) ([]CreatorVolumeRow, error)
}

// LedgerOverviewRow 运营总览原始统计结果
type LedgerOverviewRow struct {
	CommissionsTotal    int64
	CommissionsRefunded int64
	GrossVolume         float64
	MemberShareVolume   float64
	NewMembers          int64
	ActiveCreators      int64
	OpenReviews         int64
	ParkedEvents        int64
	PendingBonuses      int64
	QuarantinedMembers  int64
}

// CommissionTrendRow 佣金趋势统计
type CommissionTrendRow struct {
	Day         string
	Booked      int64
	Refunded    int64
	GrossVolume float64
}

// CreatorVolumeRow 创作者流水排行原始行
type CreatorVolumeRow struct {
	CreatorID         uint
	CreatorName       string
	Commissions       int64
	GrossVolume       float64
	MemberShareVolume float64
}

// GormDashboardRepository GORM 运营总览聚合实现
type GormDashboardRepository struct {
	db *gorm.DB
}

// NewDashboardRepository 创建运营总览仓储
func NewDashboardRepository(db *gorm.DB) *GormDashboardRepository {
	return &GormDashboardRepository{db: db}
}

// GetOverview 获取总览统计
func (r *GormDashboardRepository) GetOverview(startAt, endAt time.Time) (LedgerOverviewRow, error) {
	result := LedgerOverviewRow{}

	commissionBase := func() *gorm.DB {
		return r.db.Model(&models.Commission{}).
			Where("created_at >= ? AND created_at < ?", startAt, endAt)
	}

	if err := commissionBase().Count(&result.CommissionsTotal).Error; err != nil {
		return result, err
	}
	if err := r.db.Model(&models.Commission{}).
		Where("refunded_at IS NOT NULL AND refunded_at >= ? AND refunded_at < ?", startAt, endAt).
		Count(&result.CommissionsRefunded).Error; err != nil {
		return result, err
	}
	if err := commissionBase().
		Where("status = ?", constants.CommissionStatusPaid).
		Select("COALESCE(SUM(sale_amount), 0)").
		Scan(&result.GrossVolume).Error; err != nil {
		return result, err
	}
	if err := commissionBase().
		Where("status = ?", constants.CommissionStatusPaid).
		Select("COALESCE(SUM(member_share), 0)").
		Scan(&result.MemberShareVolume).Error; err != nil {
		return result, err
	}

	if err := r.db.Model(&models.Member{}).
		Where("created_at >= ? AND created_at < ?", startAt, endAt).
		Count(&result.NewMembers).Error; err != nil {
		return result, err
	}
	if err := r.db.Model(&models.Creator{}).
		Where("status = ?", constants.CreatorStatusActive).
		Count(&result.ActiveCreators).Error; err != nil {
		return result, err
	}
	if err := r.db.Model(&models.RiskReview{}).
		Where("status = ?", constants.RiskReviewStatusOpen).
		Count(&result.OpenReviews).Error; err != nil {
		return result, err
	}
	if err := r.db.Model(&models.ParkedEvent{}).
		Where("status = ?", constants.ParkedEventStatusParked).
		Count(&result.ParkedEvents).Error; err != nil {
		return result, err
	}
	if err := r.db.Model(&models.ReferralBonus{}).
		Where("status = ?", constants.BonusStatusPendingConfirmation).
		Count(&result.PendingBonuses).Error; err != nil {
		return result, err
	}
	if err := r.db.Model(&models.Member{}).
		Where("status = ?", constants.MemberStatusQuarantined).
		Count(&result.QuarantinedMembers).Error; err != nil {
		return result, err
	}

	return result, nil
}

// GetCommissionTrends 获取佣金入账与退款趋势
func (r *GormDashboardRepository) GetCommissionTrends(startAt, endAt time.Time) ([]CommissionTrendRow, error) {
	type countRow struct {
		Day   string
		Total int64
	}
	type amountRow struct {
		Day   string
		Total float64
	}

	dayExpr := dailyBucketExpr(r.db, "created_at")
	refundDayExpr := dailyBucketExpr(r.db, "refunded_at")

	var bookedRows []countRow
	if err := r.db.Model(&models.Commission{}).
		Select(fmt.Sprintf("%s as day, COUNT(*) as total", dayExpr)).
		Where("created_at >= ? AND created_at < ?", startAt, endAt).
		Group(dayExpr).
		Order("day asc").
		Scan(&bookedRows).Error; err != nil {
		return nil, err
	}

	var refundedRows []countRow
	if err := r.db.Model(&models.Commission{}).
		Select(fmt.Sprintf("%s as day, COUNT(*) as total", refundDayExpr)).
		Where("refunded_at IS NOT NULL AND refunded_at >= ? AND refunded_at < ?", startAt, endAt).
		Group(refundDayExpr).
		Order("day asc").
		Scan(&refundedRows).Error; err != nil {
		return nil, err
	}

	var amountRows []amountRow
	if err := r.db.Model(&models.Commission{}).
		Select(fmt.Sprintf("%s as day, COALESCE(SUM(sale_amount), 0) as total", dayExpr)).
		Where("created_at >= ? AND created_at < ? AND status = ?", startAt, endAt, constants.CommissionStatusPaid).
		Group(dayExpr).
		Order("day asc").
		Scan(&amountRows).Error; err != nil {
		return nil, err
	}

	bookedMap := make(map[string]int64, len(bookedRows))
	for _, item := range bookedRows {
		bookedMap[item.Day] = item.Total
	}
	refundedMap := make(map[string]int64, len(refundedRows))
	for _, item := range refundedRows {
		refundedMap[item.Day] = item.Total
	}
	amountMap := make(map[string]float64, len(amountRows))
	for _, item := range amountRows {
		amountMap[item.Day] = item.Total
	}

	seen := make(map[string]struct{}, len(bookedRows)+len(refundedRows))
	result := make([]CommissionTrendRow, 0)
	push := func(day string) {
		if day == "" {
			return
		}
		if _, ok := seen[day]; ok {
			return
		}
		seen[day] = struct{}{}
		result = append(result, CommissionTrendRow{
			Day:         day,
			Booked:      bookedMap[day],
			Refunded:    refundedMap[day],
			GrossVolume: amountMap[day],
		})
	}
	for _, item := range bookedRows {
		push(item.Day)
	}
	for _, item := range refundedRows {
		push(item.Day)
	}

	return result, nil
}

// GetTopCreators 获取创作者流水排行榜
func (r *GormDashboardRepository) GetTopCreators(startAt, endAt time.Time, limit int) ([]CreatorVolumeRow, error) {
	if limit <= 0 {
		limit = 5
	}
	rows := make([]CreatorVolumeRow, 0)
	if err := r.db.Model(&models.Commission{}).
		Select(`
			commissions.creator_id as creator_id,
			COALESCE(creators.name, '') as creator_name,
			COUNT(*) as commissions,
			COALESCE(SUM(CASE WHEN commissions.status = 'paid' THEN commissions.sale_amount ELSE 0 END), 0) as gross_volume,
			COALESCE(SUM(CASE WHEN commissions.status = 'paid' THEN commissions.member_share ELSE 0 END), 0) as member_share_volume
		`).
		Joins("LEFT JOIN creators ON creators.id = commissions.creator_id").
		Where("commissions.created_at >= ? AND commissions.created_at < ?", startAt, endAt).
		Group("commissions.creator_id, creators.name").
		Order("gross_volume DESC, commissions DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
