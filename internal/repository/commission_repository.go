package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/refledger/internal/constants"
	"github.com/refledger/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommissionRepository 佣金记录数据访问接口
type CommissionRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) CommissionRepository

	CreateIgnoreDuplicate(commission *models.Commission) (bool, error)
	GetByID(id uint) (*models.Commission, error)
	GetByExternalID(externalID string) (*models.Commission, error)
	GetByExternalIDForUpdate(externalID string) (*models.Commission, error)
	List(filter CommissionListFilter) ([]models.Commission, int64, error)
	MarkRefunded(id uint, now time.Time) (bool, error)

	RecomputeMemberStats(memberID uint, month string) (MemberStatsAggregate, error)
	RecomputeCreatorRevenue(creatorID uint, month string) (CreatorStatsAggregate, error)

	CountByMemberSince(memberID uint, since time.Time) (int64, error)
	CountByMemberAndAmountSince(memberID uint, amount decimal.Decimal, since time.Time) (int64, error)
	CountRefundedByMemberSince(memberID uint, since time.Time) (int64, error)
}

// GormCommissionRepository GORM 佣金仓储
type GormCommissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository 创建佣金仓储
func NewCommissionRepository(db *gorm.DB) *GormCommissionRepository {
	return &GormCommissionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCommissionRepository) WithTx(tx *gorm.DB) CommissionRepository {
	if tx == nil {
		return r
	}
	return &GormCommissionRepository{db: tx}
}

// Transaction 执行事务
func (r *GormCommissionRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// CreateIgnoreDuplicate 幂等写入佣金记录（外部支付ID冲突时静默跳过，返回是否新插入）
func (r *GormCommissionRepository) CreateIgnoreDuplicate(commission *models.Commission) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_payment_id"}},
		DoNothing: true,
	}).Create(commission)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetByID 按ID获取佣金记录
func (r *GormCommissionRepository) GetByID(id uint) (*models.Commission, error) {
	if id == 0 {
		return nil, nil
	}
	var commission models.Commission
	if err := r.db.First(&commission, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}

// GetByExternalID 按外部支付ID获取佣金记录
func (r *GormCommissionRepository) GetByExternalID(externalID string) (*models.Commission, error) {
	normalized := strings.TrimSpace(externalID)
	if normalized == "" {
		return nil, nil
	}
	var commission models.Commission
	if err := r.db.Where("external_payment_id = ?", normalized).First(&commission).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}

// GetByExternalIDForUpdate 按外部支付ID获取佣金记录并加行锁（退款回冲用）
func (r *GormCommissionRepository) GetByExternalIDForUpdate(externalID string) (*models.Commission, error) {
	normalized := strings.TrimSpace(externalID)
	if normalized == "" {
		return nil, nil
	}
	var commission models.Commission
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_payment_id = ?", normalized).
		First(&commission).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}

// List 查询佣金记录列表
func (r *GormCommissionRepository) List(filter CommissionListFilter) ([]models.Commission, int64, error) {
	query := r.db.Model(&models.Commission{})
	if filter.CreatorID > 0 {
		query = query.Where("commissions.creator_id = ?", filter.CreatorID)
	}
	if filter.MemberID > 0 {
		query = query.Where("commissions.member_id = ?", filter.MemberID)
	}
	if filter.BuyerMemberID > 0 {
		query = query.Where("commissions.buyer_member_id = ?", filter.BuyerMemberID)
	}
	if externalID := strings.TrimSpace(filter.ExternalPaymentID); externalID != "" {
		query = query.Where("commissions.external_payment_id = ?", externalID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("commissions.status = ?", status)
	}
	if level := strings.TrimSpace(filter.RiskLevel); level != "" {
		query = query.Where("commissions.risk_level = ?", level)
	}
	if month := strings.TrimSpace(filter.StatsMonth); month != "" {
		query = query.Where("commissions.stats_month = ?", month)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("commissions.created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("commissions.created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.Commission
	if err := query.Order("commissions.id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// MarkRefunded 将佣金记录标记为已退款（已退款记录不可重复标记，返回是否生效）
func (r *GormCommissionRepository) MarkRefunded(id uint, now time.Time) (bool, error) {
	if id == 0 {
		return false, nil
	}
	result := r.db.Model(&models.Commission{}).
		Where("id = ? AND status <> ?", id, constants.CommissionStatusRefunded).
		Updates(map[string]interface{}{
			"status":      constants.CommissionStatusRefunded,
			"refunded_at": now,
			"updated_at":  now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RecomputeMemberStats 从佣金原始记录重算会员统计（对账基准，只计已入账记录）
func (r *GormCommissionRepository) RecomputeMemberStats(memberID uint, month string) (MemberStatsAggregate, error) {
	var row struct {
		LifetimeEarnings  decimal.Decimal
		MonthlyEarnings   decimal.Decimal
		LifetimeReferrals int64
		MonthlyReferrals  int64
	}
	err := r.db.Model(&models.Commission{}).
		Select(`COALESCE(SUM(member_share), 0) AS lifetime_earnings,
COALESCE(SUM(CASE WHEN stats_month = ? THEN member_share ELSE 0 END), 0) AS monthly_earnings,
COALESCE(SUM(CASE WHEN payment_type = ? THEN 1 ELSE 0 END), 0) AS lifetime_referrals,
COALESCE(SUM(CASE WHEN payment_type = ? AND stats_month = ? THEN 1 ELSE 0 END), 0) AS monthly_referrals`,
			month, constants.PaymentTypeInitial, constants.PaymentTypeInitial, month).
		Where("member_id = ? AND status = ?", memberID, constants.CommissionStatusPaid).
		Scan(&row).Error
	if err != nil {
		return MemberStatsAggregate{}, err
	}
	return MemberStatsAggregate{
		LifetimeEarnings:  row.LifetimeEarnings,
		MonthlyEarnings:   row.MonthlyEarnings,
		LifetimeReferrals: row.LifetimeReferrals,
		MonthlyReferrals:  row.MonthlyReferrals,
	}, nil
}

// RecomputeCreatorRevenue 从佣金原始记录重算创作者流水（MemberCount 由调用方补齐）
func (r *GormCommissionRepository) RecomputeCreatorRevenue(creatorID uint, month string) (CreatorStatsAggregate, error) {
	var row struct {
		TotalRevenue   decimal.Decimal
		MonthlyRevenue decimal.Decimal
	}
	err := r.db.Model(&models.Commission{}).
		Select(`COALESCE(SUM(sale_amount), 0) AS total_revenue,
COALESCE(SUM(CASE WHEN stats_month = ? THEN sale_amount ELSE 0 END), 0) AS monthly_revenue`, month).
		Where("creator_id = ? AND status = ?", creatorID, constants.CommissionStatusPaid).
		Scan(&row).Error
	if err != nil {
		return CreatorStatsAggregate{}, err
	}
	return CreatorStatsAggregate{
		TotalRevenue:   row.TotalRevenue,
		MonthlyRevenue: row.MonthlyRevenue,
	}, nil
}

// CountByMemberSince 统计会员在给定时间后的佣金笔数（流速与爆发规则用）
func (r *GormCommissionRepository) CountByMemberSince(memberID uint, since time.Time) (int64, error) {
	if memberID == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.Model(&models.Commission{}).
		Where("member_id = ? AND created_at >= ?", memberID, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountByMemberAndAmountSince 统计会员在给定时间后相同销售金额的佣金笔数
func (r *GormCommissionRepository) CountByMemberAndAmountSince(memberID uint, amount decimal.Decimal, since time.Time) (int64, error) {
	if memberID == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.Model(&models.Commission{}).
		Where("member_id = ? AND sale_amount = ? AND created_at >= ?", memberID, amount, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountRefundedByMemberSince 统计会员在给定时间后的退款笔数（拒付历史规则用）
func (r *GormCommissionRepository) CountRefundedByMemberSince(memberID uint, since time.Time) (int64, error) {
	if memberID == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.Model(&models.Commission{}).
		Where("member_id = ? AND status = ? AND refunded_at >= ?", memberID, constants.CommissionStatusRefunded, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
