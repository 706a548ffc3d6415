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

// MemberRepository 推广会员数据访问接口
type MemberRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) MemberRepository

	GetByID(id uint) (*models.Member, error)
	GetByIDForUpdate(id uint) (*models.Member, error)
	GetByReferralCode(code string) (*models.Member, error)
	Create(member *models.Member) error
	Update(member *models.Member) error
	UpdateStatus(id uint, status string, now time.Time) error
	List(filter MemberListFilter) ([]models.Member, int64, error)
	ListIDs(afterID uint, limit int) ([]uint, error)
	ListByIDs(ids []uint) ([]models.Member, error)
	CountByCreator(creatorID uint) (int64, error)

	ApplyEarningsDelta(id uint, delta MemberCounterDelta, month string, now time.Time) error
	ReverseEarningsDelta(id uint, delta MemberCounterDelta, commissionMonth string, now time.Time) error
	OverwriteCounters(id uint, stats MemberStatsAggregate, month string, now time.Time) error

	CountByVisitorKey(visitorKey string, excludeMemberID uint) (int64, error)
	ListRankedByMetric(scope string, creatorID uint, metric string, limit int) ([]RankedMemberRow, error)
	CountRankedAhead(scope string, creatorID uint, metric string, value decimal.Decimal) (int64, error)
}

// GormMemberRepository GORM 推广会员仓储
type GormMemberRepository struct {
	db *gorm.DB
}

// NewMemberRepository 创建推广会员仓储
func NewMemberRepository(db *gorm.DB) *GormMemberRepository {
	return &GormMemberRepository{db: db}
}

// WithTx 绑定事务
func (r *GormMemberRepository) WithTx(tx *gorm.DB) MemberRepository {
	if tx == nil {
		return r
	}
	return &GormMemberRepository{db: tx}
}

// Transaction 执行事务
func (r *GormMemberRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 按ID获取会员
func (r *GormMemberRepository) GetByID(id uint) (*models.Member, error) {
	if id == 0 {
		return nil, nil
	}
	var member models.Member
	if err := r.db.First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// GetByIDForUpdate 按ID获取会员并加行锁
func (r *GormMemberRepository) GetByIDForUpdate(id uint) (*models.Member, error) {
	if id == 0 {
		return nil, nil
	}
	var member models.Member
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// GetByReferralCode 按推荐码获取会员
func (r *GormMemberRepository) GetByReferralCode(code string) (*models.Member, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, nil
	}
	var member models.Member
	if err := r.db.Where("referral_code = ?", normalized).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// Create 创建会员
func (r *GormMemberRepository) Create(member *models.Member) error {
	return r.db.Create(member).Error
}

// Update 更新会员
func (r *GormMemberRepository) Update(member *models.Member) error {
	return r.db.Save(member).Error
}

// UpdateStatus 更新会员状态
func (r *GormMemberRepository) UpdateStatus(id uint, status string, now time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.Member{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": now,
		}).Error
}

// List 查询会员列表
func (r *GormMemberRepository) List(filter MemberListFilter) ([]models.Member, int64, error) {
	query := r.db.Model(&models.Member{})
	if filter.CreatorID > 0 {
		query = query.Where("members.creator_id = ?", filter.CreatorID)
	}
	if filter.ReferrerID > 0 {
		query = query.Where("members.referrer_id = ?", filter.ReferrerID)
	}
	if origin := strings.TrimSpace(filter.Origin); origin != "" {
		query = query.Where("members.origin = ?", origin)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("members.status = ?", status)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		condition, argCount := buildKeywordLikeCondition(r.db, []string{"members.display_name", "members.email", "members.referral_code"})
		query = query.Where("("+condition+")", repeatLikeArgs("%"+keyword+"%", argCount)...)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("members.created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("members.created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.Member
	if err := query.Preload("Creator").Order("members.id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListIDs 按ID升序分批列出会员ID（对账巡检用）
func (r *GormMemberRepository) ListIDs(afterID uint, limit int) ([]uint, error) {
	if limit <= 0 {
		limit = 100
	}
	var ids []uint
	if err := r.db.Model(&models.Member{}).
		Where("id > ?", afterID).
		Order("id asc").
		Limit(limit).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ListByIDs 批量获取会员
func (r *GormMemberRepository) ListByIDs(ids []uint) ([]models.Member, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Member
	if err := r.db.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountByCreator 统计创作者名下会员数量
func (r *GormMemberRepository) CountByCreator(creatorID uint) (int64, error) {
	if creatorID == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.Model(&models.Member{}).
		Where("creator_id = ?", creatorID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ApplyEarningsDelta 累加会员收益与推荐计数（单行原子更新，跨月自动滚动）
func (r *GormMemberRepository) ApplyEarningsDelta(id uint, delta MemberCounterDelta, month string, now time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.Member{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"lifetime_earnings":  gorm.Expr("lifetime_earnings + ?", delta.Earnings),
			"monthly_earnings":   gorm.Expr("CASE WHEN stats_month = ? THEN monthly_earnings + ? ELSE ? END", month, delta.Earnings, delta.Earnings),
			"lifetime_referrals": gorm.Expr("lifetime_referrals + ?", delta.Referrals),
			"monthly_referrals":  gorm.Expr("CASE WHEN stats_month = ? THEN monthly_referrals + ? ELSE ? END", month, delta.Referrals, delta.Referrals),
			"stats_month":        month,
			"updated_at":         now,
		}).Error
}

// ReverseEarningsDelta 回冲会员收益与推荐计数（当月佣金才回冲月度计数）
func (r *GormMemberRepository) ReverseEarningsDelta(id uint, delta MemberCounterDelta, commissionMonth string, now time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.Member{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"lifetime_earnings":  gorm.Expr("lifetime_earnings - ?", delta.Earnings),
			"monthly_earnings":   gorm.Expr("CASE WHEN stats_month = ? THEN monthly_earnings - ? ELSE monthly_earnings END", commissionMonth, delta.Earnings),
			"lifetime_referrals": gorm.Expr("lifetime_referrals - ?", delta.Referrals),
			"monthly_referrals":  gorm.Expr("CASE WHEN stats_month = ? THEN monthly_referrals - ? ELSE monthly_referrals END", commissionMonth, delta.Referrals),
			"updated_at":         now,
		}).Error
}

// OverwriteCounters 用重算结果覆盖会员缓存计数（对账修正）
func (r *GormMemberRepository) OverwriteCounters(id uint, stats MemberStatsAggregate, month string, now time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.Member{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"lifetime_earnings":  stats.LifetimeEarnings,
			"monthly_earnings":   stats.MonthlyEarnings,
			"lifetime_referrals": stats.LifetimeReferrals,
			"monthly_referrals":  stats.MonthlyReferrals,
			"stats_month":        month,
			"updated_at":         now,
		}).Error
}

// CountByVisitorKey 统计共享同一访客指纹的其他会员数量
func (r *GormMemberRepository) CountByVisitorKey(visitorKey string, excludeMemberID uint) (int64, error) {
	normalized := strings.TrimSpace(visitorKey)
	if normalized == "" {
		return 0, nil
	}
	query := r.db.Model(&models.Member{}).Where("visitor_key = ?", normalized)
	if excludeMemberID > 0 {
		query = query.Where("id <> ?", excludeMemberID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// rankMetricColumn 将排行榜指标映射为会员表列名
func rankMetricColumn(metric string) (string, bool) {
	switch metric {
	case constants.RankMetricLifetimeEarnings:
		return "lifetime_earnings", true
	case constants.RankMetricMonthlyEarnings:
		return "monthly_earnings", true
	case constants.RankMetricTotalReferrals:
		return "lifetime_referrals", true
	default:
		return "", false
	}
}

// rankableMembers 排名口径：仅统计启用会员，隔离与禁用会员不参与
func (r *GormMemberRepository) rankableMembers(scope string, creatorID uint) *gorm.DB {
	query := r.db.Model(&models.Member{}).
		Where("status = ?", constants.MemberStatusActive)
	if scope == constants.RankScopeCreator && creatorID > 0 {
		query = query.Where("creator_id = ?", creatorID)
	}
	return query
}

// ListRankedByMetric 按指标预排序列出可排名会员（指标降序，注册早者在前）
func (r *GormMemberRepository) ListRankedByMetric(scope string, creatorID uint, metric string, limit int) ([]RankedMemberRow, error) {
	column, ok := rankMetricColumn(metric)
	if !ok {
		return nil, gorm.ErrInvalidField
	}
	query := r.rankableMembers(scope, creatorID).
		Select("id AS member_id, creator_id, " + column + " AS metric_value, created_at").
		Order(column + " desc").
		Order("created_at asc").
		Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []RankedMemberRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountRankedAhead 统计指标严格更高的会员数量（实时名次 = 数量 + 1，指标并列共享名次）
func (r *GormMemberRepository) CountRankedAhead(scope string, creatorID uint, metric string, value decimal.Decimal) (int64, error) {
	column, ok := rankMetricColumn(metric)
	if !ok {
		return 0, gorm.ErrInvalidField
	}
	var count int64
	err := r.rankableMembers(scope, creatorID).
		Where(column+" > ?", value).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
