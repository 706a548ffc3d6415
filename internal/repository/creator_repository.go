package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/refledger/internal/constants"
	"github.com/refledger/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreatorRepository 创作者数据访问接口
type CreatorRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) CreatorRepository

	GetByID(id uint) (*models.Creator, error)
	GetBySlug(slug string) (*models.Creator, error)
	Create(creator *models.Creator) error
	Update(creator *models.Creator) error
	List(filter CreatorListFilter) ([]models.Creator, int64, error)
	ListActiveIDs() ([]uint, error)

	ApplyRevenueDelta(id uint, amount decimal.Decimal, month string, now time.Time) error
	ReverseRevenueDelta(id uint, amount decimal.Decimal, commissionMonth string, now time.Time) error
	IncrementMemberCount(id uint, delta int64, now time.Time) error
	OverwriteCounters(id uint, stats CreatorStatsAggregate, month string, now time.Time) error
}

// GormCreatorRepository GORM 创作者仓储
type GormCreatorRepository struct {
	db *gorm.DB
}

// NewCreatorRepository 创建创作者仓储
func NewCreatorRepository(db *gorm.DB) *GormCreatorRepository {
	return &GormCreatorRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCreatorRepository) WithTx(tx *gorm.DB) CreatorRepository {
	if tx == nil {
		return r
	}
	return &GormCreatorRepository{db: tx}
}

// Transaction 执行事务
func (r *GormCreatorRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 按ID获取创作者
func (r *GormCreatorRepository) GetByID(id uint) (*models.Creator, error) {
	if id == 0 {
		return nil, nil
	}
	var creator models.Creator
	if err := r.db.First(&creator, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &creator, nil
}

// GetBySlug 按短标识获取创作者
func (r *GormCreatorRepository) GetBySlug(slug string) (*models.Creator, error) {
	normalized := strings.ToLower(strings.TrimSpace(slug))
	if normalized == "" {
		return nil, nil
	}
	var creator models.Creator
	if err := r.db.Where("slug = ?", normalized).First(&creator).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &creator, nil
}

// Create 创建创作者
func (r *GormCreatorRepository) Create(creator *models.Creator) error {
	return r.db.Create(creator).Error
}

// Update 更新创作者
func (r *GormCreatorRepository) Update(creator *models.Creator) error {
	return r.db.Save(creator).Error
}

// List 查询创作者列表
func (r *GormCreatorRepository) List(filter CreatorListFilter) ([]models.Creator, int64, error) {
	query := r.db.Model(&models.Creator{})
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("creators.status = ?", status)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		condition, argCount := buildKeywordLikeCondition(r.db, []string{"creators.name", "creators.slug"})
		query = query.Where("("+condition+")", repeatLikeArgs("%"+keyword+"%", argCount)...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.Creator
	if err := query.Order("creators.id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListActiveIDs 查询全部启用创作者ID
func (r *GormCreatorRepository) ListActiveIDs() ([]uint, error) {
	var ids []uint
	if err := r.db.Model(&models.Creator{}).
		Where("status = ?", constants.CreatorStatusActive).
		Order("id asc").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ApplyRevenueDelta 累加创作者入账计数（单行原子更新，跨月自动滚动）
func (r *GormCreatorRepository) ApplyRevenueDelta(id uint, amount decimal.Decimal, month string, now time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.Creator{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_revenue":   gorm.Expr("total_revenue + ?", amount),
			"monthly_revenue": gorm.Expr("CASE WHEN stats_month = ? THEN monthly_revenue + ? ELSE ? END", month, amount, amount),
			"stats_month":     month,
			"updated_at":      now,
		}).Error
}

// ReverseRevenueDelta 回冲创作者入账计数（当月佣金才回冲月度计数）
func (r *GormCreatorRepository) ReverseRevenueDelta(id uint, amount decimal.Decimal, commissionMonth string, now time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.Creator{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_revenue":   gorm.Expr("total_revenue - ?", amount),
			"monthly_revenue": gorm.Expr("CASE WHEN stats_month = ? THEN monthly_revenue - ? ELSE monthly_revenue END", commissionMonth, amount),
			"updated_at":      now,
		}).Error
}

// IncrementMemberCount 调整创作者会员数量计数
func (r *GormCreatorRepository) IncrementMemberCount(id uint, delta int64, now time.Time) error {
	if id == 0 || delta == 0 {
		return nil
	}
	return r.db.Model(&models.Creator{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"member_count": gorm.Expr("member_count + ?", delta),
			"updated_at":   now,
		}).Error
}

// OverwriteCounters 用重算结果覆盖创作者缓存计数（对账修正）
func (r *GormCreatorRepository) OverwriteCounters(id uint, stats CreatorStatsAggregate, month string, now time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.Creator{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_revenue":   stats.TotalRevenue,
			"monthly_revenue": stats.MonthlyRevenue,
			"member_count":    stats.MemberCount,
			"stats_month":     month,
			"updated_at":      now,
		}).Error
}
