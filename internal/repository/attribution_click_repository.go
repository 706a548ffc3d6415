package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/refledger/internal/models"
	"gorm.io/gorm"
)

// AttributionClickRepository 推广点击数据访问接口
type AttributionClickRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) AttributionClickRepository

	Create(click *models.AttributionClick) error
	HasRecentClick(memberID uint, visitorKey string, since time.Time) (bool, error)
	GetLatestActiveByVisitorKey(visitorKey string, now time.Time) (*models.AttributionClick, error)
	MarkConverted(id uint, paymentID string, now time.Time) (bool, error)
	CountByMemberSince(memberID uint, since time.Time) (int64, error)
	PruneExpired(before time.Time) (int64, error)
}

// GormAttributionClickRepository GORM 推广点击仓储
type GormAttributionClickRepository struct {
	db *gorm.DB
}

// NewAttributionClickRepository 创建推广点击仓储
func NewAttributionClickRepository(db *gorm.DB) *GormAttributionClickRepository {
	return &GormAttributionClickRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAttributionClickRepository) WithTx(tx *gorm.DB) AttributionClickRepository {
	if tx == nil {
		return r
	}
	return &GormAttributionClickRepository{db: tx}
}

// Transaction 执行事务
func (r *GormAttributionClickRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 记录一次推广点击
func (r *GormAttributionClickRepository) Create(click *models.AttributionClick) error {
	return r.db.Create(click).Error
}

// HasRecentClick 判断同一访客对同一会员近期是否已记录过点击（去重窗口）
func (r *GormAttributionClickRepository) HasRecentClick(memberID uint, visitorKey string, since time.Time) (bool, error) {
	normalized := strings.TrimSpace(visitorKey)
	if memberID == 0 || normalized == "" {
		return false, nil
	}
	var count int64
	err := r.db.Model(&models.AttributionClick{}).
		Where("member_id = ? AND visitor_key = ? AND created_at >= ?", memberID, normalized, since).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetLatestActiveByVisitorKey 获取访客最近一次未过期的点击（最新点击归因）
func (r *GormAttributionClickRepository) GetLatestActiveByVisitorKey(visitorKey string, now time.Time) (*models.AttributionClick, error) {
	normalized := strings.TrimSpace(visitorKey)
	if normalized == "" {
		return nil, nil
	}
	var click models.AttributionClick
	err := r.db.Where("visitor_key = ? AND expires_at > ?", normalized, now).
		Order("created_at desc").
		Order("id desc").
		First(&click).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &click, nil
}

// MarkConverted 将点击标记为已转化（只翻转一次，重复标记静默跳过）
func (r *GormAttributionClickRepository) MarkConverted(id uint, paymentID string, now time.Time) (bool, error) {
	if id == 0 {
		return false, nil
	}
	result := r.db.Model(&models.AttributionClick{}).
		Where("id = ? AND converted = ?", id, false).
		Updates(map[string]interface{}{
			"converted":            true,
			"converted_at":         now,
			"converted_payment_id": strings.TrimSpace(paymentID),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CountByMemberSince 统计会员在给定时间后的点击数量
func (r *GormAttributionClickRepository) CountByMemberSince(memberID uint, since time.Time) (int64, error) {
	if memberID == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.Model(&models.AttributionClick{}).
		Where("member_id = ? AND created_at >= ?", memberID, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// PruneExpired 清理已过期且未转化的点击（后台巡检）
func (r *GormAttributionClickRepository) PruneExpired(before time.Time) (int64, error) {
	result := r.db.Where("expires_at < ? AND converted = ?", before, false).
		Delete(&models.AttributionClick{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
