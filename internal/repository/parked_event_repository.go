package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/refledger/internal/constants"
	"github.com/refledger/internal/models"
	"gorm.io/gorm"
)

// ParkedEventRepository 滞留事件数据访问接口
type ParkedEventRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) ParkedEventRepository

	Create(event *models.ParkedEvent) error
	GetByID(id uint) (*models.ParkedEvent, error)
	GetByEventID(eventID string) (*models.ParkedEvent, error)
	List(filter ParkedEventListFilter) ([]models.ParkedEvent, int64, error)
	MarkReprocessed(id uint, now time.Time) (bool, error)
	MarkDiscarded(id uint, now time.Time) (bool, error)
}

// GormParkedEventRepository GORM 滞留事件仓储
type GormParkedEventRepository struct {
	db *gorm.DB
}

// NewParkedEventRepository 创建滞留事件仓储
func NewParkedEventRepository(db *gorm.DB) *GormParkedEventRepository {
	return &GormParkedEventRepository{db: db}
}

// WithTx 绑定事务
func (r *GormParkedEventRepository) WithTx(tx *gorm.DB) ParkedEventRepository {
	if tx == nil {
		return r
	}
	return &GormParkedEventRepository{db: tx}
}

// Transaction 执行事务
func (r *GormParkedEventRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 写入滞留事件
func (r *GormParkedEventRepository) Create(event *models.ParkedEvent) error {
	return r.db.Create(event).Error
}

// GetByID 按ID获取滞留事件
func (r *GormParkedEventRepository) GetByID(id uint) (*models.ParkedEvent, error) {
	if id == 0 {
		return nil, nil
	}
	var event models.ParkedEvent
	if err := r.db.First(&event, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// GetByEventID 按事件ID获取滞留事件
func (r *GormParkedEventRepository) GetByEventID(eventID string) (*models.ParkedEvent, error) {
	normalized := strings.TrimSpace(eventID)
	if normalized == "" {
		return nil, nil
	}
	var event models.ParkedEvent
	if err := r.db.Where("event_id = ?", normalized).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// List 查询滞留事件列表
func (r *GormParkedEventRepository) List(filter ParkedEventListFilter) ([]models.ParkedEvent, int64, error) {
	query := r.db.Model(&models.ParkedEvent{})
	if kind := strings.TrimSpace(filter.Kind); kind != "" {
		query = query.Where("parked_events.kind = ?", kind)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("parked_events.status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.ParkedEvent
	if err := query.Order("parked_events.id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// MarkReprocessed 将滞留事件标记为已重放（仅滞留状态可标记，返回是否生效）
func (r *GormParkedEventRepository) MarkReprocessed(id uint, now time.Time) (bool, error) {
	if id == 0 {
		return false, nil
	}
	result := r.db.Model(&models.ParkedEvent{}).
		Where("id = ? AND status = ?", id, constants.ParkedEventStatusParked).
		Updates(map[string]interface{}{
			"status":         constants.ParkedEventStatusReprocessed,
			"reprocessed_at": now,
			"updated_at":     now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkDiscarded 将滞留事件标记为已废弃（仅滞留状态可标记，返回是否生效）
func (r *GormParkedEventRepository) MarkDiscarded(id uint, now time.Time) (bool, error) {
	if id == 0 {
		return false, nil
	}
	result := r.db.Model(&models.ParkedEvent{}).
		Where("id = ? AND status = ?", id, constants.ParkedEventStatusParked).
		Updates(map[string]interface{}{
			"status":     constants.ParkedEventStatusDiscarded,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
