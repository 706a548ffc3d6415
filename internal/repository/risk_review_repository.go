package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/refledger/internal/constants"
	"github.com/refledger/internal/models"
	"gorm.io/gorm"
)

// RiskReviewRepository 风险复核数据访问接口
type RiskReviewRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) RiskReviewRepository

	Create(review *models.RiskReview) error
	GetByID(id uint) (*models.RiskReview, error)
	HasClearedForPayment(memberID uint, externalPaymentID string) (bool, error)
	List(filter RiskReviewListFilter) ([]models.RiskReview, int64, error)
	UpdateDecision(id uint, status string, note string, now time.Time) (bool, error)
}

// GormRiskReviewRepository GORM 风险复核仓储
type GormRiskReviewRepository struct {
	db *gorm.DB
}

// NewRiskReviewRepository 创建风险复核仓储
func NewRiskReviewRepository(db *gorm.DB) *GormRiskReviewRepository {
	return &GormRiskReviewRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRiskReviewRepository) WithTx(tx *gorm.DB) RiskReviewRepository {
	if tx == nil {
		return r
	}
	return &GormRiskReviewRepository{db: tx}
}

// Transaction 执行事务
func (r *GormRiskReviewRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建风险复核单
func (r *GormRiskReviewRepository) Create(review *models.RiskReview) error {
	return r.db.Create(review).Error
}

// GetByID 按ID获取复核单
func (r *GormRiskReviewRepository) GetByID(id uint) (*models.RiskReview, error) {
	if id == 0 {
		return nil, nil
	}
	var review models.RiskReview
	if err := r.db.First(&review, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &review, nil
}

// HasClearedForPayment 判断某笔支付是否已有放行结论（放行后重试不再拦截）
func (r *GormRiskReviewRepository) HasClearedForPayment(memberID uint, externalPaymentID string) (bool, error) {
	normalized := strings.TrimSpace(externalPaymentID)
	if memberID == 0 || normalized == "" {
		return false, nil
	}
	var count int64
	err := r.db.Model(&models.RiskReview{}).
		Where("member_id = ? AND external_payment_id = ? AND status = ?",
			memberID, normalized, constants.RiskReviewStatusCleared).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// List 查询复核单列表
func (r *GormRiskReviewRepository) List(filter RiskReviewListFilter) ([]models.RiskReview, int64, error) {
	query := r.db.Model(&models.RiskReview{})
	if filter.MemberID > 0 {
		query = query.Where("risk_reviews.member_id = ?", filter.MemberID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("risk_reviews.status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.RiskReview
	if err := query.Order("risk_reviews.id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// UpdateDecision 写入人工复核结论（仅处理待复核单，返回是否生效）
func (r *GormRiskReviewRepository) UpdateDecision(id uint, status string, note string, now time.Time) (bool, error) {
	if id == 0 {
		return false, nil
	}
	result := r.db.Model(&models.RiskReview{}).
		Where("id = ? AND status = ?", id, constants.RiskReviewStatusOpen).
		Updates(map[string]interface{}{
			"status":      status,
			"review_note": strings.TrimSpace(note),
			"reviewed_at": now,
			"updated_at":  now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
