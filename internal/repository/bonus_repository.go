package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/refledger/internal/constants"
	"github.com/refledger/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BonusRepository 首次推荐奖励数据访问接口
type BonusRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) BonusRepository

	CreateIgnoreDuplicate(bonus *models.ReferralBonus) (bool, error)
	GetByID(id uint) (*models.ReferralBonus, error)
	GetByMemberID(memberID uint) (*models.ReferralBonus, error)
	GetByCommissionID(commissionID uint) (*models.ReferralBonus, error)
	List(filter BonusListFilter) ([]models.ReferralBonus, int64, error)

	ConfirmDue(before time.Time, now time.Time) (int64, error)
	MarkPaid(id uint, now time.Time) (bool, error)
	Revoke(id uint, reason string, now time.Time) (bool, error)
}

// GormBonusRepository GORM 首次推荐奖励仓储
type GormBonusRepository struct {
	db *gorm.DB
}

// NewBonusRepository 创建首次推荐奖励仓储
func NewBonusRepository(db *gorm.DB) *GormBonusRepository {
	return &GormBonusRepository{db: db}
}

// WithTx 绑定事务
func (r *GormBonusRepository) WithTx(tx *gorm.DB) BonusRepository {
	if tx == nil {
		return r
	}
	return &GormBonusRepository{db: tx}
}

// Transaction 执行事务
func (r *GormBonusRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// CreateIgnoreDuplicate 幂等写入奖励记录（每个会员至多一条，冲突时静默跳过）
func (r *GormBonusRepository) CreateIgnoreDuplicate(bonus *models.ReferralBonus) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "member_id"}},
		DoNothing: true,
	}).Create(bonus)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetByID 按ID获取奖励记录
func (r *GormBonusRepository) GetByID(id uint) (*models.ReferralBonus, error) {
	if id == 0 {
		return nil, nil
	}
	var bonus models.ReferralBonus
	if err := r.db.First(&bonus, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bonus, nil
}

// GetByMemberID 按会员获取奖励记录
func (r *GormBonusRepository) GetByMemberID(memberID uint) (*models.ReferralBonus, error) {
	if memberID == 0 {
		return nil, nil
	}
	var bonus models.ReferralBonus
	if err := r.db.Where("member_id = ?", memberID).First(&bonus).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bonus, nil
}

// GetByCommissionID 按来源佣金获取奖励记录（退款联动撤销用）
func (r *GormBonusRepository) GetByCommissionID(commissionID uint) (*models.ReferralBonus, error) {
	if commissionID == 0 {
		return nil, nil
	}
	var bonus models.ReferralBonus
	if err := r.db.Where("commission_id = ?", commissionID).First(&bonus).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bonus, nil
}

// List 查询奖励记录列表
func (r *GormBonusRepository) List(filter BonusListFilter) ([]models.ReferralBonus, int64, error) {
	query := r.db.Model(&models.ReferralBonus{})
	if filter.MemberID > 0 {
		query = query.Where("referral_bonuses.member_id = ?", filter.MemberID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("referral_bonuses.status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.ReferralBonus
	if err := query.Order("referral_bonuses.id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ConfirmDue 批量确认持有期已满的待确认奖励（巡检任务，返回生效行数）
func (r *GormBonusRepository) ConfirmDue(before time.Time, now time.Time) (int64, error) {
	result := r.db.Model(&models.ReferralBonus{}).
		Where("status = ? AND confirm_at <= ?", constants.BonusStatusPendingConfirmation, before).
		Updates(map[string]interface{}{
			"status":       constants.BonusStatusConfirmed,
			"confirmed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// MarkPaid 将已确认奖励标记为已发放（其他状态不生效）
func (r *GormBonusRepository) MarkPaid(id uint, now time.Time) (bool, error) {
	if id == 0 {
		return false, nil
	}
	result := r.db.Model(&models.ReferralBonus{}).
		Where("id = ? AND status = ?", id, constants.BonusStatusConfirmed).
		Updates(map[string]interface{}{
			"status":     constants.BonusStatusPaid,
			"paid_at":    now,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Revoke 撤销待确认或已确认的奖励（已发放奖励不可撤销，返回是否生效）
func (r *GormBonusRepository) Revoke(id uint, reason string, now time.Time) (bool, error) {
	if id == 0 {
		return false, nil
	}
	result := r.db.Model(&models.ReferralBonus{}).
		Where("id = ? AND status IN ?", id, []string{
			constants.BonusStatusPendingConfirmation,
			constants.BonusStatusConfirmed,
		}).
		Updates(map[string]interface{}{
			"status":        constants.BonusStatusRevoked,
			"revoke_reason": strings.TrimSpace(reason),
			"revoked_at":    now,
			"updated_at":    now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
