package models

import (
	"time"

	"gorm.io/gorm"
)

// ReferralBonus 首次推荐奖励（每个会员至多一条）
type ReferralBonus struct {
	ID           uint           `gorm:"primarykey" json:"id"`                                                 // 主键
	MemberID     uint           `gorm:"not null;uniqueIndex" json:"member_id"`                                // 获奖会员ID
	CommissionID uint           `gorm:"not null;index" json:"commission_id"`                                  // 触发奖励的佣金记录ID
	Amount       Money          `gorm:"type:decimal(20,4);not null;default:0" json:"amount"`                  // 奖励金额
	BonusType    string         `gorm:"type:varchar(32);not null;default:'first_referral'" json:"bonus_type"` // 奖励类型
	Status       string         `gorm:"type:varchar(32);not null;index" json:"status"`                        // 奖励状态
	EligibleAt   time.Time      `gorm:"not null" json:"eligible_at"`                                          // 达成条件时间
	ConfirmAt    time.Time      `gorm:"not null;index" json:"confirm_at"`                                     // 保留期到期时间
	ConfirmedAt  *time.Time     `json:"confirmed_at,omitempty"`                                               // 确认时间
	PaidAt       *time.Time     `json:"paid_at,omitempty"`                                                    // 发放时间
	RevokedAt    *time.Time     `json:"revoked_at,omitempty"`                                                 // 撤销时间
	RevokeReason string         `gorm:"type:varchar(255)" json:"revoke_reason,omitempty"`                     // 撤销原因
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`                                              // 创建时间
	UpdatedAt    time.Time      `gorm:"index" json:"updated_at"`                                              // 更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                                                       // 软删除时间

	Member     Member     `gorm:"foreignKey:MemberID" json:"member,omitempty"`         // 获奖会员
	Commission Commission `gorm:"foreignKey:CommissionID" json:"commission,omitempty"` // 触发佣金
}

// TableName 指定表名
func (ReferralBonus) TableName() string {
	return "referral_bonuses"
}
