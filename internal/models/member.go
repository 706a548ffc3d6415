package models

import (
	"time"

	"gorm.io/gorm"
)

// Member 推广会员（推荐人与被推荐人共用此模型）
type Member struct {
	ID                uint           `gorm:"primarykey" json:"id"`                                            // 主键
	CreatorID         uint           `gorm:"not null;index" json:"creator_id"`                                // 所属创作者ID
	DisplayName       string         `gorm:"type:varchar(128);not null" json:"display_name"`                  // 展示名称
	Email             string         `gorm:"type:varchar(255);index" json:"email"`                            // 邮箱
	ReferralCode      string         `gorm:"type:varchar(32);not null;uniqueIndex" json:"referral_code"`      // 推荐码
	Origin            string         `gorm:"type:varchar(20);not null;default:'organic';index" json:"origin"` // 注册来源（organic/referred）
	ReferrerID        *uint          `gorm:"index" json:"referrer_id,omitempty"`                              // 推荐人会员ID
	VisitorKey        string         `gorm:"type:varchar(128);index" json:"-"`                                // 注册时的设备指纹哈希
	LifetimeEarnings  Money          `gorm:"type:decimal(20,4);not null;default:0" json:"lifetime_earnings"`  // 累计佣金（缓存计数）
	MonthlyEarnings   Money          `gorm:"type:decimal(20,4);not null;default:0" json:"monthly_earnings"`   // 当月佣金（缓存计数）
	LifetimeReferrals int64          `gorm:"not null;default:0" json:"lifetime_referrals"`                    // 累计推荐成单数（缓存计数）
	MonthlyReferrals  int64          `gorm:"not null;default:0" json:"monthly_referrals"`                     // 当月推荐成单数（缓存计数）
	StatsMonth        string         `gorm:"type:varchar(7);not null;default:''" json:"stats_month"`          // 月度计数归属月份
	Status            string         `gorm:"type:varchar(20);not null;index" json:"status"`                   // 状态
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`                                         // 创建时间（排名同分排序键）
	UpdatedAt         time.Time      `gorm:"index" json:"updated_at"`                                         // 更新时间
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`                                                  // 软删除时间

	Creator  Creator `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`   // 所属创作者
	Referrer *Member `gorm:"foreignKey:ReferrerID" json:"referrer,omitempty"` // 推荐人
}

// TableName 指定表名
func (Member) TableName() string {
	return "members"
}
