package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Int64Array 整型数组类型，用于存储奖励档位阈值
type Int64Array []int64

// Value 实现 driver.Valuer 接口
func (a Int64Array) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan 实现 sql.Scanner 接口
func (a *Int64Array) Scan(value interface{}) error {
	if value == nil {
		*a = Int64Array{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return nil
	}
}

// Creator 创作者（分账主体）
type Creator struct {
	ID                   uint           `gorm:"primarykey" json:"id"`                                         // 主键
	Name                 string         `gorm:"type:varchar(128);not null" json:"name"`                       // 名称
	Slug                 string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"slug"`            // 短标识
	MemberRate           Money          `gorm:"type:decimal(10,4);not null;default:0" json:"member_rate"`     // 推荐人分成比例
	CreatorRate          Money          `gorm:"type:decimal(10,4);not null;default:0" json:"creator_rate"`    // 创作者分成比例
	PlatformRate         Money          `gorm:"type:decimal(10,4);not null;default:0" json:"platform_rate"`   // 平台分成比例
	RewardTierThresholds Int64Array     `gorm:"type:json" json:"reward_tier_thresholds"`                      // 奖励档位阈值（推荐人数）
	TotalRevenue         Money          `gorm:"type:decimal(20,4);not null;default:0" json:"total_revenue"`   // 累计入账金额（缓存计数）
	MonthlyRevenue       Money          `gorm:"type:decimal(20,4);not null;default:0" json:"monthly_revenue"` // 当月入账金额（缓存计数）
	MemberCount          int64          `gorm:"not null;default:0" json:"member_count"`                       // 会员数量（缓存计数）
	StatsMonth           string         `gorm:"type:varchar(7);not null;default:''" json:"stats_month"`       // 月度计数归属月份
	Status               string         `gorm:"type:varchar(20);not null;index" json:"status"`                // 状态
	CreatedAt            time.Time      `gorm:"index" json:"created_at"`                                      // 创建时间
	UpdatedAt            time.Time      `gorm:"index" json:"updated_at"`                                      // 更新时间
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`                                               // 软删除时间
}

// TableName 指定表名
func (Creator) TableName() string {
	return "creators"
}
