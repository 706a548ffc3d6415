package models

import (
	"time"

	"gorm.io/gorm"
)

// Commission 佣金分账记录（每个外部支付事件至多一条）
type Commission struct {
	ID                uint           `gorm:"primarykey" json:"id"`                                               // 主键
	ExternalPaymentID string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"external_payment_id"`   // 外部支付事件ID（幂等键）
	CreatorID         uint           `gorm:"not null;index" json:"creator_id"`                                   // 创作者ID
	MemberID          *uint          `gorm:"index" json:"member_id,omitempty"`                                   // 受益推荐人会员ID（空表示自然成交）
	BuyerMemberID     *uint          `gorm:"index" json:"buyer_member_id,omitempty"`                             // 买家会员ID（非会员买家为空）
	BuyerVisitorKey   string         `gorm:"type:varchar(128)" json:"-"`                                         // 买家设备指纹哈希
	SaleAmount        Money          `gorm:"type:decimal(20,4);not null;default:0" json:"sale_amount"`           // 成交金额
	MemberShare       Money          `gorm:"type:decimal(20,4);not null;default:0" json:"member_share"`          // 推荐人份额
	CreatorShare      Money          `gorm:"type:decimal(20,4);not null;default:0" json:"creator_share"`         // 创作者份额
	PlatformShare     Money          `gorm:"type:decimal(20,4);not null;default:0" json:"platform_share"`        // 平台份额（含凑整余数）
	PaymentType       string         `gorm:"type:varchar(20);not null;default:'initial'" json:"payment_type"`    // 支付类型（initial/recurring）
	Status            string         `gorm:"type:varchar(20);not null;index" json:"status"`                      // 佣金状态
	AttributionSource string         `gorm:"type:varchar(20);not null;default:'none'" json:"attribution_source"` // 归因来源
	RiskScore         int            `gorm:"not null;default:0" json:"risk_score"`                               // 风险评分
	RiskLevel         string         `gorm:"type:varchar(10);not null;default:'low'" json:"risk_level"`          // 风险等级
	TriggeredRules    string         `gorm:"type:varchar(512)" json:"triggered_rules,omitempty"`                 // 命中的风控规则名（逗号分隔）
	StatsMonth        string         `gorm:"type:varchar(7);not null;index" json:"stats_month"`                  // 入账月份
	RefundedAt        *time.Time     `gorm:"index" json:"refunded_at,omitempty"`                                 // 退款时间
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`                                            // 创建时间
	UpdatedAt         time.Time      `gorm:"index" json:"updated_at"`                                            // 更新时间
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`                                                     // 软删除时间

	Creator Creator `gorm:"foreignKey:CreatorID" json:"creator,omitempty"` // 创作者
	Member  *Member `gorm:"foreignKey:MemberID" json:"member,omitempty"`   // 受益推荐人
}

// TableName 指定表名
func (Commission) TableName() string {
	return "commissions"
}
