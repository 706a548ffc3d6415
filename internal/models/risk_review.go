package models

import "time"

// RiskReview 高风险事件人工复核记录
type RiskReview struct {
	ID                uint       `gorm:"primarykey" json:"id"`                                       // 主键
	MemberID          uint       `gorm:"not null;index" json:"member_id"`                            // 被评估推荐人会员ID
	ExternalPaymentID string     `gorm:"type:varchar(64);not null;index" json:"external_payment_id"` // 触发事件的支付ID
	Score             int        `gorm:"not null;default:0" json:"score"`                            // 风险评分
	Level             string     `gorm:"type:varchar(10);not null" json:"level"`                     // 风险等级
	TriggeredRules    string     `gorm:"type:varchar(512)" json:"triggered_rules"`                   // 命中的规则名（逗号分隔）
	Status            string     `gorm:"type:varchar(20);not null;index" json:"status"`              // 复核状态
	ReviewNote        string     `gorm:"type:varchar(512)" json:"review_note,omitempty"`             // 复核备注
	ReviewedAt        *time.Time `json:"reviewed_at,omitempty"`                                      // 复核时间
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`                                    // 创建时间
	UpdatedAt         time.Time  `gorm:"index" json:"updated_at"`                                    // 更新时间
}

// TableName 指定表名
func (RiskReview) TableName() string {
	return "risk_reviews"
}
