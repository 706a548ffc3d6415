package models

import "time"

// ParkedEvent 滞留事件（重试耗尽后等待人工处理）
type ParkedEvent struct {
	ID                uint       `gorm:"primarykey" json:"id"`                                       // 主键
	EventID           string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"event_id"`      // 滞留事件ID
	Kind              string     `gorm:"type:varchar(20);not null;index" json:"kind"`                // 事件类型（payment/refund）
	ExternalPaymentID string     `gorm:"type:varchar(64);not null;index" json:"external_payment_id"` // 外部支付事件ID
	Payload           string     `gorm:"type:text" json:"payload"`                                   // 原始事件 JSON
	Attempts          int        `gorm:"not null;default:0" json:"attempts"`                         // 已重试次数
	LastError         string     `gorm:"type:varchar(1024)" json:"last_error"`                       // 最后一次失败原因
	Status            string     `gorm:"type:varchar(20);not null;index" json:"status"`              // 滞留状态
	ReprocessedAt     *time.Time `json:"reprocessed_at,omitempty"`                                   // 重新处理时间
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`                                    // 创建时间
	UpdatedAt         time.Time  `gorm:"index" json:"updated_at"`                                    // 更新时间
}

// TableName 指定表名
func (ParkedEvent) TableName() string {
	return "parked_events"
}
