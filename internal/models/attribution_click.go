package models

import "time"

// AttributionClick 推广点击记录（归因窗口内有效）
type AttributionClick struct {
	ID                 uint       `gorm:"primarykey" json:"id"`                                       // 主键
	MemberID           uint       `gorm:"not null;index" json:"member_id"`                            // 推荐人会员ID
	ReferralCode       string     `gorm:"type:varchar(32);not null;index" json:"referral_code"`       // 点击携带的推荐码
	VisitorKey         string     `gorm:"type:varchar(128);index" json:"visitor_key"`                 // 访客标识
	LandingPath        string     `gorm:"type:varchar(512)" json:"landing_path"`                      // 落地页面路径
	Referrer           string     `gorm:"type:varchar(1024)" json:"referrer"`                         // 来源地址
	ClientIP           string     `gorm:"type:varchar(64)" json:"client_ip"`                          // 客户端IP
	UserAgent          string     `gorm:"type:varchar(1024)" json:"user_agent"`                       // 客户端UA
	ExpiresAt          time.Time  `gorm:"not null;index" json:"expires_at"`                           // 归因窗口到期时间
	Converted          bool       `gorm:"not null;default:false;index" json:"converted"`              // 是否已转化
	ConvertedAt        *time.Time `json:"converted_at,omitempty"`                                     // 转化时间
	ConvertedPaymentID string     `gorm:"type:varchar(64)" json:"converted_payment_id,omitempty"`     // 转化对应的支付事件ID
	CreatedAt          time.Time  `gorm:"index;not null;default:CURRENT_TIMESTAMP" json:"created_at"` // 创建时间

	Member Member `gorm:"foreignKey:MemberID" json:"member,omitempty"` // 推荐人
}

// TableName 指定表名
func (AttributionClick) TableName() string {
	return "attribution_clicks"
}
