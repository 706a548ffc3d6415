package models

import "time"

// RankSnapshot 排行榜快照行（定时刷新，读路径兜底）
type RankSnapshot struct {
	ID          uint      `gorm:"primarykey" json:"id"`                                                         // 主键
	Scope       string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_rank_snapshot_unique" json:"scope"`  // 榜单范围（global/creator）
	CreatorID   uint      `gorm:"not null;default:0;uniqueIndex:idx_rank_snapshot_unique" json:"creator_id"`    // 创作者ID（全局榜为 0）
	Metric      string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_rank_snapshot_unique" json:"metric"` // 排名指标
	MemberID    uint      `gorm:"not null;index;uniqueIndex:idx_rank_snapshot_unique" json:"member_id"`         // 会员ID
	MetricValue Money     `gorm:"type:decimal(20,4);not null;default:0" json:"metric_value"`                    // 指标值
	Rank        int64     `gorm:"not null" json:"rank"`                                                         // 竞争排名（并列同名次）
	ComputedAt  time.Time `gorm:"not null;index" json:"computed_at"`                                            // 快照计算时间
	CreatedAt   time.Time `json:"created_at"`                                                                   // 创建时间
	UpdatedAt   time.Time `json:"updated_at"`                                                                   // 更新时间
}

// TableName 指定表名
func (RankSnapshot) TableName() string {
	return "rank_snapshots"
}
