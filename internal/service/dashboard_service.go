package service

import (
	"time"

	"github.com/refledger/internal/repository"
)

const (
	// defaultOverviewRangeDays 总览统计默认时间范围
	defaultOverviewRangeDays = 30
	// maxOverviewRangeDays 总览统计最大时间范围
	maxOverviewRangeDays = 365
)

// DashboardService 运营总览服务（只读聚合，供运维面板使用）
type DashboardService struct {
	dashboardRepo repository.DashboardRepository
}

// NewDashboardService 创建运营总览服务
func NewDashboardService(dashboardRepo repository.DashboardRepository) *DashboardService {
	return &DashboardService{dashboardRepo: dashboardRepo}
}

// OverviewOutput 运营总览输出
type OverviewOutput struct {
	RangeDays           int     `json:"range_days"`
	CommissionsTotal    int64   `json:"commissions_total"`
	CommissionsRefunded int64   `json:"commissions_refunded"`
	GrossVolume         float64 `json:"gross_volume"`
	MemberShareVolume   float64 `json:"member_share_volume"`
	NewMembers          int64   `json:"new_members"`
	ActiveCreators      int64   `json:"active_creators"`
	OpenReviews         int64   `json:"open_reviews"`
	ParkedEvents        int64   `json:"parked_events"`
	PendingBonuses      int64   `json:"pending_bonuses"`
	QuarantinedMembers  int64   `json:"quarantined_members"`
}

// GetOverview 获取账本总览统计
func (s *DashboardService) GetOverview(rangeDays int) (*OverviewOutput, error) {
	rangeDays = normalizeRangeDays(rangeDays)
	startAt, endAt := rangeWindow(rangeDays)
	row, err := s.dashboardRepo.GetOverview(startAt, endAt)
	if err != nil {
		return nil, err
	}
	return &OverviewOutput{
		RangeDays:           rangeDays,
		CommissionsTotal:    row.CommissionsTotal,
		CommissionsRefunded: row.CommissionsRefunded,
		GrossVolume:         row.GrossVolume,
		MemberShareVolume:   row.MemberShareVolume,
		NewMembers:          row.NewMembers,
		ActiveCreators:      row.ActiveCreators,
		OpenReviews:         row.OpenReviews,
		ParkedEvents:        row.ParkedEvents,
		PendingBonuses:      row.PendingBonuses,
		QuarantinedMembers:  row.QuarantinedMembers,
	}, nil
}

// GetTrends 获取按天的入账与退款趋势
func (s *DashboardService) GetTrends(rangeDays int) ([]repository.CommissionTrendRow, error) {
	startAt, endAt := rangeWindow(normalizeRangeDays(rangeDays))
	return s.dashboardRepo.GetCommissionTrends(startAt, endAt)
}

// GetTopCreators 获取创作者成交额排行
func (s *DashboardService) GetTopCreators(rangeDays, limit int) ([]repository.CreatorVolumeRow, error) {
	startAt, endAt := rangeWindow(normalizeRangeDays(rangeDays))
	return s.dashboardRepo.GetTopCreators(startAt, endAt, limit)
}

func normalizeRangeDays(rangeDays int) int {
	if rangeDays <= 0 {
		return defaultOverviewRangeDays
	}
	if rangeDays > maxOverviewRangeDays {
		return maxOverviewRangeDays
	}
	return rangeDays
}

func rangeWindow(rangeDays int) (time.Time, time.Time) {
	endAt := time.Now()
	return endAt.AddDate(0, 0, -rangeDays), endAt
}
