package service

import (
	"context"
	"time"

	"github.com/refledger/internal/config"
	"github.com/refledger/internal/constants"
	"github.com/refledger/internal/logger"
	"github.com/refledger/internal/monitoring"
	"github.com/refledger/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	// defaultReconcileBatchSize 全量对账默认批大小
	defaultReconcileBatchSize = 200

	reconcileFieldLifetimeEarnings  = "lifetime_earnings"
	reconcileFieldMonthlyEarnings   = "monthly_earnings"
	reconcileFieldLifetimeReferrals = "lifetime_referrals"
	reconcileFieldMonthlyReferrals  = "monthly_referrals"
	reconcileFieldTotalRevenue      = "total_revenue"
	reconcileFieldMonthlyRevenue    = "monthly_revenue"
	reconcileFieldMemberCount       = "member_count"
)

// ReconcileService 计数器对账服务
// 缓存计数始终可由佣金原始记录重算核对，对账发现漂移即在事务内覆盖修正。
type ReconcileService struct {
	commissionRepo repository.CommissionRepository
	memberRepo     repository.MemberRepository
	creatorRepo    repository.CreatorRepository
	cfg            config.ReconcileConfig
}

// NewReconcileService 创建对账服务
func NewReconcileService(commissionRepo repository.CommissionRepository, memberRepo repository.MemberRepository, creatorRepo repository.CreatorRepository, cfg config.ReconcileConfig) *ReconcileService {
	return &ReconcileService{
		commissionRepo: commissionRepo,
		memberRepo:     memberRepo,
		creatorRepo:    creatorRepo,
		cfg:            cfg,
	}
}

// MemberReconcileResult 单会员对账结果
type MemberReconcileResult struct {
	MemberID    uint     `json:"member_id"`
	DriftFields []string `json:"drift_fields,omitempty"`
	Quarantined bool     `json:"quarantined,omitempty"`
}

// ReconcileSummary 全量对账汇总
type ReconcileSummary struct {
	MembersChecked  int `json:"members_checked"`
	MembersDrifted  int `json:"members_drifted"`
	Quarantined     int `json:"quarantined"`
	CreatorsChecked int `json:"creators_checked"`
	CreatorsDrifted int `json:"creators_drifted"`
}

// ReconcileMember 核对并修正单个会员的缓存计数
// 月度大于累计属于不可能状态：先隔离会员（退出排行），再按重算结果覆盖修正；
// 隔离状态保留到人工恢复，修正计数不自动解除。
func (s *ReconcileService) ReconcileMember(memberID uint) (*MemberReconcileResult, error) {
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrNotFound
	}
	now := time.Now()
	month := now.Format(constants.StatsMonthLayout)
	result := &MemberReconcileResult{MemberID: member.ID}

	cachedMonthlyEarnings := decimal.Zero
	cachedMonthlyReferrals := int64(0)
	if member.StatsMonth == month {
		cachedMonthlyEarnings = member.MonthlyEarnings.Decimal
		cachedMonthlyReferrals = member.MonthlyReferrals
	}
	if cachedMonthlyEarnings.GreaterThan(member.LifetimeEarnings.Decimal) || cachedMonthlyReferrals > member.LifetimeReferrals {
		monitoring.InvariantViolationsTotal.Inc()
		logger.Errorw("reconcile_invariant_violation",
			"member_id", member.ID,
			"monthly_earnings", cachedMonthlyEarnings.String(),
			"lifetime_earnings", member.LifetimeEarnings.String(),
			"monthly_referrals", cachedMonthlyReferrals,
			"lifetime_referrals", member.LifetimeReferrals)
		if member.Status == constants.MemberStatusActive {
			if err := s.memberRepo.UpdateStatus(member.ID, constants.MemberStatusQuarantined, now); err != nil {
				return nil, err
			}
			result.Quarantined = true
		}
	}

	stats, err := s.commissionRepo.RecomputeMemberStats(member.ID, month)
	if err != nil {
		return nil, err
	}

	drifted := make([]string, 0, 4)
	if !stats.LifetimeEarnings.Equal(member.LifetimeEarnings.Decimal) {
		drifted = append(drifted, reconcileFieldLifetimeEarnings)
	}
	if !stats.MonthlyEarnings.Equal(cachedMonthlyEarnings) {
		drifted = append(drifted, reconcileFieldMonthlyEarnings)
	}
	if stats.LifetimeReferrals != member.LifetimeReferrals {
		drifted = append(drifted, reconcileFieldLifetimeReferrals)
	}
	if stats.MonthlyReferrals != cachedMonthlyReferrals {
		drifted = append(drifted, reconcileFieldMonthlyReferrals)
	}
	if len(drifted) == 0 {
		return result, nil
	}

	err = s.memberRepo.Transaction(func(tx *gorm.DB) error {
		return s.memberRepo.WithTx(tx).OverwriteCounters(member.ID, stats, month, now)
	})
	if err != nil {
		return nil, err
	}
	for _, field := range drifted {
		monitoring.CounterDriftTotal.WithLabelValues(field).Inc()
	}
	logger.Warnw("reconcile_counter_drift",
		"member_id", member.ID,
		"fields", drifted,
		"lifetime_earnings", stats.LifetimeEarnings.String(),
		"monthly_earnings", stats.MonthlyEarnings.String(),
		"lifetime_referrals", stats.LifetimeReferrals,
		"monthly_referrals", stats.MonthlyReferrals)
	result.DriftFields = drifted
	return result, nil
}

// ReconcileCreator 核对并修正单个创作者的缓存计数
func (s *ReconcileService) ReconcileCreator(creatorID uint) ([]string, error) {
	creator, err := s.creatorRepo.GetByID(creatorID)
	if err != nil {
		return nil, err
	}
	if creator == nil {
		return nil, ErrNotFound
	}
	now := time.Now()
	month := now.Format(constants.StatsMonthLayout)

	stats, err := s.commissionRepo.RecomputeCreatorRevenue(creator.ID, month)
	if err != nil {
		return nil, err
	}
	memberCount, err := s.memberRepo.CountByCreator(creator.ID)
	if err != nil {
		return nil, err
	}
	stats.MemberCount = memberCount

	cachedMonthlyRevenue := decimal.Zero
	if creator.StatsMonth == month {
		cachedMonthlyRevenue = creator.MonthlyRevenue.Decimal
	}
	drifted := make([]string, 0, 3)
	if !stats.TotalRevenue.Equal(creator.TotalRevenue.Decimal) {
		drifted = append(drifted, reconcileFieldTotalRevenue)
	}
	if !stats.MonthlyRevenue.Equal(cachedMonthlyRevenue) {
		drifted = append(drifted, reconcileFieldMonthlyRevenue)
	}
	if stats.MemberCount != creator.MemberCount {
		drifted = append(drifted, reconcileFieldMemberCount)
	}
	if len(drifted) == 0 {
		return nil, nil
	}

	err = s.creatorRepo.Transaction(func(tx *gorm.DB) error {
		return s.creatorRepo.WithTx(tx).OverwriteCounters(creator.ID, stats, month, now)
	})
	if err != nil {
		return nil, err
	}
	for _, field := range drifted {
		monitoring.CounterDriftTotal.WithLabelValues(field).Inc()
	}
	logger.Warnw("reconcile_counter_drift",
		"creator_id", creator.ID,
		"fields", drifted,
		"total_revenue", stats.TotalRevenue.String(),
		"monthly_revenue", stats.MonthlyRevenue.String(),
		"member_count", stats.MemberCount)
	return drifted, nil
}

// ReconcileAll 分批核对全部会员与创作者
func (s *ReconcileService) ReconcileAll(ctx context.Context) (ReconcileSummary, error) {
	summary := ReconcileSummary{}
	batchSize := s.batchSize()
	afterID := uint(0)
	startedAt := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		ids, err := s.memberRepo.ListIDs(afterID, batchSize)
		if err != nil {
			return summary, err
		}
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			result, err := s.ReconcileMember(id)
			if err != nil {
				logger.Warnw("reconcile_member_failed", "member_id", id, "error", err)
				continue
			}
			summary.MembersChecked++
			if len(result.DriftFields) > 0 {
				summary.MembersDrifted++
			}
			if result.Quarantined {
				summary.Quarantined++
			}
		}
		afterID = ids[len(ids)-1]
		if len(ids) < batchSize {
			break
		}
	}

	creatorIDs, err := s.creatorRepo.ListActiveIDs()
	if err != nil {
		return summary, err
	}
	for _, id := range creatorIDs {
		drifted, err := s.ReconcileCreator(id)
		if err != nil {
			logger.Warnw("reconcile_creator_failed", "creator_id", id, "error", err)
			continue
		}
		summary.CreatorsChecked++
		if len(drifted) > 0 {
			summary.CreatorsDrifted++
		}
	}

	logger.Infow("reconcile_run_finished",
		"members_checked", summary.MembersChecked,
		"members_drifted", summary.MembersDrifted,
		"quarantined", summary.Quarantined,
		"creators_checked", summary.CreatorsChecked,
		"creators_drifted", summary.CreatorsDrifted,
		"elapsed_ms", time.Since(startedAt).Milliseconds())
	return summary, nil
}

// ReleaseMember 人工恢复被隔离的会员
func (s *ReconcileService) ReleaseMember(memberID uint) error {
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrNotFound
	}
	if member.Status != constants.MemberStatusQuarantined {
		return ErrMemberStatusInvalid
	}
	if err := s.memberRepo.UpdateStatus(member.ID, constants.MemberStatusActive, time.Now()); err != nil {
		return err
	}
	logger.Infow("reconcile_member_released", "member_id", member.ID)
	return nil
}

func (s *ReconcileService) batchSize() int {
	if s.cfg.BatchSize > 0 {
		return s.cfg.BatchSize
	}
	return defaultReconcileBatchSize
}
