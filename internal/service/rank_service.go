package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/refledger/internal/cache"
	"github.com/refledger/internal/config"
	"github.com/refledger/internal/constants"
	"github.com/refledger/internal/logger"
	"github.com/refledger/internal/models"
	"github.com/refledger/internal/monitoring"
	"github.com/refledger/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	defaultLeaderboardLimit    = 10
	defaultLeaderboardMaxLimit = 100
	defaultLeaderboardCacheTTL = 60 * time.Second
)

// RankService 排行榜聚合服务
// 读路径依次尝试 Redis 缓存、快照表，全部失效时回退最近一次成功结果
type RankService struct {
	memberRepo   repository.MemberRepository
	creatorRepo  repository.CreatorRepository
	snapshotRepo repository.RankSnapshotRepository
	cfg          config.LeaderboardConfig

	mu       sync.RWMutex
	lastGood map[string]Leaderboard
}

// NewRankService 创建排行榜服务
func NewRankService(
	memberRepo repository.MemberRepository,
	creatorRepo repository.CreatorRepository,
	snapshotRepo repository.RankSnapshotRepository,
	cfg config.LeaderboardConfig,
) *RankService {
	return &RankService{
		memberRepo:   memberRepo,
		creatorRepo:  creatorRepo,
		snapshotRepo: snapshotRepo,
		cfg:          cfg,
		lastGood:     make(map[string]Leaderboard),
	}
}

// LeaderboardEntry 榜单条目
type LeaderboardEntry struct {
	Rank        int64        `json:"rank"`
	MemberID    uint         `json:"member_id"`
	DisplayName string       `json:"display_name"`
	MetricValue models.Money `json:"metric_value"`
}

// Leaderboard 榜单响应
type Leaderboard struct {
	Scope      string             `json:"scope"`
	CreatorID  uint               `json:"creator_id,omitempty"`
	Metric     string             `json:"metric"`
	Entries    []LeaderboardEntry `json:"entries"`
	ComputedAt time.Time          `json:"computed_at"`
	Degraded   bool               `json:"degraded,omitempty"`
}

// rankMetrics 支持的排名指标
func rankMetrics() []string {
	return []string{
		constants.RankMetricLifetimeEarnings,
		constants.RankMetricMonthlyEarnings,
		constants.RankMetricTotalReferrals,
	}
}

// ValidateScopeMetric 校验榜单范围与指标参数
func ValidateScopeMetric(scope string, creatorID uint, metric string) error {
	switch scope {
	case constants.RankScopeGlobal:
	case constants.RankScopeCreator:
		if creatorID == 0 {
			return ErrRankScopeInvalid
		}
	default:
		return ErrRankScopeInvalid
	}
	switch metric {
	case constants.RankMetricLifetimeEarnings, constants.RankMetricMonthlyEarnings, constants.RankMetricTotalReferrals:
		return nil
	default:
		return ErrRankMetricInvalid
	}
}

// computeCompetitiveRanks 竞争排名：并列共享名次，下一个不同值跳到位置序号
// 输入行必须已按指标降序预排序。
func computeCompetitiveRanks(rows []repository.RankedMemberRow) []int64 {
	ranks := make([]int64, len(rows))
	for i := range rows {
		if i > 0 && rows[i].MetricValue.Equal(rows[i-1].MetricValue) {
			ranks[i] = ranks[i-1]
			continue
		}
		ranks[i] = int64(i + 1)
	}
	return ranks
}

// RefreshSnapshots 重建全部榜单快照
// 每个范围×指标组合独立刷新，单个组合失败只记日志，不阻断其余组合。
func (s *RankService) RefreshSnapshots(ctx context.Context) error {
	if s.memberRepo == nil || s.creatorRepo == nil || s.snapshotRepo == nil {
		return nil
	}
	computedAt := time.Now()
	failures := 0

	for _, metric := range rankMetrics() {
		if err := s.refreshCombination(ctx, constants.RankScopeGlobal, 0, metric, computedAt); err != nil {
			failures++
			logger.Warnw("rank_snapshot_refresh_failed",
				"scope", constants.RankScopeGlobal,
				"metric", metric,
				"error", err)
		}
	}

	creatorIDs, err := s.creatorRepo.ListActiveIDs()
	if err != nil {
		monitoring.SnapshotRefreshTotal.WithLabelValues("failed").Inc()
		return err
	}
	for _, creatorID := range creatorIDs {
		for _, metric := range rankMetrics() {
			if err := s.refreshCombination(ctx, constants.RankScopeCreator, creatorID, metric, computedAt); err != nil {
				failures++
				logger.Warnw("rank_snapshot_refresh_failed",
					"scope", constants.RankScopeCreator,
					"creator_id", creatorID,
					"metric", metric,
					"error", err)
			}
		}
	}

	if failures > 0 {
		monitoring.SnapshotRefreshTotal.WithLabelValues("partial").Inc()
	} else {
		monitoring.SnapshotRefreshTotal.WithLabelValues("ok").Inc()
	}
	logger.Infow("rank_snapshot_refreshed",
		"creators", len(creatorIDs),
		"failures", failures,
		"elapsed_ms", time.Since(computedAt).Milliseconds())
	return nil
}

// RefreshCreatorSnapshots 定向刷新单个创作者的榜单快照（全站榜同受入账影响，一并刷新）
func (s *RankService) RefreshCreatorSnapshots(ctx context.Context, creatorID uint) error {
	if s.memberRepo == nil || s.snapshotRepo == nil {
		return nil
	}
	computedAt := time.Now()
	var firstErr error
	for _, metric := range rankMetrics() {
		if err := s.refreshCombination(ctx, constants.RankScopeGlobal, 0, metric, computedAt); err != nil && firstErr == nil {
			firstErr = err
		}
		if creatorID == 0 {
			continue
		}
		if err := s.refreshCombination(ctx, constants.RankScopeCreator, creatorID, metric, computedAt); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// refreshCombination 刷新单个范围×指标组合的快照与缓存
func (s *RankService) refreshCombination(ctx context.Context, scope string, creatorID uint, metric string, computedAt time.Time) error {
	rows, err := s.memberRepo.ListRankedByMetric(scope, creatorID, metric, s.maxLimit())
	if err != nil {
		return err
	}
	ranks := computeCompetitiveRanks(rows)

	snapshots := make([]models.RankSnapshot, 0, len(rows))
	for i, row := range rows {
		snapshots = append(snapshots, models.RankSnapshot{
			Scope:       scope,
			CreatorID:   creatorID,
			Metric:      metric,
			MemberID:    row.MemberID,
			MetricValue: models.NewMoneyFromDecimal(row.MetricValue),
			Rank:        ranks[i],
			ComputedAt:  computedAt,
		})
	}
	if err := s.snapshotRepo.UpsertBatch(snapshots); err != nil {
		return err
	}
	if _, err := s.snapshotRepo.PruneStale(scope, creatorID, metric, computedAt); err != nil {
		logger.Warnw("rank_snapshot_prune_failed",
			"scope", scope,
			"creator_id", creatorID,
			"metric", metric,
			"error", err)
	}

	board, err := s.buildBoard(scope, creatorID, metric, snapshots, computedAt)
	if err != nil {
		return err
	}
	s.storeBoard(ctx, board)
	return nil
}

// GetLeaderboard 读取榜单
// 依次尝试 Redis 缓存、快照表；存储不可用时回退最近一次成功结果并打降级标记。
func (s *RankService) GetLeaderboard(ctx context.Context, scope string, creatorID uint, metric string, limit int) (Leaderboard, error) {
	if scope == constants.RankScopeGlobal {
		creatorID = 0
	}
	if err := ValidateScopeMetric(scope, creatorID, metric); err != nil {
		return Leaderboard{}, err
	}
	limit = s.normalizeLimit(limit)

	if state, hit, err := cache.GetLeaderboardState(ctx, scope, creatorID, metric); err != nil {
		logger.Debugw("leaderboard_cache_read_failed", "scope", scope, "metric", metric, "error", err)
	} else if hit && state != nil {
		return trimBoard(boardFromCacheState(state), limit), nil
	}

	rows, err := s.snapshotRepo.ListTop(scope, creatorID, metric, s.maxLimit())
	if err == nil {
		board, buildErr := s.buildBoard(scope, creatorID, metric, rows, snapshotComputedAt(rows))
		if buildErr == nil {
			s.storeBoard(ctx, board)
			return trimBoard(board, limit), nil
		}
		err = buildErr
	}
	logger.Warnw("leaderboard_store_read_failed",
		"scope", scope,
		"creator_id", creatorID,
		"metric", metric,
		"error", err)

	s.mu.RLock()
	board, ok := s.lastGood[boardKey(scope, creatorID, metric)]
	s.mu.RUnlock()
	if !ok {
		return Leaderboard{}, ErrLeaderboardUnavailable
	}
	board.Degraded = true
	return trimBoard(board, limit), nil
}

// SnapshotRank 查询会员的快照名次（无快照行时返回 0）
func (s *RankService) SnapshotRank(scope string, creatorID uint, metric string, memberID uint) (int64, error) {
	if scope == constants.RankScopeGlobal {
		creatorID = 0
	}
	if err := ValidateScopeMetric(scope, creatorID, metric); err != nil {
		return 0, err
	}
	row, err := s.snapshotRepo.GetMemberRank(scope, creatorID, metric, memberID)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return 0, nil
	}
	return row.Rank, nil
}

// RealtimeRank 实时计算会员名次：指标严格更高的会员数 + 1
// 非启用会员不参与排名，返回 0。
func (s *RankService) RealtimeRank(member *models.Member, scope, metric string) (int64, error) {
	if member == nil {
		return 0, ErrNotFound
	}
	creatorID := uint(0)
	if scope == constants.RankScopeCreator {
		creatorID = member.CreatorID
	}
	if err := ValidateScopeMetric(scope, creatorID, metric); err != nil {
		return 0, err
	}
	if member.Status != constants.MemberStatusActive {
		return 0, nil
	}
	ahead, err := s.memberRepo.CountRankedAhead(scope, creatorID, metric, memberMetricValue(member, metric))
	if err != nil {
		return 0, err
	}
	return ahead + 1, nil
}

// InvalidateBoards 佣金入账后失效受影响的榜单缓存
func (s *RankService) InvalidateBoards(ctx context.Context, creatorID uint) {
	for _, metric := range rankMetrics() {
		if err := cache.DelLeaderboardState(ctx, constants.RankScopeGlobal, 0, metric); err != nil {
			logger.Debugw("leaderboard_cache_invalidate_failed", "scope", constants.RankScopeGlobal, "metric", metric, "error", err)
		}
		if creatorID > 0 {
			if err := cache.DelLeaderboardState(ctx, constants.RankScopeCreator, creatorID, metric); err != nil {
				logger.Debugw("leaderboard_cache_invalidate_failed", "scope", constants.RankScopeCreator, "metric", metric, "error", err)
			}
		}
	}
}

// buildBoard 由快照行组装榜单（批量补齐会员展示名）
func (s *RankService) buildBoard(scope string, creatorID uint, metric string, rows []models.RankSnapshot, computedAt time.Time) (Leaderboard, error) {
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.MemberID)
	}
	members, err := s.memberRepo.ListByIDs(ids)
	if err != nil {
		return Leaderboard{}, err
	}
	names := make(map[uint]string, len(members))
	for _, member := range members {
		names[member.ID] = member.DisplayName
	}

	entries := make([]LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, LeaderboardEntry{
			Rank:        row.Rank,
			MemberID:    row.MemberID,
			DisplayName: names[row.MemberID],
			MetricValue: row.MetricValue,
		})
	}
	return Leaderboard{
		Scope:      scope,
		CreatorID:  creatorID,
		Metric:     metric,
		Entries:    entries,
		ComputedAt: computedAt,
	}, nil
}

// storeBoard 更新 Redis 缓存与本地兜底副本
func (s *RankService) storeBoard(ctx context.Context, board Leaderboard) {
	s.mu.Lock()
	s.lastGood[boardKey(board.Scope, board.CreatorID, board.Metric)] = board
	s.mu.Unlock()

	state := &cache.LeaderboardState{
		Scope:      board.Scope,
		CreatorID:  board.CreatorID,
		Metric:     board.Metric,
		Entries:    make([]cache.LeaderboardEntry, 0, len(board.Entries)),
		ComputedAt: board.ComputedAt.Unix(),
	}
	for _, entry := range board.Entries {
		state.Entries = append(state.Entries, cache.LeaderboardEntry{
			Rank:        entry.Rank,
			MemberID:    entry.MemberID,
			DisplayName: entry.DisplayName,
			MetricValue: entry.MetricValue.String(),
		})
	}
	if err := cache.SetLeaderboardState(ctx, state, s.cacheTTL()); err != nil {
		logger.Debugw("leaderboard_cache_write_failed", "scope", board.Scope, "metric", board.Metric, "error", err)
	}
}

func (s *RankService) normalizeLimit(limit int) int {
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if ceiling := s.maxLimit(); limit > ceiling {
		limit = ceiling
	}
	return limit
}

func (s *RankService) maxLimit() int {
	if s.cfg.MaxLimit > 0 {
		return s.cfg.MaxLimit
	}
	return defaultLeaderboardMaxLimit
}

func (s *RankService) cacheTTL() time.Duration {
	if s.cfg.CacheTTLSeconds > 0 {
		return time.Duration(s.cfg.CacheTTLSeconds) * time.Second
	}
	return defaultLeaderboardCacheTTL
}

func boardKey(scope string, creatorID uint, metric string) string {
	return fmt.Sprintf("%s:%d:%s", scope, creatorID, metric)
}

func trimBoard(board Leaderboard, limit int) Leaderboard {
	if limit > 0 && len(board.Entries) > limit {
		board.Entries = board.Entries[:limit]
	}
	return board
}

func boardFromCacheState(state *cache.LeaderboardState) Leaderboard {
	entries := make([]LeaderboardEntry, 0, len(state.Entries))
	for _, entry := range state.Entries {
		value, err := decimal.NewFromString(entry.MetricValue)
		if err != nil {
			value = decimal.Zero
		}
		entries = append(entries, LeaderboardEntry{
			Rank:        entry.Rank,
			MemberID:    entry.MemberID,
			DisplayName: entry.DisplayName,
			MetricValue: models.NewMoneyFromDecimal(value),
		})
	}
	return Leaderboard{
		Scope:      state.Scope,
		CreatorID:  state.CreatorID,
		Metric:     state.Metric,
		Entries:    entries,
		ComputedAt: time.Unix(state.ComputedAt, 0),
	}
}

// snapshotComputedAt 取快照行的计算时间（空榜用当前时间）
func snapshotComputedAt(rows []models.RankSnapshot) time.Time {
	if len(rows) == 0 {
		return time.Now()
	}
	return rows[0].ComputedAt
}

// memberMetricValue 从会员缓存计数中取指标值
func memberMetricValue(member *models.Member, metric string) decimal.Decimal {
	switch metric {
	case constants.RankMetricLifetimeEarnings:
		return member.LifetimeEarnings.Decimal
	case constants.RankMetricMonthlyEarnings:
		return member.MonthlyEarnings.Decimal
	case constants.RankMetricTotalReferrals:
		return decimal.NewFromInt(member.LifetimeReferrals)
	default:
		return decimal.Zero
	}
}
