package cache

import (
	"context"
	"fmt"
	"time"
)

// LeaderboardEntry 榜单缓存条目
type LeaderboardEntry struct {
	Rank        int64  `json:"rank"`
	MemberID    uint   `json:"member_id"`
	DisplayName string `json:"display_name"`
	MetricValue string `json:"metric_value"`
}

// LeaderboardState 榜单缓存快照
type LeaderboardState struct {
	Scope      string             `json:"scope"`
	CreatorID  uint               `json:"creator_id"`
	Metric     string             `json:"metric"`
	Entries    []LeaderboardEntry `json:"entries"`
	ComputedAt int64              `json:"computed_at"`
}

func leaderboardKey(scope string, creatorID uint, metric string) string {
	return fmt.Sprintf("leaderboard:%s:%d:%s", scope, creatorID, metric)
}

// GetLeaderboardState 获取榜单缓存
func GetLeaderboardState(ctx context.Context, scope string, creatorID uint, metric string) (*LeaderboardState, bool, error) {
	if scope == "" || metric == "" {
		return nil, false, nil
	}
	var state LeaderboardState
	hit, err := GetJSON(ctx, leaderboardKey(scope, creatorID, metric), &state)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &state, true, nil
}

// SetLeaderboardState 写入榜单缓存
func SetLeaderboardState(ctx context.Context, state *LeaderboardState, ttl time.Duration) error {
	if state == nil || state.Scope == "" || state.Metric == "" {
		return nil
	}
	return SetJSON(ctx, leaderboardKey(state.Scope, state.CreatorID, state.Metric), state, ttl)
}

// DelLeaderboardState 删除榜单缓存（计数变更后失效）
func DelLeaderboardState(ctx context.Context, scope string, creatorID uint, metric string) error {
	if scope == "" || metric == "" {
		return nil
	}
	return Del(ctx, leaderboardKey(scope, creatorID, metric))
}
