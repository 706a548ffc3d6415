package cache

import (
	"context"
	"fmt"
	"time"
)

// RiskState 风险评分快照
// 按评估输入参数哈希缓存，短 TTL 内重复评估直接命中
// 该结构仅用于服务端 Redis 缓存
type RiskState struct {
	MemberID       uint     `json:"member_id"`
	Score          int      `json:"score"`
	Level          string   `json:"level"`
	TriggeredRules []string `json:"triggered_rules"`
	EvaluatedAt    int64    `json:"evaluated_at"`
}

func riskStateKey(memberID uint, inputHash string) string {
	return fmt.Sprintf("risk:member:%d:%s", memberID, inputHash)
}

// GetRiskState 获取风险评分快照
func GetRiskState(ctx context.Context, memberID uint, inputHash string) (*RiskState, bool, error) {
	if memberID == 0 || inputHash == "" {
		return nil, false, nil
	}
	var state RiskState
	hit, err := GetJSON(ctx, riskStateKey(memberID, inputHash), &state)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &state, true, nil
}

// SetRiskState 写入风险评分快照
func SetRiskState(ctx context.Context, inputHash string, state *RiskState, ttl time.Duration) error {
	if state == nil || state.MemberID == 0 || inputHash == "" {
		return nil
	}
	return SetJSON(ctx, riskStateKey(state.MemberID, inputHash), state, ttl)
}

// DelRiskState 删除风险评分快照
func DelRiskState(ctx context.Context, memberID uint, inputHash string) error {
	if memberID == 0 || inputHash == "" {
		return nil
	}
	return Del(ctx, riskStateKey(memberID, inputHash))
}
