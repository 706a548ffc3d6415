package queue

import (
	"encoding/json"

	"github.com/refledger/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskRefundRetry 退款事件重试任务
	TaskRefundRetry = constants.TaskRefundRetry
	// TaskRankRefresh 榜单快照刷新任务
	TaskRankRefresh = constants.TaskRankRefresh
	// TaskReconcileRun 计数器对账任务
	TaskReconcileRun = constants.TaskReconcileRun
	// TaskEventReprocess 搁置事件重放任务
	TaskEventReprocess = constants.TaskEventReprocess
)

// RefundRetryPayload 退款重试任务载荷
type RefundRetryPayload struct {
	ExternalPaymentID string `json:"external_payment_id"`
	Reason            string `json:"reason"`
	Attempt           int    `json:"attempt"`
}

// RankRefreshPayload 榜单刷新任务载荷
type RankRefreshPayload struct {
	Scope     string `json:"scope"`
	CreatorID uint   `json:"creator_id"`
}

// ReconcileRunPayload 对账任务载荷（MemberID 为 0 时对账全量）
type ReconcileRunPayload struct {
	MemberID uint `json:"member_id"`
}

// EventReprocessPayload 搁置事件重放任务载荷
type EventReprocessPayload struct {
	ParkedEventID uint `json:"parked_event_id"`
}

// NewRefundRetryTask 创建退款重试任务
func NewRefundRetryTask(payload RefundRetryPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRefundRetry, body), nil
}

// NewRankRefreshTask 创建榜单刷新任务
func NewRankRefreshTask(payload RankRefreshPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRankRefresh, body), nil
}

// NewReconcileRunTask 创建对账任务
func NewReconcileRunTask(payload ReconcileRunPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReconcileRun, body), nil
}

// NewEventReprocessTask 创建搁置事件重放任务
func NewEventReprocessTask(payload EventReprocessPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEventReprocess, body), nil
}
