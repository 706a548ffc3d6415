package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/refledger/internal/constants"
	"github.com/refledger/internal/logger"
	"github.com/refledger/internal/provider"
	"github.com/refledger/internal/queue"
	"github.com/refledger/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskRefundRetry, c.handleRefundRetry)
	mux.HandleFunc(queue.TaskRankRefresh, c.handleRankRefresh)
	mux.HandleFunc(queue.TaskReconcileRun, c.handleReconcileRun)
	mux.HandleFunc(queue.TaskEventReprocess, c.handleEventReprocess)
}

// handleRefundRetry 重试乱序到达的退款事件
// 佣金仍未入账时 ProcessRefundEvent 自行决定再次延迟或滞留，任务本身视为成功。
func (c *Consumer) handleRefundRetry(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.RefundRetryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_refund_retry_unmarshal_failed", "error", err)
		return err
	}
	if payload.ExternalPaymentID == "" {
		logger.Debugw("worker_refund_retry_skip_invalid_payload")
		return nil
	}

	result, err := c.ProcessorService.ProcessRefundEvent(ctx, service.RefundEventInput{
		ExternalPaymentID: payload.ExternalPaymentID,
		Reason:            payload.Reason,
		Attempt:           payload.Attempt,
	})
	if err != nil {
		logger.Warnw("worker_refund_retry_failed",
			"external_payment_id", payload.ExternalPaymentID,
			"attempt", payload.Attempt,
			"error", err)
		return err
	}
	logger.Infow("worker_refund_retry_done",
		"external_payment_id", payload.ExternalPaymentID,
		"attempt", payload.Attempt,
		"result", result.Result)
	return nil
}

// handleRankRefresh 刷新榜单快照（creator 范围定向刷新，其余全量重建）
func (c *Consumer) handleRankRefresh(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.RankRefreshPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_rank_refresh_unmarshal_failed", "error", err)
		return err
	}

	if payload.Scope == constants.RankScopeCreator && payload.CreatorID > 0 {
		if err := c.RankService.RefreshCreatorSnapshots(ctx, payload.CreatorID); err != nil {
			logger.Warnw("worker_rank_refresh_failed", "creator_id", payload.CreatorID, "error", err)
			return err
		}
		return nil
	}
	if err := c.RankService.RefreshSnapshots(ctx); err != nil {
		logger.Warnw("worker_rank_refresh_failed", "scope", payload.Scope, "error", err)
		return err
	}
	return nil
}

// handleReconcileRun 执行计数器对账（MemberID 为 0 时全量）
func (c *Consumer) handleReconcileRun(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.ReconcileRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_reconcile_run_unmarshal_failed", "error", err)
		return err
	}

	if payload.MemberID > 0 {
		result, err := c.ReconcileService.ReconcileMember(payload.MemberID)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				logger.Debugw("worker_reconcile_run_skip_member_not_found", "member_id", payload.MemberID)
				return nil
			}
			logger.Warnw("worker_reconcile_run_failed", "member_id", payload.MemberID, "error", err)
			return err
		}
		if len(result.DriftFields) > 0 {
			logger.Infow("worker_reconcile_member_corrected",
				"member_id", payload.MemberID,
				"fields", result.DriftFields)
		}
		return nil
	}

	if _, err := c.ReconcileService.ReconcileAll(ctx); err != nil {
		logger.Warnw("worker_reconcile_run_failed", "error", err)
		return err
	}
	return nil
}

// handleEventReprocess 重放人工触发的滞留事件
func (c *Consumer) handleEventReprocess(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.EventReprocessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_event_reprocess_unmarshal_failed", "error", err)
		return err
	}
	if payload.ParkedEventID == 0 {
		logger.Debugw("worker_event_reprocess_skip_invalid_payload")
		return nil
	}

	_, err := c.ProcessorService.ReprocessParkedEvent(ctx, payload.ParkedEventID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			logger.Debugw("worker_event_reprocess_skip_not_found", "parked_event_id", payload.ParkedEventID)
			return nil
		case errors.Is(err, service.ErrParkedStatusInvalid):
			logger.Debugw("worker_event_reprocess_skip_status", "parked_event_id", payload.ParkedEventID)
			return nil
		default:
			logger.Warnw("worker_event_reprocess_failed", "parked_event_id", payload.ParkedEventID, "error", err)
			return err
		}
	}
	return nil
}
