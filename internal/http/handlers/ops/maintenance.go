package ops

import (
	"github.com/refledger/internal/constants"
	"github.com/refledger/internal/http/handlers/shared"
	"github.com/refledger/internal/http/response"
	"github.com/refledger/internal/logger"
	"github.com/refledger/internal/queue"

	"github.com/gin-gonic/gin"
)

type reconcileRequest struct {
	MemberID uint `json:"member_id"`
}

// TriggerReconcile 触发计数器对账
// 指定 member_id 时同步对账单个会员并返回结果；
// 否则全量对账交给队列异步执行，队列不可用时退化为同步执行。
func (h *Handler) TriggerReconcile(c *gin.Context) {
	var req reconcileRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "请求参数错误: "+err.Error())
			return
		}
	}

	if req.MemberID > 0 {
		result, err := h.ReconcileService.ReconcileMember(req.MemberID)
		if err != nil {
			shared.RespondError(c, err)
			return
		}
		response.Success(c, result)
		return
	}

	if h.QueueClient.Enabled() {
		if err := h.QueueClient.EnqueueReconcileRun(queue.ReconcileRunPayload{}); err != nil {
			logger.Warnw("reconcile_enqueue_failed", "error", err)
			shared.RespondError(c, err)
			return
		}
		response.SuccessWithMsg(c, "已排队", gin.H{"queued": true})
		return
	}

	summary, err := h.ReconcileService.ReconcileAll(c.Request.Context())
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, summary)
}

// RefreshSnapshots 触发榜单快照重建
// 队列可用时异步刷新，否则同步重建全部快照。
func (h *Handler) RefreshSnapshots(c *gin.Context) {
	if h.QueueClient.Enabled() {
		payload := queue.RankRefreshPayload{Scope: constants.RankScopeGlobal}
		if err := h.QueueClient.EnqueueRankRefresh(payload); err != nil {
			logger.Warnw("snapshot_refresh_enqueue_failed", "error", err)
			shared.RespondError(c, err)
			return
		}
		response.SuccessWithMsg(c, "已排队", gin.H{"queued": true})
		return
	}

	if err := h.RankService.RefreshSnapshots(c.Request.Context()); err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, gin.H{"refreshed": true})
}
