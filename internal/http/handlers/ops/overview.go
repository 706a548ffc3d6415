package ops

import (
	"github.com/refledger/internal/http/handlers/shared"
	"github.com/refledger/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetOverview 账本运营总览
func (h *Handler) GetOverview(c *gin.Context) {
	rangeDays := shared.ParseQueryInt(c, "range_days", 0)
	overview, err := h.DashboardService.GetOverview(rangeDays)
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, overview)
}

// GetTrends 按天的入账与退款趋势
func (h *Handler) GetTrends(c *gin.Context) {
	rangeDays := shared.ParseQueryInt(c, "range_days", 0)
	trends, err := h.DashboardService.GetTrends(rangeDays)
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, trends)
}

// GetTopCreators 创作者成交额排行
func (h *Handler) GetTopCreators(c *gin.Context) {
	rangeDays := shared.ParseQueryInt(c, "range_days", 0)
	limit := shared.ParseQueryInt(c, "limit", 10)
	rows, err := h.DashboardService.GetTopCreators(rangeDays, limit)
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, rows)
}
