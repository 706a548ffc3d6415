package public

import (
	"strings"

	"github.com/refledger/internal/constants"
	"github.com/refledger/internal/http/handlers/shared"
	"github.com/refledger/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetLeaderboard 查询排行榜
// scope=global|creator，creator 范围必须带 creator_id；metric 缺省为累计收益。
func (h *Handler) GetLeaderboard(c *gin.Context) {
	scope := strings.TrimSpace(c.DefaultQuery("scope", constants.RankScopeGlobal))
	metric := strings.TrimSpace(c.DefaultQuery("metric", constants.RankMetricLifetimeEarnings))
	creatorID := shared.ParseQueryUint(c, "creator_id")
	limit := shared.ParseQueryInt(c, "limit", 0)

	board, err := h.RankService.GetLeaderboard(c.Request.Context(), scope, creatorID, metric, limit)
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, board)
}
