package public

import (
	"time"

	"github.com/refledger/internal/http/handlers/shared"
	"github.com/refledger/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetMemberStats 查询会员推广统计（缓存计数 + 实时名次）
func (h *Handler) GetMemberStats(c *gin.Context) {
	memberID, ok := shared.ParseIDParam(c, "id")
	if !ok {
		return
	}

	stats, err := h.MemberService.GetStats(memberID, time.Now())
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, stats)
}

// GetMemberRisk 查询会员当前风险评估
func (h *Handler) GetMemberRisk(c *gin.Context) {
	memberID, ok := shared.ParseIDParam(c, "id")
	if !ok {
		return
	}

	assessment, err := h.FraudService.AssessMember(c.Request.Context(), memberID)
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, assessment)
}
