package ops

import (
	"strings"

	"github.com/refledger/internal/http/handlers/shared"
	"github.com/refledger/internal/http/response"
	"github.com/refledger/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListBonuses 查询首次推荐奖励列表
func (h *Handler) ListBonuses(c *gin.Context) {
	page, pageSize := shared.ParsePagination(c)
	filter := repository.BonusListFilter{
		Page:     page,
		PageSize: pageSize,
		MemberID: shared.ParseQueryUint(c, "member_id"),
		Status:   strings.TrimSpace(c.Query("status")),
	}

	bonuses, total, err := h.BonusService.List(filter)
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.SuccessWithPage(c, bonuses, shared.BuildPagination(page, pageSize, total))
}

// PayBonus 将已确认奖励标记为已发放
func (h *Handler) PayBonus(c *gin.Context) {
	bonusID, ok := shared.ParseIDParam(c, "id")
	if !ok {
		return
	}

	bonus, err := h.BonusService.MarkPaid(bonusID)
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, bonus)
}

type bonusRevokeRequest struct {
	Reason string `json:"reason"`
}

// RevokeBonus 管理端撤销奖励（已发放奖励不可撤销）
func (h *Handler) RevokeBonus(c *gin.Context) {
	bonusID, ok := shared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req bonusRevokeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "请求参数错误: "+err.Error())
			return
		}
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "manual"
	}

	bonus, err := h.BonusService.Revoke(bonusID, reason)
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, bonus)
}
