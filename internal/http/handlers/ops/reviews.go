package ops

import (
	"strings"

	"github.com/refledger/internal/http/handlers/shared"
	"github.com/refledger/internal/http/response"
	"github.com/refledger/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListReviews 查询人工复核单列表
func (h *Handler) ListReviews(c *gin.Context) {
	page, pageSize := shared.ParsePagination(c)
	filter := repository.RiskReviewListFilter{
		Page:     page,
		PageSize: pageSize,
		MemberID: shared.ParseQueryUint(c, "member_id"),
		Status:   strings.TrimSpace(c.Query("status")),
	}

	reviews, total, err := h.FraudService.ListReviews(filter)
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.SuccessWithPage(c, reviews, shared.BuildPagination(page, pageSize, total))
}

type reviewDecisionRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

// DecideReview 写入复核结论（cleared 放行 / confirmed 坐实）
func (h *Handler) DecideReview(c *gin.Context) {
	reviewID, ok := shared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req reviewDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	review, err := h.FraudService.DecideReview(reviewID, req.Status, req.Note)
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, review)
}
