package ops

import (
	"strings"

	"github.com/refledger/internal/http/handlers/shared"
	"github.com/refledger/internal/http/response"
	"github.com/refledger/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListParkedEvents 查询滞留事件列表
func (h *Handler) ListParkedEvents(c *gin.Context) {
	page, pageSize := shared.ParsePagination(c)
	filter := repository.ParkedEventListFilter{
		Page:     page,
		PageSize: pageSize,
		Kind:     strings.TrimSpace(c.Query("kind")),
		Status:   strings.TrimSpace(c.Query("status")),
	}

	events, total, err := h.ProcessorService.ListParkedEvents(filter)
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.SuccessWithPage(c, events, shared.BuildPagination(page, pageSize, total))
}

// ReprocessParkedEvent 重放滞留事件
func (h *Handler) ReprocessParkedEvent(c *gin.Context) {
	eventID, ok := shared.ParseIDParam(c, "id")
	if !ok {
		return
	}

	event, err := h.ProcessorService.ReprocessParkedEvent(c.Request.Context(), eventID)
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, event)
}

// DiscardParkedEvent 废弃滞留事件
func (h *Handler) DiscardParkedEvent(c *gin.Context) {
	eventID, ok := shared.ParseIDParam(c, "id")
	if !ok {
		return
	}

	event, err := h.ProcessorService.DiscardParkedEvent(eventID)
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, event)
}
