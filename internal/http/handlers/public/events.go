package public

import (
	"github.com/refledger/internal/http/handlers/shared"
	"github.com/refledger/internal/http/response"
	"github.com/refledger/internal/service"

	"github.com/gin-gonic/gin"
)

// PaymentWebhook 接收支付成功事件
// 幂等入口：重复投递返回 duplicate，不产生第二笔佣金。
func (h *Handler) PaymentWebhook(c *gin.Context) {
	var input service.PaymentEventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	result, err := h.ProcessorService.ProcessPaymentEvent(c.Request.Context(), input)
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, result)
}

// RefundWebhook 接收退款事件
func (h *Handler) RefundWebhook(c *gin.Context) {
	var input service.RefundEventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	result, err := h.ProcessorService.ProcessRefundEvent(c.Request.Context(), input)
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, result)
}
