package public

import (
	"time"

	"github.com/refledger/internal/http/handlers/shared"
	"github.com/refledger/internal/http/response"
	"github.com/refledger/internal/service"

	"github.com/gin-gonic/gin"
)

type trackClickRequest struct {
	ReferralCode string `json:"referral_code" binding:"required"`
	VisitorKey   string `json:"visitor_key"`
	LandingPath  string `json:"landing_path"`
	Referrer     string `json:"referrer"`
}

// TrackReferralClick 记录推广链接点击
// 无效推荐码静默吞掉，响应不暴露码是否存在。
func (h *Handler) TrackReferralClick(c *gin.Context) {
	var req trackClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	err := h.AttributionService.TrackClick(service.TrackClickInput{
		ReferralCode: req.ReferralCode,
		VisitorKey:   req.VisitorKey,
		LandingPath:  req.LandingPath,
		Referrer:     req.Referrer,
		ClientIP:     c.ClientIP(),
		UserAgent:    c.GetHeader("User-Agent"),
	}, time.Now())
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, gin.H{"accepted": true})
}
