package shared

import (
	"errors"

	"github.com/refledger/internal/http/response"
	"github.com/refledger/internal/logger"
	"github.com/refledger/internal/service"

	"github.com/gin-gonic/gin"
)

// errorCodeRules 业务错误到响应码的映射表
var errorCodeRules = []struct {
	target error
	code   int
}{
	{service.ErrNotFound, response.CodeNotFound},
	{service.ErrEventInvalid, response.CodeBadRequest},
	{service.ErrInvalidAmount, response.CodeBadRequest},
	{service.ErrCreatorRateInvalid, response.CodeBadRequest},
	{service.ErrCreatorStatusInvalid, response.CodeBadRequest},
	{service.ErrMemberStatusInvalid, response.CodeBadRequest},
	{service.ErrReferralCodeInvalid, response.CodeBadRequest},
	{service.ErrRankScopeInvalid, response.CodeBadRequest},
	{service.ErrRankMetricInvalid, response.CodeBadRequest},
	{service.ErrDuplicateEvent, response.CodeConflict},
	{service.ErrCreatorSlugTaken, response.CodeConflict},
	{service.ErrCreatorDisabled, response.CodeConflict},
	{service.ErrBonusTransitionInvalid, response.CodeConflict},
	{service.ErrReviewStatusInvalid, response.CodeConflict},
	{service.ErrParkedStatusInvalid, response.CodeConflict},
}

// RespondError 统一业务错误响应
// 未识别的错误按内部错误兜底，只记日志不外泄细节。
func RespondError(c *gin.Context, err error) {
	if err == nil {
		response.Error(c, response.CodeInternal, "内部错误")
		return
	}

	var appErr *response.AppError
	if errors.As(err, &appErr) {
		response.Error(c, appErr.Code, appErr.Message)
		return
	}

	for _, rule := range errorCodeRules {
		if errors.Is(err, rule.target) {
			response.Error(c, rule.code, err.Error())
			return
		}
	}

	logger.Errorw("handler_internal_error",
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
		"error", err)
	response.Error(c, response.CodeInternal, "内部错误")
}
