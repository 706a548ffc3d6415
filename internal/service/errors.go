package service

import "errors"

// 业务错误定义（HTTP 层按 errors.Is 统一映射响应）
var (
	ErrNotFound               = errors.New("记录不存在")
	ErrEventInvalid           = errors.New("事件参数无效")
	ErrInvalidAmount          = errors.New("成交金额无效")
	ErrDuplicateEvent         = errors.New("重复的支付事件")
	ErrStoreTimeout           = errors.New("存储操作超时")
	ErrInvariantViolation     = errors.New("分账不变量被破坏")
	ErrCreatorDisabled        = errors.New("创作者已停用")
	ErrCreatorSlugTaken       = errors.New("创作者标识已被占用")
	ErrCreatorRateInvalid     = errors.New("分成比例无效")
	ErrCreatorStatusInvalid   = errors.New("创作者状态无效")
	ErrMemberStatusInvalid    = errors.New("会员状态无效")
	ErrReferralCodeInvalid    = errors.New("推荐码无效")
	ErrBonusTransitionInvalid = errors.New("奖励状态流转无效")
	ErrRankScopeInvalid       = errors.New("排行榜范围无效")
	ErrRankMetricInvalid      = errors.New("排行榜指标无效")
	ErrLeaderboardUnavailable = errors.New("排行榜数据暂不可用")
	ErrReviewStatusInvalid    = errors.New("复核状态流转无效")
	ErrParkedStatusInvalid    = errors.New("滞留事件状态流转无效")
)
