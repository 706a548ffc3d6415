package ops

import (
	"strings"

	"github.com/refledger/internal/http/handlers/shared"
	"github.com/refledger/internal/http/response"
	"github.com/refledger/internal/repository"
	"github.com/refledger/internal/service"

	"github.com/gin-gonic/gin"
)

type creatorRequest struct {
	Name                 string  `json:"name" binding:"required"`
	Slug                 string  `json:"slug" binding:"required"`
	MemberRate           float64 `json:"member_rate"`
	CreatorRate          float64 `json:"creator_rate"`
	PlatformRate         float64 `json:"platform_rate"`
	RewardTierThresholds []int64 `json:"reward_tier_thresholds"`
}

func (r creatorRequest) toInput() service.CreateCreatorInput {
	return service.CreateCreatorInput{
		Name:                 r.Name,
		Slug:                 r.Slug,
		MemberRate:           r.MemberRate,
		CreatorRate:          r.CreatorRate,
		PlatformRate:         r.PlatformRate,
		RewardTierThresholds: r.RewardTierThresholds,
	}
}

// ListCreators 查询创作者列表
func (h *Handler) ListCreators(c *gin.Context) {
	page, pageSize := shared.ParsePagination(c)
	filter := repository.CreatorListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		Keyword:  strings.TrimSpace(c.Query("keyword")),
	}

	creators, total, err := h.CreatorService.List(filter)
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.SuccessWithPage(c, creators, shared.BuildPagination(page, pageSize, total))
}

// GetCreator 查询创作者详情
func (h *Handler) GetCreator(c *gin.Context) {
	creatorID, ok := shared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	creator, err := h.CreatorService.Get(creatorID)
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, creator)
}

// CreateCreator 创建创作者
func (h *Handler) CreateCreator(c *gin.Context) {
	var req creatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	creator, err := h.CreatorService.Create(req.toInput())
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, creator)
}

// UpdateCreator 更新创作者
func (h *Handler) UpdateCreator(c *gin.Context) {
	creatorID, ok := shared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req creatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	creator, err := h.CreatorService.Update(creatorID, req.toInput())
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, creator)
}

type creatorStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetCreatorStatus 启用/停用创作者
func (h *Handler) SetCreatorStatus(c *gin.Context) {
	creatorID, ok := shared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req creatorStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	creator, err := h.CreatorService.SetStatus(creatorID, req.Status)
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, creator)
}
