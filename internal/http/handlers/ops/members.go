package ops

import (
	"strings"

	"github.com/refledger/internal/http/handlers/shared"
	"github.com/refledger/internal/http/response"
	"github.com/refledger/internal/repository"
	"github.com/refledger/internal/service"

	"github.com/gin-gonic/gin"
)

// ListMembers 查询会员列表
func (h *Handler) ListMembers(c *gin.Context) {
	page, pageSize := shared.ParsePagination(c)
	filter := repository.MemberListFilter{
		Page:       page,
		PageSize:   pageSize,
		CreatorID:  shared.ParseQueryUint(c, "creator_id"),
		ReferrerID: shared.ParseQueryUint(c, "referrer_id"),
		Origin:     strings.TrimSpace(c.Query("origin")),
		Status:     strings.TrimSpace(c.Query("status")),
		Keyword:    strings.TrimSpace(c.Query("keyword")),
	}

	members, total, err := h.MemberService.List(filter)
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.SuccessWithPage(c, members, shared.BuildPagination(page, pageSize, total))
}

type createMemberRequest struct {
	CreatorID    uint   `json:"creator_id" binding:"required"`
	DisplayName  string `json:"display_name" binding:"required"`
	Email        string `json:"email"`
	ReferralCode string `json:"referral_code"`
	VisitorKey   string `json:"visitor_key"`
}

// CreateMember 创建推广会员（可带推荐人推荐码）
func (h *Handler) CreateMember(c *gin.Context) {
	var req createMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	member, err := h.MemberService.Create(service.CreateMemberInput{
		CreatorID:    req.CreatorID,
		DisplayName:  req.DisplayName,
		Email:        req.Email,
		ReferralCode: req.ReferralCode,
		VisitorKey:   req.VisitorKey,
	})
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, member)
}

// GetMember 查询会员详情
func (h *Handler) GetMember(c *gin.Context) {
	memberID, ok := shared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	member, err := h.MemberService.Get(memberID)
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, member)
}

type memberStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateMemberStatus 更新会员状态（启用/隔离/停用）
func (h *Handler) UpdateMemberStatus(c *gin.Context) {
	memberID, ok := shared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req memberStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	member, err := h.MemberService.UpdateStatus(memberID, req.Status)
	if err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, member)
}

// ReleaseMember 解除对账隔离，恢复会员参与排名
func (h *Handler) ReleaseMember(c *gin.Context) {
	memberID, ok := shared.ParseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.ReconcileService.ReleaseMember(memberID); err != nil {
		shared.RespondError(c, err)
		return
	}
	response.Success(c, gin.H{"released": true})
}
