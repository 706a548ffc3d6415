package service

import (
	"strings"
	"time"

	"github.com/refledger/internal/config"
	"github.com/refledger/internal/constants"
	"github.com/refledger/internal/logger"
	"github.com/refledger/internal/models"
	"github.com/refledger/internal/repository"
)

const (
	defaultAttributionWindowDays   = 30
	defaultClickDedupeWindowSecond = 600
)

// AttributionService 支付事件归因服务
type AttributionService struct {
	memberRepo repository.MemberRepository
	clickRepo  repository.AttributionClickRepository
	cfg        config.AttributionConfig
}

// NewAttributionService 创建归因服务
func NewAttributionService(
	memberRepo repository.MemberRepository,
	clickRepo repository.AttributionClickRepository,
	cfg config.AttributionConfig,
) *AttributionService {
	return &AttributionService{
		memberRepo: memberRepo,
		clickRepo:  clickRepo,
		cfg:        cfg,
	}
}

// AttributionInput 归因解析输入
type AttributionInput struct {
	CreatorID     uint
	BuyerMemberID uint
	ReferralCode  string
	VisitorKey    string
}

// Attribution 归因解析结果
type Attribution struct {
	Referrer *models.Member
	Source   string
	ClickID  uint
}

// TrackClickInput 推广点击记录输入
type TrackClickInput struct {
	ReferralCode string
	VisitorKey   string
	LandingPath  string
	Referrer     string
	ClientIP     string
	UserAgent    string
}

// Resolve 解析支付事件的推荐归因
// 窗口内最新的未过期点击优先，其次才看事件携带的推荐码；
// 候选人一旦命中排除规则（自推、同指纹、跨创作者、非启用）直接按自然成交处理，不报错。
func (s *AttributionService) Resolve(input AttributionInput, now time.Time) (*Attribution, error) {
	if s.memberRepo == nil || s.clickRepo == nil {
		return nil, nil
	}
	code := normalizeReferralCode(input.ReferralCode)
	visitorKey := strings.TrimSpace(input.VisitorKey)

	var buyer *models.Member
	if input.BuyerMemberID > 0 {
		loaded, err := s.memberRepo.GetByID(input.BuyerMemberID)
		if err != nil {
			return nil, err
		}
		buyer = loaded
	}

	if visitorKey != "" {
		click, err := s.clickRepo.GetLatestActiveByVisitorKey(visitorKey, now)
		if err != nil {
			return nil, err
		}
		if click != nil {
			referrer, err := s.memberRepo.GetByID(click.MemberID)
			if err != nil {
				return nil, err
			}
			if reason := attributionExclusionReason(referrer, input, buyer, visitorKey); reason != "" {
				logger.Debugw("attribution_click_excluded",
					"click_id", click.ID,
					"referrer_id", click.MemberID,
					"reason", reason)
				return nil, nil
			}
			return &Attribution{
				Referrer: referrer,
				Source:   constants.AttributionSourceClick,
				ClickID:  click.ID,
			}, nil
		}
	}

	if code == "" {
		return nil, nil
	}
	referrer, err := s.memberRepo.GetByReferralCode(code)
	if err != nil {
		return nil, err
	}
	if referrer == nil {
		logger.Debugw("attribution_code_unknown", "referral_code", code)
		return nil, nil
	}
	if reason := attributionExclusionReason(referrer, input, buyer, visitorKey); reason != "" {
		logger.Debugw("attribution_code_excluded",
			"referrer_id", referrer.ID,
			"referral_code", code,
			"reason", reason)
		return nil, nil
	}
	return &Attribution{
		Referrer: referrer,
		Source:   constants.AttributionSourceCode,
	}, nil
}

// TrackClick 记录推广点击
// 推荐码无效或会员未启用时静默跳过，避免对外暴露码的有效性。
func (s *AttributionService) TrackClick(input TrackClickInput, now time.Time) error {
	if s.clickRepo == nil || s.memberRepo == nil {
		return nil
	}
	code := normalizeReferralCode(input.ReferralCode)
	if code == "" {
		return nil
	}
	member, err := s.memberRepo.GetByReferralCode(code)
	if err != nil {
		return err
	}
	if member == nil || member.Status != constants.MemberStatusActive {
		return nil
	}

	visitorKey := strings.TrimSpace(input.VisitorKey)
	if visitorKey != "" {
		duplicated, err := s.clickRepo.HasRecentClick(member.ID, visitorKey, now.Add(-s.dedupeWindow()))
		if err != nil {
			return err
		}
		if duplicated {
			return nil
		}
	}

	click := &models.AttributionClick{
		MemberID:     member.ID,
		ReferralCode: member.ReferralCode,
		VisitorKey:   visitorKey,
		LandingPath:  strings.TrimSpace(input.LandingPath),
		Referrer:     strings.TrimSpace(input.Referrer),
		ClientIP:     strings.TrimSpace(input.ClientIP),
		UserAgent:    strings.TrimSpace(input.UserAgent),
		ExpiresAt:    now.Add(s.attributionWindow()),
		CreatedAt:    now,
	}
	return s.clickRepo.Create(click)
}

// PruneExpiredClicks 清理过期未转化的点击
func (s *AttributionService) PruneExpiredClicks(now time.Time) (int64, error) {
	if s.clickRepo == nil {
		return 0, nil
	}
	return s.clickRepo.PruneExpired(now)
}

func (s *AttributionService) attributionWindow() time.Duration {
	days := s.cfg.WindowDays
	if days <= 0 {
		days = defaultAttributionWindowDays
	}
	return time.Duration(days) * 24 * time.Hour
}

func (s *AttributionService) dedupeWindow() time.Duration {
	seconds := s.cfg.ClickDedupeSeconds
	if seconds <= 0 {
		seconds = defaultClickDedupeWindowSecond
	}
	return time.Duration(seconds) * time.Second
}

// attributionExclusionReason 返回候选推荐人被排除的原因，可归因时返回空串
func attributionExclusionReason(referrer *models.Member, input AttributionInput, buyer *models.Member, eventVisitorKey string) string {
	if referrer == nil {
		return "referrer_missing"
	}
	if input.CreatorID > 0 && referrer.CreatorID != input.CreatorID {
		return "creator_mismatch"
	}
	if referrer.Status != constants.MemberStatusActive {
		return "referrer_inactive"
	}
	if input.BuyerMemberID > 0 && referrer.ID == input.BuyerMemberID {
		return "self_referral"
	}
	referrerKey := strings.TrimSpace(referrer.VisitorKey)
	if referrerKey != "" && eventVisitorKey != "" && referrerKey == eventVisitorKey {
		return "shared_fingerprint"
	}
	if buyer != nil {
		buyerKey := strings.TrimSpace(buyer.VisitorKey)
		if referrerKey != "" && buyerKey != "" && referrerKey == buyerKey {
			return "shared_fingerprint"
		}
	}
	return ""
}

func normalizeReferralCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
