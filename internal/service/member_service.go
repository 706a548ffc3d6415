package service

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/refledger/internal/constants"
	"github.com/refledger/internal/logger"
	"github.com/refledger/internal/models"
	"github.com/refledger/internal/repository"
)

const (
	// 推荐码长度（去易混淆字符的大写字母+数字）
	memberReferralCodeLength = 8
	// 推荐码唯一冲突重试上限
	memberCodeMaxRetry = 8
)

// MemberService 推广会员管理服务
type MemberService struct {
	memberRepo   repository.MemberRepository
	creatorRepo  repository.CreatorRepository
	rankService  *RankService
	bonusService *BonusService
}

// NewMemberService 创建推广会员服务
func NewMemberService(memberRepo repository.MemberRepository, creatorRepo repository.CreatorRepository, rankService *RankService, bonusService *BonusService) *MemberService {
	return &MemberService{
		memberRepo:   memberRepo,
		creatorRepo:  creatorRepo,
		rankService:  rankService,
		bonusService: bonusService,
	}
}

// CreateMemberInput 创建会员输入
type CreateMemberInput struct {
	CreatorID    uint
	DisplayName  string
	Email        string
	ReferralCode string // 推荐人推荐码（可选）
	VisitorKey   string
}

// MemberStatsOutput 会员统计输出（缓存计数 + 实时名次）
type MemberStatsOutput struct {
	MemberID          uint                  `json:"member_id"`
	CreatorID         uint                  `json:"creator_id"`
	DisplayName       string                `json:"display_name"`
	ReferralCode      string                `json:"referral_code"`
	Origin            string                `json:"origin"`
	Status            string                `json:"status"`
	LifetimeEarnings  models.Money          `json:"lifetime_earnings"`
	MonthlyEarnings   models.Money          `json:"monthly_earnings"`
	LifetimeReferrals int64                 `json:"lifetime_referrals"`
	MonthlyReferrals  int64                 `json:"monthly_referrals"`
	StatsMonth        string                `json:"stats_month"`
	RewardTier        int                   `json:"reward_tier"`
	NextTierThreshold int64                 `json:"next_tier_threshold"`
	GlobalRank        int64                 `json:"global_rank"`
	CreatorRank       int64                 `json:"creator_rank"`
	Bonus             *models.ReferralBonus `json:"bonus,omitempty"`
}

// Create 创建会员并分配全局唯一推荐码
// 带推荐码注册时解析推荐人：未知推荐码直接拒绝；推荐人停用或跨创作者
// 时降级为自然注册，不报错。
func (s *MemberService) Create(input CreateMemberInput) (*models.Member, error) {
	creator, err := s.creatorRepo.GetByID(input.CreatorID)
	if err != nil {
		return nil, err
	}
	if creator == nil {
		return nil, ErrNotFound
	}
	if creator.Status != constants.CreatorStatusActive {
		return nil, ErrCreatorDisabled
	}

	referrer, err := s.resolveReferrer(input.CreatorID, input.ReferralCode)
	if err != nil {
		return nil, err
	}

	origin := constants.MemberOriginOrganic
	var referrerID *uint
	if referrer != nil {
		origin = constants.MemberOriginReferred
		referrerID = &referrer.ID
	}

	for i := 0; i < memberCodeMaxRetry; i++ {
		code, genErr := generateReferralCode()
		if genErr != nil {
			return nil, genErr
		}
		member := &models.Member{
			CreatorID:    input.CreatorID,
			DisplayName:  strings.TrimSpace(input.DisplayName),
			Email:        strings.TrimSpace(input.Email),
			ReferralCode: code,
			Origin:       origin,
			ReferrerID:   referrerID,
			VisitorKey:   strings.TrimSpace(input.VisitorKey),
			Status:       constants.MemberStatusActive,
		}
		if err := s.memberRepo.Create(member); err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return nil, err
		}
		if err := s.creatorRepo.IncrementMemberCount(input.CreatorID, 1, time.Now()); err != nil {
			// 会员数量是缓存计数，对账会修正，这里不回滚注册
			logger.Warnw("member_count_increment_failed", "creator_id", input.CreatorID, "member_id", member.ID, "error", err)
		}
		return member, nil
	}
	return nil, ErrReferralCodeInvalid
}

// Get 按ID获取会员
func (s *MemberService) Get(id uint) (*models.Member, error) {
	member, err := s.memberRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrNotFound
	}
	return member, nil
}

// GetStats 查询会员统计
// 计数来自缓存列（月度计数跨月按 0 处理），名次实时计算。
func (s *MemberService) GetStats(memberID uint, now time.Time) (*MemberStatsOutput, error) {
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrNotFound
	}

	out := &MemberStatsOutput{
		MemberID:          member.ID,
		CreatorID:         member.CreatorID,
		DisplayName:       member.DisplayName,
		ReferralCode:      member.ReferralCode,
		Origin:            member.Origin,
		Status:            member.Status,
		LifetimeEarnings:  member.LifetimeEarnings,
		MonthlyEarnings:   member.MonthlyEarnings,
		LifetimeReferrals: member.LifetimeReferrals,
		MonthlyReferrals:  member.MonthlyReferrals,
		StatsMonth:        now.Format(constants.StatsMonthLayout),
	}
	if member.StatsMonth != out.StatsMonth {
		out.MonthlyEarnings = models.Money{}
		out.MonthlyReferrals = 0
	}

	creator, err := s.creatorRepo.GetByID(member.CreatorID)
	if err != nil {
		return nil, err
	}
	if creator != nil {
		out.RewardTier, out.NextTierThreshold = rewardTierProgress(creator.RewardTierThresholds, member.LifetimeReferrals)
	}

	if s.rankService != nil {
		globalRank, err := s.rankService.RealtimeRank(member, constants.RankScopeGlobal, constants.RankMetricLifetimeEarnings)
		if err != nil {
			return nil, err
		}
		creatorRank, err := s.rankService.RealtimeRank(member, constants.RankScopeCreator, constants.RankMetricLifetimeEarnings)
		if err != nil {
			return nil, err
		}
		out.GlobalRank = globalRank
		out.CreatorRank = creatorRank
	}

	if s.bonusService != nil {
		bonus, err := s.bonusService.GetByMemberID(member.ID)
		if err != nil {
			return nil, err
		}
		if bonus != nil && bonus.Status != constants.BonusStatusRevoked {
			out.Bonus = bonus
		}
	}
	return out, nil
}

// UpdateStatus 更新会员状态
func (s *MemberService) UpdateStatus(id uint, status string) (*models.Member, error) {
	normalized := strings.TrimSpace(status)
	switch normalized {
	case constants.MemberStatusActive, constants.MemberStatusQuarantined, constants.MemberStatusDisabled:
	default:
		return nil, ErrMemberStatusInvalid
	}

	member, err := s.memberRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrNotFound
	}
	if member.Status == normalized {
		return member, nil
	}

	if err := s.memberRepo.UpdateStatus(id, normalized, time.Now()); err != nil {
		return nil, err
	}
	member.Status = normalized
	return member, nil
}

// List 查询会员列表
func (s *MemberService) List(filter repository.MemberListFilter) ([]models.Member, int64, error) {
	return s.memberRepo.List(filter)
}

// resolveReferrer 按推荐码解析推荐人
func (s *MemberService) resolveReferrer(creatorID uint, rawCode string) (*models.Member, error) {
	code := normalizeReferralCode(rawCode)
	if code == "" {
		return nil, nil
	}
	referrer, err := s.memberRepo.GetByReferralCode(code)
	if err != nil {
		return nil, err
	}
	if referrer == nil {
		return nil, ErrReferralCodeInvalid
	}
	if referrer.Status != constants.MemberStatusActive || referrer.CreatorID != creatorID {
		logger.Debugw("member_referrer_ineligible", "referral_code", code, "referrer_id", referrer.ID, "referrer_status", referrer.Status)
		return nil, nil
	}
	return referrer, nil
}

// rewardTierProgress 计算当前奖励档位与下一档阈值（阈值升序）
func rewardTierProgress(thresholds models.Int64Array, lifetimeReferrals int64) (int, int64) {
	tier := 0
	for _, threshold := range thresholds {
		if lifetimeReferrals < threshold {
			return tier, threshold
		}
		tier++
	}
	return tier, 0
}

func generateReferralCode() (string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	var builder strings.Builder
	builder.Grow(memberReferralCodeLength)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < memberReferralCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		builder.WriteByte(alphabet[n.Int64()])
	}
	return builder.String(), nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
