package service

import (
	"sort"
	"strings"

	"github.com/refledger/internal/config"
	"github.com/refledger/internal/constants"
	"github.com/refledger/internal/models"
	"github.com/refledger/internal/repository"

	"github.com/shopspring/decimal"
)

// CreatorService 创作者管理服务
type CreatorService struct {
	creatorRepo repository.CreatorRepository
	cfg         config.CommissionConfig
}

// NewCreatorService 创建创作者服务
func NewCreatorService(creatorRepo repository.CreatorRepository, cfg config.CommissionConfig) *CreatorService {
	return &CreatorService{creatorRepo: creatorRepo, cfg: cfg}
}

// CreateCreatorInput 创建/更新创作者输入
type CreateCreatorInput struct {
	Name                 string
	Slug                 string
	MemberRate           float64
	CreatorRate          float64
	PlatformRate         float64
	RewardTierThresholds []int64
}

// Create 创建创作者
// 三方比例全部为 0 时落到全局默认比例，否则必须合计为 1。
func (s *CreatorService) Create(input CreateCreatorInput) (*models.Creator, error) {
	slug := normalizeCreatorSlug(input.Slug)
	rates, err := s.resolveRates(input.MemberRate, input.CreatorRate, input.PlatformRate)
	if err != nil {
		return nil, err
	}

	existing, err := s.creatorRepo.GetBySlug(slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrCreatorSlugTaken
	}

	creator := &models.Creator{
		Name:                 strings.TrimSpace(input.Name),
		Slug:                 slug,
		MemberRate:           models.NewMoneyFromDecimal(rates.Member),
		CreatorRate:          models.NewMoneyFromDecimal(rates.Creator),
		PlatformRate:         models.NewMoneyFromDecimal(rates.Platform),
		RewardTierThresholds: normalizeRewardTiers(input.RewardTierThresholds),
		Status:               constants.CreatorStatusActive,
	}
	if err := s.creatorRepo.Create(creator); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrCreatorSlugTaken
		}
		return nil, err
	}
	return creator, nil
}

// Update 更新创作者
func (s *CreatorService) Update(id uint, input CreateCreatorInput) (*models.Creator, error) {
	creator, err := s.creatorRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if creator == nil {
		return nil, ErrNotFound
	}

	slug := normalizeCreatorSlug(input.Slug)
	rates, err := s.resolveRates(input.MemberRate, input.CreatorRate, input.PlatformRate)
	if err != nil {
		return nil, err
	}

	if slug != creator.Slug {
		existing, err := s.creatorRepo.GetBySlug(slug)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != creator.ID {
			return nil, ErrCreatorSlugTaken
		}
	}

	creator.Name = strings.TrimSpace(input.Name)
	creator.Slug = slug
	creator.MemberRate = models.NewMoneyFromDecimal(rates.Member)
	creator.CreatorRate = models.NewMoneyFromDecimal(rates.Creator)
	creator.PlatformRate = models.NewMoneyFromDecimal(rates.Platform)
	creator.RewardTierThresholds = normalizeRewardTiers(input.RewardTierThresholds)

	if err := s.creatorRepo.Update(creator); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrCreatorSlugTaken
		}
		return nil, err
	}
	return creator, nil
}

// Get 按ID获取创作者
func (s *CreatorService) Get(id uint) (*models.Creator, error) {
	creator, err := s.creatorRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if creator == nil {
		return nil, ErrNotFound
	}
	return creator, nil
}

// List 查询创作者列表
func (s *CreatorService) List(filter repository.CreatorListFilter) ([]models.Creator, int64, error) {
	return s.creatorRepo.List(filter)
}

// SetStatus 启用/停用创作者
func (s *CreatorService) SetStatus(id uint, status string) (*models.Creator, error) {
	normalized := strings.TrimSpace(status)
	if normalized != constants.CreatorStatusActive && normalized != constants.CreatorStatusDisabled {
		return nil, ErrCreatorStatusInvalid
	}

	creator, err := s.creatorRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if creator == nil {
		return nil, ErrNotFound
	}
	if creator.Status == normalized {
		return creator, nil
	}

	creator.Status = normalized
	if err := s.creatorRepo.Update(creator); err != nil {
		return nil, err
	}
	return creator, nil
}

// resolveRates 解析分成比例：全零回退默认值，非零必须合计为 1
func (s *CreatorService) resolveRates(member, creator, platform float64) (RateTriple, error) {
	if member == 0 && creator == 0 && platform == 0 {
		return RateTriple{
			Member:   decimal.NewFromFloat(s.cfg.MemberRate),
			Creator:  decimal.NewFromFloat(s.cfg.CreatorRate),
			Platform: decimal.NewFromFloat(s.cfg.PlatformRate),
		}, nil
	}
	rates := RateTriple{
		Member:   decimal.NewFromFloat(member),
		Creator:  decimal.NewFromFloat(creator),
		Platform: decimal.NewFromFloat(platform),
	}
	if !rates.Valid() {
		return RateTriple{}, ErrCreatorRateInvalid
	}
	return rates, nil
}

func normalizeCreatorSlug(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// normalizeRewardTiers 奖励档位阈值规范化：去非正值、升序去重
func normalizeRewardTiers(raw []int64) models.Int64Array {
	if len(raw) == 0 {
		return models.Int64Array{}
	}
	seen := make(map[int64]struct{}, len(raw))
	result := make(models.Int64Array, 0, len(raw))
	for _, threshold := range raw {
		if threshold <= 0 {
			continue
		}
		if _, ok := seen[threshold]; ok {
			continue
		}
		seen[threshold] = struct{}{}
		result = append(result, threshold)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
