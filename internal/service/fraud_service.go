package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/refledger/internal/cache"
	"github.com/refledger/internal/config"
	"github.com/refledger/internal/constants"
	"github.com/refledger/internal/logger"
	"github.com/refledger/internal/models"
	"github.com/refledger/internal/monitoring"
	"github.com/refledger/internal/repository"
)

const defaultFraudCacheTTL = 180 * time.Second

// FraudService 推荐风控评分服务
// 规则集在构造时固定，运行期间不增删
type FraudService struct {
	commissionRepo repository.CommissionRepository
	memberRepo     repository.MemberRepository
	reviewRepo     repository.RiskReviewRepository
	rules          []FraudRule
	cfg            config.FraudConfig
}

// NewFraudService 创建风控评分服务
func NewFraudService(
	commissionRepo repository.CommissionRepository,
	memberRepo repository.MemberRepository,
	reviewRepo repository.RiskReviewRepository,
	cfg config.FraudConfig,
) *FraudService {
	return &FraudService{
		commissionRepo: commissionRepo,
		memberRepo:     memberRepo,
		reviewRepo:     reviewRepo,
		rules:          newFraudRules(commissionRepo, memberRepo, cfg),
		cfg:            cfg,
	}
}

// RiskAssessment 风控评估结果
type RiskAssessment struct {
	MemberID       uint     `json:"member_id"`
	Score          int      `json:"score"`
	Level          string   `json:"level"`
	TriggeredRules []string `json:"triggered_rules"`
	FromCache      bool     `json:"-"`
}

// Assess 评估一次支付事件的推荐风险
// 相同输入短期内重复评估直接命中缓存；单条规则失败按未命中继续。
func (s *FraudService) Assess(ctx context.Context, subject FraudSubject) (RiskAssessment, error) {
	if subject.Referrer == nil {
		return RiskAssessment{Level: constants.RiskLevelLow}, nil
	}
	if subject.Now.IsZero() {
		subject.Now = time.Now()
	}

	inputHash := fraudSubjectHash(subject)
	if state, hit, err := cache.GetRiskState(ctx, subject.Referrer.ID, inputHash); err != nil {
		logger.Debugw("fraud_cache_read_failed", "member_id", subject.Referrer.ID, "error", err)
	} else if hit && state != nil {
		return RiskAssessment{
			MemberID:       state.MemberID,
			Score:          state.Score,
			Level:          state.Level,
			TriggeredRules: state.TriggeredRules,
			FromCache:      true,
		}, nil
	}

	score := 0
	triggered := make([]string, 0, len(s.rules))
	for _, rule := range s.rules {
		hit, err := rule.Evaluate(subject)
		if err != nil {
			logger.Warnw("fraud_rule_failed",
				"rule", rule.Name(),
				"member_id", subject.Referrer.ID,
				"error", err)
			continue
		}
		if hit {
			score += rule.Weight()
			triggered = append(triggered, rule.Name())
		}
	}
	if score > constants.RiskScoreCeiling {
		score = constants.RiskScoreCeiling
	}

	assessment := RiskAssessment{
		MemberID:       subject.Referrer.ID,
		Score:          score,
		Level:          riskLevelForScore(score),
		TriggeredRules: triggered,
	}
	monitoring.FraudAssessmentsTotal.WithLabelValues(assessment.Level).Inc()

	state := &cache.RiskState{
		MemberID:       assessment.MemberID,
		Score:          assessment.Score,
		Level:          assessment.Level,
		TriggeredRules: assessment.TriggeredRules,
		EvaluatedAt:    subject.Now.Unix(),
	}
	if err := cache.SetRiskState(ctx, inputHash, state, s.cacheTTL()); err != nil {
		logger.Debugw("fraud_cache_write_failed", "member_id", assessment.MemberID, "error", err)
	}
	return assessment, nil
}

// AssessMember 按会员当前画像评估风险（查询接口用，不绑定具体支付）
func (s *FraudService) AssessMember(ctx context.Context, memberID uint) (RiskAssessment, error) {
	if s.memberRepo == nil {
		return RiskAssessment{}, ErrNotFound
	}
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return RiskAssessment{}, err
	}
	if member == nil {
		return RiskAssessment{}, ErrNotFound
	}
	return s.Assess(ctx, FraudSubject{
		Referrer:   member,
		CreatorID:  member.CreatorID,
		VisitorKey: member.VisitorKey,
		Now:        time.Now(),
	})
}

// ListReviews 查询人工复核单列表
func (s *FraudService) ListReviews(filter repository.RiskReviewListFilter) ([]models.RiskReview, int64, error) {
	if s.reviewRepo == nil {
		return nil, 0, nil
	}
	return s.reviewRepo.List(filter)
}

// DecideReview 写入人工复核结论（放行或坐实），仅待复核单可流转
func (s *FraudService) DecideReview(reviewID uint, rawStatus, note string) (*models.RiskReview, error) {
	if reviewID == 0 || s.reviewRepo == nil {
		return nil, ErrNotFound
	}
	status := strings.TrimSpace(rawStatus)
	if status != constants.RiskReviewStatusCleared && status != constants.RiskReviewStatusConfirmed {
		return nil, ErrReviewStatusInvalid
	}

	updated, err := s.reviewRepo.UpdateDecision(reviewID, status, note, time.Now())
	if err != nil {
		return nil, err
	}
	if !updated {
		review, err := s.reviewRepo.GetByID(reviewID)
		if err != nil {
			return nil, err
		}
		if review == nil {
			return nil, ErrNotFound
		}
		return nil, ErrReviewStatusInvalid
	}
	return s.reviewRepo.GetByID(reviewID)
}

func (s *FraudService) cacheTTL() time.Duration {
	seconds := s.cfg.CacheTTLSeconds
	if seconds <= 0 {
		return defaultFraudCacheTTL
	}
	return time.Duration(seconds) * time.Second
}

// riskLevelForScore 评分到风险等级的映射
func riskLevelForScore(score int) string {
	switch {
	case score <= constants.RiskScoreLowMax:
		return constants.RiskLevelLow
	case score <= constants.RiskScoreMediumMax:
		return constants.RiskLevelMedium
	default:
		return constants.RiskLevelHigh
	}
}

// fraudSubjectHash 评估输入的摘要，作为短期缓存键的一部分
func fraudSubjectHash(subject FraudSubject) string {
	raw := fmt.Sprintf("%d|%s|%s|%s",
		subject.Referrer.ID,
		strings.TrimSpace(subject.ExternalPaymentID),
		subject.SaleAmount.String(),
		strings.TrimSpace(subject.VisitorKey))
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}
