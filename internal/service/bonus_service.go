package service

import (
	"strings"
	"time"

	"github.com/refledger/internal/config"
	"github.com/refledger/internal/constants"
	"github.com/refledger/internal/logger"
	"github.com/refledger/internal/models"
	"github.com/refledger/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultBonusAmount   = 5
	defaultBonusHoldDays = 7
)

// BonusService 首次推荐奖励服务
type BonusService struct {
	bonusRepo  repository.BonusRepository
	memberRepo repository.MemberRepository
	cfg        config.BonusConfig
}

// NewBonusService 创建首次推荐奖励服务
func NewBonusService(bonusRepo repository.BonusRepository, memberRepo repository.MemberRepository, cfg config.BonusConfig) *BonusService {
	return &BonusService{
		bonusRepo:  bonusRepo,
		memberRepo: memberRepo,
		cfg:        cfg,
	}
}

// EvaluateAfterCommission 佣金入账后评估是否发放首次推荐奖励
// 仅推荐人的第一笔首购佣金触发，金额门槛不足或已有奖励记录时静默跳过。
func (s *BonusService) EvaluateAfterCommission(commission *models.Commission, now time.Time) (*models.ReferralBonus, error) {
	if commission == nil || commission.MemberID == nil || *commission.MemberID == 0 {
		return nil, nil
	}
	if s.bonusRepo == nil || s.memberRepo == nil {
		return nil, nil
	}
	if commission.PaymentType != constants.PaymentTypeInitial {
		return nil, nil
	}
	if commission.MemberShare.Decimal.LessThan(s.minMemberShare()) {
		return nil, nil
	}

	member, err := s.memberRepo.GetByID(*commission.MemberID)
	if err != nil {
		return nil, err
	}
	if member == nil || member.LifetimeReferrals != 1 {
		return nil, nil
	}

	bonus := &models.ReferralBonus{
		MemberID:     member.ID,
		CommissionID: commission.ID,
		Amount:       models.NewMoneyFromDecimal(s.bonusAmount()),
		BonusType:    constants.BonusTypeFirstReferral,
		Status:       constants.BonusStatusPendingConfirmation,
		EligibleAt:   now,
		ConfirmAt:    now.Add(s.holdDuration()),
	}
	inserted, err := s.bonusRepo.CreateIgnoreDuplicate(bonus)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, nil
	}
	logger.Infow("bonus_granted",
		"member_id", member.ID,
		"commission_id", commission.ID,
		"amount", bonus.Amount.String(),
		"confirm_at", bonus.ConfirmAt)
	return bonus, nil
}

// ConfirmDue 确认持有期已满的待确认奖励（巡检任务）
func (s *BonusService) ConfirmDue(now time.Time) (int64, error) {
	if s.bonusRepo == nil {
		return 0, nil
	}
	confirmed, err := s.bonusRepo.ConfirmDue(now, now)
	if err != nil {
		return 0, err
	}
	if confirmed > 0 {
		logger.Infow("bonus_confirm_sweep", "confirmed", confirmed)
	}
	return confirmed, nil
}

// MarkPaid 将已确认奖励标记为已发放
func (s *BonusService) MarkPaid(bonusID uint) (*models.ReferralBonus, error) {
	if bonusID == 0 || s.bonusRepo == nil {
		return nil, ErrNotFound
	}
	updated, err := s.bonusRepo.MarkPaid(bonusID, time.Now())
	if err != nil {
		return nil, err
	}
	if !updated {
		bonus, err := s.bonusRepo.GetByID(bonusID)
		if err != nil {
			return nil, err
		}
		if bonus == nil {
			return nil, ErrNotFound
		}
		return nil, ErrBonusTransitionInvalid
	}
	return s.bonusRepo.GetByID(bonusID)
}

// Revoke 管理端撤销奖励（已发放奖励不可撤销）
func (s *BonusService) Revoke(bonusID uint, reason string) (*models.ReferralBonus, error) {
	if bonusID == 0 || s.bonusRepo == nil {
		return nil, ErrNotFound
	}
	revoked, err := s.bonusRepo.Revoke(bonusID, reason, time.Now())
	if err != nil {
		return nil, err
	}
	if !revoked {
		bonus, err := s.bonusRepo.GetByID(bonusID)
		if err != nil {
			return nil, err
		}
		if bonus == nil {
			return nil, ErrNotFound
		}
		return nil, ErrBonusTransitionInvalid
	}
	return s.bonusRepo.GetByID(bonusID)
}

// RevokeForCommissionTx 退款联动撤销来源佣金对应的奖励（事务内调用）
// 已发放的奖励保持不动，仅记录告警。
func (s *BonusService) RevokeForCommissionTx(tx *gorm.DB, commissionID uint, reason string, now time.Time) error {
	if commissionID == 0 || s.bonusRepo == nil {
		return nil
	}
	repoTx := s.bonusRepo.WithTx(tx)
	bonus, err := repoTx.GetByCommissionID(commissionID)
	if err != nil {
		return err
	}
	if bonus == nil {
		return nil
	}
	if bonus.Status == constants.BonusStatusPaid {
		logger.Warnw("bonus_paid_kept_on_refund",
			"bonus_id", bonus.ID,
			"member_id", bonus.MemberID,
			"commission_id", commissionID)
		return nil
	}
	revoked, err := repoTx.Revoke(bonus.ID, reason, now)
	if err != nil {
		return err
	}
	if revoked {
		logger.Infow("bonus_revoked",
			"bonus_id", bonus.ID,
			"member_id", bonus.MemberID,
			"commission_id", commissionID,
			"reason", strings.TrimSpace(reason))
	}
	return nil
}

// GetByMemberID 查询会员的奖励记录
func (s *BonusService) GetByMemberID(memberID uint) (*models.ReferralBonus, error) {
	if s.bonusRepo == nil {
		return nil, nil
	}
	return s.bonusRepo.GetByMemberID(memberID)
}

// List 查询奖励记录列表
func (s *BonusService) List(filter repository.BonusListFilter) ([]models.ReferralBonus, int64, error) {
	if s.bonusRepo == nil {
		return nil, 0, nil
	}
	return s.bonusRepo.List(filter)
}

func (s *BonusService) bonusAmount() decimal.Decimal {
	if s.cfg.Amount <= 0 {
		return decimal.NewFromInt(defaultBonusAmount)
	}
	return decimal.NewFromFloat(s.cfg.Amount)
}

func (s *BonusService) minMemberShare() decimal.Decimal {
	if s.cfg.MinMemberShare <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(s.cfg.MinMemberShare)
}

func (s *BonusService) holdDuration() time.Duration {
	days := s.cfg.HoldDays
	if days <= 0 {
		days = defaultBonusHoldDays
	}
	return time.Duration(days) * 24 * time.Hour
}
