package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/refledger/internal/config"
	"github.com/refledger/internal/constants"
	"github.com/refledger/internal/logger"
	"github.com/refledger/internal/models"
	"github.com/refledger/internal/monitoring"
	"github.com/refledger/internal/queue"
	"github.com/refledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	// defaultStoreTimeoutMS 单次存储操作默认超时
	defaultStoreTimeoutMS = 5000
	// defaultPersistMaxAttempts 暂时性失败默认重试上限
	defaultPersistMaxAttempts = 3
	// defaultRetryBackoffMS 重试退避默认基数
	defaultRetryBackoffMS = 200
	// defaultRefundRetryDelaySeconds 乱序退款默认延迟重试间隔
	defaultRefundRetryDelaySeconds = 60
	// defaultRefundMaxAttempts 乱序退款默认重试上限
	defaultRefundMaxAttempts = 5
	// parkedErrorMaxLen 滞留事件错误摘要长度上限
	parkedErrorMaxLen = 1024
)

// ProcessorService 支付事件处理服务（入账与退款的编排入口）
type ProcessorService struct {
	commissionRepo     repository.CommissionRepository
	memberRepo         repository.MemberRepository
	creatorRepo        repository.CreatorRepository
	clickRepo          repository.AttributionClickRepository
	parkedRepo         repository.ParkedEventRepository
	reviewRepo         repository.RiskReviewRepository
	attributionService *AttributionService
	fraudService       *FraudService
	bonusService       *BonusService
	rankService        *RankService
	queueClient        *queue.Client
	commissionCfg      config.CommissionConfig
	cfg                config.ProcessorConfig
}

// NewProcessorService 创建支付事件处理服务
func NewProcessorService(commissionRepo repository.CommissionRepository, memberRepo repository.MemberRepository, creatorRepo repository.CreatorRepository, clickRepo repository.AttributionClickRepository, parkedRepo repository.ParkedEventRepository, reviewRepo repository.RiskReviewRepository, attributionService *AttributionService, fraudService *FraudService, bonusService *BonusService, rankService *RankService, queueClient *queue.Client, commissionCfg config.CommissionConfig, cfg config.ProcessorConfig) *ProcessorService {
	return &ProcessorService{
		commissionRepo:     commissionRepo,
		memberRepo:         memberRepo,
		creatorRepo:        creatorRepo,
		clickRepo:          clickRepo,
		parkedRepo:         parkedRepo,
		reviewRepo:         reviewRepo,
		attributionService: attributionService,
		fraudService:       fraudService,
		bonusService:       bonusService,
		rankService:        rankService,
		queueClient:        queueClient,
		commissionCfg:      commissionCfg,
		cfg:                cfg,
	}
}

// PaymentEventInput 支付事件输入
type PaymentEventInput struct {
	ExternalPaymentID string  `json:"external_payment_id"`
	CreatorID         uint    `json:"creator_id"`
	BuyerMemberID     uint    `json:"buyer_member_id,omitempty"`
	BuyerVisitorKey   string  `json:"buyer_visitor_key,omitempty"`
	ReferralCode      string  `json:"referral_code,omitempty"`
	Amount            float64 `json:"amount"`
	PaymentType       string  `json:"payment_type,omitempty"`
}

// PaymentEventResult 支付事件处理结果
type PaymentEventResult struct {
	Result     string             `json:"result"`
	Reason     string             `json:"reason,omitempty"`
	Commission *models.Commission `json:"commission,omitempty"`
	RiskScore  int                `json:"risk_score,omitempty"`
	RiskLevel  string             `json:"risk_level,omitempty"`
}

// RefundEventInput 退款事件输入
type RefundEventInput struct {
	ExternalPaymentID string `json:"external_payment_id"`
	Reason            string `json:"reason,omitempty"`
	Attempt           int    `json:"attempt,omitempty"`
}

// RefundEventResult 退款事件处理结果
type RefundEventResult struct {
	Result       string `json:"result"`
	CommissionID uint   `json:"commission_id,omitempty"`
}

// ProcessPaymentEvent 处理支付成功事件
// 流程：校验 → 幂等检查 → 归因 → 风控 → 分账 → 事务入账（佣金 + 计数器） → 奖励评估 → 榜单失效。
// 重复投递返回 duplicate 且不重复计数；暂时性存储失败按退避重试，重试耗尽转入滞留队列。
func (s *ProcessorService) ProcessPaymentEvent(ctx context.Context, input PaymentEventInput) (PaymentEventResult, error) {
	externalID := strings.TrimSpace(input.ExternalPaymentID)
	if externalID == "" || input.CreatorID == 0 {
		return PaymentEventResult{}, ErrEventInvalid
	}
	amount, err := DecimalFromEventAmount(input.Amount)
	if err != nil {
		return PaymentEventResult{}, err
	}
	paymentType, err := normalizePaymentType(input.PaymentType)
	if err != nil {
		return PaymentEventResult{}, err
	}
	now := time.Now()

	var creator *models.Creator
	if err := s.runStoreOp(ctx, func() error {
		var loadErr error
		creator, loadErr = s.creatorRepo.GetByID(input.CreatorID)
		return loadErr
	}); err != nil {
		return PaymentEventResult{}, err
	}
	if creator == nil {
		return PaymentEventResult{}, ErrNotFound
	}
	if creator.Status != constants.CreatorStatusActive {
		return s.finishPayment(PaymentEventResult{Result: constants.PaymentResultRejected, Reason: "creator_disabled"}, externalID)
	}

	// 幂等预检：同一外部支付ID只入账一次
	var existing *models.Commission
	if err := s.runStoreOp(ctx, func() error {
		var loadErr error
		existing, loadErr = s.commissionRepo.GetByExternalID(externalID)
		return loadErr
	}); err != nil {
		return PaymentEventResult{}, err
	}
	if existing != nil {
		return s.finishPayment(PaymentEventResult{Result: constants.PaymentResultDuplicate, Commission: existing}, externalID)
	}

	attribution, err := s.attributionService.Resolve(AttributionInput{
		CreatorID:     input.CreatorID,
		BuyerMemberID: input.BuyerMemberID,
		ReferralCode:  input.ReferralCode,
		VisitorKey:    input.BuyerVisitorKey,
	}, now)
	if err != nil {
		return PaymentEventResult{}, err
	}

	var assessment RiskAssessment
	if attribution != nil {
		assessment, err = s.fraudService.Assess(ctx, FraudSubject{
			Referrer:          attribution.Referrer,
			CreatorID:         input.CreatorID,
			SaleAmount:        amount,
			VisitorKey:        input.BuyerVisitorKey,
			ExternalPaymentID: externalID,
			Now:               now,
		})
		if err != nil {
			return PaymentEventResult{}, err
		}
		if assessment.Level == constants.RiskLevelHigh {
			cleared, clearedErr := s.reviewRepo.HasClearedForPayment(attribution.Referrer.ID, externalID)
			if clearedErr != nil {
				return PaymentEventResult{}, clearedErr
			}
			if !cleared {
				s.createRiskReview(attribution.Referrer.ID, externalID, assessment)
				return s.finishPayment(PaymentEventResult{
					Result:    constants.PaymentResultRejected,
					Reason:    "fraud_high_risk",
					RiskScore: assessment.Score,
					RiskLevel: assessment.Level,
				}, externalID)
			}
			logger.Infow("payment_event_review_cleared",
				"external_payment_id", externalID,
				"member_id", attribution.Referrer.ID)
		}
	}

	rates := RateTripleFromCreator(creator, s.commissionCfg)
	split, err := CalculateSplit(amount, rates, s.maxSaleAmount())
	if err != nil {
		return PaymentEventResult{}, err
	}
	// 自然成交没有受益推荐人，推荐人份额并入平台
	if attribution == nil {
		split.PlatformShare = split.PlatformShare.Add(split.MemberShare).Round(splitAmountPrecision)
		split.MemberShare = decimal.Zero
	}

	commission := s.buildCommission(externalID, input, creator, attribution, assessment, split, paymentType, now)
	result, err := s.persistPaymentWithRetry(ctx, commission, attribution, input, now)
	if err != nil {
		return PaymentEventResult{}, err
	}
	if result.Result != constants.PaymentResultAccepted {
		return s.finishPayment(result, externalID)
	}

	s.afterPaymentBooked(ctx, commission, now)
	return s.finishPayment(result, externalID)
}

// ProcessRefundEvent 处理退款事件
// 乱序到达（佣金尚未入账）时按延迟队列重试，重试耗尽转入滞留队列；
// 已退款记录重复投递返回 already_reversed 且不重复回冲。
func (s *ProcessorService) ProcessRefundEvent(ctx context.Context, input RefundEventInput) (RefundEventResult, error) {
	externalID := strings.TrimSpace(input.ExternalPaymentID)
	if externalID == "" {
		return RefundEventResult{}, ErrEventInvalid
	}
	now := time.Now()

	var existing *models.Commission
	if err := s.runStoreOp(ctx, func() error {
		var loadErr error
		existing, loadErr = s.commissionRepo.GetByExternalID(externalID)
		return loadErr
	}); err != nil {
		return RefundEventResult{}, err
	}
	if existing == nil {
		s.scheduleRefundRetry(input, externalID)
		monitoring.RefundEventsTotal.WithLabelValues(constants.RefundResultNotFound).Inc()
		return RefundEventResult{Result: constants.RefundResultNotFound}, nil
	}

	var (
		reversed   bool
		commission *models.Commission
	)
	err := s.runStoreOp(ctx, func() error {
		return s.commissionRepo.Transaction(func(tx *gorm.DB) error {
			commissionTx := s.commissionRepo.WithTx(tx)
			row, err := commissionTx.GetByExternalIDForUpdate(externalID)
			if err != nil {
				return err
			}
			if row == nil {
				return ErrNotFound
			}
			commission = row

			ok, err := commissionTx.MarkRefunded(row.ID, now)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			reversed = true

			// 回冲额度严格等于入账时增加的额度，当月佣金才回冲月度计数
			if row.MemberID != nil {
				delta := repository.MemberCounterDelta{Earnings: row.MemberShare.Decimal}
				if row.PaymentType == constants.PaymentTypeInitial {
					delta.Referrals = 1
				}
				if err := s.memberRepo.WithTx(tx).ReverseEarningsDelta(*row.MemberID, delta, row.StatsMonth, now); err != nil {
					return err
				}
			}
			if err := s.creatorRepo.WithTx(tx).ReverseRevenueDelta(row.CreatorID, row.SaleAmount.Decimal, row.StatsMonth, now); err != nil {
				return err
			}
			return s.bonusService.RevokeForCommissionTx(tx, row.ID, "refund", now)
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			monitoring.RefundEventsTotal.WithLabelValues(constants.RefundResultNotFound).Inc()
			return RefundEventResult{Result: constants.RefundResultNotFound}, nil
		}
		return RefundEventResult{}, err
	}

	if !reversed {
		monitoring.RefundEventsTotal.WithLabelValues(constants.RefundResultAlreadyReversed).Inc()
		return RefundEventResult{Result: constants.RefundResultAlreadyReversed, CommissionID: commission.ID}, nil
	}

	s.rankService.InvalidateBoards(ctx, commission.CreatorID)
	s.enqueueRankRefresh(commission.CreatorID)
	monitoring.RefundEventsTotal.WithLabelValues(constants.RefundResultReversed).Inc()
	logger.Infow("refund_event_reversed",
		"external_payment_id", externalID,
		"commission_id", commission.ID,
		"creator_id", commission.CreatorID,
		"reason", strings.TrimSpace(input.Reason))
	return RefundEventResult{Result: constants.RefundResultReversed, CommissionID: commission.ID}, nil
}

// ReprocessParkedEvent 重放滞留事件（成功后标记已重放，失败保持滞留）
func (s *ProcessorService) ReprocessParkedEvent(ctx context.Context, id uint) (*models.ParkedEvent, error) {
	event, err := s.parkedRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrNotFound
	}
	if event.Status != constants.ParkedEventStatusParked {
		return nil, ErrParkedStatusInvalid
	}

	switch event.Kind {
	case constants.ParkedEventKindPayment:
		var input PaymentEventInput
		if err := json.Unmarshal([]byte(event.Payload), &input); err != nil {
			return nil, err
		}
		if _, err := s.ProcessPaymentEvent(ctx, input); err != nil {
			return nil, err
		}
	case constants.ParkedEventKindRefund:
		var input RefundEventInput
		if err := json.Unmarshal([]byte(event.Payload), &input); err != nil {
			return nil, err
		}
		// 重放重置重试轮次，乱序退款重新走延迟重试
		input.Attempt = 0
		if _, err := s.ProcessRefundEvent(ctx, input); err != nil {
			return nil, err
		}
	default:
		return nil, ErrParkedStatusInvalid
	}

	now := time.Now()
	ok, err := s.parkedRepo.MarkReprocessed(event.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrParkedStatusInvalid
	}
	logger.Infow("parked_event_reprocessed", "parked_event_id", event.ID, "kind", event.Kind)
	return s.parkedRepo.GetByID(event.ID)
}

// DiscardParkedEvent 废弃滞留事件
func (s *ProcessorService) DiscardParkedEvent(id uint) (*models.ParkedEvent, error) {
	event, err := s.parkedRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrNotFound
	}
	ok, err := s.parkedRepo.MarkDiscarded(id, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrParkedStatusInvalid
	}
	return s.parkedRepo.GetByID(id)
}

// ListParkedEvents 查询滞留事件列表
func (s *ProcessorService) ListParkedEvents(filter repository.ParkedEventListFilter) ([]models.ParkedEvent, int64, error) {
	return s.parkedRepo.List(filter)
}

// persistPaymentWithRetry 带退避重试的事务入账（重试耗尽后滞留）
func (s *ProcessorService) persistPaymentWithRetry(ctx context.Context, commission *models.Commission, attribution *Attribution, input PaymentEventInput, now time.Time) (PaymentEventResult, error) {
	maxAttempts := s.persistMaxAttempts()
	backoff := s.retryBackoff()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		inserted, err := s.persistPayment(ctx, commission, attribution, now)
		if err == nil {
			if !inserted {
				existing, loadErr := s.commissionRepo.GetByExternalID(commission.ExternalPaymentID)
				if loadErr != nil {
					logger.Warnw("payment_event_duplicate_reload_failed",
						"external_payment_id", commission.ExternalPaymentID,
						"error", loadErr)
				}
				return PaymentEventResult{Result: constants.PaymentResultDuplicate, Commission: existing}, nil
			}
			return PaymentEventResult{
				Result:     constants.PaymentResultAccepted,
				Commission: commission,
				RiskScore:  commission.RiskScore,
				RiskLevel:  commission.RiskLevel,
			}, nil
		}
		lastErr = err
		if !isTransientStoreError(err) {
			break
		}
		logger.Warnw("payment_event_persist_retry",
			"external_payment_id", commission.ExternalPaymentID,
			"attempt", attempt,
			"error", err)
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
			case <-time.After(backoff):
			}
			if ctx.Err() != nil {
				break
			}
			backoff *= 2
		}
	}

	s.parkEvent(constants.ParkedEventKindPayment, commission.ExternalPaymentID, input, s.persistMaxAttempts(), lastErr)
	return PaymentEventResult{}, lastErr
}

// persistPayment 单次事务入账：佣金写入（冲突即重复）、会员与创作者计数器增量、点击转化标记
func (s *ProcessorService) persistPayment(ctx context.Context, commission *models.Commission, attribution *Attribution, now time.Time) (bool, error) {
	// 上一轮事务回滚后可能残留主键，重试前清零
	commission.ID = 0
	inserted := false
	err := s.runStoreOp(ctx, func() error {
		return s.commissionRepo.Transaction(func(tx *gorm.DB) error {
			ok, err := s.commissionRepo.WithTx(tx).CreateIgnoreDuplicate(commission)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			inserted = true

			if commission.MemberID != nil {
				delta := repository.MemberCounterDelta{Earnings: commission.MemberShare.Decimal}
				if commission.PaymentType == constants.PaymentTypeInitial {
					delta.Referrals = 1
				}
				if err := s.memberRepo.WithTx(tx).ApplyEarningsDelta(*commission.MemberID, delta, commission.StatsMonth, now); err != nil {
					return err
				}
			}
			if err := s.creatorRepo.WithTx(tx).ApplyRevenueDelta(commission.CreatorID, commission.SaleAmount.Decimal, commission.StatsMonth, now); err != nil {
				return err
			}
			if attribution != nil && attribution.ClickID > 0 {
				if _, err := s.clickRepo.WithTx(tx).MarkConverted(attribution.ClickID, commission.ExternalPaymentID, now); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// afterPaymentBooked 入账成功后的兜尾动作（失败只告警，不影响已入账结果）
func (s *ProcessorService) afterPaymentBooked(ctx context.Context, commission *models.Commission, now time.Time) {
	if commission.MemberID != nil {
		if _, err := s.bonusService.EvaluateAfterCommission(commission, now); err != nil {
			logger.Warnw("payment_event_bonus_eval_failed",
				"external_payment_id", commission.ExternalPaymentID,
				"member_id", *commission.MemberID,
				"error", err)
		}
	}
	s.rankService.InvalidateBoards(ctx, commission.CreatorID)
	s.enqueueRankRefresh(commission.CreatorID)
	logger.Infow("payment_event_booked",
		"external_payment_id", commission.ExternalPaymentID,
		"commission_id", commission.ID,
		"creator_id", commission.CreatorID,
		"attribution_source", commission.AttributionSource,
		"risk_level", commission.RiskLevel,
		"sale_amount", commission.SaleAmount.String())
}

// buildCommission 组装佣金记录
func (s *ProcessorService) buildCommission(externalID string, input PaymentEventInput, creator *models.Creator, attribution *Attribution, assessment RiskAssessment, split Split, paymentType string, now time.Time) *models.Commission {
	commission := &models.Commission{
		ExternalPaymentID: externalID,
		CreatorID:         creator.ID,
		BuyerVisitorKey:   strings.TrimSpace(input.BuyerVisitorKey),
		SaleAmount:        models.NewMoneyFromDecimal(split.SaleAmount),
		MemberShare:       models.NewMoneyFromDecimal(split.MemberShare),
		CreatorShare:      models.NewMoneyFromDecimal(split.CreatorShare),
		PlatformShare:     models.NewMoneyFromDecimal(split.PlatformShare),
		PaymentType:       paymentType,
		Status:            constants.CommissionStatusPaid,
		AttributionSource: constants.AttributionSourceNone,
		RiskLevel:         constants.RiskLevelLow,
		StatsMonth:        now.Format(constants.StatsMonthLayout),
	}
	if input.BuyerMemberID > 0 {
		buyerID := input.BuyerMemberID
		commission.BuyerMemberID = &buyerID
	}
	if attribution != nil {
		memberID := attribution.Referrer.ID
		commission.MemberID = &memberID
		commission.AttributionSource = attribution.Source
		commission.RiskScore = assessment.Score
		commission.RiskLevel = assessment.Level
		commission.TriggeredRules = strings.Join(assessment.TriggeredRules, ",")
	}
	return commission
}

// createRiskReview 高风险拦截时登记人工复核单（失败只告警，拦截结论不变）
func (s *ProcessorService) createRiskReview(memberID uint, externalID string, assessment RiskAssessment) {
	review := &models.RiskReview{
		MemberID:          memberID,
		ExternalPaymentID: externalID,
		Score:             assessment.Score,
		Level:             assessment.Level,
		TriggeredRules:    strings.Join(assessment.TriggeredRules, ","),
		Status:            constants.RiskReviewStatusOpen,
	}
	if err := s.reviewRepo.Create(review); err != nil {
		logger.Warnw("risk_review_create_failed",
			"external_payment_id", externalID,
			"member_id", memberID,
			"error", err)
		return
	}
	logger.Warnw("payment_event_blocked",
		"external_payment_id", externalID,
		"member_id", memberID,
		"risk_score", assessment.Score,
		"triggered_rules", strings.Join(assessment.TriggeredRules, ","))
}

// scheduleRefundRetry 乱序退款的延迟重试（队列不可用或轮次耗尽时滞留）
func (s *ProcessorService) scheduleRefundRetry(input RefundEventInput, externalID string) {
	if s.queueClient.Enabled() && input.Attempt < s.refundMaxAttempts() {
		payload := queue.RefundRetryPayload{
			ExternalPaymentID: externalID,
			Reason:            strings.TrimSpace(input.Reason),
			Attempt:           input.Attempt + 1,
		}
		delay := s.refundRetryDelay() * time.Duration(input.Attempt+1)
		err := s.queueClient.EnqueueRefundRetry(payload, delay)
		if err == nil {
			logger.Infow("refund_event_retry_scheduled",
				"external_payment_id", externalID,
				"attempt", payload.Attempt,
				"delay_seconds", int(delay.Seconds()))
			return
		}
		logger.Warnw("refund_event_retry_enqueue_failed",
			"external_payment_id", externalID,
			"error", err)
	}
	s.parkEvent(constants.ParkedEventKindRefund, externalID, input, input.Attempt, errors.New("commission not found"))
}

// parkEvent 将处理失败的事件转入滞留队列等待人工处置
func (s *ProcessorService) parkEvent(kind, externalID string, payload interface{}, attempts int, cause error) {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Errorw("parked_event_payload_marshal_failed", "kind", kind, "external_payment_id", externalID, "error", err)
		body = nil
	}
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
		if len(lastError) > parkedErrorMaxLen {
			lastError = lastError[:parkedErrorMaxLen]
		}
	}
	event := &models.ParkedEvent{
		EventID:           uuid.NewString(),
		Kind:              kind,
		ExternalPaymentID: externalID,
		Payload:           string(body),
		Attempts:          attempts,
		LastError:         lastError,
		Status:            constants.ParkedEventStatusParked,
	}
	if err := s.parkedRepo.Create(event); err != nil {
		logger.Errorw("parked_event_create_failed",
			"kind", kind,
			"external_payment_id", externalID,
			"error", err)
		return
	}
	monitoring.ParkedEventsTotal.WithLabelValues(kind).Inc()
	logger.Warnw("processor_event_parked",
		"kind", kind,
		"external_payment_id", externalID,
		"event_id", event.EventID,
		"attempts", attempts,
		"last_error", lastError)
}

// finishPayment 记录支付事件处理结果指标
func (s *ProcessorService) finishPayment(result PaymentEventResult, externalID string) (PaymentEventResult, error) {
	monitoring.PaymentEventsTotal.WithLabelValues(result.Result).Inc()
	if result.Result == constants.PaymentResultRejected {
		logger.Infow("payment_event_rejected",
			"external_payment_id", externalID,
			"reason", result.Reason)
	}
	return result, nil
}

// enqueueRankRefresh 入账或回冲后触发受影响范围的榜单刷新
func (s *ProcessorService) enqueueRankRefresh(creatorID uint) {
	if !s.queueClient.Enabled() {
		return
	}
	payload := queue.RankRefreshPayload{Scope: constants.RankScopeCreator, CreatorID: creatorID}
	if err := s.queueClient.EnqueueRankRefresh(payload); err != nil {
		logger.Warnw("rank_refresh_enqueue_failed", "creator_id", creatorID, "error", err)
	}
}

// runStoreOp 在配置超时内执行单次存储操作
func (s *ProcessorService) runStoreOp(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(s.storeTimeout()):
		return ErrStoreTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isTransientStoreError 判断存储错误是否可重试
func isTransientStoreError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStoreTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "database is locked") ||
		strings.Contains(message, "connection") ||
		strings.Contains(message, "timeout")
}

// normalizePaymentType 规整支付类型（缺省按首购）
func normalizePaymentType(raw string) (string, error) {
	paymentType := strings.ToLower(strings.TrimSpace(raw))
	switch paymentType {
	case "":
		return constants.PaymentTypeInitial, nil
	case constants.PaymentTypeInitial, constants.PaymentTypeRecurring:
		return paymentType, nil
	default:
		return "", ErrEventInvalid
	}
}

func (s *ProcessorService) storeTimeout() time.Duration {
	if s.cfg.StoreTimeoutMS > 0 {
		return time.Duration(s.cfg.StoreTimeoutMS) * time.Millisecond
	}
	return defaultStoreTimeoutMS * time.Millisecond
}

func (s *ProcessorService) persistMaxAttempts() int {
	if s.cfg.MaxAttempts > 0 {
		return s.cfg.MaxAttempts
	}
	return defaultPersistMaxAttempts
}

func (s *ProcessorService) retryBackoff() time.Duration {
	if s.cfg.RetryBackoffMS > 0 {
		return time.Duration(s.cfg.RetryBackoffMS) * time.Millisecond
	}
	return defaultRetryBackoffMS * time.Millisecond
}

func (s *ProcessorService) refundRetryDelay() time.Duration {
	if s.cfg.RefundRetryDelaySeconds > 0 {
		return time.Duration(s.cfg.RefundRetryDelaySeconds) * time.Second
	}
	return defaultRefundRetryDelaySeconds * time.Second
}

func (s *ProcessorService) refundMaxAttempts() int {
	if s.cfg.RefundMaxAttempts > 0 {
		return s.cfg.RefundMaxAttempts
	}
	return defaultRefundMaxAttempts
}

func (s *ProcessorService) maxSaleAmount() decimal.Decimal {
	if s.commissionCfg.MaxSaleAmount > 0 {
		return decimal.NewFromFloat(s.commissionCfg.MaxSaleAmount)
	}
	return decimal.Zero
}
