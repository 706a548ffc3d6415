package worker

import (
	"context"
	"errors"
	"time"

	"github.com/refledger/internal/config"
	"github.com/refledger/internal/logger"
	"github.com/refledger/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	bonusConfirmInterval     = time.Minute
	clickPruneInterval       = time.Hour
	defaultSnapshotInterval  = 5 * time.Minute
	defaultReconcileInterval = time.Hour
)

// Service 异步队列服务
// 除 asynq 消费外还带三条巡检循环：奖励确认、榜单快照刷新、周期对账。
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil {
		go s.runBonusConfirmLoop(ctx)
		go s.runSnapshotRefreshLoop(ctx)
		go s.runReconcileLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runBonusConfirmLoop 确认持有期已满的待确认奖励
func (s *Service) runBonusConfirmLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.BonusService == nil {
		return
	}
	runOnce := func() {
		if _, err := s.consumer.BonusService.ConfirmDue(time.Now()); err != nil {
			logger.Warnw("worker_bonus_confirm_due_failed", "error", err)
		}
	}
	runOnce()

	ticker := time.NewTicker(bonusConfirmInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

// runSnapshotRefreshLoop 周期重建榜单快照，顺带清理过期未转化点击
func (s *Service) runSnapshotRefreshLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.RankService == nil {
		return
	}
	interval := defaultSnapshotInterval
	if cfg := s.consumer.Config; cfg != nil && cfg.Leaderboard.RefreshIntervalSeconds > 0 {
		interval = time.Duration(cfg.Leaderboard.RefreshIntervalSeconds) * time.Second
	}

	refresh := func() {
		if err := s.consumer.RankService.RefreshSnapshots(ctx); err != nil {
			logger.Warnw("worker_snapshot_refresh_failed", "error", err)
		}
	}
	refresh()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	pruneTicker := time.NewTicker(clickPruneInterval)
	defer pruneTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		case <-pruneTicker.C:
			if s.consumer.AttributionService == nil {
				continue
			}
			pruned, err := s.consumer.AttributionService.PruneExpiredClicks(time.Now())
			if err != nil {
				logger.Warnw("worker_click_prune_failed", "error", err)
				continue
			}
			if pruned > 0 {
				logger.Infow("worker_click_pruned", "pruned", pruned)
			}
		}
	}
}

// runReconcileLoop 周期全量对账
func (s *Service) runReconcileLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.ReconcileService == nil {
		return
	}
	interval := defaultReconcileInterval
	if cfg := s.consumer.Config; cfg != nil && cfg.Reconcile.IntervalMinutes > 0 {
		interval = time.Duration(cfg.Reconcile.IntervalMinutes) * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.consumer.ReconcileService.ReconcileAll(ctx); err != nil {
				logger.Warnw("worker_reconcile_failed", "error", err)
			}
		}
	}
}
