package provider

import (
	"github.com/refledger/internal/cache"
	"github.com/refledger/internal/config"
	"github.com/refledger/internal/logger"
	"github.com/refledger/internal/models"
	"github.com/refledger/internal/queue"
	"github.com/refledger/internal/repository"
	"github.com/refledger/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	CreatorRepo    repository.CreatorRepository
	MemberRepo     repository.MemberRepository
	CommissionRepo repository.CommissionRepository
	ClickRepo      repository.AttributionClickRepository
	BonusRepo      repository.BonusRepository
	SnapshotRepo   repository.RankSnapshotRepository
	ReviewRepo     repository.RiskReviewRepository
	ParkedRepo     repository.ParkedEventRepository
	DashboardRepo  repository.DashboardRepository

	// Services
	AttributionService *service.AttributionService
	FraudService       *service.FraudService
	BonusService       *service.BonusService
	RankService        *service.RankService
	ReconcileService   *service.ReconcileService
	ProcessorService   *service.ProcessorService
	MemberService      *service.MemberService
	CreatorService     *service.CreatorService
	DashboardService   *service.DashboardService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.CreatorRepo = repository.NewCreatorRepository(db)
	c.MemberRepo = repository.NewMemberRepository(db)
	c.CommissionRepo = repository.NewCommissionRepository(db)
	c.ClickRepo = repository.NewAttributionClickRepository(db)
	c.BonusRepo = repository.NewBonusRepository(db)
	c.SnapshotRepo = repository.NewRankSnapshotRepository(db)
	c.ReviewRepo = repository.NewRiskReviewRepository(db)
	c.ParkedRepo = repository.NewParkedEventRepository(db)
	c.DashboardRepo = repository.NewDashboardRepository(db)
}

func (c *Container) initServices() {
	c.AttributionService = service.NewAttributionService(c.MemberRepo, c.ClickRepo, c.Config.Attribution)
	c.FraudService = service.NewFraudService(c.CommissionRepo, c.MemberRepo, c.ReviewRepo, c.Config.Fraud)
	c.BonusService = service.NewBonusService(c.BonusRepo, c.MemberRepo, c.Config.Bonus)
	c.RankService = service.NewRankService(c.MemberRepo, c.CreatorRepo, c.SnapshotRepo, c.Config.Leaderboard)
	c.ReconcileService = service.NewReconcileService(c.CommissionRepo, c.MemberRepo, c.CreatorRepo, c.Config.Reconcile)
	c.ProcessorService = service.NewProcessorService(
		c.CommissionRepo,
		c.MemberRepo,
		c.CreatorRepo,
		c.ClickRepo,
		c.ParkedRepo,
		c.ReviewRepo,
		c.AttributionService,
		c.FraudService,
		c.BonusService,
		c.RankService,
		c.QueueClient,
		c.Config.Commission,
		c.Config.Processor,
	)
	c.MemberService = service.NewMemberService(c.MemberRepo, c.CreatorRepo, c.RankService, c.BonusService)
	c.CreatorService = service.NewCreatorService(c.CreatorRepo, c.Config.Commission)
	c.DashboardService = service.NewDashboardService(c.DashboardRepo)
}
