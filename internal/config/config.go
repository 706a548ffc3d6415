package config

import (
	"fmt"
	"strings"

	"github.com/refledger/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	App         AppConfig         `mapstructure:"app"`
	Log         LogConfig         `mapstructure:"log"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Queue       QueueConfig       `mapstructure:"queue"`
	CORS        CORSConfig        `mapstructure:"cors"`
	Security    SecurityConfig    `mapstructure:"security"`
	Commission  CommissionConfig  `mapstructure:"commission"`
	Attribution AttributionConfig `mapstructure:"attribution"`
	Fraud       FraudConfig       `mapstructure:"fraud"`
	Bonus       BonusConfig       `mapstructure:"bonus"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
	Processor   ProcessorConfig   `mapstructure:"processor"`
	Reconcile   ReconcileConfig   `mapstructure:"reconcile"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// AppConfig 应用级配置
type AppConfig struct {
	DefaultCreatorName string `mapstructure:"default_creator_name"`
	DefaultCreatorSlug string `mapstructure:"default_creator_slug"`
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	WebhookRateLimit RateLimitConfig `mapstructure:"webhook_rate_limit"`
	ClickRateLimit   RateLimitConfig `mapstructure:"click_rate_limit"`
}

// RateLimitConfig 固定窗口限流配置
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
	BlockSeconds  int `mapstructure:"block_seconds"`
}

// CommissionConfig 分账配置
type CommissionConfig struct {
	MemberRate    float64 `mapstructure:"member_rate"`     // 推荐人默认分成比例
	CreatorRate   float64 `mapstructure:"creator_rate"`    // 创作者默认分成比例
	PlatformRate  float64 `mapstructure:"platform_rate"`   // 平台默认分成比例
	MaxSaleAmount float64 `mapstructure:"max_sale_amount"` // 单笔成交金额上限
}

// AttributionConfig 归因配置
type AttributionConfig struct {
	WindowDays         int `mapstructure:"window_days"`          // 归因窗口天数
	ClickDedupeSeconds int `mapstructure:"click_dedupe_seconds"` // 点击去重窗口秒数
}

// FraudConfig 风控配置
type FraudConfig struct {
	CacheTTLSeconds      int `mapstructure:"cache_ttl_seconds"`      // 评分缓存时长
	VelocityWindowHours  int `mapstructure:"velocity_window_hours"`  // 推荐频率统计窗口
	VelocityMaxReferrals int `mapstructure:"velocity_max_referrals"` // 窗口内推荐数阈值
	FingerprintMinShared int `mapstructure:"fingerprint_min_shared"` // 指纹共享账号数阈值
	RepeatedAmountWindow int `mapstructure:"repeated_amount_window"` // 相同金额统计窗口（小时）
	RepeatedAmountMin    int `mapstructure:"repeated_amount_min"`    // 相同金额笔数阈值
	ChargebackWindowDays int `mapstructure:"chargeback_window_days"` // 退款历史统计窗口
	ChargebackMin        int `mapstructure:"chargeback_min"`         // 退款笔数阈值
	BurstWindowMinutes   int `mapstructure:"burst_window_minutes"`   // 转化爆发统计窗口
	BurstMin             int `mapstructure:"burst_min"`              // 爆发笔数阈值
}

// BonusConfig 首次推荐奖励配置
type BonusConfig struct {
	Amount         float64 `mapstructure:"amount"`           // 奖励金额
	MinMemberShare float64 `mapstructure:"min_member_share"` // 触发奖励的最低推荐人份额
	HoldDays       int     `mapstructure:"hold_days"`        // 确认保留期天数
}

// LeaderboardConfig 排行榜配置
type LeaderboardConfig struct {
	RefreshIntervalSeconds int `mapstructure:"refresh_interval_seconds"` // 快照刷新间隔
	CacheTTLSeconds        int `mapstructure:"cache_ttl_seconds"`        // 榜单缓存时长
	DefaultLimit           int `mapstructure:"default_limit"`            // 默认返回条数
	MaxLimit               int `mapstructure:"max_limit"`                // 最大返回条数
}

// ProcessorConfig 事件处理配置
type ProcessorConfig struct {
	StoreTimeoutMS          int `mapstructure:"store_timeout_ms"`           // 单次存储操作超时
	MaxAttempts             int `mapstructure:"max_attempts"`               // 暂时性失败重试上限
	RetryBackoffMS          int `mapstructure:"retry_backoff_ms"`           // 重试退避基数
	RefundRetryDelaySeconds int `mapstructure:"refund_retry_delay_seconds"` // 乱序退款延迟重试间隔
	RefundMaxAttempts       int `mapstructure:"refund_max_attempts"`        // 乱序退款重试上限
}

// ReconcileConfig 对账配置
type ReconcileConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"` // 周期对账间隔
	BatchSize       int `mapstructure:"batch_size"`       // 每批处理会员数
}

// Load 从 config.yml 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")     // 从当前目录查找
	viper.AddConfigPath("./")    // 备用路径
	viper.AddConfigPath("../")   // 如果从 cmd/server 运行
	viper.AddConfigPath("./etc") // etc 文件夹

	// 设置默认值（可选）
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("app.default_creator_name", "Default Creator")
	viper.SetDefault("app.default_creator_slug", "default")
	viper.SetDefault("log.dir", "")
	viper.SetDefault("log.filename", "refledger.log")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 7)
	viper.SetDefault("log.max_age_days", 30)
	viper.SetDefault("log.compress", true)
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "./db/refledger.db")
	viper.SetDefault("database.pool.max_open_conns", 1)
	viper.SetDefault("database.pool.max_idle_conns", 1)
	viper.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	viper.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "127.0.0.1")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.prefix", "rl")
	viper.SetDefault("queue.enabled", true)
	viper.SetDefault("queue.host", "127.0.0.1")
	viper.SetDefault("queue.port", 6379)
	viper.SetDefault("queue.password", "")
	viper.SetDefault("queue.db", 1)
	viper.SetDefault("queue.concurrency", 10)
	viper.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	viper.SetDefault("cors.allowed_origins", []string{"*"})
	viper.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
		"X-CSRF-Token",
	})
	viper.SetDefault("cors.allow_credentials", true)
	viper.SetDefault("cors.max_age", 600)
	viper.SetDefault("security.webhook_rate_limit.window_seconds", 60)
	viper.SetDefault("security.webhook_rate_limit.max_requests", 600)
	viper.SetDefault("security.webhook_rate_limit.block_seconds", 60)
	viper.SetDefault("security.click_rate_limit.window_seconds", 60)
	viper.SetDefault("security.click_rate_limit.max_requests", 120)
	viper.SetDefault("security.click_rate_limit.block_seconds", 300)
	viper.SetDefault("commission.member_rate", 0.10)
	viper.SetDefault("commission.creator_rate", 0.70)
	viper.SetDefault("commission.platform_rate", 0.20)
	viper.SetDefault("commission.max_sale_amount", 100000)
	viper.SetDefault("attribution.window_days", 30)
	viper.SetDefault("attribution.click_dedupe_seconds", 600)
	viper.SetDefault("fraud.cache_ttl_seconds", 180)
	viper.SetDefault("fraud.velocity_window_hours", 24)
	viper.SetDefault("fraud.velocity_max_referrals", 5)
	viper.SetDefault("fraud.fingerprint_min_shared", 2)
	viper.SetDefault("fraud.repeated_amount_window", 48)
	viper.SetDefault("fraud.repeated_amount_min", 3)
	viper.SetDefault("fraud.chargeback_window_days", 90)
	viper.SetDefault("fraud.chargeback_min", 2)
	viper.SetDefault("fraud.burst_window_minutes", 10)
	viper.SetDefault("fraud.burst_min", 3)
	viper.SetDefault("bonus.amount", 5)
	viper.SetDefault("bonus.min_member_share", 1)
	viper.SetDefault("bonus.hold_days", 7)
	viper.SetDefault("leaderboard.refresh_interval_seconds", 300)
	viper.SetDefault("leaderboard.cache_ttl_seconds", 60)
	viper.SetDefault("leaderboard.default_limit", 10)
	viper.SetDefault("leaderboard.max_limit", 100)
	viper.SetDefault("processor.store_timeout_ms", 3000)
	viper.SetDefault("processor.max_attempts", 3)
	viper.SetDefault("processor.retry_backoff_ms", 200)
	viper.SetDefault("processor.refund_retry_delay_seconds", 60)
	viper.SetDefault("processor.refund_max_attempts", 5)
	viper.SetDefault("reconcile.interval_minutes", 60)
	viper.SetDefault("reconcile.batch_size", 200)

	// 环境变量支持
	viper.AutomaticEnv()                                   // 自动读取环境变量
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 将 . 替换为 _ (例如 server.port -> SERVER_PORT)

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}

	return &cfg
}
