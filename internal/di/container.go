package di

import (
	"context"
	"fmt"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"tempmail/inbox/internal/cache"
	"tempmail/inbox/internal/config"
	"tempmail/inbox/internal/health"
	"tempmail/inbox/internal/ingest"
	"tempmail/inbox/internal/logger"
	"tempmail/inbox/internal/monitoring"
	"tempmail/inbox/internal/pool"
	"tempmail/inbox/internal/service"
	"tempmail/inbox/internal/smtp"
	"tempmail/inbox/internal/storage"
	"tempmail/inbox/internal/storage/memory"
	redisstore "tempmail/inbox/internal/storage/redis"
	sqlstore "tempmail/inbox/internal/storage/sql"
	httptransport "tempmail/inbox/internal/transport/http"
	"tempmail/inbox/internal/websocket"
)

const migrateTimeout = 30 * time.Second

// BuildContainer 创建并配置依赖注入容器
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// 配置
	if err := container.Provide(config.Load); err != nil {
		return nil, err
	}

	// 日志
	if err := container.Provide(func(cfg *config.Config) (*zap.Logger, error) {
		return logger.New(cfg.Log)
	}); err != nil {
		return nil, err
	}

	// 存储
	if err := container.Provide(NewStore); err != nil {
		return nil, err
	}

	// 监控
	if err := container.Provide(func() *prometheus.Registry {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		return reg
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(monitoring.NewMetrics); err != nil {
		return nil, err
	}
	if err := container.Provide(func(store storage.Store, log *zap.Logger) *health.HealthChecker {
		return health.NewHealthChecker(store, log.Named("health"))
	}); err != nil {
		return nil, err
	}

	// 收信处理协程池
	if err := container.Provide(func(cfg *config.Config, log *zap.Logger) *pool.WorkerPool {
		return pool.NewWorkerPool(cfg.Ingest.Workers, cfg.Ingest.QueueSize, log.Named("pool"))
	}); err != nil {
		return nil, err
	}

	// WebSocket 推送
	if err := container.Provide(func(store storage.Store, cfg *config.Config, log *zap.Logger) *websocket.Hub {
		return websocket.NewHub(store, cfg.CORS.AllowedOrigins, log.Named("websocket"))
	}); err != nil {
		return nil, err
	}

	// 收信流程
	if err := container.Provide(func(store storage.Store, hub *websocket.Hub, metrics *monitoring.Metrics, log *zap.Logger) *ingest.Service {
		return ingest.NewService(store, ingest.NewEnmimeParser(), log.Named("ingest"),
			ingest.WithNotifier(hub),
			ingest.WithMetrics(metrics),
		)
	}); err != nil {
		return nil, err
	}

	// 业务服务
	if err := container.Provide(func(store storage.Store, cfg *config.Config, metrics *monitoring.Metrics, log *zap.Logger) *service.MailboxService {
		svc := service.NewMailboxService(store, cfg.Mailbox, log.Named("mailbox"))
		svc.SetMetrics(metrics)
		return svc
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(store storage.Store, log *zap.Logger) *service.EmailService {
		return service.NewEmailService(store, log.Named("email"))
	}); err != nil {
		return nil, err
	}

	// HTTP 路由
	if err := container.Provide(NewRouter); err != nil {
		return nil, err
	}

	// SMTP 服务器
	if err := container.Provide(func(cfg *config.Config, in *ingest.Service, workers *pool.WorkerPool, log *zap.Logger) *gosmtp.Server {
		backend := smtp.NewBackend(cfg.SMTP, cfg.Mailbox.AllowedDomains, in, workers, log.Named("smtp"))
		return smtp.NewServer(backend, cfg.SMTP)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// RouterParams 是构建 HTTP 路由所需的依赖
type RouterParams struct {
	dig.In

	Config  *config.Config
	Mailbox *service.MailboxService
	Email   *service.EmailService
	Ingest  *ingest.Service
	Workers *pool.WorkerPool
	Hub     *websocket.Hub
	Health  *health.HealthChecker
	Metrics *monitoring.Metrics
	Logger  *zap.Logger
}

// NewRouter 组装 HTTP 路由，非开发模式下 Gin 以 release 模式运行
func NewRouter(p RouterParams) *gin.Engine {
	if !p.Config.Log.Development && gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	return httptransport.NewRouter(httptransport.RouterDependencies{
		Config:         p.Config,
		MailboxService: p.Mailbox,
		EmailService:   p.Email,
		InboundQueue:   p.Workers,
		InboundHandler: p.Ingest,
		WebSocketHub:   p.Hub,
		Health:         p.Health,
		Metrics:        p.Metrics,
		Logger:         p.Logger,
	})
}

// NewStore 按配置创建存储：未配置数据库时使用内存存储。
// 数据库存储外层加查询缓存，启用 Redis 时使用 Redis，否则使用进程内缓存。
func NewStore(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	var store storage.Store

	if cfg.Database.Type == "" {
		log.Info("using in-memory storage")
		store = memory.NewStore()
	} else {
		db, err := sqlstore.Open(cfg.Database)
		if err != nil {
			return nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
		defer cancel()
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}

		log.Info("using database storage", zap.String("type", cfg.Database.Type))
		store = db
	}

	if !cfg.Redis.Enabled {
		if cfg.Database.Type == "" || cfg.Cache.LocalSize <= 0 {
			return store, nil
		}
		local := cache.NewLocalCache(cfg.Cache.LocalSize, cfg.Cache.LocalTTL)
		return redisstore.NewCachedStore(store, local, cfg.Cache.LocalTTL, log.Named("cache")), nil
	}

	client, err := redisstore.New(cfg.Redis, log.Named("redis"))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return redisstore.NewCachedStore(store, client, cfg.Redis.MailboxTTL, log.Named("cache")), nil
}
