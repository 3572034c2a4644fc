package httptransport

import (
	"context"
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempmail/inbox/internal/config"
	"tempmail/inbox/internal/health"
	"tempmail/inbox/internal/middleware"
	"tempmail/inbox/internal/monitoring"
	"tempmail/inbox/internal/security"
	"tempmail/inbox/internal/service"
	"tempmail/inbox/internal/websocket"
)

// InboundQueue 接收待处理的邮件任务
type InboundQueue interface {
	Submit(ctx context.Context, task func()) error
}

// InboundHandler 处理一封原始邮件
type InboundHandler interface {
	Handle(ctx context.Context, raw []byte)
}

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	mailboxes      *service.MailboxService
	emails         *service.EmailService
	attachments    *security.AttachmentPolicy
	queue          InboundQueue
	inbound        InboundHandler
	inboundSecret  string
	maxMessageSize int64
	log            *zap.Logger
}

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	MailboxService *service.MailboxService
	EmailService   *service.EmailService
	InboundQueue   InboundQueue   // 可选：为空时不注册 HTTP 收信接口
	InboundHandler InboundHandler // 可选
	WebSocketHub   *websocket.Hub // 可选
	Health         *health.HealthChecker
	Metrics        *monitoring.Metrics
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()
	log := deps.Logger.Named("http")

	var onPanic func()
	if deps.Metrics != nil {
		onPanic = deps.Metrics.RecordPanic
	}
	router.Use(middleware.RecoveryHandler(log, onPanic))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.SecurityHeaders())
	if deps.Metrics != nil {
		router.Use(middleware.NewMonitoringMiddleware(deps.Metrics).HTTPMetrics())
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Inbound-Secret"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowAllOrigins = true
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	handler := &Handler{
		mailboxes:      deps.MailboxService,
		emails:         deps.EmailService,
		attachments:    security.NewAttachmentPolicy(),
		queue:          deps.InboundQueue,
		inbound:        deps.InboundHandler,
		inboundSecret:  deps.Config.Ingest.InboundSecret,
		maxMessageSize: deps.Config.SMTP.MaxMessageBytes,
		log:            log,
	}

	// 健康检查
	if deps.Health != nil {
		router.GET("/health", handler.healthHandler(deps.Health))
		router.GET("/health/live", gin.WrapF(deps.Health.LiveHandler()))
		router.GET("/health/ready", gin.WrapF(deps.Health.ReadyHandler()))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	api := router.Group("/api")
	{
		small := middleware.BodySizeLimit(middleware.SmallBodyLimit)

		api.GET("/config", handler.getConfig)

		api.POST("/mailboxes", small, handler.createMailbox)
		api.GET("/mailboxes/:address", handler.getMailbox)
		api.DELETE("/mailboxes/:address", handler.deleteMailbox)
		api.GET("/mailboxes/:address/emails", handler.listEmails)

		api.GET("/emails/:id", handler.getEmail)
		api.DELETE("/emails/:id", handler.deleteEmail)
		api.GET("/emails/:id/attachments", handler.listAttachments)

		api.GET("/attachments/:id", handler.downloadAttachment)

		// 共享密钥为空时不开放 HTTP 收信
		if handler.inboundSecret != "" && handler.queue != nil && handler.inbound != nil {
			limit := handler.maxMessageSize
			if limit <= 0 {
				limit = middleware.DefaultBodyLimit
			}
			api.POST("/inbound", middleware.BodySizeLimit(limit), handler.receiveInbound)
		}

		if deps.WebSocketHub != nil {
			api.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))
		}
	}

	return router
}

func (h *Handler) healthHandler(hc *health.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		results, healthy := hc.CheckHealth()
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": results})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": results})
	}
}
