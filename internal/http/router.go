package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloudedbasement/control-panel/internal/config"
	"github.com/cloudedbasement/control-panel/internal/service"
)

// RateLimiter 简单的内存速率限制器
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int           // 最大请求数
	window   time.Duration // 时间窗口
}

// NewRateLimiter 创建速率限制器
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.window)

	// 清理过期请求
	var valid []time.Time
	for _, t := range rl.requests[key] {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}

	// 检查是否超过限制
	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	// 记录新请求
	rl.requests[key] = append(valid, now)
	return true
}

// RateLimitMiddleware 速率限制中间件
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 使用用户 ID 或 IP 作为限制 key
		key := c.GetString("userID")
		if key == "" {
			key = c.ClientIP()
		}

		if !rl.Allow(key) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded, please try again later",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

type Server struct {
	router  *gin.Engine
	handler *Handler
	cfg     *config.Config
	db      *pgxpool.Pool
}

// 全局速率限制器: 每用户每分钟最多 30 次请求
var userRateLimiter = NewRateLimiter(30, time.Minute)

// 服务器操作速率限制器: 每用户每小时最多 10 次 (start/stop/restart/delete)
var actionRateLimiter = NewRateLimiter(10, time.Hour)

// 部署速率限制器: 每用户每小时最多 12 次
var deployRateLimiter = NewRateLimiter(12, time.Hour)

func NewServer(
	cfg *config.Config,
	db *pgxpool.Pool,
	provisionService *service.ProvisionService,
	domainService *service.DomainService,
	paymentService *service.PaymentService,
	deployService *service.DeployService,
) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	handler := NewHandler(provisionService, domainService, paymentService, deployService)

	s := &Server{
		router:  router,
		handler: handler,
		cfg:     cfg,
		db:      db,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "control-panel",
		})
	})

	// Internal API - called by the billing edge and user-portal
	internal := s.router.Group("/api/internal")
	internal.Use(InternalAuthMiddleware(s.cfg.InternalSecret))
	{
		// Payments (billing edge posts settled charges here)
		internal.POST("/payments", s.handler.RecordPayment)

		// Provisioning
		internal.POST("/provision", s.handler.Provision)

		// User server queries (called by user-portal)
		internal.GET("/users/:user_id/server", s.handler.GetUserServer)
	}

	// User API - requires JWT authentication
	user := s.router.Group("/api/v1")
	user.Use(JWTAuthMiddleware(s.cfg.JWT.SecretKey))
	user.Use(RateLimitMiddleware(userRateLimiter)) // 用户 API 速率限制
	{
		// Server management
		user.GET("/my/server", s.handler.GetMyServer)
		user.GET("/my/server/events", s.handler.GetMyServerEvents)
		// 电源操作和删除使用更严格的速率限制
		user.POST("/my/server/action", RateLimitMiddleware(actionRateLimiter), s.handler.ServerAction)
		user.DELETE("/my/server", RateLimitMiddleware(actionRateLimiter), s.handler.DeleteMyServer)

		// Domain management
		user.GET("/my/domains", s.handler.ListMyDomains)
		user.POST("/my/domains", s.handler.AddDomain)
		user.DELETE("/my/domains/:id", s.handler.DeleteDomain)
		user.POST("/my/domains/:id/ssl", s.handler.RequestSSL)

		// Deployments
		user.GET("/my/deployments", s.handler.ListMyDeployments)
		user.POST("/my/deployments", RateLimitMiddleware(deployRateLimiter), s.handler.Deploy)

		// Payment history
		user.GET("/my/payments", s.handler.ListMyPayments)
	}

	// Internal Admin API (供 user-portal 调用，需要 Internal Secret)
	internalAdmin := s.router.Group("/api/internal/admin")
	internalAdmin.Use(InternalAuthMiddleware(s.cfg.InternalSecret))
	{
		// DB Browser API (面板数据表浏览)
		dbAdminHandler := NewDBAdminHandler(s.db, s.cfg.Database.Schema)
		dbAdmin := internalAdmin.Group("/db")
		{
			dbAdmin.GET("/overview", dbAdminHandler.Overview)
			dbAdmin.GET("/tables", dbAdminHandler.ListTables)
			dbAdmin.GET("/tables/:table/schema", dbAdminHandler.GetTableSchema)
			dbAdmin.GET("/tables/:table/rows", dbAdminHandler.QueryRows)
		}
	}
}

func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
