package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	v1 "city.newnan/mc-console/api/v1"
	"city.newnan/mc-console/internal/config"
	"city.newnan/mc-console/internal/middleware"
	"city.newnan/mc-console/internal/service"
	"city.newnan/mc-console/internal/sse"
	"city.newnan/mc-console/internal/websocket"
)

// Services 路由依赖的服务
type Services struct {
	Console   *service.ConsoleService
	Board     *service.BoardService
	Whitelist *service.WhitelistService
	Crash     *service.CrashService
	Broker    *sse.Broker
	Hub       *websocket.Manager
}

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, svc Services) *gin.Engine {
	// 设置Gin模式
	gin.SetMode(cfg.Mode)

	// 创建路由引擎
	r := gin.New()

	// 使用中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// 配置跨域
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(corsConfig))

	// 默认路由
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "欢迎使用Minecraft Console API",
		})
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// API文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 创建控制器实例
	operatorController := v1.NewOperatorController(cfg)
	roleController := v1.NewRoleController()
	consoleController := v1.NewConsoleController(svc.Console)
	boardController := v1.NewBoardController(svc.Board, svc.Broker, svc.Hub)
	whitelistController := v1.NewWhitelistController(svc.Whitelist)
	crashController := v1.NewCrashController(svc.Crash, svc.Broker)
	realtimeController := v1.NewRealtimeController(svc.Broker, svc.Hub)

	// API v1 路由组
	api := r.Group("/api/v1")
	{
		// 公开路由
		api.POST("/operator/login", operatorController.Login)
		api.POST("/operator/logout", operatorController.Logout)

		// 需要认证和权限验证的路由，普通成员与管理员的权限见 service.RoleService
		authorized := api.Group("")
		authorized.Use(middleware.JWTAuth(cfg), middleware.Authorize())
		{
			// 当前操作员
			authorized.GET("/operator/profile", operatorController.GetProfile)
			authorized.GET("/operator/refresh-token", operatorController.RefreshToken)

			// 控制台
			authorized.GET("/console/state", consoleController.State)
			authorized.POST("/console/run", consoleController.Run)
			authorized.POST("/restart", consoleController.ScheduleRestart)

			// 状态面板
			authorized.GET("/board/:channel", boardController.Get)
			authorized.GET("/board/:channel/events", boardController.Events)
			authorized.GET("/board/:channel/ws", boardController.WebSocket)
			authorized.DELETE("/board/:channel/messages/:id", boardController.DeleteMessage)

			// 白名单
			authorized.GET("/whitelist", whitelistController.List)
			authorized.POST("/whitelist", whitelistController.Add)
			authorized.DELETE("/whitelist/:username", whitelistController.Remove)

			// 崩溃报告
			authorized.GET("/crash", crashController.Latest)
			authorized.GET("/crash/events", crashController.Events)

			// 操作员管理
			authorized.GET("/operators", operatorController.ListOperators)
			authorized.POST("/operators", operatorController.CreateOperator)
			authorized.GET("/operators/:id", operatorController.GetOperator)
			authorized.DELETE("/operators/:id", operatorController.DeleteOperator)

			// 角色
			authorized.GET("/roles", roleController.ListRoles)
			authorized.GET("/roles/:name/permissions", roleController.GetRolePermissions)

			// 实时通信
			authorized.GET("/realtime/stats", realtimeController.GetRealtimeStats)
		}
	}

	return r
}
