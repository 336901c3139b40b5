package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"city.newnan/mc-console/internal/config"
	"city.newnan/mc-console/internal/db"
	"city.newnan/mc-console/internal/middleware"
	"city.newnan/mc-console/internal/router"
	"city.newnan/mc-console/internal/service"
	"city.newnan/mc-console/internal/sse"
	"city.newnan/mc-console/internal/websocket"
	"city.newnan/mc-console/pkg/mccontrol"
)

// @title           Minecraft Console API
// @version         1.0
// @description     Minecraft 服务器 RCON 管理控制台 API
// @termsOfService  http://swagger.io/terms/

// @contact.name   API 支持
// @contact.url    http://www.newnan.city/support
// @contact.email  support@newnan.city

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        Authorization
// @description                 Bearer 认证, 例如: "Bearer {token}"

func main() {
	// 加载配置
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, config.Help())
		os.Exit(1)
	}

	// 初始化数据库
	if err := db.InitDB(cfg); err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}
	defer db.CloseDB()

	// 数据库模型自动迁移
	if err := db.Migrate(); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	// 初始化Casbin
	if err := middleware.InitCasbin(cfg.CasbinModelPath); err != nil {
		log.Fatalf("初始化Casbin失败: %v", err)
	}

	// 设置初始角色和权限
	roleService := service.NewRoleService()
	if err := roleService.SetupInitialRoles(); err != nil {
		log.Printf("设置初始角色和权限失败: %v", err)
	}

	// 确保管理员账号存在
	if err := service.NewOperatorService(cfg).EnsureAdmin(cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatalf("创建管理员账号失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// RCON地址：直接配置或通过K8s查找Pod
	resolver, err := newResolver(cfg)
	if err != nil {
		log.Fatalf("初始化RCON地址解析失败: %v", err)
	}

	session := mccontrol.NewSession(mccontrol.SessionConfig{
		Address:  resolver,
		Password: cfg.RconPassword,
		Timeout:  cfg.RconTimeout,
	})

	// 状态面板同时作为消息引用的持久化存储
	board := service.NewBoardService(sse.GlobalBroker, websocket.GlobalManager)
	state := mccontrol.NewSharedState(session, mccontrol.RestoreMessageRef(ctx, board, cfg.ListChannelID))
	defer state.Close()

	parseMode := mccontrol.ModeUnstructured
	if cfg.HasListJSON {
		parseMode = mccontrol.ModeStructured
	}
	loop := mccontrol.NewControlLoop(state, board, board, mccontrol.LoopConfig{
		ChannelID:       cfg.ListChannelID,
		Interval:        cfg.ListInterval,
		Parser:          mccontrol.NewStatusParser(parseMode),
		Filter:          mccontrol.NewModerationFilter(cfg.ModerationPlaceholder),
		RenameCommand:   cfg.RenameCommand,
		KickCommand:     cfg.KickCommand,
		KickReason:      cfg.KickReason,
		ShutdownCommand: cfg.ShutdownCommand,
	})

	console := service.NewConsoleService(state, cfg.ListChannelID)
	whitelist := service.NewWhitelistService(cfg.ServerDir, state, service.NewMojangClient(cfg.MojangAPI, nil))
	crash := service.NewCrashService(cfg.ServerDir, cfg.CrashRateLimit)

	// WebSocket 客户端也可以执行控制台命令
	websocket.GlobalManager.SetCommandHandler(func(ctx context.Context, client *websocket.Client, command string) (interface{}, error) {
		return console.Run(ctx, client.Username, command)
	})

	// 启动WebSocket管理器
	websocket.GlobalManager.Start(ctx)

	// 启动SSE代理
	sse.GlobalBroker.Start(ctx)

	// 初始化路由
	r := router.SetupRouter(cfg, router.Services{
		Console:   console,
		Board:     board,
		Whitelist: whitelist,
		Crash:     crash,
		Broker:    sse.GlobalBroker,
		Hub:       websocket.GlobalManager,
	})

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)

	// 状态消息控制循环
	g.Go(func() error {
		return loop.Run(gctx)
	})

	// 崩溃报告监听失败不影响其他功能
	g.Go(func() error {
		if err := crash.Watch(gctx, sse.GlobalBroker); err != nil {
			log.Printf("崩溃报告监听已停止: %v", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Printf("服务器开始运行，监听: %s:%d", cfg.ServerHost, cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("监听失败: %w", err)
		}
		return nil
	})

	// 等待中断信号以优雅地关闭服务器
	g.Go(func() error {
		<-gctx.Done()
		log.Println("正在关闭服务器...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("服务器被强制关闭: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("服务器异常退出: %v", err)
		return
	}

	log.Println("服务器优雅退出")
}

// newResolver 未设置 K8S_RUN_MODE 时使用固定地址
func newResolver(cfg *config.Config) (mccontrol.AddressResolver, error) {
	if cfg.K8sRunMode == "" {
		return mccontrol.StaticAddress(cfg.RconAddr), nil
	}

	k8sConfig := mccontrol.K8sConfig{
		RunMode:          cfg.K8sRunMode,
		KubeconfigPath:   cfg.K8sKubeconfig,
		Namespace:        cfg.K8sNamespace,
		PodLabelSelector: cfg.K8sPodSelector,
	}
	clientset, err := mccontrol.NewKubernetesClient(k8sConfig)
	if err != nil {
		return nil, err
	}
	return mccontrol.NewPodResolver(clientset, k8sConfig, cfg.K8sRconPort), nil
}
