package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blues/agrofund/internal/cache"
	"github.com/blues/agrofund/internal/chain"
	"github.com/blues/agrofund/internal/config"
	"github.com/blues/agrofund/internal/database"
	"github.com/blues/agrofund/internal/handler"
	"github.com/blues/agrofund/internal/logger"
	"github.com/blues/agrofund/internal/logic"
	"github.com/blues/agrofund/internal/notify"
	"github.com/blues/agrofund/internal/router"
	"github.com/blues/agrofund/internal/task"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	// 加载配置
	cfg := config.Load()

	if err := logger.Setup(logger.Options{Level: cfg.Log.Level, Output: cfg.Log.Output, File: cfg.Log.File}); err != nil {
		logger.Fatal("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// 初始化数据库
	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}

	// 初始化链网关
	gateway, err := chain.NewGateway(cfg.Chain)
	if err != nil {
		logger.Fatal("Failed to initialize chain gateway: %v", err)
	}
	defer gateway.Close()

	store, err := newCacheStore(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize cache: %v", err)
	}
	defer store.Close()

	notifier, err := newNotifier(cfg.Notify)
	if err != nil {
		logger.Fatal("Failed to initialize notifier: %v", err)
	}
	defer notifier.Close()

	users := logic.NewUserLogic(db, store, cfg.Cache.UserTTL)
	departments := logic.NewDepartmentLogic(db)
	projects := logic.NewProjectLogic(db, gateway, departments, users, notifier, cfg.Platform.MinGoal())
	projects.SetClaimTimeout(cfg.Chain.DeployTimeout + time.Minute)
	contributions := logic.NewContributionLogic(db, gateway, projects, notifier)
	stats := logic.NewStatisticsLogic(db, gateway, projects)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	r := router.Setup(router.Handlers{
		Projects:      handler.NewProjectHandler(projects),
		Contributions: handler.NewContributionHandler(contributions),
		Stats:         handler.NewStatsHandler(stats),
		Users:         handler.NewUserHandler(users, departments),
	}, map[string]router.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"chain": gateway.Health,
	})

	// 启动定时任务
	var tasks *task.Manager
	if cfg.Task.Enabled {
		interval := time.Duration(cfg.Task.Interval) * time.Second
		tasks, err = task.NewManager(
			task.NewDeploymentRetryJob(projects, interval, cfg.Task.BatchSize),
			task.NewFundingReconcileJob(contributions, interval, cfg.Task.BatchSize),
		)
		if err != nil {
			logger.Fatal("Failed to create scheduler: %v", err)
		}
		if err := tasks.Start(); err != nil {
			logger.Fatal("Failed to start tasks: %v", err)
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 启动服务器
	go func() {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	if tasks != nil {
		tasks.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown: %v", err)
	}
	logger.Info("Server exited")
}

func newCacheStore(cfg *config.Config) (cache.Store, error) {
	if cfg.Cache.Driver != "redis" {
		return cache.NewMemoryStore(time.Minute), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	logger.Info("Using redis cache at %s", cfg.Redis.Addr)
	return cache.NewRedisStore(client), nil
}

func newNotifier(cfg config.NotifyConfig) (notify.Notifier, error) {
	if cfg.WebhookURL == "" {
		return notify.LogNotifier{}, nil
	}
	n, err := notify.NewWebhookNotifier(cfg.WebhookURL, cfg.Timeout, cfg.PoolSize)
	if err != nil {
		return nil, err
	}
	return n, nil
}
