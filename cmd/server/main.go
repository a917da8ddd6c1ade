package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // 确保在精简镜像中也能识别时区

	"github.com/joho/godotenv"
	"github.com/user/cineverse/internal/auth"
	"github.com/user/cineverse/internal/config"
	"github.com/user/cineverse/internal/handler"
	"github.com/user/cineverse/internal/metrics"
	"github.com/user/cineverse/internal/model"
	"github.com/user/cineverse/internal/repository"
	"github.com/user/cineverse/internal/router"
	"github.com/user/cineverse/internal/service"
	"github.com/user/cineverse/internal/session"
	"github.com/user/cineverse/internal/storage"
	"github.com/user/cineverse/internal/utils"
)

func main() {
	// 加载环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，使用系统环境变量")
	}

	// 加载配置
	cfg := config.Load()

	// 初始化数据库
	db, err := repository.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	if err := repository.Migrate(db); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	// 初始化仓库
	repos := repository.NewRepositories(db)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 注销名单：配置了 Redis 时多实例共享，否则进程内
	revoker := auth.NewRevoker(ctx, cfg.RedisURL)
	authSvc := auth.NewService(repos.Account, revoker, cfg.AppSecret, cfg.JWTExpiry)

	// 头像存储
	avatars, err := storage.NewOsBucket(cfg.StorageDir, "avatars", cfg.StoragePublic)
	if err != nil {
		log.Fatalf("初始化头像存储失败: %v", err)
	}

	collector := metrics.NewCollector()
	catalog := service.NewCatalogService(cfg, utils.NewHTTPClient(10*time.Second), collector)

	manager, err := session.NewManager(repository.NewStore(repos), cfg.SessionCacheSize, session.Options{
		Mode:           session.SyncMode(cfg.StatusSyncMode),
		Storage:        avatars,
		Auth:           authSvc,
		HTTPClient:     utils.NewSafeClient(15 * time.Second),
		MaxAvatarBytes: cfg.AvatarMaxBytes,
		Metrics:        collector,
	})
	if err != nil {
		log.Fatalf("初始化会话缓存失败: %v", err)
	}

	// 登录后预加载缓存，登出时销毁
	unsubscribe := authSvc.Subscribe(func(evt model.AuthEvent) {
		if evt.Kind == model.SignedIn {
			go manager.HandleAuthEvent(context.WithoutCancel(ctx), evt)
			return
		}
		manager.HandleAuthEvent(ctx, evt)
	})
	defer unsubscribe()

	// 启动定时清理任务
	cleanupSvc := service.NewCleanupService(repos, manager, catalog)
	cleanupSvc.Start(ctx)

	// 初始化 Handler 并注册路由
	h := handler.NewHandler(cfg, repos, authSvc, manager, catalog, avatars)
	r := router.New(h, collector)

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// 在 goroutine 中启动服务器，这样我们就可以监听信号
	go func() {
		log.Printf("服务器启动于 http://localhost:%s (同步模式: %s)", cfg.Port, cfg.StatusSyncMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("正在关闭服务器...")

	// 停止清理任务
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("服务器强制关闭:", err)
	}

	log.Println("服务器已退出")
}
