package main

import (
	"context"
	"errors"
	"keyshop/internal/domain/loyalty"
	"keyshop/internal/domain/notification/repository"
	notificationService "keyshop/internal/domain/notification/service"
	"keyshop/internal/domain/notification/sink"
	"keyshop/internal/domain/order"
	orderService "keyshop/internal/domain/order/service"
	"keyshop/internal/pkg/config"
	"keyshop/internal/pkg/events"
	"keyshop/internal/pkg/middleware"
	"keyshop/internal/pkg/push"
	"keyshop/internal/pkg/registry"
	"keyshop/internal/pkg/storage"
	"keyshop/internal/pkg/txn"
	"keyshop/pkg/cache"
	"keyshop/pkg/database"
	"keyshop/pkg/logger"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	// 模块通过 init 自动注册
	_ "keyshop/internal/domain/license"
	_ "keyshop/internal/domain/notification"
	_ "keyshop/internal/domain/payment"
	_ "keyshop/internal/domain/product"
	_ "keyshop/internal/domain/promo"
	_ "keyshop/internal/domain/user"
	_ "keyshop/internal/domain/wallet"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	// 1. 配置与日志
	config.LoadConfig()
	cfg := &config.GlobalConfig
	if err := logger.Init(cfg.App.Env, cfg.App.Debug); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	// 2. 基础设施
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := database.InitDatabase()
	tm := txn.NewManager(db)

	// Redis 只承担缓存和幂等快速通道，不可用时退化为进程内缓存
	var shared cache.CacheService
	rdb, err := database.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Log.Warn("redis unavailable, falling back to in-memory cache", zap.Error(err))
		shared = cache.NewMemoryCache()
	} else {
		logger.Log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
		shared = cache.NewRedisCache(rdb, "keyshop")
	}
	go database.NewPoolMonitor(db, 15*time.Second, 50).Run(ctx)

	var files storage.FileStore
	if cfg.OSS.Endpoint != "" {
		store, err := storage.NewAliyunOSSStore(cfg.OSS)
		if err != nil {
			logger.Log.Fatal("init oss store failed", zap.Error(err))
		}
		files = store
	}

	// 3. 通知派发：outbox -> worker pool -> sinks
	sinks := sink.MultiSink{sink.NewLogSink(logger.Log)}
	if pushSvc, err := push.NewAliyunPushService(cfg.Push); err == nil {
		sinks = append(sinks, sink.NewPushSink(pushSvc))
	} else {
		logger.Log.Info("push sink disabled", zap.Error(err))
	}
	var producer *events.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Buffer)
		producer.Start(ctx)
		sinks = append(sinks, sink.NewEventSink(producer))
	}

	outboxRepo := repository.NewOutboxRepository(db)
	dispatcher := notificationService.NewDispatcher(outboxRepo, sinks, cfg.Outbox.Workers, cfg.Outbox.Buffer, cfg.Outbox.MaxRetry)
	dispatcher.Start()
	relay := notificationService.NewRelay(outboxRepo, dispatcher, time.Duration(cfg.Outbox.RelayIntervalSeconds)*time.Second)
	go relay.Run(ctx)

	// 4. 路由与中间件
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", "X-Trace-ID"},
		ExposeHeaders:   []string{"X-Trace-ID", "X-Request-ID"},
		MaxAge:          12 * time.Hour,
	}))
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())
	ipLimiter := middleware.NewKeyedRateLimiter(rate.Limit(50), 100)
	r.Use(middleware.RateLimitMiddleware(ipLimiter, middleware.ByClientIP))
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ipLimiter.Sweep(10 * time.Minute)
			}
		}
	}()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	mctx := &registry.ModuleContext{
		DB:     db,
		Router: r,
		Config: cfg,
		TM:     tm,
		Cache:  shared,
		Files:  files,
		Outbox: notificationService.NewOutbox(outboxRepo, tm, dispatcher),
		Tiers:  loyalty.NewCalculatorFromConfig(cfg.Shop.Tiers),
	}
	if err := registry.InitModules(mctx); err != nil {
		logger.Log.Fatal("init modules failed", zap.Error(err))
	}

	// 5. 超时订单清理
	go orderService.RunExpirySweeper(ctx, order.NewServices(mctx).Order,
		time.Duration(cfg.Shop.ExpireSweepSeconds)*time.Second)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}
	go func() {
		logger.Log.Info("server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("server shutdown failed", zap.Error(err))
	}
	dispatcher.Stop()
	if producer != nil {
		producer.WaitClosed()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
