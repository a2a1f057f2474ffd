package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/api"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/archive"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/relay"
	"github.com/Crit-Fumble/fumblebot-sub002/internal/ws"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/config"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/health"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/logger"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/middleware"
	"github.com/Crit-Fumble/fumblebot-sub002/shared/observability"
	"github.com/Crit-Fumble/fumblebot-sub002/shared/redis"
	"golang.org/x/time/rate"
)

func main() {
	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"
	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("starting fumblebot background service", "env", cfg.Server.Env)

	if cfg.Features.EnableTracing {
		shutdownTracing := observability.SetupTracing("fumblebot")
		defer shutdownTracing()
	}
	mp := observability.SetupPrometheusMetrics(cfg.Server.MetricsAddr)
	metrics := observability.NewMetrics(mp)

	redisClient := redis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	authStore := relay.NewRedisAuthStore(redisClient)

	manager := relay.NewManager(cfg.Remote, authStore, metrics, log)

	var archiveStore *archive.Archive
	var hubArchive ws.Archiver
	if cfg.Features.EnableArchive {
		store, err := archive.New(cfg, log)
		if err != nil {
			log.LogError(err, "failed to open event archive, continuing without it")
		} else {
			archiveStore = store
			hubArchive = store
		}
	}

	hub := ws.NewHub(manager, hubArchive, log)
	manager.SetDispatcher(hub)
	manager.SetStatusListener(hub.BroadcastStatus)
	go hub.Run()

	if err := manager.Start(context.Background()); err != nil {
		log.LogError(err, "failed to restore session state")
		os.Exit(1)
	}

	checker := health.NewChecker(log, 30*time.Second)
	checker.RegisterRedisCheck(redisClient.Ping)
	checker.RegisterRelayCheck(manager.Status)
	if archiveStore != nil {
		checker.RegisterArchiveCheck(archiveStore.Ping)
	}
	checker.Start()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware(log))

	router.GET("/ws", func(c *gin.Context) { ws.ServeWs(hub, c) })
	router.GET("/health", checker.Handler())

	limiter := middleware.NewRateLimiter(log, middleware.RateLimiterOptions{
		Limit:          rate.Limit(cfg.Security.RateLimit),
		Burst:          cfg.Security.RateLimitBurst,
		ExpiryDuration: time.Hour,
		KeyFunc:        func(c *gin.Context) string { return c.ClientIP() },
	})
	handler := api.NewHandler(manager, hub, archiveStore, log)
	handler.RegisterRoutes(router, limiter)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	go func() {
		log.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "server failed to start")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	manager.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.LogError(err, "server forced to shutdown")
	}

	log.Info("server exited gracefully")
}
