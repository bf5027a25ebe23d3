package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"giveaway-engine/internal/common/config"
	"giveaway-engine/internal/common/logger"
	"giveaway-engine/internal/common/middleware"
	giveawayhttp "giveaway-engine/internal/features/giveaway/delivery/http"
	giveawayredis "giveaway-engine/internal/features/giveaway/repository/redis"
	giveawayservice "giveaway-engine/internal/features/giveaway/service"
	settingshttp "giveaway-engine/internal/features/settings/delivery/http"
	settingsredis "giveaway-engine/internal/features/settings/repository/redis"
	settingsservice "giveaway-engine/internal/features/settings/service"
	"giveaway-engine/internal/platform/amari"
	"giveaway-engine/internal/platform/discord"
	platformredis "giveaway-engine/internal/platform/redis"
)

func main() {
	cfg := config.Load()
	logger.Init("giveaway-engine", cfg.Debug)

	logger.Info().Bool("debug", cfg.Debug).Msg("Starting giveaway engine")

	ctx := context.Background()
	redisClient, err := platformredis.Open(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	chatClient := discord.NewClient(cfg.Discord.BotToken, cfg.Discord.APIBase)
	amariClient := amari.NewClient(cfg.Amari.Token, cfg.Amari.APIBase)

	giveawayRepo := giveawayredis.NewRedisGiveawayRepository(redisClient)
	settingsRepo := settingsredis.NewRedisSettingsRepository(redisClient)

	settingsSvc := settingsservice.NewService(settingsRepo, chatClient)
	evaluator := giveawayservice.NewEvaluator(amariClient, giveawayRepo)
	engine := giveawayservice.NewEngine(chatClient, settingsSvc, giveawayRepo, settingsSvc, evaluator)
	supervisor := giveawayservice.NewSupervisor(giveawayRepo, engine,
		cfg.Scheduler.PollInterval, cfg.Scheduler.SweepInterval)

	if err := supervisor.Restore(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to restore giveaway state")
	}
	go supervisor.Run(ctx)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept"}
	router.Use(cors.New(corsConfig))

	v1 := router.Group("/api/v1")
	giveawayhttp.NewGiveawayHandler(giveawayRepo, engine, supervisor, chatClient).RegisterRoutes(v1)
	settingshttp.NewSettingsHandler(settingsSvc).RegisterRoutes(v1)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "giveaway-engine",
		})
	})
	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   "redis unavailable",
				"details": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down...")

	supervisor.StopAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}
