package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/vidtube-api/internal/auth"
	"github.com/noah-isme/vidtube-api/internal/handler"
	"github.com/noah-isme/vidtube-api/internal/middleware"
	"github.com/noah-isme/vidtube-api/internal/repository"
	"github.com/noah-isme/vidtube-api/internal/service"
	"github.com/noah-isme/vidtube-api/pkg/cache"
	"github.com/noah-isme/vidtube-api/pkg/config"
	"github.com/noah-isme/vidtube-api/pkg/database"
	"github.com/noah-isme/vidtube-api/pkg/logger"
	"github.com/noah-isme/vidtube-api/pkg/media"
	corsmiddleware "github.com/noah-isme/vidtube-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/vidtube-api/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	tokens, err := auth.NewTokenManager(cfg.Token)
	if err != nil {
		logr.Sugar().Fatalw("invalid token configuration", "error", err)
	}

	var channelCache service.ChannelCache
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, channel cache disabled", "error", err)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
			channelCache = cacheRepo
		}
	}

	mediaStore, localMediaDir, err := newMediaStore(cfg)
	if err != nil {
		logr.Sugar().Fatalw("failed to init media store", "error", err)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	authSvc := service.NewAuthService(userRepo, tokens, validate, logr)
	channelSvc := service.NewChannelService(userRepo, channelCache, metricsSvc, cfg.Cache.ChannelTTL, logr)
	userSvc := service.NewUserService(userRepo, mediaStore, channelSvc, validate, logr)

	cookies := handler.NewCookieWriter(cfg.Cookie, cfg.Token)
	authHandler := handler.NewAuthHandler(authSvc, mediaStore, cookies, cfg.Media.MaxUploadSize)
	userHandler := handler.NewUserHandler(userSvc, cfg.Media.MaxUploadSize)
	channelHandler := handler.NewChannelHandler(channelSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if localMediaDir != "" {
		r.Static("/media", localMediaDir)
	}

	api := r.Group(cfg.APIPrefix)
	{
		users := api.Group("/users")
		users.POST("/register", authHandler.Register)
		users.POST("/login", authHandler.Login)
		users.POST("/refresh-token", authHandler.Refresh)

		secured := users.Group("")
		secured.Use(middleware.Auth(tokens))
		secured.POST("/logout", authHandler.Logout)
		secured.POST("/change-password", authHandler.ChangePassword)
		secured.GET("/me", userHandler.Me)
		secured.PATCH("/me", userHandler.UpdateProfile)
		secured.PATCH("/me/avatar", userHandler.UpdateAvatar)
		secured.PATCH("/me/cover-image", userHandler.UpdateCoverImage)

		api.GET("/channels/:username", channelHandler.Get)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func newMediaStore(cfg *config.Config) (media.Store, string, error) {
	if cfg.Media.Provider == "s3" {
		store, err := media.NewS3Store(context.Background(), cfg.Media)
		return store, "", err
	}
	store, err := media.NewLocalStore(cfg.Media.LocalDir, cfg.Media.PublicBaseURL)
	if err != nil {
		return nil, "", err
	}
	return store, cfg.Media.LocalDir, nil
}
