package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/session-auth-api/api/swagger"
	"github.com/noah-isme/session-auth-api/internal/handler"
	"github.com/noah-isme/session-auth-api/internal/middleware"
	"github.com/noah-isme/session-auth-api/internal/repository"
	"github.com/noah-isme/session-auth-api/internal/service"
	"github.com/noah-isme/session-auth-api/pkg/cache"
	"github.com/noah-isme/session-auth-api/pkg/config"
	"github.com/noah-isme/session-auth-api/pkg/database"
	"github.com/noah-isme/session-auth-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/session-auth-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/session-auth-api/pkg/middleware/requestid"
	"github.com/noah-isme/session-auth-api/pkg/storeclient"
	"github.com/noah-isme/session-auth-api/pkg/token"
)

const shutdownTimeout = 10 * time.Second

// @title Session Auth API
// @version 1.0.0
// @description Role-scoped login, logout, registration and token refresh
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.MigrateOnStart {
		if err := database.Migrate(database.URL(cfg.Database), "up"); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
		logr.Info("migrations applied")
	}

	primary, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	replica, err := database.NewReplica(cfg.Database, cfg.Replica)
	if err != nil {
		logr.Fatal("failed to connect replica", zap.Error(err))
	}
	cluster := database.NewCluster(primary, replica)
	defer cluster.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, login throttling disabled", zap.Error(err))
	}

	access, err := token.NewCodec(cfg.JWT.Secret, cfg.JWT.Issuer)
	if err != nil {
		logr.Fatal("failed to build access token codec", zap.Error(err))
	}
	refresh, err := token.NewCodec(cfg.JWT.Secret, token.RefreshIssuer(cfg.JWT.Issuer))
	if err != nil {
		logr.Fatal("failed to build refresh token codec", zap.Error(err))
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	userRepo := repository.NewUserRepository(cluster)
	sessionRepo := repository.NewSessionRepository(cluster)
	attemptRepo := repository.NewLoginAttemptRepository(redisClient)
	defer attemptRepo.Close() //nolint:errcheck

	passwords := service.NewBcryptPasswords(cfg.BcryptCost)
	policy := service.NewAuthorizationPolicy(userRepo, passwords)

	authService := service.NewAuthService(userRepo, sessionRepo, cluster, access, refresh, policy, validate, logr, service.AuthConfig{
		AccessTokenExpiry:  cfg.JWT.AccessTTL,
		RefreshTokenExpiry: cfg.JWT.RefreshTTL,
		MaxLoginAttempts:   cfg.RateLimit.LoginMaxAttempts,
		LoginAttemptWindow: cfg.RateLimit.LoginAttemptWindow,
	}).WithLoginAttempts(attemptRepo).WithMetrics(metrics)

	var userService *service.UserService
	if cfg.StoreService.BaseURL != "" {
		stores, err := storeclient.New(cfg.StoreService.BaseURL, cfg.StoreService.Timeout)
		if err != nil {
			logr.Fatal("failed to build store client", zap.Error(err))
		}
		userService = service.NewUserService(userRepo, cluster, policy, passwords, stores, validate, logr)
	} else {
		userService = service.NewUserService(userRepo, cluster, policy, passwords, nil, validate, logr)
	}
	userService.WithMetrics(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, cluster)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	protect := middleware.JWT(authService, metrics)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.AuthRPM)

	api := r.Group(cfg.APIPrefix)
	handler.RegisterAuthRoutes(api, handler.NewAuthHandler(authService, userService), protect, limiter.Handler())
	handler.RegisterUserRoutes(api, handler.NewUserHandler(userService), protect)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
