package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"learning_intel_backend/internal/config"
	"learning_intel_backend/internal/controller"
	"learning_intel_backend/internal/repository"
	"learning_intel_backend/internal/service"
	"learning_intel_backend/pkg/configwatcher"
	"learning_intel_backend/pkg/database"
	"learning_intel_backend/pkg/logger"
	"learning_intel_backend/pkg/monitoring"
	"learning_intel_backend/pkg/security"
	"learning_intel_backend/pkg/tracing"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services
}

type repositories struct {
	chapterRecord *repository.ChapterRecordRepository
	prediction    *repository.PredictionRepository
}

type services struct {
	prediction *service.PredictionService
	insight    *service.InsightService
}

type controllers struct {
	prediction *controller.PredictionController
	course     *controller.CourseController
	health     *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		chapterRecord: repository.NewChapterRecordRepository(db),
		prediction:    repository.NewPredictionRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) (*services, error) {
	// 估计器只在启动时加载一次，加载失败即启动失败
	store, err := service.NewModelStore(&cfg.Storage)
	if err != nil {
		return nil, err
	}
	completion, dropout, err := service.LoadEstimators(context.Background(), store, cfg.Models)
	if err != nil {
		return nil, err
	}
	logger.Log.Info("Estimators loaded",
		zap.String("completion", completion.Name()),
		zap.String("dropout", dropout.Name()),
	)

	s := &services{}
	s.prediction = service.NewPredictionService(repos.chapterRecord, repos.prediction, completion, dropout, cfg.Pipeline)
	s.insight = service.NewInsightService(repos.chapterRecord, repos.prediction, s.prediction, rdb)
	return s, nil
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		prediction: controller.NewPredictionController(s.prediction),
		course:     controller.NewCourseController(s.prediction, s.insight),
		health:     controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(100000, time.Minute)) // 每分钟100000次请求

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// watchPipelineConfig 配置文件变化时热更新管线策略，非法配置拒绝生效
func (a *App) watchPipelineConfig(s *services) {
	go configwatcher.WatchConfig("configs/config.yaml", func(cfg *config.Config) {
		if err := s.prediction.ApplyPipelineConfig(cfg.Pipeline); err != nil {
			logger.Log.Error("rejected pipeline config reload", zap.Error(err))
			return
		}
		logger.Log.Info("pipeline config reloaded",
			zap.String("risk_policy", cfg.Pipeline.RiskPolicy),
			zap.String("validation_mode", cfg.Pipeline.ValidationMode),
		)
	})
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services, err := app.initServices(repos, cfg, rdb)
	if err != nil {
		logger.Log.Fatal("Failed to initialize services", zap.Error(err))
	}
	app.services = services
	controllers := app.initControllers(services, db)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("learning-intel", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers)

	app.watchPipelineConfig(services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
