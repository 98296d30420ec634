package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"paperflow_backend/internal/config"
	"paperflow_backend/internal/controller"
	"paperflow_backend/internal/middleware"
	"paperflow_backend/internal/model"
	"paperflow_backend/internal/repository"
	"paperflow_backend/internal/service"
	"paperflow_backend/internal/util"
	"paperflow_backend/pkg/configwatcher"
	"paperflow_backend/pkg/database"
	"paperflow_backend/pkg/logger"
	"paperflow_backend/pkg/monitoring"
	"paperflow_backend/pkg/security"
	"paperflow_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	ConfigDir       string
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	configCallbacks []func(*config.Config)
	tracerProvider  *sdktrace.TracerProvider
}

type repositories struct {
	testPaper      *repository.TestPaperRepository
	parsedQuestion *repository.ParsedQuestionRepository
	questionPaper  *repository.QuestionPaperRepository
}

type services struct {
	store      *service.DocumentStore
	testPaper  *service.TestPaperService
	pipeline   *service.PipelineService
	review     *service.ReviewService
	dispatcher service.Dispatcher
}

type controllers struct {
	testPaper *controller.TestPaperController
	review    *controller.ReviewController
	health    *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) applyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

// Pipeline 供命令行直接调用
func (a *App) Pipeline() *service.PipelineService {
	return a.services.pipeline
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		testPaper:      repository.NewTestPaperRepository(db),
		parsedQuestion: repository.NewParsedQuestionRepository(db),
		questionPaper:  repository.NewQuestionPaperRepository(db),
	}
}

func pipelineSettings(cfg *config.PipelineConfig) service.PipelineSettings {
	return service.PipelineSettings{
		ReviewThreshold:   cfg.ReviewThreshold,
		ExtractionTimeout: cfg.ExtractionTimeout,
		StuckAfter:        cfg.StuckAfter,
	}
}

// unconfiguredExtractor 未配置模型时服务仍可启动，处理请求会以抽取失败结束
func unconfiguredExtractor(cause error) service.Extractor {
	return service.ExtractorFunc(func(ctx context.Context, data []byte, mimeType string) ([]model.ExtractedQuestion, error) {
		return nil, fmt.Errorf("%w: extractor not configured: %v", util.ErrExtractionFailed, cause)
	})
}

func (a *App) initServices(ctx context.Context, repos *repositories, cfg *config.Config) *services {
	s := &services{}

	s.store = service.NewDocumentStore(service.NewStorageProvider(ctx, &cfg.Storage))

	extractor, err := service.NewExtractor(ctx, &cfg.AI)
	if err != nil {
		logger.Log.Warn("Extractor unavailable", zap.String("provider", cfg.AI.Provider), zap.Error(err))
		extractor = unconfiguredExtractor(err)
	}

	s.testPaper = service.NewTestPaperService(repos.testPaper, repos.parsedQuestion, s.store)
	s.pipeline = service.NewPipelineService(repos.testPaper, repos.parsedQuestion, s.store, extractor, pipelineSettings(&cfg.Pipeline))
	s.review = service.NewReviewService(repos.testPaper, repos.parsedQuestion, repos.questionPaper)

	switch cfg.Pipeline.Dispatch {
	case "local":
		s.dispatcher = service.NewLocalDispatcher(s.pipeline, cfg.Pipeline.Workers, 0)
	case "redis":
		s.dispatcher = service.NewRedisDispatcher(s.pipeline, a.Redis, cfg.Pipeline.QueueKey, cfg.Pipeline.Workers)
	}

	a.RegisterConfigCallback(func(next *config.Config) {
		s.pipeline.UpdateSettings(pipelineSettings(&next.Pipeline))
	})

	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		testPaper: controller.NewTestPaperController(s.testPaper, s.pipeline, s.dispatcher),
		review:    controller.NewReviewController(s.review),
		health:    controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
	router.Use(middleware.RequestLogger())
}

// startBackgroundTasks 回收超时任务、消费处理队列、监听配置变更，随 ctx 退出
func (a *App) startBackgroundTasks(ctx context.Context, s *services) {
	go func() {
		ticker := time.NewTicker(a.Config.Pipeline.ReapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.pipeline.ReapStuckJobs(ctx); err != nil {
					logger.Log.Error("reap stuck jobs error", zap.Error(err))
				}
			}
		}
	}()

	if s.dispatcher != nil {
		go func() {
			if err := s.dispatcher.Run(ctx); err != nil {
				logger.Log.Error("dispatcher stopped", zap.Error(err))
			}
		}()
	}

	if a.ConfigDir != "" {
		go func() {
			if err := configwatcher.WatchConfig(ctx, a.ConfigDir, a.applyConfig); err != nil {
				logger.Log.Warn("config watcher stopped", zap.Error(err))
			}
		}()
	}
}

// NewApp 初始化存储、数据库与全部服务。cfg.ForceMigrate 控制是否执行迁移。
func NewApp(cfg *config.Config, configDir string) (*App, error) {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.ForceMigrate || cfg.Server.Mode != "release")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app := &App{
		Config:    cfg,
		ConfigDir: configDir,
		DB:        db,
	}

	if cfg.Pipeline.Dispatch == "redis" {
		rdb, err := database.InitRedis(&cfg.Redis, cfg.Pipeline.Workers)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		app.Redis = rdb
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("paperflow", &cfg.Tracing)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
		app.tracerProvider = tp
	}

	repos := app.initRepositories(db)
	app.services = app.initServices(context.Background(), repos, cfg)
	controllers := app.initControllers(app.services)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	return app, nil
}

func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.startBackgroundTasks(ctx, a.services)

	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Log.Info("Shutting down server...")

	// 关闭服务（设置5秒的超时时间）
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.Close(shutdownCtx)

	logger.Log.Info("Server exiting")
	return nil
}

// Close 释放外部连接
func (a *App) Close(ctx context.Context) {
	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Log.Sync()
}
