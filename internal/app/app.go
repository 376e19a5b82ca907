package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"formquiz_backend/internal/config"
	"formquiz_backend/internal/controller"
	"formquiz_backend/internal/middleware"
	"formquiz_backend/internal/repository"
	"formquiz_backend/internal/service"
	"formquiz_backend/internal/util"
	"formquiz_backend/pkg/database"
	"formquiz_backend/pkg/logger"
	"formquiz_backend/pkg/monitoring"
	"formquiz_backend/pkg/security"
	"formquiz_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client

	tracer          *sdktrace.TracerProvider
	stop            context.CancelFunc
	mu              sync.Mutex
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user       *repository.UserRepository
	form       *repository.FormRepository
	submission *repository.SubmissionRepository
}

type services struct {
	auth       *service.AuthService
	policy     *service.AccessPolicy
	cache      *service.FormCache
	form       *service.FormService
	submission *service.SubmissionService
	result     *service.ResultService
}

type controllers struct {
	auth       *controller.AuthController
	form       *controller.FormController
	submission *controller.SubmissionController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig 配置热更新入口，依次调用已注册的回调
func (a *App) ApplyConfig(cfg *config.Config) {
	a.mu.Lock()
	callbacks := append([]func(*config.Config){}, a.configCallbacks...)
	a.mu.Unlock()
	for _, cb := range callbacks {
		cb(cfg)
	}
}

func initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:       repository.NewUserRepository(db),
		form:       repository.NewFormRepository(db),
		submission: repository.NewSubmissionRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client, storage service.Uploader) *services {
	s := &services{}

	s.auth = service.NewAuthService(repos.user, cfg)
	s.policy = service.NewAccessPolicy(&cfg.Forms)
	s.cache = service.NewFormCache(rdb, cfg.Forms.PublicCacheTTL)
	s.form = service.NewFormService(repos.form, repos.submission, storage, s.policy, s.cache, cfg)
	s.submission = service.NewSubmissionService(repos.form, repos.submission, storage, s.policy, cfg)
	s.result = service.NewResultService(repos.form, repos.submission, s.policy, cfg)

	a.RegisterConfigCallback(s.policy.Apply)
	return s
}

func initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:       controller.NewAuthController(s.auth),
		form:       controller.NewFormController(s.form, s.result),
		submission: controller.NewSubmissionController(s.submission, s.result),
		health:     controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(ctx context.Context, router *gin.Engine, cfg *config.Config) {
	router.Use(middleware.RequestID())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	if cfg.RateLimit.MaxRequests > 0 {
		window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
		if window <= 0 {
			window = time.Minute
		}
		router.Use(security.RateLimiter(ctx, cfg.RateLimit.MaxRequests, window))
	}

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// New 用已建立的连接组装应用；rdb 可以为 nil
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, storage service.Uploader) *App {
	ctx, stop := context.WithCancel(context.Background())
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		stop:   stop,
	}

	repos := initRepositories(db)
	services := app.initServices(repos, cfg, rdb, storage)
	controllers := initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	app.setupMiddlewares(ctx, router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}
	return app
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	if cfg.MigrateOnly {
		return &App{Config: cfg, DB: db}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// 缓存只是加速公开表单读取，连接失败时降级运行
		logger.Log.Warn("Redis unavailable, public form cache disabled", zap.Error(err))
		rdb = nil
	}

	storage, err := service.NewStorageService(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize storage", zap.Error(err))
	}

	var tp *sdktrace.TracerProvider
	if cfg.Tracing.Enabled {
		tp, err = tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app := New(cfg, db, rdb, storage)
	app.tracer = tp
	return app
}

// Close 停止后台任务（限流条目清理），可重复调用
func (a *App) Close() {
	if a.stop != nil {
		a.stop()
	}
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	a.Close()
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
