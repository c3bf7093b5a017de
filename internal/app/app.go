package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"proctor_backend/internal/config"
	"proctor_backend/internal/controller"
	"proctor_backend/internal/realtime"
	"proctor_backend/internal/repository"
	"proctor_backend/internal/service"
	"proctor_backend/pkg/database"
	"proctor_backend/pkg/logger"
	"proctor_backend/pkg/monitoring"
	"proctor_backend/pkg/security"
	"proctor_backend/pkg/tracing"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	Hub             *realtime.Hub
	services        *services
	tracer          *sdktrace.TracerProvider
	cancel          context.CancelFunc
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user         *repository.UserRepository
	event        *repository.EventRepository
	registration *repository.RegistrationRepository
	credential   *repository.CredentialRepository
	round        *repository.RoundRepository
	question     *repository.QuestionRepository
	attempt      *repository.AttemptRepository
}

type services struct {
	access       *service.AccessService
	registration *service.RegistrationService
	round        *service.RoundService
	attempt      *service.AttemptService
	leaderboard  *service.LeaderboardService
}

type controllers struct {
	round        *controller.RoundController
	attempt      *controller.AttemptController
	leaderboard  *controller.LeaderboardController
	registration *controller.RegistrationController
	realtime     *controller.RealtimeController
	health       *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig 配置热更新回调
func (a *App) ApplyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:         repository.NewUserRepository(db),
		event:        repository.NewEventRepository(db),
		registration: repository.NewRegistrationRepository(db),
		credential:   repository.NewCredentialRepository(db),
		round:        repository.NewRoundRepository(db),
		question:     repository.NewQuestionRepository(db),
		attempt:      repository.NewAttemptRepository(db),
	}
}

func (a *App) initHub(repos *repositories, cfg *config.Config) *realtime.Hub {
	var broker realtime.Broker
	if cfg.Realtime.Broker == "redis" {
		broker = realtime.NewRedisBroker(a.Redis, cfg.Realtime.RedisChannel)
	}
	return realtime.NewHub(cfg.Realtime, cfg.CORS.AllowedOrigins, broker, repos.event, repos.credential)
}

func (a *App) initServices(repos *repositories, cfg *config.Config, hub *realtime.Hub) *services {
	s := &services{}
	notifier := service.LogNotifier{}
	concurrency := cfg.Proctor.CredentialConcurrency

	s.access = service.NewAccessService(repos.event, repos.registration, repos.credential)
	s.registration = service.NewRegistrationService(repos.registration, hub)
	s.attempt = service.NewAttemptService(
		repos.attempt,
		repos.round,
		repos.question,
		repos.event,
		s.access,
		s.registration,
		hub,
		notifier,
		concurrency,
	)
	s.round = service.NewRoundService(
		repos.round,
		repos.attempt,
		repos.credential,
		hub,
		notifier,
		s.attempt,
		concurrency,
	)
	s.leaderboard = service.NewLeaderboardService(repos.round, repos.attempt, repos.user)

	return s
}

func (a *App) initControllers(s *services, hub *realtime.Hub) *controllers {
	return &controllers{
		round:        controller.NewRoundController(s.round, s.access),
		attempt:      controller.NewAttemptController(s.attempt, s.round, s.access),
		leaderboard:  controller.NewLeaderboardController(s.leaderboard, s.round, s.access),
		registration: controller.NewRegistrationController(s.registration),
		realtime:     controller.NewRealtimeController(hub),
		health:       controller.NewHealthController(a.DB, a.Redis),
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
}

// startBackgroundTasks 实时广播监听与超时作答的定时交卷
func (a *App) startBackgroundTasks(ctx context.Context, s *services, cfg *config.Config) {
	go func() {
		if err := a.Hub.Run(ctx); err != nil {
			logger.Log.Error("Realtime broker stopped", zap.Error(err))
		}
	}()

	go func() {
		ticker := time.NewTicker(cfg.Proctor.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.attempt.SubmitExpired(ctx)
				if err != nil {
					logger.Log.Error("Expired attempt sweep failed", zap.Error(err))
					continue
				}
				if n > 0 {
					logger.Log.Info("Expired attempts submitted", zap.Int("count", n))
				}
			}
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode, cfg.ForceMigrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app
	}

	if cfg.Realtime.Broker == "redis" || cfg.Redis.Host != "" {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		}
		app.Redis = rdb
	}

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("proctor-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	repos := app.initRepositories(db)
	app.Hub = app.initHub(repos, cfg)
	svcs := app.initServices(repos, cfg, app.Hub)
	app.services = svcs
	ctrls := app.initControllers(svcs, app.Hub)

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, ctrls, cfg)

	app.RegisterConfigCallback(func(newCfg *config.Config) {
		logger.SetMode(newCfg.Server.Mode)
	})

	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel
	app.startBackgroundTasks(ctx, svcs, cfg)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
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

	// 停止后台任务并断开 WebSocket 连接
	if a.cancel != nil {
		a.cancel()
	}
	if a.Hub != nil {
		a.Hub.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

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
