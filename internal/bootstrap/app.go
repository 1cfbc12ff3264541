package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "github.com/Ramchandra100/file-share-app/internal/handler/http"
	wsHandler "github.com/Ramchandra100/file-share-app/internal/handler/websocket"
	"github.com/Ramchandra100/file-share-app/internal/hub"
	blobdisk "github.com/Ramchandra100/file-share-app/internal/infra/blob/disk"
	blobs3 "github.com/Ramchandra100/file-share-app/internal/infra/blob/s3"
	gormpersistence "github.com/Ramchandra100/file-share-app/internal/infra/persistence/gorm"
	"github.com/Ramchandra100/file-share-app/internal/infra/setup"
	"github.com/Ramchandra100/file-share-app/internal/middleware"
	"github.com/Ramchandra100/file-share-app/internal/repository"
	"github.com/Ramchandra100/file-share-app/internal/service"
	"github.com/Ramchandra100/file-share-app/internal/tasks"
	"github.com/Ramchandra100/file-share-app/internal/worker"
)

// Config 存储从环境变量加载的配置
type Config struct {
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ServerPort string
	LogLevel   string
	AppEnv     string

	RateLimitMax    int
	RateLimitWindow time.Duration

	MaxFileSize   int64         // 单文件大小上限 (字节)
	Retention     time.Duration // 文件保留时长
	SweepSchedule string        // 清理任务的调度表达式

	BlobDriver string // "disk" 或 "s3"
	BlobDir    string // disk 后端的基础目录

	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string
}

// LoadConfig 从环境变量加载配置 (.env 文件优先加载，允许只用环境变量)
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:        os.Getenv("DB_USER"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBHost:        os.Getenv("DB_HOST"),
		DBPort:        os.Getenv("DB_PORT"),
		DBName:        os.Getenv("DB_NAME"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		ServerPort:    os.Getenv("SERVER_PORT"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		AppEnv:        os.Getenv("APP_ENV"),
		BlobDriver:    os.Getenv("BLOB_DRIVER"),
		BlobDir:       os.Getenv("BLOB_DIR"),
		S3Region:      os.Getenv("S3_REGION"),
		S3Bucket:      os.Getenv("S3_BUCKET"),
		S3AccessKey:   os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:   os.Getenv("S3_SECRET_KEY"),
		S3Endpoint:    os.Getenv("S3_ENDPOINT"),
		// --- 默认值 ---
		RateLimitMax:    100,
		RateLimitWindow: 1 * time.Second,
		MaxFileSize:     10 << 20, // 10 MiB
		Retention:       24 * time.Hour,
		SweepSchedule:   "@every 1h",
	}

	cfg.RedisDB, _ = strconv.Atoi(os.Getenv("REDIS_DB")) // 未设置时为 0

	if v := os.Getenv("MAX_FILE_SIZE"); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil || size <= 0 {
			return nil, fmt.Errorf("invalid MAX_FILE_SIZE %q", v)
		}
		cfg.MaxFileSize = size
	}
	if v := os.Getenv("FILE_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid FILE_RETENTION %q", v)
		}
		cfg.Retention = d
	}
	if v := os.Getenv("SWEEP_SCHEDULE"); v != "" {
		cfg.SweepSchedule = v
	}

	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.DBName == "" {
		cfg.DBName = "fileshare_db"
	}
	if cfg.BlobDriver == "" {
		cfg.BlobDriver = "disk"
	}
	if cfg.BlobDir == "" {
		cfg.BlobDir = "./data/blobs"
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.BlobDriver == "s3" && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("environment variable S3_BUCKET must be set for the s3 blob driver")
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// App 包含应用的所有组件
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	WorkerSrv   *worker.WorkerServer
	Hub         *hub.Hub
	HttpServer  *http.Server

	scheduler      *asynq.Scheduler
	redisClientOpt asynq.RedisClientOpt
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	// 1. 配置
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. Logger
	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(logLevel)
	log.Info("Configuration loaded")

	// 3. 基础设施
	db, err := setup.InitDB(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	blobStore, err := newBlobStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init blob store: %w", err)
	}
	log.Infof("Blob store initialized (driver: %s)", cfg.BlobDriver)

	// 4. Repository / Service / Hub
	roomRepo := gormpersistence.NewGormRoomRepository(db)
	roomService := service.NewRoomService(roomRepo)
	hubInstance := hub.NewHub(roomService)
	transferService := service.NewTransferService(roomRepo, blobStore, hubInstance, cfg.MaxFileSize)
	cleanupService := service.NewCleanupService(roomRepo, blobStore, hubInstance, cfg.Retention)
	log.Info("Services initialized")

	// 5. Handler
	roomHandler := httpHandler.NewRoomHandler(roomService)
	fileHandler := httpHandler.NewFileHandler(transferService)
	socketHandler := wsHandler.NewWebSocketHandler(hubInstance, roomService)

	// 6. Worker
	workerServer := worker.NewWorkerServer(redisClientOpt, cleanupService, log)

	// 7. Router
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(corsMiddleware())
	router.Use(middleware.RateLimit(redisClient, cfg.RateLimitMax, cfg.RateLimitWindow))
	// 上传的 multipart part 超过该阈值后落盘暂存，不整块进内存
	router.MaxMultipartMemory = 1 << 20

	api := router.Group("/api")
	{
		api.POST("/rooms/join", roomHandler.JoinRoom)
		api.GET("/rooms/:code", roomHandler.GetRoom)
		api.POST("/rooms/:code/files", fileHandler.Upload)
		api.DELETE("/rooms/:code/files/:key", fileHandler.Delete)
		api.POST("/rooms/:code/clear", fileHandler.BulkClear)
		api.GET("/files/:key", fileHandler.Download)
	}
	router.GET("/ws/rooms/:code", socketHandler.HandleConnection)
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })

	httpServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	return &App{
		Config:         cfg,
		Log:            log,
		DB:             db,
		RedisClient:    redisClient,
		WorkerSrv:      workerServer,
		Hub:            hubInstance,
		HttpServer:     httpServer,
		redisClientOpt: redisClientOpt,
	}, nil
}

// newBlobStore 根据配置选择 Blob 存储后端
func newBlobStore(cfg *Config) (repository.BlobStore, error) {
	switch cfg.BlobDriver {
	case "disk":
		return blobdisk.NewStore(cfg.BlobDir, cfg.MaxFileSize)
	case "s3":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return blobs3.NewStore(ctx, blobs3.Config{
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			BaseEndpoint: cfg.S3Endpoint,
		}, cfg.MaxFileSize)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.BlobDriver)
	}
}

// Start 启动所有后台组件和 HTTP 服务器
func (a *App) Start() {
	go a.Hub.Run()
	a.Log.Info("Hub routine started")

	go a.WorkerSrv.Start()
	a.Log.Info("Worker server routine started")

	a.registerPeriodicTasks()

	go func() {
		a.Log.Infof("HTTP server listening on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

// registerPeriodicTasks 注册周期性的清理任务。
// Scheduler 按计划把任务投递给 Worker，两者都随 App 生命周期启停，
// 没有游离的后台定时器。
func (a *App) registerPeriodicTasks() {
	a.scheduler = asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{})

	task := asynq.NewTask(tasks.TypeCleanupSweep, nil)
	entryID, err := a.scheduler.Register(a.Config.SweepSchedule, task, asynq.Queue("default"))
	if err != nil {
		a.Log.Errorf("Could not register cleanup sweep task: %v", err)
		return
	}
	a.Log.Infof("Cleanup sweep registered with schedule '%s' (EntryID: %s)", a.Config.SweepSchedule, entryID)

	go func() {
		if err := a.scheduler.Run(); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			a.Log.Errorf("Asynq scheduler Run() failed: %v", err)
		}
	}()
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	if a.scheduler != nil {
		a.scheduler.Shutdown()
	}
	if a.WorkerSrv != nil {
		a.WorkerSrv.Shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	if a.Hub != nil {
		a.Hub.Stop()
	}

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// LoggerMiddleware 记录每个 HTTP 请求的访问日志
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}
		entry := log.WithFields(logrus.Fields{
			"status":    c.Writer.Status(),
			"method":    c.Request.Method,
			"path":      path,
			"client_ip": c.ClientIP(),
			"latency":   latency.String(),
		})
		if len(c.Errors) > 0 {
			entry.Error(c.Errors.ByType(gin.ErrorTypePrivate).String())
		} else if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Error("request failed")
		} else {
			entry.Info("request handled")
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowedOrigin := os.Getenv("CORS_ALLOWED_ORIGIN")
		if allowedOrigin == "" {
			allowedOrigin = "http://localhost:3000"
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
