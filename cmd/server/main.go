// Package main runs the webinar studio HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/studio/config"
	"github.com/aura-webinar/studio/internal/admin"
	"github.com/aura-webinar/studio/internal/auth"
	"github.com/aura-webinar/studio/internal/catalog"
	"github.com/aura-webinar/studio/internal/completion"
	"github.com/aura-webinar/studio/internal/generation"
	"github.com/aura-webinar/studio/internal/knowledgebase"
	"github.com/aura-webinar/studio/internal/middleware"
	"github.com/aura-webinar/studio/internal/realtime"
	"github.com/aura-webinar/studio/internal/release"
	"github.com/aura-webinar/studio/internal/scripts"
	"github.com/aura-webinar/studio/internal/slides"
	"github.com/aura-webinar/studio/internal/webinars"
	"github.com/aura-webinar/studio/internal/worker"
	"github.com/aura-webinar/studio/internal/workspace"
	"github.com/aura-webinar/studio/pkg/database"
	"github.com/aura-webinar/studio/pkg/queue"
	"github.com/aura-webinar/studio/pkg/redis"
	"github.com/aura-webinar/studio/pkg/response"
	"github.com/aura-webinar/studio/pkg/storage"
)

// workspaceTTL is how long an idle user's workspace is remembered.
const workspaceTTL = 7 * 24 * time.Hour

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.PoolOptions("studio-server"), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()
	kv := rdb.KV()

	var media catalog.Media
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			MediaBucket:          cfg.AWS.MediaBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			media = s3Client
		}
	}

	broker := realtime.NewBroker(rdb.Client, logger)
	hub := realtime.NewHub(logger, broker, broker)

	locker := workspace.NewLocker(kv, cfg.Generation.LockTTL())
	workspaces := workspace.NewStore(kv, locker, workspaceTTL, logger)

	completionClient := completion.NewOpenAIClient(completion.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Timeout: cfg.OpenAI.CallTimeout(),
	}, logger)
	generator := generation.New(completionClient, generation.Options{
		Model:       cfg.OpenAI.Model,
		ScriptModel: cfg.OpenAI.ScriptModel,
		Temperature: cfg.OpenAI.Temperature,
	}, logger)

	// Auth
	sessions := auth.NewSessions(auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours), kv)
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, sessions, workspaces, hub, cfg.Admin.EmailDomain, logger)

	// Webinars and knowledge base
	webinarRepo := webinars.NewRepository(pool)
	kbRepo := knowledgebase.NewRepository(pool)
	webinarHandler := webinars.NewHandler(webinarRepo, kbRepo, workspaces, hub, logger)
	kbService := knowledgebase.NewService(generator, kbRepo, webinarRepo, locker, workspaces, logger)
	kbHandler := knowledgebase.NewHandler(kbService, kbRepo, kbRepo, logger)

	// Slides and scripts
	slideRepo := slides.NewRepository(pool)
	slideService := slides.NewService(slides.Config{
		Generator:  generator,
		Store:      slideRepo,
		Sources:    kbRepo,
		Webinars:   webinarRepo,
		Locks:      locker,
		KV:         kv,
		Notifier:   hub,
		RunTimeout: cfg.Generation.RunTimeout(),
		Logger:     logger,
	})
	slideHandler := slides.NewHandler(slideService, slideRepo, logger)
	scriptHandler := scripts.NewHandler(scripts.NewService(generator, slideRepo, kbRepo, webinarRepo, locker, logger), logger)

	// Catalog, release and rendering
	catalogRepo := catalog.NewRepository(pool)
	catalogHandler := catalog.NewHandler(catalogRepo, media, logger)
	renderRepo := release.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	var renderJobs release.Enqueuer
	var renderProcessor *worker.RenderProcessor
	if cfg.Render.URL != "" {
		renderJobs = jobQueue
		renderProcessor = worker.NewRenderProcessor(worker.Config{
			URL:      cfg.Render.URL,
			Renders:  renderRepo,
			Webinars: webinarRepo,
			Slides:   slideRepo,
			Catalog:  catalogRepo,
			Jobs:     jobQueue,
			Notifier: hub,
			Logger:   logger,
		})
	}
	releaseHandler := release.NewHandler(webinarRepo, slideRepo, catalogRepo, renderRepo, renderJobs, hub, logger)

	adminHandler := admin.NewHandler(admin.NewRepository(pool), workspaces, cfg.Admin.EmailDomain, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/signup", authHandler.SignUp)
		authGroup.POST("/signin", authHandler.SignIn)
		authGroup.POST("/signout", middleware.JWT(sessions, cfg.Admin.EmailDomain), authHandler.SignOut)
		authGroup.GET("/session", middleware.JWT(sessions, cfg.Admin.EmailDomain), authHandler.Session)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, sessions.UserID, webinars.CanWatch(webinarRepo)))

	api := router.Group("")
	api.Use(middleware.JWT(sessions, cfg.Admin.EmailDomain))
	{
		api.GET("/workspace", webinarHandler.Workspace)
		api.GET("/themes", catalogHandler.ListThemes)
		api.GET("/avatars", catalogHandler.ListAvatars)

		api.GET("/webinars", webinarHandler.List)
		api.POST("/webinars", webinarHandler.Create)

		w := api.Group("/webinars/:id", webinars.RequireOwner(webinarRepo))
		w.GET("", webinarHandler.Get)
		w.PATCH("", webinarHandler.Update)
		w.DELETE("", webinarHandler.Delete)
		w.POST("/select", webinarHandler.Select)
		w.GET("/steps", webinarHandler.Steps)
		w.POST("/steps/:step/activate", webinarHandler.Activate)
		w.PUT("/theme", webinarHandler.SetTheme)
		w.PUT("/avatar", webinarHandler.SetAvatar)

		w.POST("/knowledge-base/generate", kbHandler.Generate)
		w.GET("/knowledge-base", kbHandler.Get)
		w.PATCH("/knowledge-base", kbHandler.Patch)
		w.POST("/topics/describe", kbHandler.DescribeTopic)
		w.GET("/topics", kbHandler.Topics)
		w.PUT("/topics/order", kbHandler.ReorderTopics)
		w.GET("/product", kbHandler.Product)
		w.PUT("/product", kbHandler.PutProduct)
		w.DELETE("/product", kbHandler.DeleteProduct)
		w.POST("/product/bonuses", kbHandler.AddBonus)

		w.POST("/slides/generate", slideHandler.Generate)
		w.GET("/slides/generation", slideHandler.Generation)
		w.GET("/slides", slideHandler.List)
		w.PUT("/slides", slideHandler.Save)
		w.PATCH("/slides/:slideId", slideHandler.Update)
		w.POST("/slides/:slideId/script/generate", scriptHandler.Generate)
		w.PUT("/slides/:slideId/script", scriptHandler.Put)
		w.POST("/scripting/complete", scriptHandler.Complete)

		w.GET("/review", releaseHandler.Review)
		w.POST("/submit", releaseHandler.Submit)
		w.POST("/videos", releaseHandler.Videos)

		adm := api.Group("/admin", middleware.RequireAdmin(cfg.Server.DefaultRoute))
		adm.GET("/users", adminHandler.ListUsers)
		adm.PATCH("/users/:id", adminHandler.UpdateUser)
		adm.DELETE("/users/:id", adminHandler.DeleteUser)
		adm.PUT("/users/:id/settings", adminHandler.PutSettings)
		adm.GET("/themes", catalogHandler.ListThemes)
		adm.POST("/themes", catalogHandler.CreateTheme)
		adm.PUT("/themes/:id", catalogHandler.UpdateTheme)
		adm.DELETE("/themes/:id", catalogHandler.DeleteTheme)
		adm.GET("/avatars", catalogHandler.ListAvatars)
		adm.POST("/avatars", catalogHandler.CreateAvatar)
		adm.PUT("/avatars/:id", catalogHandler.UpdateAvatar)
		adm.DELETE("/avatars/:id", catalogHandler.DeleteAvatar)
		adm.POST("/media/upload-url", catalogHandler.UploadURL)
		adm.POST("/media", catalogHandler.Upload)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// In-process render worker; cmd/worker runs more of them when needed.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if renderProcessor != nil {
		go renderProcessor.Run(workerCtx)
		logger.Info("render worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	slideService.Close()
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
