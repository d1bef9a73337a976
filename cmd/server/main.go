package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pulse/internal/classifier"
	handlers "pulse/internal/handler"
	"pulse/internal/models"
	"pulse/internal/queue"
	"pulse/internal/recommend"
	"pulse/pkg/config"
	"pulse/pkg/llm"
	"pulse/pkg/logger"
	"pulse/pkg/metrics"
	"pulse/pkg/middleware"
	"pulse/pkg/storage"
	"pulse/pkg/util"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zlog := logger.New(cfg.Log)
	defer zlog.Sync()
	log := logger.NewLogrus(cfg.Log.Level)

	db, err := util.OpenDatabase(cfg.DBDriver, cfg.DSN)
	if err != nil {
		zlog.Fatal("database open failed", zap.Error(err))
	}
	if err := db.AutoMigrate(&models.MoodSnapshot{}, &models.JournalEntry{}, &models.ChatMessage{}); err != nil {
		zlog.Warn("auto-migration failed", zap.Error(err))
	}

	deps := handlers.Deps{Logger: log}

	if cfg.OpenAIAPIKey != "" {
		client := llm.NewOpenAIHandler(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, log)
		deps.Classifier = classifier.New(client, cfg.ClassifierModel, log)
		deps.ChatLLM = client
	} else {
		zlog.Warn("no OpenAI key configured; classification uses the heuristic only, chat is unavailable")
		deps.Classifier = classifier.New(nil, "", log)
	}

	deps.Recommender = recommend.NewService(
		recommend.NewSpotifyClient(cfg.SpotifyClientID, cfg.SpotifyClientSecret, log),
		recommend.NewTMDBClient(cfg.TMDBAPIKey, cfg.TMDBRegion, log),
		log,
	)

	if cfg.RedisAddr != "" {
		bus, err := queue.NewRedisBus(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.JobChannel, log)
		if err != nil {
			zlog.Warn("redis unavailable; transcription jobs will not be dispatched", zap.Error(err))
		} else {
			defer bus.Close()
			deps.Publisher = bus
		}
	}

	if cfg.MinioEndpoint != "" {
		blobs, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			zlog.Warn("blob store unavailable; inline audio uploads disabled", zap.Error(err))
		} else {
			deps.Blobs = blobs
		}
	}

	gin.SetMode(cfg.Mode)
	engine := gin.New()
	engine.Use(gin.Recovery(), metrics.Middleware())

	limiter, err := middleware.RateLimiter(cfg.RateLimit, []string{cfg.APIPrefix + "/healthz", "/metrics"})
	if err != nil {
		zlog.Fatal("invalid rate limit", zap.Error(err))
	}
	engine.Use(limiter)
	engine.GET("/metrics", metrics.Handler())

	handlers.NewHandlers(cfg, db, deps).Register(engine)

	srv := &http.Server{Addr: cfg.Addr, Handler: engine}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		zlog.Info("server listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		zlog.Error("shutdown error", zap.Error(err))
	}
}
