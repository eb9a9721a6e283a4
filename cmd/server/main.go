// Package main runs the audio upload and transcript editing HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vocalog/backend/config"
	"github.com/vocalog/backend/internal/middleware"
	"github.com/vocalog/backend/internal/recordings"
	"github.com/vocalog/backend/internal/transcripts"
	"github.com/vocalog/backend/pkg/database"
	"github.com/vocalog/backend/pkg/queue"
	"github.com/vocalog/backend/pkg/redis"
	"github.com/vocalog/backend/pkg/response"
	"github.com/vocalog/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		AudioBucket:          cfg.AWS.AudioBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	recRepo := recordings.NewRepository(pool)
	transcriptRepo := transcripts.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	recHandler := recordings.NewHandler(recRepo, s3Client, jobQueue, logger)
	transcriptHandler := transcripts.NewHandler(transcriptRepo, recRepo, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))

	router.GET("/", func(c *gin.Context) {
		response.OK(c, gin.H{"status": "ok"})
	})

	router.POST("/audio/upload", recHandler.Upload)
	router.GET("/recordings/:id", recHandler.Get)
	router.GET("/recordings/:id/audio-url", recHandler.AudioURL)
	router.GET("/owners/:id/recordings", recHandler.ListByOwner)

	router.GET("/recordings/:id/transcript", transcriptHandler.List)
	router.POST("/recordings/:id/transcript/rows", transcriptHandler.InsertRow)
	router.DELETE("/recordings/:id/transcript/rows", transcriptHandler.DeleteRow)
	router.PATCH("/recordings/:id/transcript/rows/:order", transcriptHandler.EditRow)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
