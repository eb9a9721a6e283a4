// Package main runs the background ingestion worker (transcode + STT).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vocalog/backend/config"
	"github.com/vocalog/backend/internal/pipeline"
	"github.com/vocalog/backend/internal/recordings"
	"github.com/vocalog/backend/internal/stt"
	"github.com/vocalog/backend/internal/transcode"
	"github.com/vocalog/backend/internal/transcripts"
	"github.com/vocalog/backend/pkg/database"
	"github.com/vocalog/backend/pkg/queue"
	"github.com/vocalog/backend/pkg/redis"
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

	enc := transcode.New(cfg.Pipeline.FFmpegPath, cfg.Pipeline.FFprobePath, logger)
	sttClient := stt.NewClient(stt.ClientConfig{
		InvokeURL:  cfg.STT.InvokeURL,
		Secret:     cfg.STT.Secret,
		Language:   cfg.STT.Language,
		TimeoutSec: cfg.STT.TimeoutSec,
	}, logger)

	pipe := pipeline.New(recRepo, transcriptRepo, s3Client, enc, sttClient, pipeline.Options{
		ScratchDir:     cfg.Pipeline.ScratchDir,
		SplitSentences: cfg.Pipeline.SplitSentences,
		SplitMarks:     cfg.Pipeline.SplitMarks,
	}, logger)

	scheduler := pipeline.NewScheduler(pipe, recRepo, jobQueue,
		time.Duration(cfg.Pipeline.IntervalSec)*time.Second, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go scheduler.Run(workerCtx)
	logger.Info("ingestion worker started", zap.Int("interval_sec", cfg.Pipeline.IntervalSec))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("ingestion worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
