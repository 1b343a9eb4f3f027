package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lojavox/internal/config"
	"lojavox/internal/openai"
	"lojavox/internal/photo"
	"lojavox/internal/queue"
	"lojavox/internal/storage"
	"lojavox/internal/sugestao"
	"lojavox/internal/worker"
	"lojavox/pkg/cache"
	"lojavox/pkg/logger"
	"lojavox/pkg/resilience"

	"go.uber.org/zap"
)

func main() {
	debug := true
	if err := logger.Init(debug); err != nil {
		panic("Failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("Starting lojavox worker service")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var db *storage.PostgresStorage
	err = resilience.RetryWithExponentialBackoff(ctx, resilience.DefaultRetryConfig(), func() error {
		var err error
		db, err = storage.NewPostgresStorage(cfg.Postgres.DSN)
		return err
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
		return
	}
	defer db.Close()

	logger.Info("Database connection established")

	var rabbitMQ *queue.RabbitMQ
	err = resilience.RetryWithExponentialBackoff(ctx, resilience.DefaultRetryConfig(), func() error {
		var err error
		rabbitMQ, err = queue.NewRabbitMQ(cfg.RabbitMQ.URL)
		return err
	})
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		return
	}
	defer rabbitMQ.Close()

	logger.Info("RabbitMQ connection established")

	redisCache, err := cache.NewRedisCache(
		cfg.Redis.Addr,
		cfg.Redis.Password,
		cfg.Redis.DB,
		24*time.Hour,
	)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
		return
	}
	defer redisCache.Close()

	logger.Info("Redis cache connection established")

	llm := openai.NewClient(openai.Config{
		BaseURL:            cfg.OpenAI.BaseURL,
		APIKey:             cfg.OpenAI.APIKey,
		ChatModel:          cfg.OpenAI.ChatModel,
		VisionModel:        cfg.OpenAI.VisionModel,
		TranscriptionModel: cfg.OpenAI.TranscriptionModel,
	})

	logger.Info("OpenAI client initialized")

	generator := sugestao.NewGenerator(llm, db)
	analyzer := photo.NewAnalyzer(llm, redisCache, cfg.Worker.PhotoPoolSize)
	processor := worker.NewProcessor(db, generator, analyzer)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Starting to consume messages from queue",
			zap.Int("prefetch", cfg.Worker.Concurrency))
		if err := rabbitMQ.Consume(queue.QueueNameRelatorioEvents, cfg.Worker.Concurrency, processor.ProcessTask); err != nil {
			logger.Error("Failed to consume messages", zap.Error(err))
			cancel()
		}
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	// Let in-flight handlers finish before the deferred closes run
	time.Sleep(time.Second)

	logger.Info("Worker service shutdown complete")
}
