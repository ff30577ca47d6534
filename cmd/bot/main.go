package main

import (
	"context"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/allenheltondev/momento-bag-of-tricks/internal/cache"
	"github.com/allenheltondev/momento-bag-of-tricks/internal/chat"
	"github.com/allenheltondev/momento-bag-of-tricks/internal/config"
	"github.com/allenheltondev/momento-bag-of-tricks/internal/llm"
	"github.com/allenheltondev/momento-bag-of-tricks/internal/objects"
	"github.com/allenheltondev/momento-bag-of-tricks/internal/scheduler"
	"github.com/allenheltondev/momento-bag-of-tricks/internal/store"
	"github.com/allenheltondev/momento-bag-of-tricks/internal/telegram"
)

func main() {
	log := logrus.New()

	if err := godotenv.Load(".env"); err != nil {
		log.WithError(err).Warn(".env file not found")
	}

	cfg, err := config.New()
	if err != nil {
		log.WithError(err).Fatal("failed to parse config")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	cacheClient := cache.New(cache.Options{
		Addr:       cfg.RedisAddr,
		Password:   cfg.RedisPassword,
		DB:         cfg.RedisDB,
		Name:       cfg.CacheName,
		DefaultTTL: cfg.CacheTTL(),
	}, log)
	defer cacheClient.Close()

	objStore, err := store.New(store.Options{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Region:    cfg.S3Region,
		UseSSL:    cfg.S3UseSSL,
		Bucket:    cfg.BucketName,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("failed to init object store")
	}

	factory := llm.NewFactory(cfg)
	llmClient, err := factory.CreateClient(cfg.LLMProvider, cfg.OpenAIModel)
	if err != nil {
		log.WithError(err).Fatal("failed to create llm client")
	}

	chatSvc := chat.NewService(llmClient, cacheClient, log)
	accessor := objects.NewAccessor(cacheClient, objStore, cfg.CacheTTL(), log)

	systemPrompt := readSystemPrompt(cfg.SystemPromptPath, log)

	bot, err := telegram.New(cfg.TelegramBotToken, chatSvc, accessor, systemPrompt, log)
	if err != nil {
		log.WithError(err).Fatal("failed to init telegram bot")
	}

	sched := scheduler.New(log)
	sched.SetHealthCheck(func(ctx context.Context) error {
		if err := cacheClient.Ping(ctx); err != nil {
			return err
		}
		return objStore.HealthCheck(ctx)
	})
	if err := sched.Start(); err != nil {
		log.WithError(err).Fatal("failed to start scheduler")
	}
	defer sched.Stop()

	log.Info("bot started")
	bot.Start(context.Background())
}

func readSystemPrompt(path string, log *logrus.Logger) string {
	if path == "" {
		return ""
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).Warn("failed to read system prompt")
		return ""
	}
	return strings.TrimSpace(string(b))
}
