package main

import (
	"context"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/furniture-store/internal/notification/application"
	notificationkafka "github.com/dmehra2102/furniture-store/internal/notification/infrastructure/kafka"
	"github.com/dmehra2102/furniture-store/internal/notification/infrastructure/smtp"
	"github.com/dmehra2102/furniture-store/pkg/config"
	"github.com/dmehra2102/furniture-store/pkg/idempotency"
	"github.com/dmehra2102/furniture-store/pkg/logging"
	"github.com/dmehra2102/furniture-store/pkg/shutdown"
	"github.com/dmehra2102/furniture-store/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	log := logging.New(cfg.LogLevel)
	if err != nil {
		log.Error("config load failed", "err", err)
		os.Exit(1)
	}

	ctx, cancel := shutdown.WithSignals(context.Background(), log)
	defer cancel()

	tp, err := tracing.Init(ctx, "notifier", cfg.OTelEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	idem := idempotency.NewStore(rdb, cfg.IdempotencyTTL)

	sender := smtp.NewSender(log, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	notifier := application.NewNotifier(log, sender)
	consumer := notificationkafka.NewConsumer(log, cfg.KafkaBrokers, cfg.OrderEventsTopic, cfg.ConsumerGroup, notifier, idem)

	log.Info("notifier consuming", "topic", cfg.OrderEventsTopic, "group", cfg.ConsumerGroup)
	if err := consumer.Run(ctx); err != nil {
		log.Error("consumer stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("notifier shutdown complete")
}
