package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/example/pricelist/internal/config"
	"github.com/example/pricelist/internal/email"
	"github.com/example/pricelist/internal/infrastructure/kafka"
	"github.com/example/pricelist/internal/notification"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Notifier] Invalid configuration: %v", err)
	}

	log.Println("[Notifier] ========================================")
	log.Println("[Notifier] Price List - Order Notification Service")
	log.Println("[Notifier] ========================================")
	log.Printf("[Notifier] Kafka: %v", cfg.KafkaBrokers)
	log.Printf("[Notifier] Topic: %s", cfg.KafkaTopic)
	log.Printf("[Notifier] Group: %s", cfg.KafkaGroup)
	log.Printf("[Notifier] SMTP: %s:%s", cfg.SMTPHost, cfg.SMTPPort)
	log.Printf("[Notifier] Inbox: %s", cfg.NotifyInbox)
	log.Printf("[Notifier] Mail queue: %s", cfg.MailQueue)

	// Initialize email service
	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUsername, cfg.SMTPPassword)

	var mailer notification.Mailer = emailSvc
	if cfg.QueuedMail() {
		redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}

		client := asynq.NewClient(redisOpt)
		defer client.Close()
		mailer = notification.NewQueueMailer(client)

		srv := asynq.NewServer(redisOpt, asynq.Config{
			Concurrency: cfg.MailConcurrency,
			Queues:      map[string]int{notification.QueueMail: 1},
		})
		mux := asynq.NewServeMux()
		notification.RegisterTasks(mux, emailSvc)
		if err := srv.Start(mux); err != nil {
			log.Fatalf("[Notifier] Failed to start mail worker: %v", err)
		}
		defer srv.Shutdown()
		log.Printf("[Notifier] Mail worker running against %s", cfg.RedisAddr)
	}

	// Initialize notification handler
	handler := notification.NewHandler(mailer, cfg.NotifyInbox)

	// Initialize Kafka consumer
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroup)
	defer consumer.Close()

	// Start consuming
	go func() {
		log.Println("[Notifier] Starting event consumer...")
		if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && ctx.Err() == nil {
			log.Printf("[Notifier] Consumer error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Notifier] Shutting down...")
	cancel()
}
