package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/pricelist/internal/api"
	"github.com/example/pricelist/internal/auth"
	"github.com/example/pricelist/internal/config"
	"github.com/example/pricelist/internal/engine"
	"github.com/example/pricelist/internal/infrastructure/kafka"
	"github.com/example/pricelist/internal/infrastructure/store"
	"github.com/example/pricelist/internal/summary"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[API] Invalid configuration: %v", err)
	}
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatalf("[API] %v", err)
	}

	log.Println("[API] ========================================")
	log.Println("[API] Price List - Inventory & Orders")
	log.Println("[API] ========================================")
	log.Printf("[API] Store: %s", cfg.StoreKind)
	log.Printf("[API] Locale: %s", cfg.Locale())

	// Initialize state store
	stateStore, closeStore, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		log.Fatalf("[API] Failed to open %s state store: %v", cfg.StoreKind, err)
	}
	defer closeStore()

	opts := engine.Options{
		Locale:     cfg.Locale(),
		Summarizer: summary.NewClient(cfg.SummaryEndpoint, cfg.SummaryModel, cfg.SummaryAPIKey, cfg.SummaryTimeout),
	}
	if cfg.SummaryAPIKey == "" {
		log.Println("[API] Summary API key not set, summaries disabled")
	}

	// Initialize Kafka producer for ledger events
	if cfg.PublishEvents {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		opts.Publisher = producer
		log.Printf("[API] Kafka: %v", cfg.KafkaBrokers)
		log.Printf("[API] Topic: %s", cfg.KafkaTopic)
	}

	eng, err := engine.New(ctx, store.NewRepository(stateStore), opts)
	if err != nil {
		log.Fatalf("[API] Failed to load state: %v", err)
	}

	// Initialize auth
	authenticator, err := auth.NewAuthenticator(cfg.AdminUsername, cfg.AdminPasswordHash, cfg.AdminPassword)
	if err != nil {
		log.Fatalf("[API] Invalid admin credentials: %v", err)
	}
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.TokenTTL)

	router := api.NewRouter(api.RouterConfig{
		Handlers:       api.NewHandlers(eng, cfg.LowStockThreshold),
		AuthHandlers:   api.NewAuthHandlers(authenticator, jwtService),
		JWTService:     jwtService,
		Production:     cfg.IsProduction(),
		LoginRateLimit: cfg.LoginRateLimit,
		RequestTimeout: cfg.SummaryTimeout + 5*time.Second,
	})

	// Start HTTP server
	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		log.Printf("[API] Server started on %s", cfg.AppAddr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[API] Shutdown error: %v", err)
	}
}
