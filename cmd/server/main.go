package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feepay-backend/internal/api/grpc"
	httpapi "feepay-backend/internal/api/http"
	"feepay-backend/internal/config"
	"feepay-backend/internal/events"
	"feepay-backend/internal/gateway/momo"
	"feepay-backend/internal/logger"
	"feepay-backend/internal/repository/postgres"
	"feepay-backend/internal/security"
	"feepay-backend/internal/service"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Environment overrides may come from a local .env file
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Ignoring unreadable .env file: %v", err)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting FeePay ledger backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress(), "health_address", cfg.GetHealthAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)
	logger.Info("MoMo configuration", "environment", cfg.Momo.Environment, "base_url", cfg.Momo.BaseURL, "token_cache", cfg.Momo.TokenCache)

	// Initialize Database
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(context.Background(), db); err != nil {
			log.Fatalf("Failed to apply schema: %v", err)
		}
		logger.Info("Database schema applied")
	}

	// Initialize Repositories
	store := postgres.NewStore(db)

	// Initialize Security
	tokenManager := security.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer)

	// Initialize MoMo gateway
	var tokenStore momo.TokenStore
	if cfg.Momo.TokenCache == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		tokenStore = momo.NewRedisTokenStore(rdb)
	} else {
		tokenStore = momo.NewMemoryTokenStore()
	}
	gateway := momo.NewClient(momo.Config{
		BaseURL:     cfg.Momo.BaseURL,
		Environment: cfg.Momo.Environment,
		Currency:    cfg.Momo.Currency,
		CallbackURL: cfg.Momo.CallbackURL,
		TokenTTL:    cfg.Momo.TokenTTL(),
		Products: map[string]momo.Credentials{
			momo.ProductCollection: {
				SubscriptionKey: cfg.Momo.Collection.SubscriptionKey,
				APIUser:         cfg.Momo.Collection.APIUser,
				APIKey:          cfg.Momo.Collection.APIKey,
			},
		},
	}, tokenStore, &http.Client{Timeout: time.Duration(cfg.Momo.TimeoutSeconds) * time.Second})

	// Initialize ledger event publisher
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		logger.Info("Publishing ledger events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}
	defer publisher.Close()

	// Initialize Services
	services := httpapi.Services{
		Settlement: service.NewSettlementService(store, publisher),
		TopUp:      service.NewTopUpService(store, gateway, publisher),
		Wallet:     service.NewWalletService(store, publisher),
		Fee:        service.NewFeeService(store, publisher),
		Deletion:   service.NewDeletionService(store),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Set up gRPC health server
	health := grpc.NewHealthChecker(store)
	go health.Run(ctx, 10*time.Second)
	var grpcServer interface{ GracefulStop() }
	if addr := cfg.GetHealthAddress(); addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Error("Failed to listen", "error", err, "address", addr)
			log.Fatalf("Failed to listen: %v", err)
		}
		s := grpc.NewServer(health)
		grpcServer = s
		go func() {
			logger.Info("gRPC health server listening", "address", addr)
			if err := s.Serve(lis); err != nil {
				logger.Error("Failed to serve gRPC", "error", err)
			}
		}()
	}

	// Set up HTTP server
	srv := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           httpapi.NewRouter(services, tokenManager, cfg.Momo.WebhookSecret, store),
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	// Graceful shutdown
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	logger.Info("Server stopped. Goodbye!")
}
