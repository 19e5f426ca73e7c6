package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"feepay-backend/internal/config"
	"feepay-backend/internal/events"
	"feepay-backend/internal/gateway/momo"
	"feepay-backend/internal/jobs"
	"feepay-backend/internal/logger"
	"feepay-backend/internal/repository/postgres"
	"feepay-backend/internal/scheduler"
	"feepay-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'reconcile-pending-topups')")
	flag.Parse()

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
	logger.Info("Starting FeePay Cronjob Runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize Repositories
	store := postgres.NewStore(db)

	// The poll shares the server's token cache when redis is configured
	var tokenStore momo.TokenStore = momo.NewMemoryTokenStore()
	if cfg.Momo.TokenCache == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		tokenStore = momo.NewRedisTokenStore(rdb)
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

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}
	defer publisher.Close()

	jobServices := &jobs.Services{
		TopUp: service.NewTopUpService(store, gateway, publisher),
	}

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(jobServices, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		if !runJobOnce(jobRunner, *runOnce) {
			os.Exit(1)
		}
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler, err := scheduler.NewScheduler(jobRunner)
	if err != nil {
		log.Fatalf("Failed to build scheduler: %v", err)
	}

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and reports whether the name was known
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) bool {
	switch jobName {
	case "reconcile-pending-topups":
		jobRunner.ReconcilePendingTopUps()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - reconcile-pending-topups\n")
		return false
	}
	return true
}
