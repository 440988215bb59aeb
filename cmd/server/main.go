package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/churn-scorer/internal/api"
	"github.com/ignite/churn-scorer/internal/auth"
	"github.com/ignite/churn-scorer/internal/config"
	"github.com/ignite/churn-scorer/internal/digest"
	"github.com/ignite/churn-scorer/internal/pkg/distlock"
	"github.com/ignite/churn-scorer/internal/pkg/logger"
	"github.com/ignite/churn-scorer/internal/prediction"
	"github.com/ignite/churn-scorer/internal/repository/dynamo"
	"github.com/ignite/churn-scorer/internal/repository/postgres"
	"github.com/ignite/churn-scorer/internal/ses"
	"github.com/ignite/churn-scorer/internal/service/analysis"
	"github.com/ignite/churn-scorer/internal/storage"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%s is already in use: %v\n"+
			"  Hint: Run 'lsof -i %s' to find the blocking process", addr, err, addr[strings.LastIndex(addr, ":"):])
	}
	ln.Close()
	return nil
}

func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func main() {
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  Churn Scorer API (cmd/server/main.go)                     ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	if _, err := os.Stat(configPath); err != nil {
		log.Printf("[config] %s not found, using defaults and env", configPath)
		configPath = ""
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.Redact())

	addr := cfg.Server.Addr()
	if err := checkPortAvailable(addr); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}
	log.Printf("Pre-flight check passed: %s is available", addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	var db *sql.DB
	if cfg.Database.URL != "" {
		db, err = sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxOpenConns / 4)
		db.SetConnMaxLifetime(5 * time.Minute)

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		pingCancel()
		if err != nil {
			log.Fatalf("Database ping failed (%s): %v", extractHost(cfg.Database.URL), err)
		}
		defer db.Close()
		log.Printf("Database connected: %s", extractHost(cfg.Database.URL))
	} else if cfg.Database.Backend == "postgres" {
		log.Fatal("DATABASE_URL is required for the postgres backend")
	}

	// Redis is optional; without it runs are serialized with PG advisory locks.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Warning: Redis connection failed: %v, falling back to PG advisory locks", err)
			redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Println("Redis connected (distributed locking enabled)")
		}
		pingCancel()
	} else {
		log.Println("Redis not configured, using PG advisory locks")
	}

	// File storage
	var (
		files   analysis.FileSource
		storeHC api.Pinger
	)
	switch cfg.Storage.Type {
	case "s3":
		awsCfg, err := storage.LoadAWSConfig(ctx, cfg.Storage.AWSRegion, cfg.Storage.GetAWSProfile())
		if err != nil {
			log.Fatalf("Failed to load AWS config: %v", err)
		}
		s3Store := storage.NewS3StoreFromConfig(awsCfg, cfg.Storage.S3Bucket)
		files, storeHC = s3Store, s3Store
		log.Printf("Storage: s3://%s", cfg.Storage.S3Bucket)
	default:
		local := storage.NewLocalStore(cfg.Storage.LocalPath)
		files, storeHC = local, local
		log.Printf("Storage: local %s", cfg.Storage.LocalPath)
	}

	// Analysis repository
	var (
		repo analysis.Repository
		dbHC api.Pinger
	)
	switch cfg.Database.Backend {
	case "dynamodb":
		awsCfg, err := storage.LoadAWSConfig(ctx, cfg.Storage.AWSRegion, cfg.Storage.GetAWSProfile())
		if err != nil {
			log.Fatalf("Failed to load AWS config: %v", err)
		}
		dyn := dynamo.NewAnalysisRepoFromConfig(awsCfg, cfg.Database.DynamoDBTable)
		repo, dbHC = dyn, dyn
		log.Printf("Repository: dynamodb table %s", cfg.Database.DynamoDBTable)
	default:
		repo, dbHC = postgres.NewAnalysisRepo(db), api.PingFunc(db.PingContext)
		log.Println("Repository: postgres")
	}

	predictor := prediction.NewClient(prediction.Config{
		BaseURL: cfg.Prediction.BaseURL,
		Timeout: cfg.Prediction.Timeout(),
	})
	log.Printf("Prediction endpoint: %s (max in flight %d)", predictor.BaseURL(), cfg.Prediction.MaxInFlight)

	// Digest email
	var digester analysis.Digester
	if cfg.Digest.Enabled && cfg.SES.Configured() {
		sender, err := ses.NewSenderFromConfig(ctx, cfg.SES)
		if err != nil {
			log.Fatalf("Failed to initialize SES sender: %v", err)
		}
		var profiles digest.ProfileLookup
		if db != nil {
			profiles = postgres.NewProfileRepo(db)
		}
		reporter, err := digest.NewReporter(profiles, sender, digest.Options{
			TopN:         cfg.Digest.TopN,
			DashboardURL: cfg.Digest.DashboardURL,
		})
		if err != nil {
			log.Fatalf("Failed to build digest reporter: %v", err)
		}
		digester = reporter
		log.Printf("Digest email enabled (from %s)", cfg.SES.FromAddress)
	} else {
		log.Println("Digest email disabled")
	}

	lockTTL := cfg.Redis.LockTTL()
	svc := analysis.NewService(repo, files, predictor, analysis.Options{
		MaxInFlight:   cfg.Prediction.MaxInFlight,
		Digest:        digester,
		DigestTimeout: cfg.Digest.Timeout(),
		NewLock: func(key string) analysis.Locker {
			return distlock.NewLock(redisClient, db, key, lockTTL)
		},
	})

	var verifier auth.Verifier
	if cfg.Auth.Enabled {
		verifier = auth.NewGoogleVerifier(auth.GoogleConfig{
			ClientID:      cfg.Auth.GoogleClientID,
			AllowedDomain: cfg.Auth.AllowedDomain,
		})
		log.Printf("Google token auth enabled (domain: %q)", cfg.Auth.AllowedDomain)
	} else {
		verifier = auth.StaticVerifier{Identity: auth.Identity{
			UserID: cfg.Auth.DevOwnerID,
			Email:  cfg.Auth.DevOwnerEmail,
		}}
		log.Printf("Authentication disabled, requests run as %q", cfg.Auth.DevOwnerID)
	}

	health := api.NewHealthChecker(dbHC, redisClient, storeHC)
	server := api.NewServer(cfg.Server, svc, health, verifier)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := svc.Drain(shutdownCtx); err != nil {
		log.Printf("Digest drain incomplete: %v", err)
	}

	log.Println("Server stopped")
}
