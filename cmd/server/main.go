package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shop-service/config"
	"shop-service/internal/access"
	"shop-service/internal/api"
	"shop-service/internal/broker"
	"shop-service/internal/redisclient"
	"shop-service/internal/service"
	"shop-service/internal/store"
	"shop-service/internal/store/memstore"
	"shop-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting shop service")

	tp, err := util.InitTracer("shop-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	policy, err := access.ParsePolicy(cfg.Business.LineItemPolicy)
	if err != nil {
		log.Fatalf("Invalid LINEITEM_POLICY: %v", err)
	}

	repo, err := openRepository(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer repo.Close()

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicShop)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	evaluator := access.NewEvaluator(repo, policy)
	services := api.Services{
		Shops:     service.NewShopService(repo, evaluator, eventPublisher),
		Products:  service.NewProductService(repo, evaluator, eventPublisher),
		Orders:    service.NewOrderService(repo, evaluator, redisClient, cfg.Business.IdempotencyTTL, eventPublisher),
		LineItems: service.NewLineItemService(repo, evaluator, eventPublisher),
	}
	logger.Info("Line item policy", zap.String("policy", policy.String()))

	if cfg.Database.Driver == "memory" && cfg.Server.DevUser != "" {
		users := service.NewUserService(repo, redisClient, cfg.Business.SessionTTL, eventPublisher)
		seedDevUser(users, cfg.Server.DevUser, logger)
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(services, repo, redisClient, map[string]api.Pinger{"redis": redisClient})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: api.TrimTrailingSlash(router),
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func openRepository(cfg *config.Config, logger *zap.Logger) (store.Repository, error) {
	switch cfg.Database.Driver {
	case "memory":
		logger.Warn("Using the in-memory store, data is lost on exit")
		return memstore.New(), nil
	case "postgres":
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		log.Println("Database connected")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := db.Migrate(ctx, util.Component("migrate")); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Database.Driver)
	}
}

// seedDevUser creates a user in the in-memory store and logs a token for it,
// since shopctl cannot reach a store that lives inside this process.
func seedDevUser(users *service.UserService, username string, logger *zap.Logger) {
	ctx := context.Background()
	user, err := users.Create(ctx, username)
	if err != nil {
		logger.Error("Failed to create dev user", zap.Error(err))
		return
	}
	token, err := users.IssueToken(ctx, user.ID)
	if err != nil {
		logger.Error("Failed to issue dev token", zap.Error(err))
		return
	}
	logger.Info("Dev user ready",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("token", token))
}
