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

	"khoomi-api-io/checkout/config"
	"khoomi-api-io/checkout/internal/common"
	"khoomi-api-io/checkout/internal/container"
	"khoomi-api-io/checkout/internal/events"
	"khoomi-api-io/checkout/internal/routers"
	"khoomi-api-io/checkout/pkg/apiclient"
	"khoomi-api-io/checkout/pkg/pricing"
	"khoomi-api-io/checkout/pkg/services"
	"khoomi-api-io/checkout/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}
	if _, err := util.InitLogger(cfg.GinMode, cfg.LogLevel); err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := container.Dependencies{
		Config: cfg,
		API:    apiclient.New(cfg.APIBaseURL, cfg.UpstreamTimeout),
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = util.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal("Failed to connect to redis:", err)
		}
		defer redisClient.Close()
		deps.Redis = redisClient
	} else {
		util.LogWarning("REDIS_URL not set, guest sessions and locks are process local")
	}

	if cfg.DatabaseURL != "" {
		mongoClient, err := util.ConnectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB:", err)
		}
		defer func() {
			if err := mongoClient.Disconnect(context.Background()); err != nil {
				util.LogError("mongo disconnect failed", err)
			}
		}()
		collection := util.GetCollection(mongoClient, cfg.DBName, common.ORDER_DRAFT_COLLECTION)
		deps.Drafts = services.NewMongoDraftRepository(collection, common.ORDER_DRAFT_TTL)
	}

	sink := cfg.EventSink
	if sink == "redis" && redisClient == nil {
		sink = "none"
	}
	publisher, err := events.New(sink, redisClient, cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		log.Fatal("Failed to create event publisher:", err)
	}
	defer publisher.Close()
	deps.Publisher = publisher

	if cfg.DeliveryServiceURL != "" {
		source := pricing.NewHTTPRateSource(cfg.DeliveryServiceURL, common.DELIVERY_RATE_TIMEOUT)
		deps.Rates = pricing.NewBreakerRateSource(source, 5, 30*time.Second)
	}

	serviceContainer := container.NewServiceContainer(deps)
	router := routers.InitRoute(cfg, serviceContainer, redisClient)

	server := &http.Server{
		Addr:    "0.0.0.0:" + cfg.Port,
		Handler: router,
	}

	go func() {
		util.LogInfo("checkout edge listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-ctx.Done()
	util.LogInfo("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		util.LogError("server shutdown failed", err)
	}
}
