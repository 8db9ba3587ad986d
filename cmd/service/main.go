package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"reservation-service/config"
	"reservation-service/internal/cache"
	"reservation-service/internal/idempotency"
	"reservation-service/internal/integrity"
	"reservation-service/internal/producer"
	"reservation-service/internal/repository"
	"reservation-service/internal/service"
	"reservation-service/internal/storage/memory"
	httptransport "reservation-service/internal/transport/http"
	"reservation-service/pkg/database"
	"reservation-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// store: всё, что нужно сервисам и проверке целостности от хранилища.
type store interface {
	service.Store
	integrity.Source
}

func main() {
	_ = godotenv.Load()
	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}

	defer logger.Sync()

	log := logger.L()

	cfg := config.Load(log)
	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}

	var st store
	switch cfg.Storage {
	case config.StorageMemory:
		log.Warn("Using in-memory storage, data is lost on restart")
		st = memory.New(log, memory.WithLockTimeout(cfg.LockTimeout))
	case config.StoragePostgres:
		db := database.ConnectDB(&cfg.DB.Config, log)
		defer database.CloseDB(db, log)
		st = repository.New(db, repository.WithLockTimeout(cfg.LockTimeout))
	default:
		log.Fatal("Неизвестный тип хранилища", zap.String("storage", cfg.Storage))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	localCache := cache.NewMemory(cache.Config{
		Capacity:      cfg.Cache.Capacity,
		SweepInterval: cfg.Cache.SweepInterval,
	}, log)
	localCache.Start(ctx)
	defer localCache.Stop()

	var shared idempotency.SharedCache
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Fatal("failed to create redis client", zap.Error(err))
		}
		defer redisClient.Close()
		shared = redisClient
		log.Info("Redis cache enabled")
	} else {
		log.Info("Redis cache disabled")
	}

	var events service.EventBus = producer.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		p := producer.NewBookingProducer(cfg.Kafka.Brokers, cfg.Kafka.BookingTopic)
		defer p.Close()
		events = p
		log.Info("Kafka producer enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.BookingTopic))
	}

	keys := idempotency.NewManager(st, localCache, shared, log)
	bookings := service.NewReservationService(st, localCache, keys, events, log)
	catalog := service.NewCatalogService(st, localCache, log)

	checker := integrity.NewChecker(st, log)
	scheduler := integrity.NewScheduler(checker, cfg.IntegrityInterval, log)
	scheduler.Start(ctx)

	srv := &http.Server{
		Addr:    cfg.Port,
		Handler: httptransport.Router(bookings, catalog, checker, log),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("Starting reservation HTTP server", zap.String("addr", cfg.Port), zap.String("storage", cfg.Storage))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-quit
	log.Info("Shutting down reservation HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}

	// Останавливаем планировщик и дожидаемся отправки событий
	scheduler.Stop()
	cancel()
	bookings.Wait()

	log.Info("Reservation HTTP server stopped gracefully")
}
