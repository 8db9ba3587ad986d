package main

import (
	"context"
	"errors"
	"os"
	"time"

	"reservation-service/config"
	"reservation-service/internal/cache"
	"reservation-service/internal/cli"
	"reservation-service/internal/idempotency"
	"reservation-service/internal/integrity"
	"reservation-service/internal/producer"
	"reservation-service/internal/repository"
	"reservation-service/internal/service"
	"reservation-service/pkg/database"
	"reservation-service/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}

	defer logger.Sync()

	log := logger.L()

	open := func(ctx context.Context) (*cli.Backend, error) {
		dbCfg := config.LoadDB(log)
		db := database.ConnectDB(&dbCfg.Config, log)
		repo := repository.New(db, repository.WithLockTimeout(5*time.Second))

		// кэш живёт одну команду: данные всегда свежие
		c := cache.NewMemory(cache.Config{Capacity: 1024}, log)
		keys := idempotency.NewManager(repo, c, nil, log)

		return &cli.Backend{
			Catalog:  service.NewCatalogService(repo, c, log),
			Bookings: service.NewReservationService(repo, c, keys, producer.Noop{}, log),
			Checker:  integrity.NewChecker(repo, log),
			Close:    func() { database.CloseDB(db, log) },
		}, nil
	}

	if err := cli.Execute(open); err != nil {
		if !errors.Is(err, cli.ErrIntegrityIssues) {
			log.Error("command failed", zap.Error(err))
		}
		os.Exit(1)
	}
}
