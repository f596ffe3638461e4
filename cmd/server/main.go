package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RhaCode/Groci-Smart-sub000/internal/config"
	"github.com/RhaCode/Groci-Smart-sub000/internal/infra"
	"github.com/RhaCode/Groci-Smart-sub000/internal/repository"
	"github.com/RhaCode/Groci-Smart-sub000/internal/router"
	"github.com/RhaCode/Groci-Smart-sub000/internal/service"
	"github.com/RhaCode/Groci-Smart-sub000/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Structured logger — dev: pretty, prod: JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	// Circuit breaker guarding the OCR sidecar — shared between the HTTP
	// health endpoint, the worker pool and the retry cron.
	ocrCB := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	ocrClient := infra.NewOCRClient(cfg.OCRSidecarURL)

	// Start goroutine worker pool for async receipt extraction. Worker
	// handlers are wired here (composition root) so the pool has full
	// access to all infrastructure dependencies.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := worker.NewDispatcher(rdb)
	receiptRepo := repository.NewReceiptRepository(db)
	productRepo := repository.NewProductRepository(db)
	storeRepo := repository.NewStoreRepository(db)
	priceRepo := repository.NewPriceRepository(db)
	receiptSvc := service.NewReceiptService(receiptRepo, productRepo, storeRepo, priceRepo, dispatcher)

	handlers := worker.Handlers{
		Receipt: worker.NewReceiptWorker(receiptRepo, receiptSvc, ocrClient, ocrCB, rdb),
	}
	worker.StartWorkerPool(ctx, rdb, cfg.WorkerPoolSize, handlers)

	worker.StartRetryCron(ctx, worker.RetryCronConfig{
		ReceiptRepo: receiptRepo,
		ReceiptSvc:  receiptSvc,
		OCRClient:   ocrClient,
		CB:          ocrCB,
		RDB:         rdb,
		Dispatcher:  dispatcher,
	})

	r := router.New(cfg, db, rdb, ocrCB)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("groci backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
