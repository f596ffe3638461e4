package worker

// Background goroutine that periodically recovers receipts stuck in
// "processing" whose next_retry_at has passed (worker died, sidecar was
// down) and re-enqueues "pending" receipts whose enqueue was lost. Uses
// the circuit breaker to avoid hammering a downed sidecar.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RhaCode/Groci-Smart-sub000/internal/infra"
	"github.com/RhaCode/Groci-Smart-sub000/internal/repository"
	"github.com/RhaCode/Groci-Smart-sub000/internal/service"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	retryTickInterval  = 30 * time.Second
	retryBatchSize     = 10
	pendingGracePeriod = 2 * time.Minute
)

// RetryCronConfig holds all dependencies for the retry goroutine.
type RetryCronConfig struct {
	ReceiptRepo repository.ReceiptRepository
	ReceiptSvc  service.ReceiptService
	OCRClient   *infra.OCRClient
	CB          *infra.CircuitBreaker
	RDB         *redis.Client
	Dispatcher  *Dispatcher
}

// StartRetryCron launches a background goroutine that ticks every 30s.
// It respects the context for graceful shutdown.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	go func() {
		ticker := time.NewTicker(retryTickInterval)
		defer ticker.Stop()

		log.Info().Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				requeueStalePending(ctx, cfg)
				processRetries(ctx, cfg)
			}
		}
	}()
}

// requeueStalePending puts lost pending receipts back on the queue.
func requeueStalePending(ctx context.Context, cfg RetryCronConfig) {
	cutoff := time.Now().Add(-pendingGracePeriod)
	receipts, err := cfg.ReceiptRepo.ListStalePending(ctx, cutoff, retryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to query stale pending receipts")
		return
	}
	for _, rec := range receipts {
		if err := cfg.Dispatcher.EnqueueReceipt(ctx, rec.ID); err != nil {
			log.Error().Err(err).Str("receipt_id", rec.ID.String()).Msg("retry_cron: re-enqueue failed")
			continue
		}
		log.Info().Str("receipt_id", rec.ID.String()).Msg("retry_cron: stale pending receipt re-enqueued")
	}
}

func processRetries(ctx context.Context, cfg RetryCronConfig) {
	// If CB is open, skip entirely — don't hammer a downed sidecar
	if cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("retry_cron: circuit breaker is open, skipping tick")
		return
	}

	now := time.Now()
	receipts, err := cfg.ReceiptRepo.ListStuckProcessing(ctx, now, retryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to query stuck receipts")
		return
	}
	if len(receipts) == 0 {
		return
	}

	log.Info().Int("count", len(receipts)).Msg("retry_cron: processing stuck receipts")

	for i := range receipts {
		rec := &receipts[i]

		// Check CB state before each call — it may have tripped mid-batch
		if cfg.CB.State() == infra.CBOpen {
			log.Debug().Msg("retry_cron: circuit breaker opened mid-batch, stopping")
			return
		}

		cbErr := cfg.CB.Execute(func() error {
			resp, err := cfg.OCRClient.Extract(ctx, infra.OCRRequest{
				ReceiptID: rec.ID.String(),
				ImageRef:  rec.ImageRef,
			})
			if err != nil {
				return err
			}
			return cfg.ReceiptSvc.ApplyExtraction(ctx, rec.ID, *resp)
		})

		if cbErr != nil {
			rec.RetryCount++
			if rec.RetryCount >= MaxReceiptRetries {
				reason := fmt.Sprintf("max retries (%d) exceeded: %v", MaxReceiptRetries, cbErr)
				if err := cfg.ReceiptSvc.MarkFailed(ctx, rec.ID, reason); err != nil {
					log.Error().Err(err).Str("receipt_id", rec.ID.String()).Msg("retry_cron: mark failed errored")
				}
				// MarkFailed rewrote the row; clear the retry schedule on a
				// fresh copy so the failure reason survives.
				if fresh, err := cfg.ReceiptRepo.FindByID(ctx, rec.ID, uuid.Nil, true); err == nil {
					fresh.RetryCount = rec.RetryCount
					fresh.NextRetryAt = nil
					_ = cfg.ReceiptRepo.Update(ctx, fresh)
				}

				payload, _ := json.Marshal(ReceiptJobPayload{ReceiptID: rec.ID.String()})
				SendToDLQ(ctx, cfg.RDB, QueueReceipts, "receipt_extraction", payload, reason, rec.RetryCount)
			} else {
				next := time.Now().Add(computeRetryBackoff(rec.RetryCount))
				rec.NextRetryAt = &next
				_ = cfg.ReceiptRepo.Update(ctx, rec)
				log.Warn().
					Str("receipt_id", rec.ID.String()).
					Int("retry_count", rec.RetryCount).
					Time("next_retry_at", next).
					Msg("retry_cron: extraction retry failed, scheduled next attempt")
			}
			continue
		}

		if fresh, err := cfg.ReceiptRepo.FindByID(ctx, rec.ID, uuid.Nil, true); err == nil {
			fresh.RetryCount = 0
			fresh.NextRetryAt = nil
			_ = cfg.ReceiptRepo.Update(ctx, fresh)
		}
		log.Info().
			Str("receipt_id", rec.ID.String()).
			Int("total_retries", rec.RetryCount).
			Msg("retry_cron: extraction completed after retry")
	}
}
