package worker

// Processes extraction jobs from QueueReceipts: claims the receipt via a
// conditional status flip, calls the OCR sidecar through the circuit
// breaker, and hands the structured result to the receipt service.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RhaCode/Groci-Smart-sub000/internal/dto"
	"github.com/RhaCode/Groci-Smart-sub000/internal/infra"
	"github.com/RhaCode/Groci-Smart-sub000/internal/model"
	"github.com/RhaCode/Groci-Smart-sub000/internal/repository"
	"github.com/RhaCode/Groci-Smart-sub000/internal/service"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// MaxReceiptRetries is the attempt ceiling before a receipt is failed
// and its job parked in the DLQ.
const MaxReceiptRetries = 3

// ReceiptWorker handles one extraction job end to end.
type ReceiptWorker struct {
	repo      repository.ReceiptRepository
	svc       service.ReceiptService
	ocrClient *infra.OCRClient
	cb        *infra.CircuitBreaker
	rdb       *redis.Client
}

func NewReceiptWorker(
	repo repository.ReceiptRepository,
	svc service.ReceiptService,
	ocrClient *infra.OCRClient,
	cb *infra.CircuitBreaker,
	rdb *redis.Client,
) *ReceiptWorker {
	return &ReceiptWorker{repo: repo, svc: svc, ocrClient: ocrClient, cb: cb, rdb: rdb}
}

// Process handles a single extraction job:
//  1. Parse ReceiptJobPayload
//  2. Claim the receipt: pending → processing (CAS). A reprocessed
//     receipt arrives already in processing; anything else is stale.
//  3. Stamp next_retry_at so the cron recovers the receipt if this
//     worker dies mid-call.
//  4. Call the OCR sidecar through the circuit breaker with in-process
//     backoff (immediate, 1s, 2s).
//  5. Apply the extraction, or record the failure for the retry cron.
func (w *ReceiptWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload ReceiptJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("receipt_worker: invalid payload")
		return
	}
	receiptID, err := uuid.Parse(payload.ReceiptID)
	if err != nil {
		log.Error().Str("receipt_id", payload.ReceiptID).Msg("receipt_worker: invalid receipt_id")
		return
	}

	rows, err := w.repo.UpdateStatusIf(ctx, receiptID, model.ReceiptPending, model.ReceiptProcessing)
	if err != nil {
		log.Error().Err(err).Str("receipt_id", payload.ReceiptID).Msg("receipt_worker: claim failed")
		return
	}
	rec, err := w.repo.FindByID(ctx, receiptID, uuid.Nil, true)
	if err != nil {
		log.Error().Err(err).Str("receipt_id", payload.ReceiptID).Msg("receipt_worker: receipt not found")
		return
	}
	if rows == 0 && rec.Status != model.ReceiptProcessing {
		// Another worker claimed it, or the job is stale.
		log.Debug().Str("receipt_id", payload.ReceiptID).Str("status", string(rec.Status)).
			Msg("receipt_worker: receipt not claimable, skipping")
		return
	}

	// Lease stamp: if this worker dies mid-call the cron picks the
	// receipt up once next_retry_at passes.
	lease := time.Now().Add(computeRetryBackoff(rec.RetryCount + 1))
	rec.Status = model.ReceiptProcessing
	rec.NextRetryAt = &lease
	if err := w.repo.Update(ctx, rec); err != nil {
		log.Error().Err(err).Str("receipt_id", payload.ReceiptID).Msg("receipt_worker: lease stamp failed")
		return
	}

	var result *dto.ExtractionResult
	cbErr := w.cb.Execute(func() error {
		return withRetry(ctx, 3, func(attempt int) error {
			resp, err := w.ocrClient.Extract(ctx, infra.OCRRequest{
				ReceiptID: payload.ReceiptID,
				ImageRef:  rec.ImageRef,
			})
			if err != nil {
				log.Warn().Err(err).Int("attempt", attempt+1).
					Str("receipt_id", payload.ReceiptID).
					Msg("receipt_worker: extraction attempt failed")
				return err
			}
			result = resp
			return nil
		})
	})

	if cbErr != nil {
		w.recordFailure(ctx, rec, cbErr)
		return
	}

	if err := w.svc.ApplyExtraction(ctx, receiptID, *result); err != nil {
		log.Error().Err(err).Str("receipt_id", payload.ReceiptID).Msg("receipt_worker: apply extraction failed")
		w.recordFailure(ctx, rec, err)
		return
	}

	// Re-fetch: ApplyExtraction rewrote the row, the local copy is stale.
	if fresh, err := w.repo.FindByID(ctx, receiptID, uuid.Nil, true); err == nil {
		fresh.NextRetryAt = nil
		fresh.RetryCount = 0
		_ = w.repo.Update(ctx, fresh)
	}
	log.Info().Str("receipt_id", payload.ReceiptID).Msg("receipt_worker: extraction completed")
}

// recordFailure schedules the next attempt or, past the ceiling, fails
// the receipt and parks the job in the DLQ.
func (w *ReceiptWorker) recordFailure(ctx context.Context, rec *model.Receipt, cause error) {
	rec.RetryCount++
	if rec.RetryCount >= MaxReceiptRetries {
		reason := fmt.Sprintf("max retries (%d) exceeded: %v", MaxReceiptRetries, cause)
		if err := w.svc.MarkFailed(ctx, rec.ID, reason); err != nil {
			log.Error().Err(err).Str("receipt_id", rec.ID.String()).Msg("receipt_worker: mark failed errored")
		}
		// MarkFailed rewrote the row; update retry fields on a fresh copy
		// so the failure reason is not clobbered.
		if fresh, err := w.repo.FindByID(ctx, rec.ID, uuid.Nil, true); err == nil {
			fresh.RetryCount = rec.RetryCount
			fresh.NextRetryAt = nil
			_ = w.repo.Update(ctx, fresh)
		}

		payload, _ := json.Marshal(ReceiptJobPayload{ReceiptID: rec.ID.String()})
		SendToDLQ(ctx, w.rdb, QueueReceipts, "receipt_extraction", payload, reason, rec.RetryCount)
		return
	}

	next := time.Now().Add(computeRetryBackoff(rec.RetryCount))
	rec.NextRetryAt = &next
	if err := w.repo.Update(ctx, rec); err != nil {
		log.Error().Err(err).Str("receipt_id", rec.ID.String()).Msg("receipt_worker: retry bookkeeping failed")
		return
	}
	log.Warn().
		Str("receipt_id", rec.ID.String()).
		Int("retry_count", rec.RetryCount).
		Time("next_retry_at", next).
		Msg("receipt_worker: extraction failed, scheduled next attempt")
}

// withRetry runs fn up to maxAttempts times.
// Backoff schedule: attempt 1 = immediate, 2 = 1s, 3 = 2s.
// Returns nil if any attempt succeeds; last error otherwise.
func withRetry(ctx context.Context, maxAttempts int, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := time.Duration(1<<uint(i-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// computeRetryBackoff spaces cron-driven retries: 1m, 5m, 15m, capped.
func computeRetryBackoff(retryCount int) time.Duration {
	switch {
	case retryCount <= 1:
		return time.Minute
	case retryCount == 2:
		return 5 * time.Minute
	default:
		return 15 * time.Minute
	}
}
