package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mitra/models"
	"mitra/services/tasks"
	"mitra/utils"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Reconciler refreshes a transaction if it is still the one being coordinated.
type Reconciler interface {
	ReconcileIfCurrent(ctx context.Context, trxCode string) (bool, error)
}

// InitReconcileWorker runs the async worker in background. The returned server
// must be shut down by the caller.
func InitReconcileWorker(reconciler Reconciler, logger *zap.Logger) *asynq.Server {
	srv := asynq.NewServer(
		utils.QueueRedisOpt(),
		asynq.Config{
			Concurrency: 1,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeTransactionReconcile, HandleReconcileTask(reconciler, logger))

	// Start async worker with retry logic
	go func() {
		logger.Info("Starting reconcile worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				logger.Warn("Reconcile worker failed to start", zap.Int("attempt", attempts), zap.Error(err))

				if attempts == maxAttempts {
					logger.Error("Reconcile worker gave up after max attempts")
					return
				}
				time.Sleep(time.Duration(attempts*2) * time.Second)
			} else {
				break
			}
		}
	}()
	return srv
}

// HandleReconcileTask refreshes the named transaction. Transient failures are
// retried by asynq; a refresh is read-only, so retrying never repeats a mutation.
func HandleReconcileTask(reconciler Reconciler, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p tasks.ReconcilePayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil || p.TrxCode == "" {
			logger.Error("Invalid reconcile payload", zap.ByteString("payload", task.Payload()), zap.Error(err))
			return fmt.Errorf("invalid reconcile payload: %v: %w", err, asynq.SkipRetry)
		}

		attempted, err := reconciler.ReconcileIfCurrent(ctx, p.TrxCode)
		if !attempted {
			logger.Debug("Skipping reconcile of a transaction that is no longer current", zap.String("trx_code", p.TrxCode))
			return nil
		}
		if err == nil {
			logger.Info("Transaction reconciled in background", zap.String("trx_code", p.TrxCode))
			return nil
		}

		logger.Warn("Background reconcile failed", zap.String("trx_code", p.TrxCode), zap.Error(err))
		switch models.KindOf(err) {
		case models.KindTransientFailure, models.KindUnavailable:
			return err
		default:
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
	}
}
