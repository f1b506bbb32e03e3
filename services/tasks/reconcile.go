package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TypeTransactionReconcile = "transaction:reconcile"

// ReconcilePayload names the transaction whose state must be re-fetched.
type ReconcilePayload struct {
	TrxCode string `json:"trx_code"`
}

func NewReconcileTask(payload ReconcilePayload, delay time.Duration) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeTransactionReconcile, b)
	opts := []asynq.Option{
		asynq.ProcessIn(delay),
		asynq.MaxRetry(5),
		asynq.Unique(delay + time.Minute),
	}

	return task, opts, nil
}

// Enqueuer is the part of *asynq.Client the scheduler uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ReconcileScheduler queues delayed detail refreshes through asynq.
type ReconcileScheduler struct {
	client Enqueuer
	delay  time.Duration
}

func NewReconcileScheduler(client Enqueuer, delay time.Duration) *ReconcileScheduler {
	return &ReconcileScheduler{client: client, delay: delay}
}

func (s *ReconcileScheduler) ScheduleReconcile(ctx context.Context, trxCode string) error {
	task, opts, err := NewReconcileTask(ReconcilePayload{TrxCode: trxCode}, s.delay)
	if err != nil {
		return err
	}
	if _, err := s.client.EnqueueContext(ctx, task, opts...); err != nil {
		if err == asynq.ErrDuplicateTask {
			return nil
		}
		return fmt.Errorf("failed to enqueue reconcile of %s: %w", trxCode, err)
	}
	return nil
}
