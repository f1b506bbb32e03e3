package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "1", Type: task.Type()}, nil
}

func TestScheduleReconcileEnqueuesTask(t *testing.T) {
	q := &fakeEnqueuer{}
	s := NewReconcileScheduler(q, 5*time.Second)

	require.NoError(t, s.ScheduleReconcile(context.Background(), "TX1"))
	require.Len(t, q.tasks, 1)
	assert.Equal(t, TypeTransactionReconcile, q.tasks[0].Type())

	var p ReconcilePayload
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &p))
	assert.Equal(t, "TX1", p.TrxCode)
}

func TestScheduleReconcileIgnoresDuplicates(t *testing.T) {
	s := NewReconcileScheduler(&fakeEnqueuer{err: asynq.ErrDuplicateTask}, time.Second)
	assert.NoError(t, s.ScheduleReconcile(context.Background(), "TX1"))

	s = NewReconcileScheduler(&fakeEnqueuer{err: errors.New("redis down")}, time.Second)
	assert.Error(t, s.ScheduleReconcile(context.Background(), "TX1"))
}
