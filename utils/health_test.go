package utils

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthMonitorCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	state := "closed"
	monitor := NewHealthMonitor(client, nil, func() string { return state })

	status := monitor.Check(context.Background())
	require.NotNil(t, status.Redis)
	assert.True(t, *status.Redis)
	assert.Nil(t, status.Mongo)
	assert.True(t, status.Healthy())
	assert.Equal(t, status, monitor.Status())

	state = "open"
	assert.False(t, monitor.Check(context.Background()).Healthy())

	state = "closed"
	mr.Close()
	status = monitor.Check(context.Background())
	require.NotNil(t, status.Redis)
	assert.False(t, *status.Redis)
	assert.False(t, status.Healthy())
}
