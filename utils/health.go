package utils

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthStatus represents current status of external services.
type HealthStatus struct {
	Mongo     *bool     `json:"mongo,omitempty"`
	Redis     *bool     `json:"redis,omitempty"`
	Upstream  string    `json:"upstream"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Healthy is false when any configured dependency failed its last check or the
// partner API breaker is open.
func (h HealthStatus) Healthy() bool {
	if h.Mongo != nil && !*h.Mongo {
		return false
	}
	if h.Redis != nil && !*h.Redis {
		return false
	}
	return h.Upstream != "open"
}

// HealthMonitor periodically pings the optional backing stores and records the
// state of the partner API circuit breaker.
type HealthMonitor struct {
	redis    *redis.Client
	mongo    *mongo.Client
	upstream func() string
	interval time.Duration

	mu      sync.RWMutex
	current HealthStatus
}

// NewHealthMonitor accepts nil clients for stores that are not configured.
// upstream reports the breaker state ("closed", "half-open", "open").
func NewHealthMonitor(redisClient *redis.Client, mongoClient *mongo.Client, upstream func() string) *HealthMonitor {
	return &HealthMonitor{
		redis:    redisClient,
		mongo:    mongoClient,
		upstream: upstream,
		interval: 60 * time.Second,
	}
}

// Status returns latest stored health snapshot.
func (m *HealthMonitor) Status() HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Check runs one round of pings and stores the result.
func (m *HealthMonitor) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{CheckedAt: time.Now(), Upstream: "closed"}

	if m.redis != nil {
		ok := m.redis.Ping(ctx).Err() == nil
		status.Redis = &ok
	}
	if m.mongo != nil {
		ok := m.mongo.Ping(ctx, nil) == nil
		status.Mongo = &ok
	}
	if m.upstream != nil {
		status.Upstream = m.upstream()
	}

	m.mu.Lock()
	m.current = status
	m.mu.Unlock()
	return status
}

// Start performs periodic health checks until ctx is done.
func (m *HealthMonitor) Start(ctx context.Context) {
	m.Check(ctx)
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Check(ctx)
			}
		}
	}()
}
