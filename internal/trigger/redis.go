// Package trigger wakes the reconciler on demand through a Redis list.
// The API server pushes a request, the worker blocks on the pop.
package trigger

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const queueKey = "scrape:requests"

// Consumer turns queued scrape requests into wake-ups on a channel.
type Consumer struct {
	client *redis.Client
	logger *zap.Logger
	wake   chan struct{}
}

func NewConsumer(client *redis.Client, logger *zap.Logger) *Consumer {
	return &Consumer{
		client: client,
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Wake delivers at most one pending wake-up; requests arriving while a
// cycle runs coalesce into a single follow-up run.
func (c *Consumer) Wake() <-chan struct{} {
	return c.wake
}

// Run blocks on the request list until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		_, err := c.client.BLPop(ctx, 5*time.Second, queueKey).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			c.logger.Warn("trigger queue poll failed", zap.Error(err))
			if !sleep(ctx, 2*time.Second) {
				return
			}
			continue
		}

		c.logger.Info("scrape trigger received")
		select {
		case c.wake <- struct{}{}:
		default:
		}
	}
}

// Enqueue requests a scrape cycle.
func Enqueue(ctx context.Context, client *redis.Client) error {
	return client.RPush(ctx, queueKey, time.Now().UTC().Format(time.RFC3339)).Err()
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
