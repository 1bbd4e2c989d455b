// internal/feed/redis.go
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultQueueName is the redis list the out-of-process observers drain.
const DefaultQueueName = "zhouyi_events"

// Redis pushes feed events onto a redis list so the tutorial,
// achievement, and wisdom consumers can run outside this process.
type Redis struct {
	client *redis.Client
	queue  string
	log    *logrus.Logger
}

// NewRedis connects the publisher and verifies the server is reachable.
func NewRedis(addr string, db int, queue string, log *logrus.Logger) (*Redis, error) {
	if queue == "" {
		queue = DefaultQueueName
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis at %s: %w", addr, err)
	}
	return &Redis{client: client, queue: queue, log: log}, nil
}

// Notify serializes the event and queues it. Publish failures are logged,
// not propagated: the feed is observability, never a participant in the
// action's commit.
func (r *Redis) Notify(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		r.log.WithError(err).Error("feed: marshal event")
		return
	}
	if err := r.client.RPush(ctx, r.queue, data).Err(); err != nil {
		r.log.WithError(err).WithField("queue", r.queue).Warn("feed: publish event")
	}
}

// Close releases the redis connection.
func (r *Redis) Close() error { return r.client.Close() }
