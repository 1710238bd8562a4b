// Package redis publishes beacon heartbeats to Redis.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/gravito-framework/statbeacon-go/pkg/types"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces heartbeat keys
const KeyPrefix = "statbeacon:beacon:"

// Publisher stores the latest Report of a beacon under a TTL key, so a
// beacon that stops reporting disappears on its own.
type Publisher struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPublisher creates a publisher without testing the connection
func NewPublisher(redisURL string, ttl time.Duration) (*Publisher, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("empty Redis URL")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	return &Publisher{client: redis.NewClient(opts), ttl: ttl}, nil
}

// Key returns the heartbeat key for a beacon name
func Key(name string) string {
	return KeyPrefix + name
}

// Ping checks the connection
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Publish overwrites the beacon's heartbeat key with the report
func (p *Publisher) Publish(ctx context.Context, report types.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal heartbeat: %w", err)
	}
	if err := p.client.Set(ctx, Key(report.Name), data, p.ttl).Err(); err != nil {
		return fmt.Errorf("failed to publish heartbeat: %w", err)
	}
	return nil
}

// List returns the heartbeats of every beacon whose key has not expired,
// sorted by name. Keys that vanish or fail to decode are skipped.
func (p *Publisher) List(ctx context.Context) ([]types.Report, error) {
	var keys []string
	iter := p.client.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan heartbeats: %w", err)
	}
	sort.Strings(keys)

	reports := make([]types.Report, 0, len(keys))
	for _, key := range keys {
		val, err := p.client.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		var r types.Report
		if err := json.Unmarshal([]byte(val), &r); err != nil {
			continue
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// Close closes the Redis connection
func (p *Publisher) Close() error {
	return p.client.Close()
}
