package retryqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"caretrail/internal/audit/models"
	"caretrail/pkg/platform/sentinel"
)

// DefaultRedisKey is the list the retry buffer lives under.
const DefaultRedisKey = "caretrail:audit:retry"

// RedisQueue is the shared retry buffer for multi-instance deployments: any
// instance can re-append a record another instance failed to persist.
type RedisQueue struct {
	client  *redis.Client
	key     string
	maxSize int64
}

func NewRedisQueue(client *redis.Client, key string, maxSize int64) *RedisQueue {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisQueue{client: client, key: key, maxSize: maxSize}
}

func (q *RedisQueue) Enqueue(ctx context.Context, record *models.AuditRecord) error {
	if q.maxSize > 0 {
		n, err := q.client.LLen(ctx, q.key).Result()
		if err != nil {
			return fmt.Errorf("retry queue length: %w", errors.Join(sentinel.ErrUnavailable, err))
		}
		if n >= q.maxSize {
			return sentinel.ErrUnavailable
		}
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal retry record: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue retry record: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*models.AuditRecord, error) {
	payload, err := q.client.LPop(ctx, q.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue retry record: %w", errors.Join(sentinel.ErrUnavailable, err))
	}

	var record models.AuditRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		// A corrupt entry is dropped rather than wedging the queue head.
		return nil, fmt.Errorf("unmarshal retry record: %w", err)
	}
	return &record, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("retry queue length: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return int(n), nil
}
