package data

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vidforge/vidforge/internal/domain/model"
)

// Default Redis key layout. Ready jobs live in a list (LPUSH/BRPOP gives
// FIFO); retries waiting out their backoff live in a sorted set scored by
// ready time.
const (
	defaultReadyKey     = "job_queue"
	defaultDelayedKey   = "job_queue:delayed"
	defaultWorkerPrefix = "worker:"
)

// RedisQueueRepo implements the WorkQueue interface using Redis.
type RedisQueueRepo struct {
	client       redis.UniversalClient
	readyKey     string
	delayedKey   string
	workerPrefix string
}

// RedisQueueOption customizes a RedisQueueRepo.
type RedisQueueOption func(*RedisQueueRepo)

// WithKeyPrefix namespaces all queue keys, for sharing a Redis instance.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueueRepo) {
		r.readyKey = prefix + defaultReadyKey
		r.delayedKey = prefix + defaultDelayedKey
		r.workerPrefix = prefix + defaultWorkerPrefix
	}
}

// NewRedisQueueRepo creates a new RedisQueueRepo with the given Redis client.
func NewRedisQueueRepo(client redis.UniversalClient, opts ...RedisQueueOption) *RedisQueueRepo {
	r := &RedisQueueRepo{
		client:       client,
		readyKey:     defaultReadyKey,
		delayedKey:   defaultDelayedKey,
		workerPrefix: defaultWorkerPrefix,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Push appends a job ID to the tail of the ready queue.
func (r *RedisQueueRepo) Push(ctx context.Context, jobID string) error {
	if jobID == "" {
		return errors.New("job id cannot be empty")
	}
	if err := r.client.LPush(ctx, r.readyKey, jobID).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

// PopBlocking removes the head of the ready queue, waiting up to timeout.
// Returns model.ErrNoJobsAvailable when the wait elapses empty.
func (r *RedisQueueRepo) PopBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := r.client.BRPop(ctx, timeout, r.readyKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", model.ErrNoJobsAvailable
		}
		return "", fmt.Errorf("redis brpop: %w", err)
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return "", fmt.Errorf("unexpected brpop reply length %d", len(res))
	}
	return res[1], nil
}

// PushDelayed schedules a job ID to become ready at readyAt.
func (r *RedisQueueRepo) PushDelayed(ctx context.Context, jobID string, readyAt time.Time) error {
	if jobID == "" {
		return errors.New("job id cannot be empty")
	}
	member := redis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: jobID,
	}
	if err := r.client.ZAdd(ctx, r.delayedKey, member).Err(); err != nil {
		return fmt.Errorf("redis zadd: %w", err)
	}
	return nil
}

// PromoteDue moves delayed entries whose ready time has passed onto the ready
// queue. ZREM before LPUSH keeps a member from being promoted twice when
// multiple sweepers run concurrently.
func (r *RedisQueueRepo) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	due, err := r.client.ZRangeByScore(ctx, r.delayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zrangebyscore: %w", err)
	}

	promoted := 0
	for _, jobID := range due {
		removed, remErr := r.client.ZRem(ctx, r.delayedKey, jobID).Result()
		if remErr != nil {
			return promoted, fmt.Errorf("redis zrem: %w", remErr)
		}
		if removed == 0 {
			continue
		}
		if pushErr := r.client.LPush(ctx, r.readyKey, jobID).Err(); pushErr != nil {
			return promoted, fmt.Errorf("redis lpush promoted: %w", pushErr)
		}
		promoted++
	}
	return promoted, nil
}

// Depth returns the current length of the ready queue.
func (r *RedisQueueRepo) Depth(ctx context.Context) (int64, error) {
	depth, err := r.client.LLen(ctx, r.readyKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis llen: %w", err)
	}
	return depth, nil
}

// WorkerHeartbeat refreshes this worker's liveness key. The key expires on
// its own when the worker stops beating.
func (r *RedisQueueRepo) WorkerHeartbeat(ctx context.Context, workerID string, ttl time.Duration) error {
	if workerID == "" {
		return errors.New("worker id cannot be empty")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	key := r.workerPrefix + workerID
	if err := r.client.Set(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return fmt.Errorf("redis worker heartbeat: %w", err)
	}
	return nil
}

// LiveWorkers counts workers with an unexpired liveness key.
func (r *RedisQueueRepo) LiveWorkers(ctx context.Context) (int, error) {
	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.workerPrefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("redis scan workers: %w", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// Ping checks the health of the Redis connection.
func (r *RedisQueueRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
