package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"interview-orchestrator/internal/config"
)

// RedisQueue coordinates ready, in-flight, and scheduled event queues in Redis.
// Queue members are event ids; the durable record lives in Postgres.
type RedisQueue struct {
	client         *redis.Client
	priorityQueues []string
	inflightKey    string
	scheduledKey   string
	metaPrefix     string
	visibilityTTL  time.Duration
	dlqKey         string
}

// NewRedisQueue builds a queue client from config.
func NewRedisQueue(cfg config.Config) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return NewRedisQueueWithClient(client, cfg)
}

// NewRedisQueueWithClient wires an existing client, used by tests.
func NewRedisQueueWithClient(client *redis.Client, cfg config.Config) *RedisQueue {
	priorities := cfg.PriorityQueues
	if len(priorities) == 0 {
		priorities = []string{"default"}
	}
	visibility := cfg.VisibilityTimeout
	if visibility == 0 {
		visibility = 30 * time.Second
	}
	dlq := cfg.DLQName
	if dlq == "" {
		dlq = "events:dlq"
	}
	return &RedisQueue{
		client:         client,
		priorityQueues: priorities,
		inflightKey:    "events:inflight",
		scheduledKey:   "events:scheduled",
		metaPrefix:     "events:meta:",
		visibilityTTL:  visibility,
		dlqKey:         dlq,
	}
}

func (q *RedisQueue) readyKey(priority string) string {
	return fmt.Sprintf("events:ready:%s", priority)
}

func (q *RedisQueue) metaKey(eventID string) string {
	return q.metaPrefix + eventID
}

func (q *RedisQueue) priorityOf(ctx context.Context, eventID string) string {
	priority, err := q.client.HGet(ctx, q.metaKey(eventID), "priority").Result()
	if err != nil || priority == "" {
		return "default"
	}
	return priority
}

// Enqueue inserts an event into either the scheduled set or the ready queue.
func (q *RedisQueue) Enqueue(ctx context.Context, eventID string, priority string, runAt time.Time) error {
	if priority == "" {
		priority = "default"
	}
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.metaKey(eventID), "priority", priority)
	if runAt.After(time.Now()) {
		pipe.ZAdd(ctx, q.scheduledKey, redis.Z{Score: float64(runAt.UnixMilli()), Member: eventID})
	} else {
		pipe.RPush(ctx, q.readyKey(priority), eventID)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Schedule moves an event into the scheduled set for deferred execution.
func (q *RedisQueue) Schedule(ctx context.Context, eventID string, priority string, runAt time.Time) error {
	if priority == "" {
		priority = "default"
	}
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.metaKey(eventID), "priority", priority)
	pipe.ZAdd(ctx, q.scheduledKey, redis.Z{Score: float64(runAt.UnixMilli()), Member: eventID})
	_, err := pipe.Exec(ctx)
	return err
}

// PromoteScheduled moves due scheduled events into ready queues. It returns how many were promoted.
func (q *RedisQueue) PromoteScheduled(ctx context.Context, now time.Time, limit int64) (int, error) {
	ids, err := q.client.ZRangeByScore(ctx, q.scheduledKey, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmt.Sprintf("%d", now.UnixMilli()),
		Offset: 0,
		Count:  limit,
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := q.client.TxPipeline()
	for _, id := range ids {
		pipe.ZRem(ctx, q.scheduledKey, id)
		pipe.RPush(ctx, q.readyKey(q.priorityOf(ctx, id)), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// DequeueWithLease pops an event from ready queues (priority order) and places
// it into inflight with a visibility timeout.
func (q *RedisQueue) DequeueWithLease(ctx context.Context) (string, error) {
	keys := make([]string, 0, len(q.priorityQueues)+1)
	for _, p := range q.priorityQueues {
		keys = append(keys, q.readyKey(p))
	}
	keys = append(keys, q.inflightKey)

	res, err := dequeueScript.Run(ctx, q.client, keys, time.Now().Add(q.visibilityTTL).UnixMilli()).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	eventID, ok := res.(string)
	if !ok {
		return "", fmt.Errorf("unexpected type from dequeue script: %T", res)
	}
	return eventID, nil
}

// ExtendLease pushes the visibility deadline forward for an in-flight event.
func (q *RedisQueue) ExtendLease(ctx context.Context, eventID string, extension time.Duration) error {
	return q.client.ZAdd(ctx, q.inflightKey, redis.Z{
		Score:  float64(time.Now().Add(extension).UnixMilli()),
		Member: eventID,
	}).Err()
}

// Ack removes an event from in-flight tracking and its meta record.
func (q *RedisQueue) Ack(ctx context.Context, eventID string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.inflightKey, eventID)
	pipe.Del(ctx, q.metaKey(eventID))
	_, err := pipe.Exec(ctx)
	return err
}

// RequeueExpired reclaims leases that timed out, re-enqueuing them.
func (q *RedisQueue) RequeueExpired(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	ids, err := q.client.ZRangeByScore(ctx, q.inflightKey, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmt.Sprintf("%d", now.UnixMilli()),
		Offset: 0,
		Count:  limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := q.client.TxPipeline()
	for _, id := range ids {
		pipe.ZRem(ctx, q.inflightKey, id)
		pipe.RPush(ctx, q.readyKey(q.priorityOf(ctx, id)), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

// Cancel removes an event from ready, scheduled, and in-flight sets.
func (q *RedisQueue) Cancel(ctx context.Context, eventID string) error {
	pipe := q.client.TxPipeline()
	for _, p := range q.priorityQueues {
		pipe.LRem(ctx, q.readyKey(p), 0, eventID)
	}
	pipe.ZRem(ctx, q.inflightKey, eventID)
	pipe.ZRem(ctx, q.scheduledKey, eventID)
	pipe.Del(ctx, q.metaKey(eventID))
	_, err := pipe.Exec(ctx)
	return err
}

// DLQPush appends to the dead-letter queue for operational inspection.
func (q *RedisQueue) DLQPush(ctx context.Context, eventID string) error {
	return q.client.RPush(ctx, q.dlqKey, eventID).Err()
}

// DLQPeek reads the latest dead-lettered event ids.
func (q *RedisQueue) DLQPeek(ctx context.Context, count int64) ([]string, error) {
	return q.client.LRange(ctx, q.dlqKey, 0, count-1).Result()
}

// ReadyDepth returns the total length of all ready queues.
func (q *RedisQueue) ReadyDepth(ctx context.Context) (int64, error) {
	pipe := q.client.Pipeline()
	cmds := make([]*redis.IntCmd, 0, len(q.priorityQueues))
	for _, p := range q.priorityQueues {
		cmds = append(cmds, pipe.LLen(ctx, q.readyKey(p)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	var total int64
	for _, c := range cmds {
		total += c.Val()
	}
	return total, nil
}

var dequeueScript = redis.NewScript(`
local inflight = KEYS[#KEYS]
for i=1,#KEYS-1 do
  local job = redis.call('LPOP', KEYS[i])
  if job then
    redis.call('ZADD', inflight, ARGV[1], job)
    return job
  end
end
return nil
`)
