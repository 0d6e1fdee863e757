package release

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key layout under the configured prefix:
//
//	scheduled  zset  booking id -> due time (unix ms)
//	active     zset  booking id -> lease deadline (unix ms)
//	dead       zset  booking id -> burial time (unix ms)
//	run_at     hash  booking id -> requested run time (unix ms)
//	attempts   hash  booking id -> claims so far
//	errors     hash  booking id -> last failure
const (
	keyScheduled = "scheduled"
	keyActive    = "active"
	keyDead      = "dead"
	keyRunAt     = "run_at"
	keyAttempts  = "attempts"
	keyErrors    = "errors"
)

// KEYS: scheduled active run_at attempts errors
// ARGV: now_ms lease_deadline_ms limit
var claimScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for _, id in ipairs(expired) do
  redis.call('ZREM', KEYS[2], id)
  redis.call('ZADD', KEYS[1], ARGV[1], id)
end
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[3]))
local out = {}
for _, id in ipairs(due) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('ZADD', KEYS[2], ARGV[2], id)
  local attempts = redis.call('HINCRBY', KEYS[4], id, 1)
  local run_at = redis.call('HGET', KEYS[3], id) or ARGV[1]
  local last = redis.call('HGET', KEYS[5], id) or ''
  table.insert(out, id)
  table.insert(out, tostring(attempts))
  table.insert(out, run_at)
  table.insert(out, last)
end
return out
`)

// KEYS: active run_at attempts errors
// ARGV: booking id
var completeScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 1 then
  redis.call('HDEL', KEYS[2], ARGV[1])
  redis.call('HDEL', KEYS[3], ARGV[1])
  redis.call('HDEL', KEYS[4], ARGV[1])
  return 1
end
return 0
`)

// KEYS: active target errors
// ARGV: booking id, score, cause
var moveScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 1 then
  redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
  redis.call('HSET', KEYS[3], ARGV[1], ARGV[3])
  return 1
end
return 0
`)

// RedisQueue keeps release jobs in sorted sets so they survive restarts and
// are shared by every worker process. State changes that depend on the
// current state run as Lua scripts and are atomic.
type RedisQueue struct {
	client *redis.Client
	prefix string
	closed atomic.Bool
}

func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	return &RedisQueue{
		client: client,
		prefix: prefix,
	}
}

func (q *RedisQueue) key(name string) string {
	return q.prefix + name
}

func (q *RedisQueue) Enqueue(ctx context.Context, bookingID string, runAt time.Time) error {
	if bookingID == "" {
		return ErrInvalidJob
	}
	if q.closed.Load() {
		return ErrQueueClosed
	}

	score := float64(runAt.UnixMilli())
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, q.key(keyActive), bookingID)
		pipe.ZRem(ctx, q.key(keyDead), bookingID)
		pipe.ZAdd(ctx, q.key(keyScheduled), redis.Z{Score: score, Member: bookingID})
		pipe.HSet(ctx, q.key(keyRunAt), bookingID, runAt.UnixMilli())
		pipe.HDel(ctx, q.key(keyAttempts), bookingID)
		pipe.HDel(ctx, q.key(keyErrors), bookingID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue release job %s: %w", bookingID, err)
	}
	return nil
}

func (q *RedisQueue) Remove(ctx context.Context, bookingID string) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}

	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, q.key(keyScheduled), bookingID)
		pipe.ZRem(ctx, q.key(keyActive), bookingID)
		pipe.ZRem(ctx, q.key(keyDead), bookingID)
		pipe.HDel(ctx, q.key(keyRunAt), bookingID)
		pipe.HDel(ctx, q.key(keyAttempts), bookingID)
		pipe.HDel(ctx, q.key(keyErrors), bookingID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove release job %s: %w", bookingID, err)
	}
	return nil
}

func (q *RedisQueue) Claim(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Job, error) {
	if q.closed.Load() {
		return nil, ErrQueueClosed
	}
	if limit <= 0 {
		limit = 1
	}

	keys := []string{
		q.key(keyScheduled),
		q.key(keyActive),
		q.key(keyRunAt),
		q.key(keyAttempts),
		q.key(keyErrors),
	}
	fields, err := claimScript.Run(ctx, q.client, keys,
		now.UnixMilli(), now.Add(lease).UnixMilli(), limit).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to claim release jobs: %w", err)
	}
	if len(fields)%4 != 0 {
		return nil, fmt.Errorf("failed to claim release jobs: unexpected reply of %d fields", len(fields))
	}

	jobs := make([]Job, 0, len(fields)/4)
	for i := 0; i < len(fields); i += 4 {
		attempts, _ := strconv.Atoi(fields[i+1])
		runAtMs, _ := strconv.ParseInt(fields[i+2], 10, 64)
		jobs = append(jobs, Job{
			BookingID: fields[i],
			Attempts:  attempts,
			RunAt:     time.UnixMilli(runAtMs).UTC(),
			LastError: fields[i+3],
		})
	}
	return jobs, nil
}

func (q *RedisQueue) Complete(ctx context.Context, bookingID string) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}

	keys := []string{q.key(keyActive), q.key(keyRunAt), q.key(keyAttempts), q.key(keyErrors)}
	if err := completeScript.Run(ctx, q.client, keys, bookingID).Err(); err != nil {
		return fmt.Errorf("failed to complete release job %s: %w", bookingID, err)
	}
	return nil
}

func (q *RedisQueue) Retry(ctx context.Context, bookingID string, runAt time.Time, cause string) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}

	keys := []string{q.key(keyActive), q.key(keyScheduled), q.key(keyErrors)}
	if err := moveScript.Run(ctx, q.client, keys, bookingID, runAt.UnixMilli(), cause).Err(); err != nil {
		return fmt.Errorf("failed to retry release job %s: %w", bookingID, err)
	}
	return nil
}

func (q *RedisQueue) Bury(ctx context.Context, bookingID string, cause string) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}

	keys := []string{q.key(keyActive), q.key(keyDead), q.key(keyErrors)}
	if err := moveScript.Run(ctx, q.client, keys, bookingID, time.Now().UnixMilli(), cause).Err(); err != nil {
		return fmt.Errorf("failed to bury release job %s: %w", bookingID, err)
	}
	return nil
}

func (q *RedisQueue) IsScheduled(ctx context.Context, bookingID string) (bool, error) {
	if q.closed.Load() {
		return false, ErrQueueClosed
	}

	var scheduled, active *redis.FloatCmd
	_, err := q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		scheduled = pipe.ZScore(ctx, q.key(keyScheduled), bookingID)
		active = pipe.ZScore(ctx, q.key(keyActive), bookingID)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("failed to look up release job %s: %w", bookingID, err)
	}

	for _, cmd := range []*redis.FloatCmd{scheduled, active} {
		switch err := cmd.Err(); {
		case err == nil:
			return true, nil
		case !errors.Is(err, redis.Nil):
			return false, fmt.Errorf("failed to look up release job %s: %w", bookingID, err)
		}
	}
	return false, nil
}

func (q *RedisQueue) Dead(ctx context.Context, limit int) ([]Job, error) {
	if q.closed.Load() {
		return nil, ErrQueueClosed
	}
	if limit <= 0 {
		limit = 100
	}

	ids, err := q.client.ZRange(ctx, q.key(keyDead), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list dead release jobs: %w", err)
	}
	if len(ids) == 0 {
		return []Job{}, nil
	}

	var runAts, attempts, causes *redis.SliceCmd
	_, err = q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		runAts = pipe.HMGet(ctx, q.key(keyRunAt), ids...)
		attempts = pipe.HMGet(ctx, q.key(keyAttempts), ids...)
		causes = pipe.HMGet(ctx, q.key(keyErrors), ids...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load dead release jobs: %w", err)
	}

	jobs := make([]Job, 0, len(ids))
	for i, id := range ids {
		job := Job{BookingID: id}
		if s, ok := runAts.Val()[i].(string); ok {
			if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
				job.RunAt = time.UnixMilli(ms).UTC()
			}
		}
		if s, ok := attempts.Val()[i].(string); ok {
			job.Attempts, _ = strconv.Atoi(s)
		}
		if s, ok := causes.Val()[i].(string); ok {
			job.LastError = s
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Close marks the queue closed. The client is owned by the caller.
func (q *RedisQueue) Close() error {
	q.closed.Store(true)
	return nil
}
