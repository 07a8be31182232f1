package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrEmpty is returned by Dequeue when the wait timed out.
var ErrEmpty = errors.New("judge queue is empty")

// JudgeQueue carries "judge this submission" requests to the worker pool.
type JudgeQueue interface {
	Enqueue(ctx context.Context, submissionID int64) error
}

// RedisJudgeQueue is a redis list: producers LPUSH, consumers BRPOP, so the
// oldest message is handed out first.
type RedisJudgeQueue struct {
	rdb  *redis.Client
	name string
}

func NewRedisJudgeQueue(rdb *redis.Client, name string) *RedisJudgeQueue {
	return &RedisJudgeQueue{rdb: rdb, name: name}
}

// Name is the redis key of the list.
func (q *RedisJudgeQueue) Name() string {
	return q.name
}

func (q *RedisJudgeQueue) Enqueue(ctx context.Context, submissionID int64) error {
	if err := q.rdb.LPush(ctx, q.name, strconv.FormatInt(submissionID, 10)).Err(); err != nil {
		return fmt.Errorf("RedisJudgeQueue.Enqueue %d: %w", submissionID, err)
	}
	return nil
}

// Dequeue blocks for up to timeout waiting for the next submission id.
func (q *RedisJudgeQueue) Dequeue(ctx context.Context, timeout time.Duration) (int64, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrEmpty
		}
		return 0, fmt.Errorf("RedisJudgeQueue.Dequeue: %w", err)
	}
	// res is [key, value]
	if len(res) < 2 {
		return 0, ErrEmpty
	}
	id, err := strconv.ParseInt(res[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("RedisJudgeQueue.Dequeue: malformed message %q: %w", res[1], err)
	}
	return id, nil
}

// Len reports the number of waiting messages.
func (q *RedisJudgeQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.name).Result()
	if err != nil {
		return 0, fmt.Errorf("RedisJudgeQueue.Len: %w", err)
	}
	return n, nil
}
