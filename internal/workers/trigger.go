package workers

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const ProcessStream = "sessions:process"

// RedisTrigger enqueues sessions onto the processing stream consumed by
// ProcessingWorkerPool.
type RedisTrigger struct {
	rdb    *redis.Client
	stream string
}

func NewRedisTrigger(rdb *redis.Client) *RedisTrigger {
	return &RedisTrigger{rdb: rdb, stream: ProcessStream}
}

func (t *RedisTrigger) EnqueueProcessing(ctx context.Context, sessionID string) error {
	return t.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: t.stream,
		Values: map[string]any{
			"session_id": sessionID,
			"ts_unix":    strconv.FormatInt(time.Now().UTC().Unix(), 10),
		},
	}).Err()
}
