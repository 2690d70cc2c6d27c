// Package cxredis keeps the mutation buffer in redis so buffered but not yet
// flushed mutations survive the writing process.
package cxredis

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"

	"github.com/zikwall/tabletstore-client/src/cx"
)

const prefix = "ts_buffer"

func key(bucket string) string {
	return prefix + ":" + bucket
}

type redisBuffer struct {
	client     *redis.Client
	context    context.Context
	bucket     string
	bufferSize int64
}

// NewBuffer creates a redis-backed mutation buffer under the given bucket.
func NewBuffer(ctx context.Context, rdb *redis.Client, bucket string, bufferSize int) (cx.Buffer, error) {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, cx.Wrap(err, "ping redis buffer")
	}
	return &redisBuffer{
		client:     rdb,
		context:    ctx,
		bucket:     key(bucket),
		bufferSize: int64(bufferSize),
	}, nil
}

func (r *redisBuffer) isContextClosedErr(err error) bool {
	return errors.Is(err, redis.ErrClosed) && r.context.Err() != nil && errors.Is(r.context.Err(), context.Canceled)
}
