/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package chanio

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Codec marshals/unmarshals T to/from the bytes stored in the Redis list.
// Callers typically supply a thin wrapper over encoding/json or a protobuf
// codec; chanio stays agnostic to the wire format.
type Codec[T any] struct {
	Marshal   func(T) ([]byte, error)
	Unmarshal func([]byte) (T, error)
}

// RedisChannel is a Channel backed by a Redis list, for multi-process
// deployments. Grounded on etalazz-vsa's internal/ratelimiter/persistence
// client wrapper (GoRedisEvaler), which wraps github.com/redis/go-redis/v9
// the same way: a thin adaptor exposing only the operations this module
// needs, not the full client surface.
type RedisChannel[T any] struct {
	client *redis.Client
	key    string
	codec  Codec[T]
}

// NewRedisChannel returns a RedisChannel using key as the backing Redis list
// name (the channel's uid).
func NewRedisChannel[T any](client *redis.Client, key string, codec Codec[T]) *RedisChannel[T] {
	return &RedisChannel[T]{client: client, key: key, codec: codec}
}

func (r *RedisChannel[T]) Send(ctx context.Context, msg T, timeout time.Duration) error {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b, err := r.codec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("chanio: marshal for redis channel %q: %w", r.key, err)
	}
	if err := r.client.RPush(cctx, r.key, b).Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return fmt.Errorf("chanio: rpush to redis channel %q: %w", r.key, err)
	}
	return nil
}

func (r *RedisChannel[T]) Receive(ctx context.Context, timeout time.Duration) (T, error) {
	var zero T
	res, err := r.client.BLPop(ctx, timeout, r.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, ErrTimeout
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return zero, ErrTimeout
		}
		return zero, fmt.Errorf("chanio: blpop from redis channel %q: %w", r.key, err)
	}
	// res is [key, value]; BLPop returns exactly one pair per key given.
	if len(res) != 2 {
		return zero, fmt.Errorf("chanio: unexpected blpop reply shape for %q: %v", r.key, res)
	}
	return r.codec.Unmarshal([]byte(res[1]))
}

func (r *RedisChannel[T]) Close() error {
	return r.client.Close()
}

var _ Channel[int] = (*RedisChannel[int])(nil)
