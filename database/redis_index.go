/*
Copyright 2024 Blnk Finance Authors.

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

package database

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/payflowhq/payflow/model"
)

const (
	// reserveScript sets the key when absent and returns whichever id owns it afterwards.
	reserveScript = "local current = redis.call('get', KEYS[1]) if current then return current end redis.call('set', KEYS[1], ARGV[1]) return ARGV[1]"
	releaseScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"

	scanBatchSize = 500
)

// RedisIndex keeps idempotency mappings in Redis under a common prefix.
type RedisIndex struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisIndex(client redis.UniversalClient, prefix string) *RedisIndex {
	return &RedisIndex{client: client, prefix: prefix}
}

func (r *RedisIndex) redisKey(key string) string {
	return r.prefix + key
}

func (r *RedisIndex) Lookup(ctx context.Context, key string) (string, bool, error) {
	id, err := r.client.Get(ctx, r.redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, pkgerrors.Wrapf(err, "looking up idempotency key %s", key)
	}
	return id, true, nil
}

func (r *RedisIndex) Reserve(ctx context.Context, key, paymentID string) error {
	owner, err := r.client.Eval(ctx, reserveScript, []string{r.redisKey(key)}, paymentID).Text()
	if err != nil {
		return pkgerrors.Wrapf(err, "reserving idempotency key %s", key)
	}
	if owner != paymentID {
		return &model.ConflictError{Key: key, ExistingID: owner, AttemptedID: paymentID}
	}
	return nil
}

func (r *RedisIndex) Release(ctx context.Context, key, paymentID string) error {
	if err := r.client.Eval(ctx, releaseScript, []string{r.redisKey(key)}, paymentID).Err(); err != nil {
		return pkgerrors.Wrapf(err, "releasing idempotency key %s", key)
	}
	return nil
}

// Reset deletes every key under the index prefix.
func (r *RedisIndex) Reset(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, fmt.Sprintf("%s*", r.prefix), scanBatchSize).Result()
		if err != nil {
			return pkgerrors.Wrap(err, "scanning idempotency keys")
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return pkgerrors.Wrap(err, "deleting idempotency keys")
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
