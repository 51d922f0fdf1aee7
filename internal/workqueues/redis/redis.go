/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-errors/errors"
	"github.com/go-redis/redis"
	"github.com/hashicorp/go-uuid"
	"github.com/noctarius/cluster-ddl-trigger/internal/clients/redisclient"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting/logging"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/noctarius/cluster-ddl-trigger/spi/workitem"
	"github.com/noctarius/cluster-ddl-trigger/spi/workqueue"
)

const DefaultPrefix = "ddl-trigger"

// Every item is a hash, the sorted set scores item ids by the
// time they become visible. Ids are zero-padded sequence numbers,
// so items becoming visible at the same millisecond are leased in
// enqueue order.
var (
	enqueueScript = redis.NewScript(`
redis.call('HSET', KEYS[2], 'body', ARGV[3], 'sourceEventId', ARGV[4], 'attempts', 0, 'token', '')
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
return 1
`)

	leaseScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #ids == 0 then
  return false
end
local id = ids[1]
local key = ARGV[4] .. id
redis.call('ZADD', KEYS[1], ARGV[2], id)
local attempts = redis.call('HINCRBY', key, 'attempts', 1)
redis.call('HSET', key, 'token', ARGV[3])
local fields = redis.call('HMGET', key, 'body', 'sourceEventId')
return {id, fields[1] or '', fields[2] or '', attempts}
`)

	acknowledgeScript = redis.NewScript(`
local token = redis.call('HGET', KEYS[2], 'token')
if not token then
  return 0
end
if token ~= ARGV[2] then
  return -1
end
redis.call('DEL', KEYS[2])
redis.call('ZREM', KEYS[1], ARGV[1])
return 1
`)

	extendScript = redis.NewScript(`
local token = redis.call('HGET', KEYS[2], 'token')
if not token or token ~= ARGV[2] then
  return 0
end
local score = redis.call('ZSCORE', KEYS[1], ARGV[1])
if not score or tonumber(score) <= tonumber(ARGV[3]) then
  return 0
end
redis.call('ZADD', KEYS[1], ARGV[4], ARGV[1])
return 1
`)
)

func init() {
	workqueue.RegisterWorkQueue(config.RedisWorkQueue, newRedisWorkQueue)
}

type redisWorkQueue struct {
	client *redis.Client
	prefix string
	logger *logging.Logger
}

func newRedisWorkQueue(
	c *config.Config,
) (workqueue.WorkQueue, error) {

	client := redisclient.NewClient(c, redisclient.Properties{
		Network:       config.PropertyRedisWorkQueueNetwork,
		Address:       config.PropertyRedisWorkQueueAddress,
		Password:      config.PropertyRedisWorkQueuePassword,
		Database:      config.PropertyRedisWorkQueueDatabase,
		PoolSize:      config.PropertyRedisWorkQueuePoolsize,
		RetriesMax:    config.PropertyRedisWorkQueueRetriesMax,
		BackoffMin:    config.PropertyRedisWorkQueueRetriesBackoffMin,
		BackoffMax:    config.PropertyRedisWorkQueueRetriesBackoffMax,
		TimeoutDial:   config.PropertyRedisWorkQueueTimeoutDial,
		TimeoutRead:   config.PropertyRedisWorkQueueTimeoutRead,
		TimeoutWrite:  config.PropertyRedisWorkQueueTimeoutWrite,
		TimeoutPool:   config.PropertyRedisWorkQueueTimeoutPool,
		TimeoutIdle:   config.PropertyRedisWorkQueueTimeoutIdle,
		TlsEnabled:    config.PropertyRedisWorkQueueTlsEnabled,
		TlsSkipVerify: config.PropertyRedisWorkQueueTlsSkipVerify,
		TlsClientAuth: config.PropertyRedisWorkQueueTlsClientAuth,
	})

	return NewRedisWorkQueue(client, config.GetOrDefault(c, config.PropertyRedisWorkQueuePrefix, DefaultPrefix))
}

func NewRedisWorkQueue(
	client *redis.Client, prefix string,
) (workqueue.WorkQueue, error) {

	logger, err := logging.NewLogger("RedisWorkQueue")
	if err != nil {
		return nil, err
	}

	return &redisWorkQueue{
		client: client,
		prefix: prefix,
		logger: logger,
	}, nil
}

func (r *redisWorkQueue) Start() error {
	if err := r.client.Ping().Err(); err != nil {
		return errors.Errorf("failed to connect to redis at %s: %v", r.client.Options().Addr, err)
	}

	// Preload so that the EVALSHA path is hit from the first call
	for _, script := range []*redis.Script{enqueueScript, leaseScript, acknowledgeScript, extendScript} {
		if err := script.Load(r.client).Err(); err != nil {
			return errors.Wrap(err, 0)
		}
	}

	r.logger.Infof("Using redis work queue '%s' at %s", r.prefix, r.client.Options().Addr)
	return nil
}

func (r *redisWorkQueue) Stop() error {
	return r.client.Close()
}

func (r *redisWorkQueue) Enqueue(
	ctx context.Context, item workitem.WorkItem,
) error {

	client := r.client.WithContext(ctx)

	body, err := item.MarshalBody()
	if err != nil {
		return errors.Wrap(err, 0)
	}

	sequence, err := client.Incr(r.sequenceKey()).Result()
	if err != nil {
		return err
	}

	id := fmt.Sprintf("%020d", sequence)
	return enqueueScript.Run(client,
		[]string{r.visibleKey(), r.itemKey(id)},
		id, millis(time.Now()), string(body), item.SourceEventID,
	).Err()
}

func (r *redisWorkQueue) Lease(
	ctx context.Context, visibilityTimeout time.Duration,
) (*workqueue.Lease, error) {

	if visibilityTimeout <= 0 {
		return nil, errors.Errorf("visibility timeout must be positive, got %s", visibilityTimeout)
	}

	token, err := uuid.GenerateUUID()
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	now := time.Now()
	deadline := now.Add(visibilityTimeout)
	result, err := leaseScript.Run(r.client.WithContext(ctx),
		[]string{r.visibleKey()},
		millis(now), millis(deadline), token, r.itemKey(""),
	).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, workqueue.ErrNoWorkItem
		}
		return nil, err
	}

	values, ok := result.([]any)
	if !ok || len(values) != 4 {
		return nil, errors.Errorf("unexpected lease script result: %v", result)
	}

	id, _ := values[0].(string)
	body, _ := values[1].(string)
	sourceEventId, _ := values[2].(string)
	attempts, _ := values[3].(int64)

	item, err := workitem.UnmarshalBody([]byte(body))
	if err != nil {
		return nil, errors.Errorf("work item %s has an unexpected body: %v", id, err)
	}

	item.ID = id
	item.SourceEventID = sourceEventId
	item.AttemptCount = uint32(attempts)

	return &workqueue.Lease{
		Item:      item,
		Token:     token,
		ExpiresAt: fromMillis(millis(deadline)),
	}, nil
}

func (r *redisWorkQueue) Acknowledge(
	ctx context.Context, lease *workqueue.Lease,
) error {

	result, err := acknowledgeScript.Run(r.client.WithContext(ctx),
		[]string{r.visibleKey(), r.itemKey(lease.Item.ID)},
		lease.Item.ID, lease.Token,
	).Int64()
	if err != nil {
		return err
	}
	if result < 0 {
		return workqueue.ErrLeaseExpired
	}
	return nil
}

func (r *redisWorkQueue) Extend(
	ctx context.Context, lease *workqueue.Lease, visibilityTimeout time.Duration,
) error {

	if visibilityTimeout <= 0 {
		return errors.Errorf("visibility timeout must be positive, got %s", visibilityTimeout)
	}

	now := time.Now()
	deadline := millis(now.Add(visibilityTimeout))
	result, err := extendScript.Run(r.client.WithContext(ctx),
		[]string{r.visibleKey(), r.itemKey(lease.Item.ID)},
		lease.Item.ID, lease.Token, millis(now), deadline,
	).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return workqueue.ErrLeaseExpired
	}

	lease.ExpiresAt = fromMillis(deadline)
	return nil
}

func (r *redisWorkQueue) Depth(
	ctx context.Context,
) (int, error) {

	depth, err := r.client.WithContext(ctx).ZCard(r.visibleKey()).Result()
	if err != nil {
		return 0, err
	}
	return int(depth), nil
}

func (r *redisWorkQueue) visibleKey() string {
	return r.prefix + ":visible"
}

func (r *redisWorkQueue) sequenceKey() string {
	return r.prefix + ":sequence"
}

func (r *redisWorkQueue) itemKey(
	id string,
) string {

	return r.prefix + ":item:" + id
}

func millis(
	t time.Time,
) int64 {

	return t.UnixMilli()
}

func fromMillis(
	ms int64,
) time.Time {

	return time.UnixMilli(ms)
}
