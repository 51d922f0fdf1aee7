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
	"strings"
	"time"

	"github.com/go-errors/errors"
	"github.com/go-redis/redis"
	"github.com/noctarius/cluster-ddl-trigger/internal/clients/redisclient"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting/logging"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/noctarius/cluster-ddl-trigger/spi/eventsource"
	"github.com/noctarius/cluster-ddl-trigger/spi/version"
)

const (
	DefaultStream       = "rds-audit"
	DefaultGroup        = "cluster-ddl-trigger"
	DefaultPollWait     = time.Second
	DefaultPollInterval = time.Second

	// FieldRecord is the stream entry field holding the raw record
	FieldRecord = "record"

	readCount   = 10
	newEntries  = ">"
	ownPending  = "0"
	busyGroupId = "BUSYGROUP"
)

func init() {
	eventsource.RegisterSource(config.RedisSource, newRedisSource)
}

// redisSource reads a stream as a member of a consumer group. Entries
// are acknowledged after the handler succeeded. After a failure the
// consumer's own pending entries are read again, in order, before
// any new entry.
type redisSource struct {
	client       *redis.Client
	stream       string
	group        string
	consumer     string
	pollWait     time.Duration
	pollInterval time.Duration
	logger       *logging.Logger
}

func newRedisSource(
	c *config.Config,
) (eventsource.Source, error) {

	client := redisclient.NewClient(c, redisclient.Properties{
		Network:       config.PropertyRedisSourceNetwork,
		Address:       config.PropertyRedisSourceAddress,
		Password:      config.PropertyRedisSourcePassword,
		Database:      config.PropertyRedisSourceDatabase,
		PoolSize:      config.PropertyRedisSourcePoolsize,
		RetriesMax:    config.PropertyRedisSourceRetriesMax,
		BackoffMin:    config.PropertyRedisSourceRetriesBackoffMin,
		BackoffMax:    config.PropertyRedisSourceRetriesBackoffMax,
		TimeoutDial:   config.PropertyRedisSourceTimeoutDial,
		TimeoutRead:   config.PropertyRedisSourceTimeoutRead,
		TimeoutWrite:  config.PropertyRedisSourceTimeoutWrite,
		TimeoutPool:   config.PropertyRedisSourceTimeoutPool,
		TimeoutIdle:   config.PropertyRedisSourceTimeoutIdle,
		TlsEnabled:    config.PropertyRedisSourceTlsEnabled,
		TlsSkipVerify: config.PropertyRedisSourceTlsSkipVerify,
		TlsClientAuth: config.PropertyRedisSourceTlsClientAuth,
	})

	return NewRedisSource(
		client,
		config.GetOrDefault(c, config.PropertyRedisSourceStream, DefaultStream),
		config.GetOrDefault(c, config.PropertyRedisSourceGroup, DefaultGroup),
		config.GetOrDefault(c, config.PropertyRedisSourceConsumer, version.BinName),
		config.GetOrDefault(c, config.PropertyRedisSourcePollWait, DefaultPollWait),
		config.GetOrDefault(c, config.PropertyRedisSourcePollInterval, DefaultPollInterval),
	)
}

func NewRedisSource(
	client *redis.Client, stream, group, consumer string, pollWait, pollInterval time.Duration,
) (eventsource.Source, error) {

	logger, err := logging.NewLogger("RedisSource")
	if err != nil {
		return nil, err
	}

	return &redisSource{
		client:       client,
		stream:       stream,
		group:        group,
		consumer:     consumer,
		pollWait:     pollWait,
		pollInterval: pollInterval,
		logger:       logger,
	}, nil
}

func (r *redisSource) Run(
	ctx context.Context, handler eventsource.Handler,
) error {

	client := r.client.WithContext(ctx)
	if err := client.XGroupCreateMkStream(r.stream, r.group, "$").Err(); err != nil {
		if !strings.HasPrefix(err.Error(), busyGroupId) {
			return errors.Errorf("failed to create consumer group %s on %s: %v", r.group, r.stream, err)
		}
	}

	r.logger.Infof("Consuming audit records from redis stream %s as %s/%s", r.stream, r.group, r.consumer)

	// entries delivered to this consumer before a restart are pending
	position := ownPending
	for {
		if ctx.Err() != nil {
			return nil
		}

		streams, err := client.XReadGroup(&redis.XReadGroupArgs{
			Group:    r.group,
			Consumer: r.consumer,
			Streams:  []string{r.stream, position},
			Count:    readCount,
			Block:    r.pollWait,
		}).Result()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return errors.Errorf("failed to read redis stream %s: %v", r.stream, err)
		}

		messages := make([]redis.XMessage, 0)
		for _, stream := range streams {
			messages = append(messages, stream.Messages...)
		}

		if position == ownPending && len(messages) == 0 {
			position = newEntries
			continue
		}

		if failed := r.handleMessages(ctx, client, messages, handler); failed {
			position = ownPending
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.pollInterval):
			}
		}
	}
}

func (r *redisSource) Stop() error {
	return r.client.Close()
}

func (r *redisSource) handleMessages(
	ctx context.Context, client *redis.Client, messages []redis.XMessage, handler eventsource.Handler,
) (failed bool) {

	for _, message := range messages {
		record, ok := recordOf(message)
		if ok {
			if err := handler(ctx, []byte(record)); err != nil {
				r.logger.Warnf("Entry %s of %s failed and will be read again: %v", message.ID, r.stream, err)
				return true
			}
		} else {
			r.logger.Verbosef("Entry %s of %s has no record, acknowledging", message.ID, r.stream)
		}

		if err := client.XAck(r.stream, r.group, message.ID).Err(); err != nil {
			r.logger.Warnf("Failed to acknowledge entry %s of %s: %v", message.ID, r.stream, err)
			return true
		}
	}
	return false
}

// recordOf returns the record field, or the only field of entries
// written by producers using another field name. Entries trimmed
// from the stream while pending have no fields.
func recordOf(
	message redis.XMessage,
) (string, bool) {

	if value, ok := message.Values[FieldRecord]; ok {
		record, ok := value.(string)
		return record, ok
	}
	if len(message.Values) == 1 {
		for _, value := range message.Values {
			record, ok := value.(string)
			return record, ok
		}
	}
	return "", false
}
