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
	"testing"
	"time"

	"github.com/go-redis/redis"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/noctarius/cluster-ddl-trigger/spi/workitem"
	"github.com/noctarius/cluster-ddl-trigger/spi/workqueue"
	"github.com/noctarius/cluster-ddl-trigger/testsupport/containers"
	"github.com/noctarius/cluster-ddl-trigger/testsupport/queuecontract"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
)

func Test_Redis_Config_Loading(
	t *testing.T,
) {

	c := &config.Config{
		WorkQueue: config.WorkQueueConfig{
			Redis: config.RedisQueueConfig{
				RedisConfig: config.RedisConfig{
					Address: "redis.internal:6379",
				},
				Prefix: "orders",
			},
		},
	}

	queue, err := newRedisWorkQueue(c)
	require.NoError(t, err)

	redisQueue := queue.(*redisWorkQueue)
	assert.Equal(t, "orders", redisQueue.prefix)
	assert.Equal(t, "redis.internal:6379", redisQueue.client.Options().Addr)
	assert.Equal(t, "orders:item:00000000000000000001", redisQueue.itemKey("00000000000000000001"))
}

type RedisWorkQueueTestSuite struct {
	queuecontract.WorkQueueSuite
	container testcontainers.Container
	address   string
}

func TestRedisWorkQueueTestSuite(
	t *testing.T,
) {

	if testing.Short() {
		t.Skip("skipping container based test in short mode")
	}

	s := &RedisWorkQueueTestSuite{}
	s.VisibilityTimeout = time.Millisecond * 500
	s.Capabilities = queuecontract.Capabilities{
		Ordered:       true,
		StaleTokens:   true,
		SourceEventId: true,
	}
	s.NewWorkQueue = func() (workqueue.WorkQueue, error) {
		client := redis.NewClient(&redis.Options{Addr: s.address})
		return NewRedisWorkQueue(client, "test-"+lo.RandomString(8, lo.AlphanumericCharset))
	}
	suite.Run(t, s)
}

func (s *RedisWorkQueueTestSuite) SetupSuite() {
	container, address, err := containers.SetupRedisContainer()
	s.Require().NoError(err)
	s.container = container
	s.address = address
}

func (s *RedisWorkQueueTestSuite) TearDownSuite() {
	if s.container != nil {
		s.NoError(s.container.Terminate(context.Background()))
	}
}

func (s *RedisWorkQueueTestSuite) Test_Queues_With_Different_Prefixes_Are_Isolated() {
	ctx := context.Background()
	other, err := NewRedisWorkQueue(redis.NewClient(&redis.Options{Addr: s.address}), "other")
	s.Require().NoError(err)
	s.Require().NoError(other.Start())
	defer other.Stop()

	s.Require().NoError(other.Enqueue(ctx, workitem.WorkItem{
		ClusterIdentifier: "orders-db",
		EnqueuedAt:        time.Now(),
	}))

	depth, err := s.Queue().Depth(ctx)
	s.Require().NoError(err)
	s.Equal(0, depth)

	depth, err = other.Depth(ctx)
	s.Require().NoError(err)
	s.Equal(1, depth)
}
