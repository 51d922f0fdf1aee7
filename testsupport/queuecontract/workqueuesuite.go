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

package queuecontract

import (
	"context"
	"time"

	"github.com/go-errors/errors"
	"github.com/noctarius/cluster-ddl-trigger/spi/workitem"
	"github.com/noctarius/cluster-ddl-trigger/spi/workqueue"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

// Capabilities describes guarantees a backend gives beyond the
// shared work queue contract
type Capabilities struct {
	// Ordered backends hand out items in enqueue order
	Ordered bool
	// StaleTokens backends reject acknowledges with a superseded token
	StaleTokens bool
	// SourceEventId backends carry the source event id with the item
	SourceEventId bool
}

// WorkQueueSuite verifies the work queue contract against a
// backend. Embedding suites provide NewWorkQueue and may reset
// backend state in SetupTest before calling the suite's one.
type WorkQueueSuite struct {
	suite.Suite
	NewWorkQueue      func() (workqueue.WorkQueue, error)
	VisibilityTimeout time.Duration
	Capabilities      Capabilities

	queue workqueue.WorkQueue
}

func (s *WorkQueueSuite) SetupTest() {
	queue, err := s.NewWorkQueue()
	s.Require().NoError(err)
	s.Require().NoError(queue.Start())
	s.queue = queue
}

func (s *WorkQueueSuite) TearDownTest() {
	if s.queue != nil {
		s.NoError(s.queue.Stop())
		s.queue = nil
	}
}

func (s *WorkQueueSuite) Queue() workqueue.WorkQueue {
	return s.queue
}

func (s *WorkQueueSuite) Test_Lease_On_Empty_Queue() {
	lease, err := s.queue.Lease(context.Background(), s.VisibilityTimeout)
	s.Nil(lease)
	s.True(errors.Is(err, workqueue.ErrNoWorkItem))
}

func (s *WorkQueueSuite) Test_Enqueue_Lease_Acknowledge() {
	ctx := context.Background()
	enqueuedAt := time.Date(2024, 3, 11, 9, 15, 30, 123000000, time.UTC)

	s.Require().NoError(s.queue.Enqueue(ctx, workitem.WorkItem{
		ClusterIdentifier: "orders-db",
		EnqueuedAt:        enqueuedAt,
		SourceEventID:     "evt-1",
	}))
	s.assertDepth(1)

	lease := s.leaseOne()
	s.Equal("orders-db", lease.Item.ClusterIdentifier)
	s.True(enqueuedAt.Equal(lease.Item.EnqueuedAt))
	s.Equal(uint32(1), lease.Item.AttemptCount)
	s.NotEmpty(lease.Item.ID)
	s.NotEmpty(lease.Token)
	s.True(lease.ExpiresAt.After(time.Now()))
	if s.Capabilities.SourceEventId {
		s.Equal("evt-1", lease.Item.SourceEventID)
	}

	s.Require().NoError(s.queue.Acknowledge(ctx, lease))
	s.assertDepth(0)
	s.assertEmpty()
}

func (s *WorkQueueSuite) Test_Leased_Item_Is_Invisible() {
	ctx := context.Background()
	s.enqueue("orders-db")

	lease := s.leaseOne()
	s.Equal("orders-db", lease.Item.ClusterIdentifier)

	_, err := s.queue.Lease(ctx, s.VisibilityTimeout)
	s.True(errors.Is(err, workqueue.ErrNoWorkItem))
	s.assertDepth(1)

	s.Require().NoError(s.queue.Acknowledge(ctx, lease))
}

func (s *WorkQueueSuite) Test_Expired_Lease_Redelivers() {
	ctx := context.Background()
	s.enqueue("orders-db")

	first := s.leaseOne()
	s.Equal(uint32(1), first.Item.AttemptCount)

	second := s.awaitLease()
	s.Equal("orders-db", second.Item.ClusterIdentifier)
	s.Equal(first.Item.ID, second.Item.ID)
	s.Equal(uint32(2), second.Item.AttemptCount)
	s.NotEqual(first.Token, second.Token)

	if s.Capabilities.StaleTokens {
		err := s.queue.Acknowledge(ctx, first)
		s.True(errors.Is(err, workqueue.ErrLeaseExpired))
		s.assertDepth(1)
	}

	s.Require().NoError(s.queue.Acknowledge(ctx, second))
	s.assertDepth(0)
}

func (s *WorkQueueSuite) Test_Extend_Keeps_Item_Invisible() {
	ctx := context.Background()
	s.enqueue("orders-db")

	lease := s.leaseOne()
	previous := lease.ExpiresAt

	time.Sleep(s.VisibilityTimeout / 2)
	s.Require().NoError(s.queue.Extend(ctx, lease, s.VisibilityTimeout))
	s.True(lease.ExpiresAt.After(previous))

	// Past the original window, but inside the extended one
	time.Sleep(s.VisibilityTimeout/2 + s.VisibilityTimeout/4)
	_, err := s.queue.Lease(ctx, s.VisibilityTimeout)
	s.True(errors.Is(err, workqueue.ErrNoWorkItem))

	s.Require().NoError(s.queue.Acknowledge(ctx, lease))
	s.assertDepth(0)
}

func (s *WorkQueueSuite) Test_Extend_Expired_Lease() {
	ctx := context.Background()
	s.enqueue("orders-db")

	first := s.leaseOne()
	second := s.awaitLease()

	err := s.queue.Extend(ctx, first, s.VisibilityTimeout)
	s.True(errors.Is(err, workqueue.ErrLeaseExpired))

	s.Require().NoError(s.queue.Acknowledge(ctx, second))
}

func (s *WorkQueueSuite) Test_Acknowledge_Twice() {
	ctx := context.Background()
	s.enqueue("orders-db")

	lease := s.leaseOne()
	s.Require().NoError(s.queue.Acknowledge(ctx, lease))
	s.NoError(s.queue.Acknowledge(ctx, lease))
	s.assertDepth(0)
}

func (s *WorkQueueSuite) Test_Duplicate_Enqueue_Is_Not_Deduplicated() {
	ctx := context.Background()
	s.enqueue("orders-db")
	s.enqueue("orders-db")
	s.assertDepth(2)

	first := s.leaseOne()
	second := s.leaseOne()
	s.Equal("orders-db", first.Item.ClusterIdentifier)
	s.Equal("orders-db", second.Item.ClusterIdentifier)
	s.NotEqual(first.Item.ID, second.Item.ID)

	s.Require().NoError(s.queue.Acknowledge(ctx, first))
	s.Require().NoError(s.queue.Acknowledge(ctx, second))
	s.assertDepth(0)
}

func (s *WorkQueueSuite) Test_Lease_Order() {
	ctx := context.Background()
	clusters := []string{"orders-db", "billing-db", "audit-db"}
	for _, cluster := range clusters {
		s.enqueue(cluster)
	}

	leased := make([]string, 0, len(clusters))
	for range clusters {
		lease := s.leaseOne()
		leased = append(leased, lease.Item.ClusterIdentifier)
		s.Require().NoError(s.queue.Acknowledge(ctx, lease))
	}

	if s.Capabilities.Ordered {
		s.Equal(clusters, leased)
	} else {
		s.ElementsMatch(clusters, leased)
	}
}

func (s *WorkQueueSuite) enqueue(
	clusterIdentifier string,
) {

	s.Require().NoError(s.queue.Enqueue(context.Background(), workitem.WorkItem{
		ClusterIdentifier: clusterIdentifier,
		EnqueuedAt:        time.Now().UTC(),
		SourceEventID:     lo.RandomString(16, lo.AlphanumericCharset),
	}))
}

func (s *WorkQueueSuite) leaseOne() *workqueue.Lease {
	return s.pollLease(time.Second*10, time.Millisecond*100)
}

// awaitLease leases again once the previous lease expired
func (s *WorkQueueSuite) awaitLease() *workqueue.Lease {
	return s.pollLease(s.VisibilityTimeout*5, s.VisibilityTimeout/10)
}

func (s *WorkQueueSuite) pollLease(
	waitFor, tick time.Duration,
) *workqueue.Lease {

	deadline := time.Now().Add(waitFor)
	for {
		lease, err := s.queue.Lease(context.Background(), s.VisibilityTimeout)
		if err == nil {
			return lease
		}
		s.Require().True(errors.Is(err, workqueue.ErrNoWorkItem), "unexpected error: %v", err)
		if time.Now().After(deadline) {
			s.Require().FailNow("no work item became visible", "waited %s", waitFor)
		}
		time.Sleep(tick)
	}
}

func (s *WorkQueueSuite) assertDepth(
	expected int,
) {

	s.Eventually(func() bool {
		depth, err := s.queue.Depth(context.Background())
		return err == nil && depth == expected
	}, time.Second*10, time.Millisecond*100)
}

func (s *WorkQueueSuite) assertEmpty() {
	_, err := s.queue.Lease(context.Background(), s.VisibilityTimeout)
	s.True(errors.Is(err, workqueue.ErrNoWorkItem))
}
