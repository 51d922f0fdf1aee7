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

package workqueue

import (
	"context"
	"time"

	"github.com/go-errors/errors"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/noctarius/cluster-ddl-trigger/spi/workitem"
)

// DefaultVisibilityTimeout is long enough for a full DDL application
const DefaultVisibilityTimeout = time.Minute * 30

var (
	// ErrNoWorkItem is returned by Lease if no item is visible
	ErrNoWorkItem = errors.Errorf("no work item available")
	// ErrLeaseExpired is returned by Acknowledge and Extend when the
	// lease's visibility window passed and the item was handed out again
	ErrLeaseExpired = errors.Errorf("lease expired")
)

type Factory = func(config *config.Config) (WorkQueue, error)

// Lease is one delivery of a work item. Token identifies this
// delivery, a redelivery of the same item carries a new token.
type Lease struct {
	Item      workitem.WorkItem
	Token     string
	ExpiresAt time.Time
}

// Expired reports whether the visibility window has passed at now
func (l *Lease) Expired(
	now time.Time,
) bool {

	return !now.Before(l.ExpiresAt)
}

// WorkQueue is a durable at-least-once delivery channel. Items
// are handed out best-effort FIFO. A lease that is neither
// acknowledged nor extended within its visibility window makes
// the item available again, without any redelivery limit.
type WorkQueue interface {
	Start() error
	Stop() error
	// Enqueue returns only after the item was durably stored
	Enqueue(ctx context.Context, item workitem.WorkItem) error
	Lease(ctx context.Context, visibilityTimeout time.Duration) (*Lease, error)
	// Acknowledge removes the item. Acknowledging an item that
	// doesn't exist anymore is a no-op.
	Acknowledge(ctx context.Context, lease *Lease) error
	// Extend renews the visibility window and updates ExpiresAt
	Extend(ctx context.Context, lease *Lease, visibilityTimeout time.Duration) error
	// Depth returns the number of visible plus in-flight items
	Depth(ctx context.Context) (int, error)
}

// VisibilityTimeout returns the configured visibility timeout
func VisibilityTimeout(
	c *config.Config,
) time.Duration {

	return config.GetOrDefault(c, config.PropertyWorkQueueVisibilityTimeout, DefaultVisibilityTimeout)
}
