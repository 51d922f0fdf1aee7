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

package memory

import (
	"context"
	"time"

	"github.com/noctarius/cluster-ddl-trigger/internal/leasing"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting/logging"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/noctarius/cluster-ddl-trigger/spi/workitem"
	"github.com/noctarius/cluster-ddl-trigger/spi/workqueue"
)

func init() {
	workqueue.RegisterWorkQueue(config.MemoryWorkQueue, newMemoryWorkQueue)
}

// memoryWorkQueue keeps items in process memory only, they are
// lost on restart. Meant for tests and local experiments.
type memoryWorkQueue struct {
	table  *leasing.Table
	logger *logging.Logger
}

func newMemoryWorkQueue(
	_ *config.Config,
) (workqueue.WorkQueue, error) {

	return NewMemoryWorkQueue(supporting.SystemClock)
}

func NewMemoryWorkQueue(
	clock supporting.Clock,
) (workqueue.WorkQueue, error) {

	logger, err := logging.NewLogger("MemoryWorkQueue")
	if err != nil {
		return nil, err
	}

	return &memoryWorkQueue{
		table:  leasing.NewTable(clock),
		logger: logger,
	}, nil
}

func (m *memoryWorkQueue) Start() error {
	m.logger.Warnln("Using in-memory work queue, work items are lost on restart")
	return nil
}

func (m *memoryWorkQueue) Stop() error {
	if depth := m.table.Depth(); depth > 0 {
		m.logger.Warnf("Dropping %d unacknowledged work items", depth)
	}
	return nil
}

func (m *memoryWorkQueue) Enqueue(
	ctx context.Context, item workitem.WorkItem,
) error {

	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := m.table.Enqueue(item)
	return err
}

func (m *memoryWorkQueue) Lease(
	ctx context.Context, visibilityTimeout time.Duration,
) (*workqueue.Lease, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.table.Lease(visibilityTimeout)
}

func (m *memoryWorkQueue) Acknowledge(
	ctx context.Context, lease *workqueue.Lease,
) error {

	if err := ctx.Err(); err != nil {
		return err
	}
	return m.table.Acknowledge(lease)
}

func (m *memoryWorkQueue) Extend(
	ctx context.Context, lease *workqueue.Lease, visibilityTimeout time.Duration,
) error {

	if err := ctx.Err(); err != nil {
		return err
	}
	return m.table.Extend(lease, visibilityTimeout)
}

func (m *memoryWorkQueue) Depth(
	_ context.Context,
) (int, error) {

	return m.table.Depth(), nil
}
