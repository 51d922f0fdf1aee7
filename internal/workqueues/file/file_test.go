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

package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-errors/errors"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting"
	"github.com/noctarius/cluster-ddl-trigger/spi/workitem"
	"github.com/noctarius/cluster-ddl-trigger/spi/workqueue"
	"github.com/noctarius/cluster-ddl-trigger/testsupport/queuecontract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type FileWorkQueueTestSuite struct {
	queuecontract.WorkQueueSuite
}

func TestFileWorkQueueTestSuite(
	t *testing.T,
) {

	directory := t.TempDir()
	counter := 0
	suite.Run(t, &FileWorkQueueTestSuite{
		WorkQueueSuite: queuecontract.WorkQueueSuite{
			NewWorkQueue: func() (workqueue.WorkQueue, error) {
				counter++
				path := filepath.Join(directory, "queue", fmt.Sprintf("state-%d.json", counter))
				return NewFileWorkQueue(path, supporting.SystemClock)
			},
			VisibilityTimeout: time.Millisecond * 200,
			Capabilities: queuecontract.Capabilities{
				Ordered:       true,
				StaleTokens:   true,
				SourceEventId: true,
			},
		},
	})
}

func Test_Survives_Restart(
	t *testing.T,
) {

	path := filepath.Join(t.TempDir(), "nested", "workqueue.json")
	ctx := context.Background()

	queue, err := NewFileWorkQueue(path, supporting.SystemClock)
	require.NoError(t, err)
	require.NoError(t, queue.Start())

	enqueuedAt := time.Date(2024, 3, 11, 9, 15, 30, 0, time.UTC)
	for _, cluster := range []string{"orders-db", "billing-db"} {
		require.NoError(t, queue.Enqueue(ctx, workitem.WorkItem{
			ClusterIdentifier: cluster,
			EnqueuedAt:        enqueuedAt,
		}))
	}

	lease, err := queue.Lease(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "orders-db", lease.Item.ClusterIdentifier)

	// No Stop, every mutation is on disk already
	restarted, err := NewFileWorkQueue(path, supporting.SystemClock)
	require.NoError(t, err)
	require.NoError(t, restarted.Start())

	depth, err := restarted.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, depth)

	next, err := restarted.Lease(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "billing-db", next.Item.ClusterIdentifier)
	assert.True(t, enqueuedAt.Equal(next.Item.EnqueuedAt))
	assert.Equal(t, uint32(1), next.Item.AttemptCount)

	_, err = restarted.Lease(ctx, time.Hour)
	assert.True(t, errors.Is(err, workqueue.ErrNoWorkItem))

	// The lease taken before the restart is still honored
	require.NoError(t, restarted.Acknowledge(ctx, lease))
	require.NoError(t, restarted.Acknowledge(ctx, next))
	require.NoError(t, restarted.Stop())

	final, err := NewFileWorkQueue(path, supporting.SystemClock)
	require.NoError(t, err)
	require.NoError(t, final.Start())
	depth, err = final.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func Test_Path_Is_Directory(
	t *testing.T,
) {

	_, err := NewFileWorkQueue(t.TempDir(), supporting.SystemClock)
	assert.Error(t, err)
}

func Test_Corrupt_State_File(
	t *testing.T,
) {

	path := filepath.Join(t.TempDir(), "workqueue.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	queue, err := NewFileWorkQueue(path, supporting.SystemClock)
	require.NoError(t, err)
	assert.Error(t, queue.Start())
}

func Test_Second_Instance_Keeps_Items_Of_The_First(
	t *testing.T,
) {

	path := filepath.Join(t.TempDir(), "workqueue.json")
	ctx := context.Background()

	pipeline, err := NewFileWorkQueue(path, supporting.SystemClock)
	require.NoError(t, err)
	require.NoError(t, pipeline.Start())

	operator, err := NewFileWorkQueue(path, supporting.SystemClock)
	require.NoError(t, err)
	require.NoError(t, operator.Start())

	// Enqueued after the second instance loaded the state file
	require.NoError(t, pipeline.Enqueue(ctx, workitem.WorkItem{ClusterIdentifier: "orders-db"}))

	depth, err := operator.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
	require.NoError(t, operator.Stop())

	require.NoError(t, pipeline.Enqueue(ctx, workitem.WorkItem{ClusterIdentifier: "billing-db"}))

	operator, err = NewFileWorkQueue(path, supporting.SystemClock)
	require.NoError(t, err)
	require.NoError(t, operator.Start())
	lease, err := operator.Lease(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "orders-db", lease.Item.ClusterIdentifier)
	require.NoError(t, operator.Stop())

	// The lease taken by the other instance hides the item here too
	next, err := pipeline.Lease(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "billing-db", next.Item.ClusterIdentifier)
	require.NoError(t, pipeline.Acknowledge(ctx, lease))
	require.NoError(t, pipeline.Stop())

	restarted, err := NewFileWorkQueue(path, supporting.SystemClock)
	require.NoError(t, err)
	require.NoError(t, restarted.Start())
	depth, err = restarted.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func Test_Concurrent_Instances_Enqueue(
	t *testing.T,
) {

	path := filepath.Join(t.TempDir(), "workqueue.json")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		queue, err := NewFileWorkQueue(path, supporting.SystemClock)
		require.NoError(t, err)
		require.NoError(t, queue.Start())

		wg.Add(1)
		go func(instance int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				assert.NoError(t, queue.Enqueue(ctx, workitem.WorkItem{
					ClusterIdentifier: fmt.Sprintf("cluster-%d-%d", instance, j),
				}))
			}
		}(i)
	}
	wg.Wait()

	restarted, err := NewFileWorkQueue(path, supporting.SystemClock)
	require.NoError(t, err)
	require.NoError(t, restarted.Start())
	depth, err := restarted.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40, depth)
}

func Test_Failed_Save_Keeps_Previous_State(
	t *testing.T,
) {

	path := filepath.Join(t.TempDir(), "workqueue.json")
	ctx := context.Background()

	queue, err := NewFileWorkQueue(path, supporting.SystemClock)
	require.NoError(t, err)
	require.NoError(t, queue.Start())

	require.NoError(t, queue.Enqueue(ctx, workitem.WorkItem{ClusterIdentifier: "orders-db"}))
	lease, err := queue.Lease(ctx, time.Hour)
	require.NoError(t, err)

	fileQueue := queue.(*fileWorkQueue)
	fileQueue.writeState = func(_ []byte) error {
		return errors.Errorf("disk full")
	}

	assert.Error(t, queue.Acknowledge(ctx, lease))
	assert.Equal(t, 1, fileQueue.table.Depth())

	assert.Error(t, queue.Enqueue(ctx, workitem.WorkItem{ClusterIdentifier: "billing-db"}))
	assert.Equal(t, 1, fileQueue.table.Depth())

	fileQueue.writeState = fileQueue.writeAtomically
	require.NoError(t, queue.Acknowledge(ctx, lease))

	restarted, err := NewFileWorkQueue(path, supporting.SystemClock)
	require.NoError(t, err)
	require.NoError(t, restarted.Start())
	depth, err := restarted.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}
