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

package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-errors/errors"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting"
	"github.com/noctarius/cluster-ddl-trigger/internal/workqueues/memory"
	spiconfig "github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/noctarius/cluster-ddl-trigger/spi/encoding"
	"github.com/noctarius/cluster-ddl-trigger/spi/workitem"
	"github.com/noctarius/cluster-ddl-trigger/spi/workqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

type failingStartQueue struct {
	workqueue.WorkQueue
}

func (f *failingStartQueue) Start() error {
	return errors.Errorf("queue unreachable")
}

func newMemoryQueue(
	t *testing.T, clusters ...string,
) workqueue.WorkQueue {

	queue, err := memory.NewMemoryWorkQueue(supporting.SystemClock)
	require.NoError(t, err)
	for _, cluster := range clusters {
		require.NoError(t, queue.Enqueue(context.Background(), workitem.WorkItem{
			ClusterIdentifier: cluster,
			EnqueuedAt:        time.Now().UTC(),
		}))
	}
	return queue
}

func runQueueCommand(
	t *testing.T, queue workqueue.WorkQueue, args ...string,
) (string, error) {

	var output bytes.Buffer
	app := cli.NewApp()
	app.Writer = &output
	app.ErrWriter = io.Discard
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	app.Commands = []cli.Command{
		newQueueCommand(func() (*spiconfig.Config, workqueue.WorkQueue, error) {
			return &spiconfig.Config{}, queue, nil
		}),
	}

	err := app.Run(append([]string{"cluster-ddl-trigger", "queue"}, args...))
	return output.String(), err
}

func exitCodeOf(
	t *testing.T, err error,
) int {

	require.Error(t, err)
	exitCoder, ok := err.(cli.ExitCoder)
	require.True(t, ok, "%v isn't an exit error", err)
	return exitCoder.ExitCode()
}

func parseLease(
	t *testing.T, output string,
) leaseOutput {

	lease := leaseOutput{}
	require.NoError(t, encoding.NewJsonDecoder(true).Unmarshal([]byte(strings.TrimSpace(output)), &lease))
	return lease
}

func Test_Queue_Depth(
	t *testing.T,
) {

	output, err := runQueueCommand(t, newMemoryQueue(t, "orders-db", "billing-db"), "depth")
	require.NoError(t, err)
	assert.Equal(t, "2\n", output)
}

func Test_Queue_Lease_Acknowledge(
	t *testing.T,
) {

	queue := newMemoryQueue(t, "orders-db")

	output, err := runQueueCommand(t, queue, "lease", "--timeout", "1m")
	require.NoError(t, err)

	lease := parseLease(t, output)
	assert.Equal(t, "orders-db", lease.Item.ClusterIdentifier)
	assert.Equal(t, lease.Item.ID, lease.Id)
	assert.NotEmpty(t, lease.Token)
	assert.WithinDuration(t, time.Now().Add(time.Minute), lease.ExpiresAt, time.Second*10)

	output, err = runQueueCommand(t, queue, "depth")
	require.NoError(t, err)
	assert.Equal(t, "1\n", output)

	_, err = runQueueCommand(t, queue, "ack", "--id", lease.Id, "--token", lease.Token)
	require.NoError(t, err)

	output, err = runQueueCommand(t, queue, "depth")
	require.NoError(t, err)
	assert.Equal(t, "0\n", output)
}

func Test_Queue_Lease_Default_Timeout(
	t *testing.T,
) {

	output, err := runQueueCommand(t, newMemoryQueue(t, "orders-db"), "lease")
	require.NoError(t, err)

	lease := parseLease(t, output)
	assert.WithinDuration(t,
		time.Now().Add(workqueue.DefaultVisibilityTimeout), lease.ExpiresAt, time.Second*10,
	)
}

func Test_Queue_Lease_Empty(
	t *testing.T,
) {

	output, err := runQueueCommand(t, newMemoryQueue(t), "lease")
	assert.Equal(t, ExitCodeNoWorkItem, exitCodeOf(t, err))
	assert.Empty(t, output)
}

func Test_Queue_Extend(
	t *testing.T,
) {

	queue := newMemoryQueue(t, "orders-db")

	output, err := runQueueCommand(t, queue, "lease", "--timeout", "1m")
	require.NoError(t, err)
	lease := parseLease(t, output)

	output, err = runQueueCommand(t, queue,
		"extend", "--id", lease.Id, "--token", lease.Token, "--timeout", "2h",
	)
	require.NoError(t, err)

	expiresAt, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(output))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour*2), expiresAt, time.Second*10)

	_, err = runQueueCommand(t, queue, "extend", "--id", lease.Id, "--token", lease.Token)
	assert.Equal(t, supporting.ExitCodeQueueOperation, exitCodeOf(t, err))

	_, err = runQueueCommand(t, queue,
		"extend", "--id", lease.Id, "--token", lease.Token, "--timeout", "1m", "--expires-at", "yesterday",
	)
	assert.Equal(t, supporting.ExitCodeQueueOperation, exitCodeOf(t, err))
}

func Test_Queue_Acknowledge_Errors(
	t *testing.T,
) {

	queue := newMemoryQueue(t, "orders-db")

	output, err := runQueueCommand(t, queue, "lease", "--timeout", "1m")
	require.NoError(t, err)
	lease := parseLease(t, output)

	_, err = runQueueCommand(t, queue, "ack", "--id", lease.Id)
	assert.Equal(t, supporting.ExitCodeQueueOperation, exitCodeOf(t, err))

	_, err = runQueueCommand(t, queue, "ack", "--id", lease.Id, "--token", "superseded")
	assert.Equal(t, supporting.ExitCodeQueueOperation, exitCodeOf(t, err))

	depth, err := queue.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func Test_Queue_Start_Failure(
	t *testing.T,
) {

	_, err := runQueueCommand(t, &failingStartQueue{}, "depth")
	assert.Equal(t, supporting.ExitCodeStartup, exitCodeOf(t, err))
}

func Test_Queue_Commands_Log_To_Stderr(
	t *testing.T,
) {

	t.Setenv(spiconfig.EnvVarName(spiconfig.PropertyWorkQueue), string(spiconfig.MemoryWorkQueue))

	reader, writer, err := os.Pipe()
	require.NoError(t, err)

	stdout := os.Stdout
	os.Stdout = writer
	defer func() {
		os.Stdout = stdout
	}()

	_, queue, err := openConfiguredWorkQueue()
	if err == nil {
		err = queue.Start()
	}
	if err == nil {
		err = queue.Stop()
	}

	os.Stdout = stdout
	require.NoError(t, writer.Close())
	require.NoError(t, err)

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Empty(t, string(data))
}
