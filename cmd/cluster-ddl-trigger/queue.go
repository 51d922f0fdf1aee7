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
	"context"
	"fmt"
	"time"

	"github.com/go-errors/errors"
	"github.com/noctarius/cluster-ddl-trigger/internal/pipeline"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting/logging"
	spiconfig "github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/noctarius/cluster-ddl-trigger/spi/encoding"
	"github.com/noctarius/cluster-ddl-trigger/spi/workitem"
	"github.com/noctarius/cluster-ddl-trigger/spi/workqueue"
	"github.com/urfave/cli"
)

const queueOperationTimeout = time.Minute

// unknownExpiry is used when an operator doesn't pass the lease's
// expiry, only the backend decides whether the lease is stale then
var unknownExpiry = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

type leaseOutput struct {
	Id        string            `json:"id"`
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
	Item      workitem.WorkItem `json:"item"`
}

// ExitCodeNoWorkItem is returned by "queue lease" when no work
// item is visible
const ExitCodeNoWorkItem = 2

// workQueueOpener returns the configuration and an unstarted work
// queue for one queue command
type workQueueOpener func() (*spiconfig.Config, workqueue.WorkQueue, error)

func queueCommand() cli.Command {
	return newQueueCommand(openConfiguredWorkQueue)
}

// openConfiguredWorkQueue always logs to stderr, stdout carries the
// command output
func openConfiguredWorkQueue() (*spiconfig.Config, workqueue.WorkQueue, error) {
	systemConfig, err := loadSystemConfig(true)
	if err != nil {
		return nil, nil, err
	}

	workQueue, err := pipeline.NewWorkQueue(systemConfig)
	if err != nil {
		return nil, nil, supporting.AdaptErrorWithMessage(
			err, "Work queue couldn't be created", supporting.ExitCodeStartup,
		)
	}
	return systemConfig.Config, workQueue, nil
}

func newQueueCommand(
	open workQueueOpener,
) cli.Command {

	leaseFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  "id",
			Usage: "Work item id of the lease",
		},
		&cli.StringFlag{
			Name:  "token",
			Usage: "Lease token as printed by the lease command",
		},
	}

	return cli.Command{
		Name:  "queue",
		Usage: "Operates on the configured work queue",
		Subcommands: []cli.Command{
			{
				Name:   "depth",
				Usage:  "Prints the number of visible and in-flight work items",
				Action: withWorkQueue(open, queueDepth),
			},
			{
				Name:  "lease",
				Usage: "Leases one work item and prints the lease as JSON",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Visibility timeout of the lease, defaults to workqueue.visibilitytimeout",
					},
				},
				Action: withWorkQueue(open, queueLease),
			},
			{
				Name:   "ack",
				Usage:  "Acknowledges a lease, removing the work item",
				Flags:  leaseFlags,
				Action: withWorkQueue(open, queueAcknowledge),
			},
			{
				Name:  "extend",
				Usage: "Extends the visibility window of a lease",
				Flags: append([]cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "New visibility timeout, counted from now",
					},
					&cli.StringFlag{
						Name:  "expires-at",
						Usage: "Current expiry of the lease (RFC 3339), enables the local staleness check",
					},
				}, leaseFlags...),
				Action: withWorkQueue(open, queueExtend),
			},
		},
	}
}

type queueAction func(
	ctx context.Context, c *cli.Context, config *spiconfig.Config, workQueue workqueue.WorkQueue,
) error

func withWorkQueue(
	open workQueueOpener, action queueAction,
) func(c *cli.Context) error {

	return func(c *cli.Context) error {
		defer logging.CloseLogging()

		config, workQueue, err := open()
		if err != nil {
			return err
		}
		if err := workQueue.Start(); err != nil {
			return supporting.AdaptErrorWithMessage(err, "Work queue couldn't be started", supporting.ExitCodeStartup)
		}

		ctx, cancel := context.WithTimeout(context.Background(), queueOperationTimeout)
		defer cancel()

		actionErr := action(ctx, c, config, workQueue)
		if err := workQueue.Stop(); err != nil && actionErr == nil {
			actionErr = err
		}
		if actionErr != nil {
			return supporting.AdaptError(actionErr, supporting.ExitCodeQueueOperation)
		}
		return nil
	}
}

func queueDepth(
	ctx context.Context, c *cli.Context, _ *spiconfig.Config, workQueue workqueue.WorkQueue,
) error {

	depth, err := workQueue.Depth(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, depth)
	return nil
}

func queueLease(
	ctx context.Context, c *cli.Context, config *spiconfig.Config, workQueue workqueue.WorkQueue,
) error {

	timeout := c.Duration("timeout")
	if timeout == 0 {
		timeout = workqueue.VisibilityTimeout(config)
	}

	lease, err := workQueue.Lease(ctx, timeout)
	if err != nil {
		if errors.Is(err, workqueue.ErrNoWorkItem) {
			return cli.NewExitError("no work item available", ExitCodeNoWorkItem)
		}
		return err
	}

	data, err := encoding.NewJsonEncoder(true).Marshal(leaseOutput{
		Id:        lease.Item.ID,
		Token:     lease.Token,
		ExpiresAt: lease.ExpiresAt,
		Item:      lease.Item,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(data))
	return nil
}

func queueAcknowledge(
	ctx context.Context, c *cli.Context, _ *spiconfig.Config, workQueue workqueue.WorkQueue,
) error {

	lease, err := leaseFromFlags(c)
	if err != nil {
		return err
	}
	return workQueue.Acknowledge(ctx, lease)
}

func queueExtend(
	ctx context.Context, c *cli.Context, _ *spiconfig.Config, workQueue workqueue.WorkQueue,
) error {

	lease, err := leaseFromFlags(c)
	if err != nil {
		return err
	}

	timeout := c.Duration("timeout")
	if timeout <= 0 {
		return errors.Errorf("extend needs a positive --timeout")
	}

	if expiresAt := c.String("expires-at"); expiresAt != "" {
		t, err := time.Parse(time.RFC3339Nano, expiresAt)
		if err != nil {
			return errors.Errorf("invalid --expires-at '%s': %v", expiresAt, err)
		}
		lease.ExpiresAt = t
	}

	if err := workQueue.Extend(ctx, lease, timeout); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, lease.ExpiresAt.UTC().Format(time.RFC3339Nano))
	return nil
}

func leaseFromFlags(
	c *cli.Context,
) (*workqueue.Lease, error) {

	id := c.String("id")
	token := c.String("token")
	if id == "" || token == "" {
		return nil, errors.Errorf("--id and --token are required")
	}

	return &workqueue.Lease{
		Item: workitem.WorkItem{
			ID: id,
		},
		Token:     token,
		ExpiresAt: unknownExpiry,
	}, nil
}
