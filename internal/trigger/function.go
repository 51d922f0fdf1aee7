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

package trigger

import (
	"context"
	"strings"
	"time"

	"github.com/noctarius/cluster-ddl-trigger/internal/stats"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting/logging"
	"github.com/noctarius/cluster-ddl-trigger/spi/auditevent"
	"github.com/noctarius/cluster-ddl-trigger/spi/workitem"
	"github.com/noctarius/cluster-ddl-trigger/spi/workqueue"
)

// BuildWorkItem copies the cluster identifier verbatim and stamps
// the item with now in UTC. AttemptCount stays zero, it is owned
// by the work queue.
func BuildWorkItem(
	event auditevent.ClusterCreationEvent, now time.Time,
) (workitem.WorkItem, error) {

	if strings.TrimSpace(event.ClusterIdentifier) == "" {
		return workitem.WorkItem{}, ErrMissingIdentifier
	}

	return workitem.WorkItem{
		ClusterIdentifier: event.ClusterIdentifier,
		EnqueuedAt:        now.UTC(),
		SourceEventID:     event.EventID,
	}, nil
}

// Function turns cluster creation events into work items. It keeps
// no state between invocations and doesn't deduplicate, every
// delivery of an event yields its own work item.
type Function struct {
	workQueue workqueue.WorkQueue
	clock     supporting.Clock
	reporter  *stats.Reporter
	logger    *logging.Logger
}

func NewFunction(
	workQueue workqueue.WorkQueue, clock supporting.Clock, reporter *stats.Reporter,
) (*Function, error) {

	logger, err := logging.NewLogger("TriggerFunction")
	if err != nil {
		return nil, err
	}

	if clock == nil {
		clock = supporting.SystemClock
	}

	return &Function{
		workQueue: workQueue,
		clock:     clock,
		reporter:  reporter,
		logger:    logger,
	}, nil
}

// Handle makes exactly one enqueue attempt. Errors are either
// ErrMissingIdentifier or an *EnqueueFailure.
func (f *Function) Handle(
	ctx context.Context, event auditevent.ClusterCreationEvent,
) error {

	item, err := BuildWorkItem(event, f.clock())
	if err != nil {
		f.reporter.Incr("invocations.failed", stats.Tag("reason", "missing_identifier"))
		f.logger.Warnf("Event %s has no cluster identifier, no DDL will be applied", event.EventID)
		return err
	}

	if err := f.workQueue.Enqueue(ctx, item); err != nil {
		f.reporter.Incr("enqueue.failures")
		return &EnqueueFailure{
			ClusterIdentifier: item.ClusterIdentifier,
			EventID:           event.EventID,
			Cause:             err,
		}
	}

	f.reporter.Incr("items.enqueued")
	f.logger.Infof("Enqueued work item for cluster '%s' (event %s)", item.ClusterIdentifier, event.EventID)
	return nil
}
