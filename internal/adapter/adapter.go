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

package adapter

import (
	"context"

	"github.com/noctarius/cluster-ddl-trigger/internal/eventfiltering"
	"github.com/noctarius/cluster-ddl-trigger/internal/stats"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting/logging"
	"github.com/noctarius/cluster-ddl-trigger/spi/auditevent"
)

// Invoker runs the trigger function for one matching event
type Invoker interface {
	Invoke(ctx context.Context, event auditevent.ClusterCreationEvent) error
}

// Adapter sits between an event source and the trigger function.
// It decodes raw audit records, drops everything that isn't a
// successful cluster creation and invokes the trigger function
// once per matching record. It holds no state between records.
type Adapter struct {
	decoder  *auditevent.Decoder
	filter   eventfiltering.EventFilter
	invoker  Invoker
	reporter *stats.Reporter
	logger   *logging.Logger
}

func NewAdapter(
	decoder *auditevent.Decoder, filter eventfiltering.EventFilter, invoker Invoker, reporter *stats.Reporter,
) (*Adapter, error) {

	logger, err := logging.NewLogger("EventSourceAdapter")
	if err != nil {
		return nil, err
	}

	return &Adapter{
		decoder:  decoder,
		filter:   filter,
		invoker:  invoker,
		reporter: reporter,
		logger:   logger,
	}, nil
}

// Accept handles one raw record delivered by an event source. Only
// a failed invocation yields an error, which tells the source to
// redeliver. Malformed and non-matching records are consumed.
func (a *Adapter) Accept(
	ctx context.Context, data []byte,
) error {

	a.reporter.Incr("records.received")

	record, err := a.decoder.Decode(data)
	if err != nil {
		a.reporter.Incr("records.dropped", stats.Tag("reason", "malformed"))
		a.logger.Tracef("Dropping malformed record: %v", err)
		return nil
	}

	matches, err := a.filter.Evaluate(record)
	if err != nil {
		a.reporter.Incr("records.dropped", stats.Tag("reason", "filter_error"))
		a.logger.Verbosef("Dropping record %s, filter evaluation failed: %v", record.EventID, err)
		return nil
	}

	if !matches {
		a.reporter.Incr("records.dropped", stats.Tag("reason", "no_match"))
		a.logger.Tracef("Dropping record %s (%s/%s)", record.EventID, record.Source, record.Operation)
		return nil
	}

	a.reporter.Incr("records.matched")
	a.logger.Debugf(
		"Cluster creation record %s for cluster '%s' matched", record.EventID, record.ClusterIdentifier,
	)
	return a.invoker.Invoke(ctx, record.ClusterCreationEvent())
}
