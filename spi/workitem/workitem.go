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

package workitem

import (
	"strings"
	"time"

	"github.com/go-errors/errors"
	"github.com/noctarius/cluster-ddl-trigger/spi/encoding"
)

var (
	encoder = encoding.NewJsonEncoder(true)
	decoder = encoding.NewJsonDecoder(true)
)

// WorkItem is the unit of work handed to the DDL applier.
// AttemptCount is maintained by the work queue on delivery
// and never set by producers.
type WorkItem struct {
	ID                string    `json:"id"`
	ClusterIdentifier string    `json:"clusterIdentifier"`
	EnqueuedAt        time.Time `json:"enqueuedAt"`
	AttemptCount      uint32    `json:"attemptCount"`
	// SourceEventID is transport metadata and never part of the body
	SourceEventID string `json:"sourceEventId,omitempty"`
}

type message struct {
	ClusterIdentifier string `json:"clusterIdentifier"`
	EnqueuedAt        string `json:"enqueuedAt"`
}

// MarshalBody encodes the outbound message contract
// {"clusterIdentifier": ..., "enqueuedAt": RFC 3339 UTC}
func (w WorkItem) MarshalBody() ([]byte, error) {
	return encoder.Marshal(message{
		ClusterIdentifier: w.ClusterIdentifier,
		EnqueuedAt:        w.EnqueuedAt.UTC().Format(time.RFC3339Nano),
	})
}

// UnmarshalBody decodes a message body. Queue specific fields
// (ID, AttemptCount, SourceEventID) are left for the caller.
func UnmarshalBody(
	data []byte,
) (WorkItem, error) {

	msg := message{}
	if err := decoder.Unmarshal(data, &msg); err != nil {
		return WorkItem{}, errors.Wrap(err, 0)
	}

	if strings.TrimSpace(msg.ClusterIdentifier) == "" {
		return WorkItem{}, errors.Errorf("work item body has no cluster identifier")
	}

	enqueuedAt, err := time.Parse(time.RFC3339Nano, msg.EnqueuedAt)
	if err != nil {
		return WorkItem{}, errors.Errorf("work item body has an invalid enqueuedAt: %v", err)
	}

	return WorkItem{
		ClusterIdentifier: msg.ClusterIdentifier,
		EnqueuedAt:        enqueuedAt.UTC(),
	}, nil
}
