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

package auditevent

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// AuditRecord is the normalized view on one infrastructure audit
// record, independent of whether it arrived in the plain
// {source, operation, detail} shape or as an EventBridge
// wrapped CloudTrail API call.
type AuditRecord struct {
	// EventID is the source-assigned record id, or the
	// upper-case hex SHA-256 of Raw when none was present
	EventID string
	Source  string
	// Operation is the API operation, taken from "operation"
	// or the CloudTrail "detail.eventName"
	Operation   string
	EventSource string
	OccurredAt  time.Time
	// ClusterIdentifier may be empty, records with a missing
	// identifier still reach the trigger function
	ClusterIdentifier string
	Engine            string
	// ErrorCode is set by CloudTrail when the API call failed
	ErrorCode string
	// Fields holds the full decoded document for filter conditions
	Fields map[string]any
	Raw    []byte
}

// Detail returns the "detail" object of the record, or an
// empty map if the record has none
func (r *AuditRecord) Detail() map[string]any {
	if detail, ok := r.Fields["detail"].(map[string]any); ok {
		return detail
	}
	return map[string]any{}
}

// Failed reports whether the audited API call was rejected
func (r *AuditRecord) Failed() bool {
	return r.ErrorCode != ""
}

// ClusterCreationEvent projects the record onto the event handed
// to the trigger function
func (r *AuditRecord) ClusterCreationEvent() ClusterCreationEvent {
	return ClusterCreationEvent{
		EventID:           r.EventID,
		ClusterIdentifier: r.ClusterIdentifier,
		OccurredAt:        r.OccurredAt,
		Raw:               r.Raw,
	}
}

// ClusterCreationEvent is immutable and never persisted.
type ClusterCreationEvent struct {
	EventID           string
	ClusterIdentifier string
	OccurredAt        time.Time
	Raw               []byte
}

// PayloadDigest is the upper-case hex SHA-256 of a raw payload,
// used as event id when a record doesn't carry one
func PayloadDigest(
	raw []byte,
) string {

	hash := sha256.New()
	hash.Write(raw)
	return fmt.Sprintf("%X", hash.Sum(nil))
}
