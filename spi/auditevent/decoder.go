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
	"time"

	"github.com/go-errors/errors"
	"github.com/goccy/go-json"
	"github.com/noctarius/cluster-ddl-trigger/spi/encoding"
)

var ErrMalformedRecord = errors.Errorf("malformed audit record")

type wireRecord struct {
	ID         string          `json:"id"`
	EventID    string          `json:"eventId"`
	Source     string          `json:"source"`
	Operation  string          `json:"operation"`
	Time       string          `json:"time"`
	OccurredAt string          `json:"occurredAt"`
	Detail     json.RawMessage `json:"detail"`
}

type wireParameters struct {
	DBClusterIdentifier string `json:"dBClusterIdentifier"`
	Engine              string `json:"engine"`
}

type wireDetail struct {
	ClusterIdentifier string          `json:"clusterIdentifier"`
	Engine            string          `json:"engine"`
	EventSource       string          `json:"eventSource"`
	EventName         string          `json:"eventName"`
	EventID           string          `json:"eventID"`
	EventTime         string          `json:"eventTime"`
	ErrorCode         string          `json:"errorCode"`
	RequestParameters *wireParameters `json:"requestParameters"`
	ResponseElements  *wireParameters `json:"responseElements"`
}

// Decoder turns raw audit payloads into AuditRecords.
// It holds no state and is safe for concurrent use.
type Decoder struct {
	decoder *encoding.JsonDecoder
}

func NewDecoder(
	decoder *encoding.JsonDecoder,
) *Decoder {

	return &Decoder{
		decoder: decoder,
	}
}

// Decode returns an error wrapping ErrMalformedRecord if data
// isn't a JSON object or no operation name can be found
func (d *Decoder) Decode(
	data []byte,
) (*AuditRecord, error) {

	record := wireRecord{}
	if err := d.decoder.Unmarshal(data, &record); err != nil {
		return nil, errors.WrapPrefix(ErrMalformedRecord, err.Error(), 0)
	}

	detail := wireDetail{}
	if len(record.Detail) > 0 && string(record.Detail) != "null" {
		if err := d.decoder.Unmarshal(record.Detail, &detail); err != nil {
			return nil, errors.WrapPrefix(ErrMalformedRecord, err.Error(), 0)
		}
	}

	fields := make(map[string]any)
	if err := d.decoder.Unmarshal(data, &fields); err != nil {
		return nil, errors.WrapPrefix(ErrMalformedRecord, err.Error(), 0)
	}

	operation := firstNonEmpty(record.Operation, detail.EventName)
	if operation == "" {
		return nil, errors.WrapPrefix(ErrMalformedRecord, "missing operation name", 0)
	}

	clusterIdentifier := detail.ClusterIdentifier
	engine := detail.Engine
	for _, parameters := range []*wireParameters{detail.RequestParameters, detail.ResponseElements} {
		if parameters == nil {
			continue
		}
		clusterIdentifier = firstNonEmpty(clusterIdentifier, parameters.DBClusterIdentifier)
		engine = firstNonEmpty(engine, parameters.Engine)
	}

	eventId := firstNonEmpty(record.EventID, record.ID, detail.EventID)
	if eventId == "" {
		eventId = PayloadDigest(data)
	}

	return &AuditRecord{
		EventID:           eventId,
		Source:            record.Source,
		Operation:         operation,
		EventSource:       detail.EventSource,
		OccurredAt:        parseTimestamp(record.OccurredAt, record.Time, detail.EventTime),
		ClusterIdentifier: clusterIdentifier,
		Engine:            engine,
		ErrorCode:         detail.ErrorCode,
		Fields:            fields,
		Raw:               data,
	}, nil
}

func firstNonEmpty(
	values ...string,
) string {

	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

// parseTimestamp returns the first candidate parsing as RFC 3339,
// or the zero time. An unparsable timestamp doesn't make the
// record malformed.
func parseTimestamp(
	candidates ...string,
) time.Time {

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, candidate); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
