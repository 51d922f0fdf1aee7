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
	"testing"
	"time"

	"github.com/go-errors/errors"
	"github.com/noctarius/cluster-ddl-trigger/spi/encoding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cloudTrailRecord = `{
  "version": "0",
  "id": "6a7e8feb-b491-4cf7-a9f1-bf3703467718",
  "detail-type": "AWS API Call via CloudTrail",
  "source": "aws.rds",
  "account": "123456789012",
  "time": "2024-03-11T09:15:31Z",
  "region": "eu-central-1",
  "detail": {
    "eventVersion": "1.08",
    "eventTime": "2024-03-11T09:15:30Z",
    "eventSource": "rds.amazonaws.com",
    "eventName": "CreateDBCluster",
    "eventID": "0f2c1b44-8a2a-4d0c-9d7e-0e1f7c6f9a11",
    "requestParameters": {
      "dBClusterIdentifier": "orders-db",
      "engine": "aurora-postgresql",
      "databaseName": "postgres"
    },
    "responseElements": {
      "dBClusterIdentifier": "orders-db",
      "status": "creating"
    }
  }
}`

func newDecoder() *Decoder {
	return NewDecoder(encoding.NewJsonDecoder(true))
}

func TestDecoder_Contract_Shape(
	t *testing.T,
) {

	data := []byte(`{"source":"rds","operation":"CreateDBCluster","detail":{"clusterIdentifier":"orders-db"}}`)

	record, err := newDecoder().Decode(data)
	require.NoError(t, err)

	assert.Equal(t, "rds", record.Source)
	assert.Equal(t, "CreateDBCluster", record.Operation)
	assert.Equal(t, "orders-db", record.ClusterIdentifier)
	assert.Equal(t, PayloadDigest(data), record.EventID)
	assert.Len(t, record.EventID, 64)
	assert.True(t, record.OccurredAt.IsZero())
	assert.False(t, record.Failed())
	assert.Equal(t, "orders-db", record.Detail()["clusterIdentifier"])
}

func TestDecoder_Contract_Shape_With_Event_Id(
	t *testing.T,
) {

	data := []byte(`{"eventId":"evt-1","occurredAt":"2024-03-11T09:15:30.123Z",` +
		`"source":"aws.rds","operation":"CreateDBCluster","detail":{"clusterIdentifier":"orders-db"}}`)

	record, err := newDecoder().Decode(data)
	require.NoError(t, err)

	assert.Equal(t, "evt-1", record.EventID)
	assert.Equal(t, time.Date(2024, 3, 11, 9, 15, 30, 123000000, time.UTC), record.OccurredAt)
}

func TestDecoder_CloudTrail_Shape(
	t *testing.T,
) {

	record, err := newDecoder().Decode([]byte(cloudTrailRecord))
	require.NoError(t, err)

	assert.Equal(t, "aws.rds", record.Source)
	assert.Equal(t, "CreateDBCluster", record.Operation)
	assert.Equal(t, "rds.amazonaws.com", record.EventSource)
	assert.Equal(t, "orders-db", record.ClusterIdentifier)
	assert.Equal(t, "aurora-postgresql", record.Engine)
	assert.Equal(t, "6a7e8feb-b491-4cf7-a9f1-bf3703467718", record.EventID)
	assert.Equal(t, time.Date(2024, 3, 11, 9, 15, 31, 0, time.UTC), record.OccurredAt)

	event := record.ClusterCreationEvent()
	assert.Equal(t, record.EventID, event.EventID)
	assert.Equal(t, "orders-db", event.ClusterIdentifier)
	assert.Equal(t, []byte(cloudTrailRecord), event.Raw)
}

func TestDecoder_CloudTrail_Failed_Call(
	t *testing.T,
) {

	data := []byte(`{"source":"aws.rds","detail":{"eventSource":"rds.amazonaws.com",` +
		`"eventName":"CreateDBCluster","errorCode":"DBClusterAlreadyExistsFault",` +
		`"requestParameters":{"dBClusterIdentifier":"orders-db"},"responseElements":null}}`)

	record, err := newDecoder().Decode(data)
	require.NoError(t, err)

	assert.True(t, record.Failed())
	assert.Equal(t, "DBClusterAlreadyExistsFault", record.ErrorCode)
	assert.Equal(t, "orders-db", record.ClusterIdentifier)
}

func TestDecoder_Missing_Identifier_Is_Not_Malformed(
	t *testing.T,
) {

	record, err := newDecoder().Decode([]byte(`{"source":"aws.rds","operation":"CreateDBCluster","detail":{}}`))
	require.NoError(t, err)
	assert.Equal(t, "", record.ClusterIdentifier)
}

func TestDecoder_Malformed(
	t *testing.T,
) {

	inputs := map[string]string{
		"not json":          `CreateDBCluster orders-db`,
		"truncated":         `{"source":"aws.rds","operation":`,
		"array":             `[{"source":"aws.rds"}]`,
		"missing operation": `{"source":"aws.rds","detail":{"clusterIdentifier":"orders-db"}}`,
		"detail not object": `{"source":"aws.rds","operation":"CreateDBCluster","detail":"orders-db"}`,
	}

	decoder := newDecoder()
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			record, err := decoder.Decode([]byte(input))
			assert.Nil(t, record)
			assert.True(t, errors.Is(err, ErrMalformedRecord))
		})
	}
}

func TestPayloadDigest(
	t *testing.T,
) {

	assert.Equal(t,
		"E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855",
		PayloadDigest([]byte{}),
	)
}
