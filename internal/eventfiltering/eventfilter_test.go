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

package eventfiltering

import (
	"testing"

	"github.com/noctarius/cluster-ddl-trigger/spi/auditevent"
	spiconfig "github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/noctarius/cluster-ddl-trigger/spi/encoding"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(
	t *testing.T, data string,
) *auditevent.AuditRecord {

	record, err := auditevent.NewDecoder(encoding.NewJsonDecoder(true)).Decode([]byte(data))
	require.NoError(t, err)
	return record
}

func TestEventFilter_Evaluate(
	t *testing.T,
) {

	filter, err := NewEventFilter("rds", "CreateDBCluster", "", "", nil)
	require.NoError(t, err)

	success, err := filter.Evaluate(decode(t,
		`{"source":"rds","operation":"CreateDBCluster","detail":{"clusterIdentifier":"orders-db"}}`,
	))
	require.NoError(t, err)
	assert.True(t, success)
}

func TestEventFilter_Non_Matching(
	t *testing.T,
) {

	filter, err := NewEventFilter(DefaultSource, DefaultOperation, "", "", nil)
	require.NoError(t, err)

	records := map[string]string{
		"other source":         `{"source":"aws.ec2","operation":"CreateDBCluster","detail":{"clusterIdentifier":"a"}}`,
		"other operation":      `{"source":"aws.rds","operation":"DeleteDBCluster","detail":{"clusterIdentifier":"a"}}`,
		"instance not cluster": `{"source":"aws.rds","operation":"CreateDBInstance","detail":{"clusterIdentifier":"a"}}`,
		"case differs":         `{"source":"AWS.RDS","operation":"createdbcluster","detail":{"clusterIdentifier":"a"}}`,
		"failed api call": `{"source":"aws.rds","detail":{"eventName":"CreateDBCluster",` +
			`"errorCode":"InsufficientDBClusterCapacityFault","requestParameters":{"dBClusterIdentifier":"a"}}}`,
	}

	for name, record := range records {
		t.Run(name, func(t *testing.T) {
			success, err := filter.Evaluate(decode(t, record))
			require.NoError(t, err)
			assert.False(t, success)
		})
	}

	success, err := filter.Evaluate(nil)
	require.NoError(t, err)
	assert.False(t, success)
}

func TestEventFilter_EventSource_And_Engine(
	t *testing.T,
) {

	filter, err := NewEventFilter(DefaultSource, DefaultOperation, "rds.amazonaws.com", "aurora-postgresql", nil)
	require.NoError(t, err)

	matching := decode(t, `{"source":"aws.rds","detail":{"eventSource":"rds.amazonaws.com",`+
		`"eventName":"CreateDBCluster","requestParameters":{"dBClusterIdentifier":"a","engine":"aurora-postgresql"}}}`)
	success, err := filter.Evaluate(matching)
	require.NoError(t, err)
	assert.True(t, success)

	otherEngine := decode(t, `{"source":"aws.rds","detail":{"eventSource":"rds.amazonaws.com",`+
		`"eventName":"CreateDBCluster","requestParameters":{"dBClusterIdentifier":"a","engine":"aurora-mysql"}}}`)
	success, err = filter.Evaluate(otherEngine)
	require.NoError(t, err)
	assert.False(t, success)

	otherEventSource := decode(t, `{"source":"aws.rds","detail":{"eventSource":"cloudtrail.amazonaws.com",`+
		`"eventName":"CreateDBCluster","requestParameters":{"dBClusterIdentifier":"a","engine":"aurora-postgresql"}}}`)
	success, err = filter.Evaluate(otherEventSource)
	require.NoError(t, err)
	assert.False(t, success)
}

func TestEventFilter_Conditions(
	t *testing.T,
) {

	filter, err := NewEventFilter(DefaultSource, DefaultOperation, "", "", map[string]spiconfig.FilterConditionConfig{
		"production-only": {
			Condition: `clusterIdentifier startsWith "prod-"`,
		},
		"no-sandbox-accounts": {
			Condition:    `record.account == "999999999999"`,
			DefaultValue: lo.ToPtr(false),
		},
	})
	require.NoError(t, err)

	success, err := filter.Evaluate(decode(t,
		`{"source":"aws.rds","account":"123456789012","operation":"CreateDBCluster","detail":{"clusterIdentifier":"prod-orders"}}`,
	))
	require.NoError(t, err)
	assert.True(t, success)

	success, err = filter.Evaluate(decode(t,
		`{"source":"aws.rds","account":"123456789012","operation":"CreateDBCluster","detail":{"clusterIdentifier":"dev-orders"}}`,
	))
	require.NoError(t, err)
	assert.False(t, success)

	success, err = filter.Evaluate(decode(t,
		`{"source":"aws.rds","account":"999999999999","operation":"CreateDBCluster","detail":{"clusterIdentifier":"prod-orders"}}`,
	))
	require.NoError(t, err)
	assert.False(t, success)
}

func TestEventFilter_Condition_Runtime_Error(
	t *testing.T,
) {

	filter, err := NewEventFilter(DefaultSource, DefaultOperation, "", "", map[string]spiconfig.FilterConditionConfig{
		"tags": {
			Condition: `detail.requestParameters.tags[0].value == "ddl"`,
		},
	})
	require.NoError(t, err)

	success, err := filter.Evaluate(decode(t,
		`{"source":"aws.rds","operation":"CreateDBCluster","detail":{"clusterIdentifier":"orders-db"}}`,
	))
	assert.Error(t, err)
	assert.False(t, success)
}

func TestEventFilter_Condition_Compile_Error(
	t *testing.T,
) {

	_, err := NewEventFilter(DefaultSource, DefaultOperation, "", "", map[string]spiconfig.FilterConditionConfig{
		"broken": {
			Condition: `clusterIdentifier ==`,
		},
	})
	assert.Error(t, err)

	_, err = NewEventFilter(DefaultSource, DefaultOperation, "", "", map[string]spiconfig.FilterConditionConfig{
		"not-boolean": {
			Condition: `"prod"`,
		},
	})
	assert.Error(t, err)
}

func TestEventFilter_Requires_Source_And_Operation(
	t *testing.T,
) {

	_, err := NewEventFilter("", DefaultOperation, "", "", nil)
	assert.Error(t, err)
}

func TestEventFilter_With_Config_Defaults(
	t *testing.T,
) {

	filter, err := NewEventFilterWithConfig(&spiconfig.Config{})
	require.NoError(t, err)

	success, err := filter.Evaluate(decode(t,
		`{"source":"aws.rds","operation":"CreateDBCluster","detail":{"clusterIdentifier":"orders-db"}}`,
	))
	require.NoError(t, err)
	assert.True(t, success)
}
