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

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Env_Vars(
	t *testing.T,
) {

	os.Setenv("FOO_BAR", "foo")
	defer os.Unsetenv("FOO_BAR")

	os.Setenv("FOO_BAR__BAZ", "bar")
	defer os.Unsetenv("FOO_BAR__BAZ")

	// On Windows environment variables are case-insensitive, therefore,
	// this test will always fail if trying to use different casing versions
	if runtime.GOOS != "windows" {
		os.Setenv("foo_bar", "bar")
		defer os.Unsetenv("foo_bar")

		os.Setenv("foo_bar__baz", "foo")
		defer os.Unsetenv("foo_bar__baz")
	}

	stringType := reflect.TypeOf("")

	v, found := findEnvProperty("foo.bar", stringType)
	assert.Equal(t, true, found)
	assert.Equal(t, "foo", v.Interface())

	v, found = findEnvProperty("foo.bar_baz", stringType)
	assert.Equal(t, true, found)
	assert.Equal(t, "bar", v.Interface())

	_, found = findEnvProperty("oof.bar", stringType)
	assert.Equal(t, false, found)

	_, found = findEnvProperty("oof.bar_baz", stringType)
	assert.Equal(t, false, found)
}

func Test_Env_Var_Name(
	t *testing.T,
) {

	assert.Equal(t, "WORKQUEUE_VISIBILITYTIMEOUT", EnvVarName(PropertyWorkQueueVisibilityTimeout))
	assert.Equal(t, "FILTER_EVENTSOURCE", EnvVarName(PropertyFilterEventSource))
	assert.Equal(t, "FOO_BAR__BAZ", EnvVarName("foo.bar_baz"))
}

func Test_Property_Extraction(
	t *testing.T,
) {

	config := Config{
		Source: SourceConfig{
			Type: KafkaSource,
			Kafka: KafkaSourceConfig{
				Brokers: []string{"foo", "bar"},
			},
		},
	}

	value := reflect.ValueOf(config)
	v1, found := findProperty(value, "source")
	assert.Equal(t, true, found)

	v2, found := findProperty(v1, "type")
	assert.Equal(t, true, found)
	assert.Equal(t, "kafka", string(v2.Interface().(SourceType)))

	v3, found := findProperty(v1, "kafka")
	assert.Equal(t, true, found)

	v4, found := findProperty(v3, "brokers")
	assert.Equal(t, true, found)
	assert.Equal(t, []string{"foo", "bar"}, v4.Interface().([]string))
}

func Test_Property_Extraction_Embedded(
	t *testing.T,
) {

	config := &Config{
		WorkQueue: WorkQueueConfig{
			Nats: NatsStreamingConfig{
				NatsConfig: NatsConfig{
					Address: "nats://queue:4222",
				},
				Stream: "WORK",
			},
		},
	}

	assert.Equal(t, "nats://queue:4222", GetOrDefault(config, PropertyNatsWorkQueueAddress, ""))
	assert.Equal(t, "WORK", GetOrDefault(config, PropertyNatsWorkQueueStream, ""))
}

func Test_Config_Property_Reading(
	t *testing.T,
) {

	config := &Config{
		Source: SourceConfig{
			Type: KafkaSource,
			Kafka: KafkaSourceConfig{
				Brokers: []string{"foo", "bar"},
			},
		},
		WorkQueue: WorkQueueConfig{
			VisibilityTimeout: time.Minute * 5,
		},
	}

	assert.Equal(t, KafkaSource, GetOrDefault(config, PropertySource, HttpSource))
	assert.Equal(t, []string{"foo", "bar"}, GetOrDefault(config, PropertyKafkaSourceBrokers, []string{}))
	assert.Equal(t, time.Minute*5, GetOrDefault(config, PropertyWorkQueueVisibilityTimeout, time.Minute*30))
	assert.Equal(t, MemoryWorkQueue, GetOrDefault(config, PropertyWorkQueue, MemoryWorkQueue))
	assert.Equal(t, "CreateDBCluster", GetOrDefault(config, PropertyFilterOperation, "CreateDBCluster"))
}

func Test_Config_Pointer_Properties(
	t *testing.T,
) {

	config := &Config{
		Source: SourceConfig{
			Sqs: AwsSqsConfig{
				Aws: AwsConnectionConfig{
					Region: lo.ToPtr("eu-central-1"),
				},
			},
		},
		Invoker: InvokerConfig{
			Retries: InvokerRetryConfig{
				Max: lo.ToPtr(uint64(0)),
			},
		},
	}

	region := GetOrDefault[*string](config, PropertySqsSourceAwsRegion, nil)
	require.NotNil(t, region)
	assert.Equal(t, "eu-central-1", *region)
	assert.Equal(t, "eu-central-1", GetOrDefault(config, PropertySqsSourceAwsRegion, ""))

	// Explicit zero through a pointer is not the default
	assert.Equal(t, uint64(0), GetOrDefault(config, PropertyInvokerRetriesMax, uint64(8)))
	assert.Nil(t, GetOrDefault[*string](config, PropertyKinesisSourceAwsRegion, nil))
}

func Test_Config_Env_Override(
	t *testing.T,
) {

	config := &Config{
		WorkQueue: WorkQueueConfig{
			VisibilityTimeout: time.Minute * 5,
		},
	}

	t.Setenv("WORKQUEUE_VISIBILITYTIMEOUT", "45m")
	t.Setenv("STATS_ENABLED", "false")
	t.Setenv("INVOKER_RETRIES_MAX", "3")
	t.Setenv("SOURCE_KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("SOURCE_SQS_AWS_REGION", "us-east-1")

	assert.Equal(t, time.Minute*45, GetOrDefault(config, PropertyWorkQueueVisibilityTimeout, time.Minute*30))
	assert.Equal(t, false, GetOrDefault(config, PropertyStatsEnabled, true))
	assert.Equal(t, uint64(3), GetOrDefault(config, PropertyInvokerRetriesMax, uint64(8)))
	assert.Equal(t, []string{"a:9092", "b:9092"}, GetOrDefault(config, PropertyKafkaSourceBrokers, []string{}))
	assert.Equal(t, "us-east-1", *GetOrDefault[*string](config, PropertySqsSourceAwsRegion, nil))
}

func Test_Config_Env_Override_Unparsable(
	t *testing.T,
) {

	config := &Config{}
	t.Setenv("WORKQUEUE_VISIBILITYTIMEOUT", "half an hour")
	assert.Equal(t, time.Minute*30, GetOrDefault(config, PropertyWorkQueueVisibilityTimeout, time.Minute*30))
}

func Test_Load_Toml(
	t *testing.T,
) {

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[filter]
source = "aws.rds"
operation = "CreateDBCluster"
engine = "aurora-postgresql"

[filter.conditions.production]
condition = 'detail.requestParameters.tags != nil'

[source]
type = "awssqs"
sqs.queue.url = "https://sqs.eu-central-1.amazonaws.com/000000000000/audit"

[workqueue]
type = "redis"
visibilitytimeout = "30m"
redis.address = "localhost:6379"
redis.prefix = "ddl"
`), 0600))

	config, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, AwsSqsSource, config.Source.Type)
	assert.Equal(t, "aurora-postgresql", config.Filter.Engine)
	assert.Contains(t, config.Filter.Conditions, "production")
	assert.Equal(t, time.Minute*30, config.WorkQueue.VisibilityTimeout)
	assert.Equal(t, "localhost:6379", GetOrDefault(config, PropertyRedisWorkQueueAddress, ""))
	assert.Equal(t, "ddl", GetOrDefault(config, PropertyRedisWorkQueuePrefix, ""))
}

func Test_Load_Yaml(
	t *testing.T,
) {

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source:
  type: nats
  nats:
    address: nats://localhost:4222
    stream: AUDIT
workqueue:
  type: postgresql
  visibilitytimeout: 10m
  postgresql:
    connection: postgres://localhost:5432/postgres
`), 0600))

	config, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, NatsSource, config.Source.Type)
	assert.Equal(t, "nats://localhost:4222", GetOrDefault(config, PropertyNatsSourceAddress, ""))
	assert.Equal(t, "AUDIT", GetOrDefault(config, PropertyNatsSourceStream, ""))
	assert.Equal(t, PostgresqlWorkQueue, config.WorkQueue.Type)
	assert.Equal(t, time.Minute*10, config.WorkQueue.VisibilityTimeout)
}
