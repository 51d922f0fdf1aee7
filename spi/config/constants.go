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

const (
	PropertyFilterSource      = "filter.source"
	PropertyFilterOperation   = "filter.operation"
	PropertyFilterEventSource = "filter.eventsource"
	PropertyFilterEngine      = "filter.engine"

	PropertySource = "source.type"

	PropertyHttpSourceAddress = "source.http.address"
	PropertyHttpSourcePath    = "source.http.path"

	PropertySqsSourceQueueUrl           = "source.sqs.queue.url"
	PropertySqsSourcePollWait           = "source.sqs.poll.wait"
	PropertySqsSourceAwsRegion          = "source.sqs.aws.region"
	PropertySqsSourceAwsEndpoint        = "source.sqs.aws.endpoint"
	PropertySqsSourceAwsAccessKeyId     = "source.sqs.aws.accesskeyid"
	PropertySqsSourceAwsSecretAccessKey = "source.sqs.aws.secretaccesskey"
	PropertySqsSourceAwsSessionToken    = "source.sqs.aws.sessiontoken"

	PropertyKinesisSourceStreamName         = "source.kinesis.stream.name"
	PropertyKinesisSourceStreamIterator     = "source.kinesis.stream.iterator"
	PropertyKinesisSourcePollInterval       = "source.kinesis.poll.interval"
	PropertyKinesisSourceAwsRegion          = "source.kinesis.aws.region"
	PropertyKinesisSourceAwsEndpoint        = "source.kinesis.aws.endpoint"
	PropertyKinesisSourceAwsAccessKeyId     = "source.kinesis.aws.accesskeyid"
	PropertyKinesisSourceAwsSecretAccessKey = "source.kinesis.aws.secretaccesskey"
	PropertyKinesisSourceAwsSessionToken    = "source.kinesis.aws.sessiontoken"

	PropertyKafkaSourceBrokers       = "source.kafka.brokers"
	PropertyKafkaSourceTopic         = "source.kafka.topic"
	PropertyKafkaSourceGroup         = "source.kafka.group"
	PropertyKafkaSourceOffset        = "source.kafka.offset"
	PropertyKafkaSourceSaslEnabled   = "source.kafka.sasl.enabled"
	PropertyKafkaSourceSaslUser      = "source.kafka.sasl.user"
	PropertyKafkaSourceSaslPassword  = "source.kafka.sasl.password"
	PropertyKafkaSourceSaslMechanism = "source.kafka.sasl.mechanism"
	PropertyKafkaSourceTlsEnabled    = "source.kafka.tls.enabled"
	PropertyKafkaSourceTlsSkipVerify = "source.kafka.tls.skipverify"
	PropertyKafkaSourceTlsClientAuth = "source.kafka.tls.clientauth"

	PropertyNatsSourceAddress                = "source.nats.address"
	PropertyNatsSourceAuthorization          = "source.nats.authorization"
	PropertyNatsSourceUserinfoUsername       = "source.nats.userinfo.username"
	PropertyNatsSourceUserinfoPassword       = "source.nats.userinfo.password"
	PropertyNatsSourceCredentialsCertificate = "source.nats.credentials.certificate"
	PropertyNatsSourceCredentialsSeeds       = "source.nats.credentials.seeds"
	PropertyNatsSourceJwt                    = "source.nats.jwt.jwt"
	PropertyNatsSourceJwtSeed                = "source.nats.jwt.seed"
	PropertyNatsSourceTimeout                = "source.nats.timeout"
	PropertyNatsSourceStream                 = "source.nats.stream"
	PropertyNatsSourceSubject                = "source.nats.subject"
	PropertyNatsSourceDurable                = "source.nats.durable"
	PropertyNatsSourceFetchWait              = "source.nats.fetch.wait"

	PropertyRedisSourceNetwork           = "source.redis.network"
	PropertyRedisSourceAddress           = "source.redis.address"
	PropertyRedisSourcePassword          = "source.redis.password"
	PropertyRedisSourceDatabase          = "source.redis.database"
	PropertyRedisSourcePoolsize          = "source.redis.poolsize"
	PropertyRedisSourceRetriesMax        = "source.redis.retries.maxattempts"
	PropertyRedisSourceRetriesBackoffMin = "source.redis.retries.backoff.min"
	PropertyRedisSourceRetriesBackoffMax = "source.redis.retries.backoff.max"
	PropertyRedisSourceTimeoutDial       = "source.redis.timeouts.dial"
	PropertyRedisSourceTimeoutRead       = "source.redis.timeouts.read"
	PropertyRedisSourceTimeoutWrite      = "source.redis.timeouts.write"
	PropertyRedisSourceTimeoutPool       = "source.redis.timeouts.pool"
	PropertyRedisSourceTimeoutIdle       = "source.redis.timeouts.idle"
	PropertyRedisSourceTlsEnabled        = "source.redis.tls.enabled"
	PropertyRedisSourceTlsSkipVerify     = "source.redis.tls.skipverify"
	PropertyRedisSourceTlsClientAuth     = "source.redis.tls.clientauth"
	PropertyRedisSourceStream            = "source.redis.stream"
	PropertyRedisSourceGroup             = "source.redis.group"
	PropertyRedisSourceConsumer          = "source.redis.consumer"
	PropertyRedisSourcePollWait          = "source.redis.poll.wait"
	PropertyRedisSourcePollInterval      = "source.redis.poll.interval"

	PropertyFileSourcePath = "source.file.path"

	PropertyWorkQueue                  = "workqueue.type"
	PropertyWorkQueueVisibilityTimeout = "workqueue.visibilitytimeout"

	PropertyFileWorkQueuePath = "workqueue.file.path"

	PropertySqsWorkQueueUrl                = "workqueue.sqs.queue.url"
	PropertySqsWorkQueueName               = "workqueue.sqs.queue.name"
	PropertySqsWorkQueueCreate             = "workqueue.sqs.queue.create"
	PropertySqsWorkQueuePollWait           = "workqueue.sqs.poll.wait"
	PropertySqsWorkQueueAwsRegion          = "workqueue.sqs.aws.region"
	PropertySqsWorkQueueAwsEndpoint        = "workqueue.sqs.aws.endpoint"
	PropertySqsWorkQueueAwsAccessKeyId     = "workqueue.sqs.aws.accesskeyid"
	PropertySqsWorkQueueAwsSecretAccessKey = "workqueue.sqs.aws.secretaccesskey"
	PropertySqsWorkQueueAwsSessionToken    = "workqueue.sqs.aws.sessiontoken"

	PropertyRedisWorkQueueNetwork           = "workqueue.redis.network"
	PropertyRedisWorkQueueAddress           = "workqueue.redis.address"
	PropertyRedisWorkQueuePassword          = "workqueue.redis.password"
	PropertyRedisWorkQueueDatabase          = "workqueue.redis.database"
	PropertyRedisWorkQueuePoolsize          = "workqueue.redis.poolsize"
	PropertyRedisWorkQueueRetriesMax        = "workqueue.redis.retries.maxattempts"
	PropertyRedisWorkQueueRetriesBackoffMin = "workqueue.redis.retries.backoff.min"
	PropertyRedisWorkQueueRetriesBackoffMax = "workqueue.redis.retries.backoff.max"
	PropertyRedisWorkQueueTimeoutDial       = "workqueue.redis.timeouts.dial"
	PropertyRedisWorkQueueTimeoutRead       = "workqueue.redis.timeouts.read"
	PropertyRedisWorkQueueTimeoutWrite      = "workqueue.redis.timeouts.write"
	PropertyRedisWorkQueueTimeoutPool       = "workqueue.redis.timeouts.pool"
	PropertyRedisWorkQueueTimeoutIdle       = "workqueue.redis.timeouts.idle"
	PropertyRedisWorkQueueTlsEnabled        = "workqueue.redis.tls.enabled"
	PropertyRedisWorkQueueTlsSkipVerify     = "workqueue.redis.tls.skipverify"
	PropertyRedisWorkQueueTlsClientAuth     = "workqueue.redis.tls.clientauth"
	PropertyRedisWorkQueuePrefix            = "workqueue.redis.prefix"

	PropertyPostgresqlWorkQueueConnection = "workqueue.postgresql.connection"
	PropertyPostgresqlWorkQueuePassword   = "workqueue.postgresql.password"
	PropertyPostgresqlWorkQueueTable      = "workqueue.postgresql.table"

	PropertyNatsWorkQueueAddress                = "workqueue.nats.address"
	PropertyNatsWorkQueueAuthorization          = "workqueue.nats.authorization"
	PropertyNatsWorkQueueUserinfoUsername       = "workqueue.nats.userinfo.username"
	PropertyNatsWorkQueueUserinfoPassword       = "workqueue.nats.userinfo.password"
	PropertyNatsWorkQueueCredentialsCertificate = "workqueue.nats.credentials.certificate"
	PropertyNatsWorkQueueCredentialsSeeds       = "workqueue.nats.credentials.seeds"
	PropertyNatsWorkQueueJwt                    = "workqueue.nats.jwt.jwt"
	PropertyNatsWorkQueueJwtSeed                = "workqueue.nats.jwt.seed"
	PropertyNatsWorkQueueTimeout                = "workqueue.nats.timeout"
	PropertyNatsWorkQueueStream                 = "workqueue.nats.stream"
	PropertyNatsWorkQueueSubject                = "workqueue.nats.subject"
	PropertyNatsWorkQueueDurable                = "workqueue.nats.durable"
	PropertyNatsWorkQueueFetchWait              = "workqueue.nats.fetch.wait"

	PropertyInvokerTimeout                = "invoker.timeout"
	PropertyInvokerRetriesMax             = "invoker.retries.max"
	PropertyInvokerRetriesInitialInterval = "invoker.retries.initialinterval"
	PropertyInvokerRetriesMaxInterval     = "invoker.retries.maxinterval"

	PropertyStatsEnabled        = "stats.enabled"
	PropertyStatsAddress        = "stats.address"
	PropertyRuntimeStatsEnabled = "stats.runtime.enabled"

	PropertyEncodingCustomReflection = "internal.encoding.customreflection"
)
