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
	"crypto/tls"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

type SourceType string

const (
	HttpSource       SourceType = "http"
	AwsSqsSource     SourceType = "awssqs"
	AwsKinesisSource SourceType = "awskinesis"
	KafkaSource      SourceType = "kafka"
	NatsSource       SourceType = "nats"
	RedisSource      SourceType = "redis"
	FileSource       SourceType = "file"
)

type WorkQueueType string

const (
	MemoryWorkQueue     WorkQueueType = "memory"
	FileWorkQueue       WorkQueueType = "file"
	AwsSqsWorkQueue     WorkQueueType = "awssqs"
	RedisWorkQueue      WorkQueueType = "redis"
	PostgresqlWorkQueue WorkQueueType = "postgresql"
	NatsWorkQueue       WorkQueueType = "nats"
)

type NatsAuthorizationType string

const (
	UserInfo    NatsAuthorizationType = "userinfo"
	Credentials NatsAuthorizationType = "credentials"
	Jwt         NatsAuthorizationType = "jwt"
)

type Config struct {
	Filter    FilterConfig    `toml:"filter" yaml:"filter"`
	Source    SourceConfig    `toml:"source" yaml:"source"`
	WorkQueue WorkQueueConfig `toml:"workqueue" yaml:"workqueue"`
	Invoker   InvokerConfig   `toml:"invoker" yaml:"invoker"`
	Stats     StatsConfig     `toml:"stats" yaml:"stats"`
	Logging   LoggerConfig    `toml:"logging" yaml:"logging"`
	Internal  InternalConfig  `toml:"internal" yaml:"internal"`
}

type FilterConfig struct {
	Source      string                           `toml:"source" yaml:"source"`
	Operation   string                           `toml:"operation" yaml:"operation"`
	EventSource string                           `toml:"eventsource" yaml:"eventsource"`
	Engine      string                           `toml:"engine" yaml:"engine"`
	Conditions  map[string]FilterConditionConfig `toml:"conditions" yaml:"conditions"`
}

type FilterConditionConfig struct {
	DefaultValue *bool  `toml:"default" yaml:"default"`
	Condition    string `toml:"condition" yaml:"condition"`
}

type SourceConfig struct {
	Type    SourceType          `toml:"type" yaml:"type"`
	Http    HttpSourceConfig    `toml:"http" yaml:"http"`
	Sqs     AwsSqsConfig        `toml:"sqs" yaml:"sqs"`
	Kinesis AwsKinesisConfig    `toml:"kinesis" yaml:"kinesis"`
	Kafka   KafkaSourceConfig   `toml:"kafka" yaml:"kafka"`
	Nats    NatsStreamingConfig `toml:"nats" yaml:"nats"`
	Redis   RedisSourceConfig   `toml:"redis" yaml:"redis"`
	File    FileConfig          `toml:"file" yaml:"file"`
}

type HttpSourceConfig struct {
	Address string `toml:"address" yaml:"address"`
	Path    string `toml:"path" yaml:"path"`
}

type WorkQueueConfig struct {
	Type              WorkQueueType       `toml:"type" yaml:"type"`
	VisibilityTimeout time.Duration       `toml:"visibilitytimeout" yaml:"visibilitytimeout"`
	File              FileConfig          `toml:"file" yaml:"file"`
	Sqs               AwsSqsConfig        `toml:"sqs" yaml:"sqs"`
	Redis             RedisQueueConfig    `toml:"redis" yaml:"redis"`
	PostgreSQL        PostgreSQLConfig    `toml:"postgresql" yaml:"postgresql"`
	Nats              NatsStreamingConfig `toml:"nats" yaml:"nats"`
}

type FileConfig struct {
	Path string `toml:"path" yaml:"path"`
}

type PollConfig struct {
	Wait     time.Duration `toml:"wait" yaml:"wait"`
	Interval time.Duration `toml:"interval" yaml:"interval"`
}

type AwsConnectionConfig struct {
	Region          *string `toml:"region" yaml:"region"`
	Endpoint        string  `toml:"endpoint" yaml:"endpoint"`
	AccessKeyId     string  `toml:"accesskeyid" yaml:"accesskeyid"`
	SecretAccessKey string  `toml:"secretaccesskey" yaml:"secretaccesskey"`
	SessionToken    string  `toml:"sessiontoken" yaml:"sessiontoken"`
}

type AwsSqsQueueConfig struct {
	Url    string `toml:"url" yaml:"url"`
	Name   string `toml:"name" yaml:"name"`
	Create *bool  `toml:"create" yaml:"create"`
}

type AwsSqsConfig struct {
	Queue AwsSqsQueueConfig   `toml:"queue" yaml:"queue"`
	Poll  PollConfig          `toml:"poll" yaml:"poll"`
	Aws   AwsConnectionConfig `toml:"aws" yaml:"aws"`
}

type AwsKinesisStreamConfig struct {
	Name     string `toml:"name" yaml:"name"`
	Iterator string `toml:"iterator" yaml:"iterator"`
}

type AwsKinesisConfig struct {
	Stream AwsKinesisStreamConfig `toml:"stream" yaml:"stream"`
	Poll   PollConfig             `toml:"poll" yaml:"poll"`
	Aws    AwsConnectionConfig    `toml:"aws" yaml:"aws"`
}

type KafkaSaslConfig struct {
	Enabled   bool                 `toml:"enabled" yaml:"enabled"`
	User      string               `toml:"user" yaml:"user"`
	Password  string               `toml:"password" yaml:"password"`
	Mechanism sarama.SASLMechanism `toml:"mechanism" yaml:"mechanism"`
}

type KafkaSourceConfig struct {
	Brokers []string        `toml:"brokers" yaml:"brokers"`
	Topic   string          `toml:"topic" yaml:"topic"`
	Group   string          `toml:"group" yaml:"group"`
	Offset  string          `toml:"offset" yaml:"offset"`
	Sasl    KafkaSaslConfig `toml:"sasl" yaml:"sasl"`
	TLS     TLSConfig       `toml:"tls" yaml:"tls"`
}

type NatsUserInfoConfig struct {
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
}

type NatsCredentialsConfig struct {
	Certificate string   `toml:"certificate" yaml:"certificate"`
	Seeds       []string `toml:"seeds" yaml:"seeds"`
}

type NatsJWTConfig struct {
	JWT  string `toml:"jwt" yaml:"jwt"`
	Seed string `toml:"seed" yaml:"seed"`
}

type NatsConfig struct {
	Address       string                `toml:"address" yaml:"address"`
	Authorization NatsAuthorizationType `toml:"authorization" yaml:"authorization"`
	UserInfo      NatsUserInfoConfig    `toml:"userinfo" yaml:"userinfo"`
	Credentials   NatsCredentialsConfig `toml:"credentials" yaml:"credentials"`
	JWT           NatsJWTConfig         `toml:"jwt" yaml:"jwt"`
	Timeout       time.Duration         `toml:"timeout" yaml:"timeout"`
}

type NatsStreamingConfig struct {
	NatsConfig `yaml:",inline"`
	Stream     string     `toml:"stream" yaml:"stream"`
	Subject    string     `toml:"subject" yaml:"subject"`
	Durable    string     `toml:"durable" yaml:"durable"`
	Fetch      PollConfig `toml:"fetch" yaml:"fetch"`
}

type RedisConfig struct {
	Network  string             `toml:"network" yaml:"network"`
	Address  string             `toml:"address" yaml:"address"`
	Password string             `toml:"password" yaml:"password"`
	Database int                `toml:"database" yaml:"database"`
	Retries  RedisRetryConfig   `toml:"retries" yaml:"retries"`
	Timeouts RedisTimeoutConfig `toml:"timeouts" yaml:"timeouts"`
	PoolSize int                `toml:"poolsize" yaml:"poolsize"`
	TLS      TLSConfig          `toml:"tls" yaml:"tls"`
}

type RedisRetryConfig struct {
	MaxAttempts int                     `toml:"maxattempts" yaml:"maxattempts"`
	Backoff     RedisRetryBackoffConfig `toml:"backoff" yaml:"backoff"`
}

type RedisRetryBackoffConfig struct {
	Min time.Duration `toml:"min" yaml:"min"`
	Max time.Duration `toml:"max" yaml:"max"`
}

type RedisTimeoutConfig struct {
	Dial  time.Duration `toml:"dial" yaml:"dial"`
	Read  time.Duration `toml:"read" yaml:"read"`
	Write time.Duration `toml:"write" yaml:"write"`
	Pool  time.Duration `toml:"pool" yaml:"pool"`
	Idle  time.Duration `toml:"idle" yaml:"idle"`
}

type RedisSourceConfig struct {
	RedisConfig `yaml:",inline"`
	Stream      string     `toml:"stream" yaml:"stream"`
	Group       string     `toml:"group" yaml:"group"`
	Consumer    string     `toml:"consumer" yaml:"consumer"`
	Poll        PollConfig `toml:"poll" yaml:"poll"`
}

type RedisQueueConfig struct {
	RedisConfig `yaml:",inline"`
	Prefix      string `toml:"prefix" yaml:"prefix"`
}

type PostgreSQLConfig struct {
	Connection string `toml:"connection" yaml:"connection"`
	Password   string `toml:"password" yaml:"password"`
	Table      string `toml:"table" yaml:"table"`
}

type TLSConfig struct {
	Enabled    bool               `toml:"enabled" yaml:"enabled"`
	SkipVerify bool               `toml:"skipverify" yaml:"skipverify"`
	ClientAuth tls.ClientAuthType `toml:"clientauth" yaml:"clientauth"`
}

type InvokerConfig struct {
	Timeout time.Duration      `toml:"timeout" yaml:"timeout"`
	Retries InvokerRetryConfig `toml:"retries" yaml:"retries"`
}

type InvokerRetryConfig struct {
	Max             *uint64       `toml:"max" yaml:"max"`
	InitialInterval time.Duration `toml:"initialinterval" yaml:"initialinterval"`
	MaxInterval     time.Duration `toml:"maxinterval" yaml:"maxinterval"`
}

type StatsConfig struct {
	Enabled *bool              `toml:"enabled" yaml:"enabled"`
	Address string             `toml:"address" yaml:"address"`
	Runtime RuntimeStatsConfig `toml:"runtime" yaml:"runtime"`
}

type RuntimeStatsConfig struct {
	Enabled *bool `toml:"enabled" yaml:"enabled"`
}

type InternalConfig struct {
	Encoding EncodingConfig `toml:"encoding" yaml:"encoding"`
}

type EncodingConfig struct {
	CustomReflection *bool `toml:"customreflection" yaml:"customreflection"`
}

type LoggerConfig struct {
	Level   string                     `toml:"level" yaml:"level"`
	Outputs LoggerOutputConfig         `toml:"outputs" yaml:"outputs"`
	Loggers map[string]SubLoggerConfig `toml:"loggers" yaml:"loggers"`
}

type LoggerOutputConfig struct {
	Console LoggerConsoleConfig `toml:"console" yaml:"console"`
	File    LoggerFileConfig    `toml:"file" yaml:"file"`
}

type SubLoggerConfig struct {
	Level   *string            `toml:"level" yaml:"level"`
	Outputs LoggerOutputConfig `toml:"outputs" yaml:"outputs"`
}

type LoggerConsoleConfig struct {
	Enabled *bool `toml:"enabled" yaml:"enabled"`
}

type LoggerFileConfig struct {
	Enabled     *bool          `toml:"enabled" yaml:"enabled"`
	Path        string         `toml:"path" yaml:"path"`
	Rotate      *bool          `toml:"rotate" yaml:"rotate"`
	MaxSize     *string        `toml:"maxsize" yaml:"maxsize"`
	MaxDuration *time.Duration `toml:"maxduration" yaml:"maxduration"`
	Compress    bool           `toml:"compress" yaml:"compress"`
}

var durationType = reflect.TypeOf(time.Duration(0))

// GetOrDefault resolves the canonical property (dotted path of
// toml names) against the environment first, then against the
// configuration. Zero values resolve to defaultValue.
func GetOrDefault[V any](
	config *Config, canonicalProperty string, defaultValue V,
) V {

	targetType := reflect.TypeOf((*V)(nil)).Elem()
	if env, found := findEnvProperty(canonicalProperty, targetType); found {
		return env.Interface().(V)
	}

	if config == nil {
		return defaultValue
	}

	properties := strings.Split(canonicalProperty, ".")

	element := reflect.ValueOf(*config)
	for _, property := range properties {
		if element.Kind() == reflect.Ptr {
			if element.IsNil() {
				return defaultValue
			}
			element = element.Elem()
		}
		if element.Kind() != reflect.Struct {
			return defaultValue
		}
		if e, ok := findProperty(element, property); ok {
			element = e
		} else {
			return defaultValue
		}
	}

	if element.IsZero() {
		return defaultValue
	}

	if v, ok := convertValue(element, targetType); ok {
		return v.Interface().(V)
	}
	return defaultValue
}

// EnvVarName returns the environment variable overriding the
// given canonical property
func EnvVarName(
	canonicalProperty string,
) string {

	envVarName := strings.ToUpper(canonicalProperty)
	envVarName = strings.ReplaceAll(envVarName, "_", "__")
	return strings.ReplaceAll(envVarName, ".", "_")
}

func findEnvProperty(
	canonicalProperty string, t reflect.Type,
) (reflect.Value, bool) {

	if val, ok := os.LookupEnv(EnvVarName(canonicalProperty)); ok && val != "" {
		if cv, ok := parseValue(val, t); ok {
			return cv, true
		}
	}
	return reflect.Value{}, false
}

func findProperty(
	element reflect.Value, property string,
) (reflect.Value, bool) {

	t := element.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Tag.Get("toml") == "" {
			if e, ok := findProperty(element.Field(i), property); ok {
				return e, true
			}
			continue
		}

		if f.PkgPath != "" {
			continue
		}

		if f.Tag.Get("toml") == property {
			return element.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func convertValue(
	element reflect.Value, t reflect.Type,
) (reflect.Value, bool) {

	if element.Type().ConvertibleTo(t) {
		return element.Convert(t), true
	}
	if element.Kind() == reflect.Ptr && !element.IsNil() {
		return convertValue(element.Elem(), t)
	}
	if t.Kind() == reflect.Ptr && element.Type().ConvertibleTo(t.Elem()) {
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(element.Convert(t.Elem()))
		return ptr, true
	}
	return reflect.Value{}, false
}

func parseValue(
	val string, t reflect.Type,
) (reflect.Value, bool) {

	if t == durationType {
		d, err := time.ParseDuration(val)
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(d), true
	}

	target := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		target.SetString(val)
	case reflect.Bool:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return reflect.Value{}, false
		}
		target.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(val, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, false
		}
		target.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(val, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, false
		}
		target.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(val, t.Bits())
		if err != nil {
			return reflect.Value{}, false
		}
		target.SetFloat(f)
	case reflect.Slice:
		items := strings.Split(val, ",")
		slice := reflect.MakeSlice(t, 0, len(items))
		for _, item := range items {
			v, ok := parseValue(strings.TrimSpace(item), t.Elem())
			if !ok {
				return reflect.Value{}, false
			}
			slice = reflect.Append(slice, v)
		}
		target.Set(slice)
	case reflect.Ptr:
		v, ok := parseValue(val, t.Elem())
		if !ok {
			return reflect.Value{}, false
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(v)
		return ptr, true
	default:
		return reflect.Value{}, false
	}
	return target, true
}
