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

package redisclient

import (
	"crypto/tls"
	"time"

	"github.com/go-redis/redis"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
)

// Properties names the configuration properties of one Redis
// connection section, e.g. workqueue.redis
type Properties struct {
	Network       string
	Address       string
	Password      string
	Database      string
	PoolSize      string
	RetriesMax    string
	BackoffMin    string
	BackoffMax    string
	TimeoutDial   string
	TimeoutRead   string
	TimeoutWrite  string
	TimeoutPool   string
	TimeoutIdle   string
	TlsEnabled    string
	TlsSkipVerify string
	TlsClientAuth string
}

func NewOptions(
	c *config.Config, properties Properties,
) *redis.Options {

	options := &redis.Options{
		Network:         config.GetOrDefault(c, properties.Network, "tcp"),
		Addr:            config.GetOrDefault(c, properties.Address, "localhost:6379"),
		Password:        config.GetOrDefault(c, properties.Password, ""),
		DB:              config.GetOrDefault(c, properties.Database, 0),
		MaxRetries:      config.GetOrDefault(c, properties.RetriesMax, 0),
		MinRetryBackoff: config.GetOrDefault(c, properties.BackoffMin, time.Millisecond*8),
		MaxRetryBackoff: config.GetOrDefault(c, properties.BackoffMax, time.Millisecond*512),
		DialTimeout:     config.GetOrDefault(c, properties.TimeoutDial, time.Second*5),
		ReadTimeout:     config.GetOrDefault(c, properties.TimeoutRead, time.Second*3),
		WriteTimeout:    config.GetOrDefault(c, properties.TimeoutWrite, time.Second*3),
		PoolSize:        config.GetOrDefault(c, properties.PoolSize, 0),
		PoolTimeout:     config.GetOrDefault(c, properties.TimeoutPool, time.Duration(0)),
		IdleTimeout:     config.GetOrDefault(c, properties.TimeoutIdle, time.Minute*5),
	}

	if config.GetOrDefault(c, properties.TlsEnabled, false) {
		options.TLSConfig = &tls.Config{
			InsecureSkipVerify: config.GetOrDefault(c, properties.TlsSkipVerify, false),
			ClientAuth:         config.GetOrDefault(c, properties.TlsClientAuth, tls.NoClientCert),
		}
	}
	return options
}

func NewClient(
	c *config.Config, properties Properties,
) *redis.Client {

	return redis.NewClient(NewOptions(c, properties))
}
