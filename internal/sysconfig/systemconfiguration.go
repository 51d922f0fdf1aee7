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

package sysconfig

import (
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting"
	spiconfig "github.com/noctarius/cluster-ddl-trigger/spi/config"
)

// SystemConfig carries the user configuration plus optional
// provider overrides. Nil providers fall back to the defaults
// selected by source.type and workqueue.type.
type SystemConfig struct {
	*spiconfig.Config

	Clock                supporting.Clock
	SourceProvider       SourceProvider
	WorkQueueProvider    WorkQueueProvider
	StatsServiceProvider StatsServiceProvider
}

func NewSystemConfig(
	config *spiconfig.Config,
) *SystemConfig {

	sc := &SystemConfig{
		Config: config,
	}
	return sc
}
