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

package internal

// Registers all event sources and work queues with their registries
import (
	_ "github.com/noctarius/cluster-ddl-trigger/internal/eventsources/awskinesis"
	_ "github.com/noctarius/cluster-ddl-trigger/internal/eventsources/awssqs"
	_ "github.com/noctarius/cluster-ddl-trigger/internal/eventsources/file"
	_ "github.com/noctarius/cluster-ddl-trigger/internal/eventsources/http"
	_ "github.com/noctarius/cluster-ddl-trigger/internal/eventsources/kafka"
	_ "github.com/noctarius/cluster-ddl-trigger/internal/eventsources/nats"
	_ "github.com/noctarius/cluster-ddl-trigger/internal/eventsources/redis"
	_ "github.com/noctarius/cluster-ddl-trigger/internal/workqueues/awssqs"
	_ "github.com/noctarius/cluster-ddl-trigger/internal/workqueues/file"
	_ "github.com/noctarius/cluster-ddl-trigger/internal/workqueues/memory"
	_ "github.com/noctarius/cluster-ddl-trigger/internal/workqueues/nats"
	_ "github.com/noctarius/cluster-ddl-trigger/internal/workqueues/postgresql"
	_ "github.com/noctarius/cluster-ddl-trigger/internal/workqueues/redis"
)
