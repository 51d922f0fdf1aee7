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

package eventsource

import (
	"context"

	"github.com/noctarius/cluster-ddl-trigger/spi/config"
)

type Factory = func(config *config.Config) (Source, error)

// Handler processes one raw audit record. A returned error asks
// the source to redeliver the record using its own mechanism.
type Handler func(ctx context.Context, data []byte) error

// Source delivers raw audit records from a transport.
type Source interface {
	// Run consumes records until ctx is cancelled or the transport
	// fails permanently. Records are passed to handler one at a time
	// per partition, shard or request.
	Run(ctx context.Context, handler Handler) error
	// Stop releases transport resources after Run returned
	Stop() error
}
