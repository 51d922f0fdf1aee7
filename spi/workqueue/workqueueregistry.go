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

package workqueue

import (
	"slices"
	"sync"

	"github.com/go-errors/errors"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
	"golang.org/x/exp/maps"
)

var workQueueRegistry *registry

func init() {
	workQueueRegistry = &registry{
		mutex:     sync.Mutex{},
		factories: make(map[config.WorkQueueType]Factory),
	}
}

type registry struct {
	mutex     sync.Mutex
	factories map[config.WorkQueueType]Factory
}

// RegisterWorkQueue registers a config.WorkQueueType to a Factory
// implementation which creates the WorkQueue when requested
func RegisterWorkQueue(
	name config.WorkQueueType, factory Factory,
) bool {

	workQueueRegistry.mutex.Lock()
	defer workQueueRegistry.mutex.Unlock()
	if _, present := workQueueRegistry.factories[name]; !present {
		workQueueRegistry.factories[name] = factory
		return true
	}
	return false
}

// NewWorkQueue instantiates a new instance of the requested
// WorkQueue when available, otherwise returns an error.
func NewWorkQueue(
	name config.WorkQueueType, config *config.Config,
) (WorkQueue, error) {

	workQueueRegistry.mutex.Lock()
	defer workQueueRegistry.mutex.Unlock()
	if f, present := workQueueRegistry.factories[name]; present {
		return f(config)
	}
	return nil, errors.Errorf(
		"WorkQueueType '%s' doesn't exist, available: %v", name, registeredTypes(),
	)
}

func registeredTypes() []config.WorkQueueType {
	keys := maps.Keys(workQueueRegistry.factories)
	slices.Sort(keys)
	return keys
}
