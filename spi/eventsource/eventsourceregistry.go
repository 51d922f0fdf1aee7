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
	"slices"
	"sync"

	"github.com/go-errors/errors"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
	"golang.org/x/exp/maps"
)

var sourceRegistry *registry

func init() {
	sourceRegistry = &registry{
		mutex:     sync.Mutex{},
		factories: make(map[config.SourceType]Factory),
	}
}

type registry struct {
	mutex     sync.Mutex
	factories map[config.SourceType]Factory
}

// RegisterSource registers a config.SourceType to a Factory
// implementation which creates the Source when requested
func RegisterSource(
	name config.SourceType, factory Factory,
) bool {

	sourceRegistry.mutex.Lock()
	defer sourceRegistry.mutex.Unlock()
	if _, present := sourceRegistry.factories[name]; !present {
		sourceRegistry.factories[name] = factory
		return true
	}
	return false
}

// NewSource instantiates a new instance of the requested
// Source when available, otherwise returns an error.
func NewSource(
	name config.SourceType, config *config.Config,
) (Source, error) {

	sourceRegistry.mutex.Lock()
	defer sourceRegistry.mutex.Unlock()
	if f, present := sourceRegistry.factories[name]; present {
		return f(config)
	}
	return nil, errors.Errorf(
		"SourceType '%s' doesn't exist, available: %v", name, registeredTypes(),
	)
}

func registeredTypes() []config.SourceType {
	keys := maps.Keys(sourceRegistry.factories)
	slices.Sort(keys)
	return keys
}
