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
	"testing"

	"github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Registered_Types_Are_Sorted(
	t *testing.T,
) {

	factory := func(_ *config.Config) (Source, error) {
		return nil, nil
	}

	assert.True(t, RegisterSource(config.SourceType("zz-registry-test"), factory))
	assert.True(t, RegisterSource(config.SourceType("aa-registry-test"), factory))
	assert.False(t, RegisterSource(config.SourceType("aa-registry-test"), factory))

	types := registeredTypes()
	assert.True(t, slices.IsSorted(types))
	assert.Contains(t, types, config.SourceType("zz-registry-test"))
	assert.Contains(t, types, config.SourceType("aa-registry-test"))
}

func Test_Unknown_Type_Lists_Available_Types(
	t *testing.T,
) {

	RegisterSource(config.SourceType("known-registry-test"), func(_ *config.Config) (Source, error) {
		return nil, nil
	})

	_, err := NewSource(config.SourceType("unknown-registry-test"), &config.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "known-registry-test")
}
