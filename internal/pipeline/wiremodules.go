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

package pipeline

import (
	"github.com/noctarius/cluster-ddl-trigger/internal/adapter"
	"github.com/noctarius/cluster-ddl-trigger/internal/eventfiltering"
	"github.com/noctarius/cluster-ddl-trigger/internal/invoking"
	"github.com/noctarius/cluster-ddl-trigger/internal/stats"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting"
	"github.com/noctarius/cluster-ddl-trigger/internal/sysconfig"
	"github.com/noctarius/cluster-ddl-trigger/internal/sysconfig/defaultproviders"
	"github.com/noctarius/cluster-ddl-trigger/internal/trigger"
	"github.com/noctarius/cluster-ddl-trigger/spi/auditevent"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
	"github.com/noctarius/cluster-ddl-trigger/spi/encoding"
	"github.com/noctarius/cluster-ddl-trigger/spi/wiring"
)

var StaticModule = wiring.DefineModule(
	"Static", func(module wiring.Module) {
		module.Provide(encoding.NewJsonDecoderWithConfig)
		module.Provide(auditevent.NewDecoder)
		module.Provide(eventfiltering.NewEventFilterWithConfig)
		module.Provide(trigger.NewFunction)
		module.Provide(newPipeline)

		module.Provide(func(statsService *stats.Service) *stats.Reporter {
			return statsService.NewReporter("pipeline")
		})

		module.Provide(func(
			c *config.Config, function *trigger.Function, reporter *stats.Reporter,
		) (*invoking.Invoker, error) {

			return invoking.NewInvokerWithConfig(c, function.Handle, reporter)
		})

		module.Provide(func(
			decoder *auditevent.Decoder, filter eventfiltering.EventFilter,
			invoker *invoking.Invoker, reporter *stats.Reporter,
		) (*adapter.Adapter, error) {

			return adapter.NewAdapter(decoder, filter, invoker, reporter)
		})
	},
)

var DynamicModule = wiring.DefineModule(
	"Dynamic", func(module wiring.Module) {
		module.Provide(defaultproviders.DefaultSourceProvider)
		module.Provide(defaultproviders.DefaultWorkQueueProvider)
		module.Provide(defaultproviders.DefaultStatsServiceProvider)
		module.Provide(func() supporting.Clock {
			return supporting.SystemClock
		})
	},
)

// overridesModule binds the configuration and replaces default
// providers with the ones set on the system configuration
func overridesModule(
	sc *sysconfig.SystemConfig,
) wiring.Module {

	return wiring.DefineModule(
		"Overrides", func(module wiring.Module) {
			module.Provide(func() *config.Config {
				return sc.Config
			})
			module.MayProvide(sc.SourceProvider)
			module.MayProvide(sc.WorkQueueProvider)
			module.MayProvide(sc.StatsServiceProvider)
			if sc.Clock != nil {
				module.Provide(func() supporting.Clock {
					return sc.Clock
				})
			}
		},
	)
}
