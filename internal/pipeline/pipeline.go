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
	"context"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/noctarius/cluster-ddl-trigger/internal/adapter"
	"github.com/noctarius/cluster-ddl-trigger/internal/stats"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting/logging"
	"github.com/noctarius/cluster-ddl-trigger/internal/sysconfig"
	"github.com/noctarius/cluster-ddl-trigger/internal/waiting"
	"github.com/noctarius/cluster-ddl-trigger/spi/eventsource"
	"github.com/noctarius/cluster-ddl-trigger/spi/wiring"
	"github.com/noctarius/cluster-ddl-trigger/spi/workqueue"
)

const shutdownTimeout = time.Second * 30

// Pipeline connects the configured event source through the adapter
// and trigger function to the work queue
type Pipeline struct {
	source          eventsource.Source
	workQueue       workqueue.WorkQueue
	adapter         *adapter.Adapter
	statsService    *stats.Service
	shutdownAwaiter *waiting.ShutdownAwaiter
	logger          *logging.Logger

	mutex  sync.Mutex
	cancel context.CancelFunc
	runErr error
}

func NewPipeline(
	sc *sysconfig.SystemConfig,
) (*Pipeline, error) {

	container, err := wiring.NewContainer(StaticModule, DynamicModule, overridesModule(sc))
	if err != nil {
		return nil, err
	}

	var pipeline *Pipeline
	if err := container.Service(&pipeline); err != nil {
		return nil, err
	}
	return pipeline, nil
}

// NewWorkQueue creates only the configured work queue, for
// operator commands which don't run the pipeline
func NewWorkQueue(
	sc *sysconfig.SystemConfig,
) (workqueue.WorkQueue, error) {

	container, err := wiring.NewContainer(DynamicModule, overridesModule(sc))
	if err != nil {
		return nil, err
	}

	var workQueue workqueue.WorkQueue
	if err := container.Service(&workQueue); err != nil {
		return nil, err
	}
	return workQueue, nil
}

func newPipeline(
	source eventsource.Source, workQueue workqueue.WorkQueue,
	adapter *adapter.Adapter, statsService *stats.Service,
) (*Pipeline, error) {

	logger, err := logging.NewLogger("Pipeline")
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		source:          source,
		workQueue:       workQueue,
		adapter:         adapter,
		statsService:    statsService,
		shutdownAwaiter: waiting.NewShutdownAwaiter(),
		logger:          logger,
	}, nil
}

func (p *Pipeline) Start() error {
	if err := p.statsService.Start(); err != nil {
		return err
	}

	if err := p.workQueue.Start(); err != nil {
		if stopErr := p.statsService.Stop(); stopErr != nil {
			p.logger.Warnf("Failed to stop stats service: %v", stopErr)
		}
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.mutex.Lock()
	p.cancel = cancel
	p.mutex.Unlock()

	go func() {
		defer p.shutdownAwaiter.SignalDone()

		err := p.source.Run(ctx, p.adapter.Accept)
		if err != nil {
			p.logger.Errorf("Event source failed: %v", err)
			p.mutex.Lock()
			p.runErr = err
			p.mutex.Unlock()
		}

		// a source returning on its own, e.g. after a file replay,
		// ends the pipeline
		p.shutdownAwaiter.SignalShutdown()
	}()

	p.logger.Infoln("Pipeline started")
	return nil
}

// Finished is signalled once the event source returned
func (p *Pipeline) Finished() <-chan bool {
	return p.shutdownAwaiter.AwaitShutdownChan()
}

// Stop cancels the source, waits for in-flight records and stops
// the work queue. It returns the source's failure, if any.
func (p *Pipeline) Stop() error {
	p.mutex.Lock()
	cancel := p.cancel
	p.mutex.Unlock()

	if cancel != nil {
		cancel()
		if err := p.shutdownAwaiter.AwaitDoneWithTimeout(shutdownTimeout); err != nil {
			p.logger.Warnf("Event source didn't stop within %s", shutdownTimeout)
		}
	}

	var stopErr error
	if err := p.source.Stop(); err != nil {
		stopErr = errors.Errorf("failed to stop event source: %v", err)
	}
	if err := p.workQueue.Stop(); err != nil && stopErr == nil {
		stopErr = errors.Errorf("failed to stop work queue: %v", err)
	}
	if err := p.statsService.Stop(); err != nil {
		p.logger.Warnf("Failed to stop stats service: %v", err)
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.runErr != nil {
		return p.runErr
	}
	return stopErr
}
