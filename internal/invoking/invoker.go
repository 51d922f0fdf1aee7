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

package invoking

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-errors/errors"
	"github.com/noctarius/cluster-ddl-trigger/internal/stats"
	"github.com/noctarius/cluster-ddl-trigger/internal/supporting/logging"
	"github.com/noctarius/cluster-ddl-trigger/internal/trigger"
	"github.com/noctarius/cluster-ddl-trigger/spi/auditevent"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
)

const (
	DefaultTimeout         = time.Minute
	DefaultMaxRetries      = uint64(8)
	DefaultInitialInterval = time.Millisecond * 500
	DefaultMaxInterval     = time.Second * 10
)

// HandlerFunc is a single trigger invocation
type HandlerFunc func(ctx context.Context, event auditevent.ClusterCreationEvent) error

// Invoker is the host of the trigger function. It bounds every
// invocation by a timeout and retries enqueue failures with an
// exponential backoff. A missing identifier is never retried.
type Invoker struct {
	handler         HandlerFunc
	timeout         time.Duration
	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
	reporter        *stats.Reporter
	logger          *logging.Logger
}

func NewInvokerWithConfig(
	c *config.Config, handler HandlerFunc, reporter *stats.Reporter,
) (*Invoker, error) {

	return NewInvoker(
		handler,
		config.GetOrDefault(c, config.PropertyInvokerTimeout, DefaultTimeout),
		config.GetOrDefault(c, config.PropertyInvokerRetriesMax, DefaultMaxRetries),
		config.GetOrDefault(c, config.PropertyInvokerRetriesInitialInterval, DefaultInitialInterval),
		config.GetOrDefault(c, config.PropertyInvokerRetriesMaxInterval, DefaultMaxInterval),
		reporter,
	)
}

func NewInvoker(
	handler HandlerFunc, timeout time.Duration, maxRetries uint64,
	initialInterval, maxInterval time.Duration, reporter *stats.Reporter,
) (*Invoker, error) {

	if handler == nil {
		return nil, errors.Errorf("invoker needs a handler")
	}

	logger, err := logging.NewLogger("Invoker")
	if err != nil {
		return nil, err
	}

	if initialInterval <= 0 {
		initialInterval = DefaultInitialInterval
	}
	if maxInterval < initialInterval {
		maxInterval = initialInterval
	}

	return &Invoker{
		handler:         handler,
		timeout:         timeout,
		maxRetries:      maxRetries,
		initialInterval: initialInterval,
		maxInterval:     maxInterval,
		reporter:        reporter,
		logger:          logger,
	}, nil
}

// Invoke returns the last invocation error once retries are
// exhausted or ctx is done, so the source can redeliver
func (i *Invoker) Invoke(
	ctx context.Context, event auditevent.ClusterCreationEvent,
) error {

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	start := time.Now()
	var lastErr error
	operation := func() error {
		lastErr = i.handler(ctx, event)
		if lastErr != nil && errors.Is(lastErr, trigger.ErrMissingIdentifier) {
			return backoff.Permanent(lastErr)
		}
		return lastErr
	}

	notify := func(err error, next time.Duration) {
		i.reporter.Incr("invocations.retried")
		i.logger.Warnf("Invocation for event %s failed, retrying in %s: %v", event.EventID, next, err)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(i.newBackOff(), ctx), notify)
	i.reporter.Observe("invocations.duration", time.Since(start))
	if err == nil {
		return nil
	}

	i.reporter.Incr("invocations.exhausted")
	if lastErr != nil {
		return lastErr
	}
	return err
}

// newBackOff creates a policy per invocation since backoff
// policies keep state and invocations run concurrently
func (i *Invoker) newBackOff() backoff.BackOff {
	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = i.initialInterval
	exponential.MaxInterval = i.maxInterval
	exponential.MaxElapsedTime = 0
	return backoff.WithMaxRetries(exponential, i.maxRetries)
}
