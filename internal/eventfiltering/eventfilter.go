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

package eventfiltering

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/go-errors/errors"
	"github.com/noctarius/cluster-ddl-trigger/spi/auditevent"
	"github.com/noctarius/cluster-ddl-trigger/spi/config"
)

const (
	DefaultSource    = "aws.rds"
	DefaultOperation = "CreateDBCluster"
)

// EventFilter decides whether an audit record describes a
// successful cluster creation. Implementations are stateless.
type EventFilter interface {
	Evaluate(record *auditevent.AuditRecord) (bool, error)
}

type eventFilterFunc func(record *auditevent.AuditRecord) (bool, error)

func (eff eventFilterFunc) Evaluate(
	record *auditevent.AuditRecord,
) (bool, error) {

	return eff(record)
}

// NewEventFilterWithConfig builds the filter from the [filter]
// configuration section, compiling all conditions upfront
func NewEventFilterWithConfig(
	c *config.Config,
) (EventFilter, error) {

	var conditions map[string]config.FilterConditionConfig
	if c != nil {
		conditions = c.Filter.Conditions
	}

	return NewEventFilter(
		config.GetOrDefault(c, config.PropertyFilterSource, DefaultSource),
		config.GetOrDefault(c, config.PropertyFilterOperation, DefaultOperation),
		config.GetOrDefault(c, config.PropertyFilterEventSource, ""),
		config.GetOrDefault(c, config.PropertyFilterEngine, ""),
		conditions,
	)
}

// NewEventFilter creates a filter matching source and operation
// exactly. Empty eventSource or engine match any value.
func NewEventFilter(
	source, operation, eventSource, engine string,
	conditionDefinitions map[string]config.FilterConditionConfig,
) (EventFilter, error) {

	if source == "" || operation == "" {
		return nil, errors.Errorf("event filter needs a source and an operation")
	}

	conditions := make([]*conditionFilter, 0, len(conditionDefinitions))
	for name, def := range conditionDefinitions {
		defaultValue := true
		if def.DefaultValue != nil {
			defaultValue = *def.DefaultValue
		}

		prog, err := expr.Compile(def.Condition, expr.AsBool(), expr.AllowUndefinedVariables())
		if err != nil {
			return nil, errors.Errorf("filter condition '%s' doesn't compile: %v", name, err)
		}

		conditions = append(conditions, &conditionFilter{
			name:         name,
			defaultValue: defaultValue,
			condition:    def.Condition,
			prog:         prog,
		})
	}

	return eventFilterFunc(func(record *auditevent.AuditRecord) (bool, error) {
		if record == nil {
			return false, nil
		}
		if record.Source != source || record.Operation != operation {
			return false, nil
		}
		if eventSource != "" && record.EventSource != eventSource {
			return false, nil
		}
		if engine != "" && record.Engine != engine {
			return false, nil
		}
		// A failed API call never created a cluster
		if record.Failed() {
			return false, nil
		}
		for _, condition := range conditions {
			success, err := condition.evaluate(record)
			if err != nil {
				return false, err
			}
			if !success {
				return false, nil
			}
		}
		return true, nil
	}), nil
}

type conditionFilter struct {
	name         string
	defaultValue bool
	condition    string
	prog         *vm.Program
}

func (f *conditionFilter) evaluate(
	record *auditevent.AuditRecord,
) (bool, error) {

	env := map[string]any{
		"record":            record.Fields,
		"detail":            record.Detail(),
		"source":            record.Source,
		"operation":         record.Operation,
		"clusterIdentifier": record.ClusterIdentifier,
		"engine":            record.Engine,
	}

	// expr.Run allocates a VM per call, the filter is shared
	result, err := expr.Run(f.prog, env)
	if err != nil {
		return false, errors.Errorf("filter condition '%s' failed: %v", f.name, err)
	}

	r, ok := result.(bool)
	if !ok {
		return false, errors.Errorf("result of filter «%s» isn't a boolean", f.condition)
	}

	if r {
		return f.defaultValue, nil
	}
	return !f.defaultValue, nil
}
