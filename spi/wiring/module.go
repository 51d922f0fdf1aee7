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

package wiring

import (
	"reflect"

	"github.com/go-errors/errors"
	"github.com/samber/do"
	"github.com/samber/lo"
)

var errorReflectiveType = reflect.TypeOf((*error)(nil)).Elem()

// Module is a named set of constructors. Each constructor is bound
// to the type it returns, a later module binding the same type
// replaces the earlier binding.
type Module interface {
	Name() string
	// MayProvide ignores a nil constructor
	MayProvide(constructor any)
	Provide(constructor any)
	register(injector *do.Injector)
}

func DefineModule(
	name string, definer func(module Module),
) Module {

	module := &module{
		name: name,
	}
	definer(module)
	return module
}

type module struct {
	name     string
	bindings []*binding
}

func (m *module) Name() string {
	return m.name
}

func (m *module) register(
	injector *do.Injector,
) {

	for _, binding := range m.bindings {
		if lo.Contains(injector.ListProvidedServices(), binding.output) {
			do.OverrideNamed(injector, binding.output, binding.provider)
		} else {
			do.ProvideNamed(injector, binding.output, binding.provider)
		}
	}
}

func (m *module) MayProvide(
	constructor any,
) {

	if constructor == nil {
		return
	}
	if v := reflect.ValueOf(constructor); v.Kind() == reflect.Func && v.IsNil() {
		return
	}
	m.Provide(constructor)
}

// Provide panics if constructor isn't a function returning a
// value, optionally followed by an error
func (m *module) Provide(
	constructor any,
) {

	t := reflect.TypeOf(constructor)
	if t == nil || t.Kind() != reflect.Func {
		panic(errors.Errorf("Module %s: %v is not a function", m.name, t))
	}

	switch t.NumOut() {
	case 1:
	case 2:
		if !t.Out(1).ConvertibleTo(errorReflectiveType) {
			panic(errors.Errorf(
				"Module %s: %s has two return values, but the second one isn't an error", m.name, t.String(),
			))
		}
	default:
		panic(errors.Errorf(
			"Module %s: %s needs 1 or 2 return values, but has %d", m.name, t.String(), t.NumOut(),
		))
	}

	inputs := make([]reflect.Type, 0, t.NumIn())
	for i := 0; i < t.NumIn(); i++ {
		inputs = append(inputs, t.In(i))
	}

	b := &binding{
		output: t.Out(0).String(),
	}

	v := reflect.ValueOf(constructor)
	b.provider = func(injector *do.Injector) (any, error) {
		params := make([]reflect.Value, 0, len(inputs))
		for _, input := range inputs {
			param, err := do.InvokeNamed[any](injector, input.String())
			if err != nil {
				return nil, err
			}
			params = append(params, reflect.ValueOf(param))
		}

		results := v.Call(params)
		if len(results) == 2 && !results[1].IsNil() {
			err := results[1].Convert(errorReflectiveType).Interface().(error)
			return nil, errors.WrapPrefix(err, "failed to construct "+b.output, 0)
		}
		return results[0].Interface(), nil
	}

	m.bindings = append(m.bindings, b)
}

type binding struct {
	output   string
	provider do.Provider[any]
}
