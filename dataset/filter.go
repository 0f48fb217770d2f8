// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

import (
	"reflect"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/juju/errors"
)

// Filter keeps interactions matching a boolean expression, e.g. "Rating >= 4".
// The expression can refer to UserID, ItemID, Rating and Timestamp.
type Filter struct {
	program *vm.Program
}

// NewFilter compiles an expression. An empty expression keeps every interaction.
func NewFilter(expression string) (*Filter, error) {
	if expression == "" {
		return &Filter{}, nil
	}
	program, err := expr.Compile(expression, expr.Env(RawInteraction{}))
	if err != nil {
		return nil, errors.Annotatef(err, "compile filter %q", expression)
	}
	if program.Node().Type().Kind() != reflect.Bool {
		return nil, errors.NotValidf("filter %q must return bool", expression)
	}
	return &Filter{program: program}, nil
}

func (f *Filter) Keep(record RawInteraction) (bool, error) {
	if f == nil || f.program == nil {
		return true, nil
	}
	result, err := expr.Run(f.program, record)
	if err != nil {
		return false, errors.Trace(err)
	}
	return result.(bool), nil
}
