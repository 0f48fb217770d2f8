// Copyright 2026 gorse Project Authors
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

package cf

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gorse-io/recsys/base"
	"github.com/juju/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Params are hyper-parameters of implicit ALS.
//
//	Factors        - The number of latent factors. Default is 64.
//	Regularization - The L2 penalty on every latent factor. Default is 0.01.
//	Iterations     - The number of alternating passes. Default is 20.
//	Alpha          - The confidence scale applied to weights. Default is 40.
//	InitStdDev     - The standard deviation of initial latent factors. Default is 0.01.
//	RandomState    - The seed of initialization.
type Params struct {
	Factors        int     `mapstructure:"factors" validate:"gt=0"`
	Regularization float32 `mapstructure:"regularization" validate:"gte=0"`
	Iterations     int     `mapstructure:"iterations" validate:"gt=0"`
	Alpha          float32 `mapstructure:"alpha" validate:"gt=0"`
	InitStdDev     float32 `mapstructure:"init_std_dev" validate:"gte=0"`
	RandomState    int64   `mapstructure:"random_state"`
}

func NewParams() Params {
	return Params{
		Factors:        64,
		Regularization: 0.01,
		Iterations:     20,
		Alpha:          40,
		InitStdDev:     0.01,
	}
}

// Validate rejects hyper-parameters before any numeric work starts.
func (p Params) Validate() error {
	err := getValidator().Struct(p)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			messages = append(messages, fmt.Sprintf("%s must be %s %s but got %v", e.Field(), describeTag(e.Tag()), e.Param(), e.Value()))
		}
		return errors.Annotate(base.ErrInvalidParams, strings.Join(messages, "; "))
	}
	return errors.Annotate(base.ErrInvalidParams, err.Error())
}

func describeTag(tag string) string {
	switch tag {
	case "gt":
		return "greater than"
	case "gte":
		return "greater than or equal to"
	default:
		return tag
	}
}
