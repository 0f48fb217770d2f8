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

package base

import (
	"github.com/juju/errors"
)

var (
	// ErrUnknownIdentifier is returned when an external id (or dense index) was never encoded.
	ErrUnknownIdentifier = errors.NotFoundf("identifier")
	// ErrInvalidWeight is returned when a confidence weight is negative, NaN or infinite.
	ErrInvalidWeight = errors.NotValidf("confidence weight")
	// ErrEmptyDataset is returned when no interaction survives loading and filtering.
	ErrEmptyDataset = errors.NotFoundf("interactions")
	// ErrSingularSystem is returned when a least-squares system is not positive definite.
	ErrSingularSystem = errors.NotValidf("least-squares system")
	// ErrInvalidParams is returned when hyper-parameters fail validation.
	ErrInvalidParams = errors.NotValidf("hyper-parameters")
)
