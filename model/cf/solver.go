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
	"github.com/gorse-io/recsys/base"
	"github.com/gorse-io/recsys/common/floats"
	"github.com/gorse-io/recsys/dataset"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/mat"
)

// Gram returns Y^T Y of a (n, k) factor matrix.
func Gram(factors [][]float32, k int) *mat.SymDense {
	gram := mat.NewSymDense(k, nil)
	if len(factors) == 0 {
		return gram
	}
	data := make([]float64, len(factors)*k)
	for i, row := range factors {
		floats.ToFloat64(row, data[i*k:(i+1)*k])
	}
	y := mat.NewDense(len(factors), k, data)
	gram.SymOuterK(1, y.T())
	return gram
}

// SolveRow solves one row of implicit ALS against fixed factors Y:
//
//	(Y^T Y + Y^T (C_u - I) Y + reg I) x_u = Y^T C_u p_u
//
// gram is Y^T Y, row holds the confidences c_ui of observed cells and p_ui = 1 for them.
// Unobserved cells have confidence 1 and preference 0. A row without observations
// solves to the zero vector. The result is written into dst.
func SolveRow(gram *mat.SymDense, factors [][]float32, row []dataset.Entry, reg float32, dst []float32) error {
	k := gram.SymmetricDim()
	if len(dst) != k {
		return errors.NotValidf("destination of length %d for %d factors", len(dst), k)
	}
	if len(row) == 0 {
		floats.Zero(dst)
		return nil
	}
	a := mat.NewSymDense(k, nil)
	a.CopySym(gram)
	b := make([]float64, k)
	y := make([]float64, k)
	yVec := mat.NewVecDense(k, y)
	for _, e := range row {
		floats.ToFloat64(factors[e.Index], y)
		c := float64(e.Value)
		// A += (c - 1) y y^T
		a.SymRankOne(a, c-1, yVec)
		// b += c y
		for j := range b {
			b[j] += c * y[j]
		}
	}
	for j := 0; j < k; j++ {
		a.SetSym(j, j, a.At(j, j)+float64(reg))
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return errors.Annotatef(base.ErrSingularSystem, "%d observations with regularization %v", len(row), reg)
	}
	x := mat.NewVecDense(k, nil)
	if err := chol.SolveVecTo(x, mat.NewVecDense(k, b)); err != nil {
		return errors.Annotate(base.ErrSingularSystem, err.Error())
	}
	floats.ToFloat32(x.RawVector().Data, dst)
	return nil
}
