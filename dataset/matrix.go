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
	"sort"

	"github.com/chewxy/math32"
	"github.com/gorse-io/recsys/base"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// Interaction is an event expressed in dense index space.
type Interaction struct {
	UserIndex int32
	ItemIndex int32
	Rating    float32
	Timestamp int64
}

// WeightPolicy transforms a raw rating into a confidence weight.
type WeightPolicy string

const (
	WeightBinary WeightPolicy = "binary"
	WeightLog    WeightPolicy = "log"
	WeightRaw    WeightPolicy = "raw"
)

func ParseWeightPolicy(s string) (WeightPolicy, error) {
	switch p := WeightPolicy(s); p {
	case WeightBinary, WeightLog, WeightRaw:
		return p, nil
	case "":
		return WeightLog, nil
	default:
		return "", errors.NotValidf("weight policy %q", s)
	}
}

// Weight applies the policy to a rating.
func (p WeightPolicy) Weight(rating float32) float32 {
	switch p {
	case WeightBinary:
		return 1
	case WeightRaw:
		return rating
	default:
		return math32.Log1p(rating)
	}
}

// Entry is a non-zero cell of a sparse row.
type Entry struct {
	Index int32
	Value float32
}

// SparseMatrix is a row-compressed matrix of confidence weights. Each row is sorted
// by column index. Cells that were never observed are absent, which is different
// from a stored zero.
type SparseMatrix struct {
	nRows int
	nCols int
	rows  [][]Entry
}

// BuildMatrix builds a (nUsers, nItems) matrix from interactions. Weights of
// repeated (user, item) cells are summed.
func BuildMatrix(records []Interaction, nUsers, nItems int, policy WeightPolicy) (*SparseMatrix, error) {
	cells := make([]map[int32]float32, nUsers)
	for _, record := range records {
		if record.UserIndex < 0 || int(record.UserIndex) >= nUsers {
			return nil, errors.NotValidf("user index %d out of [0, %d)", record.UserIndex, nUsers)
		}
		if record.ItemIndex < 0 || int(record.ItemIndex) >= nItems {
			return nil, errors.NotValidf("item index %d out of [0, %d)", record.ItemIndex, nItems)
		}
		if cells[record.UserIndex] == nil {
			cells[record.UserIndex] = make(map[int32]float32)
		}
		cells[record.UserIndex][record.ItemIndex] += policy.Weight(record.Rating)
	}
	m := &SparseMatrix{nRows: nUsers, nCols: nItems, rows: make([][]Entry, nUsers)}
	for i, row := range cells {
		m.rows[i] = sortedRow(row)
	}
	return m, nil
}

// NewSparseMatrix creates a matrix from rows of entries. Duplicated columns in a row are summed.
func NewSparseMatrix(nRows, nCols int, rows [][]Entry) (*SparseMatrix, error) {
	if len(rows) > nRows {
		return nil, errors.NotValidf("%d rows for %d-row matrix", len(rows), nRows)
	}
	m := &SparseMatrix{nRows: nRows, nCols: nCols, rows: make([][]Entry, nRows)}
	for i, row := range rows {
		cells := make(map[int32]float32, len(row))
		for _, e := range row {
			if e.Index < 0 || int(e.Index) >= nCols {
				return nil, errors.NotValidf("column index %d out of [0, %d)", e.Index, nCols)
			}
			cells[e.Index] += e.Value
		}
		m.rows[i] = sortedRow(cells)
	}
	return m, nil
}

func sortedRow(cells map[int32]float32) []Entry {
	if len(cells) == 0 {
		return nil
	}
	row := lo.MapToSlice(cells, func(index int32, value float32) Entry {
		return Entry{Index: index, Value: value}
	})
	sort.Slice(row, func(i, j int) bool { return row[i].Index < row[j].Index })
	return row
}

func (m *SparseMatrix) Shape() (int, int) {
	return m.nRows, m.nCols
}

// NNZ returns the number of stored cells, including stored zeros.
func (m *SparseMatrix) NNZ() int {
	return lo.SumBy(m.rows, func(row []Entry) int { return len(row) })
}

// Row returns the i-th row. The returned slice must not be modified.
func (m *SparseMatrix) Row(i int) []Entry {
	return m.rows[i]
}

// Get returns the value of a cell and whether it is stored.
func (m *SparseMatrix) Get(i, j int32) (float32, bool) {
	row := m.rows[i]
	k := sort.Search(len(row), func(k int) bool { return row[k].Index >= j })
	if k < len(row) && row[k].Index == j {
		return row[k].Value, true
	}
	return 0, false
}

// Transpose returns a new (nCols, nRows) matrix.
func (m *SparseMatrix) Transpose() *SparseMatrix {
	t := &SparseMatrix{nRows: m.nCols, nCols: m.nRows, rows: make([][]Entry, m.nCols)}
	for i, row := range m.rows {
		for _, e := range row {
			t.rows[e.Index] = append(t.rows[e.Index], Entry{Index: int32(i), Value: e.Value})
		}
	}
	return t
}

// Scale returns a new matrix with every value multiplied by alpha.
func (m *SparseMatrix) Scale(alpha float32) *SparseMatrix {
	s := &SparseMatrix{nRows: m.nRows, nCols: m.nCols, rows: make([][]Entry, m.nRows)}
	for i, row := range m.rows {
		s.rows[i] = ScaleRow(row, alpha)
	}
	return s
}

// ScaleRow returns a copy of a row with every value multiplied by alpha.
func ScaleRow(row []Entry, alpha float32) []Entry {
	if row == nil {
		return nil
	}
	scaled := make([]Entry, len(row))
	for j, e := range row {
		scaled[j] = Entry{Index: e.Index, Value: e.Value * alpha}
	}
	return scaled
}

// Validate checks that every weight is finite and non-negative.
func (m *SparseMatrix) Validate() error {
	for i, row := range m.rows {
		for _, e := range row {
			if e.Value < 0 || math32.IsNaN(e.Value) || math32.IsInf(e.Value, 0) {
				return errors.Annotatef(base.ErrInvalidWeight, "cell (%d, %d) = %v", i, e.Index, e.Value)
			}
		}
	}
	return nil
}
