// Copyright 2021 gorse Project Authors
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
	"bufio"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func splitLines(t *testing.T, text, sep string) ([][]string, []int) {
	sc := bufio.NewScanner(strings.NewReader(text))
	lines := make([][]string, 0)
	numbers := make([]int, 0)
	err := ReadLines(sc, sep, func(i int, fields []string) error {
		lines = append(lines, fields)
		numbers = append(numbers, i)
		if fields[0] == "STOP" {
			return ErrStopReading
		}
		return nil
	})
	assert.NoError(t, err)
	return lines, numbers
}

func TestReadLines(t *testing.T) {
	lines, _ := splitLines(t, "1,2,3\r\n4,5,6\r\n", ",")
	assert.Equal(t, [][]string{{"1", "2", "3"}, {"4", "5", "6"}}, lines)
	lines, _ = splitLines(t, "\"1,2\",\"3,4\",\"5,6\"\r\n\"2,3\",\"4,6\",\"6,9\"", ",")
	assert.Equal(t, [][]string{{"1,2", "3,4", "5,6"}, {"2,3", "4,6", "6,9"}}, lines)
	lines, _ = splitLines(t, "\"\"\"1,2\"\",\"\"3,4\"\",\"\"5,6\"\"\"\r\n\"\"\"2,3\"\",\"\"4,6\"\",\"\"6,9\"\"\"", ",")
	assert.Equal(t, [][]string{{"\"1,2\",\"3,4\",\"5,6\""}, {"\"2,3\",\"4,6\",\"6,9\""}}, lines)
	lines, numbers := splitLines(t, "\"1\r\n2\",\"3\r\n4\",\"5\r\n6\"\r\n\"2\r\n3\",\"4\r\n6\",\"6\r\n9\"", ",")
	assert.Equal(t, [][]string{{"1\r\n2", "3\r\n4", "5\r\n6"}, {"2\r\n3", "4\r\n6", "6\r\n9"}}, lines)
	assert.Equal(t, []int{1, 5}, numbers)
	lines, _ = splitLines(t, "1,2,3\r\n4,5,6\r\nSTOP\r\n7,8,9", ",")
	assert.Equal(t, [][]string{{"1", "2", "3"}, {"4", "5", "6"}, {"STOP"}}, lines)
}

func TestReadLines_Tab(t *testing.T) {
	lines, numbers := splitLines(t, "196\t242\t3\t881250949\n\n186\t302\t3\t891717742\n", "\t")
	assert.Equal(t, [][]string{{"196", "242", "3", "881250949"}, {"186", "302", "3", "891717742"}}, lines)
	assert.Equal(t, []int{1, 3}, numbers)
}

func TestReadLines_MultiCharSeparator(t *testing.T) {
	lines, _ := splitLines(t, "1::1193::5::978300760\n", "::")
	assert.Equal(t, [][]string{{"1", "1193", "5", "978300760"}}, lines)
}

func TestReadLines_Error(t *testing.T) {
	sc := bufio.NewScanner(strings.NewReader("a,b\nc,d\n"))
	err := ReadLines(sc, ",", func(i int, fields []string) error {
		if i == 2 {
			return errors.NotValidf("line %d", i)
		}
		return nil
	})
	assert.ErrorIs(t, err, errors.NotValid)

	sc = bufio.NewScanner(strings.NewReader("\"a,b\n"))
	err = ReadLines(sc, ",", func(int, []string) error { return nil })
	assert.ErrorIs(t, err, errors.NotValid)
}
