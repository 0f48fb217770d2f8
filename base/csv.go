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

	"github.com/juju/errors"
)

// ErrStopReading stops ReadLines without an error.
var ErrStopReading = errors.New("stop reading")

// ReadLines parses fields of each line for a delimited file. Quoted fields may contain
// separators and line breaks. Blank lines are skipped. The handler receives the 1-based
// line number where the record starts; returning ErrStopReading ends reading early.
func ReadLines(sc *bufio.Scanner, sep string, handler func(int, []string) error) error {
	lineNo := 0                  // line number of current position
	startNo := 0                 // line number where current record starts
	fields := make([]string, 0)  // fields for current line
	builder := strings.Builder{} // string builder for current field
	quoted := false              // whether current position in quote
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if quoted {
			builder.WriteString("\r\n")
		} else {
			if strings.TrimSpace(line) == "" {
				continue
			}
			startNo = lineNo
		}
		for i := 0; i < len(line); {
			if !quoted && strings.HasPrefix(line[i:], sep) {
				// end of field
				fields = append(fields, builder.String())
				builder.Reset()
				i += len(sep)
				continue
			}
			if line[i] == '"' {
				if !quoted {
					quoted = true
				} else if i+1 < len(line) && line[i+1] == '"' {
					builder.WriteByte('"')
					i++
				} else {
					quoted = false
				}
			} else {
				builder.WriteByte(line[i])
			}
			i++
		}
		if !quoted {
			fields = append(fields, builder.String())
			builder.Reset()
			if err := handler(startNo, fields); err != nil {
				if errors.Is(err, ErrStopReading) {
					return nil
				}
				return err
			}
			fields = []string{}
		}
	}
	if quoted {
		return errors.NotValidf("unterminated quote at line %d", startNo)
	}
	return errors.Trace(sc.Err())
}
