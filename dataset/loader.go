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
	"bufio"
	"io"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/gorse-io/recsys/base"
	"github.com/gorse-io/recsys/common/util"
	"github.com/juju/errors"
	"golang.org/x/text/encoding/charmap"
)

// RawInteraction is an event expressed with external identifiers.
type RawInteraction struct {
	UserID    int64
	ItemID    int64
	Rating    float32
	Timestamp int64
}

// LoadInteractions reads "user<sep>item<sep>rating[<sep>timestamp]" records. Timestamps are
// unix seconds or any layout understood by dateparse. A malformed row aborts loading.
func LoadInteractions(r io.Reader, sep string) ([]RawInteraction, error) {
	var records []RawInteraction
	sc := bufio.NewScanner(r)
	err := base.ReadLines(sc, sep, func(lineNo int, fields []string) error {
		if len(fields) < 3 {
			return errors.NotValidf("line %d: expect at least 3 fields but got %d", lineNo, len(fields))
		}
		var (
			record RawInteraction
			err    error
		)
		if record.UserID, err = util.ParseInt[int64](fields[0]); err != nil {
			return errors.NotValidf("line %d: user id %q", lineNo, fields[0])
		}
		if record.ItemID, err = util.ParseInt[int64](fields[1]); err != nil {
			return errors.NotValidf("line %d: item id %q", lineNo, fields[1])
		}
		if record.Rating, err = util.ParseFloat[float32](fields[2]); err != nil {
			return errors.NotValidf("line %d: rating %q", lineNo, fields[2])
		}
		if len(fields) > 3 {
			if record.Timestamp, err = parseTimestamp(fields[3]); err != nil {
				return errors.NotValidf("line %d: timestamp %q", lineNo, fields[3])
			}
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return records, nil
}

func parseTimestamp(s string) (int64, error) {
	if ts, err := util.ParseInt[int64](s); err == nil {
		return ts, nil
	}
	t, err := dateparse.ParseAny(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

// LoadItemTitles reads "item|title|..." records encoded in latin-1.
func LoadItemTitles(r io.Reader) (map[int64]string, error) {
	titles := make(map[int64]string)
	sc := bufio.NewScanner(charmap.ISO8859_1.NewDecoder().Reader(r))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.SplitN(line, "|", 3)
		if len(fields) < 2 {
			return nil, errors.NotValidf("line %d: expect item id and title", lineNo)
		}
		id, err := util.ParseInt[int64](fields[0])
		if err != nil {
			return nil, errors.NotValidf("line %d: item id %q", lineNo, fields[0])
		}
		titles[id] = fields[1]
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	return titles, nil
}
