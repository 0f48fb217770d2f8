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
	"context"
	"os"
	"path/filepath"

	"github.com/gorse-io/recsys/base/log"
	"github.com/gorse-io/recsys/common/datautil"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

type builtInDataSet struct {
	url      string
	data     string
	sep      string
	metadata string
}

var builtInDataSets = map[string]builtInDataSet{
	// MovieLens: https://grouplens.org/datasets/movielens/
	"ml-100k": {
		url:      "https://files.grouplens.org/datasets/movielens/ml-100k.zip",
		data:     "ml-100k/u.data",
		sep:      "\t",
		metadata: "ml-100k/u.item",
	},
}

// Download fetches and extracts a built-in dataset into dir. It is skipped when the
// dataset has already been extracted.
func Download(ctx context.Context, name, dir string, verbose bool) error {
	dataSet, exist := builtInDataSets[name]
	if !exist {
		return errors.NotFoundf("built-in dataset %s", name)
	}
	if _, err := os.Stat(filepath.Join(dir, dataSet.data)); err == nil {
		log.Logger().Info("dataset already exists", zap.String("name", name), zap.String("dir", dir))
		return nil
	}
	if _, err := datautil.DownloadAndUnzip(ctx, dataSet.url, dir, verbose); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// LoadBuiltIn loads interactions and item titles of an extracted built-in dataset.
func LoadBuiltIn(dir, name string) ([]RawInteraction, map[int64]string, error) {
	dataSet, exist := builtInDataSets[name]
	if !exist {
		return nil, nil, errors.NotFoundf("built-in dataset %s", name)
	}
	f, err := os.Open(filepath.Join(dir, dataSet.data))
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	defer f.Close()
	records, err := LoadInteractions(f, dataSet.sep)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	titles := make(map[int64]string)
	if dataSet.metadata != "" {
		m, err := os.Open(filepath.Join(dir, dataSet.metadata))
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		defer m.Close()
		if titles, err = LoadItemTitles(m); err != nil {
			return nil, nil, errors.Trace(err)
		}
	}
	return records, titles, nil
}
