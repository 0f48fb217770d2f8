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

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorse-io/recsys/base/log"
	"github.com/gorse-io/recsys/dataset"
	"github.com/gorse-io/recsys/model/cf"
	"github.com/gorse-io/recsys/storage/blob"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	UserMapFile    = "user_map.json"
	ItemMapFile    = "item_map.json"
	ItemTitlesFile = "item_titles.json"
	ModelFile      = "als_model.bin"
	MetricsFile    = "metrics.json"
	ManifestFile   = "manifest.json"
)

// Manifest describes a bundle.
type Manifest struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Dataset   string    `json:"dataset"`
	Weight    string    `json:"weight"`
	TopK      int       `json:"top_k"`
	NumUsers  int       `json:"n_users"`
	NumItems  int       `json:"n_items"`
}

// Bundle is everything inference needs: identifier maps, item titles, the model and its offline metrics.
type Bundle struct {
	Manifest   Manifest
	UserMap    *dataset.IDMap
	ItemMap    *dataset.IDMap
	ItemTitles map[int32]string
	Model      *cf.ALS
	Metrics    map[string]float32
}

// NewBundle packs a trained model with the dataset it was trained on.
func NewBundle(name string, weight dataset.WeightPolicy, prepared *dataset.Prepared, model *cf.ALS, score cf.Score, topK int) *Bundle {
	return &Bundle{
		Manifest: Manifest{
			ID:        uuid.NewString(),
			CreatedAt: time.Now().UTC(),
			Dataset:   name,
			Weight:    string(weight),
			TopK:      topK,
			NumUsers:  prepared.UserMap.Count(),
			NumItems:  prepared.ItemMap.Count(),
		},
		UserMap:    prepared.UserMap,
		ItemMap:    prepared.ItemMap,
		ItemTitles: prepared.ItemTitles,
		Model:      model,
		Metrics: map[string]float32{
			fmt.Sprintf("recall@%d", topK): score.Recall,
			fmt.Sprintf("ndcg@%d", topK):   score.NDCG,
		},
	}
}

// Validate checks that identifier maps agree with factor matrices.
func (b *Bundle) Validate() error {
	if b.UserMap.Count() != b.Model.CountUsers() {
		return errors.NotValidf("user map of %d users for %d user factors", b.UserMap.Count(), b.Model.CountUsers())
	}
	if b.ItemMap.Count() != b.Model.CountItems() {
		return errors.NotValidf("item map of %d items for %d item factors", b.ItemMap.Count(), b.Model.CountItems())
	}
	for index := range b.ItemTitles {
		if index < 0 || int(index) >= b.ItemMap.Count() {
			return errors.NotValidf("title of item index %d", index)
		}
	}
	return nil
}

// Title of an item, or item_<index> if the item has no metadata.
func (b *Bundle) Title(itemIndex int32) string {
	if title, ok := b.ItemTitles[itemIndex]; ok {
		return title
	}
	return fmt.Sprintf("item_%d", itemIndex)
}

type Recommendation struct {
	ItemID int64   `json:"item_id"`
	Title  string  `json:"title"`
	Score  float32 `json:"score"`
}

type Feedback struct {
	ItemID int64   `json:"item_id"`
	Rating float32 `json:"rating"`
}

// RecommendUser returns top n items for a known user. Unknown users are reported as base.ErrUnknownIdentifier.
func (b *Bundle) RecommendUser(userID int64, n int) ([]Recommendation, error) {
	userIndex, err := b.UserMap.Index(userID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	items, scores, err := b.Model.Recommend(userIndex, n, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return b.recommendations(items, scores), nil
}

// RecommendFeedback folds in feedback of an unseen user and returns top n items the user has not interacted with.
// Feedback on unknown items is ignored.
func (b *Bundle) RecommendFeedback(feedback []Feedback, n int) ([]Recommendation, error) {
	policy, err := dataset.ParseWeightPolicy(b.Manifest.Weight)
	if err != nil {
		return nil, errors.Trace(err)
	}
	row := make([]dataset.Entry, 0, len(feedback))
	for _, f := range feedback {
		itemIndex, err := b.ItemMap.Index(f.ItemID)
		if err != nil {
			log.Logger().Debug("ignore feedback on unknown item", zap.Int64("item_id", f.ItemID))
			continue
		}
		row = append(row, dataset.Entry{Index: itemIndex, Value: policy.Weight(f.Rating)})
	}
	items, scores, err := b.Model.RecommendVector(row, n, true)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return b.recommendations(items, scores), nil
}

func (b *Bundle) recommendations(items []int32, scores []float32) []Recommendation {
	return lo.Map(items, func(itemIndex int32, i int) Recommendation {
		itemID, _ := b.ItemMap.ID(itemIndex)
		return Recommendation{ItemID: itemID, Title: b.Title(itemIndex), Score: scores[i]}
	})
}

// SaveBundle writes every file of a bundle. The manifest is written last, so a bundle without manifest is
// incomplete.
func SaveBundle(ctx context.Context, store blob.Store, b *Bundle) error {
	if err := b.Validate(); err != nil {
		return errors.Trace(err)
	}
	titles := make(map[string]string, len(b.ItemTitles))
	for index, title := range b.ItemTitles {
		titles[strconv.Itoa(int(index))] = title
	}
	files := []struct {
		name  string
		write func(w io.Writer) error
	}{
		{UserMapFile, jsonWriter(b.UserMap)},
		{ItemMapFile, jsonWriter(b.ItemMap)},
		{ItemTitlesFile, jsonWriter(titles)},
		{ModelFile, b.Model.Marshal},
		{MetricsFile, jsonWriter(b.Metrics)},
		{ManifestFile, jsonWriter(b.Manifest)},
	}
	// a bundle without manifest is incomplete until the new manifest lands
	if err := store.Remove(ctx, ManifestFile); err != nil && !errors.Is(err, errors.NotFound) {
		return errors.Trace(err)
	}
	for _, file := range files {
		if err := saveFile(ctx, store, file.name, file.write); err != nil {
			return errors.Annotatef(err, "failed to save %s", file.name)
		}
	}
	log.Logger().Info("save bundle", zap.String("id", b.Manifest.ID))
	return nil
}

// LoadBundle reads a bundle and checks its integrity. Missing files are reported as errors.NotFound.
func LoadBundle(ctx context.Context, store blob.Store) (*Bundle, error) {
	b := &Bundle{
		UserMap: &dataset.IDMap{},
		ItemMap: &dataset.IDMap{},
	}
	var titles map[string]string
	files := []struct {
		name string
		read func(r io.Reader) error
	}{
		{ManifestFile, jsonReader(&b.Manifest)},
		{UserMapFile, jsonReader(b.UserMap)},
		{ItemMapFile, jsonReader(b.ItemMap)},
		{ItemTitlesFile, jsonReader(&titles)},
		{ModelFile, func(r io.Reader) (err error) {
			b.Model, err = cf.UnmarshalALS(r)
			return
		}},
		{MetricsFile, jsonReader(&b.Metrics)},
	}
	for _, file := range files {
		if err := loadFile(ctx, store, file.name, file.read); err != nil {
			return nil, errors.Annotatef(err, "failed to load %s", file.name)
		}
	}
	b.ItemTitles = make(map[int32]string, len(titles))
	for key, title := range titles {
		index, err := strconv.ParseInt(key, 10, 32)
		if err != nil {
			return nil, errors.NotValidf("item index %q", key)
		}
		b.ItemTitles[int32(index)] = title
	}
	if err := b.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("load bundle",
		zap.String("id", b.Manifest.ID),
		zap.Time("created_at", b.Manifest.CreatedAt),
		zap.Int("n_users", b.UserMap.Count()),
		zap.Int("n_items", b.ItemMap.Count()))
	return b, nil
}

func jsonWriter(v any) func(w io.Writer) error {
	return func(w io.Writer) error {
		return json.NewEncoder(w).Encode(v)
	}
}

func jsonReader(v any) func(r io.Reader) error {
	return func(r io.Reader) error {
		return json.NewDecoder(r).Decode(v)
	}
}

func saveFile(ctx context.Context, store blob.Store, name string, write func(w io.Writer) error) error {
	w, err := store.Create(ctx, name)
	if err != nil {
		return errors.Trace(err)
	}
	if err = write(w); err != nil {
		if abortErr := w.Abort(); abortErr != nil {
			log.Logger().Warn("failed to abort blob", zap.String("name", name), zap.Error(abortErr))
		}
		return errors.Trace(err)
	}
	return errors.Trace(w.Close())
}

func loadFile(ctx context.Context, store blob.Store, name string, read func(r io.Reader) error) error {
	r, err := store.Open(ctx, name)
	if err != nil {
		return errors.Trace(err)
	}
	defer r.Close()
	if err = read(r); err != nil {
		return errors.NewNotValid(err, "corrupted file")
	}
	return nil
}
