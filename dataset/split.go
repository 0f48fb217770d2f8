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

	"github.com/samber/lo"
)

// TestPair is a held-out (user, item) interaction.
type TestPair struct {
	UserIndex int32
	ItemIndex int32
}

// LeaveLastOut holds out the latest interaction of every user. Interactions of a user are
// stable sorted by timestamp, so ties keep their input order and the last one among equal
// timestamps is held out. Test pairs are ordered by user index.
func LeaveLastOut(records []Interaction) (train []Interaction, test []TestPair) {
	groups := lo.GroupBy(records, func(r Interaction) int32 { return r.UserIndex })
	users := lo.Keys(groups)
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	train = make([]Interaction, 0, len(records)-len(users))
	test = make([]TestPair, 0, len(users))
	for _, user := range users {
		history := groups[user]
		sort.SliceStable(history, func(i, j int) bool {
			return history[i].Timestamp < history[j].Timestamp
		})
		last := history[len(history)-1]
		train = append(train, history[:len(history)-1]...)
		test = append(test, TestPair{UserIndex: user, ItemIndex: last.ItemIndex})
	}
	return
}
