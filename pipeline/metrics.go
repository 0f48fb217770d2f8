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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelStep   = "step"
	LabelMetric = "metric"

	StepLoad     = "load"
	StepPrepare  = "prepare"
	StepFit      = "fit"
	StepEvaluate = "evaluate"
	StepSave     = "save"
)

var (
	StepSecondsVec = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "recsys",
		Subsystem: "pipeline",
		Name:      "step_seconds",
	}, []string{LabelStep})
	TotalSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "recsys",
		Subsystem: "pipeline",
		Name:      "total_seconds",
	})
	ScoreVec = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "recsys",
		Subsystem: "pipeline",
		Name:      "score",
	}, []string{LabelMetric})
)

// timer records the duration of one pipeline step.
func timer(step string) func() {
	start := time.Now()
	return func() {
		StepSecondsVec.WithLabelValues(step).Set(time.Since(start).Seconds())
	}
}
