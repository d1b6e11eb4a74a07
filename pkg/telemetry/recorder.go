// Copyright 2025 CardinalHQ, Inc
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry publishes accumulator statistics and reduction
// timings as OpenTelemetry metrics.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/accumux/pkg/reduce"
)

// Recorder reports MapReduce partitions and merges.
type Recorder struct {
	observations  metric.Int64Counter
	partitions    metric.Int64Counter
	partitionTime metric.Float64Histogram
	mergeTime     metric.Float64Histogram
	addOptions    []metric.AddOption
	recordOptions []metric.RecordOption
}

var _ reduce.Recorder = (*Recorder)(nil)

func NewRecorder(meter metric.Meter, attrs ...attribute.KeyValue) (*Recorder, error) {
	observations, err := meter.Int64Counter("accumux.observations",
		metric.WithDescription("Observations folded into partition accumulators"),
		metric.WithUnit("{observation}"))
	if err != nil {
		return nil, err
	}
	partitions, err := meter.Int64Counter("accumux.partitions",
		metric.WithDescription("Partitions reduced"),
		metric.WithUnit("{partition}"))
	if err != nil {
		return nil, err
	}
	partitionTime, err := meter.Float64Histogram("accumux.partition.duration",
		metric.WithDescription("Time spent reducing one partition"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	mergeTime, err := meter.Float64Histogram("accumux.merge.duration",
		metric.WithDescription("Time spent merging partition results"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	set := metric.WithAttributes(attrs...)
	return &Recorder{
		observations:  observations,
		partitions:    partitions,
		partitionTime: partitionTime,
		mergeTime:     mergeTime,
		addOptions:    []metric.AddOption{set},
		recordOptions: []metric.RecordOption{set},
	}, nil
}

func (r *Recorder) RecordPartition(ctx context.Context, observations int, elapsed time.Duration) {
	r.observations.Add(ctx, int64(observations), r.addOptions...)
	r.partitions.Add(ctx, 1, r.addOptions...)
	r.partitionTime.Record(ctx, elapsed.Seconds(), r.recordOptions...)
}

func (r *Recorder) RecordMerge(ctx context.Context, parts int, elapsed time.Duration) {
	r.mergeTime.Record(ctx, elapsed.Seconds(),
		append(r.recordOptions, metric.WithAttributes(attribute.Int("parts", parts)))...)
}
