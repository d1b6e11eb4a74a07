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

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/cardinalhq/accumux/pkg/accumulator"
	"github.com/cardinalhq/accumux/pkg/compose"
	"github.com/cardinalhq/accumux/pkg/reduce"
)

func newReader(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	ret := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			ret[m.Name] = m
		}
	}
	return ret
}

func attr(t *testing.T, set attribute.Set, key attribute.Key) string {
	t.Helper()
	v, ok := set.Value(key)
	if !ok {
		return ""
	}
	return v.AsString()
}

func TestGauges(t *testing.T) {
	t.Parallel()

	reader, provider := newReader(t)
	g, err := NewGauges[float64](provider.Meter("test"))
	require.NoError(t, err)

	c, err := compose.FromKinds[float64](accumulator.KindMean, accumulator.KindMax, accumulator.KindVariance)
	require.NoError(t, err)
	for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		c.Update(x)
	}
	g.Publish("latency", c)

	empty := accumulator.NewMin[float64]()
	g.Publish("idle", empty)

	metrics := collect(t, reader)
	gauge, ok := metrics["accumux.statistic"].Data.(metricdata.Gauge[float64])
	require.True(t, ok)

	got := map[string]float64{}
	for _, dp := range gauge.DataPoints {
		assert.Equal(t, "latency", attr(t, dp.Attributes, AttrStatistic))
		got[attr(t, dp.Attributes, AttrMember)+"/"+attr(t, dp.Attributes, AttrKind)] = dp.Value
	}
	require.Len(t, got, 3)
	assert.InDelta(t, 5.0, got["mean/mean"], 1e-12)
	assert.Equal(t, 9.0, got["max/max"])
	assert.InDelta(t, 4.0, got["variance/variance"], 1e-12)

	weights, ok := metrics["accumux.weight"].Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	byName := map[string]float64{}
	for _, dp := range weights.DataPoints {
		byName[attr(t, dp.Attributes, AttrStatistic)] = dp.Value
	}
	assert.Equal(t, map[string]float64{"latency": 8, "idle": 0}, byName)

	g.Remove("latency")
	g.Remove("idle")
	metrics = collect(t, reader)
	if m, ok := metrics["accumux.statistic"]; ok {
		assert.Empty(t, m.Data.(metricdata.Gauge[float64]).DataPoints)
	}
	require.NoError(t, g.Close())
}

func TestGauges_SinglePrimitive(t *testing.T) {
	t.Parallel()

	reader, provider := newReader(t)
	g, err := NewGauges[float64](provider.Meter("test"))
	require.NoError(t, err)

	s := accumulator.NewSum[float64]()
	s.Update(1.5)
	s.Update(2.5)
	g.Publish("total", s)

	gauge := collect(t, reader)["accumux.statistic"].Data.(metricdata.Gauge[float64])
	require.Len(t, gauge.DataPoints, 1)
	dp := gauge.DataPoints[0]
	assert.Equal(t, 4.0, dp.Value)
	assert.Equal(t, "sum", attr(t, dp.Attributes, AttrKind))
	assert.Equal(t, "", attr(t, dp.Attributes, AttrMember))
}

func TestRecorder_MapReduce(t *testing.T) {
	t.Parallel()

	reader, provider := newReader(t)
	rec, err := NewRecorder(provider.Meter("test"), attribute.String("job", "unit"))
	require.NoError(t, err)

	values := make([]float64, 1000)
	for i := range values {
		values[i] = float64(i)
	}
	acc, err := reduce.MapReduce(context.Background(), values, nil,
		func() accumulator.Accumulator[float64] { return accumulator.NewMean[float64]() },
		reduce.WithWorkers(4), reduce.WithChunkSize(100), reduce.WithRecorder(rec))
	require.NoError(t, err)
	assert.InDelta(t, 499.5, acc.Value(), 1e-9)

	metrics := collect(t, reader)

	obs := metrics["accumux.observations"].Data.(metricdata.Sum[int64])
	require.Len(t, obs.DataPoints, 1)
	assert.Equal(t, int64(1000), obs.DataPoints[0].Value)
	assert.Equal(t, "unit", attr(t, obs.DataPoints[0].Attributes, "job"))

	parts := metrics["accumux.partitions"].Data.(metricdata.Sum[int64])
	require.Len(t, parts.DataPoints, 1)
	assert.Equal(t, int64(4), parts.DataPoints[0].Value)

	ptime := metrics["accumux.partition.duration"].Data.(metricdata.Histogram[float64])
	require.Len(t, ptime.DataPoints, 1)
	assert.Equal(t, uint64(4), ptime.DataPoints[0].Count)

	mtime := metrics["accumux.merge.duration"].Data.(metricdata.Histogram[float64])
	require.Len(t, mtime.DataPoints, 1)
	assert.Equal(t, uint64(1), mtime.DataPoints[0].Count)
	v, ok := mtime.DataPoints[0].Attributes.Value("parts")
	require.True(t, ok)
	assert.Equal(t, int64(4), v.AsInt64())
}
