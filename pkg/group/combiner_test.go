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

package group

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cardinalhq/accumux/pkg/accumulator"
)

var start = time.Unix(5000, 0)

func newMean() accumulator.Accumulator[float64] {
	return accumulator.NewMean[float64]()
}

func TestCombiner_Record(t *testing.T) {
	t.Parallel()

	c, err := NewCombiner(start, time.Minute, newMean, WithLogger(zap.NewNop()))
	require.NoError(t, err)

	tests := []struct {
		key string
		x   float64
		w   float64
	}{
		{"a", 1, 1},
		{"b", 10, 1},
		{"a", 4, 2},
		{"c", 7, 3},
		{"b", 20, 1},
	}
	for i, tt := range tests {
		flushed, err := c.Record(start.Add(time.Duration(i)*time.Second), tt.key, tt.x, tt.w)
		require.NoError(t, err)
		assert.Nil(t, flushed)
	}
	assert.Equal(t, 3, c.Pending())

	flushed, err := c.Record(start.Add(time.Minute), "c", 7, 1)
	require.NoError(t, err)
	require.NotNil(t, flushed)
	assert.Equal(t, []string{"a", "b", "c"}, flushed.Keys())
	assert.Equal(t, 0, c.Pending())

	a, ok := flushed.Get("a")
	require.True(t, ok)
	assert.Equal(t, 3.0, a.Value())
	assert.Equal(t, 3.0, a.Weight())
	b, _ := flushed.Get("b")
	assert.Equal(t, 15.0, b.Value())
	cc, _ := flushed.Get("c")
	assert.Equal(t, 4.0, cc.Weight())
	_, ok = flushed.Get("missing")
	assert.False(t, ok)

	flushed, err = c.Record(start.Add(time.Minute+time.Second), "a", 1, 1)
	require.NoError(t, err)
	assert.Nil(t, flushed, "cutoff moves forward by one interval after a flush")
}

func TestCombiner_InvalidWeight(t *testing.T) {
	t.Parallel()

	c, err := NewCombiner(start, time.Minute, newMean)
	require.NoError(t, err)
	_, err = c.Record(start, "a", 1, 0)
	assert.ErrorIs(t, err, accumulator.ErrInvalidWeight)
	assert.Equal(t, 0, c.Pending())
}

func TestCombiner_Flush(t *testing.T) {
	t.Parallel()

	c, err := NewCombiner(start, time.Hour, newMean)
	require.NoError(t, err)
	_, err = c.Record(start, "x", 2, 1)
	require.NoError(t, err)

	flushed := c.Flush(start)
	assert.Equal(t, 1, flushed.Len())
	recs := flushed.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "x", recs[0].Name)
	assert.Equal(t, accumulator.KindMean, recs[0].Kind)

	assert.Equal(t, 0, c.Flush(start).Len())
}

func TestCombiner_Merge(t *testing.T) {
	t.Parallel()

	a, err := NewCombiner(start, time.Hour, newMean)
	require.NoError(t, err)
	b, err := NewCombiner(start, time.Hour, newMean)
	require.NoError(t, err)

	for _, x := range []float64{2, 4, 4, 4} {
		_, err := a.Record(start, "k", x, 1)
		require.NoError(t, err)
	}
	for _, x := range []float64{5, 5, 7, 9} {
		_, err := b.Record(start, "k", x, 1)
		require.NoError(t, err)
	}
	_, err = b.Record(start, "other", 1, 1)
	require.NoError(t, err)

	require.NoError(t, a.Merge(b.Flush(start)))
	merged := a.Flush(start)
	k, _ := merged.Get("k")
	assert.Equal(t, 8.0, k.Weight())
	assert.InDelta(t, 5.0, k.Value(), 1e-12)
	assert.Equal(t, []string{"k", "other"}, merged.Keys())
}

func TestCombiner_MergeIncompatible(t *testing.T) {
	t.Parallel()

	a, err := NewCombiner(start, time.Hour, newMean)
	require.NoError(t, err)
	_, err = a.Record(start, "k", 1, 1)
	require.NoError(t, err)

	maxes, err := NewCombiner(start, time.Hour, func() accumulator.Accumulator[float64] { return accumulator.NewMax[float64]() })
	require.NoError(t, err)
	_, err = maxes.Record(start, "new", 1, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, a.Merge(maxes.Flush(start)), accumulator.ErrIncompatibleAccumulator)
	assert.Equal(t, 1, a.Pending())
}

func TestCombiner_Concurrent(t *testing.T) {
	t.Parallel()

	c, err := NewCombiner(start, time.Hour, newMean)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_, err := c.Record(start, fmt.Sprintf("key-%d", i%5), float64(i), 1)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	flushed := c.Flush(start)
	assert.Equal(t, 5, flushed.Len())
	total := 0.0
	for _, k := range flushed.Keys() {
		acc, _ := flushed.Get(k)
		total += acc.Weight()
	}
	assert.Equal(t, 4000.0, total)
}

func TestNewCombiner_Invalid(t *testing.T) {
	t.Parallel()

	_, err := NewCombiner(start, 0, newMean)
	assert.ErrorIs(t, err, accumulator.ErrInvalidConfig)
	_, err = NewCombiner[float64](start, time.Second, nil)
	assert.ErrorIs(t, err, accumulator.ErrInvalidConfig)
}
