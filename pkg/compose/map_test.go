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


package compose

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/accumux/pkg/accumulator"
)

func newStddev(t *testing.T) *Map[float64] {
	t.Helper()
	m, err := NewMap[float64]("sqrt", accumulator.NewVariance[float64](), math.Sqrt)
	require.NoError(t, err)
	return m
}

func TestMap(t *testing.T) {
	t.Parallel()

	m := newStddev(t)
	feed(m, scenario...)
	assert.InDelta(t, 2.0, m.Value(), 1e-12)
	assert.Equal(t, 8.0, m.Weight())
	assert.False(t, m.Empty())
	assert.InDelta(t, 4.0, m.Inner().Value(), 1e-12)

	a, b := newStddev(t), newStddev(t)
	feed(a, scenario[:3]...)
	feed(b, scenario[3:]...)
	require.NoError(t, a.Merge(b))
	assert.InDelta(t, m.Value(), a.Value(), 1e-12)
	assert.Equal(t, m.Key(), a.Key())

	other, err := NewMap[float64]("square", accumulator.NewVariance[float64](), func(x float64) float64 { return x * x })
	require.NoError(t, err)
	assert.False(t, m.Matches(other))
	assert.ErrorIs(t, m.Merge(other), accumulator.ErrIncompatibleAccumulator)
	assert.NotEqual(t, m.Key(), other.Key())
	assert.ErrorIs(t, m.Merge(accumulator.NewVariance[float64]()), accumulator.ErrIncompatibleAccumulator)

	assert.ErrorIs(t, m.UpdateWeighted(1, -1), accumulator.ErrInvalidWeight)
	assert.Equal(t, 8.0, m.Weight())

	m.Reset()
	assert.True(t, m.Empty())
}

func TestMap_Config(t *testing.T) {
	t.Parallel()

	inner := accumulator.NewSum[float64]()
	tests := []struct {
		name  string
		label string
		inner accumulator.Accumulator[float64]
		fn    func(float64) float64
	}{
		{"no name", "", inner, math.Abs},
		{"no accumulator", "abs", nil, math.Abs},
		{"no function", "abs", inner, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewMap(tt.label, tt.inner, tt.fn)
			assert.ErrorIs(t, err, accumulator.ErrInvalidConfig)
		})
	}
}

func TestMap_SnapshotRestore(t *testing.T) {
	t.Parallel()

	m := newStddev(t)
	feed(m, scenario...)
	r := m.Snapshot()
	require.Len(t, r.Members, 1)
	assert.Equal(t, "sqrt", r.Members[0].Name)

	restored := newStddev(t)
	require.NoError(t, restored.Restore(r))
	assert.Equal(t, r, restored.Snapshot())
	assert.InDelta(t, 2.0, restored.Value(), 1e-12)

	renamed := m.Snapshot()
	renamed.Members[0].Name = "cbrt"
	assert.ErrorIs(t, restored.Restore(renamed), accumulator.ErrIncompatibleAccumulator)

	_, err := FromRecord[float64](r)
	assert.ErrorIs(t, err, accumulator.ErrUnknownKind)
}

func TestMap_InComposite(t *testing.T) {
	t.Parallel()

	build := func() *Composite[float64] {
		c, err := New(
			Named[float64]("stddev", newStddev(t)),
			Named[float64]("max", accumulator.NewMax[float64]()),
		)
		require.NoError(t, err)
		return c
	}
	a, b := build(), build()
	feed(a, scenario[:4]...)
	feed(b, scenario[4:]...)
	require.NoError(t, a.Merge(b))
	assert.InDelta(t, 2.0, a.ValueOf("stddev"), 1e-12)
	assert.Equal(t, 9.0, a.ValueOf("max"))

	c := build()
	require.NoError(t, c.Restore(a.Snapshot()))
	assert.Equal(t, a.Snapshot(), c.Snapshot())
}

func positive(x float64) bool { return x > 0 }

func newSplit(t *testing.T) *Conditional[float64] {
	t.Helper()
	c, err := NewConditional[float64]("positive", positive, accumulator.NewSum[float64](), accumulator.NewSum[float64]())
	require.NoError(t, err)
	return c
}

func TestConditional(t *testing.T) {
	t.Parallel()

	c := newSplit(t)
	assert.True(t, c.Empty())
	feed(c, 3, -1, 4, -5, 0)
	require.NoError(t, c.UpdateWeighted(2, 2))

	assert.Equal(t, 11.0, c.Then.Value())
	assert.Equal(t, -6.0, c.Else.Value())
	assert.Equal(t, 11.0, c.Value())
	assert.Equal(t, 7.0, c.Weight())

	assert.ErrorIs(t, c.UpdateWeighted(1, 0), accumulator.ErrInvalidWeight)
	assert.Equal(t, 7.0, c.Weight())

	d := newSplit(t)
	feed(d, 10, -10)
	require.NoError(t, c.Merge(d))
	assert.Equal(t, 21.0, c.Then.Value())
	assert.Equal(t, -16.0, c.Else.Value())
	assert.Equal(t, 9.0, c.Weight())

	other, err := NewConditional[float64]("negative", func(x float64) bool { return x < 0 },
		accumulator.NewSum[float64](), accumulator.NewSum[float64]())
	require.NoError(t, err)
	assert.ErrorIs(t, c.Merge(other), accumulator.ErrIncompatibleAccumulator)
	assert.NotEqual(t, c.Key(), other.Key())

	_, err = NewConditional[float64]("", positive, accumulator.NewSum[float64](), accumulator.NewSum[float64]())
	assert.ErrorIs(t, err, accumulator.ErrInvalidConfig)
	_, err = NewConditional[float64]("positive", nil, accumulator.NewSum[float64](), accumulator.NewSum[float64]())
	assert.ErrorIs(t, err, accumulator.ErrInvalidConfig)
	_, err = NewConditional[float64]("positive", positive, accumulator.NewSum[float64](), nil)
	assert.ErrorIs(t, err, accumulator.ErrInvalidConfig)

	c.Reset()
	assert.True(t, c.Empty())
}

func TestConditional_SnapshotRestore(t *testing.T) {
	t.Parallel()

	c := newSplit(t)
	feed(c, 3, -1, 4)
	r := c.Snapshot()

	restored := newSplit(t)
	require.NoError(t, restored.Restore(r))
	assert.Equal(t, r, restored.Snapshot())

	bad := c.Snapshot()
	bad.Members[1].Kind = accumulator.KindMax
	fresh := newSplit(t)
	fresh.Update(42)
	want := fresh.Snapshot()
	assert.ErrorIs(t, fresh.Restore(bad), accumulator.ErrIncompatibleAccumulator)
	assert.Equal(t, want, fresh.Snapshot())

	_, err := FromRecord[float64](r)
	assert.ErrorIs(t, err, accumulator.ErrUnknownKind)
}
