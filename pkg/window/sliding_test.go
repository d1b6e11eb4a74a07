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

package window

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/accumux/pkg/accumulator"
)

func newVariance() accumulator.Accumulator[float64] {
	return accumulator.NewVariance[float64]()
}

func meanOf(acc accumulator.Accumulator[float64]) float64 {
	return acc.(*accumulator.Moments[float64]).Mean()
}

func TestSliding(t *testing.T) {
	t.Parallel()

	s, err := NewSliding(3, newVariance)
	require.NoError(t, err)
	assert.True(t, s.Result().Empty())

	s.Update(1)
	s.Update(2)
	assert.Equal(t, 1.5, meanOf(s.Result()))
	assert.Equal(t, 0.25, s.Value())
	assert.False(t, s.Full())

	s.Update(3)
	s.Update(4)
	s.Update(5)
	assert.True(t, s.Full())
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []float64{3, 4, 5}, s.Values())

	v := s.Result().(*accumulator.Moments[float64])
	assert.Equal(t, 3.0, v.Count())
	assert.InDelta(t, 4.0, v.Mean(), 1e-12)
	assert.InDelta(t, 2.0/3.0, v.Variance(), 1e-12)
}

func TestSliding_Weighted(t *testing.T) {
	t.Parallel()

	s, err := NewSliding(2, newVariance)
	require.NoError(t, err)
	require.NoError(t, s.UpdateWeighted(10, 5))
	require.NoError(t, s.UpdateWeighted(1, 1))
	require.NoError(t, s.UpdateWeighted(3, 3))
	assert.Equal(t, 4.0, s.Result().Weight())
	assert.InDelta(t, 2.5, meanOf(s.Result()), 1e-12)

	assert.ErrorIs(t, s.UpdateWeighted(1, 0), accumulator.ErrInvalidWeight)
	assert.Equal(t, 2, s.Len())
}

var errNegative = errors.New("negative")

type positiveOnly struct {
	accumulator.Accumulator[float64]
}

func (p positiveOnly) UpdateWeighted(x, w float64) error {
	if x < 0 {
		return errNegative
	}
	return p.Accumulator.UpdateWeighted(x, w)
}

func TestSliding_RejectedUpdate(t *testing.T) {
	t.Parallel()

	s, err := NewSliding(3, func() accumulator.Accumulator[float64] {
		return positiveOnly{accumulator.NewVariance[float64]()}
	})
	require.NoError(t, err)
	require.NoError(t, s.UpdateWeighted(2, 1))
	assert.ErrorIs(t, s.UpdateWeighted(-1, 1), errNegative)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []float64{2}, s.Values())
	assert.Equal(t, 1.0, s.Result().Weight())

	for _, w := range []float64{0, -1} {
		assert.ErrorIs(t, s.UpdateWeighted(5, w), accumulator.ErrInvalidWeight)
	}
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1.0, s.Result().Weight())
}

func TestSliding_Merge(t *testing.T) {
	t.Parallel()

	a, err := NewSliding(4, newVariance)
	require.NoError(t, err)
	b, err := NewSliding(4, newVariance)
	require.NoError(t, err)
	for _, x := range []float64{1, 2, 3} {
		a.Update(x)
	}
	for _, x := range []float64{7, 8} {
		b.Update(x)
	}
	require.NoError(t, a.Merge(b))
	assert.Equal(t, []float64{2, 3, 7, 8}, a.Values())
	assert.InDelta(t, 5.0, meanOf(a.Result()), 1e-12)
	assert.Equal(t, 2, b.Len())

	c, err := NewSliding(4, func() accumulator.Accumulator[float64] { return accumulator.NewMax[float64]() })
	require.NoError(t, err)
	assert.ErrorIs(t, a.Merge(c), accumulator.ErrIncompatibleAccumulator)
	assert.ErrorIs(t, a.Merge(nil), accumulator.ErrIncompatibleAccumulator)
}

func TestSliding_Reset(t *testing.T) {
	t.Parallel()

	s, err := NewSliding(2, newVariance)
	require.NoError(t, err)
	s.Update(1)
	s.Update(2)
	s.Update(3)
	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.True(t, s.Result().Empty())
	s.Update(9)
	assert.Equal(t, 9.0, meanOf(s.Result()))
}

func TestNewSliding_Invalid(t *testing.T) {
	t.Parallel()

	_, err := NewSliding(0, newVariance)
	assert.ErrorIs(t, err, accumulator.ErrInvalidConfig)
	_, err = NewSliding[float64](3, nil)
	assert.ErrorIs(t, err, accumulator.ErrInvalidConfig)
}
