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

package accumulator

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cardinalhq/accumux/pkg/numeric"
)

var scenario = []float64{2, 4, 4, 4, 5, 5, 7, 9}

const tolerance = 1e-9

func feed[T numeric.Float](acc Accumulator[T], xs ...T) Accumulator[T] {
	for _, x := range xs {
		acc.Update(x)
	}
	return acc
}

func assertClose[T numeric.Float](t *testing.T, want, got T, msgAndArgs ...any) {
	t.Helper()
	assert.LessOrEqual(t, numeric.RelativeError(want, got), tolerance, msgAndArgs...)
}

// randomValues returns a reproducible sample with a large mean and a
// small spread, the shape that defeats naive moment formulas.
func randomValues(seed int64, n int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = 1e6 + rng.NormFloat64()*3 + rng.ExpFloat64()*4
	}
	return xs
}

// reference computes the centered moment sums with a two-pass algorithm.
func reference(xs []float64) (mean, m2, m3, m4 float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		d := x - mean
		m2 += d * d
		m3 += d * d * d
		m4 += d * d * d * d
	}
	return
}
