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

// Package numeric holds the scalar constraints and the compensated
// summation primitive shared by every accumulator.
package numeric

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Float is the scalar type accumulators are generic over.
type Float interface {
	constraints.Float
}

// Real is any integer or floating point type that can be fed into an
// accumulator after conversion.
type Real interface {
	constraints.Integer | constraints.Float
}

// ValidWeight reports whether w may be used as an observation weight.
func ValidWeight[T Float](w T) bool {
	return w > 0 && !math.IsInf(float64(w), 1)
}

// NaN returns a quiet NaN of type T.
func NaN[T Float]() T {
	return T(math.NaN())
}

// IsNaN reports whether v is NaN.
func IsNaN[T Float](v T) bool {
	return v != v
}

// RelativeError returns |a-b| scaled by the larger magnitude of the two.
// Two zeros, or two NaNs, have no error.
func RelativeError[T Float](a, b T) float64 {
	fa, fb := float64(a), float64(b)
	if math.IsNaN(fa) && math.IsNaN(fb) {
		return 0
	}
	if fa == fb {
		return 0
	}
	scale := math.Max(math.Abs(fa), math.Abs(fb))
	return math.Abs(fa-fb) / scale
}

// Convert turns any Real into the accumulator scalar type T.
func Convert[T Float, V Real](v V) T {
	return T(v)
}
