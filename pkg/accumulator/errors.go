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
	"errors"
	"fmt"

	"github.com/cardinalhq/accumux/pkg/numeric"
)

var (
	// ErrInvalidWeight is returned when an update carries a weight that
	// is not a positive finite number.
	ErrInvalidWeight = errors.New("invalid weight")

	// ErrIncompatibleAccumulator is returned when two accumulators of a
	// different kind or configuration are merged, or when a record is
	// restored into the wrong accumulator.
	ErrIncompatibleAccumulator = errors.New("incompatible accumulator")

	// ErrUndefinedStatistic is returned by Checked when a statistic is not
	// defined for the current sample size.
	ErrUndefinedStatistic = errors.New("undefined statistic")

	ErrInvalidConfig   = errors.New("invalid accumulator config")
	ErrUnknownKind     = errors.New("unknown accumulator kind")
	ErrMalformedRecord = errors.New("malformed accumulator record")
)

// Checked converts a NaN sentinel into ErrUndefinedStatistic, for callers
// that prefer an error to a sentinel.
func Checked[T numeric.Float](v T) (T, error) {
	if numeric.IsNaN(v) {
		return v, ErrUndefinedStatistic
	}
	return v, nil
}

func checkWeight[T numeric.Float](w T) error {
	if !numeric.ValidWeight(w) {
		return fmt.Errorf("%w: %v", ErrInvalidWeight, w)
	}
	return nil
}

// CheckWeight validates an update weight the same way every accumulator
// in this package does.
func CheckWeight[T numeric.Float](w T) error {
	return checkWeight(w)
}

// Incompatible builds the error returned when other cannot be merged
// into (or restored as) an accumulator of kind want.
func Incompatible(want Kind, got Kind) error {
	if got == "" {
		got = "nil"
	}
	return fmt.Errorf("%w: %s into %s", ErrIncompatibleAccumulator, got, want)
}

// KindOf returns the kind of acc, or an empty kind for nil.
func KindOf[T numeric.Float](acc Accumulator[T]) Kind {
	if acc == nil {
		return ""
	}
	return acc.Kind()
}
