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

// Package accumulator implements mergeable online statistical reductions.
//
// Every accumulator starts empty, is fed one observation at a time with
// Update or UpdateWeighted, can absorb another accumulator of the same
// kind and configuration with Merge, and can be queried at any time.
// Merge is associative and commutative up to floating point rounding, so
// partial accumulators built over disjoint partitions may be combined in
// any order.
//
// Accumulators are not safe for concurrent use. Give each goroutine its
// own accumulator and merge the results.
package accumulator

import "github.com/cardinalhq/accumux/pkg/numeric"

// Kind names a statistic.
type Kind string

const (
	KindCount      Kind = "count"
	KindSum        Kind = "sum"
	KindMin        Kind = "min"
	KindMax        Kind = "max"
	KindMean       Kind = "mean"
	KindVariance   Kind = "variance"
	KindSkewness   Kind = "skewness"
	KindKurtosis   Kind = "kurtosis"
	KindProduct    Kind = "product"
	KindEMA        Kind = "ema"
	KindCovariance Kind = "covariance"
	KindHistogram  Kind = "histogram"
	KindQuantile   Kind = "quantile"
	KindDistinct   Kind = "distinct"
)

// Accumulator is the contract shared by every statistic, including
// composites built from other accumulators.
type Accumulator[T numeric.Float] interface {
	// Kind names the statistic this accumulator computes.
	Kind() Kind

	// Key is a fingerprint of the kind and configuration.  Accumulators
	// that may be merged have the same key.
	Key() uint64

	// Matches reports whether other can be merged into this accumulator.
	Matches(other Accumulator[T]) bool

	// Update adds one observation with weight 1.
	Update(x T)

	// UpdateWeighted adds one observation with weight w, which must be
	// positive and finite.
	UpdateWeighted(x T, w T) error

	// Merge absorbs the state of other, as if every observation fed to
	// other had been fed to this accumulator.  other is left unchanged.
	Merge(other Accumulator[T]) error

	// Value returns the primary statistic, or its documented sentinel
	// when not yet defined.
	Value() T

	// Weight returns the total weight observed, n.
	Weight() T

	// Empty reports whether nothing has been observed.
	Empty() bool

	// Reset returns the accumulator to its empty state, keeping its
	// configuration.
	Reset()

	// Snapshot exports the full state as a flat record.
	Snapshot() Record

	// Restore replaces the state with one previously exported by Snapshot.
	Restore(r Record) error
}

type MeanReporter[T numeric.Float] interface {
	Mean() T
}

type VarianceReporter[T numeric.Float] interface {
	Variance() T
}

type MinReporter[T numeric.Float] interface {
	Min() T
}

type MaxReporter[T numeric.Float] interface {
	Max() T
}

type CountReporter[T numeric.Float] interface {
	Count() T
}
