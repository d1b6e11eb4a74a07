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

package numeric

import "math"

// KBNSum is a Kahan-Babuska-Neumaier compensated sum. The error of the
// running total does not grow with the number of terms. The zero value
// is an empty sum.
type KBNSum[T Float] struct {
	sum        T
	correction T
}

// KBNSumFrom rebuilds a sum from components previously returned by
// Components.
func KBNSumFrom[T Float](sum, correction T) KBNSum[T] {
	return KBNSum[T]{sum: sum, correction: correction}
}

// Add adds x to the running total.
func (k *KBNSum[T]) Add(x T) {
	t := k.sum + x
	if abs(k.sum) >= abs(x) {
		k.correction += (k.sum - t) + x
	} else {
		k.correction += (x - t) + k.sum
	}
	k.sum = t
}

// Merge folds another compensated sum into k, keeping both correction
// terms.
func (k *KBNSum[T]) Merge(other KBNSum[T]) {
	k.Add(other.sum)
	k.Add(other.correction)
}

// Value returns the compensated total.
func (k KBNSum[T]) Value() T {
	return k.sum + k.correction
}

// Components returns the raw running sum and its correction term.
func (k KBNSum[T]) Components() (sum T, correction T) {
	return k.sum, k.correction
}

// Set replaces the total with v and clears the correction.
func (k *KBNSum[T]) Set(v T) {
	k.sum = v
	k.correction = 0
}

func (k *KBNSum[T]) Reset() {
	k.sum = 0
	k.correction = 0
}

// Sum returns the compensated sum of xs.
func Sum[T Float](xs ...T) T {
	var k KBNSum[T]
	for _, x := range xs {
		k.Add(x)
	}
	return k.Value()
}

func abs[T Float](x T) T {
	return T(math.Abs(float64(x)))
}
