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
	"fmt"
	"math"
	"strconv"

	"github.com/cardinalhq/accumux/pkg/numeric"
)

// Histogram counts weight in equal-width bins over [lo, hi).  Values below
// lo land in the underflow, values at or above hi (and NaN) land in the
// overflow.
type Histogram[T numeric.Float] struct {
	lo     T
	hi     T
	width  T
	counts []T
	under  T
	over   T
	n      T
}

var (
	_ Accumulator[float64] = &Histogram[float64]{}
	_ Accumulator[float32] = &Histogram[float32]{}
)

func NewHistogram[T numeric.Float](lo, hi T, bins int) (*Histogram[T], error) {
	flo, fhi := float64(lo), float64(hi)
	if math.IsNaN(flo) || math.IsInf(flo, 0) || math.IsNaN(fhi) || math.IsInf(fhi, 0) || !(lo < hi) {
		return nil, fmt.Errorf("%w: histogram range [%v, %v) is empty or not finite", ErrInvalidConfig, lo, hi)
	}
	if bins < 1 {
		return nil, fmt.Errorf("%w: histogram needs at least one bin, got %d", ErrInvalidConfig, bins)
	}
	return &Histogram[T]{
		lo:     lo,
		hi:     hi,
		width:  (hi - lo) / T(bins),
		counts: make([]T, bins),
	}, nil
}

func (h *Histogram[T]) Kind() Kind { return KindHistogram }

func (h *Histogram[T]) Key() uint64 {
	return ConfigKey(KindHistogram, h.params())
}

func (h *Histogram[T]) params() map[string]float64 {
	return map[string]float64{
		"lo":   float64(h.lo),
		"hi":   float64(h.hi),
		"bins": float64(len(h.counts)),
	}
}

func (h *Histogram[T]) Matches(other Accumulator[T]) bool {
	o, ok := other.(*Histogram[T])
	return ok && o != nil && o.lo == h.lo && o.hi == h.hi && len(o.counts) == len(h.counts)
}

func (h *Histogram[T]) Update(x T) {
	h.add(x, 1)
}

func (h *Histogram[T]) UpdateWeighted(x T, w T) error {
	if err := checkWeight(w); err != nil {
		return err
	}
	h.add(x, w)
	return nil
}

func (h *Histogram[T]) add(x T, w T) {
	h.n += w
	switch {
	case x < h.lo:
		h.under += w
	case x >= h.hi || numeric.IsNaN(x):
		h.over += w
	default:
		h.counts[h.bin(x)] += w
	}
}

func (h *Histogram[T]) bin(x T) int {
	i := int((x - h.lo) / h.width)
	// rounding can push values just below hi into the end bin
	return min(i, len(h.counts)-1)
}

func (h *Histogram[T]) Merge(other Accumulator[T]) error {
	if !h.Matches(other) {
		return Incompatible(KindHistogram, KindOf(other))
	}
	o := other.(*Histogram[T])
	for i, c := range o.counts {
		h.counts[i] += c
	}
	h.under += o.under
	h.over += o.over
	h.n += o.n
	return nil
}

func (h *Histogram[T]) Bins() int        { return len(h.counts) }
func (h *Histogram[T]) Underflow() T     { return h.under }
func (h *Histogram[T]) Overflow() T      { return h.over }
func (h *Histogram[T]) BinCount(i int) T { return h.counts[i] }
func (h *Histogram[T]) BinLeft(i int) T  { return h.lo + T(i)*h.width }
func (h *Histogram[T]) BinRight(i int) T { return h.lo + T(i+1)*h.width }
func (h *Histogram[T]) BinCenter(i int) T {
	return h.lo + (T(i)+0.5)*h.width
}

// Frequency is the share of the total weight in bin i, or NaN when empty.
func (h *Histogram[T]) Frequency(i int) T {
	if h.n == 0 {
		return numeric.NaN[T]()
	}
	return h.counts[i] / h.n
}

// Density is Frequency divided by the bin width.
func (h *Histogram[T]) Density(i int) T {
	return h.Frequency(i) / h.width
}

// CumulativeCount is the weight below the right edge of bin i, including
// the underflow.
func (h *Histogram[T]) CumulativeCount(i int) T {
	total := h.under
	for _, c := range h.counts[:i+1] {
		total += c
	}
	return total
}

// CDF is CumulativeCount as a share of the total weight, or NaN when
// empty.
func (h *Histogram[T]) CDF(i int) T {
	if h.n == 0 {
		return numeric.NaN[T]()
	}
	return h.CumulativeCount(i) / h.n
}

// Quantile interpolates linearly within the bin holding the p-quantile.
// Quantiles in the underflow report lo and quantiles in the overflow
// report hi.  It returns NaN when empty or when p is outside [0, 1].
func (h *Histogram[T]) Quantile(p float64) T {
	if h.n == 0 || !(p >= 0 && p <= 1) {
		return numeric.NaN[T]()
	}
	target := T(p) * h.n
	cum := h.under
	if h.under > 0 && target <= cum {
		return h.lo
	}
	for i, c := range h.counts {
		if c > 0 && cum+c >= target {
			frac := max((target-cum)/c, 0)
			return h.BinLeft(i) + frac*h.width
		}
		cum += c
	}
	return h.hi
}

func (h *Histogram[T]) Median() T {
	return h.Quantile(0.5)
}

// Mean approximates the mean of the in-range weight from bin centers,
// or returns NaN when no weight is in range.
func (h *Histogram[T]) Mean() T {
	var sum, weight numeric.KBNSum[T]
	for i, c := range h.counts {
		sum.Add(c * h.BinCenter(i))
		weight.Add(c)
	}
	if weight.Value() == 0 {
		return numeric.NaN[T]()
	}
	return sum.Value() / weight.Value()
}

func (h *Histogram[T]) Value() T    { return h.Mean() }
func (h *Histogram[T]) Count() T    { return h.n }
func (h *Histogram[T]) Weight() T   { return h.n }
func (h *Histogram[T]) Empty() bool { return h.n == 0 }

func (h *Histogram[T]) Reset() {
	clear(h.counts)
	h.under, h.over, h.n = 0, 0, 0
}

func binField(i int) string {
	return "bin." + strconv.Itoa(i)
}

func (h *Histogram[T]) Snapshot() Record {
	fields := map[string]float64{
		"n":     float64(h.n),
		"under": float64(h.under),
		"over":  float64(h.over),
	}
	for i, c := range h.counts {
		fields[binField(i)] = float64(c)
	}
	return Record{Kind: KindHistogram, Params: h.params(), Fields: fields}
}

func (h *Histogram[T]) Restore(r Record) error {
	if err := expectKind(r, KindHistogram); err != nil {
		return err
	}
	if ConfigKey(KindHistogram, r.Params) != h.Key() {
		return fmt.Errorf("%w: histogram binning differs", ErrIncompatibleAccumulator)
	}
	n, err := weightField[T](r)
	if err != nil {
		return err
	}
	under, err := r.Field("under")
	if err != nil {
		return err
	}
	over, err := r.Field("over")
	if err != nil {
		return err
	}
	counts := make([]T, len(h.counts))
	for i := range counts {
		c, err := r.Field(binField(i))
		if err != nil {
			return err
		}
		counts[i] = T(c)
	}
	h.counts, h.under, h.over, h.n = counts, T(under), T(over), n
	return nil
}
