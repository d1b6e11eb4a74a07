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

	"github.com/cardinalhq/accumux/pkg/numeric"
)

// Moments tracks the weighted mean and the centered moment sums M2, M3
// and M4 up to a fixed order.  Order 1 is a mean, 2 a variance, 3
// skewness and 4 kurtosis; each order also answers every lower-order
// query.
//
// n is the total weight.  With unit weights it is the observation count
// and SampleVariance is the usual unbiased estimator.
type Moments[T numeric.Float] struct {
	order int
	n     T
	mean  numeric.KBNSum[T]
	m2    numeric.KBNSum[T]
	m3    numeric.KBNSum[T]
	m4    numeric.KBNSum[T]
}

var (
	_ Accumulator[float64] = &Moments[float64]{}
	_ Accumulator[float32] = &Moments[float32]{}
)

func NewMoments[T numeric.Float](order int) (*Moments[T], error) {
	if order < 1 || order > 4 {
		return nil, fmt.Errorf("%w: moment order %d not in [1, 4]", ErrInvalidConfig, order)
	}
	return &Moments[T]{order: order}, nil
}

func NewMean[T numeric.Float]() *Moments[T]     { return &Moments[T]{order: 1} }
func NewVariance[T numeric.Float]() *Moments[T] { return &Moments[T]{order: 2} }
func NewSkewness[T numeric.Float]() *Moments[T] { return &Moments[T]{order: 3} }
func NewKurtosis[T numeric.Float]() *Moments[T] { return &Moments[T]{order: 4} }

var momentKinds = [...]Kind{1: KindMean, 2: KindVariance, 3: KindSkewness, 4: KindKurtosis}

func (m *Moments[T]) Kind() Kind  { return momentKinds[m.order] }
func (m *Moments[T]) Key() uint64 { return ConfigKey(m.Kind(), nil) }
func (m *Moments[T]) Order() int  { return m.order }

func (m *Moments[T]) Matches(other Accumulator[T]) bool {
	o, ok := other.(*Moments[T])
	return ok && o != nil && o.order == m.order
}

func (m *Moments[T]) Update(x T) {
	m.add(x, 1)
}

func (m *Moments[T]) UpdateWeighted(x T, w T) error {
	if err := checkWeight(w); err != nil {
		return err
	}
	m.add(x, w)
	return nil
}

// add folds one weighted observation in.  The M3 and M4 terms are the
// pairwise combination rules with the new observation as a partition of
// weight w and zero centered moments, written with a = n/n' and b = w/n'.
func (m *Moments[T]) add(x T, w T) {
	n := m.n
	n1 := n + w
	delta := x - m.mean.Value()
	b := w / n1

	if m.order >= 3 {
		a := n / n1
		m2 := m.m2.Value()
		d2 := delta * delta
		if m.order >= 4 {
			m3 := m.m3.Value()
			m.m4.Add(d2*d2*n1*a*b*(a*a-a*b+b*b) + 6*d2*b*b*m2 - 4*delta*b*m3)
		}
		m.m3.Add(d2*delta*n1*a*b*(a-b) - 3*delta*b*m2)
	}

	m.n = n1
	m.mean.Add(delta * b)
	if m.order >= 2 {
		m.m2.Add(w * delta * (x - m.mean.Value()))
	}
}

func (m *Moments[T]) Merge(other Accumulator[T]) error {
	o, ok := other.(*Moments[T])
	if !ok || o == nil || o.order != m.order {
		return Incompatible(m.Kind(), KindOf(other))
	}
	if o.n == 0 {
		return nil
	}
	if m.n == 0 {
		*m = *o
		return nil
	}

	n := m.n + o.n
	a := m.n / n
	b := o.n / n
	delta := o.mean.Value() - m.mean.Value()
	d2 := delta * delta
	m2a, m2b := m.m2.Value(), o.m2.Value()

	if m.order >= 4 {
		m3a, m3b := m.m3.Value(), o.m3.Value()
		m.m4.Merge(o.m4)
		m.m4.Add(d2*d2*n*a*b*(a*a-a*b+b*b) + 6*d2*(a*a*m2b+b*b*m2a) + 4*delta*(a*m3b-b*m3a))
	}
	if m.order >= 3 {
		m.m3.Merge(o.m3)
		m.m3.Add(d2*delta*n*a*b*(a-b) + 3*delta*(a*m2b-b*m2a))
	}
	if m.order >= 2 {
		m.m2.Merge(o.m2)
		m.m2.Add(d2 * n * a * b)
	}
	m.mean.Add(delta * b)
	m.n = n
	return nil
}

// Mean returns the weighted mean, or NaN when empty.
func (m *Moments[T]) Mean() T {
	if m.n == 0 {
		return numeric.NaN[T]()
	}
	return m.mean.Value()
}

func (m *Moments[T]) secondMoment() T {
	return max(m.m2.Value(), 0)
}

// Variance returns the population variance M2/n, or NaN when empty or
// when the order is below 2.
func (m *Moments[T]) Variance() T {
	if m.order < 2 || m.n == 0 {
		return numeric.NaN[T]()
	}
	return m.secondMoment() / m.n
}

// SampleVariance returns M2/(n-1), or NaN unless n > 1.
func (m *Moments[T]) SampleVariance() T {
	if m.order < 2 || m.n <= 1 {
		return numeric.NaN[T]()
	}
	return m.secondMoment() / (m.n - 1)
}

func (m *Moments[T]) StdDev() T {
	return T(math.Sqrt(float64(m.Variance())))
}

func (m *Moments[T]) SampleStdDev() T {
	return T(math.Sqrt(float64(m.SampleVariance())))
}

// Skewness returns sqrt(n)*M3/M2^1.5, or NaN when M2 is zero.
func (m *Moments[T]) Skewness() T {
	m2 := float64(m.secondMoment())
	if m.order < 3 || m.n == 0 || m2 == 0 {
		return numeric.NaN[T]()
	}
	return T(math.Sqrt(float64(m.n)) * float64(m.m3.Value()) / math.Pow(m2, 1.5))
}

// Kurtosis returns the excess kurtosis n*M4/M2^2 - 3, or NaN when M2 is
// zero.
func (m *Moments[T]) Kurtosis() T {
	m2 := float64(m.secondMoment())
	if m.order < 4 || m.n == 0 || m2 == 0 {
		return numeric.NaN[T]()
	}
	return T(float64(m.n)*float64(m.m4.Value())/(m2*m2) - 3)
}

// Value returns the statistic named by the order: mean, population
// variance, skewness or excess kurtosis.
func (m *Moments[T]) Value() T {
	switch m.order {
	case 1:
		return m.Mean()
	case 2:
		return m.Variance()
	case 3:
		return m.Skewness()
	default:
		return m.Kurtosis()
	}
}

func (m *Moments[T]) Count() T    { return m.n }
func (m *Moments[T]) Weight() T   { return m.n }
func (m *Moments[T]) Empty() bool { return m.n == 0 }

func (m *Moments[T]) Reset() {
	*m = Moments[T]{order: m.order}
}

var momentFields = [...]string{"mean", "m2", "m3", "m4"}

func (m *Moments[T]) sums() [4]*numeric.KBNSum[T] {
	return [4]*numeric.KBNSum[T]{&m.mean, &m.m2, &m.m3, &m.m4}
}

func (m *Moments[T]) Snapshot() Record {
	fields := map[string]float64{"n": float64(m.n)}
	sums := m.sums()
	for i, s := range sums[:m.order] {
		putSum(fields, momentFields[i], *s)
	}
	return Record{Kind: m.Kind(), Fields: fields}
}

func (m *Moments[T]) Restore(r Record) error {
	if err := expectKind(r, m.Kind()); err != nil {
		return err
	}
	n, err := weightField[T](r)
	if err != nil {
		return err
	}
	restored := Moments[T]{order: m.order, n: n}
	sums := restored.sums()
	for i, s := range sums[:m.order] {
		v, err := getSum[T](r, momentFields[i])
		if err != nil {
			return err
		}
		*s = v
	}
	*m = restored
	return nil
}
