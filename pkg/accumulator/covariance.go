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
	"math"

	"github.com/cardinalhq/accumux/pkg/numeric"
)

// Covariance tracks the co-moment of paired observations along with
// each side's mean and second moment.  Update(x) observes the pair (x, x).
type Covariance[T numeric.Float] struct {
	n     T
	meanX numeric.KBNSum[T]
	meanY numeric.KBNSum[T]
	m2x   numeric.KBNSum[T]
	m2y   numeric.KBNSum[T]
	cxy   numeric.KBNSum[T]
}

var (
	_ Accumulator[float64] = &Covariance[float64]{}
	_ Accumulator[float32] = &Covariance[float32]{}
)

func NewCovariance[T numeric.Float]() *Covariance[T] {
	return &Covariance[T]{}
}

func (c *Covariance[T]) Kind() Kind  { return KindCovariance }
func (c *Covariance[T]) Key() uint64 { return ConfigKey(KindCovariance, nil) }

func (c *Covariance[T]) Matches(other Accumulator[T]) bool {
	_, ok := other.(*Covariance[T])
	return ok
}

func (c *Covariance[T]) Update(x T) {
	c.add(x, x, 1)
}

func (c *Covariance[T]) UpdateWeighted(x T, w T) error {
	return c.UpdatePairWeighted(x, x, w)
}

func (c *Covariance[T]) UpdatePair(x, y T) {
	c.add(x, y, 1)
}

func (c *Covariance[T]) UpdatePairWeighted(x, y T, w T) error {
	if err := checkWeight(w); err != nil {
		return err
	}
	c.add(x, y, w)
	return nil
}

func (c *Covariance[T]) add(x, y T, w T) {
	n1 := c.n + w
	dx := x - c.meanX.Value()
	dy := y - c.meanY.Value()
	b := w / n1
	c.meanX.Add(dx * b)
	c.meanY.Add(dy * b)
	ry := y - c.meanY.Value()
	c.m2x.Add(w * dx * (x - c.meanX.Value()))
	c.m2y.Add(w * dy * ry)
	c.cxy.Add(w * dx * ry)
	c.n = n1
}

func (c *Covariance[T]) Merge(other Accumulator[T]) error {
	o, ok := other.(*Covariance[T])
	if !ok || o == nil {
		return Incompatible(KindCovariance, KindOf(other))
	}
	if o.n == 0 {
		return nil
	}
	if c.n == 0 {
		*c = *o
		return nil
	}
	n := c.n + o.n
	a, b := c.n/n, o.n/n
	dx := o.meanX.Value() - c.meanX.Value()
	dy := o.meanY.Value() - c.meanY.Value()

	c.m2x.Merge(o.m2x)
	c.m2x.Add(dx * dx * n * a * b)
	c.m2y.Merge(o.m2y)
	c.m2y.Add(dy * dy * n * a * b)
	c.cxy.Merge(o.cxy)
	c.cxy.Add(dx * dy * n * a * b)
	c.meanX.Add(dx * b)
	c.meanY.Add(dy * b)
	c.n = n
	return nil
}

func (c *Covariance[T]) MeanX() T { return c.meanOf(c.meanX) }
func (c *Covariance[T]) MeanY() T { return c.meanOf(c.meanY) }

func (c *Covariance[T]) meanOf(s numeric.KBNSum[T]) T {
	if c.n == 0 {
		return numeric.NaN[T]()
	}
	return s.Value()
}

func (c *Covariance[T]) VarianceX() T { return c.perWeight(max(c.m2x.Value(), 0), 0) }
func (c *Covariance[T]) VarianceY() T { return c.perWeight(max(c.m2y.Value(), 0), 0) }

// Covariance returns the population covariance, or NaN when empty.
func (c *Covariance[T]) Covariance() T { return c.perWeight(c.cxy.Value(), 0) }

// SampleCovariance returns C/(n-1), or NaN unless n > 1.
func (c *Covariance[T]) SampleCovariance() T { return c.perWeight(c.cxy.Value(), 1) }

func (c *Covariance[T]) perWeight(v T, ddof T) T {
	if c.n <= ddof {
		return numeric.NaN[T]()
	}
	return v / (c.n - ddof)
}

// Correlation returns the Pearson correlation, or NaN when either side
// has zero variance.
func (c *Covariance[T]) Correlation() T {
	sx, sy := float64(c.m2x.Value()), float64(c.m2y.Value())
	if c.n == 0 || sx <= 0 || sy <= 0 {
		return numeric.NaN[T]()
	}
	r := float64(c.cxy.Value()) / math.Sqrt(sx*sy)
	return T(math.Max(-1, math.Min(1, r)))
}

func (c *Covariance[T]) Value() T    { return c.SampleCovariance() }
func (c *Covariance[T]) Count() T    { return c.n }
func (c *Covariance[T]) Weight() T   { return c.n }
func (c *Covariance[T]) Empty() bool { return c.n == 0 }

func (c *Covariance[T]) Reset() {
	*c = Covariance[T]{}
}

var covarianceFields = [...]string{"mean_x", "mean_y", "m2_x", "m2_y", "c_xy"}

func (c *Covariance[T]) sums() [5]*numeric.KBNSum[T] {
	return [5]*numeric.KBNSum[T]{&c.meanX, &c.meanY, &c.m2x, &c.m2y, &c.cxy}
}

func (c *Covariance[T]) Snapshot() Record {
	fields := map[string]float64{"n": float64(c.n)}
	for i, s := range c.sums() {
		putSum(fields, covarianceFields[i], *s)
	}
	return Record{Kind: KindCovariance, Fields: fields}
}

func (c *Covariance[T]) Restore(r Record) error {
	if err := expectKind(r, KindCovariance); err != nil {
		return err
	}
	n, err := weightField[T](r)
	if err != nil {
		return err
	}
	restored := Covariance[T]{n: n}
	for i, s := range restored.sums() {
		v, err := getSum[T](r, covarianceFields[i])
		if err != nil {
			return err
		}
		*s = v
	}
	*c = restored
	return nil
}
