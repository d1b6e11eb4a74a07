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
	"strconv"

	"github.com/apache/datasketches-go/hll"

	"github.com/cardinalhq/accumux/pkg/numeric"
)

const (
	DefaultLgK = 12
	minLgK     = 4
	maxLgK     = 21
)

// Distinct estimates the number of distinct values observed with a
// HyperLogLog sketch of 2^lgK registers.  Weights are validated and
// counted in n but do not change the estimate.
type Distinct[T numeric.Float] struct {
	lgK    int
	sketch hll.HllSketch
	n      T
}

var (
	_ Accumulator[float64] = &Distinct[float64]{}
	_ Accumulator[float32] = &Distinct[float32]{}
)

func NewDistinct[T numeric.Float](lgK int) (*Distinct[T], error) {
	if lgK < minLgK || lgK > maxLgK {
		return nil, fmt.Errorf("%w: lgK %d not in [%d, %d]", ErrInvalidConfig, lgK, minLgK, maxLgK)
	}
	sketch, err := hll.NewHllSketch(lgK, hll.TgtHllTypeDefault)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &Distinct[T]{lgK: lgK, sketch: sketch}, nil
}

func (d *Distinct[T]) Kind() Kind { return KindDistinct }

func (d *Distinct[T]) Key() uint64 {
	return ConfigKey(KindDistinct, d.params())
}

func (d *Distinct[T]) params() map[string]float64 {
	return map[string]float64{"lgk": float64(d.lgK)}
}

func (d *Distinct[T]) Matches(other Accumulator[T]) bool {
	o, ok := other.(*Distinct[T])
	return ok && o != nil && o.lgK == d.lgK
}

// canonical renders x so that equal values hash equally; -0 is folded
// into 0.
func canonical[T numeric.Float](x T) string {
	v := float64(x)
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (d *Distinct[T]) Update(x T) {
	_ = d.UpdateWeighted(x, 1)
}

func (d *Distinct[T]) UpdateWeighted(x T, w T) error {
	if err := checkWeight(w); err != nil {
		return err
	}
	if err := d.sketch.UpdateString(canonical(x)); err != nil {
		return err
	}
	d.n += w
	return nil
}

func (d *Distinct[T]) Merge(other Accumulator[T]) error {
	if !d.Matches(other) {
		return Incompatible(KindDistinct, KindOf(other))
	}
	o := other.(*Distinct[T])
	union, err := hll.NewUnion(d.lgK)
	if err != nil {
		return err
	}
	if err := union.UpdateSketch(d.sketch); err != nil {
		return err
	}
	if err := union.UpdateSketch(o.sketch); err != nil {
		return err
	}
	merged, err := union.GetResult(hll.TgtHllTypeDefault)
	if err != nil {
		return err
	}
	d.sketch = merged
	d.n += o.n
	return nil
}

// Estimate returns the estimated number of distinct values; it is 0 when
// empty.
func (d *Distinct[T]) Estimate() T {
	if d.n == 0 {
		return 0
	}
	v, err := d.sketch.GetEstimate()
	if err != nil {
		return numeric.NaN[T]()
	}
	return T(v)
}

func (d *Distinct[T]) LgK() int    { return d.lgK }
func (d *Distinct[T]) Value() T    { return d.Estimate() }
func (d *Distinct[T]) Count() T    { return d.n }
func (d *Distinct[T]) Weight() T   { return d.n }
func (d *Distinct[T]) Empty() bool { return d.n == 0 }

func (d *Distinct[T]) Reset() {
	if sketch, err := hll.NewHllSketch(d.lgK, hll.TgtHllTypeDefault); err == nil {
		d.sketch = sketch
	}
	d.n = 0
}

func (d *Distinct[T]) Snapshot() Record {
	r := Record{
		Kind:   KindDistinct,
		Params: d.params(),
		Fields: map[string]float64{"n": float64(d.n)},
	}
	if b, err := d.sketch.ToCompactSlice(); err == nil {
		r.Blob = b
	}
	return r
}

func (d *Distinct[T]) Restore(r Record) error {
	if err := expectKind(r, KindDistinct); err != nil {
		return err
	}
	if lgK := int(r.Param("lgk", 0)); lgK != d.lgK {
		return fmt.Errorf("%w: distinct lgK %d into %d", ErrIncompatibleAccumulator, lgK, d.lgK)
	}
	n, err := weightField[T](r)
	if err != nil {
		return err
	}
	if len(r.Blob) == 0 {
		return fmt.Errorf("%w: distinct record has no sketch", ErrMalformedRecord)
	}
	sketch, err := hll.NewHllSketchFromSlice(r.Blob, true)
	if err != nil {
		return fmt.Errorf("%w: distinct sketch: %v", ErrMalformedRecord, err)
	}
	if sketch.GetLgConfigK() != d.lgK {
		return fmt.Errorf("%w: distinct sketch lgK %d into %d", ErrIncompatibleAccumulator, sketch.GetLgConfigK(), d.lgK)
	}
	d.sketch, d.n = sketch, n
	return nil
}
