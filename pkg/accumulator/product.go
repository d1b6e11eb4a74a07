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

// Product is a running weighted product, kept in log space so long
// streams neither overflow nor underflow.  A weight w raises the value to
// the power w.
type Product[T numeric.Float] struct {
	n        T
	logSum   numeric.KBNSum[T]
	negative T
	zero     bool
}

var (
	_ Accumulator[float64] = &Product[float64]{}
	_ Accumulator[float32] = &Product[float32]{}
)

func NewProduct[T numeric.Float]() *Product[T] {
	return &Product[T]{}
}

func (p *Product[T]) Kind() Kind  { return KindProduct }
func (p *Product[T]) Key() uint64 { return ConfigKey(KindProduct, nil) }

func (p *Product[T]) Matches(other Accumulator[T]) bool {
	_, ok := other.(*Product[T])
	return ok
}

func (p *Product[T]) Update(x T) {
	p.add(x, 1)
}

func (p *Product[T]) UpdateWeighted(x T, w T) error {
	if err := checkWeight(w); err != nil {
		return err
	}
	p.add(x, w)
	return nil
}

func (p *Product[T]) add(x T, w T) {
	p.n += w
	if x == 0 {
		p.zero = true
		return
	}
	if x < 0 {
		p.negative += w
	}
	p.logSum.Add(w * T(math.Log(math.Abs(float64(x)))))
}

func (p *Product[T]) Merge(other Accumulator[T]) error {
	o, ok := other.(*Product[T])
	if !ok || o == nil {
		return Incompatible(KindProduct, KindOf(other))
	}
	p.n += o.n
	p.logSum.Merge(o.logSum)
	p.negative += o.negative
	p.zero = p.zero || o.zero
	return nil
}

// Product returns 1 when empty and 0 once a zero has been seen.  The sign
// is undefined, and NaN returned, when the total weight on negative
// values is not a whole number.
func (p *Product[T]) Product() T {
	switch {
	case p.n == 0:
		return 1
	case p.zero:
		return 0
	}
	mag := math.Exp(float64(p.logSum.Value()))
	if p.negative == 0 {
		return T(mag)
	}
	neg := float64(p.negative)
	if neg != math.Trunc(neg) {
		return numeric.NaN[T]()
	}
	if math.Mod(neg, 2) == 1 {
		mag = -mag
	}
	return T(mag)
}

// LogAbs returns the sum of w*log|x| over the non-zero observations.
func (p *Product[T]) LogAbs() T     { return p.logSum.Value() }
func (p *Product[T]) HasZero() bool { return p.zero }
func (p *Product[T]) Value() T      { return p.Product() }
func (p *Product[T]) Weight() T     { return p.n }
func (p *Product[T]) Empty() bool   { return p.n == 0 }

func (p *Product[T]) Reset() {
	*p = Product[T]{}
}

func (p *Product[T]) Snapshot() Record {
	fields := map[string]float64{
		"n":   float64(p.n),
		"neg": float64(p.negative),
	}
	putSum(fields, "log", p.logSum)
	if p.zero {
		fields["zero"] = 1
	} else {
		fields["zero"] = 0
	}
	return Record{Kind: KindProduct, Fields: fields}
}

func (p *Product[T]) Restore(r Record) error {
	if err := expectKind(r, KindProduct); err != nil {
		return err
	}
	n, err := weightField[T](r)
	if err != nil {
		return err
	}
	logSum, err := getSum[T](r, "log")
	if err != nil {
		return err
	}
	neg, err := r.Field("neg")
	if err != nil {
		return err
	}
	zero, err := r.Field("zero")
	if err != nil {
		return err
	}
	*p = Product[T]{n: n, logSum: logSum, negative: T(neg), zero: zero != 0}
	return nil
}
