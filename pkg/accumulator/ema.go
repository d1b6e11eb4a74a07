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

// EMA is an exponentially weighted moving average and variance with
// smoothing factor alpha.  The first observation seeds the level.
type EMA[T numeric.Float] struct {
	alpha    T
	n        T
	level    T
	variance T
}

var (
	_ Accumulator[float64] = &EMA[float64]{}
	_ Accumulator[float32] = &EMA[float32]{}
)

// NewEMA returns an EMA with alpha in (0, 1].
func NewEMA[T numeric.Float](alpha T) (*EMA[T], error) {
	if !(alpha > 0 && alpha <= 1) {
		return nil, fmt.Errorf("%w: ema alpha %v not in (0, 1]", ErrInvalidConfig, alpha)
	}
	return &EMA[T]{alpha: alpha}, nil
}

// NewEMAFromPeriod uses alpha = 2/(period+1).
func NewEMAFromPeriod[T numeric.Float](period int) (*EMA[T], error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: ema period %d must be at least 1", ErrInvalidConfig, period)
	}
	return NewEMA(T(2.0 / float64(period+1)))
}

// NewEMAFromHalfLife uses the alpha under which an observation's weight
// halves after halfLife further observations.
func NewEMAFromHalfLife[T numeric.Float](halfLife T) (*EMA[T], error) {
	h := float64(halfLife)
	if !(h > 0) || math.IsInf(h, 1) {
		return nil, fmt.Errorf("%w: ema half-life %v must be positive and finite", ErrInvalidConfig, halfLife)
	}
	return NewEMA(T(1 - math.Exp(-math.Ln2/h)))
}

func (e *EMA[T]) Kind() Kind { return KindEMA }

func (e *EMA[T]) Key() uint64 {
	return ConfigKey(KindEMA, e.params())
}

func (e *EMA[T]) params() map[string]float64 {
	return map[string]float64{"alpha": float64(e.alpha)}
}

func (e *EMA[T]) Matches(other Accumulator[T]) bool {
	o, ok := other.(*EMA[T])
	return ok && o != nil && o.alpha == e.alpha
}

func (e *EMA[T]) Update(x T) {
	e.add(x, 1)
}

func (e *EMA[T]) UpdateWeighted(x T, w T) error {
	if err := checkWeight(w); err != nil {
		return err
	}
	e.add(x, w)
	return nil
}

// add applies alpha_w = 1-(1-alpha)^w, the decay of w unit updates.
func (e *EMA[T]) add(x T, w T) {
	if e.n == 0 {
		e.n = w
		e.level = x
		e.variance = 0
		return
	}
	aw := e.alpha
	if w != 1 {
		aw = T(1 - math.Pow(1-float64(e.alpha), float64(w)))
	}
	delta := x - e.level
	e.level += aw * delta
	e.variance = (1 - aw) * (e.variance + aw*delta*delta)
	e.n += w
}

// Merge combines two streams by weighting each level and variance by the
// stream's total weight.
func (e *EMA[T]) Merge(other Accumulator[T]) error {
	o, ok := other.(*EMA[T])
	if !ok || o == nil || o.alpha != e.alpha {
		return Incompatible(KindEMA, KindOf(other))
	}
	if o.n == 0 {
		return nil
	}
	if e.n == 0 {
		*e = *o
		return nil
	}
	n := e.n + o.n
	a, b := e.n/n, o.n/n
	e.level = a*e.level + b*o.level
	e.variance = a*e.variance + b*o.variance
	e.n = n
	return nil
}

func (e *EMA[T]) Alpha() T { return e.alpha }

// EffectiveSamples is 1/alpha, the length of the equivalent simple
// moving average window.
func (e *EMA[T]) EffectiveSamples() T { return 1 / e.alpha }

// Mean returns the smoothed level, or NaN when empty.
func (e *EMA[T]) Mean() T {
	if e.n == 0 {
		return numeric.NaN[T]()
	}
	return e.level
}

// Variance returns the exponentially weighted variance, or NaN when
// empty.
func (e *EMA[T]) Variance() T {
	if e.n == 0 {
		return numeric.NaN[T]()
	}
	return e.variance
}

func (e *EMA[T]) StdDev() T {
	return T(math.Sqrt(float64(e.Variance())))
}

func (e *EMA[T]) Value() T    { return e.Mean() }
func (e *EMA[T]) Weight() T   { return e.n }
func (e *EMA[T]) Empty() bool { return e.n == 0 }

func (e *EMA[T]) Reset() {
	*e = EMA[T]{alpha: e.alpha}
}

func (e *EMA[T]) Snapshot() Record {
	return Record{
		Kind:   KindEMA,
		Params: e.params(),
		Fields: map[string]float64{
			"n":        float64(e.n),
			"level":    float64(e.level),
			"variance": float64(e.variance),
		},
	}
}

func (e *EMA[T]) Restore(r Record) error {
	if err := expectKind(r, KindEMA); err != nil {
		return err
	}
	if T(r.Param("alpha", 0)) != e.alpha {
		return fmt.Errorf("%w: ema alpha %v into %v", ErrIncompatibleAccumulator, r.Param("alpha", 0), e.alpha)
	}
	n, err := weightField[T](r)
	if err != nil {
		return err
	}
	level, err := r.Field("level")
	if err != nil {
		return err
	}
	variance, err := r.Field("variance")
	if err != nil {
		return err
	}
	*e = EMA[T]{alpha: e.alpha, n: n, level: T(level), variance: T(variance)}
	return nil
}
