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
	"slices"

	"github.com/cardinalhq/accumux/pkg/numeric"
)

// Spec parameter names.
const (
	ParamAlpha    = "alpha"
	ParamPeriod   = "period"
	ParamHalfLife = "half_life"
	ParamLo       = "lo"
	ParamHi       = "hi"
	ParamBins     = "bins"
	ParamAccuracy = "accuracy"
	ParamLgK      = "lgk"
)

// New builds an empty accumulator from a spec.  Unknown kinds fail with
// ErrUnknownKind and bad parameters with ErrInvalidConfig.
func New[T numeric.Float](s Spec) (Accumulator[T], error) {
	switch s.Kind {
	case KindCount:
		return NewCount[T](), nil
	case KindSum:
		return NewSum[T](), nil
	case KindMin:
		return NewMin[T](), nil
	case KindMax:
		return NewMax[T](), nil
	case KindMean:
		return NewMean[T](), nil
	case KindVariance:
		return NewVariance[T](), nil
	case KindSkewness:
		return NewSkewness[T](), nil
	case KindKurtosis:
		return NewKurtosis[T](), nil
	case KindProduct:
		return NewProduct[T](), nil
	case KindCovariance:
		return NewCovariance[T](), nil
	case KindEMA:
		return newEMA[T](s)
	case KindHistogram:
		return newHistogram[T](s)
	case KindQuantile:
		q, err := NewQuantile[T](s.Param(ParamAccuracy, DefaultRelativeAccuracy))
		if err != nil {
			return nil, err
		}
		return q, nil
	case KindDistinct:
		lgK, err := intParam(s, ParamLgK, DefaultLgK)
		if err != nil {
			return nil, err
		}
		d, err := NewDistinct[T](lgK)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, s.Kind)
}

func newEMA[T numeric.Float](s Spec) (Accumulator[T], error) {
	var (
		e   *EMA[T]
		err error
	)
	switch {
	case hasParam(s, ParamAlpha):
		e, err = NewEMA(T(s.Param(ParamAlpha, 0)))
	case hasParam(s, ParamPeriod):
		var p int
		if p, err = intParam(s, ParamPeriod, 0); err == nil {
			e, err = NewEMAFromPeriod[T](p)
		}
	case hasParam(s, ParamHalfLife):
		e, err = NewEMAFromHalfLife(T(s.Param(ParamHalfLife, 0)))
	default:
		err = fmt.Errorf("%w: ema needs one of %s, %s or %s", ErrInvalidConfig, ParamAlpha, ParamPeriod, ParamHalfLife)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func newHistogram[T numeric.Float](s Spec) (Accumulator[T], error) {
	if !hasParam(s, ParamLo) || !hasParam(s, ParamHi) {
		return nil, fmt.Errorf("%w: histogram needs %s and %s", ErrInvalidConfig, ParamLo, ParamHi)
	}
	bins, err := intParam(s, ParamBins, 10)
	if err != nil {
		return nil, err
	}
	h, err := NewHistogram(T(s.Param(ParamLo, 0)), T(s.Param(ParamHi, 0)), bins)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func hasParam(s Spec, name string) bool {
	_, ok := s.Params[name]
	return ok
}

func intParam(s Spec, name string, def int) (int, error) {
	v, ok := s.Params[name]
	if !ok {
		return def, nil
	}
	if v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s must be a whole number, got %v", ErrInvalidConfig, name, v)
	}
	return int(v), nil
}

// FromRecord builds an accumulator of the record's kind and
// configuration and restores its state.
func FromRecord[T numeric.Float](r Record) (Accumulator[T], error) {
	acc, err := New[T](Spec{Kind: r.Kind, Params: r.Params})
	if err != nil {
		return nil, err
	}
	if err := acc.Restore(r); err != nil {
		return nil, err
	}
	return acc, nil
}

var allKinds = []Kind{
	KindCount, KindSum, KindMin, KindMax,
	KindMean, KindVariance, KindSkewness, KindKurtosis,
	KindProduct, KindEMA, KindCovariance,
	KindHistogram, KindQuantile, KindDistinct,
}

// Kinds lists every kind New accepts, sorted.
func Kinds() []Kind {
	kinds := slices.Clone(allKinds)
	slices.Sort(kinds)
	return kinds
}
